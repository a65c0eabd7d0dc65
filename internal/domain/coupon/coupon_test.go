package coupon

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRepo struct {
	coupons map[string]*Coupon
}

func newMemRepo() *memRepo {
	return &memRepo{coupons: make(map[string]*Coupon)}
}

func (r *memRepo) GetCoupon(_ context.Context, code string) (*Coupon, error) {
	c, ok := r.coupons[strings.ToUpper(code)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *memRepo) SaveCoupon(_ context.Context, c *Coupon) error {
	cp := *c
	r.coupons[c.Code] = &cp
	return nil
}

func (r *memRepo) ListCoupons(context.Context) ([]Coupon, error) {
	out := make([]Coupon, 0, len(r.coupons))
	for _, c := range r.coupons {
		out = append(out, *c)
	}
	return out, nil
}

func (r *memRepo) MarkCouponUsed(_ context.Context, code, userID string) error {
	c := r.coupons[code]
	c.UsedBy = append(c.UsedBy, userID)
	return nil
}

func (r *memRepo) DeactivateExpiredCoupons(_ context.Context, now time.Time) error {
	for _, c := range r.coupons {
		if c.Active && !now.Before(c.ExpiresAt) {
			c.Active = false
		}
	}
	return nil
}

func newTestEngine(repo Repo, now time.Time) *Engine {
	e := NewEngine(repo)
	e.now = func() time.Time { return now }
	return e
}

func TestApply(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := newMemRepo()
	repo.coupons["SAVE10"] = &Coupon{
		ID: "c-1", Code: "SAVE10", Percent: 10,
		MinOrderValue: 500, ExpiresAt: now.Add(24 * time.Hour), Active: true,
	}
	e := newTestEngine(repo, now)

	t.Run("valid code", func(t *testing.T) {
		q, err := e.Apply(context.Background(), "save10", 1000, "user-1")
		require.NoError(t, err)
		assert.Equal(t, "SAVE10", q.Code)
		assert.Equal(t, 100.0, q.DiscountAmount)
		assert.Equal(t, 900.0, q.DiscountedPrice)
		assert.Equal(t, "user-1", q.UserID)
	})

	t.Run("below minimum", func(t *testing.T) {
		_, err := e.Apply(context.Background(), "SAVE10", 400, "user-1")
		assert.ErrorIs(t, err, ErrBelowMinimum)
	})

	t.Run("unknown code", func(t *testing.T) {
		_, err := e.Apply(context.Background(), "NOPE", 1000, "user-1")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("already used by this user", func(t *testing.T) {
		repo.coupons["SAVE10"].UsedBy = []string{"user-2"}
		_, err := e.Apply(context.Background(), "SAVE10", 1000, "user-2")
		assert.ErrorIs(t, err, ErrAlreadyUsed)
	})
}

func TestApplyCapsDiscount(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := newMemRepo()
	repo.coupons["BIG50"] = &Coupon{
		ID: "c-2", Code: "BIG50", Percent: 50, MaxDiscount: 200,
		ExpiresAt: now.Add(time.Hour), Active: true,
	}
	e := newTestEngine(repo, now)

	q, err := e.Apply(context.Background(), "BIG50", 1000, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 200.0, q.DiscountAmount)
	assert.Equal(t, 800.0, q.DiscountedPrice)
}

func TestApplyRejectsExpiredAndInactive(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := newMemRepo()
	repo.coupons["OLD"] = &Coupon{
		ID: "c-3", Code: "OLD", Percent: 10,
		ExpiresAt: now.Add(-time.Minute), Active: true,
	}
	repo.coupons["OFF"] = &Coupon{
		ID: "c-4", Code: "OFF", Percent: 10,
		ExpiresAt: now.Add(time.Hour), Active: false,
	}
	e := newTestEngine(repo, now)

	_, err := e.Apply(context.Background(), "OLD", 1000, "user-1")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = e.Apply(context.Background(), "OFF", 1000, "user-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

// List deactivates expired coupons before returning, so expiry needs no
// background job.
func TestListDeactivatesExpired(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := newMemRepo()
	repo.coupons["OLD"] = &Coupon{
		ID: "c-5", Code: "OLD", Percent: 10,
		ExpiresAt: now.Add(-time.Minute), Active: true,
	}
	e := newTestEngine(repo, now)

	coupons, err := e.List(context.Background())
	require.NoError(t, err)
	require.Len(t, coupons, 1)
	assert.False(t, coupons[0].Active)
}

func TestCreate(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := newMemRepo()
	e := newTestEngine(repo, now)

	c, err := e.Create(context.Background(), " welcome20 ", 20, 300, 0, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "WELCOME20", c.Code)
	assert.True(t, c.Active)

	_, err = e.Create(context.Background(), "WELCOME20", 10, 0, 0, now.Add(time.Hour))
	assert.ErrorIs(t, err, ErrCodeTaken)

	_, err = e.Create(context.Background(), "BAD", 0, 0, 0, now.Add(time.Hour))
	assert.ErrorIs(t, err, ErrInvalidValue)
}
