package coupon

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound     = errors.New("coupon not found or expired")
	ErrAlreadyUsed  = errors.New("coupon already used")
	ErrBelowMinimum = errors.New("order total below coupon minimum")
	ErrInvalidValue = errors.New("coupon percent must be between 0 and 100")
	ErrCodeTaken    = errors.New("coupon code already exists")
)

// Coupon is an order-level percentage discount code, single-use per user.
// Codes are stored uppercase and matched case-insensitively.
type Coupon struct {
	ID            string    `json:"id"`
	Code          string    `json:"code"`
	Percent       float64   `json:"percent"`
	MinOrderValue float64   `json:"min_order_value"`
	MaxDiscount   float64   `json:"max_discount"` // 0 = uncapped
	ExpiresAt     time.Time `json:"expires_at"`
	Active        bool      `json:"active"`
	UsedBy        []string  `json:"used_by"`
}

// UsableAt reports whether the coupon can be applied at the given instant.
func (c *Coupon) UsableAt(now time.Time) bool {
	return c.Active && now.Before(c.ExpiresAt)
}

// UsedByUser reports whether the user has already consumed this coupon.
func (c *Coupon) UsedByUser(userID string) bool {
	for _, u := range c.UsedBy {
		if u == userID {
			return true
		}
	}
	return false
}

// Quote is an applied-but-not-committed discount. It lives in the session
// until checkout commits or the user removes the coupon; nothing is
// persisted against the coupon itself until an order is placed.
type Quote struct {
	Code            string  `json:"code"`
	DiscountAmount  float64 `json:"discount_amount"`
	DiscountedPrice float64 `json:"discounted_price"`
	UserID          string  `json:"user_id"`
}

type Repo interface {
	GetCoupon(ctx context.Context, code string) (*Coupon, error)
	SaveCoupon(ctx context.Context, c *Coupon) error
	ListCoupons(ctx context.Context) ([]Coupon, error)
	// MarkCouponUsed appends the user to the coupon's used set. It is an
	// idempotent set-add so duplicate commit attempts are harmless.
	MarkCouponUsed(ctx context.Context, code, userID string) error
	DeactivateExpiredCoupons(ctx context.Context, now time.Time) error
}

// Engine validates and applies coupons.
type Engine struct {
	repo Repo
	now  func() time.Time
}

func NewEngine(repo Repo) *Engine {
	return &Engine{repo: repo, now: time.Now}
}

// Apply validates the code against the current order amount and returns a
// session quote. The coupon is NOT consumed here; consumption happens only
// when checkout commits.
func (e *Engine) Apply(ctx context.Context, code string, finalAmount float64, userID string) (*Quote, error) {
	c, err := e.repo.GetCoupon(ctx, strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return nil, err
	}
	now := e.now()
	if !c.UsableAt(now) {
		return nil, ErrNotFound
	}
	if c.UsedByUser(userID) {
		return nil, ErrAlreadyUsed
	}
	if finalAmount < c.MinOrderValue {
		return nil, ErrBelowMinimum
	}

	discount := finalAmount * c.Percent / 100
	if c.MaxDiscount > 0 && discount > c.MaxDiscount {
		discount = c.MaxDiscount
	}
	discounted := math.Round(finalAmount - discount)
	if discounted < 0 {
		discounted = 0
	}

	return &Quote{
		Code:            c.Code,
		DiscountAmount:  discount,
		DiscountedPrice: discounted,
		UserID:          userID,
	}, nil
}

// Admin operations.

// List deactivates expired coupons first, then returns all coupons. Expiry
// is enforced lazily rather than by a background job.
func (e *Engine) List(ctx context.Context) ([]Coupon, error) {
	if err := e.repo.DeactivateExpiredCoupons(ctx, e.now()); err != nil {
		return nil, err
	}
	return e.repo.ListCoupons(ctx)
}

func (e *Engine) Create(ctx context.Context, code string, percent, minOrderValue, maxDiscount float64, expiresAt time.Time) (*Coupon, error) {
	if percent <= 0 || percent > 100 {
		return nil, ErrInvalidValue
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, ErrNotFound
	}
	if existing, err := e.repo.GetCoupon(ctx, code); err == nil && existing != nil {
		return nil, ErrCodeTaken
	}

	c := &Coupon{
		ID:            uuid.New().String(),
		Code:          code,
		Percent:       percent,
		MinOrderValue: minOrderValue,
		MaxDiscount:   maxDiscount,
		ExpiresAt:     expiresAt,
		Active:        true,
	}
	if err := e.repo.SaveCoupon(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (e *Engine) SetActive(ctx context.Context, code string, active bool) error {
	c, err := e.repo.GetCoupon(ctx, strings.ToUpper(code))
	if err != nil {
		return err
	}
	c.Active = active
	return e.repo.SaveCoupon(ctx, c)
}
