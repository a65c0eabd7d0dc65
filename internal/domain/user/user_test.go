package user

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRepo struct {
	users map[string]*User
}

func (r *memRepo) GetUserByEmail(_ context.Context, email string) (*User, error) {
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memRepo) GetUserByID(_ context.Context, id string) (*User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memRepo) SaveUser(_ context.Context, u *User) error {
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *memRepo) ListUsers(context.Context) ([]User, error) {
	out := make([]User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, *u)
	}
	return out, nil
}

func newTestService() *Service {
	return NewService(&memRepo{users: make(map[string]*User)})
}

func TestRegisterAndAuthenticate(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	u, err := svc.Register(ctx, "reader@example.com", "correct horse", "Reader")
	require.NoError(t, err)
	assert.Equal(t, "customer", u.Role)
	assert.True(t, u.Active)
	assert.NotEqual(t, "correct horse", u.PasswordHash)

	got, err := svc.Authenticate(ctx, "reader@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "reader@example.com", "password-one", "Reader")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "reader@example.com", "password-two", "Other")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestAuthenticateFailures(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	u, err := svc.Register(ctx, "reader@example.com", "correct horse", "Reader")
	require.NoError(t, err)

	_, err = svc.Authenticate(ctx, "reader@example.com", "wrong password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "nobody@example.com", "correct horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// Blocked accounts authenticate with the right password but are
	// still refused.
	require.NoError(t, svc.SetActive(ctx, u.ID, false))
	_, err = svc.Authenticate(ctx, "reader@example.com", "correct horse")
	assert.ErrorIs(t, err, ErrUserBlocked)
}

func TestUpdateProfile(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	u, err := svc.Register(ctx, "reader@example.com", "correct horse", "Reader")
	require.NoError(t, err)

	require.NoError(t, svc.UpdateProfile(ctx, u.ID, "New Name"))
	got, err := svc.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "New Name", got.Name)

	assert.ErrorIs(t, svc.UpdateProfile(ctx, u.ID, ""), ErrInvalidName)
}
