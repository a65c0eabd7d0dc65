// Package session keeps short-lived per-user state in Redis: the coupon
// quote applied to the cart, and email OTPs.
package session

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Zuhair246/kitab4u-sub000/internal/domain/coupon"
)

const (
	// session:coupon:{user_id} -> coupon.Quote
	keyCouponQuote = "session:coupon:%s"
	// session:otp:{email} -> code
	keyOTP = "session:otp:%s"
)

var (
	// TTLCouponQuote bounds how stale an applied-but-unused coupon quote
	// can get before checkout forces a re-apply.
	TTLCouponQuote = 30 * time.Minute
	TTLOTP         = 5 * time.Minute
)

func NewClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr})
}

// Store wraps the Redis client with the session key schema.
type Store struct {
	rdb *redis.Client
}

func NewStore(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

func (s *Store) SaveCouponQuote(ctx context.Context, q *coupon.Quote) error {
	data, err := json.Marshal(q)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, fmt.Sprintf(keyCouponQuote, q.UserID), data, TTLCouponQuote).Err()
}

// GetCouponQuote returns the user's applied coupon quote, or (nil, nil)
// when none is held.
func (s *Store) GetCouponQuote(ctx context.Context, userID string) (*coupon.Quote, error) {
	data, err := s.rdb.Get(ctx, fmt.Sprintf(keyCouponQuote, userID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var q coupon.Quote
	if err := json.Unmarshal(data, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

func (s *Store) ClearCouponQuote(ctx context.Context, userID string) error {
	return s.rdb.Del(ctx, fmt.Sprintf(keyCouponQuote, userID)).Err()
}

// NewOTP generates a six-digit code and stores it against the email with
// a short TTL, replacing any previous code.
func (s *Store) NewOTP(ctx context.Context, email string) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	code := fmt.Sprintf("%06d", n.Int64())
	if err := s.rdb.Set(ctx, fmt.Sprintf(keyOTP, email), code, TTLOTP).Err(); err != nil {
		return "", err
	}
	return code, nil
}

// VerifyOTP checks the code and consumes it on success; a code can only
// be used once.
func (s *Store) VerifyOTP(ctx context.Context, email, code string) (bool, error) {
	key := fmt.Sprintf(keyOTP, email)
	stored, err := s.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if stored != code {
		return false, nil
	}
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		return false, err
	}
	return true, nil
}
