package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/Zuhair246/kitab4u-sub000/internal/domain/address"
	"github.com/Zuhair246/kitab4u-sub000/internal/domain/cart"
	"github.com/Zuhair246/kitab4u-sub000/internal/domain/coupon"
	"github.com/Zuhair246/kitab4u-sub000/internal/domain/user"
	"github.com/Zuhair246/kitab4u-sub000/internal/domain/wallet"
	"github.com/Zuhair246/kitab4u-sub000/internal/domain/wishlist"
)

// Carts, wishlists and address books are small per-user documents read and
// written whole, so they live as jsonb rows keyed by user.

func (p *Postgres) GetCart(ctx context.Context, userID string) (*cart.Cart, error) {
	var doc []byte
	err := p.q.QueryRowContext(ctx,
		`SELECT doc FROM carts WHERE user_id = $1`, userID).Scan(&doc)
	if err == sql.ErrNoRows {
		return &cart.Cart{UserID: userID}, nil
	}
	if err != nil {
		return nil, err
	}
	var c cart.Cart
	if err := json.Unmarshal(doc, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (p *Postgres) SaveCart(ctx context.Context, c *cart.Cart) error {
	doc, err := json.Marshal(c)
	if err != nil {
		return err
	}
	_, err = p.q.ExecContext(ctx,
		`INSERT INTO carts (user_id, doc, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO UPDATE SET doc = EXCLUDED.doc, updated_at = EXCLUDED.updated_at`,
		c.UserID, doc, c.UpdatedAt,
	)
	return err
}

func (p *Postgres) ClearCart(ctx context.Context, userID string) error {
	_, err := p.q.ExecContext(ctx, `DELETE FROM carts WHERE user_id = $1`, userID)
	return err
}

func (p *Postgres) GetWishlist(ctx context.Context, userID string) (*wishlist.Wishlist, error) {
	var doc []byte
	err := p.q.QueryRowContext(ctx,
		`SELECT doc FROM wishlists WHERE user_id = $1`, userID).Scan(&doc)
	if err == sql.ErrNoRows {
		return &wishlist.Wishlist{UserID: userID}, nil
	}
	if err != nil {
		return nil, err
	}
	var w wishlist.Wishlist
	if err := json.Unmarshal(doc, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

func (p *Postgres) SaveWishlist(ctx context.Context, w *wishlist.Wishlist) error {
	doc, err := json.Marshal(w)
	if err != nil {
		return err
	}
	_, err = p.q.ExecContext(ctx,
		`INSERT INTO wishlists (user_id, doc) VALUES ($1, $2)
		 ON CONFLICT (user_id) DO UPDATE SET doc = EXCLUDED.doc`,
		w.UserID, doc,
	)
	return err
}

func (p *Postgres) GetAddressBook(ctx context.Context, userID string) (*address.Book, error) {
	var doc []byte
	err := p.q.QueryRowContext(ctx,
		`SELECT doc FROM address_books WHERE user_id = $1`, userID).Scan(&doc)
	if err == sql.ErrNoRows {
		return &address.Book{UserID: userID}, nil
	}
	if err != nil {
		return nil, err
	}
	var b address.Book
	if err := json.Unmarshal(doc, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (p *Postgres) SaveAddressBook(ctx context.Context, b *address.Book) error {
	doc, err := json.Marshal(b)
	if err != nil {
		return err
	}
	_, err = p.q.ExecContext(ctx,
		`INSERT INTO address_books (user_id, doc) VALUES ($1, $2)
		 ON CONFLICT (user_id) DO UPDATE SET doc = EXCLUDED.doc`,
		b.UserID, doc,
	)
	return err
}

// Coupons keep their redemption set in a separate table so consumption is
// an idempotent insert rather than a read-modify-write of an array.

func (p *Postgres) GetCoupon(ctx context.Context, code string) (*coupon.Coupon, error) {
	var c coupon.Coupon
	err := p.q.QueryRowContext(ctx,
		`SELECT id, code, percent, min_order_value, max_discount, expires_at, active
		 FROM coupons WHERE code = $1`, code,
	).Scan(&c.ID, &c.Code, &c.Percent, &c.MinOrderValue, &c.MaxDiscount, &c.ExpiresAt, &c.Active)
	if err == sql.ErrNoRows {
		return nil, coupon.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := p.q.QueryContext(ctx,
		`SELECT user_id FROM coupon_usages WHERE code = $1`, code)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, err
		}
		c.UsedBy = append(c.UsedBy, userID)
	}
	return &c, rows.Err()
}

func (p *Postgres) SaveCoupon(ctx context.Context, c *coupon.Coupon) error {
	_, err := p.q.ExecContext(ctx,
		`INSERT INTO coupons (id, code, percent, min_order_value, max_discount, expires_at, active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (code) DO UPDATE SET
		   percent = EXCLUDED.percent, min_order_value = EXCLUDED.min_order_value,
		   max_discount = EXCLUDED.max_discount, expires_at = EXCLUDED.expires_at,
		   active = EXCLUDED.active`,
		c.ID, c.Code, c.Percent, c.MinOrderValue, c.MaxDiscount, c.ExpiresAt, c.Active,
	)
	return err
}

func (p *Postgres) ListCoupons(ctx context.Context) ([]coupon.Coupon, error) {
	rows, err := p.q.QueryContext(ctx,
		`SELECT c.id, c.code, c.percent, c.min_order_value, c.max_discount, c.expires_at, c.active,
		        COALESCE(json_agg(u.user_id) FILTER (WHERE u.user_id IS NOT NULL), '[]')
		 FROM coupons c
		 LEFT JOIN coupon_usages u ON u.code = c.code
		 GROUP BY c.id, c.code ORDER BY c.expires_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []coupon.Coupon
	for rows.Next() {
		var c coupon.Coupon
		var usedBy []byte
		if err := rows.Scan(&c.ID, &c.Code, &c.Percent, &c.MinOrderValue,
			&c.MaxDiscount, &c.ExpiresAt, &c.Active, &usedBy); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(usedBy, &c.UsedBy); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (p *Postgres) MarkCouponUsed(ctx context.Context, code, userID string) error {
	_, err := p.q.ExecContext(ctx,
		`INSERT INTO coupon_usages (code, user_id) VALUES ($1, $2)
		 ON CONFLICT (code, user_id) DO NOTHING`,
		code, userID,
	)
	return err
}

func (p *Postgres) DeactivateExpiredCoupons(ctx context.Context, now time.Time) error {
	_, err := p.q.ExecContext(ctx,
		`UPDATE coupons SET active = FALSE WHERE active AND expires_at <= $1`, now)
	return err
}

// Wallets: a balance row plus an append-only ledger. SaveWallet inserts
// ledger entries with DO NOTHING on conflict, so re-saving a wallet whose
// earlier entries are already stored is harmless.

func (p *Postgres) GetWallet(ctx context.Context, userID string) (*wallet.Wallet, error) {
	w := &wallet.Wallet{UserID: userID}
	err := p.q.QueryRowContext(ctx,
		`SELECT balance FROM wallets WHERE user_id = $1`, userID).Scan(&w.Balance)
	if err == sql.ErrNoRows {
		return w, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := p.q.QueryContext(ctx,
		`SELECT id, kind, amount, description, at
		 FROM wallet_transactions WHERE user_id = $1 ORDER BY at, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var t wallet.Transaction
		if err := rows.Scan(&t.ID, &t.Kind, &t.Amount, &t.Description, &t.At); err != nil {
			return nil, err
		}
		w.Transactions = append(w.Transactions, t)
	}
	return w, rows.Err()
}

func (p *Postgres) SaveWallet(ctx context.Context, w *wallet.Wallet) error {
	if _, err := p.q.ExecContext(ctx,
		`INSERT INTO wallets (user_id, balance) VALUES ($1, $2)
		 ON CONFLICT (user_id) DO UPDATE SET balance = EXCLUDED.balance`,
		w.UserID, w.Balance,
	); err != nil {
		return err
	}
	for _, t := range w.Transactions {
		if _, err := p.q.ExecContext(ctx,
			`INSERT INTO wallet_transactions (id, user_id, kind, amount, description, at)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (id) DO NOTHING`,
			t.ID, w.UserID, string(t.Kind), t.Amount, t.Description, t.At,
		); err != nil {
			return err
		}
	}
	return nil
}

// Users.

func (p *Postgres) scanUser(row *sql.Row) (*user.User, error) {
	var u user.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Role, &u.Active, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, user.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (p *Postgres) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	return p.scanUser(p.q.QueryRowContext(ctx,
		`SELECT id, email, name, password_hash, role, active, created_at
		 FROM users WHERE email = $1`, email))
}

func (p *Postgres) GetUserByID(ctx context.Context, id string) (*user.User, error) {
	return p.scanUser(p.q.QueryRowContext(ctx,
		`SELECT id, email, name, password_hash, role, active, created_at
		 FROM users WHERE id = $1`, id))
}

func (p *Postgres) SaveUser(ctx context.Context, u *user.User) error {
	_, err := p.q.ExecContext(ctx,
		`INSERT INTO users (id, email, name, password_hash, role, active, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE SET
		   email = EXCLUDED.email, name = EXCLUDED.name,
		   password_hash = EXCLUDED.password_hash, role = EXCLUDED.role,
		   active = EXCLUDED.active`,
		u.ID, u.Email, u.Name, u.PasswordHash, u.Role, u.Active, u.CreatedAt,
	)
	return err
}

func (p *Postgres) ListUsers(ctx context.Context) ([]user.User, error) {
	rows, err := p.q.QueryContext(ctx,
		`SELECT id, email, name, password_hash, role, active, created_at
		 FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []user.User
	for rows.Next() {
		var u user.User
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash,
			&u.Role, &u.Active, &u.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
