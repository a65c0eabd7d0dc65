package store

import "context"

// schema is applied at startup; every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS categories (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		listed     BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		category_id TEXT NOT NULL REFERENCES categories(id),
		blocked     BOOLEAN NOT NULL DEFAULT FALSE,
		images      JSONB NOT NULL DEFAULT '[]',
		created_at  TIMESTAMPTZ NOT NULL,
		updated_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS product_variants (
		product_id     TEXT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
		id             TEXT NOT NULL,
		cover_type     TEXT NOT NULL,
		original_price NUMERIC(12,2) NOT NULL,
		discount_price NUMERIC(12,2) NOT NULL DEFAULT 0,
		stock          INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
		PRIMARY KEY (product_id, id)
	)`,
	`CREATE TABLE IF NOT EXISTS offers (
		id         TEXT PRIMARY KEY,
		kind       TEXT NOT NULL,
		target_id  TEXT NOT NULL,
		percent    NUMERIC(5,2) NOT NULL,
		start_date TIMESTAMPTZ NOT NULL,
		end_date   TIMESTAMPTZ NOT NULL,
		active     BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE INDEX IF NOT EXISTS offers_target_idx ON offers (kind, target_id)`,
	`CREATE TABLE IF NOT EXISTS coupons (
		id              TEXT NOT NULL,
		code            TEXT PRIMARY KEY,
		percent         NUMERIC(5,2) NOT NULL,
		min_order_value NUMERIC(12,2) NOT NULL DEFAULT 0,
		max_discount    NUMERIC(12,2) NOT NULL DEFAULT 0,
		expires_at      TIMESTAMPTZ NOT NULL,
		active          BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS coupon_usages (
		code    TEXT NOT NULL REFERENCES coupons(code),
		user_id TEXT NOT NULL,
		PRIMARY KEY (code, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id            TEXT PRIMARY KEY,
		email         TEXT NOT NULL UNIQUE,
		name          TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		role          TEXT NOT NULL DEFAULT 'customer',
		active        BOOLEAN NOT NULL DEFAULT TRUE,
		created_at    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS carts (
		user_id    TEXT PRIMARY KEY,
		doc        JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS wishlists (
		user_id TEXT PRIMARY KEY,
		doc     JSONB NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS address_books (
		user_id TEXT PRIMARY KEY,
		doc     JSONB NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS wallets (
		user_id TEXT PRIMARY KEY,
		balance NUMERIC(12,2) NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS wallet_transactions (
		id          TEXT PRIMARY KEY,
		user_id     TEXT NOT NULL,
		kind        TEXT NOT NULL,
		amount      NUMERIC(12,2) NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		at          TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS wallet_transactions_user_idx ON wallet_transactions (user_id, at)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id             TEXT PRIMARY KEY,
		user_id        TEXT NOT NULL,
		doc            JSONB NOT NULL,
		status         TEXT NOT NULL,
		payment_status TEXT NOT NULL,
		method         TEXT NOT NULL,
		gross          NUMERIC(12,2) NOT NULL,
		discount       NUMERIC(12,2) NOT NULL DEFAULT 0,
		shipping       NUMERIC(12,2) NOT NULL DEFAULT 0,
		charged        NUMERIC(12,2) NOT NULL,
		final_payable  NUMERIC(12,2) NOT NULL,
		created_at     TIMESTAMPTZ NOT NULL,
		updated_at     TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS orders_user_idx ON orders (user_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS orders_created_idx ON orders (created_at)`,
	`CREATE TABLE IF NOT EXISTS payments (
		order_id           TEXT PRIMARY KEY REFERENCES orders(id),
		gateway_order_id   TEXT NOT NULL UNIQUE,
		gateway_payment_id TEXT NOT NULL DEFAULT '',
		method             TEXT NOT NULL,
		status             TEXT NOT NULL,
		amount             NUMERIC(12,2) NOT NULL,
		raw_response       TEXT NOT NULL DEFAULT '',
		created_at         TIMESTAMPTZ NOT NULL,
		updated_at         TIMESTAMPTZ NOT NULL
	)`,
}

// EnsureSchema creates every table the store needs.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
