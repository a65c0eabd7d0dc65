// Package store persists the shop's state in PostgreSQL. One Postgres
// value backs every domain repository so a single connection pool (or a
// single transaction, inside RunInTx) serves the whole request.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/Zuhair246/kitab4u-sub000/internal/domain/order"
)

// querier is the subset of database/sql shared by *sql.DB and *sql.Tx,
// letting every query method run either pooled or inside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Postgres implements every domain repository plus order.TxStore.
type Postgres struct {
	db *sql.DB
	q  querier
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db, q: db}
}

// Connect opens and pings a PostgreSQL connection pool.
func Connect(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// RunInTx executes fn against a transaction-scoped store. Any error from
// fn rolls the transaction back; nothing partial becomes visible.
func (p *Postgres) RunInTx(ctx context.Context, fn func(order.Store) error) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	scoped := &Postgres{db: p.db, q: tx}
	if err := fn(scoped); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	return tx.Commit()
}

// DecrementStock subtracts qty from a variant's stock only if enough is
// available; zero rows affected means a concurrent sale won the stock and
// the caller must abort.
func (p *Postgres) DecrementStock(ctx context.Context, productID, variantID string, qty int) error {
	res, err := p.q.ExecContext(ctx,
		`UPDATE product_variants SET stock = stock - $3
		 WHERE product_id = $1 AND id = $2 AND stock >= $3`,
		productID, variantID, qty,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return order.ErrStockConflict
	}
	return nil
}

func (p *Postgres) IncrementStock(ctx context.Context, productID, variantID string, qty int) error {
	_, err := p.q.ExecContext(ctx,
		`UPDATE product_variants SET stock = stock + $3
		 WHERE product_id = $1 AND id = $2`,
		productID, variantID, qty,
	)
	return err
}
