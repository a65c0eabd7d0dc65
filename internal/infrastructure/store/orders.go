package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/Zuhair246/kitab4u-sub000/internal/domain/order"
)

// Orders are stored as a jsonb document plus the columns reporting and
// listing need. The placement-time money columns (gross, discount,
// shipping, charged) are written once at insert and never updated;
// final_payable tracks the live value, so charged - final_payable is the
// refunded amount for any paid order.

func (p *Postgres) InsertOrder(ctx context.Context, o *order.Order) error {
	doc, err := json.Marshal(o)
	if err != nil {
		return err
	}
	_, err = p.q.ExecContext(ctx,
		`INSERT INTO orders
		   (id, user_id, doc, status, payment_status, method,
		    gross, discount, shipping, charged, final_payable, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		o.ID, o.UserID, doc, string(o.Status), string(o.PaymentStatus), string(o.Method),
		o.TotalPrice, o.Discount, o.ShippingCharge, o.FinalPayable, o.FinalPayable,
		o.CreatedAt, o.UpdatedAt,
	)
	return err
}

func (p *Postgres) GetOrder(ctx context.Context, id string) (*order.Order, error) {
	var doc []byte
	err := p.q.QueryRowContext(ctx,
		`SELECT doc FROM orders WHERE id = $1`, id).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, order.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	var o order.Order
	if err := json.Unmarshal(doc, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (p *Postgres) UpdateOrder(ctx context.Context, o *order.Order) error {
	doc, err := json.Marshal(o)
	if err != nil {
		return err
	}
	res, err := p.q.ExecContext(ctx,
		`UPDATE orders SET doc = $2, status = $3, payment_status = $4,
		   final_payable = $5, updated_at = $6
		 WHERE id = $1`,
		o.ID, doc, string(o.Status), string(o.PaymentStatus), o.FinalPayable, o.UpdatedAt,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return order.ErrOrderNotFound
	}
	return nil
}

func (p *Postgres) listOrders(ctx context.Context, query string, args ...any) ([]order.Order, error) {
	rows, err := p.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []order.Order
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var o order.Order
		if err := json.Unmarshal(doc, &o); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (p *Postgres) ListOrdersByUser(ctx context.Context, userID string) ([]order.Order, error) {
	return p.listOrders(ctx,
		`SELECT doc FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
}

func (p *Postgres) ListOrders(ctx context.Context) ([]order.Order, error) {
	return p.listOrders(ctx,
		`SELECT doc FROM orders ORDER BY created_at DESC`)
}

// Payments.

func (p *Postgres) InsertPayment(ctx context.Context, pay *order.Payment) error {
	_, err := p.q.ExecContext(ctx,
		`INSERT INTO payments
		   (order_id, gateway_order_id, gateway_payment_id, method, status, amount,
		    raw_response, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		pay.OrderID, pay.GatewayOrderID, pay.GatewayPaymentID, string(pay.Method),
		string(pay.Status), pay.Amount, pay.RawResponse, pay.CreatedAt, pay.UpdatedAt,
	)
	return err
}

func (p *Postgres) scanPayment(row *sql.Row) (*order.Payment, error) {
	var pay order.Payment
	err := row.Scan(&pay.OrderID, &pay.GatewayOrderID, &pay.GatewayPaymentID,
		&pay.Method, &pay.Status, &pay.Amount, &pay.RawResponse,
		&pay.CreatedAt, &pay.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, order.ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &pay, nil
}

func (p *Postgres) GetPaymentByOrder(ctx context.Context, orderID string) (*order.Payment, error) {
	return p.scanPayment(p.q.QueryRowContext(ctx,
		`SELECT order_id, gateway_order_id, gateway_payment_id, method, status, amount,
		        raw_response, created_at, updated_at
		 FROM payments WHERE order_id = $1`, orderID))
}

func (p *Postgres) GetPaymentByGatewayOrder(ctx context.Context, gatewayOrderID string) (*order.Payment, error) {
	return p.scanPayment(p.q.QueryRowContext(ctx,
		`SELECT order_id, gateway_order_id, gateway_payment_id, method, status, amount,
		        raw_response, created_at, updated_at
		 FROM payments WHERE gateway_order_id = $1`, gatewayOrderID))
}

func (p *Postgres) UpdatePayment(ctx context.Context, pay *order.Payment) error {
	res, err := p.q.ExecContext(ctx,
		`UPDATE payments SET gateway_order_id = $2, gateway_payment_id = $3,
		   status = $4, raw_response = $5, updated_at = $6
		 WHERE order_id = $1`,
		pay.OrderID, pay.GatewayOrderID, pay.GatewayPaymentID,
		string(pay.Status), pay.RawResponse, pay.UpdatedAt,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return order.ErrPaymentNotFound
	}
	return nil
}

// MethodSales is one payment method's slice of a sales report.
type MethodSales struct {
	Method     string  `json:"method"`
	OrderCount int     `json:"order_count"`
	Charged    float64 `json:"charged"`
}

// SalesReport aggregates orders placed within a date range. Refunded is
// derived from charged - final_payable over paid orders, so it reflects
// every wallet refund issued for the period's orders.
type SalesReport struct {
	From       time.Time     `json:"from"`
	To         time.Time     `json:"to"`
	OrderCount int           `json:"order_count"`
	Gross      float64       `json:"gross"`
	Discount   float64       `json:"discount"`
	Shipping   float64       `json:"shipping"`
	Refunded   float64       `json:"refunded"`
	Net        float64       `json:"net"`
	ByMethod   []MethodSales `json:"by_method"`
}

// SalesSummary builds the admin sales report for orders created in
// [from, to). Orders still Pending (unconfirmed online payments) are
// excluded.
func (p *Postgres) SalesSummary(ctx context.Context, from, to time.Time) (*SalesReport, error) {
	r := &SalesReport{From: from, To: to}
	err := p.q.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(gross), 0),
		        COALESCE(SUM(discount), 0),
		        COALESCE(SUM(shipping), 0),
		        COALESCE(SUM(CASE WHEN payment_status IN ('Paid', 'Refunded')
		                          THEN charged - final_payable ELSE 0 END), 0)
		 FROM orders
		 WHERE created_at >= $1 AND created_at < $2 AND status <> 'Pending'`,
		from, to,
	).Scan(&r.OrderCount, &r.Gross, &r.Discount, &r.Shipping, &r.Refunded)
	if err != nil {
		return nil, err
	}
	r.Net = r.Gross + r.Shipping - r.Discount - r.Refunded

	rows, err := p.q.QueryContext(ctx,
		`SELECT method, COUNT(*), COALESCE(SUM(charged), 0)
		 FROM orders
		 WHERE created_at >= $1 AND created_at < $2 AND status <> 'Pending'
		 GROUP BY method ORDER BY method`,
		from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var m MethodSales
		if err := rows.Scan(&m.Method, &m.OrderCount, &m.Charged); err != nil {
			return nil, err
		}
		r.ByMethod = append(r.ByMethod, m)
	}
	return r, rows.Err()
}
