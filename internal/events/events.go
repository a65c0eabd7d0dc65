package events

import (
	"time"

	"github.com/google/uuid"
)

// Order lifecycle event types published to Kafka at commit points.
const (
	TypeOrderPlaced     = "order.placed"
	TypeOrderCancelled  = "order.cancelled"
	TypeReturnRequested = "order.return_requested"
	TypeReturnDecided   = "order.return_decided"
	TypeRefundIssued    = "wallet.refund_issued"
	TypeOTPRequested    = "user.otp_requested"
)

// Item mirrors an order line for notification consumers.
type Item struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

// Event is the envelope written to the order-events topic. Amount carries
// the order's final payable (or the refund amount for refund events).
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	OrderID    string    `json:"order_id,omitempty"`
	UserID     string    `json:"user_id"`
	Amount     float64   `json:"amount,omitempty"`
	Items      []Item    `json:"items,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// New builds an envelope with a fresh id and timestamp.
func New(eventType, orderID, userID string, amount float64) Event {
	return Event{
		ID:         uuid.New().String(),
		Type:       eventType,
		OrderID:    orderID,
		UserID:     userID,
		Amount:     amount,
		OccurredAt: time.Now().UTC(),
	}
}
