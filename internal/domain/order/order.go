package order

import (
	"context"
	"errors"
	"time"

	"github.com/Zuhair246/kitab4u-sub000/internal/domain/address"
	"github.com/Zuhair246/kitab4u-sub000/internal/domain/cart"
	"github.com/Zuhair246/kitab4u-sub000/internal/domain/catalog"
	"github.com/Zuhair246/kitab4u-sub000/internal/domain/coupon"
	"github.com/Zuhair246/kitab4u-sub000/internal/domain/wallet"
)

type Status string

const (
	StatusPending         Status = "Pending"
	StatusPlaced          Status = "Placed"
	StatusPacked          Status = "Packed"
	StatusShipped         Status = "Shipped"
	StatusOutForDelivery  Status = "Out for Delivery"
	StatusDelivered       Status = "Delivered"
	StatusCancelled       Status = "Cancelled"
	StatusReturnRequested Status = "Return Requested"
	StatusReturned        Status = "Returned"
	StatusReturnRejected  Status = "Return Rejected"
)

// Terminal reports whether an item in this status can no longer move.
func (s Status) Terminal() bool {
	switch s {
	case StatusCancelled, StatusReturned, StatusReturnRejected:
		return true
	}
	return false
}

type PaymentMethod string

const (
	MethodCOD    PaymentMethod = "COD"
	MethodOnline PaymentMethod = "Online"
	MethodWallet PaymentMethod = "Wallet"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "Pending"
	PaymentPaid     PaymentStatus = "Paid"
	PaymentFailed   PaymentStatus = "Failed"
	PaymentRefunded PaymentStatus = "Refunded"
)

var (
	ErrOrderNotFound       = errors.New("order not found")
	ErrItemNotFound        = errors.New("order item not found")
	ErrCartEmpty           = errors.New("cart is empty")
	ErrCartInvalid         = errors.New("cart contains unavailable items")
	ErrCouponUnavailable   = errors.New("applied coupon is no longer available")
	ErrCODLimitExceeded    = errors.New("cash on delivery not allowed above the limit")
	ErrInsufficientBalance = errors.New("insufficient wallet balance")
	ErrInvalidMethod       = errors.New("unknown payment method")
	ErrStockConflict       = errors.New("stock changed while placing the order")
	ErrNotCancellable      = errors.New("order can no longer be cancelled")
	ErrNotReturnable       = errors.New("order is not eligible for return")
	ErrReturnWindowClosed  = errors.New("return window has closed")
	ErrAlreadyProcessed    = errors.New("payment already processed")
	ErrPaymentNotFound     = errors.New("payment not found")
	ErrGatewayUnavailable  = errors.New("payment gateway unavailable")
	ErrOrderCancelled      = errors.New("order has been cancelled")
	ErrSignatureMismatch   = errors.New("payment signature mismatch")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrNotOwner            = errors.New("order does not belong to this user")
)

// Pricing constants. Amounts are in whole currency units.
const (
	ShippingCharge        = 50.0
	FreeShippingThreshold = 700.0
	CODLimit              = 1000.0
	ReturnWindow          = 14 * 24 * time.Hour
)

// Item is one order line with its own status sub-state machine.
type Item struct {
	ID        string  `json:"id"`
	ProductID string  `json:"product_id"`
	VariantID string  `json:"variant_id"`
	Name      string  `json:"name"`
	CoverType string  `json:"cover_type"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	LineTotal float64 `json:"line_total"`
	Status    Status  `json:"status"`
}

// Address is the delivery address copied into the order at placement.
// It is a snapshot, never a reference back to the user's address book.
type Address struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Line1   string `json:"line1"`
	Line2   string `json:"line2"`
	City    string `json:"city"`
	State   string `json:"state"`
	Pincode string `json:"pincode"`
}

type Order struct {
	ID             string        `json:"id"`
	UserID         string        `json:"user_id"`
	Items          []Item        `json:"items"`
	TotalPrice     float64       `json:"total_price"`     // pre-discount subtotal, adjusted on item cancellation
	ShippingCharge float64       `json:"shipping_charge"` // currently owed shipping
	Discount       float64       `json:"discount"`
	FinalPayable   float64       `json:"final_payable"` // amount charged; basis for refunds
	CouponCode     string        `json:"coupon_code,omitempty"`
	CouponApplied  bool          `json:"coupon_applied"`
	Address        Address       `json:"address"`
	Method         PaymentMethod `json:"method"`
	PaymentStatus  PaymentStatus `json:"payment_status"`
	Status         Status        `json:"status"`
	CancelReason   string        `json:"cancel_reason,omitempty"`
	ReturnReason   string        `json:"return_reason,omitempty"`

	// ShippingPaid records whether shipping was part of the amount charged
	// at placement. ShippingReinstated marks shipping retro-charged after a
	// partial cancellation dropped the subtotal under the free-shipping
	// threshold; it is withheld from that cancellation's refund rather than
	// billed separately. ShippingRefunded marks that shipping flowed back
	// to the customer, which can happen at most once because every refund
	// is drawn from FinalPayable.
	ShippingPaid       bool `json:"shipping_paid"`
	ShippingReinstated bool `json:"shipping_reinstated"`
	ShippingRefunded   bool `json:"shipping_refunded"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Item returns the line with the given id.
func (o *Order) Item(itemID string) (*Item, bool) {
	for i := range o.Items {
		if o.Items[i].ID == itemID {
			return &o.Items[i], true
		}
	}
	return nil, false
}

// openItems returns lines whose status is not terminal.
func (o *Order) openItems() []*Item {
	var out []*Item
	for i := range o.Items {
		if !o.Items[i].Status.Terminal() {
			out = append(out, &o.Items[i])
		}
	}
	return out
}

// allItemsSettled reports whether every line ended Cancelled or Returned,
// i.e. the full charge has flowed back to the customer.
func (o *Order) allItemsSettled() bool {
	for _, it := range o.Items {
		if it.Status != StatusCancelled && it.Status != StatusReturned {
			return false
		}
	}
	return true
}

// originalSubtotal is the pre-discount total over all lines, including
// cancelled ones. Proportional refund shares are computed against this so
// the shares of sequential cancellations add up to the original discount.
func (o *Order) originalSubtotal() float64 {
	var sum float64
	for _, it := range o.Items {
		sum += it.LineTotal
	}
	return sum
}

// Payment is the gateway-side record for an order attempt. A retried
// payment reuses this record with a fresh gateway order id.
type Payment struct {
	OrderID          string        `json:"order_id"`
	GatewayOrderID   string        `json:"gateway_order_id"`
	GatewayPaymentID string        `json:"gateway_payment_id,omitempty"`
	Method           PaymentMethod `json:"method"`
	Status           PaymentStatus `json:"status"`
	Amount           float64       `json:"amount"`
	RawResponse      string        `json:"raw_response,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// Store is the transactional persistence surface for checkout and the
// order lifecycle. Implementations passed to RunInTx scope every call to
// one database transaction.
type Store interface {
	GetCart(ctx context.Context, userID string) (*cart.Cart, error)
	ClearCart(ctx context.Context, userID string) error

	GetProduct(ctx context.Context, id string) (*catalog.Product, error)
	GetCategory(ctx context.Context, id string) (*catalog.Category, error)
	// DecrementStock conditionally subtracts stock and returns
	// ErrStockConflict when the variant no longer has qty available,
	// which must abort the surrounding transaction.
	DecrementStock(ctx context.Context, productID, variantID string, qty int) error
	IncrementStock(ctx context.Context, productID, variantID string, qty int) error

	InsertOrder(ctx context.Context, o *Order) error
	GetOrder(ctx context.Context, id string) (*Order, error)
	UpdateOrder(ctx context.Context, o *Order) error
	ListOrdersByUser(ctx context.Context, userID string) ([]Order, error)
	ListOrders(ctx context.Context) ([]Order, error)

	GetCoupon(ctx context.Context, code string) (*coupon.Coupon, error)
	MarkCouponUsed(ctx context.Context, code, userID string) error

	GetWallet(ctx context.Context, userID string) (*wallet.Wallet, error)
	SaveWallet(ctx context.Context, w *wallet.Wallet) error

	GetAddressBook(ctx context.Context, userID string) (*address.Book, error)

	InsertPayment(ctx context.Context, p *Payment) error
	GetPaymentByOrder(ctx context.Context, orderID string) (*Payment, error)
	GetPaymentByGatewayOrder(ctx context.Context, gatewayOrderID string) (*Payment, error)
	UpdatePayment(ctx context.Context, p *Payment) error
}

// TxStore runs a function inside one database transaction; any error
// aborts it with no partial state visible to concurrent readers.
type TxStore interface {
	Store
	RunInTx(ctx context.Context, fn func(Store) error) error
}

// GatewayOrder is the handshake returned by the payment gateway; AmountMinor
// is in the smallest currency unit.
type GatewayOrder struct {
	ID          string `json:"id"`
	AmountMinor int64  `json:"amount"`
	Currency    string `json:"currency"`
}

// Gateway is the outbound payment-gateway boundary.
type Gateway interface {
	CreateOrder(ctx context.Context, amount float64, receipt string) (*GatewayOrder, error)
	VerifySignature(gatewayOrderID, paymentID, signature string) bool
}

// Publisher emits lifecycle events after a transaction commits. Satisfied
// by the kafka producer; nil disables publishing.
type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}
