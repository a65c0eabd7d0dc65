package order

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/Zuhair246/kitab4u-sub000/internal/domain/catalog"
	"github.com/Zuhair246/kitab4u-sub000/internal/domain/coupon"
	"github.com/Zuhair246/kitab4u-sub000/internal/domain/pricing"
	"github.com/Zuhair246/kitab4u-sub000/internal/domain/wallet"
	"github.com/Zuhair246/kitab4u-sub000/internal/events"
	"github.com/google/uuid"
)

// Service orchestrates checkout, payment verification and the order
// lifecycle.
type Service struct {
	store     TxStore
	pricing   *pricing.Engine
	gateway   Gateway
	publisher Publisher
	now       func() time.Time
}

func NewService(store TxStore, pr *pricing.Engine, gw Gateway, pub Publisher) *Service {
	return &Service{store: store, pricing: pr, gateway: gw, publisher: pub, now: time.Now}
}

// CheckoutInput selects what to buy with: a saved address, a payment
// method and, optionally, the coupon quote held in the session.
type CheckoutInput struct {
	UserID    string
	AddressID string
	Method    PaymentMethod
	Quote     *coupon.Quote
}

// CheckoutResult carries the persisted order plus, for online payments,
// the gateway handshake the client needs to open the payment widget.
type CheckoutResult struct {
	Order   *Order        `json:"order"`
	Payment *Payment      `json:"payment,omitempty"`
	Gateway *GatewayOrder `json:"gateway,omitempty"`
}

// Checkout converts the user's cart into an order.
//
// Prices are recomputed per line from the live catalog and offers; cart
// snapshots are never trusted. For COD and Wallet the order persistence,
// stock decrements, cart clearing and coupon consumption all commit in one
// transaction. For Online payments the order is persisted Pending and
// stock/cart/coupon effects are deferred to VerifyPayment.
func (s *Service) Checkout(ctx context.Context, in CheckoutInput) (*CheckoutResult, error) {
	switch in.Method {
	case MethodCOD, MethodOnline, MethodWallet:
	default:
		return nil, ErrInvalidMethod
	}

	var result *CheckoutResult
	err := s.store.RunInTx(ctx, func(tx Store) error {
		c, err := tx.GetCart(ctx, in.UserID)
		if err != nil {
			return err
		}
		if c.Empty() {
			return ErrCartEmpty
		}

		now := s.now()
		itemStatus := StatusPlaced
		if in.Method == MethodOnline {
			itemStatus = StatusPending
		}

		var items []Item
		var subtotal float64
		for _, line := range c.Lines {
			p, err := tx.GetProduct(ctx, line.ProductID)
			if errors.Is(err, catalog.ErrProductNotFound) {
				return fmt.Errorf("%w: %s is no longer available", ErrCartInvalid, line.Name)
			}
			if err != nil {
				return err
			}
			cat, err := tx.GetCategory(ctx, p.CategoryID)
			if err != nil {
				return err
			}
			v, ok := p.Variant(line.VariantID)
			if !ok || p.Blocked || !cat.Listed {
				return fmt.Errorf("%w: %s is no longer available", ErrCartInvalid, p.Name)
			}
			if v.Stock < line.Quantity {
				return fmt.Errorf("%w: %s is out of stock", ErrCartInvalid, p.Name)
			}

			quote, err := s.pricing.Quote(ctx, *v, p.CategoryID, p.ID)
			if err != nil {
				return err
			}
			lineTotal := quote.FinalPrice * float64(line.Quantity)
			subtotal += lineTotal
			items = append(items, Item{
				ID:        uuid.New().String(),
				ProductID: p.ID,
				VariantID: v.ID,
				Name:      p.Name,
				CoverType: v.CoverType,
				Quantity:  line.Quantity,
				UnitPrice: quote.FinalPrice,
				LineTotal: lineTotal,
				Status:    itemStatus,
			})
		}

		shipping := 0.0
		if subtotal < FreeShippingThreshold {
			shipping = ShippingCharge
		}
		finalAmount := subtotal + shipping

		discount := 0.0
		finalPayable := finalAmount
		couponCode := ""
		if in.Quote != nil {
			cp, err := tx.GetCoupon(ctx, in.Quote.Code)
			if err != nil || !cp.UsableAt(now) || cp.UsedByUser(in.UserID) {
				return ErrCouponUnavailable
			}
			finalPayable = in.Quote.DiscountedPrice
			discount = math.Round(in.Quote.DiscountAmount)
			couponCode = cp.Code
		}

		book, err := tx.GetAddressBook(ctx, in.UserID)
		if err != nil {
			return err
		}
		entry, ok := book.Find(in.AddressID)
		if !ok || entry.IsDeleted {
			return fmt.Errorf("%w: delivery address", ErrOrderNotFound)
		}

		o := &Order{
			ID:             uuid.New().String(),
			UserID:         in.UserID,
			Items:          items,
			TotalPrice:     subtotal,
			ShippingCharge: shipping,
			Discount:       discount,
			FinalPayable:   finalPayable,
			CouponCode:     couponCode,
			CouponApplied:  couponCode != "",
			Address: Address{
				Name:    entry.Name,
				Phone:   entry.Phone,
				Line1:   entry.Line1,
				Line2:   entry.Line2,
				City:    entry.City,
				State:   entry.State,
				Pincode: entry.Pincode,
			},
			Method:       in.Method,
			ShippingPaid: shipping > 0,
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		switch in.Method {
		case MethodCOD:
			if finalPayable > CODLimit {
				return ErrCODLimitExceeded
			}
			o.Status = StatusPlaced
			o.PaymentStatus = PaymentPending
			if err := tx.InsertOrder(ctx, o); err != nil {
				return err
			}
			if err := s.commitStockAndCart(ctx, tx, o); err != nil {
				return err
			}
			result = &CheckoutResult{Order: o}

		case MethodWallet:
			w, err := tx.GetWallet(ctx, in.UserID)
			if err != nil {
				return err
			}
			if w.Balance < finalPayable {
				return ErrInsufficientBalance
			}
			if _, err := w.Apply(wallet.Debit, finalPayable, "Payment for order "+o.ID, now); err != nil {
				return err
			}
			if err := tx.SaveWallet(ctx, w); err != nil {
				return err
			}
			o.Status = StatusPlaced
			o.PaymentStatus = PaymentPaid
			if err := tx.InsertOrder(ctx, o); err != nil {
				return err
			}
			if err := s.commitStockAndCart(ctx, tx, o); err != nil {
				return err
			}
			result = &CheckoutResult{Order: o}

		case MethodOnline:
			gw, err := s.gateway.CreateOrder(ctx, finalPayable, o.ID)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
			}
			o.Status = StatusPending
			o.PaymentStatus = PaymentPending
			if err := tx.InsertOrder(ctx, o); err != nil {
				return err
			}
			p := &Payment{
				OrderID:        o.ID,
				GatewayOrderID: gw.ID,
				Method:         MethodOnline,
				Status:         PaymentPending,
				Amount:         finalPayable,
				CreatedAt:      now,
				UpdatedAt:      now,
			}
			if err := tx.InsertPayment(ctx, p); err != nil {
				return err
			}
			result = &CheckoutResult{Order: o, Payment: p, Gateway: gw}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Order.Status == StatusPlaced {
		s.publishOrderEvent(ctx, events.TypeOrderPlaced, result.Order)
	}
	return result, nil
}

// commitStockAndCart applies the side effects of a confirmed payment:
// conditional stock decrements, cart clearing and coupon consumption.
func (s *Service) commitStockAndCart(ctx context.Context, tx Store, o *Order) error {
	for _, it := range o.Items {
		if err := tx.DecrementStock(ctx, it.ProductID, it.VariantID, it.Quantity); err != nil {
			return err
		}
	}
	if err := tx.ClearCart(ctx, o.UserID); err != nil {
		return err
	}
	if o.CouponApplied {
		if err := tx.MarkCouponUsed(ctx, o.CouponCode, o.UserID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) publishOrderEvent(ctx context.Context, eventType string, o *Order) {
	if s.publisher == nil {
		return
	}
	ev := events.New(eventType, o.ID, o.UserID, o.FinalPayable)
	for _, it := range o.Items {
		ev.Items = append(ev.Items, events.Item{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}
	if err := s.publisher.Publish(ctx, o.ID, ev); err != nil {
		log.Printf("[Order] Failed to publish %s for order %s: %v", eventType, o.ID, err)
	}
}

// Get returns an order, enforcing ownership for non-empty userID.
func (s *Service) Get(ctx context.Context, orderID, userID string) (*Order, error) {
	o, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if userID != "" && o.UserID != userID {
		return nil, ErrNotOwner
	}
	return o, nil
}

func (s *Service) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	return s.store.ListOrdersByUser(ctx, userID)
}

func (s *Service) ListAll(ctx context.Context) ([]Order, error) {
	return s.store.ListOrders(ctx)
}
