package order

import (
	"context"
	"fmt"

	"github.com/Zuhair246/kitab4u-sub000/internal/events"
)

// Callback is the gateway's payment-completion payload.
type Callback struct {
	GatewayOrderID   string `json:"gateway_order_id"`
	GatewayPaymentID string `json:"gateway_payment_id"`
	Signature        string `json:"signature"`
	Raw              string `json:"-"`
}

// VerifyResult distinguishes a verified payment from a recoverable
// failure. A failed verification is a soft outcome: the payment record is
// marked Failed and the client is redirected to retry, not shown an error
// page.
type VerifyResult struct {
	OrderID  string `json:"order_id"`
	Verified bool   `json:"verified"`
	Reason   string `json:"reason,omitempty"`
}

// VerifyPayment settles an online payment callback inside one transaction.
//
// A payment already settled (Paid or Refunded) is rejected with
// ErrAlreadyProcessed and causes no further mutation, which makes
// duplicate gateway callbacks harmless. A missing or mismatching
// signature marks the payment Failed and leaves the order Pending for
// retry. A valid signature marks the payment Paid, places the order, and
// only then decrements stock via a conditional update that aborts the
// whole transaction if stock was lost to a concurrent sale.
//
// A callback for an order cancelled in the meantime never resurrects it:
// the captured amount is credited to the customer's wallet and the
// payment closed out as Refunded.
func (s *Service) VerifyPayment(ctx context.Context, cb Callback) (*VerifyResult, error) {
	var result *VerifyResult
	var placed *Order
	var refundedOnCancel *Order
	var refundAmount float64
	err := s.store.RunInTx(ctx, func(tx Store) error {
		p, err := tx.GetPaymentByGatewayOrder(ctx, cb.GatewayOrderID)
		if err != nil {
			return ErrPaymentNotFound
		}
		if p.Status == PaymentPaid || p.Status == PaymentRefunded {
			return ErrAlreadyProcessed
		}
		o, err := tx.GetOrder(ctx, p.OrderID)
		if err != nil {
			return err
		}
		now := s.now()

		valid := cb.GatewayPaymentID != "" && cb.Signature != "" &&
			s.gateway.VerifySignature(cb.GatewayOrderID, cb.GatewayPaymentID, cb.Signature)

		if o.Status == StatusCancelled {
			if !valid {
				return ErrOrderCancelled
			}
			p.Status = PaymentRefunded
			p.GatewayPaymentID = cb.GatewayPaymentID
			p.RawResponse = cb.Raw
			p.UpdatedAt = now
			if err := tx.UpdatePayment(ctx, p); err != nil {
				return err
			}
			o.PaymentStatus = PaymentRefunded
			o.UpdatedAt = now
			if err := tx.UpdateOrder(ctx, o); err != nil {
				return err
			}
			if err := creditWallet(ctx, tx, o.UserID, p.Amount, "Refund for payment captured after cancellation of order "+o.ID, now); err != nil {
				return err
			}
			result = &VerifyResult{OrderID: o.ID, Verified: true, Reason: "order was cancelled; amount credited to wallet"}
			refundedOnCancel = o
			refundAmount = p.Amount
			return nil
		}

		if !valid {
			p.Status = PaymentFailed
			p.GatewayPaymentID = cb.GatewayPaymentID
			p.RawResponse = cb.Raw
			p.UpdatedAt = now
			if err := tx.UpdatePayment(ctx, p); err != nil {
				return err
			}
			o.PaymentStatus = PaymentFailed
			o.UpdatedAt = now
			if err := tx.UpdateOrder(ctx, o); err != nil {
				return err
			}
			result = &VerifyResult{OrderID: o.ID, Verified: false, Reason: "signature verification failed"}
			return nil
		}

		p.Status = PaymentPaid
		p.GatewayPaymentID = cb.GatewayPaymentID
		p.RawResponse = cb.Raw
		p.UpdatedAt = now
		if err := tx.UpdatePayment(ctx, p); err != nil {
			return err
		}

		o.Status = StatusPlaced
		o.PaymentStatus = PaymentPaid
		o.UpdatedAt = now
		for i := range o.Items {
			if o.Items[i].Status == StatusPending {
				o.Items[i].Status = StatusPlaced
			}
		}
		if err := tx.UpdateOrder(ctx, o); err != nil {
			return err
		}
		if err := s.commitStockAndCart(ctx, tx, o); err != nil {
			return err
		}
		result = &VerifyResult{OrderID: o.ID, Verified: true}
		placed = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	if placed != nil {
		s.publishOrderEvent(ctx, events.TypeOrderPlaced, placed)
	}
	if refundedOnCancel != nil {
		s.publishRefund(ctx, refundedOnCancel, refundAmount)
	}
	return result, nil
}

// RetryPayment creates a fresh gateway order for a failed online payment,
// reusing the existing payment record. Paid payments and cancelled orders
// cannot be retried.
func (s *Service) RetryPayment(ctx context.Context, orderID, userID string) (*CheckoutResult, error) {
	var result *CheckoutResult
	err := s.store.RunInTx(ctx, func(tx Store) error {
		o, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if o.UserID != userID {
			return ErrNotOwner
		}
		if o.Status == StatusCancelled {
			return ErrOrderCancelled
		}
		p, err := tx.GetPaymentByOrder(ctx, orderID)
		if err != nil {
			return ErrPaymentNotFound
		}
		if p.Status == PaymentPaid || p.Status == PaymentRefunded {
			return ErrAlreadyProcessed
		}

		gw, err := s.gateway.CreateOrder(ctx, p.Amount, o.ID)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
		}
		p.GatewayOrderID = gw.ID
		p.GatewayPaymentID = ""
		p.Status = PaymentPending
		p.UpdatedAt = s.now()
		if err := tx.UpdatePayment(ctx, p); err != nil {
			return err
		}
		o.PaymentStatus = PaymentPending
		o.UpdatedAt = p.UpdatedAt
		if err := tx.UpdateOrder(ctx, o); err != nil {
			return err
		}
		result = &CheckoutResult{Order: o, Payment: p, Gateway: gw}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
