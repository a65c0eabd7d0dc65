package order

import (
	"context"
	"log"
	"math"
	"time"

	"github.com/Zuhair246/kitab4u-sub000/internal/domain/wallet"
	"github.com/Zuhair246/kitab4u-sub000/internal/events"
)

// cancellableFrom lists the order statuses a customer may cancel from.
var cancellableFrom = map[Status]bool{
	StatusPending: true,
	StatusPlaced:  true,
	StatusPacked:  true,
}

// forwardRank orders the fulfilment chain for admin status updates.
var forwardRank = map[Status]int{
	StatusPending:        0,
	StatusPlaced:         1,
	StatusPacked:         2,
	StatusShipped:        3,
	StatusOutForDelivery: 4,
	StatusDelivered:      5,
}

// refundShare is the wallet refund owed for settling one line: the line
// total minus its proportional share of the order-level coupon discount.
// The share denominator is the original pre-discount subtotal (including
// already-cancelled lines) so sequential settlements allocate exactly the
// original discount between them. Clamped to the order's remaining
// FinalPayable so repeated partial refunds can never go negative.
func (o *Order) refundShare(it *Item) float64 {
	refund := it.LineTotal
	if o.CouponApplied {
		if base := o.originalSubtotal(); base > 0 {
			refund -= math.Round(o.Discount * it.LineTotal / base)
		}
	}
	if refund < 0 {
		refund = 0
	}
	if refund > o.FinalPayable {
		refund = o.FinalPayable
	}
	return refund
}

// settleItem marks one line Cancelled or Returned and rebalances the
// order's money fields. FinalPayable tracks the money currently held
// against the order (for paid orders) or still owed (for unpaid ones);
// every refund comes out of it, which makes double-refunding structurally
// impossible. Returns the wallet refund due, zero for unpaid orders.
//
// When cancelling a line drops the remaining subtotal under the
// free-shipping threshold, the previously waived shipping charge is
// reinstated by deducting it from this settlement rather than billing the
// customer separately.
func (o *Order) settleItem(it *Item, to Status) (refund float64) {
	share := o.refundShare(it)
	it.Status = to

	o.TotalPrice -= it.LineTotal
	if o.TotalPrice < 0 {
		o.TotalPrice = 0
	}

	deduction := share
	if len(o.openItems()) > 0 && to == StatusCancelled &&
		o.ShippingCharge == 0 && o.TotalPrice < FreeShippingThreshold {
		o.ShippingCharge = ShippingCharge
		o.ShippingReinstated = true
		deduction -= ShippingCharge
		if deduction < 0 {
			deduction = 0
		}
	}

	o.FinalPayable -= deduction
	if o.FinalPayable < 0 {
		o.FinalPayable = 0
	}

	if o.PaymentStatus == PaymentPaid || o.PaymentStatus == PaymentRefunded {
		refund = deduction
	}
	return refund
}

// sweepIfSettled finishes an order whose every line ended Cancelled or
// Returned: whatever money is still held (shipping included, plus rounding
// residue from proportional shares) joins the refund, and the payment is
// marked Refunded.
func (o *Order) sweepIfSettled(to Status) (extra float64) {
	if !o.allItemsSettled() {
		return 0
	}
	o.Status = to
	if o.PaymentStatus == PaymentPaid || o.PaymentStatus == PaymentRefunded {
		extra = o.FinalPayable
		if o.ShippingPaid {
			o.ShippingRefunded = true
		}
		o.PaymentStatus = PaymentRefunded
	}
	o.FinalPayable = 0
	return extra
}

func creditWallet(ctx context.Context, tx Store, userID string, amount float64, desc string, now time.Time) error {
	if amount <= 0 {
		return nil
	}
	w, err := tx.GetWallet(ctx, userID)
	if err != nil {
		return err
	}
	if _, err := w.Apply(wallet.Credit, amount, desc, now); err != nil {
		return err
	}
	return tx.SaveWallet(ctx, w)
}

// CancelOrder cancels a whole order. Permitted from Pending, Placed and
// Packed only. Stock is restored unless the order was still Pending (stock
// was never decremented for unconfirmed online payments), and the full
// remaining FinalPayable is refunded to the wallet when the order was paid.
func (s *Service) CancelOrder(ctx context.Context, orderID, userID, reason string) (*Order, error) {
	var cancelled *Order
	var refunded float64
	err := s.store.RunInTx(ctx, func(tx Store) error {
		o, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if userID != "" && o.UserID != userID {
			return ErrNotOwner
		}
		if !cancellableFrom[o.Status] {
			return ErrNotCancellable
		}

		restock := o.Status != StatusPending
		for _, it := range o.openItems() {
			it.Status = StatusCancelled
			if restock {
				if err := tx.IncrementStock(ctx, it.ProductID, it.VariantID, it.Quantity); err != nil {
					return err
				}
			}
		}

		now := s.now()
		var refund float64
		if o.PaymentStatus == PaymentPaid {
			refund = o.FinalPayable
			o.PaymentStatus = PaymentRefunded
			if o.ShippingPaid {
				o.ShippingRefunded = true
			}
		}
		o.FinalPayable = 0
		o.Status = StatusCancelled
		o.CancelReason = reason
		o.UpdatedAt = now

		if err := creditWallet(ctx, tx, o.UserID, refund, "Refund for cancelled order "+o.ID, now); err != nil {
			return err
		}
		if err := tx.UpdateOrder(ctx, o); err != nil {
			return err
		}
		cancelled = o
		refunded = refund
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishOrderEvent(ctx, events.TypeOrderCancelled, cancelled)
	if refunded > 0 {
		s.publishRefund(ctx, cancelled, refunded)
	}
	return cancelled, nil
}

// CancelItem cancels a single line with a proportional refund of the
// coupon-adjusted amount.
func (s *Service) CancelItem(ctx context.Context, orderID, userID, itemID, reason string) (*Order, error) {
	var updated *Order
	var refunded float64
	err := s.store.RunInTx(ctx, func(tx Store) error {
		o, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if userID != "" && o.UserID != userID {
			return ErrNotOwner
		}
		if !cancellableFrom[o.Status] {
			return ErrNotCancellable
		}
		it, ok := o.Item(itemID)
		if !ok {
			return ErrItemNotFound
		}
		if it.Status.Terminal() {
			return ErrNotCancellable
		}

		restock := o.Status != StatusPending
		refund := o.settleItem(it, StatusCancelled)
		if restock {
			if err := tx.IncrementStock(ctx, it.ProductID, it.VariantID, it.Quantity); err != nil {
				return err
			}
		}
		refund += o.sweepIfSettled(StatusCancelled)
		if o.Status == StatusCancelled {
			o.CancelReason = reason
		}

		now := s.now()
		o.UpdatedAt = now
		if err := creditWallet(ctx, tx, o.UserID, refund, "Refund for cancelled item in order "+o.ID, now); err != nil {
			return err
		}
		if err := tx.UpdateOrder(ctx, o); err != nil {
			return err
		}
		updated = o
		refunded = refund
		return nil
	})
	if err != nil {
		return nil, err
	}

	if updated.Status == StatusCancelled {
		s.publishOrderEvent(ctx, events.TypeOrderCancelled, updated)
	}
	if refunded > 0 {
		s.publishRefund(ctx, updated, refunded)
	}
	return updated, nil
}

// RequestReturn asks to return a delivered order, within 14 days of
// placement. The request waits for admin approval; no stock or money moves
// yet.
func (s *Service) RequestReturn(ctx context.Context, orderID, userID, reason string) (*Order, error) {
	return s.requestReturn(ctx, orderID, userID, "", reason)
}

// RequestItemReturn asks to return one delivered line.
func (s *Service) RequestItemReturn(ctx context.Context, orderID, userID, itemID, reason string) (*Order, error) {
	return s.requestReturn(ctx, orderID, userID, itemID, reason)
}

func (s *Service) requestReturn(ctx context.Context, orderID, userID, itemID, reason string) (*Order, error) {
	var updated *Order
	err := s.store.RunInTx(ctx, func(tx Store) error {
		o, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if userID != "" && o.UserID != userID {
			return ErrNotOwner
		}
		if o.Status != StatusDelivered {
			return ErrNotReturnable
		}
		if s.now().Sub(o.CreatedAt) > ReturnWindow {
			return ErrReturnWindowClosed
		}

		if itemID == "" {
			for i := range o.Items {
				if o.Items[i].Status == StatusDelivered {
					o.Items[i].Status = StatusReturnRequested
				}
			}
		} else {
			it, ok := o.Item(itemID)
			if !ok {
				return ErrItemNotFound
			}
			if it.Status != StatusDelivered {
				return ErrNotReturnable
			}
			it.Status = StatusReturnRequested
		}
		o.Status = StatusReturnRequested
		o.ReturnReason = reason
		o.UpdatedAt = s.now()
		if err := tx.UpdateOrder(ctx, o); err != nil {
			return err
		}
		updated = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishOrderEvent(ctx, events.TypeReturnRequested, updated)
	return updated, nil
}

// DecideReturn approves or rejects every requested line on an order
// (admin). Approval restores stock, credits the proportional refund to the
// wallet and marks the payment Refunded once all lines are settled;
// rejection has no stock or money effect.
func (s *Service) DecideReturn(ctx context.Context, orderID string, approve bool) (*Order, error) {
	return s.decideReturn(ctx, orderID, "", approve)
}

// DecideItemReturn approves or rejects one requested line (admin).
func (s *Service) DecideItemReturn(ctx context.Context, orderID, itemID string, approve bool) (*Order, error) {
	return s.decideReturn(ctx, orderID, itemID, approve)
}

func (s *Service) decideReturn(ctx context.Context, orderID, itemID string, approve bool) (*Order, error) {
	var updated *Order
	var refunded float64
	err := s.store.RunInTx(ctx, func(tx Store) error {
		o, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if o.Status != StatusReturnRequested {
			return ErrNotReturnable
		}

		var requested []*Item
		if itemID == "" {
			for i := range o.Items {
				if o.Items[i].Status == StatusReturnRequested {
					requested = append(requested, &o.Items[i])
				}
			}
		} else {
			it, ok := o.Item(itemID)
			if !ok {
				return ErrItemNotFound
			}
			if it.Status != StatusReturnRequested {
				return ErrNotReturnable
			}
			requested = append(requested, it)
		}
		if len(requested) == 0 {
			return ErrNotReturnable
		}

		now := s.now()
		if !approve {
			for _, it := range requested {
				it.Status = StatusReturnRejected
			}
			if !o.hasRequestedItems() {
				o.Status = StatusReturnRejected
				if len(o.openItems()) > 0 {
					// Partial rejection: remaining delivered lines can
					// still be returned while the window is open.
					o.Status = StatusDelivered
				}
			}
			o.UpdatedAt = now
			if err := tx.UpdateOrder(ctx, o); err != nil {
				return err
			}
			updated = o
			return nil
		}

		var refund float64
		for _, it := range requested {
			r := o.settleItem(it, StatusReturned)
			refund += r
			if err := tx.IncrementStock(ctx, it.ProductID, it.VariantID, it.Quantity); err != nil {
				return err
			}
		}
		refund += o.sweepIfSettled(StatusReturned)
		if o.Status == StatusReturnRequested && !o.hasRequestedItems() {
			// Partial approval: remaining lines are still with the customer.
			o.Status = StatusDelivered
		}

		o.UpdatedAt = now
		if err := creditWallet(ctx, tx, o.UserID, refund, "Refund for returned items in order "+o.ID, now); err != nil {
			return err
		}
		if err := tx.UpdateOrder(ctx, o); err != nil {
			return err
		}
		updated = o
		refunded = refund
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishOrderEvent(ctx, events.TypeReturnDecided, updated)
	if refunded > 0 {
		s.publishRefund(ctx, updated, refunded)
	}
	return updated, nil
}

// hasRequestedItems reports whether any line still awaits a return
// decision.
func (o *Order) hasRequestedItems() bool {
	for _, it := range o.Items {
		if it.Status == StatusReturnRequested {
			return true
		}
	}
	return false
}

// UpdateStatus applies an admin fulfilment update. Forward moves follow
// the Placed -> Packed -> Shipped -> Out for Delivery -> Delivered chain
// and propagate to every non-settled line; moving into Cancelled or
// Returned restores stock and refunds like the customer-driven paths.
// Delivering a COD order marks it Paid.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, to Status) (*Order, error) {
	if to == StatusCancelled {
		return s.CancelOrder(ctx, orderID, "", "cancelled by admin")
	}

	var updated *Order
	var refunded float64
	err := s.store.RunInTx(ctx, func(tx Store) error {
		o, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}

		if to == StatusReturned {
			if o.Status.Terminal() {
				return ErrInvalidTransition
			}
			var refund float64
			for _, it := range o.openItems() {
				r := o.settleItem(it, StatusReturned)
				refund += r
				if err := tx.IncrementStock(ctx, it.ProductID, it.VariantID, it.Quantity); err != nil {
					return err
				}
			}
			refund += o.sweepIfSettled(StatusReturned)
			o.Status = StatusReturned
			now := s.now()
			o.UpdatedAt = now
			if err := creditWallet(ctx, tx, o.UserID, refund, "Refund for returned order "+o.ID, now); err != nil {
				return err
			}
			if err := tx.UpdateOrder(ctx, o); err != nil {
				return err
			}
			updated = o
			refunded = refund
			return nil
		}

		fromRank, fromOK := forwardRank[o.Status]
		toRank, toOK := forwardRank[to]
		if !fromOK || !toOK || toRank <= fromRank {
			return ErrInvalidTransition
		}

		o.Status = to
		for i := range o.Items {
			if !o.Items[i].Status.Terminal() && o.Items[i].Status != StatusReturnRequested {
				o.Items[i].Status = to
			}
		}
		if to == StatusDelivered && o.Method == MethodCOD && o.PaymentStatus == PaymentPending {
			o.PaymentStatus = PaymentPaid
		}
		o.UpdatedAt = s.now()
		if err := tx.UpdateOrder(ctx, o); err != nil {
			return err
		}
		updated = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	if refunded > 0 {
		s.publishRefund(ctx, updated, refunded)
	}
	return updated, nil
}

func (s *Service) publishRefund(ctx context.Context, o *Order, amount float64) {
	if s.publisher == nil {
		return
	}
	ev := events.New(events.TypeRefundIssued, o.ID, o.UserID, amount)
	if err := s.publisher.Publish(ctx, o.ID, ev); err != nil {
		log.Printf("[Order] Failed to publish refund event for order %s: %v", o.ID, err)
	}
}
