package order_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zuhair246/kitab4u-sub000/internal/domain/order"
	"github.com/Zuhair246/kitab4u-sub000/internal/infrastructure/store/storetest"
)

func walletBalance(t *testing.T, fake *storetest.Fake, userID string) float64 {
	t.Helper()
	w, err := fake.GetWallet(context.Background(), userID)
	require.NoError(t, err)
	return w.Balance
}

// paidOrder seeds a wallet-paid order over prod-1 (2 x 325 + 50 shipping)
// in the given status.
func paidOrder(t *testing.T, fake *storetest.Fake, id string, status order.Status) *order.Order {
	t.Helper()
	o := &order.Order{
		ID:     id,
		UserID: "user-1",
		Items: []order.Item{{
			ID: "it-1", ProductID: "prod-1", VariantID: "var-1",
			Name: "The Overstory", Quantity: 2, UnitPrice: 325, LineTotal: 650,
			Status: status,
		}},
		TotalPrice:     650,
		ShippingCharge: order.ShippingCharge,
		FinalPayable:   700,
		Method:         order.MethodWallet,
		PaymentStatus:  order.PaymentPaid,
		Status:         status,
		ShippingPaid:   true,
		CreatedAt:      time.Now().Add(-time.Hour),
		UpdatedAt:      time.Now().Add(-time.Hour),
	}
	require.NoError(t, fake.InsertOrder(context.Background(), o))
	return o
}

func TestCancelOrderRefundsAndRestocks(t *testing.T) {
	svc, fake, _ := newTestOrderService(t)
	ctx := context.Background()
	paidOrder(t, fake, "ord-1", order.StatusPlaced)

	o, err := svc.CancelOrder(ctx, "ord-1", "user-1", "changed my mind")
	require.NoError(t, err)

	assert.Equal(t, order.StatusCancelled, o.Status)
	assert.Equal(t, order.PaymentRefunded, o.PaymentStatus)
	assert.Zero(t, o.FinalPayable)
	assert.True(t, o.ShippingRefunded)
	assert.Equal(t, "changed my mind", o.CancelReason)
	for _, it := range o.Items {
		assert.Equal(t, order.StatusCancelled, it.Status)
	}

	assert.Equal(t, 12, stockOf(t, fake, "prod-1", "var-1"))
	assert.Equal(t, 700.0, walletBalance(t, fake, "user-1"))
}

// An order still Pending never took stock, so cancelling it must not
// restock, and its unpaid charge is simply voided.
func TestCancelPendingOrderNoRestockNoRefund(t *testing.T) {
	svc, fake, _ := newTestOrderService(t)
	ctx := context.Background()
	o := paidOrder(t, fake, "ord-1", order.StatusPending)
	o.Method = order.MethodOnline
	o.PaymentStatus = order.PaymentPending
	require.NoError(t, fake.UpdateOrder(ctx, o))

	got, err := svc.CancelOrder(ctx, "ord-1", "user-1", "")
	require.NoError(t, err)

	assert.Equal(t, order.StatusCancelled, got.Status)
	assert.Zero(t, got.FinalPayable)
	assert.Equal(t, 10, stockOf(t, fake, "prod-1", "var-1"))
	assert.Zero(t, walletBalance(t, fake, "user-1"))
}

func TestCancelOrderGuards(t *testing.T) {
	svc, fake, _ := newTestOrderService(t)
	ctx := context.Background()

	t.Run("not cancellable after shipping", func(t *testing.T) {
		paidOrder(t, fake, "ord-1", order.StatusShipped)
		_, err := svc.CancelOrder(ctx, "ord-1", "user-1", "")
		assert.ErrorIs(t, err, order.ErrNotCancellable)
	})

	t.Run("wrong owner", func(t *testing.T) {
		paidOrder(t, fake, "ord-2", order.StatusPlaced)
		_, err := svc.CancelOrder(ctx, "ord-2", "user-2", "")
		assert.ErrorIs(t, err, order.ErrNotOwner)
	})
}

// Cancelling one line of a couponed order refunds its proportional share,
// and cancelling the rest returns exactly the remaining charge: the two
// refunds always sum to what was paid.
func TestCancelItemProportionalRefunds(t *testing.T) {
	svc, fake, _ := newTestOrderService(t)
	ctx := context.Background()

	o := &order.Order{
		ID:     "ord-1",
		UserID: "user-1",
		Items: []order.Item{
			{ID: "it-a", ProductID: "prod-1", VariantID: "var-1", Quantity: 2, UnitPrice: 300, LineTotal: 600, Status: order.StatusPlaced},
			{ID: "it-b", ProductID: "prod-2", VariantID: "var-1", Quantity: 1, UnitPrice: 400, LineTotal: 400, Status: order.StatusPlaced},
		},
		TotalPrice:    1000,
		Discount:      100,
		FinalPayable:  900,
		CouponCode:    "SAVE10",
		CouponApplied: true,
		Method:        order.MethodWallet,
		PaymentStatus: order.PaymentPaid,
		Status:        order.StatusPlaced,
		CreatedAt:     time.Now().Add(-time.Hour),
	}
	require.NoError(t, fake.InsertOrder(ctx, o))

	// it-a: 600 minus its 60 discount share leaves 540; dropping the
	// subtotal to 400 reinstates the 50 shipping charge, so 490 comes back.
	got, err := svc.CancelItem(ctx, "ord-1", "user-1", "it-a", "")
	require.NoError(t, err)
	assert.Equal(t, order.StatusPlaced, got.Status)
	assert.Equal(t, 400.0, got.TotalPrice)
	assert.Equal(t, order.ShippingCharge, got.ShippingCharge)
	assert.True(t, got.ShippingReinstated)
	assert.Equal(t, 410.0, got.FinalPayable)
	assert.Equal(t, 490.0, walletBalance(t, fake, "user-1"))
	assert.Equal(t, 12, stockOf(t, fake, "prod-1", "var-1"))

	// it-b: its 360 share plus the 50 still held sweeps the order clean.
	got, err = svc.CancelItem(ctx, "ord-1", "user-1", "it-b", "")
	require.NoError(t, err)
	assert.Equal(t, order.StatusCancelled, got.Status)
	assert.Equal(t, order.PaymentRefunded, got.PaymentStatus)
	assert.Zero(t, got.FinalPayable)
	assert.Equal(t, 900.0, walletBalance(t, fake, "user-1"))
}

func TestCancelItemGuards(t *testing.T) {
	svc, fake, _ := newTestOrderService(t)
	ctx := context.Background()
	paidOrder(t, fake, "ord-1", order.StatusPlaced)

	_, err := svc.CancelItem(ctx, "ord-1", "user-1", "it-404", "")
	assert.ErrorIs(t, err, order.ErrItemNotFound)

	_, err = svc.CancelItem(ctx, "ord-1", "user-1", "it-1", "")
	require.NoError(t, err)
	// Already cancelled.
	_, err = svc.CancelItem(ctx, "ord-1", "user-1", "it-1", "")
	assert.ErrorIs(t, err, order.ErrNotCancellable)
}

func TestReturnFlow(t *testing.T) {
	svc, fake, _ := newTestOrderService(t)
	ctx := context.Background()
	paidOrder(t, fake, "ord-1", order.StatusDelivered)

	o, err := svc.RequestReturn(ctx, "ord-1", "user-1", "damaged cover")
	require.NoError(t, err)
	assert.Equal(t, order.StatusReturnRequested, o.Status)
	assert.Equal(t, "damaged cover", o.ReturnReason)
	for _, it := range o.Items {
		assert.Equal(t, order.StatusReturnRequested, it.Status)
	}

	// Nothing moves until the decision.
	assert.Equal(t, 10, stockOf(t, fake, "prod-1", "var-1"))
	assert.Zero(t, walletBalance(t, fake, "user-1"))

	o, err = svc.DecideReturn(ctx, "ord-1", true)
	require.NoError(t, err)
	assert.Equal(t, order.StatusReturned, o.Status)
	assert.Equal(t, order.PaymentRefunded, o.PaymentStatus)
	assert.Zero(t, o.FinalPayable)
	assert.Equal(t, 12, stockOf(t, fake, "prod-1", "var-1"))
	assert.Equal(t, 700.0, walletBalance(t, fake, "user-1"))
}

func TestReturnRejectedHasNoEffects(t *testing.T) {
	svc, fake, _ := newTestOrderService(t)
	ctx := context.Background()
	paidOrder(t, fake, "ord-1", order.StatusDelivered)

	_, err := svc.RequestReturn(ctx, "ord-1", "user-1", "")
	require.NoError(t, err)

	o, err := svc.DecideReturn(ctx, "ord-1", false)
	require.NoError(t, err)
	assert.Equal(t, order.StatusReturnRejected, o.Status)
	assert.Equal(t, order.PaymentPaid, o.PaymentStatus)
	assert.Equal(t, 700.0, o.FinalPayable)
	assert.Equal(t, 10, stockOf(t, fake, "prod-1", "var-1"))
	assert.Zero(t, walletBalance(t, fake, "user-1"))
}

func TestReturnGuards(t *testing.T) {
	svc, fake, _ := newTestOrderService(t)
	ctx := context.Background()

	t.Run("only delivered orders", func(t *testing.T) {
		paidOrder(t, fake, "ord-1", order.StatusShipped)
		_, err := svc.RequestReturn(ctx, "ord-1", "user-1", "")
		assert.ErrorIs(t, err, order.ErrNotReturnable)
	})

	t.Run("window closed", func(t *testing.T) {
		o := paidOrder(t, fake, "ord-2", order.StatusDelivered)
		o.CreatedAt = time.Now().Add(-15 * 24 * time.Hour)
		require.NoError(t, fake.UpdateOrder(ctx, o))

		_, err := svc.RequestReturn(ctx, "ord-2", "user-1", "")
		assert.ErrorIs(t, err, order.ErrReturnWindowClosed)
	})

	t.Run("decide without a request", func(t *testing.T) {
		paidOrder(t, fake, "ord-3", order.StatusDelivered)
		_, err := svc.DecideReturn(ctx, "ord-3", true)
		assert.ErrorIs(t, err, order.ErrNotReturnable)
	})
}

// Approving one line's return while the other stays with the customer
// refunds that line's share and puts the order back to Delivered.
func TestItemReturnPartialApproval(t *testing.T) {
	svc, fake, _ := newTestOrderService(t)
	ctx := context.Background()

	o := &order.Order{
		ID:     "ord-1",
		UserID: "user-1",
		Items: []order.Item{
			{ID: "it-a", ProductID: "prod-1", VariantID: "var-1", Quantity: 1, UnitPrice: 500, LineTotal: 500, Status: order.StatusDelivered},
			{ID: "it-b", ProductID: "prod-2", VariantID: "var-1", Quantity: 1, UnitPrice: 400, LineTotal: 400, Status: order.StatusDelivered},
		},
		TotalPrice:    900,
		FinalPayable:  900,
		Method:        order.MethodWallet,
		PaymentStatus: order.PaymentPaid,
		Status:        order.StatusDelivered,
		CreatedAt:     time.Now().Add(-time.Hour),
	}
	require.NoError(t, fake.InsertOrder(ctx, o))

	_, err := svc.RequestItemReturn(ctx, "ord-1", "user-1", "it-b", "wrong edition")
	require.NoError(t, err)

	got, err := svc.DecideItemReturn(ctx, "ord-1", "it-b", true)
	require.NoError(t, err)
	assert.Equal(t, order.StatusDelivered, got.Status)
	assert.Equal(t, order.PaymentPaid, got.PaymentStatus)

	itA, _ := got.Item("it-a")
	itB, _ := got.Item("it-b")
	assert.Equal(t, order.StatusDelivered, itA.Status)
	assert.Equal(t, order.StatusReturned, itB.Status)

	// 400 refunded, shipping reinstatement does not apply to returns.
	assert.Equal(t, 500.0, got.FinalPayable)
	assert.Equal(t, 400.0, walletBalance(t, fake, "user-1"))
	assert.Equal(t, 6, stockOf(t, fake, "prod-2", "var-1"))
}

// Rejecting one line's return puts the order back to Delivered so other
// lines still inside the window can be returned on their own.
func TestItemReturnPartialRejection(t *testing.T) {
	svc, fake, _ := newTestOrderService(t)
	ctx := context.Background()

	o := &order.Order{
		ID:     "ord-1",
		UserID: "user-1",
		Items: []order.Item{
			{ID: "it-a", ProductID: "prod-1", VariantID: "var-1", Quantity: 1, UnitPrice: 500, LineTotal: 500, Status: order.StatusDelivered},
			{ID: "it-b", ProductID: "prod-2", VariantID: "var-1", Quantity: 1, UnitPrice: 400, LineTotal: 400, Status: order.StatusDelivered},
		},
		TotalPrice:    900,
		FinalPayable:  900,
		Method:        order.MethodWallet,
		PaymentStatus: order.PaymentPaid,
		Status:        order.StatusDelivered,
		CreatedAt:     time.Now().Add(-time.Hour),
	}
	require.NoError(t, fake.InsertOrder(ctx, o))

	_, err := svc.RequestItemReturn(ctx, "ord-1", "user-1", "it-b", "wrong edition")
	require.NoError(t, err)

	got, err := svc.DecideItemReturn(ctx, "ord-1", "it-b", false)
	require.NoError(t, err)
	assert.Equal(t, order.StatusDelivered, got.Status)

	itA, _ := got.Item("it-a")
	itB, _ := got.Item("it-b")
	assert.Equal(t, order.StatusDelivered, itA.Status)
	assert.Equal(t, order.StatusReturnRejected, itB.Status)
	assert.Equal(t, 900.0, got.FinalPayable)
	assert.Zero(t, walletBalance(t, fake, "user-1"))

	// The other line remains returnable.
	_, err = svc.RequestItemReturn(ctx, "ord-1", "user-1", "it-a", "damaged")
	require.NoError(t, err)
	got, err = svc.DecideItemReturn(ctx, "ord-1", "it-a", true)
	require.NoError(t, err)

	itA, _ = got.Item("it-a")
	assert.Equal(t, order.StatusReturned, itA.Status)
	assert.Equal(t, 400.0, got.FinalPayable)
	assert.Equal(t, 500.0, walletBalance(t, fake, "user-1"))
	assert.Equal(t, 11, stockOf(t, fake, "prod-1", "var-1"))
}

func TestUpdateStatusForwardChain(t *testing.T) {
	svc, fake, _ := newTestOrderService(t)
	ctx := context.Background()
	paidOrder(t, fake, "ord-1", order.StatusPlaced)

	o, err := svc.UpdateStatus(ctx, "ord-1", order.StatusShipped)
	require.NoError(t, err)
	assert.Equal(t, order.StatusShipped, o.Status)
	for _, it := range o.Items {
		assert.Equal(t, order.StatusShipped, it.Status)
	}

	// No moving backwards.
	_, err = svc.UpdateStatus(ctx, "ord-1", order.StatusPacked)
	assert.ErrorIs(t, err, order.ErrInvalidTransition)
}

// Delivery completes a cash-on-delivery payment.
func TestUpdateStatusDeliveredMarksCODPaid(t *testing.T) {
	svc, fake, _ := newTestOrderService(t)
	ctx := context.Background()
	o := paidOrder(t, fake, "ord-1", order.StatusPlaced)
	o.Method = order.MethodCOD
	o.PaymentStatus = order.PaymentPending
	require.NoError(t, fake.UpdateOrder(ctx, o))

	got, err := svc.UpdateStatus(ctx, "ord-1", order.StatusDelivered)
	require.NoError(t, err)
	assert.Equal(t, order.StatusDelivered, got.Status)
	assert.Equal(t, order.PaymentPaid, got.PaymentStatus)
}

func TestUpdateStatusCancelDelegates(t *testing.T) {
	svc, fake, _ := newTestOrderService(t)
	ctx := context.Background()
	paidOrder(t, fake, "ord-1", order.StatusPlaced)

	o, err := svc.UpdateStatus(ctx, "ord-1", order.StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, order.StatusCancelled, o.Status)
	assert.Equal(t, 700.0, walletBalance(t, fake, "user-1"))
	assert.Equal(t, 12, stockOf(t, fake, "prod-1", "var-1"))
}

func TestUpdateStatusReturnedSettlesEverything(t *testing.T) {
	svc, fake, _ := newTestOrderService(t)
	ctx := context.Background()
	paidOrder(t, fake, "ord-1", order.StatusDelivered)

	o, err := svc.UpdateStatus(ctx, "ord-1", order.StatusReturned)
	require.NoError(t, err)
	assert.Equal(t, order.StatusReturned, o.Status)
	assert.Equal(t, order.PaymentRefunded, o.PaymentStatus)
	assert.Equal(t, 700.0, walletBalance(t, fake, "user-1"))
	assert.Equal(t, 12, stockOf(t, fake, "prod-1", "var-1"))
}
