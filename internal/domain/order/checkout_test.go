package order_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zuhair246/kitab4u-sub000/internal/domain/address"
	"github.com/Zuhair246/kitab4u-sub000/internal/domain/cart"
	"github.com/Zuhair246/kitab4u-sub000/internal/domain/catalog"
	"github.com/Zuhair246/kitab4u-sub000/internal/domain/coupon"
	"github.com/Zuhair246/kitab4u-sub000/internal/domain/order"
	"github.com/Zuhair246/kitab4u-sub000/internal/domain/pricing"
	"github.com/Zuhair246/kitab4u-sub000/internal/domain/wallet"
	"github.com/Zuhair246/kitab4u-sub000/internal/infrastructure/store/storetest"
)

// fakeGateway accepts exactly one signature value, so tests can exercise
// both verification outcomes.
type fakeGateway struct {
	created int
	down    bool
}

const goodSignature = "valid-signature"

func (g *fakeGateway) CreateOrder(_ context.Context, amount float64, receipt string) (*order.GatewayOrder, error) {
	if g.down {
		return nil, fmt.Errorf("connection refused")
	}
	g.created++
	return &order.GatewayOrder{
		ID:          fmt.Sprintf("gw-%s-%d", receipt, g.created),
		AmountMinor: int64(amount * 100),
		Currency:    "INR",
	}, nil
}

func (g *fakeGateway) VerifySignature(_, _, signature string) bool {
	return signature == goodSignature
}

func newTestOrderService(t *testing.T) (*order.Service, *storetest.Fake, *fakeGateway) {
	t.Helper()
	fake := storetest.NewFake()
	gw := &fakeGateway{}
	svc := order.NewService(fake, pricing.NewEngine(fake), gw, nil)

	ctx := context.Background()
	require.NoError(t, fake.SaveCategory(ctx, &catalog.Category{ID: "cat-1", Name: "Fiction", Listed: true}))
	require.NoError(t, fake.SaveProduct(ctx, &catalog.Product{
		ID: "prod-1", Name: "The Overstory", CategoryID: "cat-1",
		Variants: []catalog.Variant{
			{ID: "var-1", CoverType: "Paperback", OriginalPrice: 400, DiscountPrice: 325, Stock: 10},
		},
	}))
	require.NoError(t, fake.SaveProduct(ctx, &catalog.Product{
		ID: "prod-2", Name: "Pachinko", CategoryID: "cat-1",
		Variants: []catalog.Variant{
			{ID: "var-1", CoverType: "Hardcover", OriginalPrice: 400, DiscountPrice: 400, Stock: 5},
		},
	}))
	require.NoError(t, fake.SaveAddressBook(ctx, &address.Book{
		UserID: "user-1",
		Entries: []address.Entry{{
			ID: "addr-1", Name: "Reader", Phone: "9999999999",
			Line1: "12 MG Road", City: "Kochi", State: "Kerala", Pincode: "682001",
			IsDefault: true,
		}},
	}))
	return svc, fake, gw
}

func setCart(t *testing.T, fake *storetest.Fake, userID string, lines ...cart.Line) {
	t.Helper()
	require.NoError(t, fake.SaveCart(context.Background(), &cart.Cart{
		UserID: userID, Lines: lines, UpdatedAt: time.Now(),
	}))
}

func stockOf(t *testing.T, fake *storetest.Fake, productID, variantID string) int {
	t.Helper()
	p, err := fake.GetProduct(context.Background(), productID)
	require.NoError(t, err)
	v, ok := p.Variant(variantID)
	require.True(t, ok)
	return v.Stock
}

func TestCheckoutCOD(t *testing.T) {
	svc, fake, _ := newTestOrderService(t)
	ctx := context.Background()
	setCart(t, fake, "user-1", cart.Line{ProductID: "prod-1", VariantID: "var-1", Quantity: 2})

	res, err := svc.Checkout(ctx, order.CheckoutInput{
		UserID: "user-1", AddressID: "addr-1", Method: order.MethodCOD,
	})
	require.NoError(t, err)

	o := res.Order
	assert.Equal(t, order.StatusPlaced, o.Status)
	assert.Equal(t, order.PaymentPending, o.PaymentStatus)
	assert.Equal(t, 650.0, o.TotalPrice)
	assert.Equal(t, order.ShippingCharge, o.ShippingCharge)
	assert.Equal(t, 700.0, o.FinalPayable)
	assert.True(t, o.ShippingPaid)
	assert.Equal(t, "Kochi", o.Address.City)

	// Stock taken and cart cleared in the same transaction.
	assert.Equal(t, 8, stockOf(t, fake, "prod-1", "var-1"))
	c, err := fake.GetCart(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, c.Empty())
}

func TestCheckoutFreeShippingAtThreshold(t *testing.T) {
	svc, fake, _ := newTestOrderService(t)
	// 325 + 400 = 725, above the free-shipping threshold.
	setCart(t, fake, "user-1",
		cart.Line{ProductID: "prod-1", VariantID: "var-1", Quantity: 1},
		cart.Line{ProductID: "prod-2", VariantID: "var-1", Quantity: 1},
	)

	res, err := svc.Checkout(context.Background(), order.CheckoutInput{
		UserID: "user-1", AddressID: "addr-1", Method: order.MethodCOD,
	})
	require.NoError(t, err)
	assert.Zero(t, res.Order.ShippingCharge)
	assert.False(t, res.Order.ShippingPaid)
	assert.Equal(t, 725.0, res.Order.FinalPayable)
}

func TestCheckoutCODLimit(t *testing.T) {
	svc, fake, _ := newTestOrderService(t)
	// 4 * 325 = 1300, over the cash-on-delivery cap.
	setCart(t, fake, "user-1", cart.Line{ProductID: "prod-1", VariantID: "var-1", Quantity: 4})

	_, err := svc.Checkout(context.Background(), order.CheckoutInput{
		UserID: "user-1", AddressID: "addr-1", Method: order.MethodCOD,
	})
	assert.ErrorIs(t, err, order.ErrCODLimitExceeded)
	assert.Equal(t, 10, stockOf(t, fake, "prod-1", "var-1"))
}

func TestCheckoutWallet(t *testing.T) {
	svc, fake, _ := newTestOrderService(t)
	ctx := context.Background()
	setCart(t, fake, "user-1", cart.Line{ProductID: "prod-1", VariantID: "var-1", Quantity: 2})

	t.Run("insufficient balance", func(t *testing.T) {
		require.NoError(t, fake.SaveWallet(ctx, &wallet.Wallet{UserID: "user-1", Balance: 500}))
		_, err := svc.Checkout(ctx, order.CheckoutInput{
			UserID: "user-1", AddressID: "addr-1", Method: order.MethodWallet,
		})
		assert.ErrorIs(t, err, order.ErrInsufficientBalance)

		w, err := fake.GetWallet(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, 500.0, w.Balance)
		assert.Equal(t, 10, stockOf(t, fake, "prod-1", "var-1"))
	})

	t.Run("success debits the wallet", func(t *testing.T) {
		require.NoError(t, fake.SaveWallet(ctx, &wallet.Wallet{UserID: "user-1", Balance: 1000}))
		res, err := svc.Checkout(ctx, order.CheckoutInput{
			UserID: "user-1", AddressID: "addr-1", Method: order.MethodWallet,
		})
		require.NoError(t, err)
		assert.Equal(t, order.PaymentPaid, res.Order.PaymentStatus)
		assert.Equal(t, order.StatusPlaced, res.Order.Status)

		w, err := fake.GetWallet(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, 300.0, w.Balance)
		require.Len(t, w.Transactions, 1)
		assert.Equal(t, wallet.Debit, w.Transactions[0].Kind)
	})
}

// Online checkout defers all side effects to payment verification: the
// order sits Pending with stock untouched and the cart intact.
func TestCheckoutOnlineDefersSideEffects(t *testing.T) {
	svc, fake, gw := newTestOrderService(t)
	ctx := context.Background()
	setCart(t, fake, "user-1", cart.Line{ProductID: "prod-1", VariantID: "var-1", Quantity: 2})

	res, err := svc.Checkout(ctx, order.CheckoutInput{
		UserID: "user-1", AddressID: "addr-1", Method: order.MethodOnline,
	})
	require.NoError(t, err)

	assert.Equal(t, order.StatusPending, res.Order.Status)
	assert.Equal(t, order.PaymentPending, res.Order.PaymentStatus)
	require.NotNil(t, res.Gateway)
	assert.Equal(t, int64(70000), res.Gateway.AmountMinor)
	require.NotNil(t, res.Payment)
	assert.Equal(t, res.Gateway.ID, res.Payment.GatewayOrderID)
	assert.Equal(t, 1, gw.created)

	assert.Equal(t, 10, stockOf(t, fake, "prod-1", "var-1"))
	c, err := fake.GetCart(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, c.Empty())
}

// A gateway outage aborts the checkout transaction: nothing is persisted
// and the caller gets a retryable error.
func TestCheckoutGatewayDown(t *testing.T) {
	svc, fake, gw := newTestOrderService(t)
	ctx := context.Background()
	setCart(t, fake, "user-1", cart.Line{ProductID: "prod-1", VariantID: "var-1", Quantity: 2})
	gw.down = true

	_, err := svc.Checkout(ctx, order.CheckoutInput{
		UserID: "user-1", AddressID: "addr-1", Method: order.MethodOnline,
	})
	assert.ErrorIs(t, err, order.ErrGatewayUnavailable)

	orders, err := fake.ListOrdersByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, orders)
	c, err := fake.GetCart(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, c.Empty())
}

func TestCheckoutWithCoupon(t *testing.T) {
	svc, fake, _ := newTestOrderService(t)
	ctx := context.Background()
	setCart(t, fake, "user-1", cart.Line{ProductID: "prod-1", VariantID: "var-1", Quantity: 2})
	require.NoError(t, fake.SaveCoupon(ctx, &coupon.Coupon{
		ID: "c-1", Code: "SAVE10", Percent: 10,
		ExpiresAt: time.Now().Add(time.Hour), Active: true,
	}))

	quote := &coupon.Quote{Code: "SAVE10", DiscountAmount: 70, DiscountedPrice: 630, UserID: "user-1"}
	res, err := svc.Checkout(ctx, order.CheckoutInput{
		UserID: "user-1", AddressID: "addr-1", Method: order.MethodCOD, Quote: quote,
	})
	require.NoError(t, err)

	o := res.Order
	assert.Equal(t, 70.0, o.Discount)
	assert.Equal(t, 630.0, o.FinalPayable)
	assert.True(t, o.CouponApplied)
	assert.Equal(t, "SAVE10", o.CouponCode)

	// Consumed only at commit.
	cp, err := fake.GetCoupon(ctx, "SAVE10")
	require.NoError(t, err)
	assert.True(t, cp.UsedByUser("user-1"))
}

func TestCheckoutStaleCouponQuote(t *testing.T) {
	svc, fake, _ := newTestOrderService(t)
	ctx := context.Background()
	setCart(t, fake, "user-1", cart.Line{ProductID: "prod-1", VariantID: "var-1", Quantity: 2})
	require.NoError(t, fake.SaveCoupon(ctx, &coupon.Coupon{
		ID: "c-1", Code: "SAVE10", Percent: 10,
		ExpiresAt: time.Now().Add(-time.Minute), Active: true,
	}))

	quote := &coupon.Quote{Code: "SAVE10", DiscountAmount: 70, DiscountedPrice: 630, UserID: "user-1"}
	_, err := svc.Checkout(ctx, order.CheckoutInput{
		UserID: "user-1", AddressID: "addr-1", Method: order.MethodCOD, Quote: quote,
	})
	assert.ErrorIs(t, err, order.ErrCouponUnavailable)
	assert.Equal(t, 10, stockOf(t, fake, "prod-1", "var-1"))
}

// A quote for a coupon the user consumed in the meantime (say, a racing
// checkout that committed first) is rejected at commit time.
func TestCheckoutCouponAlreadyConsumed(t *testing.T) {
	svc, fake, _ := newTestOrderService(t)
	ctx := context.Background()
	setCart(t, fake, "user-1", cart.Line{ProductID: "prod-1", VariantID: "var-1", Quantity: 2})
	require.NoError(t, fake.SaveCoupon(ctx, &coupon.Coupon{
		ID: "c-1", Code: "SAVE10", Percent: 10,
		ExpiresAt: time.Now().Add(time.Hour), Active: true,
		UsedBy: []string{"user-1"},
	}))

	quote := &coupon.Quote{Code: "SAVE10", DiscountAmount: 70, DiscountedPrice: 630, UserID: "user-1"}
	_, err := svc.Checkout(ctx, order.CheckoutInput{
		UserID: "user-1", AddressID: "addr-1", Method: order.MethodCOD, Quote: quote,
	})
	assert.ErrorIs(t, err, order.ErrCouponUnavailable)
	assert.Equal(t, 10, stockOf(t, fake, "prod-1", "var-1"))
}

func TestCheckoutValidation(t *testing.T) {
	svc, fake, _ := newTestOrderService(t)
	ctx := context.Background()

	t.Run("empty cart", func(t *testing.T) {
		_, err := svc.Checkout(ctx, order.CheckoutInput{
			UserID: "user-1", AddressID: "addr-1", Method: order.MethodCOD,
		})
		assert.ErrorIs(t, err, order.ErrCartEmpty)
	})

	t.Run("unknown payment method", func(t *testing.T) {
		_, err := svc.Checkout(ctx, order.CheckoutInput{
			UserID: "user-1", AddressID: "addr-1", Method: "Cheque",
		})
		assert.ErrorIs(t, err, order.ErrInvalidMethod)
	})

	t.Run("deleted product invalidates the cart", func(t *testing.T) {
		setCart(t, fake, "user-1", cart.Line{ProductID: "prod-404", VariantID: "var-1", Quantity: 1, Name: "Ghost"})
		_, err := svc.Checkout(ctx, order.CheckoutInput{
			UserID: "user-1", AddressID: "addr-1", Method: order.MethodCOD,
		})
		assert.ErrorIs(t, err, order.ErrCartInvalid)
	})

	t.Run("blocked product invalidates the cart", func(t *testing.T) {
		setCart(t, fake, "user-1", cart.Line{ProductID: "prod-1", VariantID: "var-1", Quantity: 1})
		p, err := fake.GetProduct(ctx, "prod-1")
		require.NoError(t, err)
		p.Blocked = true
		require.NoError(t, fake.SaveProduct(ctx, p))

		_, err = svc.Checkout(ctx, order.CheckoutInput{
			UserID: "user-1", AddressID: "addr-1", Method: order.MethodCOD,
		})
		assert.ErrorIs(t, err, order.ErrCartInvalid)
	})

	t.Run("missing address", func(t *testing.T) {
		p, err := fake.GetProduct(ctx, "prod-1")
		require.NoError(t, err)
		p.Blocked = false
		require.NoError(t, fake.SaveProduct(ctx, p))
		setCart(t, fake, "user-1", cart.Line{ProductID: "prod-1", VariantID: "var-1", Quantity: 1})

		_, err = svc.Checkout(ctx, order.CheckoutInput{
			UserID: "user-1", AddressID: "addr-404", Method: order.MethodCOD,
		})
		assert.ErrorIs(t, err, order.ErrOrderNotFound)
	})
}
