package wishlist_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zuhair246/kitab4u-sub000/internal/domain/catalog"
	"github.com/Zuhair246/kitab4u-sub000/internal/domain/pricing"
	"github.com/Zuhair246/kitab4u-sub000/internal/domain/wishlist"
	"github.com/Zuhair246/kitab4u-sub000/internal/infrastructure/store/storetest"
)

func newTestService(t *testing.T) *wishlist.Service {
	t.Helper()
	fake := storetest.NewFake()
	catalogSvc := catalog.NewService(fake)
	svc := wishlist.NewService(fake, catalogSvc, pricing.NewEngine(fake))

	ctx := context.Background()
	require.NoError(t, fake.SaveCategory(ctx, &catalog.Category{ID: "cat-1", Name: "Fiction", Listed: true}))
	require.NoError(t, fake.SaveProduct(ctx, &catalog.Product{
		ID: "prod-1", Name: "Pachinko", CategoryID: "cat-1",
		Variants: []catalog.Variant{
			{ID: "var-1", CoverType: "Paperback", OriginalPrice: 450, DiscountPrice: 399, Stock: 8},
		},
	}))
	return svc
}

func TestAdd(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	wl, err := svc.Add(ctx, "user-1", "prod-1", "var-1")
	require.NoError(t, err)
	require.Len(t, wl.Items, 1)
	assert.Equal(t, "Pachinko", wl.Items[0].Name)
	assert.Equal(t, 399.0, wl.Items[0].Price)
}

func TestAddDuplicateIsNoOp(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Add(ctx, "user-1", "prod-1", "var-1")
	require.NoError(t, err)
	wl, err := svc.Add(ctx, "user-1", "prod-1", "var-1")
	require.NoError(t, err)
	assert.Len(t, wl.Items, 1)
}

func TestAddUnknownVariant(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Add(context.Background(), "user-1", "prod-1", "var-404")
	assert.ErrorIs(t, err, catalog.ErrVariantNotFound)
}

func TestRemove(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Add(ctx, "user-1", "prod-1", "var-1")
	require.NoError(t, err)

	require.NoError(t, svc.Remove(ctx, "user-1", "prod-1", "var-1"))
	wl, err := svc.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, wl.Items)

	// Removing something absent is a no-op, not an error.
	require.NoError(t, svc.Remove(ctx, "user-1", "prod-1", "var-1"))
}
