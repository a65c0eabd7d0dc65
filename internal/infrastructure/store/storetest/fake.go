// Package storetest provides an in-memory store for domain tests. It
// implements the same repository surface as the Postgres store, including
// transactional rollback: RunInTx snapshots the whole state and restores
// it when the callback fails, so tests can assert that aborted checkouts
// leave nothing behind.
package storetest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/Zuhair246/kitab4u-sub000/internal/domain/address"
	"github.com/Zuhair246/kitab4u-sub000/internal/domain/cart"
	"github.com/Zuhair246/kitab4u-sub000/internal/domain/catalog"
	"github.com/Zuhair246/kitab4u-sub000/internal/domain/coupon"
	"github.com/Zuhair246/kitab4u-sub000/internal/domain/order"
	"github.com/Zuhair246/kitab4u-sub000/internal/domain/pricing"
	"github.com/Zuhair246/kitab4u-sub000/internal/domain/user"
	"github.com/Zuhair246/kitab4u-sub000/internal/domain/wallet"
	"github.com/Zuhair246/kitab4u-sub000/internal/domain/wishlist"
)

var errOfferNotFound = errors.New("offer not found")

type state struct {
	products   map[string]catalog.Product
	categories map[string]catalog.Category
	offers     map[string]pricing.Offer
	coupons    map[string]coupon.Coupon
	users      map[string]user.User
	carts      map[string]cart.Cart
	wishlists  map[string]wishlist.Wishlist
	books      map[string]address.Book
	wallets    map[string]wallet.Wallet
	orders     map[string]order.Order
	payments   map[string]order.Payment // keyed by order id
}

func newState() *state {
	return &state{
		products:   make(map[string]catalog.Product),
		categories: make(map[string]catalog.Category),
		offers:     make(map[string]pricing.Offer),
		coupons:    make(map[string]coupon.Coupon),
		users:      make(map[string]user.User),
		carts:      make(map[string]cart.Cart),
		wishlists:  make(map[string]wishlist.Wishlist),
		books:      make(map[string]address.Book),
		wallets:    make(map[string]wallet.Wallet),
		orders:     make(map[string]order.Order),
		payments:   make(map[string]order.Payment),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.products {
		v.Images = append([]string(nil), v.Images...)
		v.Variants = append([]catalog.Variant(nil), v.Variants...)
		c.products[k] = v
	}
	for k, v := range s.categories {
		c.categories[k] = v
	}
	for k, v := range s.offers {
		c.offers[k] = v
	}
	for k, v := range s.coupons {
		v.UsedBy = append([]string(nil), v.UsedBy...)
		c.coupons[k] = v
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.carts {
		v.Lines = append([]cart.Line(nil), v.Lines...)
		c.carts[k] = v
	}
	for k, v := range s.wishlists {
		v.Items = append([]wishlist.Item(nil), v.Items...)
		c.wishlists[k] = v
	}
	for k, v := range s.books {
		v.Entries = append([]address.Entry(nil), v.Entries...)
		c.books[k] = v
	}
	for k, v := range s.wallets {
		v.Transactions = append([]wallet.Transaction(nil), v.Transactions...)
		c.wallets[k] = v
	}
	for k, v := range s.orders {
		v.Items = append([]order.Item(nil), v.Items...)
		c.orders[k] = v
	}
	for k, v := range s.payments {
		c.payments[k] = v
	}
	return c
}

// Fake is the in-memory store.
type Fake struct {
	mu sync.Mutex
	s  *state
}

func NewFake() *Fake {
	return &Fake{s: newState()}
}

// RunInTx snapshots the state, runs fn against the fake itself, and
// restores the snapshot if fn fails.
func (f *Fake) RunInTx(ctx context.Context, fn func(order.Store) error) error {
	f.mu.Lock()
	snapshot := f.s.clone()
	f.mu.Unlock()

	if err := fn(f); err != nil {
		f.mu.Lock()
		f.s = snapshot
		f.mu.Unlock()
		return err
	}
	return nil
}

// Catalog.

func (f *Fake) GetProduct(ctx context.Context, id string) (*catalog.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.s.products[id]
	if !ok {
		return nil, catalog.ErrProductNotFound
	}
	p.Images = append([]string(nil), p.Images...)
	p.Variants = append([]catalog.Variant(nil), p.Variants...)
	return &p, nil
}

func (f *Fake) ListProducts(ctx context.Context) ([]catalog.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]catalog.Product, 0, len(f.s.products))
	for _, p := range f.s.products {
		p.Variants = append([]catalog.Variant(nil), p.Variants...)
		out = append(out, p)
	}
	return out, nil
}

func (f *Fake) SaveProduct(ctx context.Context, p *catalog.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *p
	cp.Images = append([]string(nil), p.Images...)
	cp.Variants = append([]catalog.Variant(nil), p.Variants...)
	f.s.products[p.ID] = cp
	return nil
}

func (f *Fake) GetCategory(ctx context.Context, id string) (*catalog.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.s.categories[id]
	if !ok {
		return nil, catalog.ErrCategoryNotFound
	}
	return &c, nil
}

func (f *Fake) ListCategories(ctx context.Context) ([]catalog.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]catalog.Category, 0, len(f.s.categories))
	for _, c := range f.s.categories {
		out = append(out, c)
	}
	return out, nil
}

func (f *Fake) SaveCategory(ctx context.Context, c *catalog.Category) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.s.categories[c.ID] = *c
	return nil
}

// Stock.

func (f *Fake) DecrementStock(ctx context.Context, productID, variantID string, qty int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.s.products[productID]
	if !ok {
		return order.ErrStockConflict
	}
	for i := range p.Variants {
		if p.Variants[i].ID == variantID {
			if p.Variants[i].Stock < qty {
				return order.ErrStockConflict
			}
			p.Variants[i].Stock -= qty
			f.s.products[productID] = p
			return nil
		}
	}
	return order.ErrStockConflict
}

func (f *Fake) IncrementStock(ctx context.Context, productID, variantID string, qty int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.s.products[productID]
	if !ok {
		return nil
	}
	for i := range p.Variants {
		if p.Variants[i].ID == variantID {
			p.Variants[i].Stock += qty
			f.s.products[productID] = p
			return nil
		}
	}
	return nil
}

// Offers.

func (f *Fake) activeOffer(kind pricing.OfferKind, targetID string, now time.Time) *pricing.Offer {
	f.mu.Lock()
	defer f.mu.Unlock()
	var best *pricing.Offer
	for _, o := range f.s.offers {
		o := o
		if o.Kind == kind && o.TargetID == targetID && o.ActiveAt(now) {
			if best == nil || o.Percent > best.Percent {
				best = &o
			}
		}
	}
	return best
}

func (f *Fake) ActiveProductOffer(ctx context.Context, productID string, now time.Time) (*pricing.Offer, error) {
	return f.activeOffer(pricing.OfferProduct, productID, now), nil
}

func (f *Fake) ActiveCategoryOffer(ctx context.Context, categoryID string, now time.Time) (*pricing.Offer, error) {
	return f.activeOffer(pricing.OfferCategory, categoryID, now), nil
}

func (f *Fake) GetOffer(ctx context.Context, id string) (*pricing.Offer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.s.offers[id]
	if !ok {
		return nil, errOfferNotFound
	}
	return &o, nil
}

func (f *Fake) ListOffers(ctx context.Context) ([]pricing.Offer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]pricing.Offer, 0, len(f.s.offers))
	for _, o := range f.s.offers {
		out = append(out, o)
	}
	return out, nil
}

func (f *Fake) SaveOffer(ctx context.Context, o *pricing.Offer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.s.offers[o.ID] = *o
	return nil
}

// Coupons.

func (f *Fake) GetCoupon(ctx context.Context, code string) (*coupon.Coupon, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.s.coupons[strings.ToUpper(code)]
	if !ok {
		return nil, coupon.ErrNotFound
	}
	c.UsedBy = append([]string(nil), c.UsedBy...)
	return &c, nil
}

func (f *Fake) SaveCoupon(ctx context.Context, c *coupon.Coupon) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *c
	cp.UsedBy = append([]string(nil), c.UsedBy...)
	f.s.coupons[c.Code] = cp
	return nil
}

func (f *Fake) ListCoupons(ctx context.Context) ([]coupon.Coupon, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]coupon.Coupon, 0, len(f.s.coupons))
	for _, c := range f.s.coupons {
		c.UsedBy = append([]string(nil), c.UsedBy...)
		out = append(out, c)
	}
	return out, nil
}

func (f *Fake) MarkCouponUsed(ctx context.Context, code, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.s.coupons[code]
	if !ok {
		return coupon.ErrNotFound
	}
	if !c.UsedByUser(userID) {
		c.UsedBy = append(c.UsedBy, userID)
		f.s.coupons[code] = c
	}
	return nil
}

func (f *Fake) DeactivateExpiredCoupons(ctx context.Context, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k, c := range f.s.coupons {
		if c.Active && !now.Before(c.ExpiresAt) {
			c.Active = false
			f.s.coupons[k] = c
		}
	}
	return nil
}

// Users.

func (f *Fake) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, user.ErrNotFound
}

func (f *Fake) GetUserByID(ctx context.Context, id string) (*user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.s.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	return &u, nil
}

func (f *Fake) SaveUser(ctx context.Context, u *user.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.s.users[u.ID] = *u
	return nil
}

func (f *Fake) ListUsers(ctx context.Context) ([]user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]user.User, 0, len(f.s.users))
	for _, u := range f.s.users {
		out = append(out, u)
	}
	return out, nil
}

// Carts, wishlists, address books, wallets.

func (f *Fake) GetCart(ctx context.Context, userID string) (*cart.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.s.carts[userID]
	if !ok {
		return &cart.Cart{UserID: userID}, nil
	}
	c.Lines = append([]cart.Line(nil), c.Lines...)
	return &c, nil
}

func (f *Fake) SaveCart(ctx context.Context, c *cart.Cart) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *c
	cp.Lines = append([]cart.Line(nil), c.Lines...)
	f.s.carts[c.UserID] = cp
	return nil
}

func (f *Fake) ClearCart(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.s.carts, userID)
	return nil
}

func (f *Fake) GetWishlist(ctx context.Context, userID string) (*wishlist.Wishlist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.s.wishlists[userID]
	if !ok {
		return &wishlist.Wishlist{UserID: userID}, nil
	}
	w.Items = append([]wishlist.Item(nil), w.Items...)
	return &w, nil
}

func (f *Fake) SaveWishlist(ctx context.Context, w *wishlist.Wishlist) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *w
	cp.Items = append([]wishlist.Item(nil), w.Items...)
	f.s.wishlists[w.UserID] = cp
	return nil
}

func (f *Fake) GetAddressBook(ctx context.Context, userID string) (*address.Book, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.s.books[userID]
	if !ok {
		return &address.Book{UserID: userID}, nil
	}
	b.Entries = append([]address.Entry(nil), b.Entries...)
	return &b, nil
}

func (f *Fake) SaveAddressBook(ctx context.Context, b *address.Book) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *b
	cp.Entries = append([]address.Entry(nil), b.Entries...)
	f.s.books[b.UserID] = cp
	return nil
}

func (f *Fake) GetWallet(ctx context.Context, userID string) (*wallet.Wallet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.s.wallets[userID]
	if !ok {
		return &wallet.Wallet{UserID: userID}, nil
	}
	w.Transactions = append([]wallet.Transaction(nil), w.Transactions...)
	return &w, nil
}

func (f *Fake) SaveWallet(ctx context.Context, w *wallet.Wallet) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *w
	cp.Transactions = append([]wallet.Transaction(nil), w.Transactions...)
	f.s.wallets[w.UserID] = cp
	return nil
}

// Orders and payments.

func (f *Fake) InsertOrder(ctx context.Context, o *order.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *o
	cp.Items = append([]order.Item(nil), o.Items...)
	f.s.orders[o.ID] = cp
	return nil
}

func (f *Fake) GetOrder(ctx context.Context, id string) (*order.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.s.orders[id]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	o.Items = append([]order.Item(nil), o.Items...)
	return &o, nil
}

func (f *Fake) UpdateOrder(ctx context.Context, o *order.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.s.orders[o.ID]; !ok {
		return order.ErrOrderNotFound
	}
	cp := *o
	cp.Items = append([]order.Item(nil), o.Items...)
	f.s.orders[o.ID] = cp
	return nil
}

func (f *Fake) ListOrdersByUser(ctx context.Context, userID string) ([]order.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []order.Order
	for _, o := range f.s.orders {
		if o.UserID == userID {
			o.Items = append([]order.Item(nil), o.Items...)
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *Fake) ListOrders(ctx context.Context) ([]order.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]order.Order, 0, len(f.s.orders))
	for _, o := range f.s.orders {
		o.Items = append([]order.Item(nil), o.Items...)
		out = append(out, o)
	}
	return out, nil
}

func (f *Fake) InsertPayment(ctx context.Context, p *order.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.s.payments[p.OrderID] = *p
	return nil
}

func (f *Fake) GetPaymentByOrder(ctx context.Context, orderID string) (*order.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.s.payments[orderID]
	if !ok {
		return nil, order.ErrPaymentNotFound
	}
	return &p, nil
}

func (f *Fake) GetPaymentByGatewayOrder(ctx context.Context, gatewayOrderID string) (*order.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.s.payments {
		if p.GatewayOrderID == gatewayOrderID {
			return &p, nil
		}
	}
	return nil, order.ErrPaymentNotFound
}

func (f *Fake) UpdatePayment(ctx context.Context, p *order.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.s.payments[p.OrderID]; !ok {
		return order.ErrPaymentNotFound
	}
	f.s.payments[p.OrderID] = *p
	return nil
}
