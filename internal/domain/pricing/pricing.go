package pricing

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/Zuhair246/kitab4u-sub000/internal/domain/catalog"
	"github.com/google/uuid"
)

func newOfferID() string { return uuid.New().String() }

var ErrInvalidPercent = errors.New("offer percent must be between 0 and 100")

type OfferKind string

const (
	OfferProduct  OfferKind = "product"
	OfferCategory OfferKind = "category"
)

// Offer is a time-bounded percentage discount scoped to a product or a
// category. Offers never stack: the highest applicable percentage wins.
type Offer struct {
	ID        string    `json:"id"`
	Kind      OfferKind `json:"kind"`
	TargetID  string    `json:"target_id"`
	Percent   float64   `json:"percent"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Active    bool      `json:"active"`
}

// ActiveAt reports whether the offer applies at the given instant.
func (o *Offer) ActiveAt(now time.Time) bool {
	return o.Active && !now.Before(o.StartDate) && !now.After(o.EndDate)
}

// OfferRepo looks up promotional offers. ActiveProductOffer and
// ActiveCategoryOffer return (nil, nil) when no active offer exists.
type OfferRepo interface {
	ActiveProductOffer(ctx context.Context, productID string, now time.Time) (*Offer, error)
	ActiveCategoryOffer(ctx context.Context, categoryID string, now time.Time) (*Offer, error)
	GetOffer(ctx context.Context, id string) (*Offer, error)
	ListOffers(ctx context.Context) ([]Offer, error)
	SaveOffer(ctx context.Context, o *Offer) error
}

// Quote is the effective price of one variant at one instant.
type Quote struct {
	OriginalPrice   float64 `json:"original_price"`
	DiscountPrice   float64 `json:"discount_price"`
	DiscountPercent float64 `json:"discount_percent"`
	FinalPrice      float64 `json:"final_price"`
}

// Engine computes effective variant prices from active offers.
//
// Each Quote call performs two repo lookups; callers iterating over a whole
// catalog page accept 2N lookups rather than a cache whose invalidation
// would have to track offer windows.
type Engine struct {
	offers OfferRepo
	now    func() time.Time
}

func NewEngine(offers OfferRepo) *Engine {
	return &Engine{offers: offers, now: time.Now}
}

// Quote returns the price a customer pays for the variant right now.
// Base price is the variant's discount price when set, else its original
// price; the best active product/category offer is then applied and the
// result rounded down to a whole unit.
func (e *Engine) Quote(ctx context.Context, v catalog.Variant, categoryID string, productID string) (Quote, error) {
	base := v.DiscountPrice
	if base <= 0 {
		base = v.OriginalPrice
	}

	now := e.now()
	pct := 0.0
	if off, err := e.offers.ActiveProductOffer(ctx, productID, now); err != nil {
		return Quote{}, err
	} else if off != nil && off.Percent > pct {
		pct = off.Percent
	}
	if off, err := e.offers.ActiveCategoryOffer(ctx, categoryID, now); err != nil {
		return Quote{}, err
	} else if off != nil && off.Percent > pct {
		pct = off.Percent
	}

	final := base
	if pct > 0 {
		final = math.Floor(base * (1 - pct/100))
	}

	return Quote{
		OriginalPrice:   v.OriginalPrice,
		DiscountPrice:   v.DiscountPrice,
		DiscountPercent: pct,
		FinalPrice:      final,
	}, nil
}

// Admin operations over offers.

func (e *Engine) ListOffers(ctx context.Context) ([]Offer, error) {
	return e.offers.ListOffers(ctx)
}

func (e *Engine) CreateOffer(ctx context.Context, kind OfferKind, targetID string, percent float64, start, end time.Time) (*Offer, error) {
	if percent <= 0 || percent > 100 {
		return nil, ErrInvalidPercent
	}
	o := &Offer{
		ID:        newOfferID(),
		Kind:      kind,
		TargetID:  targetID,
		Percent:   percent,
		StartDate: start,
		EndDate:   end,
		Active:    true,
	}
	if err := e.offers.SaveOffer(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (e *Engine) SetOfferActive(ctx context.Context, id string, active bool) error {
	o, err := e.offers.GetOffer(ctx, id)
	if err != nil {
		return err
	}
	o.Active = active
	return e.offers.SaveOffer(ctx, o)
}
