package wishlist

import (
	"context"
	"time"

	"github.com/Zuhair246/kitab4u-sub000/internal/domain/catalog"
	"github.com/Zuhair246/kitab4u-sub000/internal/domain/pricing"
)

// Item is a saved (product, variant) pair with the price seen when it was
// added.
type Item struct {
	ProductID string    `json:"product_id"`
	VariantID string    `json:"variant_id"`
	Name      string    `json:"name"`
	CoverType string    `json:"cover_type"`
	Price     float64   `json:"price"`
	AddedAt   time.Time `json:"added_at"`
}

type Wishlist struct {
	UserID string `json:"user_id"`
	Items  []Item `json:"items"`
}

func (w *Wishlist) contains(productID, variantID string) bool {
	for _, it := range w.Items {
		if it.ProductID == productID && it.VariantID == variantID {
			return true
		}
	}
	return false
}

type Repo interface {
	GetWishlist(ctx context.Context, userID string) (*Wishlist, error)
	SaveWishlist(ctx context.Context, w *Wishlist) error
}

type Service struct {
	repo    Repo
	catalog *catalog.Service
	pricing *pricing.Engine
}

func NewService(repo Repo, cat *catalog.Service, pr *pricing.Engine) *Service {
	return &Service{repo: repo, catalog: cat, pricing: pr}
}

func (s *Service) Get(ctx context.Context, userID string) (*Wishlist, error) {
	return s.repo.GetWishlist(ctx, userID)
}

// Add saves a variant with a snapshot of its current effective price.
// Adding a variant that is already saved is a no-op.
func (s *Service) Add(ctx context.Context, userID, productID, variantID string) (*Wishlist, error) {
	p, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	v, ok := p.Variant(variantID)
	if !ok {
		return nil, catalog.ErrVariantNotFound
	}

	w, err := s.repo.GetWishlist(ctx, userID)
	if err != nil {
		return nil, err
	}
	if w.contains(productID, variantID) {
		return w, nil
	}

	quote, err := s.pricing.Quote(ctx, *v, p.CategoryID, p.ID)
	if err != nil {
		return nil, err
	}
	w.Items = append(w.Items, Item{
		ProductID: productID,
		VariantID: variantID,
		Name:      p.Name,
		CoverType: v.CoverType,
		Price:     quote.FinalPrice,
		AddedAt:   time.Now(),
	})
	if err := s.repo.SaveWishlist(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

// Remove drops a saved variant. Removing something not on the list is a
// no-op, which lets the cart call this unconditionally on add-to-cart.
func (s *Service) Remove(ctx context.Context, userID, productID, variantID string) error {
	w, err := s.repo.GetWishlist(ctx, userID)
	if err != nil {
		return err
	}
	kept := w.Items[:0]
	for _, it := range w.Items {
		if it.ProductID == productID && it.VariantID == variantID {
			continue
		}
		kept = append(kept, it)
	}
	if len(kept) == len(w.Items) {
		return nil
	}
	w.Items = kept
	return s.repo.SaveWishlist(ctx, w)
}
