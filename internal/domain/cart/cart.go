package cart

import (
	"context"
	"errors"
	"time"

	"github.com/Zuhair246/kitab4u-sub000/internal/domain/catalog"
	"github.com/Zuhair246/kitab4u-sub000/internal/domain/pricing"
)

// MaxQuantityPerLine caps how many copies of one variant a single cart may
// hold, independent of stock.
const MaxQuantityPerLine = 5

var (
	ErrInvalidQuantity = errors.New("quantity must be between 1 and 5")
	ErrLineNotFound    = errors.New("item not in cart")
	ErrQuantityCapped  = errors.New("requested quantity exceeds the allowed limit or stock")
)

// Line is one cart row. UnitPrice is a snapshot of the effective price when
// the line was last touched; checkout recomputes it and never trusts this.
type Line struct {
	ProductID string  `json:"product_id"`
	VariantID string  `json:"variant_id"`
	Name      string  `json:"name"`
	CoverType string  `json:"cover_type"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	LineTotal float64 `json:"line_total"`
}

type Cart struct {
	UserID    string    `json:"user_id"`
	Lines     []Line    `json:"lines"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Find returns the line for a variant, if present.
func (c *Cart) Find(productID, variantID string) (*Line, bool) {
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID && c.Lines[i].VariantID == variantID {
			return &c.Lines[i], true
		}
	}
	return nil, false
}

// Subtotal sums the line totals.
func (c *Cart) Subtotal() float64 {
	var sum float64
	for _, l := range c.Lines {
		sum += l.LineTotal
	}
	return sum
}

func (c *Cart) Empty() bool { return len(c.Lines) == 0 }

type Repo interface {
	// GetCart returns the user's cart, an empty one if none exists yet.
	GetCart(ctx context.Context, userID string) (*Cart, error)
	SaveCart(ctx context.Context, c *Cart) error
	ClearCart(ctx context.Context, userID string) error
}

// WishlistRemover evicts a variant from the user's wishlist. Satisfied by
// wishlist.Service; a nil remover disables the eviction.
type WishlistRemover interface {
	Remove(ctx context.Context, userID, productID, variantID string) error
}

type Service struct {
	repo     Repo
	catalog  *catalog.Service
	pricing  *pricing.Engine
	wishlist WishlistRemover
}

func NewService(repo Repo, cat *catalog.Service, pr *pricing.Engine, wl WishlistRemover) *Service {
	return &Service{repo: repo, catalog: cat, pricing: pr, wishlist: wl}
}

func (s *Service) Get(ctx context.Context, userID string) (*Cart, error) {
	return s.repo.GetCart(ctx, userID)
}

// AddItem puts a variant in the cart, merging quantities for a variant
// already present. Quantity is capped at MaxQuantityPerLine and at the
// variant's stock; exceeding either fails rather than silently clamping.
// A variant sitting on the wishlist is removed from it.
func (s *Service) AddItem(ctx context.Context, userID, productID, variantID string, quantity int) (*Cart, error) {
	if quantity < 1 || quantity > MaxQuantityPerLine {
		return nil, ErrInvalidQuantity
	}
	p, v, err := s.catalog.CheckAvailable(ctx, productID, variantID)
	if err != nil {
		return nil, err
	}

	c, err := s.repo.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	newQty := quantity
	if line, ok := c.Find(productID, variantID); ok {
		newQty += line.Quantity
	}
	if newQty > MaxQuantityPerLine || newQty > v.Stock {
		return nil, ErrQuantityCapped
	}

	quote, err := s.pricing.Quote(ctx, *v, p.CategoryID, p.ID)
	if err != nil {
		return nil, err
	}

	if line, ok := c.Find(productID, variantID); ok {
		line.Quantity = newQty
		line.UnitPrice = quote.FinalPrice
		line.LineTotal = quote.FinalPrice * float64(newQty)
	} else {
		c.Lines = append(c.Lines, Line{
			ProductID: productID,
			VariantID: variantID,
			Name:      p.Name,
			CoverType: v.CoverType,
			Quantity:  newQty,
			UnitPrice: quote.FinalPrice,
			LineTotal: quote.FinalPrice * float64(newQty),
		})
	}
	c.UpdatedAt = time.Now()

	if err := s.repo.SaveCart(ctx, c); err != nil {
		return nil, err
	}
	if s.wishlist != nil {
		if err := s.wishlist.Remove(ctx, userID, productID, variantID); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// UpdateQuantity sets an existing line to an exact quantity.
func (s *Service) UpdateQuantity(ctx context.Context, userID, productID, variantID string, quantity int) (*Cart, error) {
	if quantity < 1 || quantity > MaxQuantityPerLine {
		return nil, ErrInvalidQuantity
	}
	p, v, err := s.catalog.CheckAvailable(ctx, productID, variantID)
	if err != nil {
		return nil, err
	}
	if quantity > v.Stock {
		return nil, ErrQuantityCapped
	}

	c, err := s.repo.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	line, ok := c.Find(productID, variantID)
	if !ok {
		return nil, ErrLineNotFound
	}

	quote, err := s.pricing.Quote(ctx, *v, p.CategoryID, p.ID)
	if err != nil {
		return nil, err
	}
	line.Quantity = quantity
	line.UnitPrice = quote.FinalPrice
	line.LineTotal = quote.FinalPrice * float64(quantity)
	c.UpdatedAt = time.Now()

	if err := s.repo.SaveCart(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) RemoveItem(ctx context.Context, userID, productID, variantID string) (*Cart, error) {
	c, err := s.repo.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	kept := c.Lines[:0]
	found := false
	for _, l := range c.Lines {
		if l.ProductID == productID && l.VariantID == variantID {
			found = true
			continue
		}
		kept = append(kept, l)
	}
	if !found {
		return nil, ErrLineNotFound
	}
	c.Lines = kept
	c.UpdatedAt = time.Now()
	if err := s.repo.SaveCart(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}
