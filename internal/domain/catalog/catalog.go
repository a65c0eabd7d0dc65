package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrProductNotFound    = errors.New("product not found")
	ErrCategoryNotFound   = errors.New("category not found")
	ErrVariantNotFound    = errors.New("variant not found")
	ErrProductUnavailable = errors.New("product is unavailable")
	ErrOutOfStock         = errors.New("variant is out of stock")
	ErrInvalidName        = errors.New("name is required")
	ErrInvalidPrice       = errors.New("discount price must not exceed original price")
)

// Variant is a purchasable SKU of a product. Its ID is opaque and unique
// only within the owning product.
type Variant struct {
	ID            string  `json:"id"`
	CoverType     string  `json:"cover_type"`
	OriginalPrice float64 `json:"original_price"`
	DiscountPrice float64 `json:"discount_price"`
	Stock         int     `json:"stock"`
}

type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CategoryID  string    `json:"category_id"`
	Blocked     bool      `json:"blocked"`
	Images      []string  `json:"images"`
	Variants    []Variant `json:"variants"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Variant returns the variant with the given id, if present.
func (p *Product) Variant(variantID string) (*Variant, bool) {
	for i := range p.Variants {
		if p.Variants[i].ID == variantID {
			return &p.Variants[i], true
		}
	}
	return nil, false
}

type Category struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Listed    bool      `json:"listed"`
	CreatedAt time.Time `json:"created_at"`
}

// Repo is the persistence boundary for the catalog.
type Repo interface {
	GetProduct(ctx context.Context, id string) (*Product, error)
	ListProducts(ctx context.Context) ([]Product, error)
	SaveProduct(ctx context.Context, p *Product) error
	GetCategory(ctx context.Context, id string) (*Category, error)
	ListCategories(ctx context.Context) ([]Category, error)
	SaveCategory(ctx context.Context, c *Category) error
}

// Service handles catalog domain operations.
type Service struct {
	repo Repo
}

func NewService(repo Repo) *Service {
	return &Service{repo: repo}
}

// Browse returns storefront-visible products: unblocked products whose
// category is listed.
func (s *Service) Browse(ctx context.Context) ([]Product, error) {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}

	listed := make(map[string]bool)
	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range categories {
		listed[c.ID] = c.Listed
	}

	visible := make([]Product, 0, len(products))
	for _, p := range products {
		if p.Blocked || !listed[p.CategoryID] {
			continue
		}
		visible = append(visible, p)
	}
	return visible, nil
}

func (s *Service) GetProduct(ctx context.Context, id string) (*Product, error) {
	return s.repo.GetProduct(ctx, id)
}

// ListAll returns every product, blocked or not (admin).
func (s *Service) ListAll(ctx context.Context) ([]Product, error) {
	return s.repo.ListProducts(ctx)
}

// CheckAvailable verifies that a variant can be bought right now: the
// product exists and is not blocked, its category is listed, and the
// variant has stock.
func (s *Service) CheckAvailable(ctx context.Context, productID, variantID string) (*Product, *Variant, error) {
	p, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		return nil, nil, err
	}
	if p.Blocked {
		return nil, nil, ErrProductUnavailable
	}
	cat, err := s.repo.GetCategory(ctx, p.CategoryID)
	if err != nil {
		return nil, nil, err
	}
	if !cat.Listed {
		return nil, nil, ErrProductUnavailable
	}
	v, ok := p.Variant(variantID)
	if !ok {
		return nil, nil, ErrVariantNotFound
	}
	if v.Stock <= 0 {
		return nil, nil, ErrOutOfStock
	}
	return p, v, nil
}

// CreateProduct adds a product with its initial variants.
func (s *Service) CreateProduct(ctx context.Context, name, description, categoryID string, images []string, variants []Variant) (*Product, error) {
	if name == "" {
		return nil, ErrInvalidName
	}
	if _, err := s.repo.GetCategory(ctx, categoryID); err != nil {
		return nil, err
	}
	for i := range variants {
		if err := validateVariant(&variants[i]); err != nil {
			return nil, err
		}
		if variants[i].ID == "" {
			variants[i].ID = uuid.New().String()
		}
	}

	now := time.Now()
	p := &Product{
		ID:          uuid.New().String(),
		Name:        name,
		Description: description,
		CategoryID:  categoryID,
		Images:      images,
		Variants:    variants,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.SaveProduct(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id, name, description, categoryID string, images []string) (*Product, error) {
	p, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if name != "" {
		p.Name = name
	}
	if description != "" {
		p.Description = description
	}
	if categoryID != "" {
		if _, err := s.repo.GetCategory(ctx, categoryID); err != nil {
			return nil, err
		}
		p.CategoryID = categoryID
	}
	if images != nil {
		p.Images = images
	}
	p.UpdatedAt = time.Now()
	if err := s.repo.SaveProduct(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// SetBlocked hides or restores a product on the storefront.
func (s *Service) SetBlocked(ctx context.Context, id string, blocked bool) error {
	p, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return err
	}
	p.Blocked = blocked
	p.UpdatedAt = time.Now()
	return s.repo.SaveProduct(ctx, p)
}

// AddVariant attaches a new variant to an existing product.
func (s *Service) AddVariant(ctx context.Context, productID string, v Variant) (*Product, error) {
	p, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if err := validateVariant(&v); err != nil {
		return nil, err
	}
	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	p.Variants = append(p.Variants, v)
	p.UpdatedAt = time.Now()
	if err := s.repo.SaveProduct(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) UpdateVariant(ctx context.Context, productID string, v Variant) error {
	p, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		return err
	}
	existing, ok := p.Variant(v.ID)
	if !ok {
		return ErrVariantNotFound
	}
	if err := validateVariant(&v); err != nil {
		return err
	}
	*existing = v
	p.UpdatedAt = time.Now()
	return s.repo.SaveProduct(ctx, p)
}

func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	return s.repo.ListCategories(ctx)
}

func (s *Service) CreateCategory(ctx context.Context, name string) (*Category, error) {
	if name == "" {
		return nil, ErrInvalidName
	}
	c := &Category{
		ID:        uuid.New().String(),
		Name:      name,
		Listed:    true,
		CreatedAt: time.Now(),
	}
	if err := s.repo.SaveCategory(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) RenameCategory(ctx context.Context, id, name string) error {
	if name == "" {
		return ErrInvalidName
	}
	c, err := s.repo.GetCategory(ctx, id)
	if err != nil {
		return err
	}
	c.Name = name
	return s.repo.SaveCategory(ctx, c)
}

// SetListed lists or unlists a category. Products in an unlisted category
// disappear from the storefront but stay untouched.
func (s *Service) SetListed(ctx context.Context, id string, listed bool) error {
	c, err := s.repo.GetCategory(ctx, id)
	if err != nil {
		return err
	}
	c.Listed = listed
	return s.repo.SaveCategory(ctx, c)
}

func validateVariant(v *Variant) error {
	if v.OriginalPrice <= 0 {
		return ErrInvalidPrice
	}
	if v.DiscountPrice > v.OriginalPrice {
		return ErrInvalidPrice
	}
	if v.Stock < 0 {
		v.Stock = 0
	}
	return nil
}
