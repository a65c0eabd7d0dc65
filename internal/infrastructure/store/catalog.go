package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/Zuhair246/kitab4u-sub000/internal/domain/catalog"
	"github.com/Zuhair246/kitab4u-sub000/internal/domain/pricing"
)

// Products live in two tables: the product row itself and one row per
// variant, so stock updates can be conditional single-row UPDATEs.

func (p *Postgres) GetProduct(ctx context.Context, id string) (*catalog.Product, error) {
	var prod catalog.Product
	var images []byte
	err := p.q.QueryRowContext(ctx,
		`SELECT id, name, description, category_id, blocked, images, created_at, updated_at
		 FROM products WHERE id = $1`, id,
	).Scan(&prod.ID, &prod.Name, &prod.Description, &prod.CategoryID, &prod.Blocked,
		&images, &prod.CreatedAt, &prod.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, catalog.ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(images, &prod.Images); err != nil {
		return nil, err
	}

	variants, err := p.variantsFor(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	prod.Variants = variants[id]
	return &prod, nil
}

func (p *Postgres) ListProducts(ctx context.Context) ([]catalog.Product, error) {
	rows, err := p.q.QueryContext(ctx,
		`SELECT id, name, description, category_id, blocked, images, created_at, updated_at
		 FROM products ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []catalog.Product
	var ids []string
	for rows.Next() {
		var prod catalog.Product
		var images []byte
		if err := rows.Scan(&prod.ID, &prod.Name, &prod.Description, &prod.CategoryID,
			&prod.Blocked, &images, &prod.CreatedAt, &prod.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(images, &prod.Images); err != nil {
			return nil, err
		}
		products = append(products, prod)
		ids = append(ids, prod.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	variants, err := p.variantsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range products {
		products[i].Variants = variants[products[i].ID]
	}
	return products, nil
}

func (p *Postgres) variantsFor(ctx context.Context, productIDs []string) (map[string][]catalog.Variant, error) {
	out := make(map[string][]catalog.Variant, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}
	ids, err := json.Marshal(productIDs)
	if err != nil {
		return nil, err
	}
	rows, err := p.q.QueryContext(ctx,
		`SELECT product_id, id, cover_type, original_price, discount_price, stock
		 FROM product_variants
		 WHERE product_id IN (SELECT jsonb_array_elements_text($1::jsonb))
		 ORDER BY product_id, id`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var productID string
		var v catalog.Variant
		if err := rows.Scan(&productID, &v.ID, &v.CoverType, &v.OriginalPrice,
			&v.DiscountPrice, &v.Stock); err != nil {
			return nil, err
		}
		out[productID] = append(out[productID], v)
	}
	return out, rows.Err()
}

// SaveProduct upserts the product row and rewrites its variant set.
func (p *Postgres) SaveProduct(ctx context.Context, prod *catalog.Product) error {
	images, err := json.Marshal(prod.Images)
	if err != nil {
		return err
	}
	if _, err := p.q.ExecContext(ctx,
		`INSERT INTO products (id, name, description, category_id, blocked, images, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO UPDATE SET
		   name = EXCLUDED.name, description = EXCLUDED.description,
		   category_id = EXCLUDED.category_id, blocked = EXCLUDED.blocked,
		   images = EXCLUDED.images, updated_at = EXCLUDED.updated_at`,
		prod.ID, prod.Name, prod.Description, prod.CategoryID, prod.Blocked,
		images, prod.CreatedAt, prod.UpdatedAt,
	); err != nil {
		return err
	}

	if _, err := p.q.ExecContext(ctx,
		`DELETE FROM product_variants WHERE product_id = $1`, prod.ID); err != nil {
		return err
	}
	for _, v := range prod.Variants {
		if _, err := p.q.ExecContext(ctx,
			`INSERT INTO product_variants (product_id, id, cover_type, original_price, discount_price, stock)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			prod.ID, v.ID, v.CoverType, v.OriginalPrice, v.DiscountPrice, v.Stock,
		); err != nil {
			return err
		}
	}
	return nil
}

func (p *Postgres) GetCategory(ctx context.Context, id string) (*catalog.Category, error) {
	var c catalog.Category
	err := p.q.QueryRowContext(ctx,
		`SELECT id, name, listed, created_at FROM categories WHERE id = $1`, id,
	).Scan(&c.ID, &c.Name, &c.Listed, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, catalog.ErrCategoryNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (p *Postgres) ListCategories(ctx context.Context) ([]catalog.Category, error) {
	rows, err := p.q.QueryContext(ctx,
		`SELECT id, name, listed, created_at FROM categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []catalog.Category
	for rows.Next() {
		var c catalog.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Listed, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (p *Postgres) SaveCategory(ctx context.Context, c *catalog.Category) error {
	_, err := p.q.ExecContext(ctx,
		`INSERT INTO categories (id, name, listed, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, listed = EXCLUDED.listed`,
		c.ID, c.Name, c.Listed, c.CreatedAt,
	)
	return err
}

// Offers.

func (p *Postgres) activeOffer(ctx context.Context, kind pricing.OfferKind, targetID string, now time.Time) (*pricing.Offer, error) {
	var o pricing.Offer
	err := p.q.QueryRowContext(ctx,
		`SELECT id, kind, target_id, percent, start_date, end_date, active
		 FROM offers
		 WHERE kind = $1 AND target_id = $2 AND active
		   AND start_date <= $3 AND end_date >= $3
		 ORDER BY percent DESC LIMIT 1`,
		string(kind), targetID, now,
	).Scan(&o.ID, &o.Kind, &o.TargetID, &o.Percent, &o.StartDate, &o.EndDate, &o.Active)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (p *Postgres) ActiveProductOffer(ctx context.Context, productID string, now time.Time) (*pricing.Offer, error) {
	return p.activeOffer(ctx, pricing.OfferProduct, productID, now)
}

func (p *Postgres) ActiveCategoryOffer(ctx context.Context, categoryID string, now time.Time) (*pricing.Offer, error) {
	return p.activeOffer(ctx, pricing.OfferCategory, categoryID, now)
}

func (p *Postgres) GetOffer(ctx context.Context, id string) (*pricing.Offer, error) {
	var o pricing.Offer
	err := p.q.QueryRowContext(ctx,
		`SELECT id, kind, target_id, percent, start_date, end_date, active
		 FROM offers WHERE id = $1`, id,
	).Scan(&o.ID, &o.Kind, &o.TargetID, &o.Percent, &o.StartDate, &o.EndDate, &o.Active)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (p *Postgres) ListOffers(ctx context.Context) ([]pricing.Offer, error) {
	rows, err := p.q.QueryContext(ctx,
		`SELECT id, kind, target_id, percent, start_date, end_date, active
		 FROM offers ORDER BY start_date DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []pricing.Offer
	for rows.Next() {
		var o pricing.Offer
		if err := rows.Scan(&o.ID, &o.Kind, &o.TargetID, &o.Percent,
			&o.StartDate, &o.EndDate, &o.Active); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (p *Postgres) SaveOffer(ctx context.Context, o *pricing.Offer) error {
	_, err := p.q.ExecContext(ctx,
		`INSERT INTO offers (id, kind, target_id, percent, start_date, end_date, active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE SET
		   percent = EXCLUDED.percent, start_date = EXCLUDED.start_date,
		   end_date = EXCLUDED.end_date, active = EXCLUDED.active`,
		o.ID, string(o.Kind), o.TargetID, o.Percent, o.StartDate, o.EndDate, o.Active,
	)
	return err
}
