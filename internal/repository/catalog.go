package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/flicky/storefront-api/internal/model"
)

type CatalogRepository interface {
	ListCategories(ctx context.Context) ([]model.Category, error)
	// ListActiveCollections filters by gender when it is non-empty.
	ListActiveCollections(ctx context.Context, gender model.Gender) ([]model.Collection, error)
	// GetActiveCollection returns the collection with its products, or nil, nil.
	GetActiveCollection(ctx context.Context, slug string) (*model.Collection, error)
}

type pgCatalogRepo struct{ db Querier }

func NewCatalogRepository(db Querier) CatalogRepository {
	return &pgCatalogRepo{db: db}
}

func (r *pgCatalogRepo) ListCategories(ctx context.Context) ([]model.Category, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, slug FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []model.Category
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

const collectionColumns = `id, name, slug, description, image, gender_category, is_active`

func scanCollection(row pgx.Row, c *model.Collection) error {
	return row.Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.Image, &c.Gender, &c.Active)
}

func (r *pgCatalogRepo) ListActiveCollections(ctx context.Context, gender model.Gender) ([]model.Collection, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+collectionColumns+` FROM collections
		 WHERE is_active = TRUE AND ($1::text = '' OR gender_category = $1::text)
		 ORDER BY name`, string(gender),
	)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	defer rows.Close()

	var collections []model.Collection
	for rows.Next() {
		var c model.Collection
		if err := scanCollection(rows, &c); err != nil {
			return nil, fmt.Errorf("scan collection: %w", err)
		}
		collections = append(collections, c)
	}
	return collections, rows.Err()
}

func (r *pgCatalogRepo) GetActiveCollection(ctx context.Context, slug string) (*model.Collection, error) {
	c := &model.Collection{}
	err := scanCollection(r.db.QueryRow(ctx,
		`SELECT `+collectionColumns+` FROM collections WHERE slug = $1 AND is_active = TRUE`, slug,
	), c)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get collection: %w", err)
	}

	rows, err := r.db.Query(ctx,
		`SELECT p.id, p.category_id, p.name, p.slug, p.description, p.price, p.available, p.image, p.created_at, p.updated_at
		 FROM products p
		 JOIN collection_products cp ON cp.product_id = p.id
		 WHERE cp.collection_id = $1
		 ORDER BY p.name`, c.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("get collection products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p model.Product
		if err := scanProduct(rows, &p); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		c.Products = append(c.Products, p)
	}
	return c, rows.Err()
}
