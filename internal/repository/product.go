package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/flicky/storefront-api/internal/model"
)

// ProductLookup is the read capability pricing depends on.
// GetByID returns nil, nil when the product does not exist.
type ProductLookup interface {
	GetByID(ctx context.Context, id int64) (*model.Product, error)
}

type ProductRepository interface {
	ProductLookup
	ListAvailable(ctx context.Context) ([]model.Product, error)
}

type pgProductRepo struct {
	db Querier
	// forShare locks the rows read inside a transaction so prices cannot
	// change until it commits.
	forShare bool
}

func NewProductRepository(db Querier) ProductRepository {
	return &pgProductRepo{db: db}
}

const productColumns = `id, category_id, name, slug, description, price, available, image, created_at, updated_at`

func scanProduct(row pgx.Row, p *model.Product) error {
	return row.Scan(
		&p.ID, &p.CategoryID, &p.Name, &p.Slug, &p.Description,
		&p.Price, &p.Available, &p.Image, &p.CreatedAt, &p.UpdatedAt,
	)
}

func (r *pgProductRepo) GetByID(ctx context.Context, id int64) (*model.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	if r.forShare {
		query += ` FOR SHARE`
	}
	p := &model.Product{}
	if err := scanProduct(r.db.QueryRow(ctx, query, id), p); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

func (r *pgProductRepo) ListAvailable(ctx context.Context) ([]model.Product, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+productColumns+` FROM products WHERE available = TRUE ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []model.Product
	for rows.Next() {
		var p model.Product
		if err := scanProduct(rows, &p); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}
