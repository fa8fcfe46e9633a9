package products

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var ErrProductNotFound = errors.New("product not found")

// Cache is an optional read-through cache for single-product lookups.
// The redis implementation lives in internal/cache.
type Cache interface {
	Get(ctx context.Context, productID string) (*Product, error)
	Set(ctx context.Context, product *Product) error
	Delete(ctx context.Context, productID string) error
}

type Conf struct {
	db    *sql.DB
	cache Cache
}

func NewConf(db *sql.DB, cache Cache) (*Conf, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	return &Conf{db: db, cache: cache}, nil
}

func (c *Conf) CreateProduct(ctx context.Context, np NewProduct) (Product, error) {
	id := uuid.NewString()
	query := `
		INSERT INTO products (id, name, description, price, currency, image_url, category_id, stock, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		RETURNING id, name, description, price, currency, image_url, category_id, stock, created_at, updated_at
	`
	var p Product
	err := c.db.QueryRowContext(ctx, query, id, np.Name, np.Description, np.Price,
		strings.ToUpper(np.Currency), np.ImageURL, np.CategoryID, np.Stock).Scan(
		&p.ID, &p.Name, &p.Description, &p.Price, &p.Currency, &p.ImageURL, &p.CategoryID, &p.Stock, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Product{}, fmt.Errorf("failed to insert product: %w", err)
	}
	return p, nil
}

func (c *Conf) GetProduct(ctx context.Context, productID string) (Product, error) {
	if c.cache != nil {
		if cached, err := c.cache.Get(ctx, productID); err == nil && cached != nil {
			return *cached, nil
		}
	}

	query := `
		SELECT id, name, description, price, currency, image_url, category_id, stock, created_at, updated_at
		FROM products WHERE id = $1
	`
	var p Product
	err := c.db.QueryRowContext(ctx, query, productID).Scan(
		&p.ID, &p.Name, &p.Description, &p.Price, &p.Currency, &p.ImageURL, &p.CategoryID, &p.Stock, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Product{}, ErrProductNotFound
	}
	if err != nil {
		return Product{}, fmt.Errorf("failed to query product: %w", err)
	}

	if c.cache != nil {
		// cache population is best effort
		_ = c.cache.Set(ctx, &p)
	}
	return p, nil
}

func (c *Conf) ListProducts(ctx context.Context, filter ListFilter) ([]Product, error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	query := `
		SELECT id, name, description, price, currency, image_url, category_id, stock, created_at, updated_at
		FROM products
	`
	args := []any{}
	if filter.CategoryID != "" {
		query += ` WHERE category_id = $1`
		args = append(args, filter.CategoryID)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d OFFSET %d`, pageSize, offset)

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var list []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Currency, &p.ImageURL,
			&p.CategoryID, &p.Stock, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		list = append(list, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}
	return list, nil
}

func (c *Conf) UpdateProduct(ctx context.Context, productID string, up UpdateProduct) (Product, error) {
	query := `
		UPDATE products
		SET name        = COALESCE($2, name),
		    description = COALESCE($3, description),
		    price       = COALESCE($4, price),
		    image_url   = COALESCE($5, image_url),
		    category_id = COALESCE($6, category_id),
		    stock       = COALESCE($7, stock),
		    updated_at  = NOW()
		WHERE id = $1
		RETURNING id, name, description, price, currency, image_url, category_id, stock, created_at, updated_at
	`
	var p Product
	err := c.db.QueryRowContext(ctx, query, productID, up.Name, up.Description, up.Price,
		up.ImageURL, up.CategoryID, up.Stock).Scan(
		&p.ID, &p.Name, &p.Description, &p.Price, &p.Currency, &p.ImageURL, &p.CategoryID, &p.Stock, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Product{}, ErrProductNotFound
	}
	if err != nil {
		return Product{}, fmt.Errorf("failed to update product: %w", err)
	}

	if c.cache != nil {
		_ = c.cache.Delete(ctx, productID)
	}
	return p, nil
}

func (c *Conf) DeleteProduct(ctx context.Context, productID string) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, productID)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return ErrProductNotFound
	}

	if c.cache != nil {
		_ = c.cache.Delete(ctx, productID)
	}
	return nil
}
