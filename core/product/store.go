package product

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

var ErrNotFound = errors.New("product not found")

// Filter narrows List results. Zero values mean "no constraint".
type Filter struct {
	Search     string
	CategoryID string
	MinPrice   float64
	MaxPrice   float64
	Page       int
	PerPage    int
}

func Create(ctx context.Context, db sqlx.ExtContext, prd Product) error {
	const q = `
	INSERT INTO products
		(product_id, shop_id, category_id, name, description, price, discount_percent, unit, stock, is_available, created_at, updated_at)
	VALUES
		(:product_id, :shop_id, :category_id, :name, :description, :price, :discount_percent, :unit, :stock, :is_available, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, prd); err != nil {
		return fmt.Errorf("inserting product: %w", err)
	}
	return nil
}

func Fetch(ctx context.Context, db sqlx.ExtContext, id string) (Product, error) {
	const q = `SELECT * FROM products WHERE product_id = $1`

	var prd Product
	if err := sqlx.GetContext(ctx, db, &prd, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, fmt.Errorf("selecting product[%s]: %w", id, err)
	}
	return prd, nil
}

func Update(ctx context.Context, db sqlx.ExtContext, prd Product) error {
	const q = `
	UPDATE products SET
		category_id = :category_id,
		name = :name,
		description = :description,
		price = :price,
		discount_percent = :discount_percent,
		unit = :unit,
		stock = :stock,
		is_available = :is_available,
		updated_at = :updated_at,
		version = version + 1
	WHERE product_id = :product_id AND version = :version`

	res, err := sqlx.NamedExecContext(ctx, db, q, prd)
	if err != nil {
		return fmt.Errorf("updating product[%s]: %w", prd.ID, err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a product and its cart lines. Products already frozen
// onto an order keep their row and make the delete fail with a
// referential integrity error.
func Delete(ctx context.Context, db sqlx.ExtContext, id string) error {
	const dropLines = `DELETE FROM cart_items WHERE product_id = $1`
	if _, err := db.ExecContext(ctx, dropLines, id); err != nil {
		return fmt.Errorf("clearing cart lines of product[%s]: %w", id, err)
	}

	const q = `DELETE FROM products WHERE product_id = $1`
	res, err := db.ExecContext(ctx, q, id)
	if err != nil {
		return fmt.Errorf("deleting product[%s]: %w", id, err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// List pages through available products across all shops.
func List(ctx context.Context, db sqlx.ExtContext, f Filter) ([]Product, error) {
	f.normalize()

	q := `SELECT * FROM products WHERE is_available`
	args := map[string]interface{}{
		"limit":  f.PerPage,
		"offset": (f.Page - 1) * f.PerPage,
	}

	if f.CategoryID != "" {
		q += ` AND category_id = :category_id`
		args["category_id"] = f.CategoryID
	}
	if f.Search != "" {
		q += ` AND (name ILIKE :search OR description ILIKE :search)`
		args["search"] = "%" + f.Search + "%"
	}

	q += ` ORDER BY name LIMIT :limit OFFSET :offset`

	rows, err := sqlx.NamedQueryContext(ctx, db, q, args)
	if err != nil {
		return nil, fmt.Errorf("selecting products: %w", err)
	}
	defer rows.Close()

	prds := []Product{}
	for rows.Next() {
		var prd Product
		if err := rows.StructScan(&prd); err != nil {
			return nil, fmt.Errorf("scanning product row: %w", err)
		}
		prds = append(prds, prd)
	}
	return prds, rows.Err()
}

func CreateCategory(ctx context.Context, db sqlx.ExtContext, cat Category) error {
	const q = `
	INSERT INTO product_categories (category_id, name, description, is_active, created_at)
	VALUES (:category_id, :name, :description, :is_active, :created_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, cat); err != nil {
		return fmt.Errorf("inserting product category: %w", err)
	}
	return nil
}

func ListCategories(ctx context.Context, db sqlx.ExtContext) ([]Category, error) {
	const q = `SELECT * FROM product_categories WHERE is_active ORDER BY name`

	cats := []Category{}
	if err := sqlx.SelectContext(ctx, db, &cats, q); err != nil {
		return nil, fmt.Errorf("selecting product categories: %w", err)
	}
	return cats, nil
}

func ListByShop(ctx context.Context, db sqlx.ExtContext, shopID string, f Filter) ([]Product, error) {
	f.normalize()

	q := `SELECT * FROM products WHERE shop_id = :shop_id AND is_available`
	args := map[string]interface{}{
		"shop_id": shopID,
		"limit":   f.PerPage,
		"offset":  (f.Page - 1) * f.PerPage,
	}

	if f.Search != "" {
		q += ` AND (name ILIKE :search OR description ILIKE :search)`
		args["search"] = "%" + f.Search + "%"
	}
	if f.MinPrice > 0 {
		q += ` AND price >= :min_price`
		args["min_price"] = f.MinPrice
	}
	if f.MaxPrice > 0 {
		q += ` AND price <= :max_price`
		args["max_price"] = f.MaxPrice
	}

	q += ` ORDER BY name LIMIT :limit OFFSET :offset`

	rows, err := sqlx.NamedQueryContext(ctx, db, q, args)
	if err != nil {
		return nil, fmt.Errorf("selecting products of shop[%s]: %w", shopID, err)
	}
	defer rows.Close()

	prds := []Product{}
	for rows.Next() {
		var prd Product
		if err := rows.StructScan(&prd); err != nil {
			return nil, fmt.Errorf("scanning product row: %w", err)
		}
		prds = append(prds, prd)
	}
	return prds, rows.Err()
}

// normalize keeps pagination within sane bounds.
func (f *Filter) normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 || f.PerPage > 100 {
		f.PerPage = 20
	}
	f.Search = strings.TrimSpace(f.Search)
}
