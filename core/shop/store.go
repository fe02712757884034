package shop

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

var (
	ErrNotFound        = errors.New("shop not found")
	ErrPaymentNotFound = errors.New("registration payment not found")
)

type Filter struct {
	Search       string
	City         string
	CategoryID   string
	DeliveryOnly bool
	Page         int
	PerPage      int
}

func Create(ctx context.Context, db sqlx.ExtContext, shp Shop) error {
	const q = `
	INSERT INTO shops
		(shop_id, owner_id, category_id, name, phone, address, city, pincode, description, status,
		 is_open, delivery_available, delivery_charge, fee_paid, created_at, updated_at, version)
	VALUES
		(:shop_id, :owner_id, :category_id, :name, :phone, :address, :city, :pincode, :description, :status,
		 :is_open, :delivery_available, :delivery_charge, :fee_paid, :created_at, :updated_at, :version)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, shp); err != nil {
		return fmt.Errorf("inserting shop: %w", err)
	}
	return nil
}

func Fetch(ctx context.Context, db sqlx.ExtContext, id string) (Shop, error) {
	const q = `SELECT * FROM shops WHERE shop_id = $1`

	var shp Shop
	if err := sqlx.GetContext(ctx, db, &shp, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Shop{}, ErrNotFound
		}
		return Shop{}, fmt.Errorf("selecting shop[%s]: %w", id, err)
	}
	return shp, nil
}

func List(ctx context.Context, db sqlx.ExtContext, f Filter) ([]Shop, error) {
	f.normalize()

	q := `SELECT * FROM shops WHERE status = 'active'`
	args := map[string]interface{}{
		"limit":  f.PerPage,
		"offset": (f.Page - 1) * f.PerPage,
	}

	if f.Search != "" {
		q += ` AND (name ILIKE :search OR description ILIKE :search)`
		args["search"] = "%" + f.Search + "%"
	}
	if f.City != "" {
		q += ` AND city ILIKE :city`
		args["city"] = f.City
	}
	if f.CategoryID != "" {
		q += ` AND category_id = :category_id`
		args["category_id"] = f.CategoryID
	}
	if f.DeliveryOnly {
		q += ` AND delivery_available`
	}

	q += ` ORDER BY name LIMIT :limit OFFSET :offset`

	rows, err := sqlx.NamedQueryContext(ctx, db, q, args)
	if err != nil {
		return nil, fmt.Errorf("selecting shops: %w", err)
	}
	defer rows.Close()

	shops := []Shop{}
	for rows.Next() {
		var shp Shop
		if err := rows.StructScan(&shp); err != nil {
			return nil, fmt.Errorf("scanning shop row: %w", err)
		}
		shops = append(shops, shp)
	}
	return shops, rows.Err()
}

func ListByOwner(ctx context.Context, db sqlx.ExtContext, ownerID string) ([]Shop, error) {
	const q = `SELECT * FROM shops WHERE owner_id = $1 ORDER BY created_at DESC`

	shops := []Shop{}
	if err := sqlx.SelectContext(ctx, db, &shops, q, ownerID); err != nil {
		return nil, fmt.Errorf("selecting shops of owner[%s]: %w", ownerID, err)
	}
	return shops, nil
}

func CreateCategory(ctx context.Context, db sqlx.ExtContext, cat Category) error {
	const q = `
	INSERT INTO shop_categories (category_id, name, description, is_active, created_at)
	VALUES (:category_id, :name, :description, :is_active, :created_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, cat); err != nil {
		return fmt.Errorf("inserting shop category: %w", err)
	}
	return nil
}

func ListCategories(ctx context.Context, db sqlx.ExtContext) ([]Category, error) {
	const q = `SELECT * FROM shop_categories WHERE is_active ORDER BY name`

	cats := []Category{}
	if err := sqlx.SelectContext(ctx, db, &cats, q); err != nil {
		return nil, fmt.Errorf("selecting shop categories: %w", err)
	}
	return cats, nil
}

// SetOpen flips the storefront between open and closed without touching
// the registration status.
func SetOpen(ctx context.Context, db sqlx.ExtContext, shopID string, open bool) error {
	const q = `
	UPDATE shops SET
		is_open = $2,
		updated_at = NOW(),
		version = version + 1
	WHERE shop_id = $1`

	if _, err := db.ExecContext(ctx, q, shopID, open); err != nil {
		return fmt.Errorf("setting is_open of shop[%s]: %w", shopID, err)
	}
	return nil
}

// Activate marks the registration fee settled and puts the shop in the
// active state.
func Activate(ctx context.Context, db sqlx.ExtContext, shopID string) error {
	const q = `
	UPDATE shops SET
		fee_paid = TRUE,
		status = 'active',
		updated_at = NOW(),
		version = version + 1
	WHERE shop_id = $1`

	if _, err := db.ExecContext(ctx, q, shopID); err != nil {
		return fmt.Errorf("activating shop[%s]: %w", shopID, err)
	}
	return nil
}

func CreatePayment(ctx context.Context, db sqlx.ExtContext, pay Payment) error {
	const q = `
	INSERT INTO shop_payments (shop_id, amount, status, provider, provider_id, created_at, updated_at)
	VALUES (:shop_id, :amount, :status, :provider, :provider_id, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, pay); err != nil {
		return fmt.Errorf("inserting registration payment: %w", err)
	}
	return nil
}

func FetchPayment(ctx context.Context, db sqlx.ExtContext, shopID string) (Payment, error) {
	const q = `SELECT * FROM shop_payments WHERE shop_id = $1`

	var pay Payment
	if err := sqlx.GetContext(ctx, db, &pay, q, shopID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Payment{}, ErrPaymentNotFound
		}
		return Payment{}, fmt.Errorf("selecting payment of shop[%s]: %w", shopID, err)
	}
	return pay, nil
}

func FetchPaymentByProviderID(ctx context.Context, db sqlx.ExtContext, providerID string) (Payment, error) {
	const q = `SELECT * FROM shop_payments WHERE provider_id = $1`

	var pay Payment
	if err := sqlx.GetContext(ctx, db, &pay, q, providerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Payment{}, ErrPaymentNotFound
		}
		return Payment{}, fmt.Errorf("selecting payment bound to provider id[%s]: %w", providerID, err)
	}
	return pay, nil
}

func UpdatePayment(ctx context.Context, db sqlx.ExtContext, pay Payment) error {
	const q = `
	UPDATE shop_payments SET
		status = :status,
		provider = :provider,
		provider_id = :provider_id,
		updated_at = :updated_at
	WHERE shop_id = :shop_id`

	if _, err := sqlx.NamedExecContext(ctx, db, q, pay); err != nil {
		return fmt.Errorf("updating payment of shop[%s]: %w", pay.ShopID, err)
	}
	return nil
}

// UpsertReview writes a customer's review, replacing a previous one.
func UpsertReview(ctx context.Context, db sqlx.ExtContext, rev Review) error {
	const q = `
	INSERT INTO shop_reviews (shop_id, customer_id, rating, comment, created_at, updated_at)
	VALUES (:shop_id, :customer_id, :rating, :comment, :created_at, :updated_at)
	ON CONFLICT (shop_id, customer_id) DO UPDATE SET
		rating = EXCLUDED.rating,
		comment = EXCLUDED.comment,
		updated_at = EXCLUDED.updated_at`

	if _, err := sqlx.NamedExecContext(ctx, db, q, rev); err != nil {
		return fmt.Errorf("upserting review: %w", err)
	}
	return nil
}

func ListReviews(ctx context.Context, db sqlx.ExtContext, shopID string) ([]Review, error) {
	const q = `SELECT * FROM shop_reviews WHERE shop_id = $1 ORDER BY created_at DESC`

	revs := []Review{}
	if err := sqlx.SelectContext(ctx, db, &revs, q, shopID); err != nil {
		return nil, fmt.Errorf("selecting reviews of shop[%s]: %w", shopID, err)
	}
	return revs, nil
}

// HasDeliveredOrder reports whether the customer ever completed an order
// at the shop. Reviews are restricted to such customers.
func HasDeliveredOrder(ctx context.Context, db sqlx.ExtContext, customerID string, shopID string) (bool, error) {
	const q = `
	SELECT EXISTS (
		SELECT 1 FROM orders
		WHERE customer_id = $1 AND shop_id = $2 AND status = 'delivered'
	)`

	var ok bool
	if err := db.QueryRowxContext(ctx, q, customerID, shopID).Scan(&ok); err != nil {
		return false, fmt.Errorf("checking delivered orders: %w", err)
	}
	return ok, nil
}

func (f *Filter) normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 || f.PerPage > 100 {
		f.PerPage = 12
	}
	f.Search = strings.TrimSpace(f.Search)
}
