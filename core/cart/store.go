package cart

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Ensure creates the cart row for a user if it does not exist. Every
// item mutation goes through it first so the row is always lockable.
func Ensure(ctx context.Context, db sqlx.ExtContext, userID string) error {
	const q = `
	INSERT INTO carts (user_id, created_at, updated_at, version)
	VALUES ($1, NOW(), NOW(), 1)
	ON CONFLICT (user_id) DO NOTHING`

	if _, err := db.ExecContext(ctx, q, userID); err != nil {
		return fmt.Errorf("ensuring cart of user[%s]: %w", userID, err)
	}
	return nil
}

// Lock takes the row lock that serializes cart mutations. Two concurrent
// checkouts of the same cart queue up here; the loser then sees an empty
// cart and fails cleanly.
func Lock(ctx context.Context, tx sqlx.ExtContext, userID string) error {
	const q = `SELECT version FROM carts WHERE user_id = $1 FOR UPDATE`

	var version int
	if err := tx.QueryRowxContext(ctx, q, userID).Scan(&version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("locking cart of user[%s]: %w", userID, err)
	}
	return nil
}

// UpsertItem adds quantity to the user's line for the product, creating
// the line when it does not exist. One line per (cart, product) always.
func UpsertItem(ctx context.Context, db sqlx.ExtContext, userID string, productID string, quantity int) error {
	const q = `
	INSERT INTO cart_items (user_id, product_id, quantity, created_at, updated_at)
	VALUES ($1, $2, $3, NOW(), NOW())
	ON CONFLICT (user_id, product_id) DO UPDATE SET
		quantity = cart_items.quantity + EXCLUDED.quantity,
		updated_at = NOW()`

	if _, err := db.ExecContext(ctx, q, userID, productID, quantity); err != nil {
		return fmt.Errorf("upserting cart item[%s]: %w", productID, err)
	}
	return nil
}

// SetQuantity overwrites a line's quantity. Zero removes the line rather
// than persisting it.
func SetQuantity(ctx context.Context, db sqlx.ExtContext, userID string, productID string, quantity int) error {
	if quantity == 0 {
		return DeleteItem(ctx, db, userID, productID)
	}

	const q = `
	UPDATE cart_items SET quantity = $3, updated_at = NOW()
	WHERE user_id = $1 AND product_id = $2`

	if _, err := db.ExecContext(ctx, q, userID, productID, quantity); err != nil {
		return fmt.Errorf("setting quantity of cart item[%s]: %w", productID, err)
	}
	return nil
}

func DeleteItem(ctx context.Context, db sqlx.ExtContext, userID string, productID string) error {
	const q = `DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2`

	if _, err := db.ExecContext(ctx, q, userID, productID); err != nil {
		return fmt.Errorf("deleting cart item[%s]: %w", productID, err)
	}
	return nil
}

// Delete removes every line of the user's cart.
func Delete(ctx context.Context, db sqlx.ExtContext, userID string) error {
	const q = `DELETE FROM cart_items WHERE user_id = $1`

	if _, err := db.ExecContext(ctx, q, userID); err != nil {
		return fmt.Errorf("flushing cart of user[%s]: %w", userID, err)
	}
	return nil
}

// FetchLines returns the cart joined with product and shop data, oldest
// line first so per-shop grouping stays stable.
func FetchLines(ctx context.Context, db sqlx.ExtContext, userID string) ([]Line, error) {
	const q = `
	SELECT
		ci.product_id,
		p.name AS product_name,
		ci.quantity,
		p.price,
		p.discount_percent,
		s.shop_id,
		s.name AS shop_name,
		s.delivery_charge,
		s.delivery_available
	FROM cart_items ci
	JOIN products p ON p.product_id = ci.product_id
	JOIN shops s ON s.shop_id = p.shop_id
	WHERE ci.user_id = $1
	ORDER BY ci.created_at, ci.product_id`

	lines := []Line{}
	if err := sqlx.SelectContext(ctx, db, &lines, q, userID); err != nil {
		return nil, fmt.Errorf("selecting cart lines of user[%s]: %w", userID, err)
	}
	return lines, nil
}

// Fetch assembles the cart view.
func Fetch(ctx context.Context, db sqlx.ExtContext, userID string) (Cart, error) {
	const q = `SELECT user_id, created_at, updated_at, version FROM carts WHERE user_id = $1`

	var crt Cart
	if err := sqlx.GetContext(ctx, db, &crt, q, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			now := time.Now().UTC()
			crt = Cart{UserID: userID, CreatedAt: now, UpdatedAt: now, Items: []Line{}}
			return crt, nil
		}
		return Cart{}, fmt.Errorf("selecting cart of user[%s]: %w", userID, err)
	}

	lines, err := FetchLines(ctx, db, userID)
	if err != nil {
		return Cart{}, err
	}

	crt.Items = lines
	for _, l := range lines {
		crt.Total += l.Total()
	}
	return crt, nil
}
