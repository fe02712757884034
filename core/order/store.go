package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

var ErrNotFound = errors.New("order not found")

func Create(ctx context.Context, db sqlx.ExtContext, ord Order) error {
	const q = `
	INSERT INTO orders
		(order_id, customer_id, shop_id, customer_name, customer_phone, delivery_address,
		 delivery_type, status, subtotal, delivery_charge, total, notes, created_at, updated_at)
	VALUES
		(:order_id, :customer_id, :shop_id, :customer_name, :customer_phone, :delivery_address,
		 :delivery_type, :status, :subtotal, :delivery_charge, :total, :notes, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, ord); err != nil {
		return fmt.Errorf("inserting order: %w", err)
	}
	return nil
}

func CreateItem(ctx context.Context, db sqlx.ExtContext, it Item) error {
	const q = `
	INSERT INTO order_items (order_id, product_id, quantity, price, created_at)
	VALUES (:order_id, :product_id, :quantity, :price, :created_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, it); err != nil {
		return fmt.Errorf("inserting order item: %w", err)
	}
	return nil
}

func Fetch(ctx context.Context, db sqlx.ExtContext, orderID string) (Order, error) {
	const q = `SELECT * FROM orders WHERE order_id = $1`

	var ord Order
	if err := sqlx.GetContext(ctx, db, &ord, q, orderID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, fmt.Errorf("selecting order[%s]: %w", orderID, err)
	}
	return ord, nil
}

func FetchItems(ctx context.Context, db sqlx.ExtContext, orderID string) ([]Item, error) {
	const q = `SELECT * FROM order_items WHERE order_id = $1 ORDER BY product_id`

	items := []Item{}
	if err := sqlx.SelectContext(ctx, db, &items, q, orderID); err != nil {
		return nil, fmt.Errorf("selecting items of order[%s]: %w", orderID, err)
	}
	return items, nil
}

func ListByCustomer(ctx context.Context, db sqlx.ExtContext, customerID string, page, perPage int) ([]Order, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 10
	}

	const q = `
	SELECT * FROM orders WHERE customer_id = $1
	ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	orders := []Order{}
	if err := sqlx.SelectContext(ctx, db, &orders, q, customerID, perPage, (page-1)*perPage); err != nil {
		return nil, fmt.Errorf("selecting orders of customer[%s]: %w", customerID, err)
	}
	return orders, nil
}

func ListByShop(ctx context.Context, db sqlx.ExtContext, shopID string, page, perPage int) ([]Order, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 10
	}

	const q = `
	SELECT * FROM orders WHERE shop_id = $1
	ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	orders := []Order{}
	if err := sqlx.SelectContext(ctx, db, &orders, q, shopID, perPage, (page-1)*perPage); err != nil {
		return nil, fmt.Errorf("selecting orders of shop[%s]: %w", shopID, err)
	}
	return orders, nil
}

// Transition moves an order to a new status, enforcing the transition
// table under a row lock so concurrent updates serialize.
func Transition(ctx context.Context, db sqlx.ExtContext, orderID string, to Status) error {
	const sel = `SELECT status FROM orders WHERE order_id = $1 FOR UPDATE`

	var from Status
	if err := db.QueryRowxContext(ctx, sel, orderID).Scan(&from); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("locking order[%s]: %w", orderID, err)
	}

	if !from.CanTransition(to) {
		return &TransitionError{From: from, To: to}
	}

	const up = `UPDATE orders SET status = $2, updated_at = $3 WHERE order_id = $1`
	if _, err := db.ExecContext(ctx, up, orderID, to, time.Now().UTC()); err != nil {
		return fmt.Errorf("updating status of order[%s]: %w", orderID, err)
	}
	return nil
}
