package order

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/onestophub/one-stop-hub/core/cart"
	"github.com/onestophub/one-stop-hub/database"
	"github.com/onestophub/one-stop-hub/random"
)

var (
	// ErrEmptyCart is returned when checkout finds nothing to order.
	ErrEmptyCart = errors.New("cart is empty")

	// ErrMissingAddress is returned when delivery is requested without
	// a delivery address.
	ErrMissingAddress = errors.New("delivery requires a delivery address")
)

// newID builds a public order identifier. Eight random uppercase
// alphanumerics behind the tag keep the collision odds negligible at
// this order volume.
func newID() string {
	return "ORD" + random.Upper(8)
}

type group struct {
	shopID            string
	deliveryCharge    float64
	deliveryAvailable bool
	lines             []cart.Line
}

// split partitions cart lines by shop, preserving the order in which
// shops first appear.
func split(lines []cart.Line) []*group {
	byShop := make(map[string]*group)
	groups := []*group{}

	for _, l := range lines {
		g, ok := byShop[l.ShopID]
		if !ok {
			g = &group{
				shopID:            l.ShopID,
				deliveryCharge:    l.DeliveryCharge,
				deliveryAvailable: l.DeliveryAvailable,
			}
			byShop[l.ShopID] = g
			groups = append(groups, g)
		}
		g.lines = append(g.lines, l)
	}
	return groups
}

// build turns cart lines into one pending order per shop. It performs no
// I/O: identifiers are drawn, prices are frozen, and totals are computed
// here, so the arithmetic is testable without a store.
func build(lines []cart.Line, customerID string, info CheckoutNew, now time.Time) ([]Order, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	if info.DeliveryType == Delivery && strings.TrimSpace(info.DeliveryAddress) == "" {
		return nil, ErrMissingAddress
	}

	groups := split(lines)
	orders := make([]Order, 0, len(groups))

	for _, g := range groups {
		var subtotal float64
		items := make([]Item, 0, len(g.lines))

		for _, l := range g.lines {
			subtotal += l.Total()
			items = append(items, Item{
				ProductID: l.ProductID,
				Quantity:  l.Quantity,
				Price:     l.UnitPrice(),
				CreatedAt: now,
			})
		}
		subtotal = math.Round(subtotal*100) / 100

		var charge float64
		if info.DeliveryType == Delivery && g.deliveryAvailable {
			charge = g.deliveryCharge
		}

		ord := Order{
			ID:              newID(),
			CustomerID:      customerID,
			ShopID:          g.shopID,
			CustomerName:    info.CustomerName,
			CustomerPhone:   info.CustomerPhone,
			DeliveryAddress: info.DeliveryAddress,
			DeliveryType:    info.DeliveryType,
			Status:          Pending,
			Subtotal:        subtotal,
			DeliveryCharge:  charge,
			Total:           math.Round((subtotal+charge)*100) / 100,
			Notes:           info.Notes,
			CreatedAt:       now,
			UpdatedAt:       now,
			Items:           items,
		}

		for i := range ord.Items {
			ord.Items[i].OrderID = ord.ID
		}

		orders = append(orders, ord)
	}

	return orders, nil
}

// Checkout turns the user's cart into one order per shop and empties the
// cart, all inside a single transaction. The cart row is locked first so
// two concurrent submissions cannot both order the same lines; any
// failure rolls the whole call back and leaves the cart intact.
func Checkout(ctx context.Context, db *sqlx.DB, customerID string, info CheckoutNew) ([]Order, error) {
	var orders []Order

	err := database.Transaction(db, func(tx sqlx.ExtContext) error {
		if err := cart.Lock(ctx, tx, customerID); err != nil {
			return err
		}

		lines, err := cart.FetchLines(ctx, tx, customerID)
		if err != nil {
			return err
		}

		orders, err = build(lines, customerID, info, time.Now().UTC())
		if err != nil {
			return err
		}

		for _, ord := range orders {
			if err := Create(ctx, tx, ord); err != nil {
				return fmt.Errorf("creating order for shop[%s]: %w", ord.ShopID, err)
			}

			for _, it := range ord.Items {
				if err := CreateItem(ctx, tx, it); err != nil {
					return fmt.Errorf("creating item[%s] of order[%s]: %w", it.ProductID, ord.ID, err)
				}
			}
		}

		return cart.Delete(ctx, tx, customerID)
	})

	if err != nil {
		return nil, err
	}
	return orders, nil
}
