package order

import (
	"fmt"
	"time"
)

type Status string

const (
	Pending    Status = "pending"
	Confirmed  Status = "confirmed"
	Preparing  Status = "preparing"
	Ready      Status = "ready"
	Dispatched Status = "dispatched"
	Delivered  Status = "delivered"
	Cancelled  Status = "cancelled"
)

// transitions is the closed set of allowed status moves. Anything not
// listed is rejected with a TransitionError.
var transitions = map[Status][]Status{
	Pending:    {Confirmed, Cancelled},
	Confirmed:  {Preparing, Cancelled},
	Preparing:  {Ready},
	Ready:      {Dispatched, Delivered},
	Dispatched: {Delivered},
	Delivered:  {},
	Cancelled:  {},
}

func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

func (s Status) CanTransition(to Status) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionError reports a status move outside the transition table.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot move order from %q to %q", e.From, e.To)
}

type DeliveryType string

const (
	Pickup   DeliveryType = "pickup"
	Delivery DeliveryType = "delivery"
)

type Order struct {
	ID              string       `json:"id" db:"order_id"`
	CustomerID      string       `json:"customerId" db:"customer_id"`
	ShopID          string       `json:"shopId" db:"shop_id"`
	CustomerName    string       `json:"customerName" db:"customer_name"`
	CustomerPhone   string       `json:"customerPhone" db:"customer_phone"`
	DeliveryAddress string       `json:"deliveryAddress" db:"delivery_address"`
	DeliveryType    DeliveryType `json:"deliveryType" db:"delivery_type"`
	Status          Status       `json:"status" db:"status"`
	Subtotal        float64      `json:"subtotal" db:"subtotal"`
	DeliveryCharge  float64      `json:"deliveryCharge" db:"delivery_charge"`
	Total           float64      `json:"total" db:"total"`
	Notes           string       `json:"notes" db:"notes"`
	CreatedAt       time.Time    `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time    `json:"updatedAt" db:"updated_at"`

	Items []Item `json:"items,omitempty" db:"-"`
}

// Item snapshots a cart line at order time. Price is the effective unit
// price frozen at that instant; later product edits never touch it.
type Item struct {
	OrderID   string    `json:"orderId" db:"order_id"`
	ProductID string    `json:"productId" db:"product_id"`
	Quantity  int       `json:"quantity" db:"quantity"`
	Price     float64   `json:"price" db:"price"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// CheckoutNew is the customer-supplied part of a checkout call.
type CheckoutNew struct {
	CustomerName    string       `json:"customerName" validate:"required"`
	CustomerPhone   string       `json:"customerPhone" validate:"required,min=7,max=15"`
	DeliveryType    DeliveryType `json:"deliveryType" validate:"required,oneof=pickup delivery"`
	DeliveryAddress string       `json:"deliveryAddress"`
	Notes           string       `json:"notes"`
}

type StatusUp struct {
	Status Status `json:"status" validate:"required"`
}
