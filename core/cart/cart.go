package cart

import (
	"math"
	"time"
)

type Cart struct {
	UserID    string    `json:"-" db:"user_id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
	Version   int       `json:"-" db:"version"`
	Items     []Line    `json:"items" db:"-"`
	Total     float64   `json:"total" db:"-"`
}

type Item struct {
	UserID    string    `json:"-" db:"user_id"`
	ProductID string    `json:"productId" db:"product_id"`
	Quantity  int       `json:"quantity" db:"quantity"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

type ItemNew struct {
	ProductID string `json:"productId" validate:"required,uuid4"`
	Quantity  int    `json:"quantity" validate:"required,gte=1"`
}

type ItemUp struct {
	Quantity int `json:"quantity" validate:"gte=0"`
}

// Line is a cart item joined with the product and shop columns the cart
// view and the checkout splitter need.
type Line struct {
	ProductID         string  `json:"productId" db:"product_id"`
	ProductName       string  `json:"productName" db:"product_name"`
	Quantity          int     `json:"quantity" db:"quantity"`
	Price             float64 `json:"price" db:"price"`
	DiscountPercent   float64 `json:"discountPercent" db:"discount_percent"`
	ShopID            string  `json:"shopId" db:"shop_id"`
	ShopName          string  `json:"shopName" db:"shop_name"`
	DeliveryCharge    float64 `json:"-" db:"delivery_charge"`
	DeliveryAvailable bool    `json:"-" db:"delivery_available"`
}

// UnitPrice is the discounted per-unit price, rounded to two decimals.
// Order items snapshot it at checkout time.
func (l Line) UnitPrice() float64 {
	if l.DiscountPercent <= 0 {
		return l.Price
	}
	return math.Round(l.Price*(1-l.DiscountPercent/100)*100) / 100
}

func (l Line) Total() float64 {
	return math.Round(l.UnitPrice()*float64(l.Quantity)*100) / 100
}
