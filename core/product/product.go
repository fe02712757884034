package product

import (
	"math"
	"time"
)

// Category buckets products for cross-shop browsing. Inactive categories
// are hidden from listings but keep their products.
type Category struct {
	ID          string    `json:"id" db:"category_id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	IsActive    bool      `json:"isActive" db:"is_active"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}

type CategoryNew struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

type Product struct {
	ID              string    `json:"id" db:"product_id"`
	ShopID          string    `json:"shopId" db:"shop_id"`
	CategoryID      *string   `json:"categoryId" db:"category_id"`
	Name            string    `json:"name" db:"name"`
	Description     string    `json:"description" db:"description"`
	Price           float64   `json:"price" db:"price"`
	DiscountPercent float64   `json:"discountPercent" db:"discount_percent"`
	Unit            string    `json:"unit" db:"unit"`
	Stock           int       `json:"stock" db:"stock"`
	IsAvailable     bool      `json:"isAvailable" db:"is_available"`
	CreatedAt       time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time `json:"updatedAt" db:"updated_at"`
	Version         int       `json:"-" db:"version"`
}

type ProductNew struct {
	Name            string  `json:"name" validate:"required"`
	CategoryID      string  `json:"categoryId" validate:"omitempty,uuid4"`
	Description     string  `json:"description"`
	Price           float64 `json:"price" validate:"required,gt=0"`
	DiscountPercent float64 `json:"discountPercent" validate:"gte=0,lte=100"`
	Unit            string  `json:"unit"`
	Stock           int     `json:"stock" validate:"gte=0"`
}

type ProductUp struct {
	Name            *string  `json:"name"`
	CategoryID      *string  `json:"categoryId" validate:"omitempty,uuid4"`
	Description     *string  `json:"description"`
	Price           *float64 `json:"price" validate:"omitempty,gt=0"`
	DiscountPercent *float64 `json:"discountPercent" validate:"omitempty,gte=0,lte=100"`
	Unit            *string  `json:"unit"`
	Stock           *int     `json:"stock" validate:"omitempty,gte=0"`
	IsAvailable     *bool    `json:"isAvailable"`
}

// EffectivePrice is the unit price after the discount percentage,
// rounded to two decimals. Order items snapshot this value.
func (p Product) EffectivePrice() float64 {
	return EffectivePrice(p.Price, p.DiscountPercent)
}

func EffectivePrice(price float64, discountPercent float64) float64 {
	if discountPercent <= 0 {
		return price
	}
	return math.Round(price*(1-discountPercent/100)*100) / 100
}
