package shop

import "time"

type Status string

const (
	Pending   Status = "pending"
	Active    Status = "active"
	Suspended Status = "suspended"
	Rejected  Status = "rejected"
)

type Shop struct {
	ID                string    `json:"id" db:"shop_id"`
	OwnerID           string    `json:"ownerId" db:"owner_id"`
	CategoryID        *string   `json:"categoryId" db:"category_id"`
	Name              string    `json:"name" db:"name"`
	Phone             string    `json:"phone" db:"phone"`
	Address           string    `json:"address" db:"address"`
	City              string    `json:"city" db:"city"`
	Pincode           string    `json:"pincode" db:"pincode"`
	Description       string    `json:"description" db:"description"`
	Status            Status    `json:"status" db:"status"`
	IsOpen            bool      `json:"isOpen" db:"is_open"`
	DeliveryAvailable bool      `json:"deliveryAvailable" db:"delivery_available"`
	DeliveryCharge    float64   `json:"deliveryCharge" db:"delivery_charge"`
	FeePaid           bool      `json:"feePaid" db:"fee_paid"`
	CreatedAt         time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt         time.Time `json:"updatedAt" db:"updated_at"`
	Version           int       `json:"-" db:"version"`
}

type ShopNew struct {
	Name              string  `json:"name" validate:"required"`
	CategoryID        string  `json:"categoryId" validate:"omitempty,uuid4"`
	Phone             string  `json:"phone" validate:"required,min=7,max=15"`
	Address           string  `json:"address" validate:"required"`
	City              string  `json:"city" validate:"required"`
	Pincode           string  `json:"pincode" validate:"required,len=6"`
	Description       string  `json:"description"`
	DeliveryAvailable bool    `json:"deliveryAvailable"`
	DeliveryCharge    float64 `json:"deliveryCharge" validate:"gte=0"`
}

// Category buckets shops for browsing. Inactive categories are hidden
// from listings but keep their shops.
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

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

// Payment tracks the one-time registration fee a shop owes before it
// goes active.
type Payment struct {
	ShopID     string        `json:"shopId" db:"shop_id"`
	Amount     float64       `json:"amount" db:"amount"`
	Status     PaymentStatus `json:"status" db:"status"`
	Provider   string        `json:"provider" db:"provider"`
	ProviderID string        `json:"-" db:"provider_id"`
	CreatedAt  time.Time     `json:"createdAt" db:"created_at"`
	UpdatedAt  time.Time     `json:"updatedAt" db:"updated_at"`
}

type Review struct {
	ShopID     string    `json:"shopId" db:"shop_id"`
	CustomerID string    `json:"customerId" db:"customer_id"`
	Rating     int       `json:"rating" db:"rating"`
	Comment    string    `json:"comment" db:"comment"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt  time.Time `json:"updatedAt" db:"updated_at"`
}

type ReviewNew struct {
	Rating  int    `json:"rating" validate:"required,gte=1,lte=5"`
	Comment string `json:"comment"`
}
