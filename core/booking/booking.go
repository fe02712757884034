package booking

import (
	"fmt"
	"time"
)

type Status string

const (
	Pending   Status = "pending"
	Confirmed Status = "confirmed"
	Ongoing   Status = "ongoing"
	Completed Status = "completed"
	Cancelled Status = "cancelled"
)

var transitions = map[Status][]Status{
	Pending:   {Confirmed, Cancelled},
	Confirmed: {Ongoing, Cancelled},
	Ongoing:   {Completed},
	Completed: {},
	Cancelled: {},
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

// CanCancel reports whether the customer may still cancel. Once a ride
// is ongoing only the operator flow applies.
func (s Status) CanCancel() bool {
	return s == Pending || s == Confirmed
}

type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot move booking from %q to %q", e.From, e.To)
}

// Service is a cab provider with its tariff.
type Service struct {
	ID        string    `json:"id" db:"service_id"`
	Name      string    `json:"name" db:"name"`
	BaseFare  float64   `json:"baseFare" db:"base_fare"`
	PerKmRate float64   `json:"perKmRate" db:"per_km_rate"`
	IsActive  bool      `json:"isActive" db:"is_active"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

type ServiceNew struct {
	Name      string  `json:"name" validate:"required"`
	BaseFare  float64 `json:"baseFare" validate:"gte=0"`
	PerKmRate float64 `json:"perKmRate" validate:"gte=0"`
}

// VehicleType is a cab class with its price multiplier.
type VehicleType struct {
	ID         string  `json:"id" db:"type_id"`
	Name       string  `json:"name" db:"name"`
	Multiplier float64 `json:"multiplier" db:"multiplier"`
	Capacity   int     `json:"capacity" db:"capacity"`
}

type VehicleTypeNew struct {
	Name       string  `json:"name" validate:"required,oneof=mini sedan suv luxury"`
	Multiplier float64 `json:"multiplier" validate:"required,gt=0"`
	Capacity   int     `json:"capacity" validate:"required,gte=1"`
}

type Booking struct {
	ID            string     `json:"id" db:"booking_id"`
	UserID        string     `json:"userId" db:"user_id"`
	ServiceID     string     `json:"serviceId" db:"service_id"`
	TypeID        string     `json:"typeId" db:"type_id"`
	Pickup        string     `json:"pickup" db:"pickup"`
	Dropoff       string     `json:"dropoff" db:"dropoff"`
	PickupTime    time.Time  `json:"pickupTime" db:"pickup_time"`
	DistanceKm    float64    `json:"distanceKm" db:"distance_km"`
	EstimatedFare float64    `json:"estimatedFare" db:"estimated_fare"`
	FinalFare     *float64   `json:"finalFare" db:"final_fare"`
	DriverName    string     `json:"driverName" db:"driver_name"`
	DriverPhone   string     `json:"driverPhone" db:"driver_phone"`
	VehicleNumber string     `json:"vehicleNumber" db:"vehicle_number"`
	Status        Status     `json:"status" db:"status"`
	Rating        *int       `json:"rating" db:"rating"`
	Feedback      string     `json:"feedback" db:"feedback"`
	Instructions  string     `json:"instructions" db:"instructions"`
	CreatedAt     time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time  `json:"updatedAt" db:"updated_at"`
}

type BookingNew struct {
	ServiceID    string    `json:"serviceId" validate:"required,uuid4"`
	TypeID       string    `json:"typeId" validate:"required,uuid4"`
	Pickup       string    `json:"pickup" validate:"required"`
	Dropoff      string    `json:"dropoff" validate:"required"`
	PickupTime   time.Time `json:"pickupTime" validate:"required"`
	Instructions string    `json:"instructions"`
}

// StatusUp is the operator-side update: a status move plus the driver
// details assigned out of band.
type StatusUp struct {
	Status        Status `json:"status" validate:"required"`
	DriverName    string `json:"driverName"`
	DriverPhone   string `json:"driverPhone"`
	VehicleNumber string `json:"vehicleNumber"`
}

type RatingNew struct {
	Rating   int    `json:"rating" validate:"required,gte=1,lte=5"`
	Feedback string `json:"feedback"`
}
