package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

var (
	ErrNotFound        = errors.New("booking not found")
	ErrServiceNotFound = errors.New("cab service not found")
	ErrTypeNotFound    = errors.New("vehicle type not found")
)

func CreateService(ctx context.Context, db sqlx.ExtContext, svc Service) error {
	const q = `
	INSERT INTO cab_services (service_id, name, base_fare, per_km_rate, is_active, created_at)
	VALUES (:service_id, :name, :base_fare, :per_km_rate, :is_active, :created_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, svc); err != nil {
		return fmt.Errorf("inserting cab service: %w", err)
	}
	return nil
}

func FetchService(ctx context.Context, db sqlx.ExtContext, id string) (Service, error) {
	const q = `SELECT * FROM cab_services WHERE service_id = $1 AND is_active`

	var svc Service
	if err := sqlx.GetContext(ctx, db, &svc, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Service{}, ErrServiceNotFound
		}
		return Service{}, fmt.Errorf("selecting cab service[%s]: %w", id, err)
	}
	return svc, nil
}

func ListServices(ctx context.Context, db sqlx.ExtContext) ([]Service, error) {
	const q = `SELECT * FROM cab_services WHERE is_active ORDER BY name`

	svcs := []Service{}
	if err := sqlx.SelectContext(ctx, db, &svcs, q); err != nil {
		return nil, fmt.Errorf("selecting cab services: %w", err)
	}
	return svcs, nil
}

func CreateType(ctx context.Context, db sqlx.ExtContext, vt VehicleType) error {
	const q = `
	INSERT INTO cab_types (type_id, name, multiplier, capacity)
	VALUES (:type_id, :name, :multiplier, :capacity)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, vt); err != nil {
		return fmt.Errorf("inserting vehicle type: %w", err)
	}
	return nil
}

func FetchType(ctx context.Context, db sqlx.ExtContext, id string) (VehicleType, error) {
	const q = `SELECT * FROM cab_types WHERE type_id = $1`

	var vt VehicleType
	if err := sqlx.GetContext(ctx, db, &vt, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return VehicleType{}, ErrTypeNotFound
		}
		return VehicleType{}, fmt.Errorf("selecting vehicle type[%s]: %w", id, err)
	}
	return vt, nil
}

func ListTypes(ctx context.Context, db sqlx.ExtContext) ([]VehicleType, error) {
	const q = `SELECT * FROM cab_types ORDER BY multiplier`

	vts := []VehicleType{}
	if err := sqlx.SelectContext(ctx, db, &vts, q); err != nil {
		return nil, fmt.Errorf("selecting vehicle types: %w", err)
	}
	return vts, nil
}

func Create(ctx context.Context, db sqlx.ExtContext, bkg Booking) error {
	const q = `
	INSERT INTO bookings
		(booking_id, user_id, service_id, type_id, pickup, dropoff, pickup_time,
		 distance_km, estimated_fare, final_fare, driver_name, driver_phone, vehicle_number,
		 status, rating, feedback, instructions, created_at, updated_at)
	VALUES
		(:booking_id, :user_id, :service_id, :type_id, :pickup, :dropoff, :pickup_time,
		 :distance_km, :estimated_fare, :final_fare, :driver_name, :driver_phone, :vehicle_number,
		 :status, :rating, :feedback, :instructions, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, bkg); err != nil {
		return fmt.Errorf("inserting booking: %w", err)
	}
	return nil
}

// Fetch loads a booking scoped to its owner, so one user can never read
// another's rides.
func Fetch(ctx context.Context, db sqlx.ExtContext, bookingID string, userID string) (Booking, error) {
	const q = `SELECT * FROM bookings WHERE booking_id = $1 AND user_id = $2`

	var bkg Booking
	if err := sqlx.GetContext(ctx, db, &bkg, q, bookingID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Booking{}, ErrNotFound
		}
		return Booking{}, fmt.Errorf("selecting booking[%s]: %w", bookingID, err)
	}
	return bkg, nil
}

func FetchAny(ctx context.Context, db sqlx.ExtContext, bookingID string) (Booking, error) {
	const q = `SELECT * FROM bookings WHERE booking_id = $1`

	var bkg Booking
	if err := sqlx.GetContext(ctx, db, &bkg, q, bookingID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Booking{}, ErrNotFound
		}
		return Booking{}, fmt.Errorf("selecting booking[%s]: %w", bookingID, err)
	}
	return bkg, nil
}

func ListByUser(ctx context.Context, db sqlx.ExtContext, userID string, status Status, page, perPage int) ([]Booking, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 10
	}

	q := `SELECT * FROM bookings WHERE user_id = :user_id`
	args := map[string]interface{}{
		"user_id": userID,
		"limit":   perPage,
		"offset":  (page - 1) * perPage,
	}

	if status != "" {
		q += ` AND status = :status`
		args["status"] = status
	}

	q += ` ORDER BY created_at DESC LIMIT :limit OFFSET :offset`

	rows, err := sqlx.NamedQueryContext(ctx, db, q, args)
	if err != nil {
		return nil, fmt.Errorf("selecting bookings of user[%s]: %w", userID, err)
	}
	defer rows.Close()

	bkgs := []Booking{}
	for rows.Next() {
		var bkg Booking
		if err := rows.StructScan(&bkg); err != nil {
			return nil, fmt.Errorf("scanning booking row: %w", err)
		}
		bkgs = append(bkgs, bkg)
	}
	return bkgs, rows.Err()
}

// Transition moves a booking along the lifecycle under a row lock,
// optionally recording driver details assigned by the operator.
func Transition(ctx context.Context, db sqlx.ExtContext, bookingID string, up StatusUp) error {
	const sel = `SELECT status FROM bookings WHERE booking_id = $1 FOR UPDATE`

	var from Status
	if err := db.QueryRowxContext(ctx, sel, bookingID).Scan(&from); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("locking booking[%s]: %w", bookingID, err)
	}

	if !from.CanTransition(up.Status) {
		return &TransitionError{From: from, To: up.Status}
	}

	const q = `
	UPDATE bookings SET
		status = $2,
		driver_name = CASE WHEN $3 <> '' THEN $3 ELSE driver_name END,
		driver_phone = CASE WHEN $4 <> '' THEN $4 ELSE driver_phone END,
		vehicle_number = CASE WHEN $5 <> '' THEN $5 ELSE vehicle_number END,
		updated_at = $6
	WHERE booking_id = $1`

	if _, err := db.ExecContext(ctx, q, bookingID, up.Status,
		up.DriverName, up.DriverPhone, up.VehicleNumber, time.Now().UTC()); err != nil {
		return fmt.Errorf("updating booking[%s]: %w", bookingID, err)
	}
	return nil
}

// Cancel applies the customer cancellation guard under a row lock.
func Cancel(ctx context.Context, db sqlx.ExtContext, bookingID string, userID string) error {
	const sel = `SELECT status FROM bookings WHERE booking_id = $1 AND user_id = $2 FOR UPDATE`

	var from Status
	if err := db.QueryRowxContext(ctx, sel, bookingID, userID).Scan(&from); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("locking booking[%s]: %w", bookingID, err)
	}

	if !from.CanCancel() {
		return &TransitionError{From: from, To: Cancelled}
	}

	const q = `UPDATE bookings SET status = $2, updated_at = $3 WHERE booking_id = $1`
	if _, err := db.ExecContext(ctx, q, bookingID, Cancelled, time.Now().UTC()); err != nil {
		return fmt.Errorf("cancelling booking[%s]: %w", bookingID, err)
	}
	return nil
}

func SetRating(ctx context.Context, db sqlx.ExtContext, bookingID string, userID string, rn RatingNew) error {
	const q = `
	UPDATE bookings SET rating = $3, feedback = $4, updated_at = $5
	WHERE booking_id = $1 AND user_id = $2 AND status = 'completed'`

	res, err := db.ExecContext(ctx, q, bookingID, userID, rn.Rating, rn.Feedback, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("rating booking[%s]: %w", bookingID, err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
