package booking

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/onestophub/one-stop-hub/api/web"
	"github.com/onestophub/one-stop-hub/api/weberr"
	"github.com/onestophub/one-stop-hub/core/claims"
	"github.com/onestophub/one-stop-hub/database"
	"github.com/onestophub/one-stop-hub/random"
	"github.com/onestophub/one-stop-hub/validate"
)

func newID() string {
	return "CAB" + random.Upper(8)
}

func HandleCreateService(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var sn ServiceNew
		if err := web.Decode(w, r, &sn); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding cab service: %w", err))
		}

		if err := validate.Check(sn); err != nil {
			return weberr.Unprocessable(err)
		}

		svc := Service{
			ID:        validate.GenerateID(),
			Name:      sn.Name,
			BaseFare:  sn.BaseFare,
			PerKmRate: sn.PerKmRate,
			IsActive:  true,
			CreatedAt: time.Now().UTC(),
		}

		if err := CreateService(ctx, db, svc); err != nil {
			return err
		}

		return web.Respond(ctx, w, svc, http.StatusCreated)
	}
}

func HandleListServices(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		svcs, err := ListServices(ctx, db)
		if err != nil {
			return err
		}
		return web.Respond(ctx, w, svcs, http.StatusOK)
	}
}

func HandleCreateType(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var tn VehicleTypeNew
		if err := web.Decode(w, r, &tn); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding vehicle type: %w", err))
		}

		if err := validate.Check(tn); err != nil {
			return weberr.Unprocessable(err)
		}

		vt := VehicleType{
			ID:         validate.GenerateID(),
			Name:       tn.Name,
			Multiplier: tn.Multiplier,
			Capacity:   tn.Capacity,
		}

		if err := CreateType(ctx, db, vt); err != nil {
			if database.IsUniqueViolation(err) {
				return weberr.Conflict(fmt.Errorf("vehicle type %q already exists", tn.Name))
			}
			return err
		}

		return web.Respond(ctx, w, vt, http.StatusCreated)
	}
}

func HandleListTypes(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		vts, err := ListTypes(ctx, db)
		if err != nil {
			return err
		}
		return web.Respond(ctx, w, vts, http.StatusOK)
	}
}

// HandleQuote prices a prospective ride without creating anything.
// Lookup failures and bad tariffs surface with their specific kind
// rather than a catch-all failure payload.
func HandleQuote(db *sqlx.DB, est *Estimator, dist Distancer) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		serviceID := web.Query(r, "service_id")
		typeID := web.Query(r, "type_id")
		pickup := web.Query(r, "pickup")
		dropoff := web.Query(r, "dropoff")

		if err := validate.CheckID(serviceID); err != nil {
			return weberr.BadRequest(fmt.Errorf("service_id: %w", err))
		}
		if err := validate.CheckID(typeID); err != nil {
			return weberr.BadRequest(fmt.Errorf("type_id: %w", err))
		}
		if pickup == "" || dropoff == "" {
			return weberr.BadRequest(errors.New("pickup and dropoff are required"))
		}

		svc, err := FetchService(ctx, db, serviceID)
		if err != nil {
			if errors.Is(err, ErrServiceNotFound) {
				return weberr.NotFound(err)
			}
			return err
		}

		vt, err := FetchType(ctx, db, typeID)
		if err != nil {
			if errors.Is(err, ErrTypeNotFound) {
				return weberr.NotFound(err)
			}
			return err
		}

		km, err := dist.Distance(ctx, pickup, dropoff)
		if err != nil {
			return fmt.Errorf("resolving distance: %w", err)
		}

		fare, err := est.Estimate(svc.BaseFare, svc.PerKmRate, vt.Multiplier, km)
		if err != nil {
			return weberr.BadRequest(err)
		}

		quote := struct {
			Service    string  `json:"service"`
			Type       string  `json:"type"`
			DistanceKm float64 `json:"distanceKm"`
			Fare       float64 `json:"fare"`
		}{svc.Name, vt.Name, km, fare}

		return web.Respond(ctx, w, quote, http.StatusOK)
	}
}

func HandleCreate(db *sqlx.DB, est *Estimator, dist Distancer) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		var bn BookingNew
		if err := web.Decode(w, r, &bn); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding booking: %w", err))
		}

		if err := validate.Check(bn); err != nil {
			return weberr.Unprocessable(err)
		}

		svc, err := FetchService(ctx, db, bn.ServiceID)
		if err != nil {
			if errors.Is(err, ErrServiceNotFound) {
				return weberr.NotFound(err)
			}
			return err
		}

		vt, err := FetchType(ctx, db, bn.TypeID)
		if err != nil {
			if errors.Is(err, ErrTypeNotFound) {
				return weberr.NotFound(err)
			}
			return err
		}

		km, err := dist.Distance(ctx, bn.Pickup, bn.Dropoff)
		if err != nil {
			return fmt.Errorf("resolving distance: %w", err)
		}

		fare, err := est.Estimate(svc.BaseFare, svc.PerKmRate, vt.Multiplier, km)
		if err != nil {
			return weberr.BadRequest(err)
		}

		now := time.Now().UTC()
		bkg := Booking{
			ID:            newID(),
			UserID:        clm.UserID,
			ServiceID:     svc.ID,
			TypeID:        vt.ID,
			Pickup:        bn.Pickup,
			Dropoff:       bn.Dropoff,
			PickupTime:    bn.PickupTime,
			DistanceKm:    km,
			EstimatedFare: fare,
			Status:        Pending,
			Instructions:  bn.Instructions,
			CreatedAt:     now,
			UpdatedAt:     now,
		}

		if err := Create(ctx, db, bkg); err != nil {
			return err
		}

		return web.Respond(ctx, w, bkg, http.StatusCreated)
	}
}

func HandleList(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		status := Status(web.Query(r, "status"))
		if status != "" && !status.Valid() {
			return weberr.BadRequest(fmt.Errorf("unknown status %q", status))
		}

		bkgs, err := ListByUser(ctx, db, clm.UserID, status,
			web.QueryInt(r, "page", 1),
			web.QueryInt(r, "per_page", 10),
		)
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, bkgs, http.StatusOK)
	}
}

func HandleShow(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		bkg, err := Fetch(ctx, db, web.Param(r, "id"), clm.UserID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return err
		}

		return web.Respond(ctx, w, bkg, http.StatusOK)
	}
}

func HandleCancel(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		bookingID := web.Param(r, "id")

		err = database.Transaction(db, func(tx sqlx.ExtContext) error {
			return Cancel(ctx, tx, bookingID, clm.UserID)
		})
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			var terr *TransitionError
			if errors.As(err, &terr) {
				return weberr.Conflict(terr)
			}
			return err
		}

		bkg, err := Fetch(ctx, db, bookingID, clm.UserID)
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, bkg, http.StatusOK)
	}
}

// HandleUpdateStatus is the operator endpoint driving confirmed/ongoing/
// completed moves and recording the assigned driver.
func HandleUpdateStatus(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		bookingID := web.Param(r, "id")

		var up StatusUp
		if err := web.Decode(w, r, &up); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding status update: %w", err))
		}

		if !up.Status.Valid() {
			return weberr.BadRequest(fmt.Errorf("unknown status %q", up.Status))
		}

		err := database.Transaction(db, func(tx sqlx.ExtContext) error {
			return Transition(ctx, tx, bookingID, up)
		})
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			var terr *TransitionError
			if errors.As(err, &terr) {
				return weberr.Conflict(terr)
			}
			return err
		}

		bkg, err := FetchAny(ctx, db, bookingID)
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, bkg, http.StatusOK)
	}
}

func HandleRate(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		var rn RatingNew
		if err := web.Decode(w, r, &rn); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding rating: %w", err))
		}

		if err := validate.Check(rn); err != nil {
			return weberr.Unprocessable(err)
		}

		bookingID := web.Param(r, "id")

		bkg, err := Fetch(ctx, db, bookingID, clm.UserID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return err
		}
		if bkg.Status != Completed {
			return weberr.Unprocessable(errors.New("only completed bookings can be rated"))
		}

		if err := SetRating(ctx, db, bookingID, clm.UserID, rn); err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.Unprocessable(errors.New("only completed bookings can be rated"))
			}
			return err
		}

		bkg, err = Fetch(ctx, db, bookingID, clm.UserID)
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, bkg, http.StatusOK)
	}
}
