package shop

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
	"github.com/onestophub/one-stop-hub/validate"
)

// HandleRegister creates a shop in the pending state together with its
// registration-fee record. The shop goes active once the fee is captured.
func HandleRegister(db *sqlx.DB, registrationFee float64) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		var sn ShopNew
		if err := web.Decode(w, r, &sn); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding shop registration: %w", err))
		}

		if err := validate.Check(sn); err != nil {
			return weberr.Unprocessable(err)
		}

		var catID *string
		if sn.CategoryID != "" {
			catID = &sn.CategoryID
		}

		now := time.Now().UTC()
		shp := Shop{
			ID:                validate.GenerateID(),
			OwnerID:           clm.UserID,
			CategoryID:        catID,
			Name:              sn.Name,
			Phone:             sn.Phone,
			Address:           sn.Address,
			City:              sn.City,
			Pincode:           sn.Pincode,
			Description:       sn.Description,
			Status:            Pending,
			IsOpen:            true,
			DeliveryAvailable: sn.DeliveryAvailable,
			DeliveryCharge:    sn.DeliveryCharge,
			CreatedAt:         now,
			UpdatedAt:         now,
			Version:           1,
		}

		err = database.Transaction(db, func(tx sqlx.ExtContext) error {
			if err := Create(ctx, tx, shp); err != nil {
				return err
			}

			pay := Payment{
				ShopID:    shp.ID,
				Amount:    registrationFee,
				Status:    PaymentPending,
				CreatedAt: now,
				UpdatedAt: now,
			}
			return CreatePayment(ctx, tx, pay)
		})
		if err != nil {
			if database.IsForeignKeyViolation(err) {
				return weberr.Unprocessable(fmt.Errorf("unknown category[%s]", sn.CategoryID))
			}
			return fmt.Errorf("registering shop: %w", err)
		}

		return web.Respond(ctx, w, shp, http.StatusCreated)
	}
}

func HandleList(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		f := Filter{
			Search:       web.Query(r, "search"),
			City:         web.Query(r, "city"),
			CategoryID:   web.Query(r, "category_id"),
			DeliveryOnly: web.Query(r, "delivery") == "true",
			Page:         web.QueryInt(r, "page", 1),
			PerPage:      web.QueryInt(r, "per_page", 12),
		}
		if f.CategoryID != "" {
			if err := validate.CheckID(f.CategoryID); err != nil {
				return weberr.BadRequest(err)
			}
		}

		shops, err := List(ctx, db, f)
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, shops, http.StatusOK)
	}
}

func HandleShow(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		shopID := web.Param(r, "id")
		if err := validate.CheckID(shopID); err != nil {
			return weberr.BadRequest(err)
		}

		shp, err := Fetch(ctx, db, shopID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return err
		}

		return web.Respond(ctx, w, shp, http.StatusOK)
	}
}

func HandleCreateCategory(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var cn CategoryNew
		if err := web.Decode(w, r, &cn); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding category: %w", err))
		}

		if err := validate.Check(cn); err != nil {
			return weberr.Unprocessable(err)
		}

		cat := Category{
			ID:          validate.GenerateID(),
			Name:        cn.Name,
			Description: cn.Description,
			IsActive:    true,
			CreatedAt:   time.Now().UTC(),
		}

		if err := CreateCategory(ctx, db, cat); err != nil {
			if database.IsUniqueViolation(err) {
				return weberr.Conflict(fmt.Errorf("category %q already exists", cn.Name))
			}
			return err
		}

		return web.Respond(ctx, w, cat, http.StatusCreated)
	}
}

func HandleListCategories(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		cats, err := ListCategories(ctx, db)
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, cats, http.StatusOK)
	}
}

// HandleToggleOpen lets the owner flip the storefront between open and
// closed, the quick lever for lunch breaks and holidays.
func HandleToggleOpen(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		shopID := web.Param(r, "id")
		if err := validate.CheckID(shopID); err != nil {
			return weberr.BadRequest(err)
		}

		shp, err := Fetch(ctx, db, shopID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return err
		}
		if !claims.IsUser(ctx, shp.OwnerID) {
			return weberr.NotAuthorized(errors.New("not the shop owner"))
		}

		if err := SetOpen(ctx, db, shopID, !shp.IsOpen); err != nil {
			return err
		}

		shp, err = Fetch(ctx, db, shopID)
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, shp, http.StatusOK)
	}
}

func HandleListOwned(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		shops, err := ListByOwner(ctx, db, clm.UserID)
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, shops, http.StatusOK)
	}
}

func HandleCreateReview(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		shopID := web.Param(r, "id")
		if err := validate.CheckID(shopID); err != nil {
			return weberr.BadRequest(err)
		}

		var rn ReviewNew
		if err := web.Decode(w, r, &rn); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding review: %w", err))
		}

		if err := validate.Check(rn); err != nil {
			return weberr.Unprocessable(err)
		}

		if _, err := Fetch(ctx, db, shopID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return err
		}

		ordered, err := HasDeliveredOrder(ctx, db, clm.UserID, shopID)
		if err != nil {
			return err
		}
		if !ordered {
			return weberr.Unprocessable(errors.New("only customers with a delivered order can review a shop"))
		}

		now := time.Now().UTC()
		rev := Review{
			ShopID:     shopID,
			CustomerID: clm.UserID,
			Rating:     rn.Rating,
			Comment:    rn.Comment,
			CreatedAt:  now,
			UpdatedAt:  now,
		}

		if err := UpsertReview(ctx, db, rev); err != nil {
			return err
		}

		return web.Respond(ctx, w, rev, http.StatusCreated)
	}
}

func HandleListReviews(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		shopID := web.Param(r, "id")
		if err := validate.CheckID(shopID); err != nil {
			return weberr.BadRequest(err)
		}

		revs, err := ListReviews(ctx, db, shopID)
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, revs, http.StatusOK)
	}
}
