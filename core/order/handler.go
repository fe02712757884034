package order

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jmoiron/sqlx"
	"github.com/onestophub/one-stop-hub/api/web"
	"github.com/onestophub/one-stop-hub/api/weberr"
	"github.com/onestophub/one-stop-hub/core/claims"
	"github.com/onestophub/one-stop-hub/core/shop"
	"github.com/onestophub/one-stop-hub/database"
	"github.com/onestophub/one-stop-hub/validate"
)

func HandleCheckout(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		var info CheckoutNew
		if err := web.Decode(w, r, &info); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding checkout: %w", err))
		}

		if err := validate.Check(info); err != nil {
			return weberr.Unprocessable(err)
		}

		orders, err := Checkout(ctx, db, clm.UserID, info)
		if err != nil {
			switch {
			case errors.Is(err, ErrEmptyCart), errors.Is(err, ErrMissingAddress):
				return weberr.Unprocessable(err)
			}
			return fmt.Errorf("checking out cart of user[%s]: %w", clm.UserID, err)
		}

		return web.Respond(ctx, w, orders, http.StatusCreated)
	}
}

func HandleList(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		orders, err := ListByCustomer(ctx, db, clm.UserID,
			web.QueryInt(r, "page", 1),
			web.QueryInt(r, "per_page", 10),
		)
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, orders, http.StatusOK)
	}
}

func HandleShow(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		orderID := web.Param(r, "id")

		ord, err := Fetch(ctx, db, orderID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return err
		}

		// The customer and the shop owner may both look at an order.
		if !claims.IsUser(ctx, ord.CustomerID) {
			shp, err := shop.Fetch(ctx, db, ord.ShopID)
			if err != nil {
				return err
			}
			if !claims.IsUser(ctx, shp.OwnerID) {
				return weberr.NotFound(ErrNotFound)
			}
		}

		items, err := FetchItems(ctx, db, ord.ID)
		if err != nil {
			return err
		}
		ord.Items = items

		return web.Respond(ctx, w, ord, http.StatusOK)
	}
}

func HandleListByShop(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		shopID := web.Param(r, "id")
		if err := validate.CheckID(shopID); err != nil {
			return weberr.BadRequest(err)
		}

		shp, err := shop.Fetch(ctx, db, shopID)
		if err != nil {
			if errors.Is(err, shop.ErrNotFound) {
				return weberr.NotFound(err)
			}
			return err
		}
		if !claims.IsUser(ctx, shp.OwnerID) {
			return weberr.NotAuthorized(errors.New("not the shop owner"))
		}

		orders, err := ListByShop(ctx, db, shopID,
			web.QueryInt(r, "page", 1),
			web.QueryInt(r, "per_page", 10),
		)
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, orders, http.StatusOK)
	}
}

// HandleUpdateStatus lets the shop owner advance an order through its
// lifecycle. Moves outside the transition table come back as conflicts.
func HandleUpdateStatus(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		orderID := web.Param(r, "id")

		var up StatusUp
		if err := web.Decode(w, r, &up); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding status update: %w", err))
		}

		if !up.Status.Valid() {
			return weberr.BadRequest(fmt.Errorf("unknown status %q", up.Status))
		}

		ord, err := Fetch(ctx, db, orderID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return err
		}

		shp, err := shop.Fetch(ctx, db, ord.ShopID)
		if err != nil {
			return err
		}
		if !claims.IsUser(ctx, shp.OwnerID) {
			return weberr.NotAuthorized(errors.New("not the shop owner"))
		}

		err = database.Transaction(db, func(tx sqlx.ExtContext) error {
			return Transition(ctx, tx, orderID, up.Status)
		})
		if err != nil {
			var terr *TransitionError
			if errors.As(err, &terr) {
				return weberr.Conflict(terr)
			}
			return err
		}

		ord, err = Fetch(ctx, db, orderID)
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, ord, http.StatusOK)
	}
}
