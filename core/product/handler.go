package product

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/onestophub/one-stop-hub/api/web"
	"github.com/onestophub/one-stop-hub/api/weberr"
	"github.com/onestophub/one-stop-hub/core/claims"
	"github.com/onestophub/one-stop-hub/core/shop"
	"github.com/onestophub/one-stop-hub/database"
	"github.com/onestophub/one-stop-hub/validate"
)

func HandleCreate(db *sqlx.DB) web.Handler {
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

		var pn ProductNew
		if err := web.Decode(w, r, &pn); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding product: %w", err))
		}

		if err := validate.Check(pn); err != nil {
			return weberr.Unprocessable(err)
		}

		if pn.Unit == "" {
			pn.Unit = "kg"
		}

		var catID *string
		if pn.CategoryID != "" {
			catID = &pn.CategoryID
		}

		now := time.Now().UTC()
		prd := Product{
			ID:              validate.GenerateID(),
			ShopID:          shp.ID,
			CategoryID:      catID,
			Name:            pn.Name,
			Description:     pn.Description,
			Price:           pn.Price,
			DiscountPercent: pn.DiscountPercent,
			Unit:            pn.Unit,
			Stock:           pn.Stock,
			IsAvailable:     true,
			CreatedAt:       now,
			UpdatedAt:       now,
			Version:         1,
		}

		if err := Create(ctx, db, prd); err != nil {
			if database.IsForeignKeyViolation(err) {
				return weberr.Unprocessable(fmt.Errorf("unknown category[%s]", pn.CategoryID))
			}
			return err
		}

		return web.Respond(ctx, w, prd, http.StatusCreated)
	}
}

func HandleUpdate(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		prodID := web.Param(r, "id")
		if err := validate.CheckID(prodID); err != nil {
			return weberr.BadRequest(err)
		}

		var pu ProductUp
		if err := web.Decode(w, r, &pu); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding product update: %w", err))
		}

		if err := validate.Check(pu); err != nil {
			return weberr.Unprocessable(err)
		}

		prd, err := Fetch(ctx, db, prodID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return err
		}

		shp, err := shop.Fetch(ctx, db, prd.ShopID)
		if err != nil {
			return err
		}
		if !claims.IsUser(ctx, shp.OwnerID) {
			return weberr.NotAuthorized(errors.New("not the shop owner"))
		}

		if pu.Name != nil {
			prd.Name = *pu.Name
		}
		if pu.CategoryID != nil {
			// An empty id clears the category.
			if *pu.CategoryID == "" {
				prd.CategoryID = nil
			} else {
				prd.CategoryID = pu.CategoryID
			}
		}
		if pu.Description != nil {
			prd.Description = *pu.Description
		}
		if pu.Price != nil {
			prd.Price = *pu.Price
		}
		if pu.DiscountPercent != nil {
			prd.DiscountPercent = *pu.DiscountPercent
		}
		if pu.Unit != nil {
			prd.Unit = *pu.Unit
		}
		if pu.Stock != nil {
			prd.Stock = *pu.Stock
		}
		if pu.IsAvailable != nil {
			prd.IsAvailable = *pu.IsAvailable
		}
		prd.UpdatedAt = time.Now().UTC()

		if err := Update(ctx, db, prd); err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.Conflict(errors.New("product was modified concurrently"))
			}
			if database.IsForeignKeyViolation(err) {
				return weberr.Unprocessable(errors.New("unknown category"))
			}
			return err
		}

		return web.Respond(ctx, w, prd, http.StatusOK)
	}
}

// HandleDelete removes a product that never sold. Once an order has the
// product frozen on an item the row must stay for history; the owner
// gets a conflict telling them to mark it unavailable instead.
func HandleDelete(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		prodID := web.Param(r, "id")
		if err := validate.CheckID(prodID); err != nil {
			return weberr.BadRequest(err)
		}

		prd, err := Fetch(ctx, db, prodID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return err
		}

		shp, err := shop.Fetch(ctx, db, prd.ShopID)
		if err != nil {
			return err
		}
		if !claims.IsUser(ctx, shp.OwnerID) {
			return weberr.NotAuthorized(errors.New("not the shop owner"))
		}

		err = database.Transaction(db, func(tx sqlx.ExtContext) error {
			return Delete(ctx, tx, prodID)
		})
		if err != nil {
			if database.IsForeignKeyViolation(err) {
				return weberr.Conflict(errors.New("product has order history, mark it unavailable instead"))
			}
			return err
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
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

// HandleList is the cross-shop catalog, typically browsed by category.
func HandleList(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		f := Filter{
			Search:     web.Query(r, "search"),
			CategoryID: web.Query(r, "category_id"),
			Page:       web.QueryInt(r, "page", 1),
			PerPage:    web.QueryInt(r, "per_page", 20),
		}
		if f.CategoryID != "" {
			if err := validate.CheckID(f.CategoryID); err != nil {
				return weberr.BadRequest(err)
			}
		}

		prds, err := List(ctx, db, f)
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, prds, http.StatusOK)
	}
}

func HandleShow(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		prodID := web.Param(r, "id")
		if err := validate.CheckID(prodID); err != nil {
			return weberr.BadRequest(err)
		}

		prd, err := Fetch(ctx, db, prodID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return err
		}

		return web.Respond(ctx, w, prd, http.StatusOK)
	}
}

func HandleListByShop(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		shopID := web.Param(r, "id")
		if err := validate.CheckID(shopID); err != nil {
			return weberr.BadRequest(err)
		}

		f := Filter{
			Search:  web.Query(r, "search"),
			Page:    web.QueryInt(r, "page", 1),
			PerPage: web.QueryInt(r, "per_page", 20),
		}
		if s := web.Query(r, "min_price"); s != "" {
			f.MinPrice, _ = strconv.ParseFloat(s, 64)
		}
		if s := web.Query(r, "max_price"); s != "" {
			f.MaxPrice, _ = strconv.ParseFloat(s, 64)
		}

		prds, err := ListByShop(ctx, db, shopID, f)
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, prds, http.StatusOK)
	}
}
