package shop

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/onestophub/one-stop-hub/api/web"
	"github.com/onestophub/one-stop-hub/api/weberr"
	"github.com/onestophub/one-stop-hub/config"
	"github.com/onestophub/one-stop-hub/core/claims"
	"github.com/onestophub/one-stop-hub/database"
	"github.com/onestophub/one-stop-hub/validate"
	"github.com/plutov/paypal/v4"
	"github.com/stripe/stripe-go/v74"
	stripecl "github.com/stripe/stripe-go/v74/client"
	"github.com/stripe/stripe-go/v74/webhook"
)

// pendingPayment loads the fee record for a shop the caller owns and
// verifies there is still something to pay.
func pendingPayment(ctx context.Context, db *sqlx.DB, userID string, shopID string) (Shop, Payment, error) {
	shp, err := Fetch(ctx, db, shopID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Shop{}, Payment{}, weberr.NotFound(err)
		}
		return Shop{}, Payment{}, err
	}

	if shp.OwnerID != userID {
		return Shop{}, Payment{}, weberr.NotAuthorized(errors.New("not the shop owner"))
	}

	pay, err := FetchPayment(ctx, db, shp.ID)
	if err != nil {
		if errors.Is(err, ErrPaymentNotFound) {
			return Shop{}, Payment{}, weberr.NotFound(err)
		}
		return Shop{}, Payment{}, err
	}

	if pay.Status == PaymentCompleted {
		return Shop{}, Payment{}, weberr.Conflict(errors.New("registration fee already paid"))
	}

	return shp, pay, nil
}

// bind records the provider-side identifier on the fee record so the
// capture path can find it back.
func bind(ctx context.Context, db *sqlx.DB, pay Payment, provider string, providerID string) error {
	pay.Provider = provider
	pay.ProviderID = providerID
	pay.UpdatedAt = time.Now().UTC()

	if err := UpdatePayment(ctx, db, pay); err != nil {
		return fmt.Errorf("binding payment of shop[%s] to %s[%s]: %w", pay.ShopID, provider, providerID, err)
	}
	return nil
}

// fulfill settles the fee bound to the provider identifier and activates
// the shop, atomically.
func fulfill(ctx context.Context, db *sqlx.DB, providerID string) error {
	pay, err := FetchPaymentByProviderID(ctx, db, providerID)
	if err != nil {
		return fmt.Errorf("fetching the payment bound to provider id[%s]: %w", providerID, err)
	}

	err = database.Transaction(db, func(tx sqlx.ExtContext) error {
		pay.Status = PaymentCompleted
		pay.UpdatedAt = time.Now().UTC()

		if err := UpdatePayment(ctx, tx, pay); err != nil {
			return fmt.Errorf("completing payment: %w", err)
		}

		if err := Activate(ctx, tx, pay.ShopID); err != nil {
			return fmt.Errorf("activating shop: %w", err)
		}
		return nil
	})

	if err != nil {
		return fmt.Errorf("fulfilling the registration fee of shop[%s]: %w", pay.ShopID, err)
	}
	return nil
}

func HandlePaypalPayment(db *sqlx.DB, pp *paypal.Client) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		shopID := web.Param(r, "id")
		if err := validate.CheckID(shopID); err != nil {
			return weberr.BadRequest(err)
		}

		shp, pay, err := pendingPayment(ctx, db, clm.UserID, shopID)
		if err != nil {
			return err
		}

		amount := strconv.FormatFloat(pay.Amount, 'f', 2, 64)
		units := []paypal.PurchaseUnitRequest{{
			Items: []paypal.Item{{
				Quantity:    "1",
				Name:        "Shop registration fee",
				Description: shp.Name,
				UnitAmount:  &paypal.Money{Currency: "USD", Value: amount},
			}},

			Amount: &paypal.PurchaseUnitAmount{
				Currency: "USD",
				Value:    amount,

				Breakdown: &paypal.PurchaseUnitAmountBreakdown{ItemTotal: &paypal.Money{
					Currency: "USD",
					Value:    amount,
				}},
			},
		}}

		ord, err := pp.CreateOrder(ctx, "CAPTURE", units, nil, &paypal.ApplicationContext{})
		if err != nil {
			return fmt.Errorf("creating paypal order: %w", err)
		}

		if err := bind(ctx, db, pay, "paypal", ord.ID); err != nil {
			return err
		}

		return web.Respond(ctx, w, ord, http.StatusOK)
	}
}

func HandlePaypalCapture(db *sqlx.DB, pp *paypal.Client) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		providerID := web.Param(r, "order_id")

		resp, err := pp.CaptureOrder(ctx, providerID, paypal.CaptureOrderRequest{})
		if err != nil {
			return fmt.Errorf("capturing paypal order[%s]: %w", providerID, err)
		}

		if resp.Status != "COMPLETED" {
			return fmt.Errorf("captured order[%s] with status[%s] different from 'COMPLETED'", providerID, resp.Status)
		}

		if err := fulfill(ctx, db, providerID); err != nil {
			return fmt.Errorf("the fee was payed but its fulfillment failed: %w", err)
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

func HandleStripePayment(db *sqlx.DB, strp *stripecl.API, cfg config.Stripe) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		shopID := web.Param(r, "id")
		if err := validate.CheckID(shopID); err != nil {
			return weberr.BadRequest(err)
		}

		shp, pay, err := pendingPayment(ctx, db, clm.UserID, shopID)
		if err != nil {
			return err
		}

		params := &stripe.CheckoutSessionParams{
			SuccessURL: stripe.String(cfg.SuccessURL),
			CancelURL:  stripe.String(cfg.CancelURL),
			Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),

			LineItems: []*stripe.CheckoutSessionLineItemParams{{
				Quantity: stripe.Int64(1),

				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:    stripe.String("usd"),
					TaxBehavior: stripe.String("inclusive"),
					UnitAmount:  stripe.Int64(int64(math.Round(pay.Amount * 100))),

					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String("Shop registration fee"),
						Description: stripe.String(shp.Name),
					},
				},
			}},
		}

		s, err := strp.CheckoutSessions.New(params)
		if err != nil {
			return fmt.Errorf("creating stripe session: %w", err)
		}

		if err := bind(ctx, db, pay, "stripe", s.ID); err != nil {
			return err
		}

		return web.Respond(ctx, w, s.URL, http.StatusOK)
	}
}

func HandleStripeCapture(db *sqlx.DB, cfg config.Stripe) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		b, err := io.ReadAll(r.Body)
		if err != nil {
			return weberr.BadRequest(fmt.Errorf("cannot read the request body: %w", err))
		}

		sig := r.Header.Get("Stripe-Signature")
		if sig == "" {
			return weberr.BadRequest(errors.New("received stripe event is not signed"))
		}

		event, err := webhook.ConstructEvent(b, sig, cfg.WebhookSecret)
		if err != nil {
			return weberr.BadRequest(fmt.Errorf("cannot construct stripe event: %w", err))
		}

		if event.Type != "checkout.session.completed" {
			return web.Respond(ctx, w, nil, http.StatusNoContent)
		}

		var session stripe.CheckoutSession
		if err = json.Unmarshal(event.Data.Raw, &session); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode stripe event: %w", err))
		}

		if session.Mode != stripe.CheckoutSessionModePayment {
			return web.Respond(ctx, w, nil, http.StatusNoContent)
		}

		if err := fulfill(ctx, db, session.ID); err != nil {
			return fmt.Errorf("the fee was payed but its fulfillment failed: %w", err)
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}
