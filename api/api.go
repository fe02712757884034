package api

import (
	"context"
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/onestophub/one-stop-hub/api/middleware"
	"github.com/onestophub/one-stop-hub/api/web"
	"github.com/onestophub/one-stop-hub/config"
	"github.com/onestophub/one-stop-hub/core/auth"
	"github.com/onestophub/one-stop-hub/core/booking"
	"github.com/onestophub/one-stop-hub/core/cart"
	"github.com/onestophub/one-stop-hub/core/order"
	"github.com/onestophub/one-stop-hub/core/product"
	"github.com/onestophub/one-stop-hub/core/shop"
	"github.com/onestophub/one-stop-hub/core/user"
	"github.com/onestophub/one-stop-hub/rate"
	"github.com/plutov/paypal/v4"
	"github.com/sirupsen/logrus"
	stripecl "github.com/stripe/stripe-go/v74/client"
)

type APIConfig struct {
	CorsOrigin       string
	Log              logrus.FieldLogger
	DB               *sqlx.DB
	Session          *scs.SessionManager
	Paypal           *paypal.Client
	Stripe           *stripecl.API
	StripeCfg        config.Stripe
	Providers        map[string]auth.Provider
	LoginRedirectURL string
	RegistrationFee  float64
	Estimator        *booking.Estimator
	Distancer        booking.Distancer
	AuthLimiter      *rate.Limiter
}

type api struct {
	*mux.Router
	mw  []web.Middleware
	log logrus.FieldLogger
}

func APIMux(cfg APIConfig) http.Handler {
	a := &api{
		Router: mux.NewRouter(),
		log:    cfg.Log,
	}

	a.mw = append(a.mw, auth.LoadAndSave(cfg.Session))
	a.mw = append(a.mw, middleware.RequestID())
	a.mw = append(a.mw, middleware.Logger(cfg.Log))
	a.mw = append(a.mw, middleware.Errors(cfg.Log))
	a.mw = append(a.mw, middleware.Panics())

	if cfg.CorsOrigin != "" {
		a.mw = append(a.mw, middleware.Cors(cfg.CorsOrigin))

		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			w.WriteHeader(http.StatusNoContent)
			return nil
		}

		a.Handle(http.MethodOptions, "/{path:.*}", h)
	}

	authen := auth.Authenticate(cfg.Session)
	admin := auth.Admin(cfg.Session)
	limited := middleware.RateLimit(cfg.AuthLimiter)

	a.Handle(http.MethodPost, "/auth/signup", auth.HandleSignup(cfg.DB, cfg.Session), limited)
	a.Handle(http.MethodPost, "/auth/login", auth.HandleLogin(cfg.DB, cfg.Session), limited)
	a.Handle(http.MethodPost, "/auth/logout", auth.HandleLogout(cfg.Session))
	a.Handle(http.MethodGet, "/auth/oauth-login/{provider}", auth.HandleOauthLogin(cfg.Session, cfg.Providers))
	a.Handle(http.MethodGet, "/auth/oauth-callback/{provider}", auth.HandleOauthCallback(cfg.DB, cfg.Session, cfg.Providers, cfg.LoginRedirectURL))

	a.Handle(http.MethodGet, "/users/current", user.HandleShowCurrent(cfg.DB), authen)

	a.Handle(http.MethodGet, "/shops/owned", shop.HandleListOwned(cfg.DB), authen)
	a.Handle(http.MethodGet, "/shops/categories", shop.HandleListCategories(cfg.DB))
	a.Handle(http.MethodPost, "/shops/categories", shop.HandleCreateCategory(cfg.DB), admin)
	a.Handle(http.MethodGet, "/shops/{id}", shop.HandleShow(cfg.DB))
	a.Handle(http.MethodGet, "/shops", shop.HandleList(cfg.DB))
	a.Handle(http.MethodPost, "/shops", shop.HandleRegister(cfg.DB, cfg.RegistrationFee), authen)
	a.Handle(http.MethodPost, "/shops/{id}/toggle", shop.HandleToggleOpen(cfg.DB), authen)

	a.Handle(http.MethodPost, "/shops/{id}/payment/paypal", shop.HandlePaypalPayment(cfg.DB, cfg.Paypal), authen)
	a.Handle(http.MethodPost, "/shops/{id}/payment/paypal/{order_id}/capture", shop.HandlePaypalCapture(cfg.DB, cfg.Paypal), authen)
	a.Handle(http.MethodPost, "/shops/{id}/payment/stripe", shop.HandleStripePayment(cfg.DB, cfg.Stripe, cfg.StripeCfg), authen)
	a.Handle(http.MethodPost, "/payments/stripe/capture", shop.HandleStripeCapture(cfg.DB, cfg.StripeCfg))

	a.Handle(http.MethodGet, "/shops/{id}/reviews", shop.HandleListReviews(cfg.DB))
	a.Handle(http.MethodPost, "/shops/{id}/reviews", shop.HandleCreateReview(cfg.DB), authen)

	a.Handle(http.MethodGet, "/shops/{id}/products", product.HandleListByShop(cfg.DB))
	a.Handle(http.MethodPost, "/shops/{id}/products", product.HandleCreate(cfg.DB), authen)
	a.Handle(http.MethodGet, "/products/categories", product.HandleListCategories(cfg.DB))
	a.Handle(http.MethodPost, "/products/categories", product.HandleCreateCategory(cfg.DB), admin)
	a.Handle(http.MethodGet, "/products", product.HandleList(cfg.DB))
	a.Handle(http.MethodGet, "/products/{id}", product.HandleShow(cfg.DB))
	a.Handle(http.MethodPut, "/products/{id}", product.HandleUpdate(cfg.DB), authen)
	a.Handle(http.MethodDelete, "/products/{id}", product.HandleDelete(cfg.DB), authen)

	a.Handle(http.MethodGet, "/cart", cart.HandleShow(cfg.DB), authen)
	a.Handle(http.MethodDelete, "/cart", cart.HandleDelete(cfg.DB), authen)
	a.Handle(http.MethodPut, "/cart/items", cart.HandleUpsertItem(cfg.DB), authen)
	a.Handle(http.MethodPut, "/cart/items/{product_id}", cart.HandleSetQuantity(cfg.DB), authen)
	a.Handle(http.MethodDelete, "/cart/items/{product_id}", cart.HandleDeleteItem(cfg.DB), authen)

	a.Handle(http.MethodPost, "/checkout", order.HandleCheckout(cfg.DB), authen)
	a.Handle(http.MethodGet, "/orders", order.HandleList(cfg.DB), authen)
	a.Handle(http.MethodGet, "/orders/{id}", order.HandleShow(cfg.DB), authen)
	a.Handle(http.MethodPut, "/orders/{id}/status", order.HandleUpdateStatus(cfg.DB), authen)
	a.Handle(http.MethodGet, "/shops/{id}/orders", order.HandleListByShop(cfg.DB), authen)

	a.Handle(http.MethodGet, "/cab/services", booking.HandleListServices(cfg.DB))
	a.Handle(http.MethodPost, "/cab/services", booking.HandleCreateService(cfg.DB), admin)
	a.Handle(http.MethodGet, "/cab/types", booking.HandleListTypes(cfg.DB))
	a.Handle(http.MethodPost, "/cab/types", booking.HandleCreateType(cfg.DB), admin)
	a.Handle(http.MethodGet, "/cab/fare", booking.HandleQuote(cfg.DB, cfg.Estimator, cfg.Distancer))
	a.Handle(http.MethodPost, "/cab/bookings", booking.HandleCreate(cfg.DB, cfg.Estimator, cfg.Distancer), authen)
	a.Handle(http.MethodGet, "/cab/bookings", booking.HandleList(cfg.DB), authen)
	a.Handle(http.MethodGet, "/cab/bookings/{id}", booking.HandleShow(cfg.DB), authen)
	a.Handle(http.MethodPost, "/cab/bookings/{id}/cancel", booking.HandleCancel(cfg.DB), authen)
	a.Handle(http.MethodPut, "/cab/bookings/{id}/status", booking.HandleUpdateStatus(cfg.DB), admin)
	a.Handle(http.MethodPost, "/cab/bookings/{id}/rating", booking.HandleRate(cfg.DB), authen)

	return a.Router
}

func (a *api) Handle(method string, path string, handler web.Handler, mw ...web.Middleware) {

	handler = web.WrapMiddleware(mw, handler)

	handler = web.WrapMiddleware(a.mw, handler)

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		ctx := r.Context()

		if err := handler(ctx, w, r); err != nil {

			a.log.WithFields(logrus.Fields{
				"req_id":  middleware.ContextRequestID(ctx),
				"message": err,
			}).Error("ERROR")
		}
	})

	a.Router.Handle(path, h).Methods(method)
}
