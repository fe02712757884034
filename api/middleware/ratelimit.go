package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/onestophub/one-stop-hub/api/web"
	"github.com/onestophub/one-stop-hub/api/weberr"
	"github.com/onestophub/one-stop-hub/rate"
)

// RateLimit throttles by client address. It fronts the auth endpoints so
// credential guessing gets slowed down before touching the store.
func RateLimit(lim *rate.Limiter) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

			host, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				host = r.RemoteAddr
			}

			if !lim.Check(host) {
				err := errors.New("too many requests")
				return weberr.NewError(err, err.Error(), http.StatusTooManyRequests)
			}

			return handler(ctx, w, r)
		}
		return h
	}
	return m
}
