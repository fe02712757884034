package config

import "time"

type Config struct {
	Web     Web
	DB      DB
	Cors    Cors
	Auth    Auth
	Oauth   Oauth
	Market  Market
	Cab     Cab
	Stripe  Stripe
	Paypal  Paypal
	RateLim RateLim
}

type Web struct {
	Address         string        `conf:"default:0.0.0.0:8000"`
	ReadTimeout     time.Duration `conf:"default:5s"`
	WriteTimeout    time.Duration `conf:"default:10s"`
	IdleTimeout     time.Duration `conf:"default:120s"`
	ShutdownTimeout time.Duration `conf:"default:20s"`
}

type DB struct {
	User       string `conf:"default:postgres"`
	Password   string `conf:"default:postgres,mask"`
	Host       string `conf:"default:localhost"`
	Name       string `conf:"default:hub"`
	DisableTLS bool   `conf:"default:true"`
}

type Cors struct {
	Origin string `conf:"default:"`
}

type Auth struct {
	SessionLifetime time.Duration `conf:"default:24h"`
}

type Oauth struct {
	DiscoveryTimeout time.Duration `conf:"default:30s"`
	LoginRedirectURL string        `conf:"default:/"`
	Google           OauthProvider
}

type OauthProvider struct {
	Client      string `conf:"default:"`
	Secret      string `conf:"default:,mask"`
	URL         string `conf:"default:https://accounts.google.com"`
	RedirectURL string `conf:"default:"`
}

// Market holds the vendor-marketplace knobs.
type Market struct {
	// RegistrationFee is charged once to activate a newly registered shop.
	RegistrationFee float64 `conf:"default:10"`
}

// Cab holds the fare-estimation knobs. Surge and mock distance bounds
// mirror the dispatch provider's published ranges.
type Cab struct {
	SurgeMin    float64 `conf:"default:1.0"`
	SurgeMax    float64 `conf:"default:1.5"`
	DistanceMin float64 `conf:"default:5"`
	DistanceMax float64 `conf:"default:50"`
}

type Stripe struct {
	APISecret     string `conf:"default:,mask"`
	WebhookSecret string `conf:"default:,mask"`
	SuccessURL    string `conf:"default:http://localhost:3000/payment/success"`
	CancelURL     string `conf:"default:http://localhost:3000/payment/canceled"`
}

type Paypal struct {
	ClientID string `conf:"default:"`
	Secret   string `conf:"default:,mask"`
	URL      string `conf:"default:https://api.sandbox.paypal.com"`
}

type RateLim struct {
	Burst    int           `conf:"default:10"`
	Expiry   int           `conf:"default:30"`
	Interval time.Duration `conf:"default:500ms"`
}
