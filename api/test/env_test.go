package test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/jmoiron/sqlx"
	"github.com/onestophub/one-stop-hub/api"
	"github.com/onestophub/one-stop-hub/config"
	"github.com/onestophub/one-stop-hub/core/booking"
	"github.com/onestophub/one-stop-hub/core/user"
	"github.com/onestophub/one-stop-hub/database"
	"github.com/onestophub/one-stop-hub/rate"
	"github.com/ory/dockertest/v3"
	"github.com/plutov/paypal/v4"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v74"
	stripecl "github.com/stripe/stripe-go/v74/client"
)

var (
	dockerErr error
	pgHost    string
	adminDB   *sqlx.DB
)

func TestMain(m *testing.M) {
	os.Exit(run(m))
}

// run spins up a single postgres container shared by every test. Each
// test env then gets its own database inside it. When docker is not
// available the tests are skipped rather than failed.
func run(m *testing.M) int {
	pool, err := dockertest.NewPool("")
	if err != nil {
		dockerErr = fmt.Errorf("connecting to docker: %w", err)
		return m.Run()
	}

	if err := pool.Client.Ping(); err != nil {
		dockerErr = fmt.Errorf("pinging docker: %w", err)
		return m.Run()
	}

	res, err := pool.Run("postgres", "15-alpine", []string{
		"POSTGRES_USER=postgres",
		"POSTGRES_PASSWORD=postgres",
		"POSTGRES_DB=postgres",
	})
	if err != nil {
		dockerErr = fmt.Errorf("starting postgres container: %w", err)
		return m.Run()
	}
	defer pool.Purge(res)

	res.Expire(600)
	pgHost = "localhost:" + res.GetPort("5432/tcp")

	err = pool.Retry(func() error {
		adminDB, err = database.Open(config.DB{
			User:       "postgres",
			Password:   "postgres",
			Host:       pgHost,
			Name:       "postgres",
			DisableTLS: true,
		})
		if err != nil {
			return err
		}
		return adminDB.Ping()
	})
	if err != nil {
		dockerErr = fmt.Errorf("waiting for postgres: %w", err)
		return m.Run()
	}
	defer adminDB.Close()

	return m.Run()
}

// TestEnv is a complete running instance of the api backed by a
// dedicated database, with the paypal and stripe backends replaced by
// in-process mocks.
type TestEnv struct {
	URL           string
	Server        *httptest.Server
	DB            *sqlx.DB
	Paypal        *mockPaypal
	Stripe        *mockStripe
	WebhookSecret string

	UserEmail  string
	UserPass   string
	AdminEmail string
	AdminPass  string

	client *http.Client
}

func NewTestEnv(t *testing.T, name string) (*TestEnv, error) {
	t.Helper()

	if dockerErr != nil {
		t.Skipf("docker is not available: %v", dockerErr)
	}

	if _, err := adminDB.Exec("CREATE DATABASE " + name); err != nil {
		return nil, fmt.Errorf("creating database %s: %w", name, err)
	}

	db, err := database.Open(config.DB{
		User:       "postgres",
		Password:   "postgres",
		Host:       pgHost,
		Name:       name,
		DisableTLS: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", name, err)
	}
	t.Cleanup(func() { db.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := database.StatusCheck(ctx, db); err != nil {
		return nil, fmt.Errorf("database not ready: %w", err)
	}

	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	mpp := &mockPaypal{}
	ppSrv := httptest.NewServer(mpp.handle())
	t.Cleanup(ppSrv.Close)

	pp, err := paypal.NewClient("test-client", "test-secret", ppSrv.URL)
	if err != nil {
		return nil, fmt.Errorf("building paypal client: %w", err)
	}
	if _, err := pp.GetAccessToken(context.Background()); err != nil {
		return nil, fmt.Errorf("fetching mock paypal token: %w", err)
	}

	mstrp := &mockStripe{}
	strpSrv := httptest.NewServer(mstrp.handle())
	t.Cleanup(strpSrv.Close)

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL: stripe.String(strpSrv.URL),
	})
	strp := &stripecl.API{}
	strp.Init("sk_test_123", &stripe.Backends{API: backend, Connect: backend, Uploads: backend})

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	session := scs.New()
	session.Lifetime = time.Hour

	const webhookSecret = "whsec_test"

	// Surge and distance are pinned so fares come out deterministic.
	rnd := fixedRand{0.5}
	estimator := booking.NewEstimator(rnd, 1.0, 1.0)
	distancer := booking.MockDistance{Rnd: rnd, Min: 10, Max: 10}

	mux := api.APIMux(api.APIConfig{
		Log:     logger,
		DB:      db,
		Session: session,
		Paypal:  pp,
		Stripe:  strp,
		StripeCfg: config.Stripe{
			APISecret:     "sk_test_123",
			WebhookSecret: webhookSecret,
			SuccessURL:    "http://localhost/success",
			CancelURL:     "http://localhost/canceled",
		},
		RegistrationFee: 10.01,
		Estimator:       estimator,
		Distancer:       distancer,
		AuthLimiter:     rate.NewLimiter(100, 30, 100),
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("building cookie jar: %w", err)
	}

	te := &TestEnv{
		URL:           srv.URL,
		Server:        srv,
		DB:            db,
		Paypal:        mpp,
		Stripe:        mstrp,
		WebhookSecret: webhookSecret,
		UserEmail:     "customer@test.com",
		UserPass:      "customerpass",
		AdminEmail:    "admin@test.com",
		AdminPass:     "adminpass",
		client:        &http.Client{Jar: jar},
	}

	te.signup(t, "Test Customer", te.UserEmail, te.UserPass)
	te.Logout(t)

	te.signup(t, "Test Admin", te.AdminEmail, te.AdminPass)
	te.Logout(t)

	// Roles live on the user row and are copied into the session at
	// login, so promoting before any admin login is enough.
	if _, err := db.Exec(`UPDATE users SET role = 'ADMIN' WHERE email = $1`, te.AdminEmail); err != nil {
		return nil, fmt.Errorf("promoting admin user: %w", err)
	}

	return te, nil
}

func (te *TestEnv) Client() *http.Client { return te.client }

func (te *TestEnv) signup(t *testing.T, name string, email string, pass string) {
	t.Helper()
	body := user.UserSignup{Name: name, Email: email, Password: pass}
	te.Request(t, http.MethodPost, "/auth/signup", body, http.StatusCreated, nil)
}

func (te *TestEnv) Login(t *testing.T, email string, pass string) {
	t.Helper()
	body := user.UserLogin{Email: email, Password: pass}
	te.Request(t, http.MethodPost, "/auth/login", body, http.StatusOK, nil)
}

func (te *TestEnv) Logout(t *testing.T) {
	t.Helper()
	te.Request(t, http.MethodPost, "/auth/logout", nil, http.StatusNoContent, nil)
}

// Request performs an api call with the env's session cookies, fails the
// test on an unexpected status and decodes the response into out when
// one is given.
func (te *TestEnv) Request(t *testing.T, method string, path string, body any, want int, out any) {
	t.Helper()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshaling %s %s body: %v", method, path, err)
		}
		rd = bytes.NewReader(b)
	}

	r, err := http.NewRequest(method, te.URL+path, rd)
	if err != nil {
		t.Fatalf("building %s %s request: %v", method, path, err)
	}

	w, err := te.client.Do(r)
	if err != nil {
		t.Fatalf("performing %s %s: %v", method, path, err)
	}
	defer w.Body.Close()

	if w.StatusCode != want {
		msg, _ := io.ReadAll(w.Body)
		t.Fatalf("%s %s: got status %s, want %d: %s", method, path, w.Status, want, msg)
	}

	if out != nil {
		if err := json.NewDecoder(w.Body).Decode(out); err != nil {
			t.Fatalf("decoding %s %s response: %v", method, path, err)
		}
	}
}

// fixedRand makes surge and mocked distances deterministic in tests.
type fixedRand struct{ v float64 }

func (f fixedRand) Float64() float64 { return f.v }
