package test

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/onestophub/one-stop-hub/core/booking"
)

type bookingTest struct {
	*TestEnv

	service booking.Service
	mini    booking.VehicleType
}

func TestBooking(t *testing.T) {
	env, err := NewTestEnv(t, "booking_test")
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}

	bt := &bookingTest{TestEnv: env}

	bt.Login(t, bt.AdminEmail, bt.AdminPass)
	bt.setupCatalog(t)
	bt.Logout(t)

	bt.Login(t, bt.UserEmail, bt.UserPass)
	defer bt.Logout(t)

	bt.testQuote(t)
	bt.testCancel(t)
	bt.testRideLifecycle(t)
	bt.testRatingScope(t)
}

func (bt *bookingTest) setupCatalog(t *testing.T) {
	t.Helper()

	sn := booking.ServiceNew{Name: "City Cabs", BaseFare: 50, PerKmRate: 10}
	bt.Request(t, http.MethodPost, "/cab/services", sn, http.StatusCreated, &bt.service)

	tn := booking.VehicleTypeNew{Name: "mini", Multiplier: 1.5, Capacity: 4}
	bt.Request(t, http.MethodPost, "/cab/types", tn, http.StatusCreated, &bt.mini)

	// Vehicle type names are unique.
	bt.Request(t, http.MethodPost, "/cab/types", tn, http.StatusConflict, nil)
}

// The env pins surge to 1.0 and the mocked distance to 10km, so the
// quote is exactly base + distance * rate * multiplier.
func (bt *bookingTest) testQuote(t *testing.T) {
	q := url.Values{}
	q.Set("service_id", bt.service.ID)
	q.Set("type_id", bt.mini.ID)
	q.Set("pickup", "Airport")
	q.Set("dropoff", "Harbor")

	var quote struct {
		Service    string  `json:"service"`
		Type       string  `json:"type"`
		DistanceKm float64 `json:"distanceKm"`
		Fare       float64 `json:"fare"`
	}
	bt.Request(t, http.MethodGet, "/cab/fare?"+q.Encode(), nil, http.StatusOK, &quote)

	if quote.DistanceKm != 10 {
		t.Errorf("got distance %.2f, want 10.00", quote.DistanceKm)
	}
	if quote.Fare != 200 {
		t.Errorf("got fare %.2f, want 200.00", quote.Fare)
	}
}

func (bt *bookingTest) createBookingOK(t *testing.T) booking.Booking {
	t.Helper()

	bn := booking.BookingNew{
		ServiceID:  bt.service.ID,
		TypeID:     bt.mini.ID,
		Pickup:     "Airport",
		Dropoff:    "Harbor",
		PickupTime: time.Now().Add(2 * time.Hour).UTC(),
	}

	var bkg booking.Booking
	bt.Request(t, http.MethodPost, "/cab/bookings", bn, http.StatusCreated, &bkg)

	if bkg.Status != booking.Pending {
		t.Fatalf("new booking: got status %q, want %q", bkg.Status, booking.Pending)
	}
	if bkg.EstimatedFare != 200 {
		t.Fatalf("new booking: got fare %.2f, want 200.00", bkg.EstimatedFare)
	}
	return bkg
}

func (bt *bookingTest) testCancel(t *testing.T) {
	bkg := bt.createBookingOK(t)

	var got booking.Booking
	bt.Request(t, http.MethodPost, "/cab/bookings/"+bkg.ID+"/cancel", nil, http.StatusOK, &got)
	if got.Status != booking.Cancelled {
		t.Fatalf("got status %q, want %q", got.Status, booking.Cancelled)
	}

	// Cancelling twice is a conflict, as is moving a cancelled ride.
	bt.Request(t, http.MethodPost, "/cab/bookings/"+bkg.ID+"/cancel", nil, http.StatusConflict, nil)
}

func (bt *bookingTest) testRideLifecycle(t *testing.T) {
	bkg := bt.createBookingOK(t)
	statusURL := "/cab/bookings/" + bkg.ID + "/status"

	// Rating before completion must be rejected.
	rating := booking.RatingNew{Rating: 5, Feedback: "smooth ride"}
	bt.Request(t, http.MethodPost, "/cab/bookings/"+bkg.ID+"/rating", rating, http.StatusUnprocessableEntity, nil)

	bt.Logout(t)
	bt.Login(t, bt.AdminEmail, bt.AdminPass)

	// pending cannot jump straight to completed.
	bt.Request(t, http.MethodPut, statusURL, booking.StatusUp{Status: booking.Completed}, http.StatusConflict, nil)

	confirm := booking.StatusUp{
		Status:        booking.Confirmed,
		DriverName:    "Sam Driver",
		DriverPhone:   "5559990000",
		VehicleNumber: "CAB-1234",
	}
	var got booking.Booking
	bt.Request(t, http.MethodPut, statusURL, confirm, http.StatusOK, &got)
	if got.DriverName != "Sam Driver" {
		t.Fatalf("got driver %q, want the assigned one", got.DriverName)
	}

	bt.Request(t, http.MethodPut, statusURL, booking.StatusUp{Status: booking.Ongoing}, http.StatusOK, &got)

	bt.Logout(t)
	bt.Login(t, bt.UserEmail, bt.UserPass)

	// Once the ride is ongoing the customer can no longer cancel.
	bt.Request(t, http.MethodPost, "/cab/bookings/"+bkg.ID+"/cancel", nil, http.StatusConflict, nil)

	bt.Logout(t)
	bt.Login(t, bt.AdminEmail, bt.AdminPass)
	bt.Request(t, http.MethodPut, statusURL, booking.StatusUp{Status: booking.Completed}, http.StatusOK, &got)

	bt.Logout(t)
	bt.Login(t, bt.UserEmail, bt.UserPass)
	bt.Request(t, http.MethodPost, "/cab/bookings/"+bkg.ID+"/rating", rating, http.StatusOK, &got)
	if got.Rating == nil || *got.Rating != 5 {
		t.Fatalf("got rating %v, want 5", got.Rating)
	}
}

// Rating a booking that does not exist, or that belongs to someone else,
// is a plain not-found rather than a lifecycle error.
func (bt *bookingTest) testRatingScope(t *testing.T) {
	rating := booking.RatingNew{Rating: 4}
	bt.Request(t, http.MethodPost, "/cab/bookings/CABNOSUCHID/rating", rating, http.StatusNotFound, nil)

	bkg := bt.createBookingOK(t)

	bt.Logout(t)
	bt.Login(t, bt.AdminEmail, bt.AdminPass)
	bt.Request(t, http.MethodPost, "/cab/bookings/"+bkg.ID+"/rating", rating, http.StatusNotFound, nil)

	bt.Logout(t)
	bt.Login(t, bt.UserEmail, bt.UserPass)
}
