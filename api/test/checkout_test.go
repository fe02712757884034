package test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"sort"
	"testing"

	"github.com/onestophub/one-stop-hub/core/cart"
	"github.com/onestophub/one-stop-hub/core/order"
	"github.com/onestophub/one-stop-hub/core/product"
	"github.com/onestophub/one-stop-hub/core/shop"
)

type checkoutTest struct {
	*TestEnv

	vendorEmail string
	vendorPass  string
}

func TestCheckout(t *testing.T) {
	env, err := NewTestEnv(t, "checkout_test")
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}

	ct := &checkoutTest{
		TestEnv:     env,
		vendorEmail: "vendor@test.com",
		vendorPass:  "vendorpass",
	}

	ct.Paypal.expectedFee = 10.01

	ct.signup(t, "Test Vendor", ct.vendorEmail, ct.vendorPass)

	// Vendor side: two active shops, one product each.
	grocer := ct.setupShop(t, "Green Grocer", shop.ShopNew{
		Name:              "Green Grocer",
		Phone:             "5551234567",
		Address:           "1 Market Street",
		City:              "Springfield",
		Pincode:           "600001",
		DeliveryAvailable: true,
		DeliveryCharge:    30,
	})
	bakery := ct.setupShop(t, "Corner Bakery", shop.ShopNew{
		Name:    "Corner Bakery",
		Phone:   "5557654321",
		Address: "2 Market Street",
		City:    "Springfield",
		Pincode: "600001",
	})

	apples := ct.createProductOK(t, grocer.ID, product.ProductNew{Name: "Apples", Price: 50, Stock: 100})
	bread := ct.createProductOK(t, bakery.ID, product.ProductNew{Name: "Bread", Price: 20, DiscountPercent: 10, Stock: 100})
	ct.Logout(t)

	ct.Login(t, ct.UserEmail, ct.UserPass)
	defer ct.Logout(t)

	ct.testQuantityMerge(t, apples)
	ct.testMissingAddress(t)
	orders := ct.testVendorSplit(t, apples, bread, grocer, bakery)
	ct.testEmptyAfterCheckout(t)
	ct.testPriceFreeze(t, apples, orders)
	ct.testStatusFlow(t, orders)
	ct.testConcurrentCheckout(t, apples, bread)
	ct.testCheckoutRollback(t, apples, bread, bakery)
}

func (ct *checkoutTest) setupShop(t *testing.T, name string, sn shop.ShopNew) shop.Shop {
	t.Helper()

	var shp shop.Shop
	ct.Request(t, http.MethodPost, "/shops", sn, http.StatusCreated, &shp)

	st := &shopTest{ct.TestEnv}
	st.payWithPaypal(t, shp.ID)
	st.assertShopStatus(t, shp.ID, shop.Active)
	return shp
}

func (ct *checkoutTest) createProductOK(t *testing.T, shopID string, pn product.ProductNew) product.Product {
	t.Helper()

	var prd product.Product
	ct.Request(t, http.MethodPost, "/shops/"+shopID+"/products", pn, http.StatusCreated, &prd)
	return prd
}

func (ct *checkoutTest) addItemOK(t *testing.T, productID string, quantity int) cart.Cart {
	t.Helper()

	var crt cart.Cart
	body := cart.ItemNew{ProductID: productID, Quantity: quantity}
	ct.Request(t, http.MethodPut, "/cart/items", body, http.StatusOK, &crt)
	return crt
}

// Adding the same product twice must merge into one line with the
// summed quantity.
func (ct *checkoutTest) testQuantityMerge(t *testing.T, apples product.Product) {
	ct.addItemOK(t, apples.ID, 2)
	crt := ct.addItemOK(t, apples.ID, 3)

	if len(crt.Items) != 1 {
		t.Fatalf("got %d cart lines, want 1", len(crt.Items))
	}
	if crt.Items[0].Quantity != 5 {
		t.Fatalf("got quantity %d, want 5", crt.Items[0].Quantity)
	}

	// Setting the quantity to zero removes the line instead of keeping
	// an empty one.
	up := cart.ItemUp{Quantity: 0}
	ct.Request(t, http.MethodPut, "/cart/items/"+apples.ID, up, http.StatusOK, &crt)
	if len(crt.Items) != 0 {
		t.Fatalf("got %d cart lines after zeroing, want 0", len(crt.Items))
	}
}

func (ct *checkoutTest) testMissingAddress(t *testing.T) {
	ct.addItemOK(t, ct.productInCart(t), 1)

	body := order.CheckoutNew{
		CustomerName:  "Test Customer",
		CustomerPhone: "5550001111",
		DeliveryType:  order.Delivery,
	}
	ct.Request(t, http.MethodPost, "/checkout", body, http.StatusUnprocessableEntity, nil)

	ct.Request(t, http.MethodDelete, "/cart", nil, http.StatusNoContent, nil)
}

// productInCart returns any available product id, for tests that only
// need a non-empty cart.
func (ct *checkoutTest) productInCart(t *testing.T) string {
	t.Helper()

	var id string
	if err := ct.DB.Get(&id, `SELECT product_id FROM products LIMIT 1`); err != nil {
		t.Fatalf("fetching a product id: %v", err)
	}
	return id
}

// A mixed cart must split into one order per shop, each with its own
// subtotal and the delivery charge applied per shop.
func (ct *checkoutTest) testVendorSplit(t *testing.T, apples, bread product.Product, grocer, bakery shop.Shop) []order.Order {
	ct.addItemOK(t, apples.ID, 2)
	ct.addItemOK(t, bread.ID, 3)

	body := order.CheckoutNew{
		CustomerName:    "Test Customer",
		CustomerPhone:   "5550001111",
		DeliveryType:    order.Delivery,
		DeliveryAddress: "9 Elm Street",
	}

	var orders []order.Order
	ct.Request(t, http.MethodPost, "/checkout", body, http.StatusCreated, &orders)

	if len(orders) != 2 {
		t.Fatalf("got %d orders, want 2", len(orders))
	}

	byShop := map[string]order.Order{}
	for _, ord := range orders {
		byShop[ord.ShopID] = ord
	}

	g, ok := byShop[grocer.ID]
	if !ok {
		t.Fatalf("no order for shop %q", grocer.Name)
	}
	if g.Subtotal != 100 {
		t.Errorf("grocer subtotal: got %.2f, want 100.00", g.Subtotal)
	}
	if g.DeliveryCharge != 30 {
		t.Errorf("grocer delivery charge: got %.2f, want 30.00", g.DeliveryCharge)
	}
	if g.Total != 130 {
		t.Errorf("grocer total: got %.2f, want 130.00", g.Total)
	}

	b, ok := byShop[bakery.ID]
	if !ok {
		t.Fatalf("no order for shop %q", bakery.Name)
	}

	// Bread is 20 with a 10% discount, so 18 a loaf.
	if b.Subtotal != 54 {
		t.Errorf("bakery subtotal: got %.2f, want 54.00", b.Subtotal)
	}
	if b.DeliveryCharge != 0 {
		t.Errorf("bakery delivery charge: got %.2f, want 0.00 for a shop without delivery", b.DeliveryCharge)
	}

	for _, ord := range orders {
		if ord.Status != order.Pending {
			t.Errorf("order[%s]: got status %q, want %q", ord.ID, ord.Status, order.Pending)
		}
		if math.Abs(ord.Total-(ord.Subtotal+ord.DeliveryCharge)) > 1e-9 {
			t.Errorf("order[%s]: total %.2f != subtotal %.2f + charge %.2f", ord.ID, ord.Total, ord.Subtotal, ord.DeliveryCharge)
		}
	}

	return orders
}

// Checkout must clear the cart, and a second checkout on the now-empty
// cart must be rejected.
func (ct *checkoutTest) testEmptyAfterCheckout(t *testing.T) {
	var crt cart.Cart
	ct.Request(t, http.MethodGet, "/cart", nil, http.StatusOK, &crt)
	if len(crt.Items) != 0 {
		t.Fatalf("cart still has %d lines after checkout", len(crt.Items))
	}

	body := order.CheckoutNew{
		CustomerName:  "Test Customer",
		CustomerPhone: "5550001111",
		DeliveryType:  order.Pickup,
	}
	ct.Request(t, http.MethodPost, "/checkout", body, http.StatusUnprocessableEntity, nil)
}

// Changing a product after checkout must not touch the prices frozen on
// the order items.
func (ct *checkoutTest) testPriceFreeze(t *testing.T, apples product.Product, orders []order.Order) {
	ct.Logout(t)
	ct.Login(t, ct.vendorEmail, ct.vendorPass)

	newPrice := 80.0
	up := product.ProductUp{Price: &newPrice}
	ct.Request(t, http.MethodPut, "/products/"+apples.ID, up, http.StatusOK, nil)

	ct.Logout(t)
	ct.Login(t, ct.UserEmail, ct.UserPass)

	for _, ord := range orders {
		var got order.Order
		ct.Request(t, http.MethodGet, "/orders/"+ord.ID, nil, http.StatusOK, &got)

		for _, it := range got.Items {
			if it.ProductID == apples.ID && it.Price != 50 {
				t.Errorf("order[%s] item price: got %.2f, want the frozen 50.00", ord.ID, it.Price)
			}
		}
	}
}

// Status moves follow the fulfillment table; anything else is a conflict.
func (ct *checkoutTest) testStatusFlow(t *testing.T, orders []order.Order) {
	ct.Logout(t)
	ct.Login(t, ct.vendorEmail, ct.vendorPass)
	defer func() {
		ct.Logout(t)
		ct.Login(t, ct.UserEmail, ct.UserPass)
	}()

	ord := orders[0]
	statusURL := "/orders/" + ord.ID + "/status"

	// pending cannot jump straight to ready.
	ct.Request(t, http.MethodPut, statusURL, order.StatusUp{Status: order.Ready}, http.StatusConflict, nil)

	var got order.Order
	ct.Request(t, http.MethodPut, statusURL, order.StatusUp{Status: order.Confirmed}, http.StatusOK, &got)
	if got.Status != order.Confirmed {
		t.Fatalf("got status %q, want %q", got.Status, order.Confirmed)
	}

	ct.Request(t, http.MethodPut, statusURL, order.StatusUp{Status: order.Preparing}, http.StatusOK, &got)
	ct.Request(t, http.MethodPut, statusURL, order.StatusUp{Status: order.Ready}, http.StatusOK, &got)
	ct.Request(t, http.MethodPut, statusURL, order.StatusUp{Status: order.Dispatched}, http.StatusOK, &got)
	ct.Request(t, http.MethodPut, statusURL, order.StatusUp{Status: order.Delivered}, http.StatusOK, &got)

	// delivered is terminal.
	ct.Request(t, http.MethodPut, statusURL, order.StatusUp{Status: order.Pending}, http.StatusConflict, nil)
}

// rawCheckout posts a pickup checkout without going through Request, so
// racing goroutines can report their status codes instead of failing
// the test mid-flight.
func (ct *checkoutTest) rawCheckout() (int, error) {
	body := order.CheckoutNew{
		CustomerName:  "Test Customer",
		CustomerPhone: "5550001111",
		DeliveryType:  order.Pickup,
	}

	b, err := json.Marshal(body)
	if err != nil {
		return 0, err
	}

	resp, err := ct.Client().Post(ct.URL+"/checkout", "application/json", bytes.NewReader(b))
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}

// Two checkouts racing on the same cart must not both turn it into
// orders. The cart row lock serializes them: the winner creates one
// order per shop, the loser finds the cart already empty.
func (ct *checkoutTest) testConcurrentCheckout(t *testing.T, apples, bread product.Product) {
	ct.addItemOK(t, apples.ID, 1)
	ct.addItemOK(t, bread.ID, 1)

	before := ct.countOrders(t)

	type result struct {
		status int
		err    error
	}
	results := make(chan result, 2)
	for i := 0; i < 2; i++ {
		go func() {
			status, err := ct.rawCheckout()
			results <- result{status, err}
		}()
	}

	var statuses []int
	for i := 0; i < 2; i++ {
		res := <-results
		if res.err != nil {
			t.Fatalf("checkout request: %v", res.err)
		}
		statuses = append(statuses, res.status)
	}

	sort.Ints(statuses)
	if statuses[0] != http.StatusCreated || statuses[1] != http.StatusUnprocessableEntity {
		t.Fatalf("got statuses %v, want exactly one winner and one empty-cart rejection", statuses)
	}

	if got := ct.countOrders(t) - before; got != 2 {
		t.Fatalf("got %d new orders from two racing checkouts, want 2", got)
	}
}

// A failure while writing any vendor's order must leave no orders at
// all and the cart exactly as it was.
func (ct *checkoutTest) testCheckoutRollback(t *testing.T, apples, bread product.Product, bakery shop.Shop) {
	ct.addItemOK(t, apples.ID, 1)
	crt := ct.addItemOK(t, bread.ID, 2)
	if len(crt.Items) != 2 {
		t.Fatalf("got %d cart lines, want 2", len(crt.Items))
	}

	// Fail the insert of the bakery's order at the database, partway
	// through the multi-vendor write.
	trg := fmt.Sprintf(`
	CREATE FUNCTION reject_order() RETURNS trigger AS $$
	BEGIN
		RAISE EXCEPTION 'order rejected';
	END $$ LANGUAGE plpgsql;

	CREATE TRIGGER reject_bakery_orders
	BEFORE INSERT ON orders FOR EACH ROW
	WHEN (NEW.shop_id = '%s')
	EXECUTE FUNCTION reject_order();`, bakery.ID)

	if _, err := ct.DB.Exec(trg); err != nil {
		t.Fatalf("installing reject trigger: %v", err)
	}
	defer func() {
		if _, err := ct.DB.Exec(`DROP TRIGGER reject_bakery_orders ON orders; DROP FUNCTION reject_order()`); err != nil {
			t.Fatalf("removing reject trigger: %v", err)
		}
	}()

	before := ct.countOrders(t)

	body := order.CheckoutNew{
		CustomerName:  "Test Customer",
		CustomerPhone: "5550001111",
		DeliveryType:  order.Pickup,
	}
	ct.Request(t, http.MethodPost, "/checkout", body, http.StatusInternalServerError, nil)

	if got := ct.countOrders(t); got != before {
		t.Fatalf("got %d orders after a failed checkout, want the previous %d", got, before)
	}

	ct.Request(t, http.MethodGet, "/cart", nil, http.StatusOK, &crt)
	if len(crt.Items) != 2 {
		t.Fatalf("got %d cart lines after a failed checkout, want the original 2", len(crt.Items))
	}

	ct.Request(t, http.MethodDelete, "/cart", nil, http.StatusNoContent, nil)
}

func (ct *checkoutTest) countOrders(t *testing.T) int {
	t.Helper()

	var n int
	if err := ct.DB.Get(&n, `SELECT COUNT(*) FROM orders`); err != nil {
		t.Fatalf("counting orders: %v", err)
	}
	return n
}
