package test

import (
	"net/http"
	"testing"

	"github.com/onestophub/one-stop-hub/core/cart"
	"github.com/onestophub/one-stop-hub/core/order"
	"github.com/onestophub/one-stop-hub/core/product"
	"github.com/onestophub/one-stop-hub/core/shop"
)

// wellFormedID passes id validation but matches nothing in the database.
const wellFormedID = "00000000-0000-4000-8000-000000000000"

type catalogTest struct {
	*TestEnv

	vendorEmail string
	vendorPass  string

	grocery  shop.Category
	pharmacy shop.Category
	veg      product.Category
	fruit    product.Category
}

func TestCatalog(t *testing.T) {
	env, err := NewTestEnv(t, "catalog_test")
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}

	ctl := &catalogTest{
		TestEnv:     env,
		vendorEmail: "owner@test.com",
		vendorPass:  "ownerpass",
	}

	ctl.Paypal.expectedFee = 10.01

	ctl.testCurateCategories(t)

	ctl.signup(t, "Shop Owner", ctl.vendorEmail, ctl.vendorPass)
	grocer := ctl.testShopCategory(t)
	tomato, apple := ctl.testProductCategory(t, grocer)
	ctl.testToggleOpen(t, grocer)
	ctl.testDeleteProduct(t, tomato, apple)
}

// Categories are curated by admins; names are unique per tree.
func (ctl *catalogTest) testCurateCategories(t *testing.T) {
	ctl.Login(t, ctl.AdminEmail, ctl.AdminPass)

	cn := shop.CategoryNew{Name: "Grocery", Description: "Daily essentials"}
	ctl.Request(t, http.MethodPost, "/shops/categories", cn, http.StatusCreated, &ctl.grocery)
	ctl.Request(t, http.MethodPost, "/shops/categories", cn, http.StatusConflict, nil)
	ctl.Request(t, http.MethodPost, "/shops/categories", shop.CategoryNew{Name: "Pharmacy"}, http.StatusCreated, &ctl.pharmacy)

	ctl.Request(t, http.MethodPost, "/products/categories", product.CategoryNew{Name: "Vegetables"}, http.StatusCreated, &ctl.veg)
	ctl.Request(t, http.MethodPost, "/products/categories", product.CategoryNew{Name: "Fruits"}, http.StatusCreated, &ctl.fruit)

	var cats []shop.Category
	ctl.Request(t, http.MethodGet, "/shops/categories", nil, http.StatusOK, &cats)
	if len(cats) != 2 {
		t.Fatalf("got %d shop categories, want 2", len(cats))
	}

	ctl.Logout(t)

	// Curating is for admins only.
	ctl.Login(t, ctl.UserEmail, ctl.UserPass)
	ctl.Request(t, http.MethodPost, "/shops/categories", shop.CategoryNew{Name: "Hardware"}, http.StatusUnauthorized, nil)
	ctl.Logout(t)
}

// A shop registers into a category and shows up under its filter.
func (ctl *catalogTest) testShopCategory(t *testing.T) shop.Shop {
	ctl.Login(t, ctl.vendorEmail, ctl.vendorPass)

	sn := shop.ShopNew{
		Name:    "Corner Grocer",
		Phone:   "5551234567",
		Address: "1 Market Street",
		City:    "Springfield",
		Pincode: "600001",
	}

	sn.CategoryID = wellFormedID
	ctl.Request(t, http.MethodPost, "/shops", sn, http.StatusUnprocessableEntity, nil)

	sn.CategoryID = ctl.grocery.ID
	var shp shop.Shop
	ctl.Request(t, http.MethodPost, "/shops", sn, http.StatusCreated, &shp)
	if shp.CategoryID == nil || *shp.CategoryID != ctl.grocery.ID {
		t.Fatalf("got category %v, want %q", shp.CategoryID, ctl.grocery.ID)
	}

	st := &shopTest{ctl.TestEnv}
	st.payWithPaypal(t, shp.ID)
	st.assertShopStatus(t, shp.ID, shop.Active)

	var shops []shop.Shop
	ctl.Request(t, http.MethodGet, "/shops?category_id="+ctl.grocery.ID, nil, http.StatusOK, &shops)
	if len(shops) != 1 || shops[0].ID != shp.ID {
		t.Fatalf("grocery filter: got %d shops, want just %q", len(shops), shp.Name)
	}

	ctl.Request(t, http.MethodGet, "/shops?category_id="+ctl.pharmacy.ID, nil, http.StatusOK, &shops)
	if len(shops) != 0 {
		t.Fatalf("pharmacy filter: got %d shops, want 0", len(shops))
	}

	return shp
}

// Products register into their own category tree and the cross-shop
// catalog filters on it.
func (ctl *catalogTest) testProductCategory(t *testing.T, grocer shop.Shop) (product.Product, product.Product) {
	pn := product.ProductNew{Name: "Tomatoes", Price: 40, Stock: 50, CategoryID: wellFormedID}
	ctl.Request(t, http.MethodPost, "/shops/"+grocer.ID+"/products", pn, http.StatusUnprocessableEntity, nil)

	pn.CategoryID = ctl.veg.ID
	var tomato product.Product
	ctl.Request(t, http.MethodPost, "/shops/"+grocer.ID+"/products", pn, http.StatusCreated, &tomato)

	var apple product.Product
	pn = product.ProductNew{Name: "Apples", Price: 50, Stock: 50, CategoryID: ctl.fruit.ID}
	ctl.Request(t, http.MethodPost, "/shops/"+grocer.ID+"/products", pn, http.StatusCreated, &apple)

	var prds []product.Product
	ctl.Request(t, http.MethodGet, "/products?category_id="+ctl.veg.ID, nil, http.StatusOK, &prds)
	if len(prds) != 1 || prds[0].ID != tomato.ID {
		t.Fatalf("vegetables filter: got %d products, want just %q", len(prds), tomato.Name)
	}

	ctl.Request(t, http.MethodGet, "/products", nil, http.StatusOK, &prds)
	if len(prds) != 2 {
		t.Fatalf("unfiltered catalog: got %d products, want 2", len(prds))
	}

	return tomato, apple
}

// Only the owner can flip the storefront between open and closed.
func (ctl *catalogTest) testToggleOpen(t *testing.T, grocer shop.Shop) {
	var shp shop.Shop
	ctl.Request(t, http.MethodPost, "/shops/"+grocer.ID+"/toggle", nil, http.StatusOK, &shp)
	if shp.IsOpen {
		t.Fatal("shop still open after the first toggle")
	}

	ctl.Request(t, http.MethodPost, "/shops/"+grocer.ID+"/toggle", nil, http.StatusOK, &shp)
	if !shp.IsOpen {
		t.Fatal("shop still closed after the second toggle")
	}

	ctl.Logout(t)
	ctl.Login(t, ctl.UserEmail, ctl.UserPass)
	ctl.Request(t, http.MethodPost, "/shops/"+grocer.ID+"/toggle", nil, http.StatusUnauthorized, nil)
	ctl.Logout(t)
	ctl.Login(t, ctl.vendorEmail, ctl.vendorPass)
}

// Deleting a product clears it from carts; a product already sold keeps
// its row for order history and the delete is refused.
func (ctl *catalogTest) testDeleteProduct(t *testing.T, tomato, apple product.Product) {
	ctl.Logout(t)
	ctl.Login(t, ctl.UserEmail, ctl.UserPass)

	var crt cart.Cart
	ctl.Request(t, http.MethodPut, "/cart/items", cart.ItemNew{ProductID: tomato.ID, Quantity: 2}, http.StatusOK, &crt)

	ctl.Logout(t)
	ctl.Login(t, ctl.vendorEmail, ctl.vendorPass)
	ctl.Request(t, http.MethodDelete, "/products/"+tomato.ID, nil, http.StatusNoContent, nil)
	ctl.Request(t, http.MethodGet, "/products/"+tomato.ID, nil, http.StatusNotFound, nil)
	ctl.Request(t, http.MethodDelete, "/products/"+tomato.ID, nil, http.StatusNotFound, nil)

	// The customer's cart line went with it.
	ctl.Logout(t)
	ctl.Login(t, ctl.UserEmail, ctl.UserPass)
	ctl.Request(t, http.MethodGet, "/cart", nil, http.StatusOK, &crt)
	if len(crt.Items) != 0 {
		t.Fatalf("got %d cart lines after the product was deleted, want 0", len(crt.Items))
	}

	// Buy the apple so it lands on an order.
	ctl.Request(t, http.MethodPut, "/cart/items", cart.ItemNew{ProductID: apple.ID, Quantity: 1}, http.StatusOK, &crt)
	body := order.CheckoutNew{
		CustomerName:  "Test Customer",
		CustomerPhone: "5550001111",
		DeliveryType:  order.Pickup,
	}
	ctl.Request(t, http.MethodPost, "/checkout", body, http.StatusCreated, nil)

	ctl.Logout(t)
	ctl.Login(t, ctl.vendorEmail, ctl.vendorPass)
	ctl.Request(t, http.MethodDelete, "/products/"+apple.ID, nil, http.StatusConflict, nil)

	// The escape hatch is taking it off the shelf.
	off := false
	ctl.Request(t, http.MethodPut, "/products/"+apple.ID, product.ProductUp{IsAvailable: &off}, http.StatusOK, nil)
	ctl.Logout(t)
}
