//go:build integration

package integration

import (
	"net/http"
	"regexp"
	"strings"
	"testing"
)

var orderNumberPattern = regexp.MustCompile(`^ORD-\d{8}-[0-9A-F]{8}$`)

func testAddress() address {
	return address{
		Name:       "Asha Rao",
		Line1:      "14 Hill Road",
		City:       "Mumbai",
		State:      "MH",
		PostalCode: "400050",
		Country:    "IN",
	}
}

func TestCheckout_FreeShipping(t *testing.T) {
	req := checkoutRequest{
		GuestEmail:      "asha@example.com",
		Items:           []checkoutItem{{ProductID: "p-ceramic-mug-set", Quantity: 2}},
		ShippingAddress: testAddress(),
		DistanceKm:      "3",
	}
	resp := doPost(t, "/api/checkout", req)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	order := decodeJSON[orderResponse](t, resp)
	if !orderNumberPattern.MatchString(order.Number) {
		t.Errorf("order number %q does not match expected format", order.Number)
	}
	if order.Subtotal != "1799.00" {
		t.Errorf("subtotal: got %s, want 1799.00", order.Subtotal)
	}
	if order.Shipping != "0.00" {
		t.Errorf("shipping: got %s, want 0.00", order.Shipping)
	}
	if order.Total != "1799.00" {
		t.Errorf("total: got %s, want 1799.00", order.Total)
	}
	if order.Status != "pending" {
		t.Errorf("status: got %s, want pending", order.Status)
	}
	if order.PaymentStatus != "unpaid" {
		t.Errorf("payment status: got %s, want unpaid", order.PaymentStatus)
	}
	if len(order.Items) != 1 || order.Items[0].Quantity != 2 {
		t.Errorf("unexpected items: %+v", order.Items)
	}
}

func TestCheckout_BaseRateWithinRadius(t *testing.T) {
	req := checkoutRequest{
		GuestEmail:      "asha@example.com",
		Items:           []checkoutItem{{ProductID: "p-bamboo-board", Quantity: 1}},
		ShippingAddress: testAddress(),
		DistanceKm:      "2",
	}
	resp := doPost(t, "/api/checkout", req)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	order := decodeJSON[orderResponse](t, resp)
	// Subtotal 645.00 is below the free shipping threshold, distance within
	// the free radius: flat base rate applies.
	if order.Shipping != "50.00" {
		t.Errorf("shipping: got %s, want 50.00", order.Shipping)
	}
	if order.Total != "695.00" {
		t.Errorf("total: got %s, want 695.00", order.Total)
	}
}

func TestCheckout_DistanceChargeAboveThreshold(t *testing.T) {
	req := checkoutRequest{
		GuestEmail:      "asha@example.com",
		Items:           []checkoutItem{{ProductID: "p-espresso-maker", Quantity: 1}},
		ShippingAddress: testAddress(),
		DistanceKm:      "8",
	}
	resp := doPost(t, "/api/checkout", req)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	order := decodeJSON[orderResponse](t, resp)
	// Subtotal qualifies for free shipping but 8km exceeds the 5km free
	// radius: only the 3 chargeable km are billed, base rate waived.
	if order.Shipping != "30.00" {
		t.Errorf("shipping: got %s, want 30.00", order.Shipping)
	}
	if order.Total != "2529.00" {
		t.Errorf("total: got %s, want 2529.00", order.Total)
	}
}

func TestCheckout_PercentageCoupon(t *testing.T) {
	req := checkoutRequest{
		GuestEmail:      "asha@example.com",
		Items:           []checkoutItem{{ProductID: "p-ceramic-mug-set", Quantity: 2}},
		ShippingAddress: testAddress(),
		DistanceKm:      "3",
		CouponCode:      "save10",
	}
	resp := doPost(t, "/api/checkout", req)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	order := decodeJSON[orderResponse](t, resp)
	// 10% of 1799.00, code canonicalized to upper case.
	if order.Discount != "179.90" {
		t.Errorf("discount: got %s, want 179.90", order.Discount)
	}
	if order.Total != "1619.10" {
		t.Errorf("total: got %s, want 1619.10", order.Total)
	}
	if order.CouponCode != "SAVE10" {
		t.Errorf("coupon code: got %s, want SAVE10", order.CouponCode)
	}
}

func TestCheckout_CouponBelowMinOrder(t *testing.T) {
	req := checkoutRequest{
		GuestEmail:      "asha@example.com",
		Items:           []checkoutItem{{ProductID: "p-bamboo-board", Quantity: 1}},
		ShippingAddress: testAddress(),
		DistanceKm:      "2",
		CouponCode:      "FLAT200",
	}
	resp := doPost(t, "/api/checkout", req)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}

	body := decodeJSON[errorResponse](t, resp)
	if !strings.Contains(body.Message, "FLAT200") {
		t.Errorf("error message should name the coupon: %s", body.Message)
	}
}

func TestCheckout_UnknownCoupon(t *testing.T) {
	req := checkoutRequest{
		GuestEmail:      "asha@example.com",
		Items:           []checkoutItem{{ProductID: "p-bamboo-board", Quantity: 1}},
		ShippingAddress: testAddress(),
		DistanceKm:      "2",
		CouponCode:      "NOSUCHCODE",
	}
	resp := doPost(t, "/api/checkout", req)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
}

func TestCheckout_EmptyCart(t *testing.T) {
	req := checkoutRequest{
		GuestEmail:      "asha@example.com",
		Items:           []checkoutItem{},
		ShippingAddress: testAddress(),
		DistanceKm:      "2",
	}
	resp := doPost(t, "/api/checkout", req)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestCheckout_MissingCustomer(t *testing.T) {
	req := checkoutRequest{
		Items:           []checkoutItem{{ProductID: "p-bamboo-board", Quantity: 1}},
		ShippingAddress: testAddress(),
		DistanceKm:      "2",
	}
	resp := doPost(t, "/api/checkout", req)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestCheckout_UnknownProduct(t *testing.T) {
	req := checkoutRequest{
		GuestEmail:      "asha@example.com",
		Items:           []checkoutItem{{ProductID: "p-no-such-product", Quantity: 1}},
		ShippingAddress: testAddress(),
		DistanceKm:      "2",
	}
	resp := doPost(t, "/api/checkout", req)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
}

func TestGetOrder(t *testing.T) {
	req := checkoutRequest{
		GuestEmail:      "asha@example.com",
		Items:           []checkoutItem{{ProductID: "p-bamboo-board", Quantity: 1}},
		ShippingAddress: testAddress(),
		DistanceKm:      "2",
	}
	resp := doPost(t, "/api/checkout", req)
	created := decodeJSON[orderResponse](t, resp)
	resp.Body.Close()

	lookup := doGet(t, "/api/orders/"+created.Number)
	defer lookup.Body.Close()

	if lookup.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", lookup.StatusCode)
	}

	got := decodeJSON[orderResponse](t, lookup)
	if got.Number != created.Number {
		t.Errorf("number: got %s, want %s", got.Number, created.Number)
	}
	if got.Total != created.Total {
		t.Errorf("total: got %s, want %s", got.Total, created.Total)
	}
}

func TestGetOrder_NotFound(t *testing.T) {
	resp := doGet(t, "/api/orders/ORD-20260101-DEADBEEF")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestShippingQuote(t *testing.T) {
	tests := []struct {
		name         string
		subtotal     string
		distanceKm   string
		amount       string
		freeShipping bool
	}{
		{name: "free within radius", subtotal: "2000", distanceKm: "4", amount: "0.00", freeShipping: true},
		{name: "distance charge only", subtotal: "12000", distanceKm: "8", amount: "30.00"},
		{name: "base rate below threshold", subtotal: "500", distanceKm: "3", amount: "50.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doPost(t, "/api/shipping/quote", quoteRequest{
				Subtotal:   tt.subtotal,
				DistanceKm: tt.distanceKm,
			})
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				t.Fatalf("expected 200, got %d", resp.StatusCode)
			}

			quote := decodeJSON[quoteResponse](t, resp)
			if quote.Amount != tt.amount {
				t.Errorf("amount: got %s, want %s", quote.Amount, tt.amount)
			}
			if quote.FreeShipping != tt.freeShipping {
				t.Errorf("freeShipping: got %v, want %v", quote.FreeShipping, tt.freeShipping)
			}
		})
	}
}
