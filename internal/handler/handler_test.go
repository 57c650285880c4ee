package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/xenking/storefront-checkout/internal/domain/order"
	"github.com/xenking/storefront-checkout/internal/domain/shipping"
)

type mockSettler struct {
	order *order.Order
	err   error
	got   order.SettleRequest
}

func (m *mockSettler) Settle(_ context.Context, req order.SettleRequest) (*order.Order, error) {
	m.got = req
	return m.order, m.err
}

type mockOrderReader struct {
	order *order.Order
	err   error
}

func (m *mockOrderReader) GetByNumber(_ context.Context, _ string) (*order.Order, error) {
	return m.order, m.err
}

type mockShippingConfig struct {
	settings shipping.Settings
	zones    []shipping.Zone
	err      error
}

func (m *mockShippingConfig) ReadConfig(_ context.Context) (shipping.Settings, []shipping.Zone, error) {
	return m.settings, m.zones, m.err
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testOrder() *order.Order {
	return &order.Order{
		ID:            "7a1e9f6e-37a2-4b4e-9f1a-33dd60f2a001",
		Number:        "ORD-20250615-3F2A9C1B",
		GuestEmail:    "asha@example.com",
		Status:        order.StatusPending,
		PaymentStatus: order.PaymentUnpaid,
		Subtotal:      dec("4000.50"),
		Tax:           dec("720.09"),
		Shipping:      dec("650"),
		Discount:      dec("0"),
		Total:         dec("5370.59"),
		Items: []order.Item{
			{ProductID: "p1", Name: "Widget", SKU: "SKU-p1", Quantity: 2, UnitPrice: dec("1500.50"), TotalPrice: dec("3001.00")},
		},
		CreatedAt: time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC),
	}
}

func newTestHandler(t *testing.T, settler Settler, orders OrderReader, cfg shipping.ConfigRepository) *Handler {
	t.Helper()
	h, err := New(settler, orders, cfg, noop.NewMeterProvider())
	require.NoError(t, err)
	return h
}

func doJSON(t *testing.T, h *Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	return rec
}

const checkoutBody = `{
	"guestEmail": "asha@example.com",
	"items": [{"productId": "p1", "quantity": 2}],
	"shippingAddress": {"name": "Asha Rao", "line1": "14 Lake View Road", "city": "Pune", "postal_code": "411001"},
	"distanceKm": 8,
	"couponCode": "SAVE10"
}`

func TestCheckout_Success(t *testing.T) {
	settler := &mockSettler{order: testOrder()}
	h := newTestHandler(t, settler, &mockOrderReader{}, &mockShippingConfig{})

	rec := doJSON(t, h, http.MethodPost, "/checkout", checkoutBody)

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ORD-20250615-3F2A9C1B", resp["number"])
	assert.Equal(t, "5370.59", resp["total"])
	assert.Equal(t, "pending", resp["status"])
	assert.Equal(t, "unpaid", resp["paymentStatus"])

	// The wire request was translated faithfully into the domain request.
	assert.Equal(t, "asha@example.com", settler.got.GuestEmail)
	assert.Equal(t, []order.CartLine{{ProductID: "p1", Quantity: 2}}, settler.got.Lines)
	assert.Equal(t, "SAVE10", settler.got.CouponCode)
	assert.True(t, dec("8").Equal(settler.got.DistanceKm))
}

func TestCheckout_MalformedBody(t *testing.T) {
	h := newTestHandler(t, &mockSettler{}, &mockOrderReader{}, &mockShippingConfig{})

	rec := doJSON(t, h, http.MethodPost, "/checkout", `{"items": [`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckout_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"empty cart", order.ErrEmptyCart, http.StatusBadRequest},
		{"missing customer", order.ErrMissingCustomer, http.StatusBadRequest},
		{"negative distance", shipping.ErrNegativeDistance, http.StatusBadRequest},
		{"invalid quantity", &order.InvalidQuantityError{ProductID: "p1"}, http.StatusBadRequest},
		{"product unavailable", &order.ProductUnavailableError{ProductID: "p1"}, http.StatusUnprocessableEntity},
		{
			"insufficient stock",
			&order.InsufficientStockError{Shortages: []order.StockShortage{
				{ProductID: "p1", Requested: 2, Available: 0},
			}},
			http.StatusUnprocessableEntity,
		},
		{"coupon invalid", &order.CouponInvalidError{Code: "X", Reason: "coupon has expired"}, http.StatusUnprocessableEntity},
		{"commit conflict", order.ErrCommitConflict, http.StatusConflict},
		{"persistence failure", &order.PersistenceError{Err: assert.AnError}, http.StatusServiceUnavailable},
		{"unexpected error", assert.AnError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, &mockSettler{err: tt.err}, &mockOrderReader{}, &mockShippingConfig{})

			rec := doJSON(t, h, http.MethodPost, "/checkout", checkoutBody)
			assert.Equal(t, tt.wantStatus, rec.Code)

			var body errorBody
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantStatus, body.Code)
			assert.NotEmpty(t, body.Message)
		})
	}
}

func TestCheckout_InsufficientStockNamesLines(t *testing.T) {
	settleErr := &order.InsufficientStockError{Shortages: []order.StockShortage{
		{ProductID: "p3", Requested: 2, Available: 0},
	}}
	h := newTestHandler(t, &mockSettler{err: settleErr}, &mockOrderReader{}, &mockShippingConfig{})

	rec := doJSON(t, h, http.MethodPost, "/checkout", checkoutBody)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "p3 (requested 2, available 0)")
}

func TestGetOrder(t *testing.T) {
	h := newTestHandler(t, &mockSettler{}, &mockOrderReader{order: testOrder()}, &mockShippingConfig{})

	rec := doJSON(t, h, http.MethodGet, "/orders/ORD-20250615-3F2A9C1B", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ORD-20250615-3F2A9C1B", resp["number"])
}

func TestGetOrder_NotFound(t *testing.T) {
	h := newTestHandler(t, &mockSettler{}, &mockOrderReader{err: order.ErrNotFound}, &mockShippingConfig{})

	rec := doJSON(t, h, http.MethodGet, "/orders/ORD-MISSING", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestShippingQuote(t *testing.T) {
	cfg := &mockShippingConfig{
		settings: shipping.Settings{
			FreeShippingThreshold: dec("10000"),
			DistanceFreeRadiusKm:  dec("5"),
			PerKmRate:             dec("50"),
			BaseRate:              dec("500"),
		},
	}
	h := newTestHandler(t, &mockSettler{}, &mockOrderReader{}, cfg)

	rec := doJSON(t, h, http.MethodPost, "/shipping/quote", `{"subtotal": 12000, "distanceKm": 8}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp quoteResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "150.00", resp.Amount)
	assert.False(t, resp.FreeShipping)
	assert.Equal(t, "3", resp.ChargeableDistanceKm)
}

func TestShippingQuote_NegativeDistance(t *testing.T) {
	h := newTestHandler(t, &mockSettler{}, &mockOrderReader{}, &mockShippingConfig{})

	rec := doJSON(t, h, http.MethodPost, "/shipping/quote", `{"subtotal": 100, "distanceKm": -2}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
