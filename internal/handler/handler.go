// Package handler exposes the settlement pipeline over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/xenking/storefront-checkout/internal/domain/order"
	"github.com/xenking/storefront-checkout/internal/domain/shipping"
)

// Settler runs one settlement attempt. Implemented by order.Settlement.
type Settler interface {
	Settle(ctx context.Context, req order.SettleRequest) (*order.Order, error)
}

// OrderReader looks up committed orders.
type OrderReader interface {
	GetByNumber(ctx context.Context, number string) (*order.Order, error)
}

// Handler serves the checkout API: settlement, order lookup, and
// display-side shipping quotes.
type Handler struct {
	settlement  Settler
	orders      OrderReader
	shippingCfg shipping.ConfigRepository

	settlements metric.Int64Counter
}

// New constructs a Handler. The meter provider feeds a settlement outcome
// counter; pass a noop provider in tests.
func New(settlement Settler, orders OrderReader, shippingCfg shipping.ConfigRepository, mp metric.MeterProvider) (*Handler, error) {
	meter := mp.Meter("storefront-checkout/handler")
	settlements, err := meter.Int64Counter("checkout.settlements",
		metric.WithDescription("Settlement attempts by outcome"),
	)
	if err != nil {
		return nil, err
	}

	return &Handler{
		settlement:  settlement,
		orders:      orders,
		shippingCfg: shippingCfg,
		settlements: settlements,
	}, nil
}

// Routes returns the API router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/checkout", h.Checkout)
	r.Get("/orders/{number}", h.GetOrder)
	r.Post("/shipping/quote", h.ShippingQuote)
	return r
}

func (h *Handler) recordSettlement(ctx context.Context, outcome string) {
	h.settlements.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
	))
}

// errorBody is the uniform error response envelope.
type errorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zctx.From(ctx).Error("Encode response", zap.Error(err))
	}
}

func respondError(ctx context.Context, w http.ResponseWriter, status int, message string) {
	respondJSON(ctx, w, status, errorBody{Code: status, Message: message})
}
