package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/storefront-checkout/internal/domain/order"
	"github.com/xenking/storefront-checkout/internal/domain/shipping"
)

// checkoutRequest is the wire form of one settlement attempt. Amounts never
// appear here: prices are re-read from the catalog server-side.
type checkoutRequest struct {
	UserID         string          `json:"userId,omitempty"`
	GuestEmail     string          `json:"guestEmail,omitempty"`
	Items          []checkoutItem  `json:"items"`
	ShippingAddr   order.Address   `json:"shippingAddress"`
	DistanceKm     decimal.Decimal `json:"distanceKm"`
	CouponCode     string          `json:"couponCode,omitempty"`
	IdempotencyKey string          `json:"idempotencyKey,omitempty"`
}

type checkoutItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type orderResponse struct {
	ID            string              `json:"id"`
	Number        string              `json:"number"`
	Status        string              `json:"status"`
	PaymentStatus string              `json:"paymentStatus"`
	Subtotal      string              `json:"subtotal"`
	Tax           string              `json:"tax"`
	Shipping      string              `json:"shipping"`
	Discount      string              `json:"discount"`
	Total         string              `json:"total"`
	CouponCode    string              `json:"couponCode,omitempty"`
	Items         []orderItemResponse `json:"items"`
	CreatedAt     string              `json:"createdAt"`
}

type orderItemResponse struct {
	ProductID  string `json:"productId"`
	Name       string `json:"name"`
	SKU        string `json:"sku"`
	Quantity   int    `json:"quantity"`
	UnitPrice  string `json:"unitPrice"`
	TotalPrice string `json:"totalPrice"`
}

// Checkout settles a proposed cart into a committed order.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	lines := make([]order.CartLine, len(req.Items))
	for i, item := range req.Items {
		lines[i] = order.CartLine{ProductID: item.ProductID, Quantity: item.Quantity}
	}

	o, err := h.settlement.Settle(ctx, order.SettleRequest{
		UserID:         req.UserID,
		GuestEmail:     req.GuestEmail,
		Lines:          lines,
		Address:        req.ShippingAddr,
		DistanceKm:     req.DistanceKm,
		CouponCode:     req.CouponCode,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		h.writeSettleError(w, r, err)
		return
	}

	h.recordSettlement(ctx, "committed")
	respondJSON(ctx, w, http.StatusCreated, toOrderResponse(o))
}

// writeSettleError maps the settlement error taxonomy onto HTTP statuses.
// Business rejections are expected conditions and are not logged as errors.
func (h *Handler) writeSettleError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()

	var (
		iqErr *order.InvalidQuantityError
		puErr *order.ProductUnavailableError
		isErr *order.InsufficientStockError
		ciErr *order.CouponInvalidError
		pErr  *order.PersistenceError
	)

	switch {
	case errors.Is(err, order.ErrEmptyCart),
		errors.Is(err, order.ErrMissingCustomer),
		errors.Is(err, order.ErrMissingAddress),
		errors.Is(err, shipping.ErrNegativeDistance),
		errors.As(err, &iqErr):
		h.recordSettlement(ctx, "invalid_input")
		respondError(ctx, w, http.StatusBadRequest, err.Error())

	case errors.As(err, &puErr):
		h.recordSettlement(ctx, "product_unavailable")
		respondError(ctx, w, http.StatusUnprocessableEntity, err.Error())

	case errors.As(err, &isErr):
		h.recordSettlement(ctx, "insufficient_stock")
		respondError(ctx, w, http.StatusUnprocessableEntity, err.Error())

	case errors.As(err, &ciErr):
		h.recordSettlement(ctx, "coupon_invalid")
		respondError(ctx, w, http.StatusUnprocessableEntity, err.Error())

	case errors.Is(err, order.ErrCommitConflict):
		h.recordSettlement(ctx, "conflict")
		respondError(ctx, w, http.StatusConflict,
			"the order could not be committed due to concurrent checkouts, retry the request")

	case errors.As(err, &pErr):
		h.recordSettlement(ctx, "persistence_failure")
		zctx.From(ctx).Error("Settlement persistence failure", zap.Error(err))
		respondError(ctx, w, http.StatusServiceUnavailable,
			"the order could not be confirmed, retry with the same idempotency key")

	default:
		h.recordSettlement(ctx, "internal_error")
		zctx.From(ctx).Error("Settlement failed", zap.Error(err))
		respondError(ctx, w, http.StatusInternalServerError, "internal error")
	}
}

func toOrderResponse(o *order.Order) orderResponse {
	items := make([]orderItemResponse, len(o.Items))
	for i, item := range o.Items {
		items[i] = orderItemResponse{
			ProductID:  item.ProductID,
			Name:       item.Name,
			SKU:        item.SKU,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice.StringFixed(2),
			TotalPrice: item.TotalPrice.StringFixed(2),
		}
	}

	return orderResponse{
		ID:            o.ID,
		Number:        o.Number,
		Status:        string(o.Status),
		PaymentStatus: string(o.PaymentStatus),
		Subtotal:      o.Subtotal.StringFixed(2),
		Tax:           o.Tax.StringFixed(2),
		Shipping:      o.Shipping.StringFixed(2),
		Discount:      o.Discount.StringFixed(2),
		Total:         o.Total.StringFixed(2),
		CouponCode:    o.CouponCode,
		Items:         items,
		CreatedAt:     o.CreatedAt.Format(time.RFC3339),
	}
}
