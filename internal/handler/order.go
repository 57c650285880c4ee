package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront-checkout/internal/domain/order"
)

// GetOrder returns a committed order by its human-readable order number.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	number := chi.URLParam(r, "number")

	o, err := h.orders.GetByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "order not found")
			return
		}
		zctx.From(ctx).Error("Get order", zap.String("number", number), zap.Error(err))
		respondError(ctx, w, http.StatusInternalServerError, "internal error")
		return
	}

	respondJSON(ctx, w, http.StatusOK, toOrderResponse(o))
}
