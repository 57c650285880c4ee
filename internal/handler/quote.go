package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/storefront-checkout/internal/domain/shipping"
)

type quoteRequest struct {
	Subtotal   decimal.Decimal `json:"subtotal"`
	DistanceKm decimal.Decimal `json:"distanceKm"`
}

type quoteResponse struct {
	Amount               string `json:"amount"`
	FreeShipping         bool   `json:"freeShipping"`
	Zone                 string `json:"zone,omitempty"`
	BaseRate             string `json:"baseRate"`
	PerKmRate            string `json:"perKmRate"`
	FreeRadiusKm         string `json:"freeRadiusKm"`
	EffectiveDistanceKm  string `json:"effectiveDistanceKm"`
	ChargeableDistanceKm string `json:"chargeableDistanceKm"`
	DistanceCharge       string `json:"distanceCharge"`
}

// ShippingQuote computes a display-side shipping estimate for a cart. It runs
// the same pure calculation settlement uses, so the displayed amount matches
// what checkout will charge for the same subtotal and distance.
func (h *Handler) ShippingQuote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req quoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Subtotal.IsNegative() {
		respondError(ctx, w, http.StatusBadRequest, "subtotal must not be negative")
		return
	}

	settings, zones, err := h.shippingCfg.ReadConfig(ctx)
	if err != nil {
		zctx.From(ctx).Error("Read shipping config", zap.Error(err))
		respondError(ctx, w, http.StatusInternalServerError, "internal error")
		return
	}

	quote, err := shipping.Compute(req.Subtotal, req.DistanceKm, settings, zones)
	if err != nil {
		if errors.Is(err, shipping.ErrNegativeDistance) {
			respondError(ctx, w, http.StatusBadRequest, err.Error())
			return
		}
		zctx.From(ctx).Error("Compute shipping quote", zap.Error(err))
		respondError(ctx, w, http.StatusInternalServerError, "internal error")
		return
	}

	respondJSON(ctx, w, http.StatusOK, quoteResponse{
		Amount:               quote.Amount.StringFixed(2),
		FreeShipping:         quote.FreeShipping,
		Zone:                 quote.Zone,
		BaseRate:             quote.BaseRate.StringFixed(2),
		PerKmRate:            quote.PerKmRate.StringFixed(2),
		FreeRadiusKm:         quote.FreeRadiusKm.String(),
		EffectiveDistanceKm:  quote.EffectiveDistanceKm.String(),
		ChargeableDistanceKm: quote.ChargeableDistanceKm.String(),
		DistanceCharge:       quote.DistanceCharge.StringFixed(2),
	})
}
