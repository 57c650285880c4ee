package shipping

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNegativeDistance is returned when a caller passes a delivery distance
// below zero. Negative distance is a contract violation, not a value to clamp.
var ErrNegativeDistance = errors.New("delivery distance must not be negative")

// Compute calculates the shipping charge for an order subtotal delivered over
// the given distance. It is a pure function: the same inputs always produce
// the same Quote, so it can back both settlement and display-side estimates.
//
// Resolution order: the first active zone overrides the matching settings
// fields; unset zone fields fall through to settings. Distance is clamped to
// the zone's maximum shipping distance when one is configured.
func Compute(subtotal, distanceKm decimal.Decimal, settings Settings, zones []Zone) (Quote, error) {
	if distanceKm.IsNegative() {
		return Quote{}, ErrNegativeDistance
	}

	q := Quote{
		BaseRate:              settings.BaseRate,
		PerKmRate:             settings.PerKmRate,
		FreeShippingThreshold: settings.FreeShippingThreshold,
		FreeRadiusKm:          settings.DistanceFreeRadiusKm,
		RequestedDistanceKm:   distanceKm,
		EffectiveDistanceKm:   distanceKm,
	}

	if zone := activeZone(zones); zone != nil {
		q.Zone = zone.Name
		q.BaseRate = zone.BaseRate
		if zone.FreeShippingThreshold != nil {
			q.FreeShippingThreshold = *zone.FreeShippingThreshold
		}
		if zone.DistanceFreeRadiusKm != nil {
			q.FreeRadiusKm = *zone.DistanceFreeRadiusKm
		}
		if zone.PerKmRate != nil {
			q.PerKmRate = *zone.PerKmRate
		}
		if zone.MaxShippingDistanceKm != nil && distanceKm.GreaterThan(*zone.MaxShippingDistanceKm) {
			q.EffectiveDistanceKm = *zone.MaxShippingDistanceKm
		}
	}

	q.ChargeableDistanceKm = decimal.Max(decimal.Zero, q.EffectiveDistanceKm.Sub(q.FreeRadiusKm))
	q.DistanceCharge = q.ChargeableDistanceKm.Mul(q.PerKmRate)

	withinRadius := q.EffectiveDistanceKm.LessThanOrEqual(q.FreeRadiusKm)

	switch {
	case subtotal.GreaterThanOrEqual(q.FreeShippingThreshold) && withinRadius:
		q.Amount = decimal.Zero
		q.FreeShipping = true
	case subtotal.GreaterThanOrEqual(q.FreeShippingThreshold):
		// Above threshold the base rate is waived; only the distance
		// beyond the free radius is charged.
		q.Amount = q.DistanceCharge
	case withinRadius:
		q.Amount = q.BaseRate
	default:
		q.Amount = q.BaseRate.Add(q.DistanceCharge)
	}

	q.Amount = q.Amount.Round(2)
	return q, nil
}

// activeZone returns the first active zone, or nil when none is active.
func activeZone(zones []Zone) *Zone {
	for i := range zones {
		if zones[i].Active {
			return &zones[i]
		}
	}
	return nil
}
