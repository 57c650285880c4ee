package shipping

import (
	"context"

	"github.com/shopspring/decimal"
)

// Settings holds the store-wide default shipping configuration. It is
// maintained by an external admin surface and read-only here.
type Settings struct {
	FreeShippingThreshold decimal.Decimal
	DistanceFreeRadiusKm  decimal.Decimal
	PerKmRate             decimal.Decimal
	BaseRate              decimal.Decimal
}

// DefaultSettings returns the fallback configuration used when the store has
// no shipping settings row. Callers that fall back should log that they did.
func DefaultSettings() Settings {
	return Settings{
		FreeShippingThreshold: decimal.NewFromInt(1000),
		DistanceFreeRadiusKm:  decimal.NewFromInt(5),
		PerKmRate:             decimal.NewFromInt(10),
		BaseRate:              decimal.NewFromInt(50),
	}
}

// Zone is an optional override of the default settings. Nil fields fall
// through to Settings. At most one active zone is authoritative.
type Zone struct {
	Name                  string
	BaseRate              decimal.Decimal
	FreeShippingThreshold *decimal.Decimal
	DistanceFreeRadiusKm  *decimal.Decimal
	PerKmRate             *decimal.Decimal
	MaxShippingDistanceKm *decimal.Decimal
	Active                bool
}

// Quote is the itemized result of a shipping calculation. Every resolved
// parameter is carried so the amount can be audited or displayed without
// recomputation.
type Quote struct {
	Amount decimal.Decimal

	BaseRate              decimal.Decimal
	PerKmRate             decimal.Decimal
	FreeShippingThreshold decimal.Decimal
	FreeRadiusKm          decimal.Decimal

	RequestedDistanceKm  decimal.Decimal
	EffectiveDistanceKm  decimal.Decimal
	ChargeableDistanceKm decimal.Decimal
	DistanceCharge       decimal.Decimal

	FreeShipping bool
	Zone         string
}

// ConfigRepository reads the current shipping configuration.
type ConfigRepository interface {
	ReadConfig(ctx context.Context) (Settings, []Zone, error)
}
