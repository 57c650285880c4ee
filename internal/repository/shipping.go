package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-checkout/internal/domain/shipping"
)

const (
	getShippingSettingsSQL = `SELECT free_shipping_threshold, distance_free_radius_km, per_km_rate, base_rate
		FROM shipping_settings WHERE id = 1`

	listActiveZonesSQL = `SELECT name, base_rate, free_shipping_threshold, distance_free_radius_km,
		per_km_rate, max_shipping_distance_km, is_active
		FROM shipping_zones WHERE is_active ORDER BY id`
)

var _ shipping.ConfigRepository = (*ShippingConfigRepository)(nil)

// ShippingConfigRepository reads shipping settings and zones from PostgreSQL.
type ShippingConfigRepository struct {
	pool *pgxpool.Pool
}

// NewShippingConfigRepository returns a ShippingConfigRepository using the given pool.
func NewShippingConfigRepository(pool *pgxpool.Pool) *ShippingConfigRepository {
	return &ShippingConfigRepository{pool: pool}
}

// ReadConfig returns the current settings and all active zones. When the store
// has no settings row it falls back to shipping.DefaultSettings and logs that
// it did; a missing row is a configuration gap, not a failure.
func (r *ShippingConfigRepository) ReadConfig(ctx context.Context) (shipping.Settings, []shipping.Zone, error) {
	var settings shipping.Settings
	err := r.pool.QueryRow(ctx, getShippingSettingsSQL).Scan(
		&settings.FreeShippingThreshold,
		&settings.DistanceFreeRadiusKm,
		&settings.PerKmRate,
		&settings.BaseRate,
	)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		settings = shipping.DefaultSettings()
		zctx.From(ctx).Info("No shipping settings configured, using defaults")
	case err != nil:
		return shipping.Settings{}, nil, fmt.Errorf("reading shipping settings: %w", err)
	}

	rows, err := r.pool.Query(ctx, listActiveZonesSQL)
	if err != nil {
		return shipping.Settings{}, nil, fmt.Errorf("listing shipping zones: %w", err)
	}
	zones, err := pgx.CollectRows(rows, scanZone)
	if err != nil {
		return shipping.Settings{}, nil, fmt.Errorf("listing shipping zones: %w", err)
	}

	return settings, zones, nil
}

func scanZone(row pgx.CollectableRow) (shipping.Zone, error) {
	var (
		zone        shipping.Zone
		threshold   decimal.NullDecimal
		freeRadius  decimal.NullDecimal
		perKmRate   decimal.NullDecimal
		maxDistance decimal.NullDecimal
	)
	err := row.Scan(
		&zone.Name, &zone.BaseRate, &threshold, &freeRadius,
		&perKmRate, &maxDistance, &zone.Active,
	)
	zone.FreeShippingThreshold = nullable(threshold)
	zone.DistanceFreeRadiusKm = nullable(freeRadius)
	zone.PerKmRate = nullable(perKmRate)
	zone.MaxShippingDistanceKm = nullable(maxDistance)
	return zone, err
}

func nullable(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	return &d.Decimal
}
