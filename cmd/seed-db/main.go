// Command seed-db loads a development dataset into PostgreSQL: catalog
// products, store-wide shipping settings with a couple of zones, and a small
// set of coupons. Every write is an upsert so the command is safe to re-run.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-checkout/internal/repository"
)

type productJSON struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	SKU   string          `json:"sku"`
	Price decimal.Decimal `json:"price"`
	Stock int             `json:"stock"`
}

func main() {
	var (
		databaseURL  string
		productsFile string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, pool, productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}

	if err := seedShipping(ctx, pool); err != nil {
		return errors.Wrap(err, "seed shipping config")
	}

	if err := seedCoupons(ctx, pool); err != nil {
		return errors.Wrap(err, "seed coupons")
	}

	return nil
}

const upsertProductSQL = `
INSERT INTO products (id, name, sku, price, stock_quantity, is_active)
VALUES ($1, $2, $3, $4, $5, TRUE)
ON CONFLICT (id) DO UPDATE SET
    name           = EXCLUDED.name,
    sku            = EXCLUDED.sku,
    price          = EXCLUDED.price,
    stock_quantity = EXCLUDED.stock_quantity,
    is_active      = TRUE,
    updated_at     = now()
`

func seedProducts(ctx context.Context, pool *pgxpool.Pool, productsFile string) error {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	for _, p := range products {
		if _, err := pool.Exec(ctx, upsertProductSQL,
			p.ID, p.Name, p.SKU, p.Price, p.Stock,
		); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}

		slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
	}

	return nil
}

const upsertSettingsSQL = `
INSERT INTO shipping_settings (id, free_shipping_threshold, distance_free_radius_km, per_km_rate, base_rate)
VALUES (1, $1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE SET
    free_shipping_threshold = EXCLUDED.free_shipping_threshold,
    distance_free_radius_km = EXCLUDED.distance_free_radius_km,
    per_km_rate             = EXCLUDED.per_km_rate,
    base_rate               = EXCLUDED.base_rate,
    updated_at              = now()
`

const upsertZoneSQL = `
INSERT INTO shipping_zones (name, base_rate, free_shipping_threshold, distance_free_radius_km, per_km_rate, max_shipping_distance_km, is_active)
SELECT $1, $2, $3, $4, $5, $6, $7
WHERE NOT EXISTS (SELECT 1 FROM shipping_zones WHERE name = $1)
`

func seedShipping(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("seeding shipping settings")

	if _, err := pool.Exec(ctx, upsertSettingsSQL,
		decimal.NewFromInt(1000),
		decimal.NewFromInt(5),
		decimal.NewFromInt(10),
		decimal.NewFromInt(50),
	); err != nil {
		return errors.Wrap(err, "upsert shipping settings")
	}

	type zone struct {
		name      string
		baseRate  int64
		maxDistKm int64
	}
	zones := []zone{
		{name: "metro", baseRate: 40, maxDistKm: 30},
		{name: "outstation", baseRate: 90, maxDistKm: 150},
	}

	for _, z := range zones {
		if _, err := pool.Exec(ctx, upsertZoneSQL,
			z.name, decimal.NewFromInt(z.baseRate),
			nil, nil, nil, decimal.NewFromInt(z.maxDistKm), false,
		); err != nil {
			return errors.Wrapf(err, "insert zone %s", z.name)
		}

		slog.Info("seeded shipping zone", slog.String("name", z.name))
	}

	return nil
}

const upsertCouponSQL = `
INSERT INTO coupons (code, discount_type, discount_value, min_order_amount, max_discount, usage_limit, starts_at, expires_at, is_active)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE)
ON CONFLICT (code) DO UPDATE SET
    discount_type    = EXCLUDED.discount_type,
    discount_value   = EXCLUDED.discount_value,
    min_order_amount = EXCLUDED.min_order_amount,
    max_discount     = EXCLUDED.max_discount,
    usage_limit      = EXCLUDED.usage_limit,
    starts_at        = EXCLUDED.starts_at,
    expires_at       = EXCLUDED.expires_at,
    is_active        = TRUE
`

func seedCoupons(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("seeding coupons")

	yearOut := time.Now().UTC().AddDate(1, 0, 0)

	type coupon struct {
		code       string
		kind       string
		value      int64
		minOrder   int64
		maxDisc    int64
		usageLimit int
		expiresAt  *time.Time
	}
	coupons := []coupon{
		{code: "SAVE10", kind: "percentage", value: 10, minOrder: 500, maxDisc: 500, expiresAt: &yearOut},
		{code: "FLAT200", kind: "fixed", value: 200, minOrder: 1500, expiresAt: &yearOut},
		{code: "WELCOME", kind: "percentage", value: 15, maxDisc: 300, usageLimit: 1000, expiresAt: &yearOut},
	}

	for _, c := range coupons {
		if _, err := pool.Exec(ctx, upsertCouponSQL,
			c.code, c.kind,
			decimal.NewFromInt(c.value),
			decimal.NewFromInt(c.minOrder),
			decimal.NewFromInt(c.maxDisc),
			c.usageLimit,
			nil, c.expiresAt,
		); err != nil {
			return errors.Wrapf(err, "upsert coupon %s", c.code)
		}

		slog.Info("upserted coupon", slog.String("code", c.code))
	}

	return nil
}
