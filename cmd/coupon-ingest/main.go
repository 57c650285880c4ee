// Command coupon-ingest loads promo codes from gzip-compressed campaign
// feeds into the coupons table. Marketing partners export overlapping feeds;
// a code is accepted only when it appears in at least two of them, which
// filters out the noise each individual feed carries. Feeds run to hundreds
// of millions of lines, so membership is tracked with bloom filters instead
// of holding every code in memory.
package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"math/bits"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront-checkout/internal/repository"
)

const (
	bloomCapacity = 120_000_000
	bloomFPR      = 0.001
	progressEvery = 10_000_000
	minCodeLen    = 4
	maxCodeLen    = 24
	writeBatch    = 500
)

// campaignRule is the discount applied to every ingested code.
type campaignRule struct {
	discountType string
	value        decimal.Decimal
	minOrder     decimal.Decimal
	maxDiscount  decimal.Decimal
	usageLimit   int
	expiresAt    *time.Time
}

func main() {
	var (
		dataDir      string
		databaseURL  string
		discountType string
		value        string
		minOrder     string
		maxDiscount  string
		usageLimit   int
		expires      string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing feed *.gz files")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&discountType, "discount-type", "percentage", "discount type: percentage or fixed")
	flag.StringVar(&value, "value", "10", "discount value")
	flag.StringVar(&minOrder, "min-order", "0", "minimum order amount")
	flag.StringVar(&maxDiscount, "max-discount", "0", "discount cap, 0 for none")
	flag.IntVar(&usageLimit, "usage-limit", 1, "redemptions per code, 0 for unlimited")
	flag.StringVar(&expires, "expires", "", "expiry date (RFC 3339), empty for no expiry")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	rule, err := parseRule(discountType, value, minOrder, maxDiscount, usageLimit, expires)
	if err != nil {
		slog.Error("invalid campaign rule", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, databaseURL, rule); err != nil {
		slog.Error("coupon ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("coupon ingest completed successfully")
}

func parseRule(discountType, value, minOrder, maxDiscount string, usageLimit int, expires string) (campaignRule, error) {
	if discountType != "percentage" && discountType != "fixed" {
		return campaignRule{}, errors.Errorf("unknown discount type %q", discountType)
	}

	rule := campaignRule{discountType: discountType, usageLimit: usageLimit}

	var err error
	if rule.value, err = decimal.NewFromString(value); err != nil {
		return campaignRule{}, errors.Wrap(err, "parse value")
	}
	if rule.minOrder, err = decimal.NewFromString(minOrder); err != nil {
		return campaignRule{}, errors.Wrap(err, "parse min order")
	}
	if rule.maxDiscount, err = decimal.NewFromString(maxDiscount); err != nil {
		return campaignRule{}, errors.Wrap(err, "parse max discount")
	}
	if expires != "" {
		t, err := time.Parse(time.RFC3339, expires)
		if err != nil {
			return campaignRule{}, errors.Wrap(err, "parse expiry")
		}
		rule.expiresAt = &t
	}

	return rule, nil
}

func run(ctx context.Context, dataDir, databaseURL string, rule campaignRule) error {
	files, err := filepath.Glob(filepath.Join(dataDir, "*.gz"))
	if err != nil {
		return errors.Wrap(err, "list feed files")
	}
	if len(files) < 2 {
		return errors.Errorf("need at least 2 feed files in %s, found %d", dataDir, len(files))
	}
	if len(files) > bits.UintSize {
		return errors.Errorf("too many feed files: %d", len(files))
	}

	// Pass 1: one bloom filter per feed, built concurrently.
	slog.Info("pass 1: building bloom filters", slog.Int("files", len(files)))

	filters, err := buildBloomFilters(ctx, files)
	if err != nil {
		return errors.Wrap(err, "build bloom filters")
	}

	// Pass 2: keep codes seen in 2+ feeds.
	slog.Info("pass 2: confirming codes across feeds")

	confirmed, err := findConfirmedCodes(ctx, files, filters)
	if err != nil {
		return errors.Wrap(err, "confirm codes")
	}

	slog.Info("confirmed codes", slog.Int("count", len(confirmed)))

	if len(confirmed) == 0 {
		slog.Info("no codes to insert")
		return nil
	}

	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := writeCoupons(ctx, pool, confirmed, rule); err != nil {
		return errors.Wrap(err, "write coupons to database")
	}

	return nil
}

func buildBloomFilters(ctx context.Context, files []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(buildFilterForFile(ctx, i, f, filters))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return filters, nil
}

func buildFilterForFile(ctx context.Context, idx int, path string, filters []*bloom.BloomFilter) func() error {
	return func() error {
		filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
		var count uint64

		if err := streamGzFile(ctx, path, func(code string) {
			filter.AddString(code)
			count++
			if count%progressEvery == 0 {
				slog.Info("pass 1 progress",
					slog.Int("file", idx+1),
					slog.Uint64("codes", count),
				)
			}
		}); err != nil {
			return errors.Wrapf(err, "build filter for file %d", idx+1)
		}

		slog.Info("pass 1 complete",
			slog.Int("file", idx+1),
			slog.Uint64("total_codes", count),
		)

		filters[idx] = filter
		return nil
	}
}

// findConfirmedCodes re-streams each feed and tests codes against the OTHER
// feeds' bloom filters. A code is confirmed when 2+ feeds carry it.
func findConfirmedCodes(ctx context.Context, files []string, filters []*bloom.BloomFilter) ([]string, error) {
	candidates := make([]map[string]uint, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(findCandidatesInFile(ctx, i, f, filters, candidates))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Merge per-feed bitmasks, then keep codes with 2+ bits set.
	merged := make(map[string]uint)
	for _, m := range candidates {
		for code, mask := range m {
			merged[code] |= mask
		}
	}

	var confirmed []string
	for code, mask := range merged {
		if bits.OnesCount(mask) >= 2 {
			confirmed = append(confirmed, code)
		}
	}

	return confirmed, nil
}

func findCandidatesInFile(
	ctx context.Context,
	idx int,
	path string,
	filters []*bloom.BloomFilter,
	candidates []map[string]uint,
) func() error {
	return func() error {
		found := make(map[string]uint)
		fileBit := uint(1) << uint(idx)
		var count uint64

		if err := streamGzFile(ctx, path, func(code string) {
			count++
			if count%progressEvery == 0 {
				slog.Info("pass 2 progress",
					slog.Int("file", idx+1),
					slog.Uint64("codes", count),
				)
			}

			for j, f := range filters {
				if j == idx {
					continue
				}
				if f.TestString(code) {
					found[code] |= fileBit
					break
				}
			}
		}); err != nil {
			return errors.Wrapf(err, "scan file %d for candidates", idx+1)
		}

		slog.Info("pass 2 complete",
			slog.Int("file", idx+1),
			slog.Uint64("total_codes", count),
			slog.Int("candidates", len(found)),
		)

		candidates[idx] = found
		return nil
	}
}

// streamGzFile opens a gzip-compressed feed and calls fn for each
// normalized code line. Codes are uppercased; malformed lines are skipped.
func streamGzFile(ctx context.Context, path string, fn func(code string)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		code := strings.ToUpper(strings.TrimSpace(scanner.Text()))
		if len(code) < minCodeLen || len(code) > maxCodeLen {
			continue
		}
		fn(code)
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	return nil
}

const ingestCouponSQL = `
INSERT INTO coupons (code, discount_type, discount_value, min_order_amount, max_discount, usage_limit, expires_at, is_active)
VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE)
ON CONFLICT (code) DO UPDATE SET
    discount_type    = EXCLUDED.discount_type,
    discount_value   = EXCLUDED.discount_value,
    min_order_amount = EXCLUDED.min_order_amount,
    max_discount     = EXCLUDED.max_discount,
    usage_limit      = EXCLUDED.usage_limit,
    expires_at       = EXCLUDED.expires_at,
    is_active        = TRUE
`

// writeCoupons upserts confirmed codes in batches.
func writeCoupons(ctx context.Context, pool *pgxpool.Pool, codes []string, rule campaignRule) error {
	slog.Info("writing coupons to database", slog.Int("count", len(codes)))

	for start := 0; start < len(codes); start += writeBatch {
		end := min(start+writeBatch, len(codes))

		batch := &pgx.Batch{}
		for _, code := range codes[start:end] {
			batch.Queue(ingestCouponSQL,
				code, rule.discountType, rule.value,
				rule.minOrder, rule.maxDiscount, rule.usageLimit, rule.expiresAt,
			)
		}

		if err := pool.SendBatch(ctx, batch).Close(); err != nil {
			return errors.Wrapf(err, "upsert batch at offset %d", start)
		}

		slog.Info("write progress", slog.Int("written", end), slog.Int("total", len(codes)))
	}

	return nil
}
