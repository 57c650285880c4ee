package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront-checkout/internal/domain/coupon"
)

const getCouponByCodeSQL = `SELECT code, discount_type, discount_value, min_order_amount,
	max_discount, usage_limit, used_count, starts_at, expires_at, is_active
	FROM coupons WHERE UPPER(code) = UPPER($1)`

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
// It only reads; usage counters are incremented inside the order commit.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up a coupon by its code, case-insensitively. Inactive
// coupons are returned too so the validator can report a precise reason.
// Returns coupon.ErrNotFound when no coupon exists for the code.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, getCouponByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	return &c, nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c            coupon.Coupon
		discountType string
		usageLimit   int32
		usedCount    int32
		startsAt     *time.Time
		expiresAt    *time.Time
	)
	err := row.Scan(
		&c.Code, &discountType, &c.Value, &c.MinOrderAmount,
		&c.MaxDiscount, &usageLimit, &usedCount, &startsAt, &expiresAt, &c.Active,
	)
	c.DiscountType = coupon.DiscountType(discountType)
	c.UsageLimit = int(usageLimit)
	c.UsedCount = int(usedCount)
	c.StartsAt = startsAt
	c.ExpiresAt = expiresAt
	return c, err
}
