package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountPercentage applies a percentage of the order subtotal,
	// optionally capped by MaxDiscount.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed applies a fixed amount, capped at the order subtotal.
	DiscountFixed DiscountType = "fixed"
)

// ErrNotFound is returned by a Repository when no coupon exists for a code.
var ErrNotFound = errors.New("coupon not found")

// Coupon holds a promotional code and its redemption rules. Zero values mean
// "no constraint": a zero MinOrderAmount imposes no minimum, a zero
// MaxDiscount no cap, a zero UsageLimit unlimited redemptions.
type Coupon struct {
	Code           string
	DiscountType   DiscountType
	Value          decimal.Decimal
	MinOrderAmount decimal.Decimal
	MaxDiscount    decimal.Decimal
	UsageLimit     int
	UsedCount      int
	StartsAt       *time.Time
	ExpiresAt      *time.Time
	Active         bool
}

// Redeemable reports whether the coupon can currently be applied: active,
// inside its validity window, and under its usage limit.
func (c *Coupon) Redeemable(now time.Time) bool {
	if !c.Active {
		return false
	}
	if c.StartsAt != nil && now.Before(*c.StartsAt) {
		return false
	}
	if c.ExpiresAt != nil && !now.Before(*c.ExpiresAt) {
		return false
	}
	if c.UsageLimit > 0 && c.UsedCount >= c.UsageLimit {
		return false
	}
	return true
}

// Validation is the outcome of validating a code against an order subtotal.
// Business-rule rejections set Valid=false with a human-readable Reason;
// they are expected conditions, not errors.
type Validation struct {
	Valid    bool
	Discount decimal.Decimal
	Reason   string
}

// Repository provides read-only coupon lookups. Lookups are case-insensitive
// on the code. Usage counters are mutated only inside the order commit
// transaction, never here.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Coupon, error)
}
