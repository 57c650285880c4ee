package coupon

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Validator determines whether a coupon code applies to an order subtotal and
// computes the resulting discount. Implementations never mutate coupon state.
type Validator interface {
	Validate(ctx context.Context, code string, subtotal decimal.Decimal) (*Validation, error)
}

// RepoValidator implements Validator by looking up coupons from a Repository.
type RepoValidator struct {
	repo Repository
	now  func() time.Time
}

// NewRepoValidator creates a RepoValidator backed by the given Repository.
func NewRepoValidator(repo Repository) *RepoValidator {
	return &RepoValidator{repo: repo, now: time.Now}
}

// Validate checks the code against live coupon state and, when the coupon is
// redeemable and the subtotal meets its minimum, computes the discount.
// Business-rule rejections come back as Validation{Valid: false}; only
// infrastructure failures return an error.
func (v *RepoValidator) Validate(ctx context.Context, code string, subtotal decimal.Decimal) (*Validation, error) {
	code = strings.ToUpper(strings.TrimSpace(code))

	c, err := v.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return &Validation{Reason: "coupon code not found"}, nil
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}

	now := v.now()

	switch {
	case !c.Active:
		return &Validation{Reason: "coupon is no longer active"}, nil
	case c.StartsAt != nil && now.Before(*c.StartsAt):
		return &Validation{Reason: "coupon is not yet valid"}, nil
	case c.ExpiresAt != nil && !now.Before(*c.ExpiresAt):
		return &Validation{Reason: "coupon has expired"}, nil
	case c.UsageLimit > 0 && c.UsedCount >= c.UsageLimit:
		return &Validation{Reason: "coupon usage limit reached"}, nil
	}

	if c.MinOrderAmount.IsPositive() && subtotal.LessThan(c.MinOrderAmount) {
		return &Validation{
			Reason: fmt.Sprintf("order subtotal %s is below the coupon minimum of %s",
				subtotal.StringFixed(2), c.MinOrderAmount.StringFixed(2)),
		}, nil
	}

	amount, err := discountFor(c, subtotal)
	if err != nil {
		return nil, err
	}

	return &Validation{Valid: true, Discount: amount}, nil
}

// discountFor computes the discount amount for a redeemable coupon. Rounding
// to two places happens exactly once, after all caps are applied.
func discountFor(c *Coupon, subtotal decimal.Decimal) (decimal.Decimal, error) {
	var amount decimal.Decimal
	switch c.DiscountType {
	case DiscountPercentage:
		amount = subtotal.Mul(c.Value).Div(hundred)
		if c.MaxDiscount.IsPositive() {
			amount = decimal.Min(amount, c.MaxDiscount)
		}
	case DiscountFixed:
		amount = decimal.Min(c.Value, subtotal)
	default:
		return decimal.Zero, errors.Errorf("unsupported discount type: %q", c.DiscountType)
	}

	if amount.IsNegative() {
		amount = decimal.Zero
	}
	return amount.Round(2), nil
}
