package order

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-checkout/internal/domain/coupon"
	"github.com/xenking/storefront-checkout/internal/domain/product"
	"github.com/xenking/storefront-checkout/internal/domain/shipping"
)

// commitRetries bounds how many times a settlement re-reads and re-commits
// after losing a stock or coupon race.
const commitRetries = 3

var hundred = decimal.NewFromInt(100)

// SettleRequest is one checkout attempt: a proposed cart, a destination, and
// optionally a coupon code and a client-generated idempotency key.
type SettleRequest struct {
	UserID         string
	GuestEmail     string
	Lines          []CartLine
	Address        Address
	DistanceKm     decimal.Decimal
	CouponCode     string
	IdempotencyKey string
}

// Settlement turns a proposed cart into a priced, stock-checked, atomically
// committed order. Prices and stock are re-read from the catalog for every
// attempt; the client is never trusted with either.
type Settlement struct {
	products product.Repository
	shipping shipping.ConfigRepository
	coupons  coupon.Validator
	store    Store
	taxRate  decimal.Decimal // percent applied to the subtotal
	now      func() time.Time
}

// NewSettlement creates a Settlement coordinator with its collaborators.
// taxRate is a percentage applied to the order subtotal.
func NewSettlement(
	products product.Repository,
	shippingCfg shipping.ConfigRepository,
	coupons coupon.Validator,
	store Store,
	taxRate decimal.Decimal,
) *Settlement {
	return &Settlement{
		products: products,
		shipping: shippingCfg,
		coupons:  coupons,
		store:    store,
		taxRate:  taxRate,
		now:      time.Now,
	}
}

// Settle runs the full settlement pipeline and returns the committed order.
// Either every effect commits (stock decrements, coupon usage, order rows) or
// none do. A lost commit race is retried from the re-read step so the
// decision is always made against live stock and coupon state.
func (s *Settlement) Settle(ctx context.Context, req SettleRequest) (*Order, error) {
	if err := validateRequest(&req); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= commitRetries; attempt++ {
		o, err := s.settleOnce(ctx, &req)
		if err == nil {
			return o, nil
		}
		if errors.Is(err, ErrCommitConflict) {
			lastErr = err
			continue
		}
		if errors.Is(err, ErrAlreadySettled) {
			return s.store.FindByIdempotencyKey(ctx, req.IdempotencyKey)
		}
		return nil, err
	}
	return nil, lastErr
}

// settleOnce performs one pass: re-read, price, validate coupon, quote
// shipping, and commit.
func (s *Settlement) settleOnce(ctx context.Context, req *SettleRequest) (*Order, error) {
	snapshots, err := s.products.GetForOrder(ctx, productIDs(req.Lines))
	if err != nil {
		return nil, errors.Wrap(err, "read products")
	}

	subtotal := decimal.Zero
	items := make([]Item, len(req.Lines))
	decrements := make(map[string]int, len(req.Lines))

	for i, line := range req.Lines {
		snap, ok := snapshots[line.ProductID]
		if !ok || !snap.Active {
			return nil, &ProductUnavailableError{ProductID: line.ProductID}
		}

		lineTotal := snap.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
		items[i] = Item{
			ProductID:  snap.ID,
			Name:       snap.Name,
			SKU:        snap.SKU,
			Quantity:   line.Quantity,
			UnitPrice:  snap.Price,
			TotalPrice: lineTotal,
		}
		decrements[line.ProductID] += line.Quantity
		subtotal = subtotal.Add(lineTotal)
	}

	// Stock is checked against the summed quantity per product, so a cart
	// repeating a product cannot slip past a per-line check.
	var shortages []StockShortage
	for _, id := range productIDs(req.Lines) {
		if want := decrements[id]; snapshots[id].Stock < want {
			shortages = append(shortages, StockShortage{
				ProductID: id,
				Requested: want,
				Available: snapshots[id].Stock,
			})
		}
	}
	if len(shortages) > 0 {
		return nil, &InsufficientStockError{Shortages: shortages}
	}

	discount := decimal.Zero
	couponCode := ""
	if req.CouponCode != "" {
		v, err := s.coupons.Validate(ctx, req.CouponCode, subtotal)
		if err != nil {
			return nil, errors.Wrap(err, "validate coupon")
		}
		if !v.Valid {
			return nil, &CouponInvalidError{Code: req.CouponCode, Reason: v.Reason}
		}
		discount = v.Discount
		couponCode = strings.ToUpper(strings.TrimSpace(req.CouponCode))
	}

	settings, zones, err := s.shipping.ReadConfig(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "read shipping config")
	}
	quote, err := shipping.Compute(subtotal, req.DistanceKm, settings, zones)
	if err != nil {
		return nil, err
	}

	tax := subtotal.Mul(s.taxRate).Div(hundred).Round(2)

	total := subtotal.Add(tax).Add(quote.Amount).Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	total = total.Round(2)

	now := s.now().UTC()
	o := &Order{
		ID:             uuid.New().String(),
		Number:         newOrderNumber(now),
		UserID:         req.UserID,
		GuestEmail:     req.GuestEmail,
		Status:         StatusPending,
		PaymentStatus:  PaymentUnpaid,
		Subtotal:       subtotal.Round(2),
		Tax:            tax,
		Shipping:       quote.Amount,
		Discount:       discount,
		Total:          total,
		CouponCode:     couponCode,
		Address:        req.Address,
		Items:          items,
		IdempotencyKey: req.IdempotencyKey,
		CreatedAt:      now,
	}

	if err := s.store.CommitOrder(ctx, o, decrements, couponCode); err != nil {
		if errors.Is(err, ErrCommitConflict) || errors.Is(err, ErrAlreadySettled) {
			return nil, err
		}
		// The commit outcome may be indeterminate. With an idempotency key
		// we can reconcile here; otherwise the caller must before retrying.
		if req.IdempotencyKey != "" {
			if existing, ferr := s.store.FindByIdempotencyKey(ctx, req.IdempotencyKey); ferr == nil && existing != nil {
				return existing, nil
			}
		}
		return nil, &PersistenceError{Err: err}
	}

	return o, nil
}

func validateRequest(req *SettleRequest) error {
	hasUser := req.UserID != ""
	hasGuest := req.GuestEmail != ""
	if hasUser == hasGuest {
		return ErrMissingCustomer
	}
	if len(req.Lines) == 0 {
		return ErrEmptyCart
	}
	for _, line := range req.Lines {
		if line.Quantity <= 0 {
			return &InvalidQuantityError{ProductID: line.ProductID}
		}
	}
	if req.DistanceKm.IsNegative() {
		return shipping.ErrNegativeDistance
	}
	a := req.Address
	if a.Name == "" || a.Line1 == "" || a.City == "" || a.PostalCode == "" {
		return ErrMissingAddress
	}
	return nil
}

func productIDs(lines []CartLine) []string {
	seen := make(map[string]struct{}, len(lines))
	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		if _, ok := seen[line.ProductID]; ok {
			continue
		}
		seen[line.ProductID] = struct{}{}
		ids = append(ids, line.ProductID)
	}
	return ids
}

// newOrderNumber builds a human-readable unique order number such as
// ORD-20250615-3F2A9C1B. Uniqueness is enforced by the store; a collision
// surfaces as a commit conflict and the settlement retries with a new number.
func newOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(uuid.NewString()[:8])
	return "ORD-" + now.Format("20060102") + "-" + suffix
}
