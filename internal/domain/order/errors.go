package order

import (
	"fmt"
	"strings"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a lookup matches no committed order.
var ErrNotFound = errors.New("order not found")

// Sentinel errors for settlement input validation and commit races.
var (
	ErrEmptyCart       = errors.New("cart must contain at least one item")
	ErrMissingCustomer = errors.New("exactly one of user id or guest email is required")
	ErrMissingAddress  = errors.New("shipping address requires a name, line1, city and postal code")

	// ErrCommitConflict means the atomic commit lost a race on a stock or
	// coupon counter. The settlement is safe to retry from the re-read step.
	ErrCommitConflict = errors.New("settlement commit conflict")

	// ErrAlreadySettled means the store already holds an order for this
	// idempotency key. The caller should return the original order.
	ErrAlreadySettled = errors.New("settlement already committed for idempotency key")
)

// InvalidQuantityError indicates a cart line with a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

// ProductUnavailableError indicates a cart line referencing a product that is
// unknown or no longer active.
type ProductUnavailableError struct {
	ProductID string
}

func (e *ProductUnavailableError) Error() string {
	return fmt.Sprintf("product %s is not available", e.ProductID)
}

// StockShortage names one cart line whose requested quantity exceeds stock.
type StockShortage struct {
	ProductID string
	Requested int
	Available int
}

// InsufficientStockError aborts the whole settlement when any line cannot be
// fulfilled; partial fulfillment is never attempted.
type InsufficientStockError struct {
	Shortages []StockShortage
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, len(e.Shortages))
	for i, s := range e.Shortages {
		parts[i] = fmt.Sprintf("%s (requested %d, available %d)", s.ProductID, s.Requested, s.Available)
	}
	return "insufficient stock: " + strings.Join(parts, ", ")
}

// CouponInvalidError carries the validator's rejection reason. The caller may
// retry without the coupon; settlement never drops it silently.
type CouponInvalidError struct {
	Code   string
	Reason string
}

func (e *CouponInvalidError) Error() string {
	return fmt.Sprintf("coupon %s rejected: %s", e.Code, e.Reason)
}

// PersistenceError wraps a store failure whose outcome may be indeterminate.
// When the settlement carried an idempotency key the coordinator has already
// reconciled against the store and found no committed order; without a key
// the caller must reconcile before retrying to avoid a duplicate order.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return "settlement persistence failure: " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
