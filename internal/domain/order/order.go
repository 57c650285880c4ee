package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the fulfillment state of an order. Settlement only ever creates
// orders in StatusPending; later transitions belong to the fulfillment
// collaborator.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// PaymentStatus tracks payment independently of fulfillment. Settlement
// creates orders unpaid; the payment gateway flips this afterwards.
type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "unpaid"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

// CartLine is a single requested product and quantity from the cart.
type CartLine struct {
	ProductID string
	Quantity  int
}

// Address is the shipping destination for an order.
type Address struct {
	Name       string `json:"name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

// Item is an order line item. Its unit price is the catalog price captured at
// settlement time and is never recomputed afterwards.
type Item struct {
	ProductID  string
	Name       string
	SKU        string
	Quantity   int
	UnitPrice  decimal.Decimal
	TotalPrice decimal.Decimal
}

// Order is a settled order and its line items. An order and its items share a
// single lifetime: created together atomically, never partially.
//
// Invariant: Total = Subtotal + Tax + Shipping - Discount, and Total >= 0.
type Order struct {
	ID             string
	Number         string
	UserID         string
	GuestEmail     string
	Status         Status
	PaymentStatus  PaymentStatus
	Subtotal       decimal.Decimal
	Tax            decimal.Decimal
	Shipping       decimal.Decimal
	Discount       decimal.Decimal
	Total          decimal.Decimal
	CouponCode     string
	Address        Address
	Items          []Item
	IdempotencyKey string
	CreatedAt      time.Time
}

// Store is the atomic write boundary for settlement. CommitOrder persists the
// order and its items, decrements stock for every line, and increments the
// coupon usage counter, all in one transaction. It fails as a whole: a
// decrement that would drive stock negative or push a coupon over its usage
// limit returns ErrCommitConflict and leaves nothing written.
type Store interface {
	CommitOrder(ctx context.Context, o *Order, decrements map[string]int, couponCode string) error
	FindByIdempotencyKey(ctx context.Context, key string) (*Order, error)
}
