package product

import (
	"context"

	"github.com/shopspring/decimal"
)

// Snapshot is the authoritative view of a product at settlement time: the
// catalog price and available stock as the store currently knows them.
// Client-supplied prices are never trusted; settlement re-reads this.
type Snapshot struct {
	ID     string
	Name   string
	SKU    string
	Price  decimal.Decimal
	Stock  int
	Active bool
}

// Repository provides read access to the product catalog.
type Repository interface {
	// GetForOrder returns snapshots for the given product IDs, keyed by ID.
	// IDs with no matching product are simply absent from the result.
	GetForOrder(ctx context.Context, ids []string) (map[string]Snapshot, error)
}
