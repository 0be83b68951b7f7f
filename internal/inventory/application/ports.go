package application

import (
	"context"

	"github.com/dmehra2102/storefront-fulfillment/internal/inventory/domain"
)

// StockStore is the persistence behind the ledger. DecrementIfAvailable must
// be a single conditional write ("take qty only if stock >= qty"); a
// read-compare-write sequence is not an acceptable implementation.
type StockStore interface {
	DecrementIfAvailable(ctx context.Context, productID string, qty int) (domain.Product, error)
	Increment(ctx context.Context, productID string, qty int) error
	Get(ctx context.Context, productID string) (domain.Product, error)
}
