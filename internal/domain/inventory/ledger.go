// Package inventory defines the stock ledger primitives the order
// coordinator relies on.
package inventory

import "context"

// Ledger owns per-product stock counts.
//
// TryDebit must be a single conditional write: decrement stock by quantity
// only if the current stock is at least quantity, and report whether a row
// matched. Concurrent debits against the same product can therefore never
// both succeed when only one of them is covered by stock. Implementations
// must not read the stock and then write it back.
//
// Credit is an unconditional increment.
type Ledger interface {
	TryDebit(ctx context.Context, productID string, quantity int) (bool, error)
	Credit(ctx context.Context, productID string, quantity int) error
}
