package postgres

import (
	"context"
	"fmt"

	"github.com/xenking/kart-fulfillment/internal/domain/inventory"
	"github.com/xenking/kart-fulfillment/internal/domain/product"
)

const (
	// The stock guard lives in the WHERE clause so the check and the write
	// are one statement.
	debitStockSQL = `UPDATE products SET stock = stock - $2, updated_at = now()
		WHERE id = $1 AND stock >= $2`

	creditStockSQL = `UPDATE products SET stock = stock + $2, updated_at = now()
		WHERE id = $1`
)

var _ inventory.Ledger = (*Ledger)(nil)

// Ledger implements inventory.Ledger with conditional UPDATE statements.
type Ledger struct {
	db DBTX
}

// NewLedger returns a Ledger over db.
func NewLedger(db DBTX) *Ledger {
	return &Ledger{db: db}
}

// TryDebit decrements stock by quantity if enough is left. It reports
// false when the guard did not match.
func (l *Ledger) TryDebit(ctx context.Context, productID string, quantity int) (bool, error) {
	tag, err := l.db.Exec(ctx, debitStockSQL, productID, quantity)
	if err != nil {
		return false, fmt.Errorf("debiting %d of %q: %w", quantity, productID, err)
	}
	return tag.RowsAffected() == 1, nil
}

// Credit increments stock by quantity.
func (l *Ledger) Credit(ctx context.Context, productID string, quantity int) error {
	tag, err := l.db.Exec(ctx, creditStockSQL, productID, quantity)
	if err != nil {
		return fmt.Errorf("crediting %d of %q: %w", quantity, productID, err)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}
