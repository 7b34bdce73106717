// Package inventory manages per-product stock and sold counters. All
// mutations run inside the caller's transaction so a multi-item order is
// all-or-nothing.
package inventory

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/matemarket/matemarket/internal/domain"
	"github.com/matemarket/matemarket/internal/pricing"
)

type Ledger struct{}

func NewLedger() *Ledger {
	return &Ledger{}
}

// CheckAndReserve atomically decrements stock and increments sold for a
// product, returning the effective unit price locked in at reservation
// time. The stock guard lives in the UPDATE itself: two concurrent orders
// cannot both pass a check against stale stock, the row lock serializes
// them and the loser sees the decremented value.
func (l *Ledger) CheckAndReserve(ctx context.Context, tx *sql.Tx, productID string, quantity int) (decimal.Decimal, error) {
	if quantity < 1 {
		return decimal.Zero, domain.ErrInvalidQuantity
	}

	var price, discount decimal.Decimal
	err := tx.QueryRowContext(ctx, `
		UPDATE products
		SET stock = stock - $2, sold = sold + $2, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL AND stock >= $2
		RETURNING price, discount
	`, productID, quantity).Scan(&price, &discount)
	if err == nil {
		return pricing.EffectivePrice(price, discount), nil
	}
	if err != sql.ErrNoRows {
		return decimal.Zero, fmt.Errorf("reserve stock for product %s: %w", productID, err)
	}

	// The guarded update matched nothing: either the product does not
	// exist or the stock is short. Distinguish for the error payload.
	var available int
	err = tx.QueryRowContext(ctx, `
		SELECT stock FROM products WHERE id = $1 AND deleted_at IS NULL
	`, productID).Scan(&available)
	if err == sql.ErrNoRows {
		return decimal.Zero, domain.ErrProductNotFound
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("read stock for product %s: %w", productID, err)
	}

	return decimal.Zero, &domain.InsufficientStockError{
		ProductID: productID,
		Requested: quantity,
		Available: available,
	}
}
