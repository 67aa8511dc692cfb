// Package inventory owns the authoritative stock counter for every product.
// All stock mutation goes through the Ledger; nothing else touches the column.
package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Markide1/shopie-app/internal/fault"
)

// LowStockThreshold is the stock level below which a low-stock alert fires.
const LowStockThreshold = 5

// Level is a product's stock position after a ledger mutation.
type Level struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Stock     int    `json:"stock"`
}

// Ledger performs atomic read-check-write stock mutations. Every method runs
// inside the caller's transaction so that the stock change and the cart/order
// change it belongs to commit or roll back as one unit.
type Ledger struct{}

func NewLedger() *Ledger { return &Ledger{} }

// Reserve checks that the product is active and has at least qty units, then
// decrements. The SELECT ... FOR UPDATE row lock makes two concurrent
// reservations for the last unit serialize; the loser sees the decremented
// counter and fails.
func (Ledger) Reserve(ctx context.Context, tx pgx.Tx, productID string, qty int) (Level, error) {
	var (
		name   string
		stock  int
		active bool
	)
	err := tx.QueryRow(ctx, `
		SELECT name, stock, is_active
		FROM products
		WHERE id=$1
		FOR UPDATE
	`, productID).Scan(&name, &stock, &active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Level{}, fault.NotFound("product not found")
		}
		return Level{}, fmt.Errorf("lock product row: %w", err)
	}
	if !active {
		return Level{}, fault.NotFound("product not found")
	}
	if stock < qty {
		return Level{}, fault.InsufficientStock("insufficient stock")
	}

	_, err = tx.Exec(ctx, `
		UPDATE products
		SET stock = stock - $2, updated_at = now()
		WHERE id=$1
	`, productID, qty)
	if err != nil {
		return Level{}, fmt.Errorf("decrement stock: %w", err)
	}

	return Level{ProductID: productID, Name: name, Stock: stock - qty}, nil
}

// Release returns qty units to the counter. It is unconditional; the caller
// invokes it exactly once per compensating event (cart removal, cancellation).
func (Ledger) Release(ctx context.Context, tx pgx.Tx, productID string, qty int) (Level, error) {
	var lv Level
	err := tx.QueryRow(ctx, `
		UPDATE products
		SET stock = stock + $2, updated_at = now()
		WHERE id=$1
		RETURNING id, name, stock
	`, productID, qty).Scan(&lv.ProductID, &lv.Name, &lv.Stock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Level{}, fault.NotFound("product not found")
		}
		return Level{}, fmt.Errorf("increment stock: %w", err)
	}
	return lv, nil
}

// Adjust applies a signed stock change: delta > 0 behaves like Reserve,
// delta < 0 like Release. Used when a cart reservation's quantity changes.
func (l Ledger) Adjust(ctx context.Context, tx pgx.Tx, productID string, delta int) (Level, error) {
	switch {
	case delta > 0:
		return l.Reserve(ctx, tx, productID, delta)
	case delta < 0:
		return l.Release(ctx, tx, productID, -delta)
	default:
		var lv Level
		err := tx.QueryRow(ctx, `
			SELECT id, name, stock FROM products WHERE id=$1
		`, productID).Scan(&lv.ProductID, &lv.Name, &lv.Stock)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return Level{}, fault.NotFound("product not found")
			}
			return Level{}, fmt.Errorf("read stock: %w", err)
		}
		return lv, nil
	}
}
