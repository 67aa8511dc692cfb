// Package cart keeps cart rows and the inventory ledger mutually consistent.
// Every mutation runs the ledger change and the row change in one
// transaction, so a failure on either side leaves both untouched.
package cart

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Markide1/shopie-app/internal/db"
	"github.com/Markide1/shopie-app/internal/fault"
	"github.com/Markide1/shopie-app/internal/inventory"
)

const uniqueViolation = "23505"

type Service struct {
	pool    db.Pool
	ledger  *inventory.Ledger
	monitor *inventory.Monitor
	logger  *log.Logger
}

func NewService(pool db.Pool, ledger *inventory.Ledger, monitor *inventory.Monitor, logger *log.Logger) *Service {
	return &Service{pool: pool, ledger: ledger, monitor: monitor, logger: logger}
}

// Add reserves qty units of the product and creates the cart row. A product
// may appear at most once per customer; adding it again is a conflict, not a
// merge.
func (s *Service) Add(ctx context.Context, userID, productID string, qty int) (*Item, error) {
	if qty <= 0 {
		return nil, fault.Validation("quantity must be greater than zero")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fault.Internal("failed to add item to cart", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var exists bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM cart_items WHERE user_id=$1 AND product_id=$2)
	`, userID, productID).Scan(&exists)
	if err != nil {
		return nil, fault.Internal("failed to add item to cart", err)
	}
	if exists {
		return nil, fault.Conflict("product already in cart")
	}

	lv, err := s.ledger.Reserve(ctx, tx, productID, qty)
	if err != nil {
		return nil, wrap("failed to add item to cart", err)
	}

	item := &Item{
		ID:        uuid.NewString(),
		UserID:    userID,
		ProductID: productID,
		Quantity:  qty,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO cart_items (id, user_id, product_id, quantity)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, item.ID, item.UserID, item.ProductID, item.Quantity).Scan(&item.CreatedAt)
	if err != nil {
		// Two concurrent adds can both pass the existence check; the unique
		// constraint on (user_id, product_id) decides the race.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, fault.Conflict("product already in cart")
		}
		return nil, fault.Internal("failed to add item to cart", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fault.Internal("failed to add item to cart", err)
	}

	s.monitor.Observe(ctx, lv)
	return item, nil
}

// UpdateQuantity moves the reservation to newQty, adjusting the ledger by the
// difference.
func (s *Service) UpdateQuantity(ctx context.Context, userID, productID string, newQty int) (*Item, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fault.Internal("failed to update cart item", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	item := &Item{UserID: userID, ProductID: productID, Quantity: newQty}
	var oldQty int
	err = tx.QueryRow(ctx, `
		SELECT id, quantity, created_at
		FROM cart_items
		WHERE user_id=$1 AND product_id=$2
		FOR UPDATE
	`, userID, productID).Scan(&item.ID, &oldQty, &item.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fault.NotFound("cart item not found")
		}
		return nil, fault.Internal("failed to update cart item", err)
	}

	if newQty <= 0 {
		return nil, fault.Validation("quantity must be greater than zero")
	}

	delta := newQty - oldQty
	lv, err := s.ledger.Adjust(ctx, tx, productID, delta)
	if err != nil {
		return nil, wrap("failed to update cart item", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE cart_items SET quantity=$2 WHERE id=$1
	`, item.ID, newQty); err != nil {
		return nil, fault.Internal("failed to update cart item", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fault.Internal("failed to update cart item", err)
	}

	if delta > 0 {
		s.monitor.Observe(ctx, lv)
	}
	return item, nil
}

// Remove releases the reservation back to the ledger and deletes the row.
func (s *Service) Remove(ctx context.Context, userID, productID string) (*Confirmation, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fault.Internal("failed to remove item from cart", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var (
		itemID string
		qty    int
	)
	err = tx.QueryRow(ctx, `
		SELECT id, quantity
		FROM cart_items
		WHERE user_id=$1 AND product_id=$2
		FOR UPDATE
	`, userID, productID).Scan(&itemID, &qty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fault.NotFound("cart item not found")
		}
		return nil, fault.Internal("failed to remove item from cart", err)
	}

	lv, err := s.ledger.Release(ctx, tx, productID, qty)
	if err != nil {
		return nil, wrap("failed to remove item from cart", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE id=$1`, itemID); err != nil {
		return nil, fault.Internal("failed to remove item from cart", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fault.Internal("failed to remove item from cart", err)
	}

	return &Confirmation{
		Message: fmt.Sprintf("Product %s removed from cart successfully", lv.Name),
	}, nil
}

// Get returns the customer's cart joined with product display fields. It
// never touches the ledger.
func (s *Service) Get(ctx context.Context, userID string) ([]ItemView, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT ci.id, ci.product_id, ci.quantity, p.name, p.price,
		       COALESCE((
		           SELECT pi.image_url FROM product_images pi
		           WHERE pi.product_id = p.id AND pi.is_main
		           LIMIT 1
		       ), '')
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.user_id = $1
		ORDER BY ci.created_at
	`, userID)
	if err != nil {
		return nil, fault.Internal("failed to load cart", err)
	}
	defer rows.Close()

	items := []ItemView{}
	for rows.Next() {
		var v ItemView
		if err := rows.Scan(&v.ID, &v.ProductID, &v.Quantity, &v.ProductName, &v.Price, &v.ImageURL); err != nil {
			return nil, fault.Internal("failed to load cart", err)
		}
		items = append(items, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fault.Internal("failed to load cart", err)
	}
	return items, nil
}

// wrap keeps domain faults intact and hides everything else behind msg.
func wrap(msg string, err error) error {
	var f *fault.Error
	if errors.As(err, &f) && f.Kind != fault.KindInternal {
		return err
	}
	return fault.Internal(msg, err)
}
