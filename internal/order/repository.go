package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Markide1/shopie-app/internal/db"
)

// Repository holds the order SQL. Methods with a WithTx suffix run inside the
// caller's transaction; the rest are plain pool reads.
type Repository struct {
	pool db.Pool
}

func NewRepository(pool db.Pool) *Repository {
	return &Repository{pool: pool}
}

const orderColumns = `id, user_id, status, is_paid, total_amount, address, city, postal_code, country, created_at, updated_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.UserID, &o.Status, &o.IsPaid, &o.TotalAmount,
		&o.Address.Address, &o.Address.City, &o.Address.PostalCode, &o.Address.Country,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// InsertWithTx creates the order row and its item snapshots.
func (r *Repository) InsertWithTx(ctx context.Context, tx pgx.Tx, o *Order) error {
	err := tx.QueryRow(ctx, `
		INSERT INTO orders (id, user_id, status, is_paid, total_amount, address, city, postal_code, country)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`, o.ID, o.UserID, o.Status, o.IsPaid, o.TotalAmount,
		o.Address.Address, o.Address.City, o.Address.PostalCode, o.Address.Country,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for _, it := range o.Items {
		_, err := tx.Exec(ctx, `
			INSERT INTO order_items (id, order_id, product_id, quantity, price)
			VALUES ($1, $2, $3, $4, $5)
		`, uuid.NewString(), o.ID, it.ProductID, it.Quantity, it.Price)
		if err != nil {
			return fmt.Errorf("insert order_item: %w", err)
		}
	}
	return nil
}

// GetForUpdateWithTx locks the order row for the rest of the transaction.
// An empty userID skips the ownership scope (admin paths). Items are not
// loaded; use ItemsWithTx when the transition needs them.
func (r *Repository) GetForUpdateWithTx(ctx context.Context, tx pgx.Tx, orderID, userID string) (*Order, error) {
	if userID == "" {
		return scanOrder(tx.QueryRow(ctx, `
			SELECT `+orderColumns+` FROM orders WHERE id=$1 FOR UPDATE
		`, orderID))
	}
	return scanOrder(tx.QueryRow(ctx, `
		SELECT `+orderColumns+` FROM orders WHERE id=$1 AND user_id=$2 FOR UPDATE
	`, orderID, userID))
}

// ItemsWithTx loads the raw item snapshots (no display joins).
func (r *Repository) ItemsWithTx(ctx context.Context, tx pgx.Tx, orderID string) ([]Item, error) {
	rows, err := tx.Query(ctx, `
		SELECT product_id, quantity, price FROM order_items WHERE order_id=$1
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("select order_items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ProductID, &it.Quantity, &it.Price); err != nil {
			return nil, fmt.Errorf("scan order_item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// SetStateWithTx writes the status/isPaid pair decided by the state machine.
func (r *Repository) SetStateWithTx(ctx context.Context, tx pgx.Tx, orderID string, status Status, isPaid bool) error {
	_, err := tx.Exec(ctx, `
		UPDATE orders SET status=$2, is_paid=$3, updated_at=now() WHERE id=$1
	`, orderID, status, isPaid)
	if err != nil {
		return fmt.Errorf("update order state: %w", err)
	}
	return nil
}

// FindOne returns one order with its display items. An empty userID skips the
// ownership scope.
func (r *Repository) FindOne(ctx context.Context, userID, orderID string) (*Order, error) {
	var (
		o   *Order
		err error
	)
	if userID == "" {
		o, err = scanOrder(r.pool.QueryRow(ctx, `
			SELECT `+orderColumns+` FROM orders WHERE id=$1
		`, orderID))
	} else {
		o, err = scanOrder(r.pool.QueryRow(ctx, `
			SELECT `+orderColumns+` FROM orders WHERE id=$1 AND user_id=$2
		`, orderID, userID))
	}
	if err != nil {
		return nil, err
	}

	o.Items, err = r.loadItems(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	return o, nil
}

// FindAllByUser lists the customer's orders, newest first.
func (r *Repository) FindAllByUser(ctx context.Context, userID string) ([]Order, error) {
	return r.list(ctx, `
		SELECT `+orderColumns+` FROM orders WHERE user_id=$1 ORDER BY created_at DESC
	`, userID)
}

// FindAllAdmin lists every order, newest first.
func (r *Repository) FindAllAdmin(ctx context.Context) ([]Order, error) {
	return r.list(ctx, `
		SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC
	`)
}

func (r *Repository) list(ctx context.Context, sql string, args ...any) ([]Order, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	orders := []Order{}
	for rows.Next() {
		var o Order
		err := rows.Scan(
			&o.ID, &o.UserID, &o.Status, &o.IsPaid, &o.TotalAmount,
			&o.Address.Address, &o.Address.City, &o.Address.PostalCode, &o.Address.Country,
			&o.CreatedAt, &o.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	for i := range orders {
		orders[i].Items, err = r.loadItems(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (r *Repository) loadItems(ctx context.Context, orderID string) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT oi.product_id, oi.quantity, oi.price, p.name,
		       COALESCE((
		           SELECT pi.image_url FROM product_images pi
		           WHERE pi.product_id = p.id AND pi.is_main
		           LIMIT 1
		       ), '')
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = $1
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("select order items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ProductID, &it.Quantity, &it.Price, &it.ProductName, &it.ImageURL); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// IsNoRows reports whether err is the pgx no-rows sentinel.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
