// Package order converts cart reservations into orders and drives each order
// through its status state machine. Transitions that give stock back run the
// compensating ledger release inside the same transaction as the status
// write.
package order

import (
	"context"
	"errors"
	"log"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/Markide1/shopie-app/internal/db"
	"github.com/Markide1/shopie-app/internal/fault"
	"github.com/Markide1/shopie-app/internal/identity"
	"github.com/Markide1/shopie-app/internal/inventory"
)

// Notifier is the slice of the notification dispatcher the lifecycle needs.
// Calls are fire-and-forget: failures are logged, never propagated.
type Notifier interface {
	NotifyOrderConfirmed(ctx context.Context, o *Order) error
	NotifyOrderShipped(ctx context.Context, o *Order) error
	NotifyOrderCancelled(ctx context.Context, o *Order) error
	NotifyOrderDelivered(ctx context.Context, o *Order) error
}

type Service struct {
	pool     db.Pool
	repo     *Repository
	ledger   *inventory.Ledger
	monitor  *inventory.Monitor
	notifier Notifier
	logger   *log.Logger
}

func NewService(pool db.Pool, repo *Repository, ledger *inventory.Ledger, monitor *inventory.Monitor, notifier Notifier, logger *log.Logger) *Service {
	return &Service{pool: pool, repo: repo, ledger: ledger, monitor: monitor, notifier: notifier, logger: logger}
}

// Create converts the named cart reservations into a PENDING order. The
// stock was already subtracted when the items entered the cart, so no ledger
// call happens here; the reservation is just re-labelled as committed to a
// sale. Cart item ids not owned by the caller are ignored.
func (s *Service) Create(ctx context.Context, user identity.User, cartItemIDs []string, addr Address) (*Order, error) {
	if user.Role == identity.RoleAdmin {
		return nil, fault.Forbidden("admin users cannot create orders")
	}
	if len(cartItemIDs) == 0 {
		return nil, fault.Validation("no valid cart items found")
	}
	if addr.Address == "" || addr.City == "" || addr.PostalCode == "" || addr.Country == "" {
		return nil, fault.Validation("shipping address is incomplete")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fault.Internal("failed to create order", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Lock the cart rows so a concurrent removal cannot release the same
	// reservation we are about to commit to a sale.
	rows, err := tx.Query(ctx, `
		SELECT ci.id, ci.product_id, ci.quantity, p.price
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.user_id=$1 AND ci.id = ANY($2::uuid[])
		FOR UPDATE OF ci
	`, user.ID, cartItemIDs)
	if err != nil {
		return nil, fault.Internal("failed to create order", err)
	}

	var (
		consumed []string
		items    []Item
		total    = decimal.Zero
	)
	for rows.Next() {
		var (
			id    string
			it    Item
			price decimal.Decimal
		)
		if err := rows.Scan(&id, &it.ProductID, &it.Quantity, &price); err != nil {
			rows.Close()
			return nil, fault.Internal("failed to create order", err)
		}
		it.Price = price
		consumed = append(consumed, id)
		items = append(items, it)
		total = total.Add(price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fault.Internal("failed to create order", err)
	}

	if len(items) == 0 {
		return nil, fault.Validation("no valid cart items found")
	}
	if !total.IsPositive() {
		return nil, fault.Validation("total amount must be greater than zero")
	}

	o := &Order{
		ID:          uuid.NewString(),
		UserID:      user.ID,
		Status:      StatusPending,
		IsPaid:      false,
		TotalAmount: total,
		Address:     addr,
		Items:       items,
	}
	if err := s.repo.InsertWithTx(ctx, tx, o); err != nil {
		return nil, fault.Internal("failed to create order", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE id = ANY($1::uuid[])`, consumed); err != nil {
		return nil, fault.Internal("failed to create order", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fault.Internal("failed to create order", err)
	}

	return o, nil
}

// ConfirmPayment records the trusted external payment signal and moves the
// order PENDING -> CONFIRMED.
func (s *Service) ConfirmPayment(ctx context.Context, orderID, userID string) (*Order, error) {
	o, err := s.transition(ctx, orderID, userID, func(o *Order) error {
		if o.IsPaid {
			return fault.Validation("order is already paid")
		}
		if o.Status != StatusPending {
			return fault.Validation("order is not awaiting payment")
		}
		o.IsPaid = true
		o.Status = StatusConfirmed
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, "order confirmed", o, s.notifier.NotifyOrderConfirmed)
	return o, nil
}

// Ship moves a paid, confirmed order to SHIPPED. The HTTP layer restricts
// this to administrators.
func (s *Service) Ship(ctx context.Context, orderID string) (*Order, error) {
	o, err := s.transition(ctx, orderID, "", func(o *Order) error {
		if !o.IsPaid {
			return fault.Validation("cannot ship unpaid order")
		}
		if o.Status != StatusConfirmed {
			return fault.Validation("order must be confirmed before shipping")
		}
		o.Status = StatusShipped
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, "order shipped", o, s.notifier.NotifyOrderShipped)
	return o, nil
}

// Cancel transitions the order to CANCELLED and, in the same transaction,
// releases every item's reserved quantity back to the ledger. A partial
// release is a consistency violation, so status write and releases commit as
// one unit.
func (s *Service) Cancel(ctx context.Context, orderID, userID string) (*Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fault.Internal("failed to cancel order", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	o, err := s.lockOrder(ctx, tx, orderID, userID, "failed to cancel order")
	if err != nil {
		return nil, err
	}

	switch o.Status {
	case StatusShipped:
		return nil, fault.Validation("cannot cancel shipped order")
	case StatusCancelled:
		return nil, fault.Validation("order is already cancelled")
	case StatusDelivered:
		return nil, fault.Validation("cannot cancel delivered order")
	}

	o.Items, err = s.repo.ItemsWithTx(ctx, tx, o.ID)
	if err != nil {
		return nil, fault.Internal("failed to cancel order", err)
	}

	for _, it := range o.Items {
		if _, err := s.ledger.Release(ctx, tx, it.ProductID, it.Quantity); err != nil {
			return nil, fault.Internal("failed to cancel order", err)
		}
	}

	o.Status = StatusCancelled
	if err := s.repo.SetStateWithTx(ctx, tx, o.ID, o.Status, o.IsPaid); err != nil {
		return nil, fault.Internal("failed to cancel order", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fault.Internal("failed to cancel order", err)
	}

	s.notify(ctx, "order cancelled", o, s.notifier.NotifyOrderCancelled)
	return o, nil
}

// ConfirmDelivery lets the owning customer acknowledge a SHIPPED order.
func (s *Service) ConfirmDelivery(ctx context.Context, orderID string, user identity.User) (*Order, error) {
	if user.Role != identity.RoleCustomer {
		return nil, fault.Forbidden("only customers can confirm delivery")
	}

	o, err := s.transition(ctx, orderID, user.ID, func(o *Order) error {
		if o.Status == StatusDelivered {
			return fault.Validation("order is already marked as delivered")
		}
		if o.Status != StatusShipped {
			return fault.Validation("order is not shipped")
		}
		o.Status = StatusDelivered
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, "order delivered", o, s.notifier.NotifyOrderDelivered)
	return o, nil
}

// SetStatus is the administrative override. It skips the transition guards
// but not the accounting: forcing an order into CANCELLED still releases its
// stock, and forcing one out of CANCELLED re-reserves it (failing with
// InsufficientStock when the units are gone). Every use is audit-logged.
func (s *Service) SetStatus(ctx context.Context, orderID string, status Status) (*Order, error) {
	if !status.Valid() {
		return nil, fault.Validation("invalid order status")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fault.Internal("failed to update order status", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	o, err := s.lockOrder(ctx, tx, orderID, "", "failed to update order status")
	if err != nil {
		return nil, err
	}
	if o.Status == status {
		return o, nil
	}

	o.Items, err = s.repo.ItemsWithTx(ctx, tx, o.ID)
	if err != nil {
		return nil, fault.Internal("failed to update order status", err)
	}

	var lowStock []inventory.Level
	switch {
	case status == StatusCancelled:
		for _, it := range o.Items {
			if _, err := s.ledger.Release(ctx, tx, it.ProductID, it.Quantity); err != nil {
				return nil, fault.Internal("failed to update order status", err)
			}
		}
	case o.Status == StatusCancelled:
		// Reviving a cancelled order re-commits its quantities to the sale.
		for _, it := range o.Items {
			lv, err := s.ledger.Reserve(ctx, tx, it.ProductID, it.Quantity)
			if err != nil {
				return nil, wrap("failed to update order status", err)
			}
			lowStock = append(lowStock, lv)
		}
	}

	prev := o.Status
	o.Status = status
	if err := s.repo.SetStateWithTx(ctx, tx, o.ID, o.Status, o.IsPaid); err != nil {
		return nil, fault.Internal("failed to update order status", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fault.Internal("failed to update order status", err)
	}

	s.logger.Printf("admin override: order %s status %s -> %s", o.ID, prev, status)
	for _, lv := range lowStock {
		s.monitor.Observe(ctx, lv)
	}
	if status == StatusCancelled {
		s.notify(ctx, "order cancelled", o, s.notifier.NotifyOrderCancelled)
	}
	return o, nil
}

// FindOne returns the caller's order or NotFound.
func (s *Service) FindOne(ctx context.Context, userID, orderID string) (*Order, error) {
	o, err := s.repo.FindOne(ctx, userID, orderID)
	if err != nil {
		if IsNoRows(err) {
			return nil, fault.NotFound("order not found")
		}
		return nil, fault.Internal("failed to load order", err)
	}
	return o, nil
}

// FindAll lists the caller's orders, newest first.
func (s *Service) FindAll(ctx context.Context, userID string) ([]Order, error) {
	orders, err := s.repo.FindAllByUser(ctx, userID)
	if err != nil {
		return nil, fault.Internal("failed to load orders", err)
	}
	return orders, nil
}

// FindAllAdmin lists every customer's orders.
func (s *Service) FindAllAdmin(ctx context.Context) ([]Order, error) {
	orders, err := s.repo.FindAllAdmin(ctx)
	if err != nil {
		return nil, fault.Internal("failed to load orders", err)
	}
	return orders, nil
}

// transition runs a guarded state change in one transaction: lock, apply,
// write. The apply func mutates the locked order or returns the guard fault.
func (s *Service) transition(ctx context.Context, orderID, userID string, apply func(*Order) error) (*Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fault.Internal("failed to update order", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	o, err := s.lockOrder(ctx, tx, orderID, userID, "failed to update order")
	if err != nil {
		return nil, err
	}

	if err := apply(o); err != nil {
		return nil, err
	}

	o.Items, err = s.repo.ItemsWithTx(ctx, tx, o.ID)
	if err != nil {
		return nil, fault.Internal("failed to update order", err)
	}

	if err := s.repo.SetStateWithTx(ctx, tx, o.ID, o.Status, o.IsPaid); err != nil {
		return nil, fault.Internal("failed to update order", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fault.Internal("failed to update order", err)
	}
	return o, nil
}

func (s *Service) lockOrder(ctx context.Context, tx pgx.Tx, orderID, userID, msg string) (*Order, error) {
	o, err := s.repo.GetForUpdateWithTx(ctx, tx, orderID, userID)
	if err != nil {
		if IsNoRows(err) {
			return nil, fault.NotFound("order not found")
		}
		return nil, fault.Internal(msg, err)
	}
	return o, nil
}

func (s *Service) notify(ctx context.Context, event string, o *Order, fn func(context.Context, *Order) error) {
	if err := fn(ctx, o); err != nil {
		s.logger.Printf("%s notification for order %s failed: %v", event, o.ID, err)
	}
}

// wrap keeps domain faults intact and hides everything else behind msg.
func wrap(msg string, err error) error {
	var f *fault.Error
	if errors.As(err, &f) && f.Kind != fault.KindInternal {
		return err
	}
	return fault.Internal(msg, err)
}
