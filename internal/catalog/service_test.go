package catalog

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Markide1/shopie-app/internal/fault"
	"github.com/Markide1/shopie-app/internal/inventory"
)

const productID = "22222222-2222-2222-2222-222222222222"

func someTime() time.Time { return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC) }

type stubNotifier struct {
	lowStock []inventory.Level
}

func (s *stubNotifier) NotifyLowStock(ctx context.Context, lv inventory.Level) error {
	s.lowStock = append(s.lowStock, lv)
	return nil
}

func newTestService(t *testing.T) (*Service, pgxmock.PgxPoolIface, *stubNotifier) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	notifier := &stubNotifier{}
	logger := log.New(io.Discard, "", 0)
	svc := NewService(mock, inventory.NewLedger(), inventory.NewMonitor(notifier, logger), logger)
	return svc, mock, notifier
}

func TestCreateProduct(t *testing.T) {
	ctx := context.Background()

	t.Run("duplicate details conflict", func(t *testing.T) {
		svc, mock, _ := newTestService(t)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT EXISTS`).
			WithArgs("Widget", "A widget").
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectRollback()

		_, err := svc.Create(ctx, CreateInput{
			Name:        "Widget",
			Description: "A widget",
			Price:       decimal.RequireFromString("19.99"),
			Stock:       10,
		})
		assert.Equal(t, fault.KindConflict, fault.KindOf(err))
	})

	t.Run("rejects non-positive price", func(t *testing.T) {
		svc, _, _ := newTestService(t)

		_, err := svc.Create(ctx, CreateInput{Name: "Widget", Price: decimal.Zero})
		assert.Equal(t, fault.KindValidation, fault.KindOf(err))
	})

	t.Run("low opening stock fires the alert", func(t *testing.T) {
		svc, mock, notifier := newTestService(t)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT EXISTS`).
			WithArgs("Widget", "A widget").
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectQuery(`INSERT INTO products`).
			WithArgs(pgxmock.AnyArg(), "Widget", "A widget", pgxmock.AnyArg(), 3).
			WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).
				AddRow(someTime(), someTime()))
		mock.ExpectCommit()

		p, err := svc.Create(ctx, CreateInput{
			Name:        "Widget",
			Description: "A widget",
			Price:       decimal.RequireFromString("19.99"),
			Stock:       3,
		})
		require.NoError(t, err)
		assert.Equal(t, 3, p.Stock)
		require.Len(t, notifier.lowStock, 1)
	})
}

func TestUpdateProduct(t *testing.T) {
	ctx := context.Background()

	t.Run("stock decrease goes through the ledger", func(t *testing.T) {
		svc, mock, notifier := newTestService(t)
		newStock := 4

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT name, description, price, stock`).
			WithArgs(productID).
			WillReturnRows(pgxmock.NewRows([]string{"name", "description", "price", "stock"}).
				AddRow("Widget", "A widget", "19.99", 10))
		// adjust reserves the 6-unit difference under the row lock
		mock.ExpectQuery(`SELECT name, stock, is_active`).
			WithArgs(productID).
			WillReturnRows(pgxmock.NewRows([]string{"name", "stock", "is_active"}).
				AddRow("Widget", 10, true))
		mock.ExpectExec(`UPDATE products`).
			WithArgs(productID, 6).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectExec(`UPDATE products`).
			WithArgs(productID, "Widget", "A widget", pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()

		p, err := svc.Update(ctx, productID, UpdateInput{Stock: &newStock})
		require.NoError(t, err)
		assert.Equal(t, 4, p.Stock)
		require.Len(t, notifier.lowStock, 1)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing product", func(t *testing.T) {
		svc, mock, _ := newTestService(t)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT name, description, price, stock`).
			WithArgs(productID).
			WillReturnRows(pgxmock.NewRows([]string{"name", "description", "price", "stock"}))
		mock.ExpectRollback()

		_, err := svc.Update(ctx, productID, UpdateInput{})
		assert.Equal(t, fault.KindNotFound, fault.KindOf(err))
	})
}

func TestDeleteProduct(t *testing.T) {
	ctx := context.Background()

	t.Run("blocked while reserved in a cart", func(t *testing.T) {
		svc, mock, _ := newTestService(t)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT is_active FROM products`).
			WithArgs(productID).
			WillReturnRows(pgxmock.NewRows([]string{"is_active"}).AddRow(true))
		mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM cart_items`).
			WithArgs(productID).
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectRollback()

		err := svc.Delete(ctx, productID)
		assert.Equal(t, fault.KindValidation, fault.KindOf(err))
	})

	t.Run("blocked while locked in a live order", func(t *testing.T) {
		svc, mock, _ := newTestService(t)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT is_active FROM products`).
			WithArgs(productID).
			WillReturnRows(pgxmock.NewRows([]string{"is_active"}).AddRow(true))
		mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM cart_items`).
			WithArgs(productID).
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectQuery(`SELECT EXISTS`).
			WithArgs(productID).
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectRollback()

		err := svc.Delete(ctx, productID)
		assert.Equal(t, fault.KindValidation, fault.KindOf(err))
	})

	t.Run("soft delete leaves stock untouched", func(t *testing.T) {
		svc, mock, _ := newTestService(t)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT is_active FROM products`).
			WithArgs(productID).
			WillReturnRows(pgxmock.NewRows([]string{"is_active"}).AddRow(true))
		mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM cart_items`).
			WithArgs(productID).
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectQuery(`SELECT EXISTS`).
			WithArgs(productID).
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectExec(`UPDATE products SET is_active=false`).
			WithArgs(productID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()

		require.NoError(t, svc.Delete(ctx, productID))
		require.NoError(t, mock.ExpectationsWereMet())
	})
}
