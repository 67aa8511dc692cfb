package inventory

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Markide1/shopie-app/internal/fault"
)

func TestLedgerReserve(t *testing.T) {
	ctx := context.Background()
	ledger := NewLedger()

	t.Run("decrements stock under row lock", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT name, stock, is_active`).
			WithArgs("p1").
			WillReturnRows(pgxmock.NewRows([]string{"name", "stock", "is_active"}).
				AddRow("Widget", 10, true))
		mock.ExpectExec(`UPDATE products`).
			WithArgs("p1", 3).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		tx, err := mock.Begin(ctx)
		require.NoError(t, err)

		lv, err := ledger.Reserve(ctx, tx, "p1", 3)
		require.NoError(t, err)
		assert.Equal(t, Level{ProductID: "p1", Name: "Widget", Stock: 7}, lv)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insufficient stock", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT name, stock, is_active`).
			WithArgs("p1").
			WillReturnRows(pgxmock.NewRows([]string{"name", "stock", "is_active"}).
				AddRow("Widget", 2, true))

		tx, err := mock.Begin(ctx)
		require.NoError(t, err)

		_, err = ledger.Reserve(ctx, tx, "p1", 3)
		assert.Equal(t, fault.KindInsufficientStock, fault.KindOf(err))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing product", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT name, stock, is_active`).
			WithArgs("nope").
			WillReturnRows(pgxmock.NewRows([]string{"name", "stock", "is_active"}))

		tx, err := mock.Begin(ctx)
		require.NoError(t, err)

		_, err = ledger.Reserve(ctx, tx, "nope", 1)
		assert.Equal(t, fault.KindNotFound, fault.KindOf(err))
	})

	t.Run("inactive product is invisible", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT name, stock, is_active`).
			WithArgs("p1").
			WillReturnRows(pgxmock.NewRows([]string{"name", "stock", "is_active"}).
				AddRow("Widget", 10, false))

		tx, err := mock.Begin(ctx)
		require.NoError(t, err)

		_, err = ledger.Reserve(ctx, tx, "p1", 1)
		assert.Equal(t, fault.KindNotFound, fault.KindOf(err))
	})
}

func TestLedgerRelease(t *testing.T) {
	ctx := context.Background()
	ledger := NewLedger()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE products`).
		WithArgs("p1", 3).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "stock"}).
			AddRow("p1", "Widget", 10))

	tx, err := mock.Begin(ctx)
	require.NoError(t, err)

	lv, err := ledger.Release(ctx, tx, "p1", 3)
	require.NoError(t, err)
	assert.Equal(t, 10, lv.Stock)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerAdjust(t *testing.T) {
	ctx := context.Background()
	ledger := NewLedger()

	t.Run("positive delta reserves", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT name, stock, is_active`).
			WithArgs("p1").
			WillReturnRows(pgxmock.NewRows([]string{"name", "stock", "is_active"}).
				AddRow("Widget", 7, true))
		mock.ExpectExec(`UPDATE products`).
			WithArgs("p1", 2).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		tx, err := mock.Begin(ctx)
		require.NoError(t, err)

		lv, err := ledger.Adjust(ctx, tx, "p1", 2)
		require.NoError(t, err)
		assert.Equal(t, 5, lv.Stock)
	})

	t.Run("negative delta releases", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectBegin()
		mock.ExpectQuery(`UPDATE products`).
			WithArgs("p1", 2).
			WillReturnRows(pgxmock.NewRows([]string{"id", "name", "stock"}).
				AddRow("p1", "Widget", 9))

		tx, err := mock.Begin(ctx)
		require.NoError(t, err)

		lv, err := ledger.Adjust(ctx, tx, "p1", -2)
		require.NoError(t, err)
		assert.Equal(t, 9, lv.Stock)
	})

	t.Run("zero delta only reads", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT id, name, stock FROM products`).
			WithArgs("p1").
			WillReturnRows(pgxmock.NewRows([]string{"id", "name", "stock"}).
				AddRow("p1", "Widget", 7))

		tx, err := mock.Begin(ctx)
		require.NoError(t, err)

		lv, err := ledger.Adjust(ctx, tx, "p1", 0)
		require.NoError(t, err)
		assert.Equal(t, 7, lv.Stock)
	})
}
