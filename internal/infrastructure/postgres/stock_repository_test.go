package postgres

import (
	"context"
	"errors"
	"math"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jhoicas/kho-shard/internal/domain"
	"github.com/jhoicas/kho-shard/internal/domain/repository"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestStockApply_EntradaCreaFilaYSuma(t *testing.T) {
	mock := newMockPool(t)
	mock.ExpectExec("INSERT INTO stock_levels").
		WithArgs("w1", "p1").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery("UPDATE stock_levels").
		WithArgs("w1", "p1", int64(5)).
		WillReturnRows(pgxmock.NewRows([]string{"quantity_on_hand"}).AddRow(int64(5)))

	qty, err := NewStockRepository(mock).Apply(context.Background(), "w1", "p1", 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), qty)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStockApply_SalidaNoCreaFila(t *testing.T) {
	mock := newMockPool(t)
	mock.ExpectQuery("UPDATE stock_levels").
		WithArgs("w1", "p1", int64(-2)).
		WillReturnRows(pgxmock.NewRows([]string{"quantity_on_hand"}).AddRow(int64(8)))

	qty, err := NewStockRepository(mock).Apply(context.Background(), "w1", "p1", -2)
	require.NoError(t, err)
	assert.Equal(t, int64(8), qty)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStockApply_SalidaSinExistenciasDevuelveInsuficiente(t *testing.T) {
	mock := newMockPool(t)
	mock.ExpectQuery("UPDATE stock_levels").
		WithArgs("w1", "p1", int64(-7)).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("SELECT warehouse_id, product_id, quantity_on_hand").
		WithArgs("w1", "p1").
		WillReturnRows(pgxmock.NewRows([]string{"warehouse_id", "product_id", "quantity_on_hand", "updated_at"}).
			AddRow("w1", "p1", int64(3), time.Now()))

	_, err := NewStockRepository(mock).Apply(context.Background(), "w1", "p1", -7)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInsufficientStock))

	var insuf *domain.InsufficientStockError
	require.True(t, errors.As(err, &insuf))
	assert.Equal(t, int64(7), insuf.Requested)
	assert.Equal(t, int64(3), insuf.Available)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStockApply_SalidaSobreFilaInexistenteDisponibleCero(t *testing.T) {
	mock := newMockPool(t)
	mock.ExpectQuery("UPDATE stock_levels").
		WithArgs("w1", "p9", int64(-1)).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("SELECT warehouse_id, product_id, quantity_on_hand").
		WithArgs("w1", "p9").
		WillReturnError(pgx.ErrNoRows)

	_, err := NewStockRepository(mock).Apply(context.Background(), "w1", "p9", -1)
	var insuf *domain.InsufficientStockError
	require.True(t, errors.As(err, &insuf))
	assert.Zero(t, insuf.Available)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStockApply_DesbordeEsEntradaInvalida(t *testing.T) {
	mock := newMockPool(t)
	mock.ExpectExec("INSERT INTO stock_levels").
		WithArgs("w1", "p1").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectQuery("UPDATE stock_levels").
		WithArgs("w1", "p1", int64(math.MaxInt64)).
		WillReturnError(&pgconn.PgError{Code: codeNumericOutOfRange})

	_, err := NewStockRepository(mock).Apply(context.Background(), "w1", "p1", math.MaxInt64)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.NotErrorIs(t, err, domain.ErrInsufficientStock)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStockApply_DeltaCeroSoloLee(t *testing.T) {
	mock := newMockPool(t)
	mock.ExpectQuery("SELECT warehouse_id, product_id, quantity_on_hand").
		WithArgs("w1", "p1").
		WillReturnRows(pgxmock.NewRows([]string{"warehouse_id", "product_id", "quantity_on_hand", "updated_at"}).
			AddRow("w1", "p1", int64(4), time.Now()))

	qty, err := NewStockRepository(mock).Apply(context.Background(), "w1", "p1", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(4), qty)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStockGet_SinFilaDevuelveCero(t *testing.T) {
	mock := newMockPool(t)
	mock.ExpectQuery("FROM stock_levels").
		WithArgs("w1", "p1").
		WillReturnError(pgx.ErrNoRows)

	s, err := NewStockRepository(mock).Get(context.Background(), "w1", "p1")
	require.NoError(t, err)
	assert.Equal(t, "w1", s.WarehouseID)
	assert.Zero(t, s.QuantityOnHand)
}

func TestStockListByWarehouse(t *testing.T) {
	mock := newMockPool(t)
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM stock_levels WHERE warehouse_id = $1")).
		WithArgs("w1").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(2)))
	mock.ExpectQuery(`ORDER BY product_id\s+LIMIT \$2 OFFSET \$3`).
		WithArgs("w1", 10, 0).
		WillReturnRows(pgxmock.NewRows([]string{"warehouse_id", "product_id", "quantity_on_hand", "updated_at"}).
			AddRow("w1", "p1", int64(5), at).
			AddRow("w1", "p2", int64(0), at))

	levels, total, err := NewStockRepository(mock).ListByWarehouse(context.Background(), "w1", repository.Page{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, levels, 2)
	assert.Equal(t, "p2", levels[1].ProductID)
	assert.Equal(t, at, levels[0].UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}
