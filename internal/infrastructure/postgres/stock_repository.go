package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jhoicas/kho-shard/internal/domain"
	"github.com/jhoicas/kho-shard/internal/domain/entity"
	"github.com/jhoicas/kho-shard/internal/domain/repository"
)

var _ repository.StockRepository = (*StockRepo)(nil)

const (
	ensureStockSQL = `
		INSERT INTO stock_levels (warehouse_id, product_id, quantity_on_hand, updated_at)
		VALUES ($1, $2, 0, now())
		ON CONFLICT (warehouse_id, product_id) DO NOTHING`

	// La condición se evalúa sobre la fila bloqueada por el propio UPDATE: dos salidas
	// concurrentes del mismo producto se serializan y la segunda ve el valor ya descontado.
	applyStockSQL = `
		UPDATE stock_levels
		SET quantity_on_hand = quantity_on_hand + $3, updated_at = now()
		WHERE warehouse_id = $1 AND product_id = $2 AND quantity_on_hand + $3 >= 0
		RETURNING quantity_on_hand`
)

// StockRepo implementación de StockRepository sobre PostgreSQL (usable con pool o tx).
type StockRepo struct {
	q Querier
}

// NewStockRepository construye el adaptador de stock. Pasar pool o tx (Querier).
func NewStockRepository(q Querier) *StockRepo {
	return &StockRepo{q: q}
}

// Get obtiene las existencias actuales; si no hay fila devuelve cantidad 0.
func (r *StockRepo) Get(ctx context.Context, warehouseID, productID string) (*entity.StockLevel, error) {
	query := `
		SELECT warehouse_id, product_id, quantity_on_hand, updated_at
		FROM stock_levels WHERE warehouse_id = $1 AND product_id = $2`
	var s entity.StockLevel
	err := r.q.QueryRow(ctx, query, warehouseID, productID).Scan(
		&s.WarehouseID, &s.ProductID, &s.QuantityOnHand, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &entity.StockLevel{WarehouseID: warehouseID, ProductID: productID}, nil
		}
		return nil, fmt.Errorf("get stock: %w", err)
	}
	return &s, nil
}

// Apply aplica delta con UPDATE condicional. Las entradas crean la fila en 0 si no existe;
// una salida sobre una fila inexistente equivale a stock 0 y se rechaza.
func (r *StockRepo) Apply(ctx context.Context, warehouseID, productID string, delta int64) (int64, error) {
	if delta == 0 {
		s, err := r.Get(ctx, warehouseID, productID)
		if err != nil {
			return 0, err
		}
		return s.QuantityOnHand, nil
	}
	if delta > 0 {
		if _, err := r.q.Exec(ctx, ensureStockSQL, warehouseID, productID); err != nil {
			return 0, fmt.Errorf("ensure stock: %w", err)
		}
	}

	var qty int64
	err := r.q.QueryRow(ctx, applyStockSQL, warehouseID, productID, delta).Scan(&qty)
	switch {
	case err == nil:
		return qty, nil
	case errors.Is(err, pgx.ErrNoRows):
		current, getErr := r.Get(ctx, warehouseID, productID)
		if getErr != nil {
			return 0, getErr
		}
		return 0, domain.NewInsufficientStock(warehouseID, productID, delta, current.QuantityOnHand)
	case isCheckViolation(err):
		// La tx queda abortada: no se puede leer el disponible.
		return 0, fmt.Errorf("apply stock %s/%s: %w", warehouseID, productID, domain.ErrInsufficientStock)
	case isOutOfRange(err):
		return 0, fmt.Errorf("apply stock %s/%s: cantidad fuera de rango: %w", warehouseID, productID, domain.ErrInvalidInput)
	default:
		return 0, fmt.Errorf("apply stock: %w", err)
	}
}

// ListByWarehouse existencias de una bodega ordenadas por producto.
func (r *StockRepo) ListByWarehouse(ctx context.Context, warehouseID string, page repository.Page) ([]entity.StockLevel, int64, error) {
	var total int64
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM stock_levels WHERE warehouse_id = $1`, warehouseID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count stock: %w", err)
	}
	levels := []entity.StockLevel{}
	if total == 0 {
		return levels, 0, nil
	}
	query := `
		SELECT warehouse_id, product_id, quantity_on_hand, updated_at
		FROM stock_levels WHERE warehouse_id = $1
		ORDER BY product_id
		LIMIT $2 OFFSET $3`
	rows, err := r.q.Query(ctx, query, warehouseID, page.Limit, page.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list stock: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var s entity.StockLevel
		if err := rows.Scan(&s.WarehouseID, &s.ProductID, &s.QuantityOnHand, &s.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan stock: %w", err)
		}
		levels = append(levels, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list stock: %w", err)
	}
	return levels, total, nil
}
