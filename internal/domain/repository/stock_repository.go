package repository

import (
	"context"

	"github.com/jhoicas/kho-shard/internal/domain/entity"
)

// StockRepository define el puerto del libro de existencias por bodega+producto.
// Usado dentro de transacciones para garantizar consistencia.
type StockRepository interface {
	Get(ctx context.Context, warehouseID, productID string) (*entity.StockLevel, error)
	// ListByWarehouse existencias de una bodega ordenadas por producto, con el total sin paginar.
	ListByWarehouse(ctx context.Context, warehouseID string, page Page) ([]entity.StockLevel, int64, error)
	// Apply suma delta (con signo) a las existencias en la misma escritura que verifica
	// current+delta >= 0. Crea la fila en 0 si no existe. Si la condición falla devuelve
	// *domain.InsufficientStockError y no modifica nada.
	Apply(ctx context.Context, warehouseID, productID string, delta int64) (int64, error)
}
