package repository

import (
	"context"

	"github.com/jhoicas/kho-shard/internal/domain/entity"
)

// WarehouseRepository define el puerto de lectura de bodegas sobre una conexión (DIP).
// El alta/baja de bodegas es responsabilidad de un gestor externo.
type WarehouseRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Warehouse, error)
}
