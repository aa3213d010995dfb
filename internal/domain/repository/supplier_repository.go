package repository

import (
	"context"

	"github.com/jhoicas/kho-shard/internal/domain/entity"
)

// SupplierRepository define el puerto de lectura de proveedores (DIP).
type SupplierRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Supplier, error)
}
