package repository

import (
	"context"

	"github.com/jhoicas/kho-shard/internal/domain/entity"
)

// ProductRepository define el puerto de lectura de productos (DIP).
type ProductRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Product, error)
	// MissingIDs devuelve, en el orden recibido, los ids que no existen en la conexión.
	MissingIDs(ctx context.Context, ids []string) ([]string, error)
}
