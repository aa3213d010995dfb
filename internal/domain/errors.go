package domain

import (
	"errors"
	"fmt"
)

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound          = errors.New("recurso no encontrado")
	ErrInvalidInput      = errors.New("entrada inválida")
	ErrDuplicate         = errors.New("recurso duplicado")
	ErrConflict          = errors.New("conflicto con el estado actual")
	ErrInsufficientStock = errors.New("stock insuficiente")
	ErrReferenceNotFound = errors.New("referencia no encontrada en la conexión")
	ErrDuplicateLine     = errors.New("producto repetido en las líneas")
	ErrImmutableField    = errors.New("no se permite cambiar bodega o proveedor")
	ErrRouting           = errors.New("no hay conexión para la petición")
	ErrTransaction       = errors.New("fallo de transacción")
)

// RoutingError no se pudo elegir conexión (región sin shard y sin master configurado).
type RoutingError struct {
	ShardKey   string
	RegionCode string
	Reason     string
}

func (e *RoutingError) Error() string {
	return fmt.Sprintf("routing: shard=%q region=%q: %s", e.ShardKey, e.RegionCode, e.Reason)
}

func (e *RoutingError) Unwrap() error { return ErrRouting }

// ReferenceNotFoundError entidad referenciada ausente en la conexión elegida.
type ReferenceNotFoundError struct {
	Entity string // warehouse, supplier, product
	ID     string
}

func (e *ReferenceNotFoundError) Error() string {
	return fmt.Sprintf("%s %q no existe en la conexión", e.Entity, e.ID)
}

func (e *ReferenceNotFoundError) Unwrap() error { return ErrReferenceNotFound }

// DuplicateLineError el mismo producto aparece dos veces en una misma solicitud.
type DuplicateLineError struct {
	ProductID string
	Index     int // posición de la segunda aparición
}

func (e *DuplicateLineError) Error() string {
	return fmt.Sprintf("producto %q repetido en la línea %d", e.ProductID, e.Index)
}

func (e *DuplicateLineError) Unwrap() error { return ErrDuplicateLine }

// InsufficientStockError el movimiento dejaría el stock en negativo.
// Delta es el movimiento con signo que se intentó aplicar; Requested = -Delta, es decir lo que
// el movimiento necesita retirar. Al editar una línea es la diferencia contra la cantidad
// guardada, no la nueva cantidad de la línea (salida de 5 a 21 con 15 disponibles: Requested 16).
type InsufficientStockError struct {
	WarehouseID string
	ProductID   string
	Delta       int64
	Requested   int64
	Available   int64
}

func NewInsufficientStock(warehouseID, productID string, delta, available int64) *InsufficientStockError {
	return &InsufficientStockError{
		WarehouseID: warehouseID,
		ProductID:   productID,
		Delta:       delta,
		Requested:   -delta,
		Available:   available,
	}
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("stock insuficiente: bodega %q producto %q solicitado %d disponible %d (delta %d)",
		e.WarehouseID, e.ProductID, e.Requested, e.Available, e.Delta)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// TransactionError fallo de infraestructura (begin/commit/serialización). Siempre con rollback completo.
// Es la única clase que se puede reintentar sin cambiar la entrada.
type TransactionError struct {
	Op  string
	Err error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("transacción %s: %v", e.Op, e.Err)
}

func (e *TransactionError) Unwrap() []error { return []error{ErrTransaction, e.Err} }

// IsRetryable indica si err puede reintentarse automáticamente.
func IsRetryable(err error) bool {
	var txErr *TransactionError
	return errors.As(err, &txErr)
}
