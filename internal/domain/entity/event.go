package entity

import "time"

// EventKind tipo de notificación post-commit: "<tipo de documento>.<operación>".
type EventKind string

// Operaciones que generan notificación.
const (
	OpCreated = "created"
	OpUpdated = "updated"
	OpDeleted = "deleted"
)

// EventKindFor arma el tipo de evento para un documento y una operación (import.created, ...).
func EventKindFor(kind DocumentKind, op string) EventKind {
	return EventKind(string(kind) + "." + op)
}

// InventoryEvent notificación de cambio de inventario ya confirmado en la base.
type InventoryEvent struct {
	Kind        EventKind
	Region      string
	WarehouseID string
	Payload     EventPayload
	OccurredAt  time.Time
}

// EventPayload detalle del cambio: documento, conexión y existencias resultantes.
type EventPayload struct {
	DocumentID string
	Shard      string
	Changes    []StockChange
}

// StockChange movimiento aplicado a un producto y su saldo tras aplicarlo.
type StockChange struct {
	ProductID      string
	Delta          int64
	QuantityOnHand int64
}
