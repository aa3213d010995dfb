package notify

import (
	"context"
	"time"

	"github.com/jhoicas/kho-shard/internal/domain/entity"
)

// Publisher transporte de las notificaciones (log, redis, ...).
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// Message cuerpo JSON de una notificación de inventario.
type Message struct {
	Kind        string    `json:"kind"`
	Region      string    `json:"region"`
	WarehouseID string    `json:"warehouse_id"`
	DocumentID  string    `json:"document_id"`
	Shard       string    `json:"shard"`
	Changes     []Change  `json:"changes"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Change saldo de un producto tras la operación.
type Change struct {
	ProductID      string `json:"product_id"`
	Delta          int64  `json:"delta"`
	QuantityOnHand int64  `json:"quantity_on_hand"`
}

// MessageFrom convierte el evento de dominio al formato publicado.
func MessageFrom(ev entity.InventoryEvent) Message {
	msg := Message{
		Kind:        string(ev.Kind),
		Region:      ev.Region,
		WarehouseID: ev.WarehouseID,
		DocumentID:  ev.Payload.DocumentID,
		Shard:       ev.Payload.Shard,
		Changes:     make([]Change, 0, len(ev.Payload.Changes)),
		OccurredAt:  ev.OccurredAt,
	}
	for _, c := range ev.Payload.Changes {
		msg.Changes = append(msg.Changes, Change{ProductID: c.ProductID, Delta: c.Delta, QuantityOnHand: c.QuantityOnHand})
	}
	return msg
}

// NopPublisher descarta todo.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Message) error { return nil }
func (NopPublisher) Close() error                           { return nil }
