package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// LogPublisher escribe cada notificación en el log estructurado.
type LogPublisher struct {
	log zerolog.Logger
}

// NewLogPublisher construye el publisher sobre un logger de componente.
func NewLogPublisher(log zerolog.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(_ context.Context, msg Message) error {
	ev := p.log.Info().
		Str("kind", msg.Kind).
		Str("region", msg.Region).
		Str("warehouse_id", msg.WarehouseID).
		Str("document_id", msg.DocumentID).
		Str("shard", msg.Shard)
	arr := zerolog.Arr()
	for _, c := range msg.Changes {
		arr.Dict(zerolog.Dict().Str("product_id", c.ProductID).Int64("delta", c.Delta).Int64("quantity_on_hand", c.QuantityOnHand))
	}
	ev.Array("changes", arr).Msg("inventory-update")
	return nil
}

func (p *LogPublisher) Close() error { return nil }
