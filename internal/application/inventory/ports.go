package inventory

import (
	"context"

	"github.com/jhoicas/kho-shard/internal/domain/entity"
	"github.com/jhoicas/kho-shard/internal/shard"
)

// Resolver elige la conexión de cada petición (implementado por shard.Router).
type Resolver interface {
	Resolve(hint shard.RouteHint) (*shard.Connection, error)
	// HomeOf clave de la conexión dueña de una región.
	HomeOf(regionCode string) string
}

// Notifier destino de las notificaciones post-commit. Notify no debe bloquear ni fallar:
// la operación ya está confirmada cuando se llama.
type Notifier interface {
	Notify(ctx context.Context, ev entity.InventoryEvent)
}

// Metrics contadores del motor.
type Metrics interface {
	DocumentOperation(kind entity.DocumentKind, op, outcome string)
	StockRejection(kind entity.DocumentKind)
	TxRetry()
}

// Resultados registrados en Metrics.DocumentOperation.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, entity.InventoryEvent) {}

type nopMetrics struct{}

func (nopMetrics) DocumentOperation(entity.DocumentKind, string, string) {}
func (nopMetrics) StockRejection(entity.DocumentKind)                    {}
func (nopMetrics) TxRetry()                                              {}
