package metrics

import (
	"github.com/jhoicas/kho-shard/internal/domain/entity"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "inventory"

// Collector contadores del motor, del router y del notificador.
type Collector struct {
	documentOps       *prometheus.CounterVec
	routingFallbacks  *prometheus.CounterVec
	stockRejections   *prometheus.CounterVec
	txRetries         prometheus.Counter
	notificationsDrop prometheus.Counter
}

// New crea y registra los contadores en reg.
func New(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		documentOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "document_operations_total",
			Help:      "Operaciones sobre documentos por tipo, operación y resultado.",
		}, []string{"kind", "op", "outcome"}),
		routingFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "routing_fallbacks_total",
			Help:      "Peticiones resueltas al master por falta de shard.",
		}, []string{"reason"}),
		stockRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_rejections_total",
			Help:      "Operaciones rechazadas por stock insuficiente.",
		}, []string{"kind"}),
		txRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tx_retries_total",
			Help:      "Transacciones reintentadas tras un fallo de infraestructura.",
		}),
		notificationsDrop: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_dropped_total",
			Help:      "Notificaciones descartadas por buffer lleno o notificador cerrado.",
		}),
	}
	for _, col := range []prometheus.Collector{c.documentOps, c.routingFallbacks, c.stockRejections, c.txRetries, c.notificationsDrop} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Collector) DocumentOperation(kind entity.DocumentKind, op, outcome string) {
	c.documentOps.WithLabelValues(string(kind), op, outcome).Inc()
}

func (c *Collector) StockRejection(kind entity.DocumentKind) {
	c.stockRejections.WithLabelValues(string(kind)).Inc()
}

func (c *Collector) TxRetry() {
	c.txRetries.Inc()
}

func (c *Collector) RoutingFallback(reason string) {
	c.routingFallbacks.WithLabelValues(reason).Inc()
}

func (c *Collector) NotificationDropped() {
	c.notificationsDrop.Inc()
}
