package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jhoicas/kho-shard/internal/domain/entity"
	"github.com/jhoicas/kho-shard/pkg/config"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const publishTimeout = 5 * time.Second

// DropRecorder cuenta notificaciones descartadas.
type DropRecorder interface {
	NotificationDropped()
}

// AsyncNotifier entrega los eventos a un Publisher desde una goroutine propia. Notify nunca
// bloquea: con el buffer lleno el evento se descarta con un warning.
type AsyncNotifier struct {
	pub   Publisher
	log   zerolog.Logger
	drops DropRecorder

	mu     sync.RWMutex
	closed bool
	ch     chan entity.InventoryEvent
	done   chan struct{}
}

// NewAsyncNotifier arranca el worker. drops puede ser nil.
func NewAsyncNotifier(pub Publisher, buffer int, log zerolog.Logger, drops DropRecorder) *AsyncNotifier {
	if buffer < 1 {
		buffer = 1
	}
	n := &AsyncNotifier{
		pub:   pub,
		log:   log,
		drops: drops,
		ch:    make(chan entity.InventoryEvent, buffer),
		done:  make(chan struct{}),
	}
	go n.run()
	return n
}

// Notify encola el evento sin bloquear.
func (n *AsyncNotifier) Notify(_ context.Context, ev entity.InventoryEvent) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		n.drop(ev, "notifier cerrado")
		return
	}
	select {
	case n.ch <- ev:
	default:
		n.drop(ev, "buffer lleno")
	}
}

func (n *AsyncNotifier) drop(ev entity.InventoryEvent, reason string) {
	if n.drops != nil {
		n.drops.NotificationDropped()
	}
	n.log.Warn().Str("kind", string(ev.Kind)).Str("document_id", ev.Payload.DocumentID).Str("reason", reason).Msg("notificación descartada")
}

func (n *AsyncNotifier) run() {
	defer close(n.done)
	for ev := range n.ch {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		if err := n.pub.Publish(ctx, MessageFrom(ev)); err != nil {
			n.log.Warn().Err(err).Str("kind", string(ev.Kind)).Str("document_id", ev.Payload.DocumentID).Msg("no se pudo publicar la notificación")
		}
		cancel()
	}
}

// Close deja de aceptar eventos, espera a que se vacíe el buffer (o a ctx) y cierra el publisher.
func (n *AsyncNotifier) Close(ctx context.Context) error {
	n.mu.Lock()
	if !n.closed {
		n.closed = true
		close(n.ch)
	}
	n.mu.Unlock()

	select {
	case <-n.done:
	case <-ctx.Done():
		return fmt.Errorf("drenar notificaciones: %w", ctx.Err())
	}
	return n.pub.Close()
}

// NewPublisher construye el publisher según NOTIFY_DRIVER (log, redis, none).
func NewPublisher(cfg config.NotifyConfig, log zerolog.Logger) (Publisher, error) {
	switch cfg.Driver {
	case "", "log":
		return NewLogPublisher(log), nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return NewRedisPublisher(client, cfg.ChannelPrefix), nil
	case "none":
		return NopPublisher{}, nil
	default:
		return nil, fmt.Errorf("NOTIFY_DRIVER desconocido %q", cfg.Driver)
	}
}
