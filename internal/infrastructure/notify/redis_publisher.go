package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher publica cada notificación como JSON en el canal de su región.
type RedisPublisher struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisPublisher prefix se antepone a los canales: <prefix>:region:<region>.
func NewRedisPublisher(client redis.UniversalClient, prefix string) *RedisPublisher {
	return &RedisPublisher{client: client, prefix: prefix}
}

// Channel canal de una región. Sin región (master) se usa <prefix>:global.
func (p *RedisPublisher) Channel(region string) string {
	if region == "" {
		return p.prefix + ":global"
	}
	return p.prefix + ":region:" + region
}

func (p *RedisPublisher) Publish(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := p.client.Publish(ctx, p.Channel(msg.Region), payload).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
