package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/herald/herald/internal/logger"
)

type redisPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) error
}

// RedisPublisher sends events over Redis pub/sub
type RedisPublisher struct {
	rdb     redisPublisher
	channel string
	log     *logger.Logger
}

// NewRedisPublisher creates a publisher on the given pub/sub channel
func NewRedisPublisher(rdb redisPublisher, channel string, log *logger.Logger) *RedisPublisher {
	return &RedisPublisher{rdb: rdb, channel: channel, log: log.WithComponent("redis_events")}
}

func (p *RedisPublisher) Publish(ctx context.Context, e Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if err := p.rdb.Publish(ctx, p.channel, b); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", e.Type, err)
	}
	return nil
}

// Close is a no-op; the Redis client is owned by the caller
func (p *RedisPublisher) Close() error { return nil }
