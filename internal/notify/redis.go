package notify

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/hackgods/availability-holds/internal/hold"
)

// RedisPublisher fans events out on a Redis pub/sub channel.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) Notify(ctx context.Context, ev hold.Event) error {
	body, err := NewMessage(ev).Encode()
	if err != nil {
		return fmt.Errorf("encode hold event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, body).Err(); err != nil {
		return fmt.Errorf("publish hold event to %s: %w", p.channel, err)
	}
	return nil
}
