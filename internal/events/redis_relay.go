package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// redisPublisher is the subset of the go-redis client the relay needs.
type redisPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisRelay mirrors broadcast events onto a Redis Pub/Sub channel so
// dashboards in other processes can follow along.
type RedisRelay struct {
	client  redisPublisher
	channel string
}

// NewRedisRelay returns a relay publishing to channel.
func NewRedisRelay(client redisPublisher, channel string) *RedisRelay {
	return &RedisRelay{client: client, channel: channel}
}

// Handle satisfies EventHandler.
func (r *RedisRelay) Handle(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", r.channel, err)
	}
	return nil
}

// Attach registers the relay for every kind on d.
func (r *RedisRelay) Attach(d Dispatcher) {
	d.SubscribeAll(r.Handle)
}
