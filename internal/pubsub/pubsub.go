// Package pubsub publishes analysis results to per-account topics.
//
// Delivery is fire-and-forget: a failed publish is logged and counted by
// the caller, never retried. Subscriber management is not part of the
// core, clients subscribe through whatever transport fronts the broker.
package pubsub

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ResultTopic returns the deterministic topic name for analysis results
// of an account.
func ResultTopic(accountID uint64) string {
	return fmt.Sprintf("/topic/analysis-result/%d", accountID)
}

// Publisher publishes a message on a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, message string) error
}

// RedisPublisher publishes messages via Redis PUBLISH.
type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, topic string, message string) error {
	err := p.client.Publish(ctx, topic, message).Err()
	if err != nil {
		return fmt.Errorf("publishing to %s: %w", topic, err)
	}

	return nil
}
