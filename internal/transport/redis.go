package transport

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher publishes over Redis pub/sub channels named after the
// destination.
type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(ctx context.Context, redisURL string) (*RedisPublisher, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisPublisher{client: client}, nil
}

func (p *RedisPublisher) Publish(ctx context.Context, destination string, payload []byte) error {
	return p.client.Publish(ctx, destination, payload).Err()
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
