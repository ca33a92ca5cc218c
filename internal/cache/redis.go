package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const expiredEventPattern = "__keyevent@*__:expired"

// RedisCache implements Cache on a Redis instance, using keyspace
// notifications for the expiry stream.
type RedisCache struct {
	client  *redis.Client
	pubsub  *redis.PubSub
	expired chan string
	logger  zerolog.Logger
}

func NewRedisCache(ctx context.Context, redisURL string, logger zerolog.Logger) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	// Expired-key events are off by default. Managed instances may refuse
	// CONFIG SET; in that case the operator has to enable "Ex" themselves.
	if err := client.ConfigSet(ctx, "notify-keyspace-events", "Ex").Err(); err != nil {
		logger.Warn().Err(err).Msg("could not enable keyspace notifications")
	}

	c := &RedisCache{
		client:  client,
		pubsub:  client.PSubscribe(ctx, expiredEventPattern),
		expired: make(chan string, 256),
		logger:  logger.With().Str("component", "cache").Logger(),
	}
	go c.consumeExpiry()

	return c, nil
}

func (c *RedisCache) consumeExpiry() {
	for msg := range c.pubsub.Channel() {
		select {
		case c.expired <- msg.Payload:
		default:
			c.logger.Warn().Str("key", msg.Payload).Msg("expiry stream full, dropping event")
		}
	}
	close(c.expired)
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	return val, err
}

func (c *RedisCache) Del(ctx context.Context, keys ...string) error {
	return c.client.Del(ctx, keys...).Err()
}

func (c *RedisCache) SAdd(ctx context.Context, key, member string) error {
	return c.client.SAdd(ctx, key, member).Err()
}

func (c *RedisCache) SRem(ctx context.Context, key, member string) error {
	return c.client.SRem(ctx, key, member).Err()
}

func (c *RedisCache) SMembers(ctx context.Context, key string) ([]string, error) {
	return c.client.SMembers(ctx, key).Result()
}

func (c *RedisCache) Expired() <-chan string {
	return c.expired
}

func (c *RedisCache) Close() error {
	if err := c.pubsub.Close(); err != nil {
		c.logger.Warn().Err(err).Msg("closing expiry subscription")
	}
	return c.client.Close()
}
