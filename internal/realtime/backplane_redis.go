package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// RedisBackplane relays envelopes through a Redis Pub/Sub channel.
type RedisBackplane struct {
	rdb     *redis.Client
	channel string
}

// NewRedisBackplane connects to redisURL and checks the connection.
func NewRedisBackplane(ctx context.Context, redisURL string) (*RedisBackplane, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisBackplane{rdb: rdb, channel: EventsExchange}, nil
}

func (b *RedisBackplane) Publish(ctx context.Context, env Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}
	return b.rdb.Publish(ctx, b.channel, body).Err()
}

func (b *RedisBackplane) Run(ctx context.Context, deliver func(Envelope)) error {
	sub := b.rdb.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", b.channel, err)
	}

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("redis subscription %s closed", b.channel)
			}
			if env, ok := decodeEnvelope([]byte(msg.Payload)); ok {
				deliver(env)
			}
		}
	}
}

func (b *RedisBackplane) Close() error {
	return b.rdb.Close()
}
