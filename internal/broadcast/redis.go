package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tommyzliu/stickies/internal/settings"
)

// RedisMirror is a Window that republishes every snapshot as JSON on a
// Redis channel, for tooling that runs outside the window process tree.
type RedisMirror struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger
}

// NewRedisMirror connects to redisURL and verifies the connection.
func NewRedisMirror(redisURL, channel string, logger *slog.Logger) (*RedisMirror, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisMirrorWithClient(client, channel, logger), nil
}

// NewRedisMirrorWithClient creates a mirror from an existing client.
func NewRedisMirrorWithClient(client *redis.Client, channel string, logger *slog.Logger) *RedisMirror {
	return &RedisMirror{
		client:  client,
		channel: channel,
		logger:  logger,
	}
}

// Send publishes state. Transient Redis errors are logged and swallowed
// so the mirror stays subscribed; only a closed client ends it.
func (m *RedisMirror) Send(ctx context.Context, state settings.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	err = m.client.Publish(ctx, m.channel, data).Err()
	if errors.Is(err, redis.ErrClosed) {
		return err
	}
	if err != nil {
		m.logger.Warn("redis mirror publish failed", "channel", m.channel, "error", err)
	}
	return nil
}

// Close releases the Redis connection.
func (m *RedisMirror) Close() error {
	return m.client.Close()
}
