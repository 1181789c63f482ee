package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBridge carries changes between processes through Redis pub/sub, for
// deployments where the database cannot LISTEN (SQLite, pooled PostgreSQL).
type RedisBridge struct {
	client  *redis.Client
	channel string
	hub     *Hub
}

// NewRedisBridge connects to the redis:// URL.
func NewRedisBridge(url string, hub *Hub) (*RedisBridge, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opts.DialTimeout = 3 * time.Second
	opts.ReadTimeout = 2 * time.Second
	opts.WriteTimeout = 2 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to reach redis: %w", err)
	}

	return &RedisBridge{client: client, channel: DefaultChannel, hub: hub}, nil
}

func (b *RedisBridge) Publish(ctx context.Context, c Change) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode change: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish change: %w", err)
	}
	return nil
}

// Run feeds received changes into the hub until ctx is cancelled. The client
// resubscribes on its own after connection errors.
func (b *RedisBridge) Run(ctx context.Context) {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()
	slog.Debug("realtime subscriber started", "channel", b.channel)

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-msgs:
			if !ok {
				return
			}
			err := deliver(ctx, b.hub, []byte(m.Payload))
			if errors.Is(err, ErrHubClosed) {
				return
			}
		}
	}
}

func (b *RedisBridge) Close() error {
	return b.client.Close()
}

// deliver decodes one bridged change and publishes it locally. Malformed
// payloads are logged and dropped.
func deliver(ctx context.Context, hub *Hub, payload []byte) error {
	var c Change
	if err := json.Unmarshal(payload, &c); err != nil {
		slog.Warn("dropping malformed change notification", "error", err)
		return nil
	}
	return hub.Publish(ctx, c)
}
