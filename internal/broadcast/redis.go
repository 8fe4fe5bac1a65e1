package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/manolocortes/evTrak/internal/metrics"
	"github.com/manolocortes/evTrak/internal/types"
)

// DefaultChannel is the Redis pub/sub channel carrying tracker messages
// from the ingestion process to the realtime gateway.
const DefaultChannel = "shuttle-updates"

// RedisPublisher publishes tracker messages onto a Redis channel. It
// implements the tracking.Publisher interface for multi-process
// deployments where the gateway runs separately from the API.
type RedisPublisher struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger
}

// NewRedisPublisher creates a RedisPublisher. An empty channel selects
// DefaultChannel.
func NewRedisPublisher(client *redis.Client, channel string, logger *slog.Logger) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisPublisher{client: client, channel: channel, logger: logger}
}

// Publish serializes the message to JSON and publishes it. Delivery is
// fire-and-forget: Redis pub/sub holds no backlog, so a gateway that is not
// subscribed simply misses the message.
func (p *RedisPublisher) Publish(ctx context.Context, msg types.TrackerMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("broadcast: marshal tracker message: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, body).Err(); err != nil {
		return fmt.Errorf("broadcast: publish to %s: %w", p.channel, err)
	}
	return nil
}

// RunSubscriber subscribes to the Redis channel and feeds every received
// message into the Hub until the context is canceled. Malformed payloads
// are logged and skipped; they never terminate the loop.
func RunSubscriber(ctx context.Context, client *redis.Client, channel string, hub *Hub, logger *slog.Logger) error {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = slog.Default()
	}

	sub := client.Subscribe(ctx, channel)
	defer sub.Close()

	// Force the subscription round-trip so a bad Redis config fails fast
	// instead of silently dropping everything.
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("broadcast: subscribe to %s: %w", channel, err)
	}
	logger.Info("subscribed to distribution channel", "channel", channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return fmt.Errorf("broadcast: subscription to %s closed", channel)
			}
			var msg types.TrackerMessage
			if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
				metrics.PublishFailuresTotal.Inc()
				logger.Error("dropping malformed tracker message", "error", err)
				continue
			}
			_ = hub.Publish(ctx, msg)
		}
	}
}

// PingProbe is a health probe for the Redis connection, for use with the
// core health handler.
type PingProbe struct {
	Client *redis.Client
}

// Name identifies the probe.
func (PingProbe) Name() string { return "redis" }

// Check pings Redis, respecting the context deadline.
func (p PingProbe) Check(ctx context.Context) error {
	return p.Client.Ping(ctx).Err()
}
