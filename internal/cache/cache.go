// Package cache wraps a Redis client with OpenTelemetry instrumentation and
// implements the Presence Tracker's Store boundary plus cross-node pub/sub
// replication. Adapted from 0DukePan's internal/cache/cache.go, retyped for
// int64 user ids and the Presence model instead of uuid.UUID PresenceState.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/chathub/sessionhub/internal/models"
)

const PresenceChannel = "presence_events"

var redisLatency metric.Float64Histogram

type Cache struct {
	client *redis.Client
}

// New creates a new Redis cache connection.
func New(dsn string) (*Cache, error) {
	var err error

	meter := otel.Meter("redis-client")
	redisLatency, err = meter.Float64Histogram("redis.command.latency", metric.WithUnit("ms"))
	if err != nil {
		return nil, fmt.Errorf("failed to create redis.command.latency instrument: %w", err)
	}

	opt, err := redis.ParseURL(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, span := otel.Tracer("redis-client").Start(context.Background(), "redis.ping")
	defer span.End()
	if err := client.Ping(ctx).Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to ping Redis")
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	span.SetStatus(codes.Ok, "Redis connected")

	return &Cache{client: client}, nil
}

// GetClient returns the underlying Redis client; direct use bypasses
// tracing/metrics, prefer the instrumented methods below.
func (c *Cache) GetClient() *redis.Client {
	return c.client
}

func (c *Cache) Close() error {
	return c.client.Close()
}

// Publish instruments a Publish operation.
func (c *Cache) Publish(ctx context.Context, channel string, message interface{}) error {
	start := time.Now()
	ctx, span := otel.Tracer("redis-client").Start(ctx, "redis.publish", trace.WithAttributes(attribute.String("redis.channel", channel)))
	defer func() {
		redisLatency.Record(ctx, float64(time.Since(start).Milliseconds()), metric.WithAttributes(attribute.String("redis.command", "publish")))
		span.End()
	}()
	err := c.client.Publish(ctx, channel, message).Err()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Redis publish failed")
	}
	return err
}

// Subscribe instruments a Subscribe operation. The returned PubSub is
// long-lived; the caller owns closing it.
func (c *Cache) Subscribe(ctx context.Context, channels ...string) *redis.PubSub {
	ctx, span := otel.Tracer("redis-client").Start(ctx, "redis.subscribe", trace.WithAttributes(attribute.StringSlice("redis.channels", channels)))
	defer span.End()
	return c.client.Subscribe(ctx, channels...)
}

// SetPresence implements presence.Store.
func (c *Cache) SetPresence(ctx context.Context, p models.Presence) error {
	start := time.Now()
	ctx, span := otel.Tracer("redis-client").Start(ctx, "redis.set_presence", trace.WithAttributes(attribute.Int64("user.id", p.UserID)))
	defer func() {
		redisLatency.Record(ctx, float64(time.Since(start).Milliseconds()), metric.WithAttributes(attribute.String("redis.command", "set_presence")))
		span.End()
	}()

	data, err := json.Marshal(p)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to marshal presence")
		return fmt.Errorf("failed to marshal presence: %w", err)
	}

	key := presenceKey(p.UserID)
	if err := c.client.Set(ctx, key, data, 0).Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to set presence")
		return err
	}
	return nil
}

// GetPresence implements presence.Store.
func (c *Cache) GetPresence(ctx context.Context, userID int64) (models.Presence, bool, error) {
	start := time.Now()
	ctx, span := otel.Tracer("redis-client").Start(ctx, "redis.get_presence", trace.WithAttributes(attribute.Int64("user.id", userID)))
	defer func() {
		redisLatency.Record(ctx, float64(time.Since(start).Milliseconds()), metric.WithAttributes(attribute.String("redis.command", "get_presence")))
		span.End()
	}()

	data, err := c.client.Get(ctx, presenceKey(userID)).Result()
	if err == redis.Nil {
		return models.Presence{}, false, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get presence")
		return models.Presence{}, false, fmt.Errorf("failed to get presence: %w", err)
	}

	var p models.Presence
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to unmarshal presence")
		return models.Presence{}, false, fmt.Errorf("failed to unmarshal presence: %w", err)
	}
	return p, true, nil
}

// DeletePresence implements presence.Store.
func (c *Cache) DeletePresence(ctx context.Context, userID int64) error {
	start := time.Now()
	ctx, span := otel.Tracer("redis-client").Start(ctx, "redis.delete_presence", trace.WithAttributes(attribute.Int64("user.id", userID)))
	defer func() {
		redisLatency.Record(ctx, float64(time.Since(start).Milliseconds()), metric.WithAttributes(attribute.String("redis.command", "delete_presence")))
		span.End()
	}()

	if err := c.client.Del(ctx, presenceKey(userID)).Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to delete presence")
		return err
	}
	return nil
}

// PublishPresence implements presence.Store: it broadcasts p to every other
// node subscribed to PresenceChannel, so a multi-node deployment's presence
// view stays consistent without every node hitting Postgres.
func (c *Cache) PublishPresence(ctx context.Context, p models.Presence) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal presence event: %w", err)
	}
	return c.Publish(ctx, PresenceChannel, data)
}

func presenceKey(userID int64) string {
	return fmt.Sprintf("presence:%d", userID)
}
