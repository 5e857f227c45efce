package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/corvuslab/meshbus/internal/hub"
)

// RedisRecentBuffer wraps a Sink with a capped Redis list holding the most
// recent events, so Recent() reads don't hit the primary store (Postgres).
// Writes still go to the underlying Sink first; the buffer is best-effort.
type RedisRecentBuffer struct {
	underlying Sink
	client     *redis.Client
	key        string
	capacity   int64
	logger     *slog.Logger
}

// RedisRecentBufferConfig configures NewRedisRecentBuffer.
type RedisRecentBufferConfig struct {
	Addr            string
	Password        string
	DB              int
	PoolSize        int
	MinIdleConns    int
	DialTimeout     time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	MaxRetries      int
	MinRetryBackoff time.Duration
	MaxRetryBackoff time.Duration
	Capacity        int64
}

// NewRedisRecentBuffer wraps underlying with a Redis-backed recent-event
// cache of the given capacity.
func NewRedisRecentBuffer(ctx context.Context, underlying Sink, cfg RedisRecentBufferConfig, logger *slog.Logger) (*RedisRecentBuffer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = 256
	}

	client := redis.NewClient(&redis.Options{
		Addr:            cfg.Addr,
		Password:        cfg.Password,
		DB:              cfg.DB,
		PoolSize:        cfg.PoolSize,
		MinIdleConns:    cfg.MinIdleConns,
		DialTimeout:     cfg.DialTimeout,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		MaxRetries:      cfg.MaxRetries,
		MinRetryBackoff: cfg.MinRetryBackoff,
		MaxRetryBackoff: cfg.MaxRetryBackoff,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("audit: connect redis: %w", err)
	}

	return &RedisRecentBuffer{
		underlying: underlying,
		client:     client,
		key:        "meshbus:audit:recent",
		capacity:   cfg.Capacity,
		logger:     logger,
	}, nil
}

func (b *RedisRecentBuffer) push(ctx context.Context, e Event) {
	data, err := json.Marshal(e)
	if err != nil {
		b.logger.Warn("audit: failed to marshal event for redis buffer", "error", err)
		return
	}
	pipe := b.client.TxPipeline()
	pipe.LPush(ctx, b.key, data)
	pipe.LTrim(ctx, b.key, 0, b.capacity-1)
	if _, err := pipe.Exec(ctx); err != nil {
		b.logger.Warn("audit: failed to push event to redis buffer", "error", err)
	}
}

// RecordResolution records to the underlying sink, then mirrors into the
// recent buffer.
func (b *RedisRecentBuffer) RecordResolution(ctx context.Context, hubID string, req hub.Request, resp hub.Response) error {
	if err := b.underlying.RecordResolution(ctx, hubID, req, resp); err != nil {
		return err
	}
	b.push(ctx, resolutionEvent(hubID, req, resp))
	return nil
}

// RecordPublish records to the underlying sink, then mirrors into the
// recent buffer.
func (b *RedisRecentBuffer) RecordPublish(ctx context.Context, hubID string, msg hub.Message, result hub.PublishResult) error {
	if err := b.underlying.RecordPublish(ctx, hubID, msg, result); err != nil {
		return err
	}
	b.push(ctx, publishEvent(hubID, msg, result))
	return nil
}

// Recent reads up to limit events from the Redis buffer, falling back to the
// underlying sink if the buffer can't serve the full request (e.g. cold
// start, capacity lower than limit, or a Redis error).
func (b *RedisRecentBuffer) Recent(ctx context.Context, limit int) ([]Event, error) {
	raw, err := b.client.LRange(ctx, b.key, 0, int64(limit)-1).Result()
	if err != nil {
		b.logger.Warn("audit: redis buffer read failed, falling back to underlying sink", "error", err)
		return b.underlying.Recent(ctx, limit)
	}
	if len(raw) < limit {
		return b.underlying.Recent(ctx, limit)
	}

	events := make([]Event, 0, len(raw))
	for _, item := range raw {
		var e Event
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			continue
		}
		events = append(events, e)
	}
	return events, nil
}

// Close closes the Redis client and the underlying sink.
func (b *RedisRecentBuffer) Close() error {
	if err := b.client.Close(); err != nil {
		return err
	}
	return b.underlying.Close()
}
