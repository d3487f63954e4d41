package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"scoop_backend/internal/model"
)

const (
	// SummaryCachePrefix is the key prefix for cached user summaries
	SummaryCachePrefix = "summary:user:"

	// DefaultSummaryTTL bounds how stale a handle or avatar can be after a missed invalidation
	DefaultSummaryTTL = time.Minute
)

// SummaryCache stores live user summaries in front of the store.
// Using an interface enables testing with fakes and running without Redis.
type SummaryCache interface {
	// GetMany returns the cached summaries for ids. Misses are simply absent from the map.
	GetMany(ctx context.Context, ids []string) (map[string]model.UserSummary, error)

	// SetMany caches summaries with the configured TTL.
	// Uses a pipeline of SET EX commands.
	SetMany(ctx context.Context, summaries []model.UserSummary) error

	// Invalidate drops cached summaries, e.g. after a handle or avatar change.
	Invalidate(ctx context.Context, ids ...string) error
}

// RedisSummaryCache implements SummaryCache with plain string keys holding JSON.
type RedisSummaryCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewSummaryCache creates a new SummaryCache backed by Redis.
func NewSummaryCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisSummaryCache {
	if ttl <= 0 {
		ttl = DefaultSummaryTTL
	}
	return &RedisSummaryCache{client: client, ttl: ttl, logger: logger.Named("summary_cache")}
}

func summaryKey(userID string) string {
	return SummaryCachePrefix + userID
}

// GetMany uses a single MGET.
func (c *RedisSummaryCache) GetMany(ctx context.Context, ids []string) (map[string]model.UserSummary, error) {
	out := make(map[string]model.UserSummary, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = summaryKey(id)
	}

	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return out, fmt.Errorf("mget summaries: %w", err)
	}
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var s model.UserSummary
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			c.logger.Debug("dropping undecodable cache entry", zap.String("user_id", ids[i]), zap.Error(err))
			continue
		}
		out[ids[i]] = s
	}
	return out, nil
}

func (c *RedisSummaryCache) SetMany(ctx context.Context, summaries []model.UserSummary) error {
	if len(summaries) == 0 {
		return nil
	}
	pipe := c.client.Pipeline()
	for _, s := range summaries {
		raw, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("marshal summary: %w", err)
		}
		pipe.Set(ctx, summaryKey(s.ID), raw, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("set summaries: %w", err)
	}
	return nil
}

func (c *RedisSummaryCache) Invalidate(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = summaryKey(id)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("invalidate summaries: %w", err)
	}
	return nil
}
