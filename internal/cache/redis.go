// Package cache provides a Redis-backed metadata cache for the query engine.
// Every failure path degrades to a cache miss: Redis being down slows
// queries, it never fails them.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"fin-series-store/internal/domain"
	"fin-series-store/internal/observability"
	"fin-series-store/internal/query"
)

// DefaultTTL bounds staleness of cached metadata blocks. Registry updates do
// not invalidate the cache; expiry is the only refresh mechanism.
const DefaultTTL = 5 * time.Minute

const keyPrefix = "series_meta:"

// SeriesMetadataCache implements query.MetadataCache on Redis.
type SeriesMetadataCache struct {
	client  *redis.Client
	ttl     time.Duration
	metrics *observability.Metrics
	logger  *zap.Logger
}

// New creates a cache around an existing Redis client. ttl <= 0 falls back
// to DefaultTTL; metrics and logger may be nil.
func New(client *redis.Client, ttl time.Duration, metrics *observability.Metrics, logger *zap.Logger) *SeriesMetadataCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SeriesMetadataCache{client: client, ttl: ttl, metrics: metrics, logger: logger}
}

// Connect dials Redis and verifies the connection.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Compile-time interface check.
var _ query.MetadataCache = (*SeriesMetadataCache)(nil)

// GetSeries returns cached blocks and the ids that missed. A Redis or decode
// failure turns the whole batch into misses.
func (c *SeriesMetadataCache) GetSeries(ctx context.Context, ids []int64) (map[int64]*domain.SeriesMetadata, []int64) {
	if len(ids) == 0 {
		return map[int64]*domain.SeriesMetadata{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = key(id)
	}

	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		c.countError()
		c.logger.Warn("metadata cache read failed", zap.Error(err))
		return map[int64]*domain.SeriesMetadata{}, ids
	}

	hits := make(map[int64]*domain.SeriesMetadata, len(ids))
	var missing []int64
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			missing = append(missing, ids[i])
			continue
		}
		var m domain.SeriesMetadata
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			c.countError()
			missing = append(missing, ids[i])
			continue
		}
		hits[ids[i]] = &m
	}
	return hits, missing
}

// SetSeries stores blocks with the configured TTL. Failures are logged and
// dropped.
func (c *SeriesMetadataCache) SetSeries(ctx context.Context, blocks map[int64]*domain.SeriesMetadata) {
	if len(blocks) == 0 {
		return
	}

	pipe := c.client.Pipeline()
	for id, m := range blocks {
		raw, err := json.Marshal(m)
		if err != nil {
			c.countError()
			continue
		}
		pipe.Set(ctx, key(id), raw, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.countError()
		c.logger.Warn("metadata cache write failed", zap.Error(err))
	}
}

// Ping reports whether Redis is reachable. Used by the health endpoint.
func (c *SeriesMetadataCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *SeriesMetadataCache) countError() {
	if c.metrics != nil {
		c.metrics.CacheErrors.Inc()
	}
}

func key(id int64) string {
	return fmt.Sprintf("%s%d", keyPrefix, id)
}
