// AngelaMos | 2026
// cache.go

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"
)

// Cache is a JSON layer over a Store that never fails the caller. Read and
// write errors are logged and reported as a miss.
type Cache struct {
	store   Store
	metrics Metrics
	logger  *slog.Logger
}

func New(store Store, metrics Metrics, logger *slog.Logger) *Cache {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		store:   store,
		metrics: metrics,
		logger:  logger,
	}
}

// GetJSON decodes the value under key into dest and reports whether it
// was found.
func (c *Cache) GetJSON(ctx context.Context, key string, dest any) bool {
	prefix := keyPrefix(key)

	raw, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			c.logger.WarnContext(ctx, "cache read failed",
				"key", key,
				"error", err,
			)
		}
		c.metrics.Miss(prefix)
		return false
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		c.logger.WarnContext(ctx, "cache entry corrupt",
			"key", key,
			"error", err,
		)
		c.metrics.Miss(prefix)
		return false
	}

	c.metrics.Hit(prefix)
	return true
}

func (c *Cache) SetJSON(
	ctx context.Context,
	key string,
	value any,
	ttl time.Duration,
) {
	raw, err := json.Marshal(value)
	if err != nil {
		c.logger.WarnContext(ctx, "cache encode failed",
			"key", key,
			"error", err,
		)
		return
	}

	if err := c.store.Set(ctx, key, raw, ttl); err != nil {
		c.logger.WarnContext(ctx, "cache write failed",
			"key", key,
			"error", err,
		)
	}
}

func (c *Cache) Delete(ctx context.Context, keys ...string) {
	if err := c.store.Del(ctx, keys...); err != nil {
		c.logger.WarnContext(ctx, "cache delete failed",
			"keys", keys,
			"error", err,
		)
	}
}

// keyPrefix strips the trailing identifier: "user:id:42" -> "user:id".
func keyPrefix(key string) string {
	if i := strings.LastIndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return key
}
