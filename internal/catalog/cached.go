package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/unichart/unichart/internal/curriculum"
)

const cacheKeyPrefix = "unichart:template:"

// CachedCatalog wraps another catalog with a Redis cache. Cache failures
// are logged and fall through to the inner catalog; a broken cache only
// costs latency, never correctness. Not-found results are not cached.
type CachedCatalog struct {
	inner  Catalog
	client *redis.Client
	ttl    time.Duration
}

// NewCachedCatalog wraps a catalog with a Redis cache using the given TTL.
func NewCachedCatalog(inner Catalog, client *redis.Client, ttl time.Duration) *CachedCatalog {
	return &CachedCatalog{inner: inner, client: client, ttl: ttl}
}

func (c *CachedCatalog) Template(ctx context.Context, id string) (*curriculum.Template, error) {
	key := cacheKeyPrefix + id

	data, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var tmpl curriculum.Template
		if err := json.Unmarshal(data, &tmpl); err == nil {
			return &tmpl, nil
		}
		slog.Warn("dropping undecodable cached template", "template_id", id)
		c.client.Del(ctx, key)
	} else if !errors.Is(err, redis.Nil) {
		slog.Warn("template cache read failed", "template_id", id, "error", err)
	}

	tmpl, err := c.inner.Template(ctx, id)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(tmpl); err == nil {
		if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
			slog.Warn("template cache write failed", "template_id", id, "error", err)
		}
	}
	return tmpl, nil
}

func (c *CachedCatalog) Registry(ctx context.Context) ([]RegistryEntry, error) {
	return c.inner.Registry(ctx)
}
