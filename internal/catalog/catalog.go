// Package catalog provides read-only snapshots of the service catalog for
// the matcher. Every turn consumes an explicit snapshot rather than ambient
// state, so matching stays a pure function under concurrent requests.
package catalog

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sevasetu/sevasetu/internal/store"
)

const cacheKey = "sevasetu:catalog"

// Lister reads the full seeded catalog. Implemented by *store.Store.
type Lister interface {
	ListServices(ctx context.Context) ([]store.Service, error)
}

// Cache serves catalog snapshots, optionally fronted by Redis so the chat
// path does not hit Postgres on every turn. Any Redis failure falls through
// to the store.
type Cache struct {
	Lister Lister
	Rdb    *redis.Client
	TTL    time.Duration
	Logger *log.Logger
}

// Snapshot returns the current catalog in stable (seed) order.
func (c *Cache) Snapshot(ctx context.Context) ([]store.Service, error) {
	if c.Rdb != nil {
		raw, err := c.Rdb.Get(ctx, cacheKey).Bytes()
		if err == nil {
			var services []store.Service
			if err := json.Unmarshal(raw, &services); err == nil {
				return services, nil
			}
		} else if err != redis.Nil && c.Logger != nil {
			c.Logger.Printf("catalog cache read failed: %v", err)
		}
	}

	services, err := c.Lister.ListServices(ctx)
	if err != nil {
		return nil, err
	}

	if c.Rdb != nil {
		if raw, err := json.Marshal(services); err == nil {
			ttl := c.TTL
			if ttl <= 0 {
				ttl = 5 * time.Minute
			}
			if err := c.Rdb.Set(ctx, cacheKey, raw, ttl).Err(); err != nil && c.Logger != nil {
				c.Logger.Printf("catalog cache write failed: %v", err)
			}
		}
	}
	return services, nil
}

// Invalidate drops the cached snapshot, used after seeding.
func (c *Cache) Invalidate(ctx context.Context) {
	if c.Rdb == nil {
		return
	}
	if err := c.Rdb.Del(ctx, cacheKey).Err(); err != nil && c.Logger != nil {
		c.Logger.Printf("catalog cache invalidate failed: %v", err)
	}
}
