// Package cache holds decoded shadow geometries in process memory.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/eko/gocache/lib/v4/cache"
	gocachestore "github.com/eko/gocache/store/go_cache/v4"
	gocache "github.com/patrickmn/go-cache"
)

// Defaults for New when zero durations are given.
const (
	DefaultTTL             = 5 * time.Minute
	DefaultCleanupInterval = 10 * time.Minute
)

// Cache is a TTL cache keyed by group and object id.
type Cache struct {
	manager cache.CacheInterface[any]
}

// New creates an in-memory cache.
func New(ttl, cleanup time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if cleanup <= 0 {
		cleanup = DefaultCleanupInterval
	}
	store := gocachestore.NewGoCache(gocache.New(ttl, cleanup))
	return &Cache{manager: cache.New[any](store)}
}

// Key returns the cache key of an object in a group.
func Key(group string, id int64) string {
	return fmt.Sprintf("%s:%d", group, id)
}

// Get returns the cached value. Any store error counts as a miss.
func (c *Cache) Get(ctx context.Context, group string, id int64) (any, bool) {
	v, err := c.manager.Get(ctx, Key(group, id))
	if err != nil || v == nil {
		return nil, false
	}
	return v, true
}

// Set stores value until the TTL expires.
func (c *Cache) Set(ctx context.Context, group string, id int64, value any) error {
	return c.manager.Set(ctx, Key(group, id), value)
}

// Delete removes an entry. Removing a missing entry is not an error.
func (c *Cache) Delete(ctx context.Context, group string, id int64) error {
	return c.manager.Delete(ctx, Key(group, id))
}

// Clear removes every entry.
func (c *Cache) Clear(ctx context.Context) error {
	return c.manager.Clear(ctx)
}
