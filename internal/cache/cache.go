// Package cache implements a per-key TTL cache that coalesces concurrent
// loads of the same key into a single upstream call.
package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Loader fetches a fresh value for a key.
type Loader func(ctx context.Context) (any, error)

type entry struct {
	value     any
	timestamp time.Time
}

// Cache is safe for concurrent use. Entries live for the process lifetime.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	group   singleflight.Group
	now     func() time.Time
	logger  *zap.Logger
}

type Option func(*Cache)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func New(logger *zap.Logger, opts ...Option) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Cache{
		entries: make(map[string]*entry),
		now:     time.Now,
		logger:  logger.With(zap.String("component", "cache")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type getOptions struct {
	allowStaleOnError bool
}

type GetOption func(*getOptions)

// AllowStaleOnError re-serves the previous value when the loader fails.
func AllowStaleOnError() GetOption {
	return func(o *getOptions) { o.allowStaleOnError = true }
}

// Get returns the cached value for key when it is younger than ttl. Otherwise
// it runs loader, sharing a single in-flight call between all concurrent
// callers of the same key.
//
// A successful load stores the value with the current time. A failed load
// leaves the entry untouched so the next call retries, unless
// AllowStaleOnError is set and a previous value exists: then that value is
// returned, its timestamp is refreshed and the error is dropped.
func (c *Cache) Get(ctx context.Context, key string, ttl time.Duration, loader Loader, opts ...GetOption) (any, error) {
	var o getOptions
	for _, opt := range opts {
		opt(&o)
	}

	if v, ok := c.fresh(key, ttl); ok {
		return v, nil
	}

	// Upstream calls are bounded by their own timeouts and outlive the caller.
	loadCtx := context.WithoutCancel(ctx)

	v, err, _ := c.group.Do(key, func() (any, error) {
		// A flight that finished between the check above and Do already
		// refreshed the entry.
		if v, ok := c.fresh(key, ttl); ok {
			return v, nil
		}

		value, err := loader(loadCtx)

		c.mu.Lock()
		defer c.mu.Unlock()

		if err == nil {
			c.entries[key] = &entry{value: value, timestamp: c.now()}
			return value, nil
		}

		prev, ok := c.entries[key]
		if o.allowStaleOnError && ok {
			prev.timestamp = c.now()
			c.logger.Warn("Serving stale value after load failure",
				zap.String("key", key),
				zap.Error(err))
			return prev.value, nil
		}
		return nil, err
	})
	return v, err
}

func (c *Cache) fresh(key string, ttl time.Duration) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || c.now().Sub(e.timestamp) >= ttl {
		return nil, false
	}
	return e.value, true
}

// Fetch is Get with a typed loader and result.
func Fetch[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, loader func(context.Context) (T, error), opts ...GetOption) (T, error) {
	v, err := c.Get(ctx, key, ttl, func(ctx context.Context) (any, error) {
		return loader(ctx)
	}, opts...)
	if err != nil {
		var zero T
		return zero, err
	}
	t, _ := v.(T)
	return t, nil
}

// Invalidate drops key so the next Get loads it again.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Keys returns the cached keys in sorted order.
func (c *Cache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Age reports how long ago key was last refreshed.
func (c *Cache) Age(key string) (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return 0, false
	}
	return c.now().Sub(e.timestamp), true
}
