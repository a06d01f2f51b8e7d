// Package breeds caches the breed catalog for the lifetime of the process.
package breeds

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/okian/breedquiz/internal/domain/model"
	"github.com/okian/breedquiz/pkg/logger"
	"github.com/okian/breedquiz/pkg/metrics"
)

const flightKey = "catalog"

// CatalogFetcher loads the full breed catalog from upstream.
type CatalogFetcher interface {
	Catalog(ctx context.Context) (model.Catalog, error)
}

// Source yields the breed names a round can be drawn from.
type Source interface {
	Get(ctx context.Context) ([]string, error)
}

// Cache fetches the catalog at most once successfully and shares it with
// every caller. Concurrent callers that arrive while a fetch is outstanding
// wait on that same fetch. Failures are not cached.
type Cache struct {
	fetcher CatalogFetcher
	logger  logger.Logger

	mu     sync.RWMutex
	breeds []string // sorted; nil until the first non-empty fetch

	group   singleflight.Group
	fetches atomic.Int64
}

// Option applies a configuration option to the Cache.
type Option func(*Cache)

// WithLogger sets a custom logger for the cache.
func WithLogger(l logger.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates an empty cache backed by fetcher.
func New(fetcher CatalogFetcher, opts ...Option) *Cache {
	c := &Cache{
		fetcher: fetcher,
		logger:  logger.NamedOrNop("breeds"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the sorted breed names, fetching them on first use.
// A caller whose ctx ends stops waiting; the shared fetch keeps going for
// the others.
func (c *Cache) Get(ctx context.Context) ([]string, error) {
	if cached := c.snapshot(); cached != nil {
		metrics.RecordCatalogCacheHit()
		return cached, nil
	}

	ch := c.group.DoChan(flightKey, func() (any, error) {
		// A previous flight may have filled the cache between our read and DoChan.
		if cached := c.snapshot(); cached != nil {
			return cached, nil
		}
		return c.fetch(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return clone(res.Val.([]string)), nil
	}
}

// Fetches reports how many upstream catalog calls were issued.
func (c *Cache) Fetches() int64 {
	return c.fetches.Load()
}

// Len returns the number of cached breeds, zero before the first success.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.breeds)
}

func (c *Cache) fetch(ctx context.Context) ([]string, error) {
	c.fetches.Add(1)
	start := time.Now()

	catalog, err := c.fetcher.Catalog(ctx)
	if err != nil {
		metrics.RecordCatalogFetch(metrics.OutcomeError)
		c.logger.Warn(ctx, "breed catalog fetch failed",
			logger.Error(err),
			logger.Duration("took", time.Since(start)),
		)
		return nil, err
	}

	names := catalog.Breeds()
	sort.Strings(names)
	if len(names) == 0 {
		metrics.RecordCatalogFetch(metrics.OutcomeEmpty)
		c.logger.Warn(ctx, "breed catalog is empty; not caching")
		return []string{}, nil
	}

	c.mu.Lock()
	c.breeds = names
	c.mu.Unlock()

	metrics.RecordCatalogFetch(metrics.OutcomeSuccess)
	metrics.UpdateCatalogSize(len(names))
	c.logger.Info(ctx, "breed catalog cached",
		logger.Int("breeds", len(names)),
		logger.Duration("took", time.Since(start)),
	)
	return names, nil
}

func (c *Cache) snapshot() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.breeds == nil {
		return nil
	}
	return clone(c.breeds)
}

func clone(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
