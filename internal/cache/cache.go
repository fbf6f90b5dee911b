package cache

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"ragspan/internal/domain"
	"ragspan/internal/metrics"
)

// DefaultComputeTimeout bounds a shared computation once it no longer
// follows any caller's context.
const DefaultComputeTimeout = 5 * time.Minute

// ComputeFunc produces the embedding for a key that is not cached yet.
type ComputeFunc func(ctx context.Context) ([]float64, error)

// Cache memoises embeddings in memory in front of a persistent store.
// Concurrent requests for the same key share a single computation.
type Cache struct {
	store   domain.CacheStore
	log     zerolog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	timeout time.Duration

	mu  sync.RWMutex
	mem map[domain.CacheKey][]float64

	group singleflight.Group
}

// Option configures a Cache.
type Option func(*Cache)

func WithLogger(l zerolog.Logger) Option { return func(c *Cache) { c.log = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(c *Cache) { c.metrics = m } }

func WithClock(now func() time.Time) Option { return func(c *Cache) { c.now = now } }

func WithComputeTimeout(d time.Duration) Option { return func(c *Cache) { c.timeout = d } }

// New wraps store. The cache takes no ownership: Close the store separately.
func New(store domain.CacheStore, opts ...Option) *Cache {
	c := &Cache{
		store:   store,
		log:     zerolog.Nop(),
		now:     time.Now,
		timeout: DefaultComputeTimeout,
		mem:     make(map[domain.CacheKey][]float64),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type flight struct {
	vec      []float64
	computed bool
}

// GetOrCompute returns the cached vector for key, running compute at most
// once per key when it is missing. A failed computation leaves nothing behind.
func (c *Cache) GetOrCompute(ctx context.Context, key domain.CacheKey, compute ComputeFunc) ([]float64, error) {
	vec, _, err := c.Fetch(ctx, key, compute)
	return vec, err
}

// Fetch is GetOrCompute that also reports whether compute ran for this call.
// The shared computation is detached from the caller that started it, so one
// caller giving up does not fail the others waiting on the same key.
func (c *Cache) Fetch(ctx context.Context, key domain.CacheKey, compute ComputeFunc) ([]float64, bool, error) {
	if key.DocumentHash == "" || key.ChunkID == "" || key.Model == "" {
		return nil, false, fmt.Errorf("%w: incomplete cache key %+v", domain.ErrInvalidArgument, key)
	}
	if vec, ok := c.memGet(key); ok {
		c.metrics.RecordCacheLookup("memory")
		return vec, false, nil
	}

	ch := c.group.DoChan(flightKey(key), func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		return c.load(fctx, key, compute)
	})
	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		f := res.Val.(flight)
		if res.Shared {
			c.metrics.RecordCacheLookup("shared")
		}
		return slices.Clone(f.vec), f.computed, nil
	}
}

// load runs inside the flight for key.
func (c *Cache) load(ctx context.Context, key domain.CacheKey, compute ComputeFunc) (flight, error) {
	// A previous flight may have finished between the caller's check and now.
	if vec, ok := c.memGet(key); ok {
		c.metrics.RecordCacheLookup("memory")
		return flight{vec: vec}, nil
	}

	vec, ok, err := c.store.Get(ctx, key)
	switch {
	case err != nil:
		c.metrics.RecordStoreFailure("get")
		c.log.Warn().Err(err).Str("chunk_id", key.ChunkID).Msg("cache store read failed, recomputing")
	case ok:
		c.metrics.RecordCacheLookup("store")
		c.memPut(key, vec)
		return flight{vec: vec}, nil
	}

	c.metrics.RecordCacheLookup("miss")
	start := time.Now()
	vec, err = compute(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrEmbeddingService) {
			err = fmt.Errorf("%w: %w", domain.ErrEmbeddingService, err)
		}
		return flight{}, err
	}
	if len(vec) == 0 {
		return flight{}, fmt.Errorf("%w: empty vector for chunk %s", domain.ErrEmbeddingService, key.ChunkID)
	}
	c.metrics.RecordEmbedding(time.Since(start))

	vec = slices.Clone(vec)
	entry := domain.CacheEntry{Key: key, Vector: vec, CreatedAt: c.now().UTC()}
	if err := c.store.Put(ctx, entry); err != nil {
		c.metrics.RecordStoreFailure("put")
		c.log.Warn().Err(err).Str("chunk_id", key.ChunkID).Msg("cache store write failed")
	}
	c.memPut(key, vec)
	return flight{vec: vec, computed: true}, nil
}

// Clear drops every entry from memory and from the store.
func (c *Cache) Clear(ctx context.Context) error {
	c.mu.Lock()
	clear(c.mem)
	c.mu.Unlock()
	if err := c.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear cache store: %w", err)
	}
	return nil
}

// PurgeStale removes entries whose model differs from model and returns
// how many persisted entries were dropped.
func (c *Cache) PurgeStale(ctx context.Context, model string) (int, error) {
	c.mu.Lock()
	for k := range c.mem {
		if k.Model != model {
			delete(c.mem, k)
		}
	}
	c.mu.Unlock()
	n, err := c.store.PurgeStale(ctx, model)
	if err != nil {
		return 0, fmt.Errorf("purge cache store: %w", err)
	}
	return n, nil
}

// Len returns the number of persisted entries.
func (c *Cache) Len(ctx context.Context) (int, error) {
	return c.store.Count(ctx)
}

func (c *Cache) memGet(key domain.CacheKey) ([]float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.mem[key]
	if !ok {
		return nil, false
	}
	return slices.Clone(v), true
}

func (c *Cache) memPut(key domain.CacheKey, vec []float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.mem[key]; !ok {
		c.mem[key] = slices.Clone(vec)
	}
}

func flightKey(k domain.CacheKey) string {
	return k.Model + "\x00" + k.DocumentHash + "\x00" + k.ChunkID
}
