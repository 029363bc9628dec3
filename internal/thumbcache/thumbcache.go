// Package thumbcache keeps recently used thumbnails materialized as
// small files so preview surfaces can reference them by path without
// touching the store on every render.
//
// The cache exclusively owns the lifetime of each materialized file:
// eviction and Clear remove the file from disk, and an optional
// eviction callback lets dependent presentation state clean up.
package thumbcache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"framepick/internal/logging"
	"framepick/internal/media"
	"framepick/internal/metrics"
	"framepick/internal/retry"
	"framepick/internal/store"
)

const (
	// DefaultMaxSize is the default entry cap.
	DefaultMaxSize = 200

	// evictFraction is the share of entries removed once the cap is hit.
	evictFraction = 0.2

	// maxConcurrentLoads bounds simultaneous thumbnail loads.
	maxConcurrentLoads = 10

	// Blob validation bounds.
	minBlobSize = 100
	maxBlobSize = 10 * 1024 * 1024

	// Preload pacing.
	preloadBatchSize = 4
	preloadDelay     = 50 * time.Millisecond
)

// blobValid is the blob sniffing hook, overridable in tests.
var blobValid = func(data []byte) bool {
	return len(data) >= minBlobSize && len(data) <= maxBlobSize && media.IsImage(data)
}

// Provider supplies thumbnail bytes and, when missing, the full frame
// payload to synthesize them from. *store.Store satisfies it.
type Provider interface {
	GetThumbnail(ctx context.Context, id string) ([]byte, error)
	GetBlob(ctx context.Context, id string) ([]byte, error)
	PutThumbnail(ctx context.Context, id string, data []byte) error
}

// Synthesizer turns a full frame payload into thumbnail bytes.
type Synthesizer func(data []byte) ([]byte, error)

type entry struct {
	id           string
	path         string
	lastAccessed time.Time
}

// Cache is an in-memory LRU over materialized thumbnail files.
type Cache struct {
	provider   Provider
	synthesize Synthesizer
	dir        string
	maxSize    int

	mu      sync.Mutex
	entries map[string]*entry
	loading map[string]struct{}

	slots   chan struct{}
	onEvict func(id string)

	slotPolicy retry.Policy
}

// New creates a cache that materializes files under dir. maxSize <= 0
// uses DefaultMaxSize.
func New(provider Provider, synthesize Synthesizer, dir string, maxSize int) (*Cache, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create thumbnail cache dir: %w", err)
	}
	return &Cache{
		provider:   provider,
		synthesize: synthesize,
		dir:        dir,
		maxSize:    maxSize,
		entries:    make(map[string]*entry),
		loading:    make(map[string]struct{}),
		slots:      make(chan struct{}, maxConcurrentLoads),
		slotPolicy: retry.Policy{
			MaxAttempts:    4,
			InitialBackoff: 100 * time.Millisecond,
			MaxBackoff:     400 * time.Millisecond,
		},
	}, nil
}

// SetEvictionCallback registers fn to run after an entry's file has
// been removed, with the evicted frame id.
func (c *Cache) SetEvictionCallback(fn func(id string)) {
	c.mu.Lock()
	c.onEvict = fn
	c.mu.Unlock()
}

// Get returns the materialized file path for a frame's thumbnail, or ""
// when it is not available yet. A miss with generateIfMissing triggers
// a background load; the caller is expected to re-request on its next
// render tick rather than block here. A miss for an id that is already
// loading returns "" immediately without queueing duplicate work.
func (c *Cache) Get(ctx context.Context, id string, generateIfMissing bool) string {
	c.mu.Lock()
	if e, ok := c.entries[id]; ok {
		e.lastAccessed = time.Now()
		c.mu.Unlock()
		metrics.ThumbCacheHits.Inc()
		return e.path
	}

	metrics.ThumbCacheMisses.Inc()

	if !generateIfMissing {
		c.mu.Unlock()
		return ""
	}

	if _, inFlight := c.loading[id]; inFlight {
		c.mu.Unlock()
		return ""
	}
	c.loading[id] = struct{}{}
	c.mu.Unlock()

	go c.load(ctx, id)
	return ""
}

// load fetches or synthesizes the thumbnail and materializes it.
func (c *Cache) load(ctx context.Context, id string) {
	defer func() {
		c.mu.Lock()
		delete(c.loading, id)
		c.mu.Unlock()
	}()

	// Respect the concurrency ceiling; beyond it the load is deferred
	// with backoff and eventually dropped.
	err := c.slotPolicy.Do(ctx, "thumbcache_slot", func() error {
		select {
		case c.slots <- struct{}{}:
			return nil
		default:
			return errors.New("thumbnail load slots exhausted")
		}
	}, nil)
	if err != nil {
		logging.Debug("dropping thumbnail load for %s: %v", id, err)
		return
	}
	defer func() { <-c.slots }()

	data, err := c.fetch(ctx, id)
	if err != nil {
		metrics.ThumbCacheLoadFailures.Inc()
		logging.Debug("thumbnail load failed for %s: %v", id, err)
		return
	}

	path := filepath.Join(c.dir, id+".jpg")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		metrics.ThumbCacheLoadFailures.Inc()
		logging.Warn("failed to materialize thumbnail %s: %v", id, err)
		return
	}

	c.mu.Lock()
	c.entries[id] = &entry{id: id, path: path, lastAccessed: time.Now()}
	metrics.ThumbCacheSize.Set(float64(len(c.entries)))
	evicted := c.evictLocked()
	c.mu.Unlock()

	c.removeEvicted(evicted)
}

// fetch returns validated thumbnail bytes, synthesizing and writing
// back from the full frame when the store has no thumbnail yet. An
// invalid blob is treated as a miss, not an error.
func (c *Cache) fetch(ctx context.Context, id string) ([]byte, error) {
	data, err := c.provider.GetThumbnail(ctx, id)
	switch {
	case err == nil && blobValid(data):
		return data, nil
	case err == nil:
		logging.Debug("stored thumbnail for %s failed validation, regenerating", id)
	case !errors.Is(err, store.ErrNotFound):
		return nil, err
	}

	blob, err := c.provider.GetBlob(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("no source frame for thumbnail: %w", err)
	}

	thumb, err := c.synthesize(blob)
	if err != nil {
		return nil, fmt.Errorf("thumbnail synthesis failed: %w", err)
	}
	if !blobValid(thumb) {
		return nil, errors.New("synthesized thumbnail failed validation")
	}

	// Write back so future sessions hit the store directly.
	if err := c.provider.PutThumbnail(ctx, id, thumb); err != nil {
		logging.Debug("thumbnail write-back failed for %s: %v", id, err)
	}

	return thumb, nil
}

// evictLocked removes the least recently accessed entries once the cap
// is exceeded. Caller holds the lock; file removal happens outside it.
func (c *Cache) evictLocked() []*entry {
	if len(c.entries) <= c.maxSize {
		return nil
	}

	all := make([]*entry, 0, len(c.entries))
	for _, e := range c.entries {
		all = append(all, e)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].lastAccessed.Before(all[j].lastAccessed)
	})

	n := int(float64(c.maxSize) * evictFraction)
	if n < 1 {
		n = 1
	}
	if over := len(c.entries) - c.maxSize; over > n {
		n = over
	}

	evicted := all[:n]
	for _, e := range evicted {
		delete(c.entries, e.id)
	}
	metrics.ThumbCacheSize.Set(float64(len(c.entries)))
	return evicted
}

func (c *Cache) removeEvicted(evicted []*entry) {
	if len(evicted) == 0 {
		return
	}

	c.mu.Lock()
	onEvict := c.onEvict
	c.mu.Unlock()

	for _, e := range evicted {
		if err := os.Remove(e.path); err != nil && !os.IsNotExist(err) {
			logging.Warn("failed to remove evicted thumbnail %s: %v", e.path, err)
		}
		metrics.ThumbCacheEvictions.Inc()
		if onEvict != nil {
			onEvict(e.id)
		}
	}
	logging.Debug("evicted %d thumbnail handles", len(evicted))
}

// Preload warms the cache for a list of frame ids in small batches with
// an inter-batch delay, bounding decode pressure during rapid scrolls.
func (c *Cache) Preload(ctx context.Context, ids []string) {
	for start := 0; start < len(ids); start += preloadBatchSize {
		if ctx.Err() != nil {
			return
		}

		end := start + preloadBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		for _, id := range ids[start:end] {
			c.Get(ctx, id, true)
		}

		if end < len(ids) {
			select {
			case <-ctx.Done():
				return
			case <-time.After(preloadDelay):
			}
		}
	}
}

// Size returns the current number of cached handles.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear revokes every handle and empties the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	all := make([]*entry, 0, len(c.entries))
	for _, e := range c.entries {
		all = append(all, e)
	}
	c.entries = make(map[string]*entry)
	metrics.ThumbCacheSize.Set(0)
	c.mu.Unlock()

	c.removeEvicted(all)
}
