// Package catalog implements the in-memory catalog cache and its derived
// candidate index. The cache holds the active CatalogSnapshot and
// publishes replacements atomically: build new, then swap the pointer,
// so an in-flight reader keeps its own reference to the prior buffer
// instead of observing a partially-rebuilt one.
package catalog

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"cvegs-matcher/pkg/models"
)

// Store is the external catalog store contract: query the latest active
// version identifier and fetch all rows of that version.
type Store interface {
	LatestVersion(ctx context.Context) (int64, error)
	LoadSnapshot(ctx context.Context, version int64) ([]models.CatalogRecord, error)
}

// Cache holds the active snapshot and rebuilds it on refresh. Zero value is
// not usable; construct with New.
type Cache struct {
	store Store

	snapshot atomic.Pointer[models.CatalogSnapshot]
	loadedAt atomic.Int64 // unix nanos of the last successful refresh

	indexMu      sync.Mutex
	indexVersion int64                      // snapshot version the cached indexes belong to
	indexes      map[int]*CandidateIndex    // year -> index, cleared whenever indexVersion changes

	stopAutoRefresh chan struct{}
}

// New constructs a Cache with no snapshot loaded yet; call Refresh before
// serving requests.
func New(store Store) *Cache {
	return &Cache{
		store:   store,
		indexes: make(map[int]*CandidateIndex),
	}
}

// Snapshot returns the currently active snapshot (nil if never loaded).
// Callers hold the returned pointer for the duration of a match; the cache
// never mutates a published snapshot in place, so the reference stays valid
// even if Refresh runs concurrently.
func (c *Cache) Snapshot() *models.CatalogSnapshot {
	return c.snapshot.Load()
}

// Refresh loads the latest active/loaded snapshot from the store and
// publishes it atomically. On failure the previous snapshot remains in
// service and the error is returned for logging — never surfaced to match
// requests.
func (c *Cache) Refresh(ctx context.Context) error {
	version, err := c.store.LatestVersion(ctx)
	if err != nil {
		return fmt.Errorf("catalog refresh: resolve latest version: %w", err)
	}

	records, err := c.store.LoadSnapshot(ctx, version)
	if err != nil {
		return fmt.Errorf("catalog refresh: load snapshot %d: %w", version, err)
	}

	// Embeddings are stored L2-normalized; records without one keep nil.
	for i := range records {
		vec := records[i].Embedding
		var sum float64
		for _, x := range vec {
			sum += float64(x) * float64(x)
		}
		if sum > 0 {
			norm := float32(math.Sqrt(sum))
			for j := range vec {
				vec[j] /= norm
			}
		}
	}

	next := &models.CatalogSnapshot{
		Version: version,
		Status:  models.StatusActive,
		Records: records,
	}
	next.Freeze()

	c.snapshot.Store(next)
	c.loadedAt.Store(time.Now().UnixNano())

	c.indexMu.Lock()
	c.indexes = make(map[int]*CandidateIndex) // stale indexes are invalidated
	c.indexVersion = version
	c.indexMu.Unlock()

	return nil
}

// Stale reports whether the active snapshot is older than maxAge.
func (c *Cache) Stale(maxAge time.Duration) bool {
	loaded := c.loadedAt.Load()
	if loaded == 0 {
		return true
	}
	return time.Since(time.Unix(0, loaded)) > maxAge
}

// StartAutoRefresh runs a background ticker that calls Refresh whenever the
// snapshot age exceeds interval. onError, if non-nil, is invoked with
// refresh failures for logging; the prior snapshot keeps serving requests
// regardless. Call StopAutoRefresh to end the loop.
func (c *Cache) StartAutoRefresh(ctx context.Context, interval time.Duration, onError func(error)) {
	c.stopAutoRefresh = make(chan struct{})
	tick := interval / 4
	if tick <= 0 {
		tick = time.Hour
	}
	ticker := time.NewTicker(tick)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.stopAutoRefresh:
				return
			case <-ticker.C:
				if c.Stale(interval) {
					if err := c.Refresh(ctx); err != nil && onError != nil {
						onError(err)
					}
				}
			}
		}
	}()
}

// StopAutoRefresh stops a previously started auto-refresh loop. Safe to call
// even if StartAutoRefresh was never called.
func (c *Cache) StopAutoRefresh() {
	if c.stopAutoRefresh != nil {
		close(c.stopAutoRefresh)
		c.stopAutoRefresh = nil
	}
}

// GetEmbedding returns the embedding for cvegs in the active snapshot, or
// nil if the record has none or doesn't exist. O(n) in this reference
// implementation; a production deployment would keep a cvegs->index map
// alongside ByYear.
func (c *Cache) GetEmbedding(cvegs string) []float32 {
	snap := c.Snapshot()
	if snap == nil {
		return nil
	}
	for i := range snap.Records {
		if snap.Records[i].CVEGS == cvegs {
			return snap.Records[i].Embedding
		}
	}
	return nil
}

// IndexForYear returns the CandidateIndex for year, building and caching
// it lazily on first access. Concurrent first-readers may redundantly
// compute — the result is equal either way, so the race is harmless.
func (c *Cache) IndexForYear(year int) *CandidateIndex {
	snap := c.Snapshot()
	if snap == nil {
		return emptyIndex()
	}

	c.indexMu.Lock()
	if c.indexVersion != snap.Version {
		c.indexes = make(map[int]*CandidateIndex)
		c.indexVersion = snap.Version
	}
	if idx, ok := c.indexes[year]; ok {
		c.indexMu.Unlock()
		return idx
	}
	c.indexMu.Unlock()

	idx := buildCandidateIndex(snap, year)

	c.indexMu.Lock()
	if c.indexVersion == snap.Version {
		c.indexes[year] = idx
	}
	c.indexMu.Unlock()

	return idx
}
