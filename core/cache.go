package core

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/signalsfoundry/coverage-guarantee/model"
)

type cachedVisibility struct {
	vis Visibility
	err error
}

// CachingOracle memoizes another oracle per (satellite ID, whole second).
// Unavailable answers are cached too, since oracles are deterministic per
// pair; context errors are not. Concurrent misses for the same key share one
// underlying query, which is not cancelled when one of its callers gives up.
type CachingOracle struct {
	next VisibilityOracle

	mu      sync.RWMutex
	entries map[string]cachedVisibility
	hits    int64
	misses  int64

	flight singleflight.Group
}

// NewCachingOracle wraps next.
func NewCachingOracle(next VisibilityOracle) *CachingOracle {
	return &CachingOracle{
		next:    next,
		entries: make(map[string]cachedVisibility),
	}
}

// Query implements VisibilityOracle.
func (c *CachingOracle) Query(ctx context.Context, sat model.SatelliteDescriptor, at time.Time) (Visibility, error) {
	key := cacheKey(sat.ID, at)

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		c.record(true)
		return entry.vis, entry.err
	}
	c.record(false)

	if err := ctx.Err(); err != nil {
		return Visibility{}, err
	}

	// The shared fill outlives any single caller; each caller only stops
	// waiting on its own context.
	fillCtx := context.WithoutCancel(ctx)
	ch := c.flight.DoChan(key, func() (interface{}, error) {
		c.mu.RLock()
		cached, ok := c.entries[key]
		c.mu.RUnlock()
		if ok {
			return cached, nil
		}
		vis, err := c.next.Query(fillCtx, sat, at)
		entry := cachedVisibility{vis: vis, err: err}
		if err == nil || errors.Is(err, ErrOracleUnavailable) {
			c.mu.Lock()
			c.entries[key] = entry
			c.mu.Unlock()
		}
		return entry, nil
	})
	select {
	case <-ctx.Done():
		return Visibility{}, ctx.Err()
	case res := <-ch:
		entry = res.Val.(cachedVisibility)
		return entry.vis, entry.err
	}
}

// Stats returns cumulative hit and miss counts.
func (c *CachingOracle) Stats() (hits, misses int64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}

// HitRatio returns hits / (hits + misses), or 0 before the first query.
func (c *CachingOracle) HitRatio() float64 {
	hits, misses := c.Stats()
	if hits+misses == 0 {
		return 0
	}
	return float64(hits) / float64(hits+misses)
}

// Len returns the number of cached answers.
func (c *CachingOracle) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Reset drops every cached answer. Counters are kept.
func (c *CachingOracle) Reset() {
	c.mu.Lock()
	c.entries = make(map[string]cachedVisibility)
	c.mu.Unlock()
}

func (c *CachingOracle) record(hit bool) {
	c.mu.Lock()
	if hit {
		c.hits++
	} else {
		c.misses++
	}
	c.mu.Unlock()
}

func cacheKey(satelliteID string, at time.Time) string {
	return satelliteID + "@" + strconv.FormatInt(at.Unix(), 10)
}
