// Package cache provides a concurrency-safe key→value cache with
// time-to-live and optional refresh-ahead semantics: expired entries can
// be served stale while at most one background recomputation per key
// refreshes them. It fronts expensive, repeatable computations such as
// embedding generation.
//
// A Cache is constructed explicitly and passed by reference to its
// consumers — there is no package-level instance.
package cache

import (
	"sync"
	"sync/atomic"
	"time"
)

// Mode selects how Put behaves when the entry for a key is absent or
// expired.
type Mode int

const (
	// Synchronous blocks the caller on recomputation. The per-key lock
	// bounds recomputation to at most one concurrent build per key;
	// waiters re-check freshness after acquiring the lock and reuse the
	// winner's value.
	Synchronous Mode = iota

	// RefreshAhead returns the stale value immediately and starts at most
	// one background recomputation per key. A failed refresh is swallowed:
	// the stale value stays available and a later Put may retry. With no
	// previous value to serve, RefreshAhead degrades to Synchronous.
	RefreshAhead
)

// state is one immutable value+expiry snapshot. Entries swap whole
// snapshots atomically so readers never observe a torn pair.
type state[V any] struct {
	value     V
	expiresAt time.Time
}

// entry is the per-key cache slot. It is created on first use and lives
// until Clear.
type entry[V any] struct {
	// buildMu is the per-key build lock: at most one synchronous build or
	// one in-flight background refresh holds it.
	buildMu sync.Mutex
	// refreshing marks an in-flight background refresh.
	refreshing atomic.Bool
	// state holds the current snapshot; nil until the first successful
	// compute.
	state atomic.Pointer[state[V]]
}

// Cache is a generic TTL cache with per-key locking, so unrelated keys
// never contend. Safe for use by many goroutines.
type Cache[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]*entry[V]

	// putCalls and getCalls are the monotonically increasing request
	// counters behind the statistics.
	putCalls atomic.Uint64
	getCalls atomic.Uint64

	// statsMu guards the previous statistics snapshot.
	statsMu  sync.Mutex
	lastRead time.Time
	lastPut  uint64
	lastGet  uint64

	metrics *cacheMetrics
}

// New constructs an empty Cache.
func New[K comparable, V any](opts ...Option) *Cache[K, V] {
	var s settings
	for _, opt := range opts {
		opt(&s)
	}
	c := &Cache[K, V]{entries: make(map[K]*entry[V])}
	if s.registerer != nil {
		c.metrics = newCacheMetrics(s.registerer, s.name)
	}
	return c
}

// slot returns the entry for key, creating it on first use.
func (c *Cache[K, V]) slot(key K) *entry[V] {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return e
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok = c.entries[key]; ok {
		return e
	}
	e = &entry[V]{}
	c.entries[key] = e
	return e
}

// Put returns the cached value for key, computing it with computeFn when
// the entry is absent or expired. A live entry is returned immediately
// with no locking beyond the map read. ttl applies to the value stored by
// this call's compute (if any).
func (c *Cache[K, V]) Put(key K, ttl time.Duration, mode Mode, computeFn func() (V, error)) (V, error) {
	c.putCalls.Add(1)
	if c.metrics != nil {
		c.metrics.putCalls.Inc()
	}

	e := c.slot(key)
	now := time.Now()

	if st := e.state.Load(); st != nil && now.Before(st.expiresAt) {
		return st.value, nil
	}

	if mode == RefreshAhead {
		if st := e.state.Load(); st != nil {
			c.refreshAhead(e, ttl, computeFn)
			return st.value, nil
		}
		// No stale value to serve — build synchronously.
	}

	return c.buildSync(e, ttl, computeFn)
}

// buildSync recomputes the entry under its per-key lock with a freshness
// re-check, so concurrent callers for the same key trigger exactly one
// compute and all return its value.
func (c *Cache[K, V]) buildSync(e *entry[V], ttl time.Duration, computeFn func() (V, error)) (V, error) {
	e.buildMu.Lock()
	defer e.buildMu.Unlock()

	// A concurrent caller may have refreshed while we waited.
	if st := e.state.Load(); st != nil && time.Now().Before(st.expiresAt) {
		return st.value, nil
	}

	value, err := computeFn()
	if err != nil {
		var zero V
		return zero, err
	}
	e.state.Store(&state[V]{value: value, expiresAt: time.Now().Add(ttl)})
	if c.metrics != nil {
		c.metrics.builds.Inc()
	}
	return value, nil
}

// refreshAhead starts a background recomputation unless the per-key lock
// is held or a refresh is already in flight. The refresh runs to
// completion or failure — there is no cancellation and no timeout; the
// compute step bounds itself.
func (c *Cache[K, V]) refreshAhead(e *entry[V], ttl time.Duration, computeFn func() (V, error)) {
	if !e.buildMu.TryLock() {
		return
	}
	if e.refreshing.Load() {
		e.buildMu.Unlock()
		return
	}
	e.refreshing.Store(true)

	go func() {
		defer func() {
			e.refreshing.Store(false)
			e.buildMu.Unlock()
		}()
		value, err := computeFn()
		if err != nil {
			// Swallowed: the stale value remains; a later Put retries.
			return
		}
		e.state.Store(&state[V]{value: value, expiresAt: time.Now().Add(ttl)})
		if c.metrics != nil {
			c.metrics.builds.Inc()
		}
	}()
}

// Get returns the live value for key. It reports absence when the key is
// unknown or the entry has expired, and never triggers computation.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.getCalls.Add(1)
	if c.metrics != nil {
		c.metrics.getCalls.Inc()
	}

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		var zero V
		return zero, false
	}
	st := e.state.Load()
	if st == nil || !time.Now().Before(st.expiresAt) {
		var zero V
		return zero, false
	}
	return st.value, true
}

// Clear drops all entries. Provided for test isolation only — it is not
// safe to call against traffic expecting continuity.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[K]*entry[V])
}

// Stats is a point-in-time statistics snapshot.
type Stats struct {
	// PutCalls and GetCalls are the monotonic request counters.
	PutCalls uint64
	GetCalls uint64
	// PutPerSecond and GetPerSecond estimate the request rate from the
	// counter delta over the elapsed time since the previous Stats call.
	// The first call after construction (or ResetStats) reports 0.
	PutPerSecond float64
	GetPerSecond float64
}

// Stats returns current counters and the request-per-second estimate
// since the previous call.
func (c *Cache[K, V]) Stats() Stats {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()

	now := time.Now()
	puts := c.putCalls.Load()
	gets := c.getCalls.Load()

	s := Stats{PutCalls: puts, GetCalls: gets}
	if !c.lastRead.IsZero() {
		if elapsed := now.Sub(c.lastRead).Seconds(); elapsed > 0 {
			s.PutPerSecond = float64(puts-c.lastPut) / elapsed
			s.GetPerSecond = float64(gets-c.lastGet) / elapsed
		}
	}
	c.lastRead = now
	c.lastPut = puts
	c.lastGet = gets
	return s
}

// ResetStats clears the rate baseline so the next Stats call reports 0.
// Counters are not reset — they are monotonic for the cache's lifetime.
func (c *Cache[K, V]) ResetStats() {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	c.lastRead = time.Time{}
	c.lastPut = 0
	c.lastGet = 0
}
