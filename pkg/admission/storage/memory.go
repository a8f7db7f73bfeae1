package storage

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryBackend implements Backend using in-process storage.
// This is the default backend: no I/O, no external dependencies, state
// scoped to a single instance and lost when the process exits.
//
// The key space is split across shards so that callers with different keys
// rarely touch the same lock. Within a shard, the map lock is held only to
// find or create an entry; the admission step itself runs under that entry's
// own lock, so concurrent checks for distinct keys proceed in parallel while
// checks for the same key serialize.
type MemoryBackend struct {
	shards []*shard

	// shardMask selects a shard from a key hash (shard count is a power
	// of two).
	shardMask uint32

	// maxPerShard bounds each shard's map; the stalest entry is evicted
	// when a new key would exceed it.
	maxPerShard int

	// clock returns the current time. Tests substitute a manual clock to
	// exercise window boundaries deterministically.
	clock func() time.Time
}

// shard is one stripe of the key space.
type shard struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// entry is the fixed-window state for a single key.
type entry struct {
	mu          sync.Mutex
	count       int64
	windowStart time.Time
	lastSeen    time.Time

	// gone marks an entry removed from its shard while a caller still
	// holds a pointer to it. Such callers re-fetch instead of counting
	// against a dead entry.
	gone bool
}

// MemoryConfig configures the memory backend.
type MemoryConfig struct {
	// Shards is the number of map shards. Rounded up to a power of two.
	// Default: 16
	Shards int

	// MaxEntries is the maximum number of tracked keys across all shards.
	// When a shard is full, its stalest entry is evicted to make room.
	// Default: 100,000
	MaxEntries int

	// Clock overrides the time source.
	// Default: time.Now
	Clock func() time.Time
}

// NewMemoryBackend creates an in-process entry store with default settings.
func NewMemoryBackend() *MemoryBackend {
	return NewMemoryBackendWithConfig(MemoryConfig{})
}

// NewMemoryBackendWithConfig creates an in-process entry store with custom
// configuration.
func NewMemoryBackendWithConfig(cfg MemoryConfig) *MemoryBackend {
	// Apply defaults
	if cfg.Shards <= 0 {
		cfg.Shards = 16
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 100000
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	shardCount := nextPowerOfTwo(cfg.Shards)
	maxPerShard := cfg.MaxEntries / shardCount
	if maxPerShard < 1 {
		maxPerShard = 1
	}

	m := &MemoryBackend{
		shards:      make([]*shard, shardCount),
		shardMask:   uint32(shardCount - 1),
		maxPerShard: maxPerShard,
		clock:       cfg.Clock,
	}
	for i := range m.shards {
		m.shards[i] = &shard{entries: make(map[string]*entry)}
	}

	return m
}

// CheckAndIncrement performs one atomic fixed-window admission step for key.
func (m *MemoryBackend) CheckAndIncrement(ctx context.Context, key string, limit int, window time.Duration) (Outcome, error) {
	if key == "" {
		return Outcome{}, fmt.Errorf("key cannot be empty")
	}
	if limit <= 0 {
		return Outcome{}, fmt.Errorf("limit must be positive, got %d", limit)
	}
	if window <= 0 {
		return Outcome{}, fmt.Errorf("window must be positive, got %v", window)
	}

	for {
		e := m.getOrCreate(key)

		e.mu.Lock()
		if e.gone {
			// Removed between lookup and lock; fetch a live entry.
			e.mu.Unlock()
			continue
		}

		now := m.clock()

		// Hard reset once the window has fully elapsed.
		if now.Sub(e.windowStart) >= window {
			e.count = 0
			e.windowStart = now
		}
		e.lastSeen = now

		out := Outcome{
			Count:      e.count,
			ResetAfter: e.windowStart.Add(window).Sub(now),
		}

		if e.count >= int64(limit) {
			// Rejected requests never consume budget.
			e.mu.Unlock()
			return out, nil
		}

		e.count++
		out.Allowed = true
		out.Count = e.count
		e.mu.Unlock()
		return out, nil
	}
}

// Sweep removes entries idle since before olderThan.
func (m *MemoryBackend) Sweep(ctx context.Context, olderThan time.Time) (int, error) {
	removed := 0
	for _, sh := range m.shards {
		select {
		case <-ctx.Done():
			return removed, ctx.Err()
		default:
		}

		sh.mu.Lock()
		for key, e := range sh.entries {
			e.mu.Lock()
			if e.lastSeen.Before(olderThan) {
				e.gone = true
				delete(sh.entries, key)
				removed++
			}
			e.mu.Unlock()
		}
		sh.mu.Unlock()
	}

	return removed, nil
}

// Ping always succeeds for the in-process backend.
func (m *MemoryBackend) Ping(ctx context.Context) error {
	return nil
}

// Close releases resources. The memory backend holds none.
func (m *MemoryBackend) Close() error {
	return nil
}

// Len returns the current number of tracked keys.
// This is useful for monitoring and testing.
func (m *MemoryBackend) Len() int {
	n := 0
	for _, sh := range m.shards {
		sh.mu.Lock()
		n += len(sh.entries)
		sh.mu.Unlock()
	}
	return n
}

// getOrCreate returns the live entry for key, creating it lazily with a
// fresh window.
func (m *MemoryBackend) getOrCreate(key string) *entry {
	sh := m.shards[fnv1a(key)&m.shardMask]

	sh.mu.Lock()
	defer sh.mu.Unlock()

	if e, ok := sh.entries[key]; ok {
		return e
	}

	if len(sh.entries) >= m.maxPerShard {
		sh.evictStalestLocked()
	}

	now := m.clock()
	e := &entry{windowStart: now, lastSeen: now}
	sh.entries[key] = e
	return e
}

// evictStalestLocked removes the least recently seen entry to make room.
// Caller must hold the shard lock.
func (sh *shard) evictStalestLocked() {
	var (
		stalestKey string
		stalest    *entry
		seenAt     time.Time
	)

	for key, e := range sh.entries {
		e.mu.Lock()
		last := e.lastSeen
		e.mu.Unlock()

		if stalest == nil || last.Before(seenAt) {
			stalestKey = key
			stalest = e
			seenAt = last
		}
	}

	if stalest != nil {
		stalest.mu.Lock()
		stalest.gone = true
		stalest.mu.Unlock()
		delete(sh.entries, stalestKey)
	}
}

// fnv1a hashes a key for shard selection (FNV-1a, 32 bit).
func fnv1a(s string) uint32 {
	const (
		offset32 = 2166136261
		prime32  = 16777619
	)

	h := uint32(offset32)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= prime32
	}
	return h
}

// nextPowerOfTwo rounds n up to the nearest power of two.
func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
