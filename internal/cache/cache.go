package cache

import (
	"strings"
	"sync"
	"time"
)

// Memory is a process-local result cache with TTL-only eviction. Expired
// entries are purged lazily by the lookup that discovers them; there is no
// LRU bound, which is an accepted growth risk for long-running workers.
// Construct one per worker at startup; safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]entry
	hits    map[string]int64
	misses  map[string]int64

	now func() time.Time // test hook
}

type entry struct {
	value     any
	createdAt time.Time
	ttl       time.Duration
}

func (e entry) expired(now time.Time) bool {
	return now.Sub(e.createdAt) >= e.ttl
}

// Stats is an operational snapshot of the cache.
type Stats struct {
	Entries        int              `json:"entries"`
	EstimatedBytes int64            `json:"estimated_bytes"`
	Hits           map[string]int64 `json:"hits"`
	Misses         map[string]int64 `json:"misses"`
}

func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]entry),
		hits:    make(map[string]int64),
		misses:  make(map[string]int64),
		now:     time.Now,
	}
}

// Get returns the live value for key. An expired entry is deleted and
// reported as a miss.
func (m *Memory) Get(key string) (any, bool) {
	m.mu.RLock()
	e, ok := m.entries[key]
	now := m.now()
	m.mu.RUnlock()

	group := counterGroup(key)

	if ok && !e.expired(now) {
		m.mu.Lock()
		m.hits[group]++
		m.mu.Unlock()
		return e.value, true
	}

	m.mu.Lock()
	if ok {
		// re-check under the write lock; another writer may have refreshed it
		if e2, still := m.entries[key]; still && e2.expired(m.now()) {
			delete(m.entries, key)
		}
	}
	m.misses[group]++
	m.mu.Unlock()
	return nil, false
}

// Set stores value under key. Last write wins on collision.
func (m *Memory) Set(key string, value any, ttl time.Duration) {
	m.mu.Lock()
	m.entries[key] = entry{value: value, createdAt: m.now(), ttl: ttl}
	m.mu.Unlock()
}

func (m *Memory) Delete(keys ...string) {
	m.mu.Lock()
	for _, k := range keys {
		delete(m.entries, k)
	}
	m.mu.Unlock()
}

// Clear removes entries whose key starts with prefix; an empty prefix
// removes everything. Returns the number removed.
func (m *Memory) Clear(prefix string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for k := range m.entries {
		if prefix == "" || strings.HasPrefix(k, prefix) {
			delete(m.entries, k)
			n++
		}
	}
	return n
}

// GetOrCompute returns the cached value for key, or runs compute, stores its
// result, and returns it. The second return reports whether the value came
// from cache; on a hit compute never runs and none of its side effects fire.
func (m *Memory) GetOrCompute(key string, ttl time.Duration, compute func() (any, error)) (any, bool, error) {
	if v, ok := m.Get(key); ok {
		return v, true, nil
	}
	v, err := compute()
	if err != nil {
		return nil, false, err
	}
	m.Set(key, v, ttl)
	return v, false, nil
}

// Stats reports entry count, a rough size estimate, and per-group hit/miss
// counters (group = key prefix up to the trailing hash).
func (m *Memory) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Stats{
		Entries: len(m.entries),
		Hits:    make(map[string]int64, len(m.hits)),
		Misses:  make(map[string]int64, len(m.misses)),
	}
	for k, e := range m.entries {
		s.EstimatedBytes += int64(len(k)) + estimateSize(e.value)
	}
	for k, v := range m.hits {
		s.Hits[k] = v
	}
	for k, v := range m.misses {
		s.Misses[k] = v
	}
	return s
}

func estimateSize(v any) int64 {
	switch t := v.(type) {
	case string:
		return int64(len(t))
	case []byte:
		return int64(len(t))
	case nil:
		return 0
	default:
		return 64
	}
}

// counterGroup strips the trailing argument hash so hit/miss counters
// aggregate per operation rather than per call.
func counterGroup(key string) string {
	if i := strings.LastIndex(key, ":"); i > 0 {
		return key[:i]
	}
	return key
}
