package session

import (
	"maps"
	"sync"
	"time"
)

// DefaultTTL is used by MemoryStore when Save/Touch are called with
// ttl == 0.
const DefaultTTL = 30 * time.Minute

// DefaultSweepInterval is how often MemoryStore's background goroutine
// calls Cleanup.
const DefaultSweepInterval = time.Minute

// entry is the store record: {data, expiresAt} per spec.md's Store
// entry data model.
type entry struct {
	data      Data
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// MemoryStore is the in-memory reference Store implementation: a
// mutex-guarded map with a periodic sweep goroutine that drops expired
// entries.
type MemoryStore struct {
	mu            sync.Mutex
	entries       map[string]entry
	defaultTTL    time.Duration
	sweepInterval time.Duration

	stopSweep chan struct{}
	sweepDone chan struct{}
	disposed  bool
}

// MemoryStoreOption configures a MemoryStore at construction.
type MemoryStoreOption func(*MemoryStore)

// WithDefaultTTL overrides DefaultTTL.
func WithDefaultTTL(ttl time.Duration) MemoryStoreOption {
	return func(m *MemoryStore) { m.defaultTTL = ttl }
}

// WithSweepInterval overrides DefaultSweepInterval. A non-positive
// interval disables the background sweep goroutine; Cleanup must then be
// called explicitly by the host.
func WithSweepInterval(interval time.Duration) MemoryStoreOption {
	return func(m *MemoryStore) { m.sweepInterval = interval }
}

// NewMemoryStore constructs a MemoryStore and starts its sweep
// goroutine (unless disabled via WithSweepInterval).
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	m := &MemoryStore{
		entries:       make(map[string]entry),
		defaultTTL:    DefaultTTL,
		sweepInterval: DefaultSweepInterval,
		stopSweep:     make(chan struct{}),
		sweepDone:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.sweepInterval > 0 {
		go m.sweepLoop()
	} else {
		close(m.sweepDone)
	}
	return m
}

func (m *MemoryStore) sweepLoop() {
	defer close(m.sweepDone)
	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.Cleanup()
		case <-m.stopSweep:
			return
		}
	}
}

// Load implements Store.
func (m *MemoryStore) Load(id string) (Data, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	if !ok || e.expired(time.Now()) {
		return nil, false
	}
	return maps.Clone(e.data), true
}

// Save implements Store.
func (m *MemoryStore) Save(id string, data Data, ttl time.Duration) {
	if ttl <= 0 {
		ttl = m.defaultTTL
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[id] = entry{data: maps.Clone(data), expiresAt: time.Now().Add(ttl)}
}

// Destroy implements Store.
func (m *MemoryStore) Destroy(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, id)
}

// Touch implements Store.
func (m *MemoryStore) Touch(id string, ttl time.Duration) {
	if ttl <= 0 {
		ttl = m.defaultTTL
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	now := time.Now()
	if !ok || e.expired(now) {
		return
	}
	e.expiresAt = now.Add(ttl)
	m.entries[id] = e
}

// Cleanup implements Store, dropping all expired entries.
func (m *MemoryStore) Cleanup() {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, e := range m.entries {
		if e.expired(now) {
			delete(m.entries, id)
		}
	}
}

// Dispose implements Store: it stops the sweep goroutine and clears the
// map. A disposed MemoryStore must not be reused.
func (m *MemoryStore) Dispose() {
	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		return
	}
	m.disposed = true
	m.entries = make(map[string]entry)
	m.mu.Unlock()

	close(m.stopSweep)
	<-m.sweepDone
}

// Len reports the number of entries currently held, including any not
// yet swept that have expired. Intended for tests and health checks.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
