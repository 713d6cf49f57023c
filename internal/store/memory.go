// internal/store/memory.go
//
// In-memory implementation of the Store interface.
// Used for single-process deployments and tests.
//
// Characteristics:
//   - Keeps deep copies, never the caller's pointer: concurrent actions on
//     the same session each work on their own snapshot.
//   - Concurrency-safe via RWMutex (concurrent reads allowed, writes exclusive).
//   - Versions start at 1 and increment on every successful Put.
//   - State is lost when the process restarts.

package store

import (
	"context"
	"sync"
	"time"

	"github.com/wordclash/server/internal/game"
)

type entry struct {
	session *game.Session
	version uint64
	savedAt time.Time
}

// Memory is a map-based Store implementation.
type Memory struct {
	mu       sync.RWMutex // guards sessions map
	sessions map[string]*entry
	ttl      time.Duration
}

// NewMemoryStore constructs an in-memory Store. Sessions older than ttl
// are evicted lazily on read and by Sweep; ttl <= 0 disables expiry.
func NewMemoryStore(ttl time.Duration) *Memory {
	return &Memory{sessions: make(map[string]*entry), ttl: ttl}
}

func (m *Memory) expired(e *entry) bool {
	return m.ttl > 0 && time.Since(e.savedAt) > m.ttl
}

func (m *Memory) Get(ctx context.Context, code string) (*game.Session, uint64, error) {
	m.mu.RLock()
	e, ok := m.sessions[code]
	m.mu.RUnlock()
	if !ok || m.expired(e) {
		return nil, 0, ErrNotFound
	}
	return e.session.Clone(), e.version, nil
}

func (m *Memory) Put(ctx context.Context, code string, s *game.Session, expected uint64) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[code]
	if ok && m.expired(e) {
		delete(m.sessions, code)
		ok = false
	}
	switch {
	case !ok && expected != 0:
		return 0, ErrNotFound
	case ok && e.version != expected:
		return 0, ErrVersionConflict
	case !ok && expected == 0:
		e = &entry{}
		m.sessions[code] = e
	}
	e.session = s.Clone()
	e.version = expected + 1
	e.savedAt = time.Now()
	return e.version, nil
}

func (m *Memory) Delete(ctx context.Context, code string) error {
	m.mu.Lock()
	delete(m.sessions, code)
	m.mu.Unlock()
	return nil
}

// Sweep removes expired sessions and reports how many were evicted.
// Intended to be called from a periodic cleanup goroutine.
func (m *Memory) Sweep() int {
	if m.ttl <= 0 {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for code, e := range m.sessions {
		if m.expired(e) {
			delete(m.sessions, code)
			removed++
		}
	}
	return removed
}
