package store

import (
	"sort"
	"sync"
	"time"

	"github.com/patienthero/patienthero/internal/domain"
)

// MemoryStore is the default in-process SessionStore. Each session carries
// its own mutex so concurrent requests to different sessions never contend.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*memoryEntry
}

type memoryEntry struct {
	mu   sync.Mutex
	sess *domain.Session
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*memoryEntry)}
}

// GetOrCreate returns the session with the given id, creating it if needed.
func (m *MemoryStore) GetOrCreate(id string) (*domain.Session, error) {
	m.mu.Lock()
	entry, ok := m.sessions[id]
	if !ok {
		now := time.Now()
		entry = &memoryEntry{sess: &domain.Session{
			ID:        id,
			CreatedAt: now,
			UpdatedAt: now,
			Stage:     domain.StageCollecting,
		}}
		m.sessions[id] = entry
	}
	m.mu.Unlock()

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return cloneSession(entry.sess), nil
}

// Get returns a snapshot of the session, and whether it exists.
func (m *MemoryStore) Get(id string) (*domain.Session, bool, error) {
	m.mu.RLock()
	entry, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return cloneSession(entry.sess), true, nil
}

// Update runs fn on the live session under its lock.
func (m *MemoryStore) Update(id string, fn func(*domain.Session) error) error {
	m.mu.RLock()
	entry, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if err := fn(entry.sess); err != nil {
		return err
	}
	entry.sess.UpdatedAt = time.Now()
	return nil
}

// Delete removes a session.
func (m *MemoryStore) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// List returns snapshots of all sessions, most recently updated first.
func (m *MemoryStore) List() ([]*domain.Session, error) {
	m.mu.RLock()
	entries := make([]*memoryEntry, 0, len(m.sessions))
	for _, e := range m.sessions {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	out := make([]*domain.Session, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, cloneSession(e.sess))
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}
