// Package store holds patient sessions, in memory or in SQLite.
package store

import (
	"errors"

	"github.com/patienthero/patienthero/internal/domain"
)

// ErrNotFound is returned when a session id is unknown.
var ErrNotFound = errors.New("session not found")

// SessionStore is the injected session storage used by the pipeline and the
// HTTP handlers.
//
// Concurrency contract: Update serializes mutations per session id — the
// callback runs while holding that session's lock, so two concurrent
// requests for the same session never interleave their read-modify-write.
// Get and GetOrCreate return snapshots that are safe to read without
// locking; mutating a snapshot has no effect on the store.
type SessionStore interface {
	// GetOrCreate returns the session with the given id, creating it in
	// StageCollecting if it does not exist.
	GetOrCreate(id string) (*domain.Session, error)

	// Get returns a snapshot of the session, and whether it exists.
	Get(id string) (*domain.Session, bool, error)

	// Update runs fn on the live session under its lock and persists the
	// result. Returns ErrNotFound for unknown ids; an error from fn aborts
	// the update.
	Update(id string, fn func(*domain.Session) error) error

	// Delete removes a session. Deleting an unknown id is not an error.
	Delete(id string) error

	// List returns snapshots of all sessions, most recently updated first.
	List() ([]*domain.Session, error)
}

// cloneSession copies a session deeply enough that callers can read the
// result without racing writers inside the store.
func cloneSession(s *domain.Session) *domain.Session {
	out := *s
	if s.History != nil {
		out.History = append([]domain.Message(nil), s.History...)
	}
	if s.Institutions != nil {
		out.Institutions = append([]domain.Institution(nil), s.Institutions...)
	}
	if s.Data.Symptoms != nil {
		out.Data.Symptoms = append([]string(nil), s.Data.Symptoms...)
	}
	if s.Data.Structured != nil {
		structured := make(map[string]any, len(s.Data.Structured))
		for k, v := range s.Data.Structured {
			structured[k] = v
		}
		out.Data.Structured = structured
	}
	return &out
}
