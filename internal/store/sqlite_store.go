package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/patienthero/patienthero/internal/domain"
	"github.com/patienthero/patienthero/internal/monitor"
)

// SQLiteStore is the durable SessionStore. Per-session mutual exclusion is
// a process-local lock map; the store assumes a single writer process, which
// is the service's deployment model.
type SQLiteStore struct {
	db    *DB
	locks sync.Map // session id -> *sync.Mutex
}

// NewSQLiteStore creates a session store using the given database.
func NewSQLiteStore(db *DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) lockFor(id string) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// GetOrCreate returns the session with the given id, creating it if needed.
func (s *SQLiteStore) GetOrCreate(id string) (*domain.Session, error) {
	mu := s.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	sess, ok, err := s.load(id)
	if err != nil {
		return nil, err
	}
	if ok {
		return sess, nil
	}

	now := time.Now()
	sess = &domain.Session{
		ID:        id,
		CreatedAt: now,
		UpdatedAt: now,
		Stage:     domain.StageCollecting,
	}
	_, err = s.db.sql.Exec(
		`INSERT INTO sessions (id, stage, data, institutions, created_at, updated_at)
		 VALUES (?, ?, '{}', '[]', ?, ?)`,
		sess.ID, sess.Stage.String(),
		now.UTC().Format(time.DateTime), now.UTC().Format(time.DateTime),
	)
	if err != nil {
		return nil, fmt.Errorf("creating session %s: %w", id, err)
	}
	return sess, nil
}

// Get returns a snapshot of the session, and whether it exists.
func (s *SQLiteStore) Get(id string) (*domain.Session, bool, error) {
	return s.load(id)
}

// Update runs fn on the loaded session under the per-session lock and writes
// the result back, appending any new history rows.
func (s *SQLiteStore) Update(id string, fn func(*domain.Session) error) error {
	mu := s.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	sess, ok, err := s.load(id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}

	before := len(sess.History)
	if err := fn(sess); err != nil {
		return err
	}
	sess.UpdatedAt = time.Now()

	return s.save(sess, before)
}

// Delete removes a session; messages cascade.
func (s *SQLiteStore) Delete(id string) error {
	_, err := s.db.sql.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting session %s: %w", id, err)
	}
	s.locks.Delete(id)
	return nil
}

// List returns all sessions, most recently updated first.
func (s *SQLiteStore) List() ([]*domain.Session, error) {
	rows, err := s.db.sql.Query(`SELECT id FROM sessions ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]*domain.Session, 0, len(ids))
	for _, id := range ids {
		sess, ok, err := s.load(id)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, sess)
		}
	}
	return out, nil
}

// RecordEvent persists a monitor event, making SQLiteStore usable as a
// monitor.Sink.
func (s *SQLiteStore) RecordEvent(ev monitor.Event) {
	var fields sql.NullString
	if len(ev.Fields) > 0 {
		if data, err := json.Marshal(ev.Fields); err == nil {
			fields = sql.NullString{String: string(data), Valid: true}
		}
	}
	_, err := s.db.sql.Exec(
		`INSERT INTO events (id, kind, session_id, fields, at) VALUES (?, ?, ?, ?, ?)`,
		ev.ID, ev.Kind, ev.SessionID, fields, ev.At.UTC().Format(time.DateTime),
	)
	if err != nil {
		s.db.log.Error().Err(err).Str("kind", ev.Kind).Msg("failed to record event")
	}
}

func (s *SQLiteStore) load(id string) (*domain.Session, bool, error) {
	var (
		sess                     domain.Session
		stage, dataJSON, instJSON string
		flowStarted              int
		createdAt, updatedAt     string
	)
	err := s.db.sql.QueryRow(
		`SELECT id, stage, data, institutions, interactions, guidance_rounds, flow_started, created_at, updated_at
		 FROM sessions WHERE id = ?`, id,
	).Scan(&sess.ID, &stage, &dataJSON, &instJSON, &sess.Interactions,
		&sess.GuidanceRounds, &flowStarted, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("loading session %s: %w", id, err)
	}

	if sess.Stage, err = domain.ParseStage(stage); err != nil {
		return nil, false, fmt.Errorf("session %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(dataJSON), &sess.Data); err != nil {
		return nil, false, fmt.Errorf("session %s data: %w", id, err)
	}
	if err := json.Unmarshal([]byte(instJSON), &sess.Institutions); err != nil {
		return nil, false, fmt.Errorf("session %s institutions: %w", id, err)
	}
	sess.FlowStarted = flowStarted != 0
	sess.CreatedAt, _ = time.Parse(time.DateTime, createdAt)
	sess.UpdatedAt, _ = time.Parse(time.DateTime, updatedAt)

	history, err := s.loadMessages(id)
	if err != nil {
		return nil, false, err
	}
	sess.History = history
	return &sess, true, nil
}

func (s *SQLiteStore) save(sess *domain.Session, historyBefore int) error {
	dataJSON, err := json.Marshal(sess.Data)
	if err != nil {
		return fmt.Errorf("encoding session data: %w", err)
	}
	instJSON, err := json.Marshal(sess.Institutions)
	if err != nil {
		return fmt.Errorf("encoding institutions: %w", err)
	}
	if sess.Institutions == nil {
		instJSON = []byte("[]")
	}

	tx, err := s.db.sql.Begin()
	if err != nil {
		return fmt.Errorf("begin session save: %w", err)
	}

	_, err = tx.Exec(
		`UPDATE sessions SET stage = ?, data = ?, institutions = ?, interactions = ?,
		        guidance_rounds = ?, flow_started = ?, updated_at = ?
		 WHERE id = ?`,
		sess.Stage.String(), string(dataJSON), string(instJSON), sess.Interactions,
		sess.GuidanceRounds, boolToInt(sess.FlowStarted),
		sess.UpdatedAt.UTC().Format(time.DateTime), sess.ID,
	)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("saving session %s: %w", sess.ID, err)
	}

	for _, msg := range sess.History[historyBefore:] {
		ts := msg.Timestamp
		if ts.IsZero() {
			ts = time.Now()
		}
		_, err = tx.Exec(
			`INSERT INTO messages (session_id, role, agent, content, timestamp) VALUES (?, ?, ?, ?, ?)`,
			sess.ID, msg.Role, msg.Agent, msg.Content, ts.UTC().Format(time.DateTime),
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("appending message: %w", err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) loadMessages(sessionID string) ([]domain.Message, error) {
	rows, err := s.db.sql.Query(
		`SELECT role, agent, content, timestamp FROM messages WHERE session_id = ? ORDER BY id`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("loading messages: %w", err)
	}
	defer rows.Close()

	var msgs []domain.Message
	for rows.Next() {
		var msg domain.Message
		var ts string
		if err := rows.Scan(&msg.Role, &msg.Agent, &msg.Content, &ts); err != nil {
			return nil, err
		}
		msg.Timestamp, _ = time.Parse(time.DateTime, ts)
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
