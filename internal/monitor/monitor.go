// Package monitor records what the pipeline does: per-session interaction
// counters, guardrail triggers, stage transitions, and a live event feed the
// dashboard subscribes to over the websocket endpoint.
package monitor

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/patienthero/patienthero/internal/logging"
)

// Event kinds emitted by the pipeline.
const (
	EventInteraction       = "interaction"
	EventStageChange       = "stage_change"
	EventGuardrail         = "guardrail"
	EventFallback          = "fallback"
	EventFlowStarted       = "flow_started"
	EventAppointmentsReady = "appointments_ready"
	EventSessionDeleted    = "session_deleted"
)

// Event is one recorded occurrence. IDs are ULIDs so events sort by time.
type Event struct {
	ID        string         `json:"id"`
	Kind      string         `json:"kind"`
	SessionID string         `json:"session_id,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
	At        time.Time      `json:"at"`
}

// Sink receives every emitted event, for durable storage. Sinks must not
// block; slow work belongs behind the sink's own buffering.
type Sink interface {
	RecordEvent(ev Event)
}

// Stats is a point-in-time snapshot of the counters.
type Stats struct {
	Interactions      int64            `json:"interactions"`
	Fallbacks         int64            `json:"fallbacks"`
	GuardrailTriggers map[string]int64 `json:"guardrail_triggers"`
	StageTransitions  map[string]int64 `json:"stage_transitions"`
	SessionCounters   map[string]int64 `json:"session_counters"`
}

const recentCap = 256

// Monitor keeps counters and fans emitted events out to subscribers and
// sinks. Subscribers that fall behind lose events rather than blocking the
// pipeline.
type Monitor struct {
	mu           sync.RWMutex
	interactions int64
	fallbacks    int64
	guardrails   map[string]int64
	stages       map[string]int64
	perSession   map[string]int64
	recent       []Event
	subs         map[int]chan Event
	nextSub      int
	sinks        []Sink
	log          *logging.Logger
}

// New creates a Monitor. Sinks are optional.
func New(log *logging.Logger, sinks ...Sink) *Monitor {
	return &Monitor{
		guardrails: make(map[string]int64),
		stages:     make(map[string]int64),
		perSession: make(map[string]int64),
		subs:       make(map[int]chan Event),
		sinks:      sinks,
		log:        log.Sub("monitor"),
	}
}

// Emit records an event, updates the counters it implies, and fans it out.
func (m *Monitor) Emit(kind, sessionID string, fields map[string]any) {
	ev := Event{
		ID:        ulid.Make().String(),
		Kind:      kind,
		SessionID: sessionID,
		Fields:    fields,
		At:        time.Now(),
	}

	m.mu.Lock()
	switch kind {
	case EventInteraction:
		m.interactions++
		m.perSession[sessionID]++
	case EventFallback:
		m.fallbacks++
	case EventGuardrail:
		if k, ok := fields["kind"].(string); ok {
			m.guardrails[k]++
		}
	case EventStageChange:
		if to, ok := fields["to"].(string); ok {
			m.stages[to]++
		}
	case EventSessionDeleted:
		delete(m.perSession, sessionID)
	}

	m.recent = append(m.recent, ev)
	if len(m.recent) > recentCap {
		m.recent = m.recent[len(m.recent)-recentCap:]
	}

	subs := make([]chan Event, 0, len(m.subs))
	for _, ch := range m.subs {
		subs = append(subs, ch)
	}
	sinks := m.sinks
	m.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- ev:
		default:
			// Slow subscriber; drop rather than stall the pipeline.
		}
	}
	for _, s := range sinks {
		s.RecordEvent(ev)
	}

	m.log.Debug().Str("kind", kind).Str("session_id", sessionID).Msg("event emitted")
}

// Subscribe returns a channel of future events and a cancel func. The
// channel is buffered; missing events under load is acceptable for the feed.
func (m *Monitor) Subscribe() (<-chan Event, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextSub
	m.nextSub++
	ch := make(chan Event, 64)
	m.subs[id] = ch

	cancel := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if existing, ok := m.subs[id]; ok {
			delete(m.subs, id)
			close(existing)
		}
	}
	return ch, cancel
}

// Snapshot returns the current counters.
func (m *Monitor) Snapshot() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := Stats{
		Interactions:      m.interactions,
		Fallbacks:         m.fallbacks,
		GuardrailTriggers: make(map[string]int64, len(m.guardrails)),
		StageTransitions:  make(map[string]int64, len(m.stages)),
		SessionCounters:   make(map[string]int64, len(m.perSession)),
	}
	for k, v := range m.guardrails {
		stats.GuardrailTriggers[k] = v
	}
	for k, v := range m.stages {
		stats.StageTransitions[k] = v
	}
	for k, v := range m.perSession {
		stats.SessionCounters[k] = v
	}
	return stats
}

// Recent returns the most recent events, newest last.
func (m *Monitor) Recent() []Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Event, len(m.recent))
	copy(out, m.recent)
	return out
}
