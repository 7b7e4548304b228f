package domain

import "time"

// Session tracks one patient's conversation, keyed by an opaque id. The
// session store owns all Session values; callers mutate them only inside
// the store's Update callback, which holds the per-session lock.
type Session struct {
	ID             string      `json:"id"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
	Stage          Stage       `json:"stage"`
	Data           PatientData `json:"data"`
	History        []Message   `json:"history,omitempty"`
	Interactions   int         `json:"interactions"`
	GuidanceRounds int         `json:"guidanceRounds"`
	FlowStarted    bool        `json:"flowStarted"`

	// Institutions found for this patient once intake completed.
	Institutions []Institution `json:"institutions,omitempty"`
}

// Message is a single turn in a conversation.
type Message struct {
	Role      string    `json:"role"` // "user", "assistant", "system"
	Agent     string    `json:"agent,omitempty"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Append records a turn and refreshes the session's update time.
func (s *Session) Append(m Message) {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now()
	}
	s.History = append(s.History, m)
	s.UpdatedAt = m.Timestamp
}

// AdvanceTo moves the session forward to the given stage. Backward moves
// are ignored, which keeps stage monotonic no matter what a caller asks for.
func (s *Session) AdvanceTo(next Stage) {
	if s.Stage.Before(next) {
		s.Stage = next
	}
}
