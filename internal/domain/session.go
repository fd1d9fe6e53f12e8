package domain

import (
	"encoding/json"
	"time"
)

// SessionState represents the state of a single adversarial session.
type SessionState string

const (
	SessionStatePending   SessionState = "pending"
	SessionStateRunning   SessionState = "running"
	SessionStateCompleted SessionState = "completed"
	SessionStateFailed    SessionState = "failed"
)

// IsTerminal reports whether the session has finished.
func (s SessionState) IsTerminal() bool {
	return s == SessionStateCompleted || s == SessionStateFailed
}

// Message roles. The adversary plays the simulated customer; the target is
// the support bot under test.
const (
	RoleHuman = "human"
	RoleAI    = "ai"
)

// Session is one adversarial conversation between the simulated customer and
// the target system. Owned by exactly one group.
type Session struct {
	SessionID  string       `json:"session_id"`
	GroupID    string       `json:"group_id"`
	TopicFocus string       `json:"topic_focus,omitempty"`
	State      SessionState `json:"state"`
	Error      string       `json:"error,omitempty"`
	StartedAt  *time.Time   `json:"started_at,omitempty"`
	EndedAt    *time.Time   `json:"ended_at,omitempty"`
}

// Message is a single transcript entry. Transcripts are append-only;
// insertion order is generation order.
type Message struct {
	MessageID string          `json:"message_id"`
	SessionID string          `json:"session_id"`
	Role      string          `json:"role"`
	Content   string          `json:"content"`
	CreatedAt time.Time       `json:"timestamp"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
}
