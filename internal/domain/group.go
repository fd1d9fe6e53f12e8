// Package domain defines the core domain models for the adversarial orchestrator.
package domain

import "time"

// GroupStatus represents the lifecycle status of a test group.
type GroupStatus string

const (
	GroupStatusRunning   GroupStatus = "running"
	GroupStatusCompleted GroupStatus = "completed"
	GroupStatusFailed    GroupStatus = "failed"
)

// IsTerminal reports whether no further status transitions occur.
func (s GroupStatus) IsTerminal() bool {
	return s == GroupStatusCompleted || s == GroupStatusFailed
}

// GroupConfig is the configuration a group was started with. Immutable after
// creation.
type GroupConfig struct {
	TargetEndpoint     string  `json:"target_endpoint"`
	ParallelExecutions int     `json:"parallel_executions"`
	DurationMinutes    float64 `json:"duration_minutes"`
}

// ReportURLs holds the locations of the published report artifacts. Both
// fields are set iff the group completed.
type ReportURLs struct {
	Markdown string `json:"markdown,omitempty"`
	JSON     string `json:"json,omitempty"`
}

// Group is a cohort of adversarial sessions launched together under one
// configuration.
type Group struct {
	GroupID     string      `json:"group_id"`
	SessionIDs  []string    `json:"session_ids"`
	Config      GroupConfig `json:"config"`
	Status      GroupStatus `json:"status"`
	ReportURLs  ReportURLs  `json:"report_urls"`
	Error       string      `json:"error,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
}
