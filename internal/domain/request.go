package domain

import "fmt"

// StartGroupRequest is the request to launch a group of adversarial sessions.
type StartGroupRequest struct {
	TargetEndpoint     string  `json:"target_endpoint"`
	ParallelExecutions int     `json:"parallel_executions"`
	DurationMinutes    float64 `json:"duration_minutes"`
}

// ValidationError marks a request rejected before any resource was created.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// Validate checks the request against the configured ceilings. It must pass
// before any group or session record is written.
func (r *StartGroupRequest) Validate(maxParallel int, maxDurationMinutes float64) error {
	if r.TargetEndpoint == "" {
		return &ValidationError{Reason: "target_endpoint is required"}
	}
	if r.ParallelExecutions < 1 {
		return &ValidationError{Reason: "parallel_executions must be at least 1"}
	}
	if r.ParallelExecutions > maxParallel {
		return &ValidationError{Reason: fmt.Sprintf("parallel_executions must not exceed %d", maxParallel)}
	}
	if r.DurationMinutes <= 0 {
		return &ValidationError{Reason: "duration_minutes must be greater than 0"}
	}
	if r.DurationMinutes > maxDurationMinutes {
		return &ValidationError{Reason: fmt.Sprintf("duration_minutes must not exceed %g", maxDurationMinutes)}
	}
	return nil
}
