// Package store defines the storage interface and implementations.
package store

import (
	"context"
	"time"

	"github.com/arpankumarde/havoc-machine/internal/domain"
)

// Store defines the interface for data persistence. Get* methods return
// (nil, nil) when the record does not exist.
type Store interface {
	// Group operations. CreateGroup persists the group and all of its
	// sessions atomically, so clients can poll before any runner starts.
	CreateGroup(ctx context.Context, group *domain.Group, sessions []domain.Session) error
	GetGroup(ctx context.Context, groupID string) (*domain.Group, error)
	ListGroupIDs(ctx context.Context) ([]string, error)
	UpdateGroupCompleted(ctx context.Context, groupID string, urls domain.ReportURLs) error
	UpdateGroupFailed(ctx context.Context, groupID string, errMsg string) error

	// Aggregation claim. ClaimAggregation returns true for exactly one
	// caller while the claim is held; ReleaseAggregation frees it so a
	// failed aggregation can be redriven manually.
	ClaimAggregation(ctx context.Context, groupID string) (bool, error)
	ReleaseAggregation(ctx context.Context, groupID string) error

	// Session operations
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)
	GetGroupSessions(ctx context.Context, groupID string) ([]domain.Session, error)
	UpdateSessionStarted(ctx context.Context, sessionID string, at time.Time) error
	UpdateSessionEnded(ctx context.Context, sessionID string, state domain.SessionState, errMsg string, at time.Time) error
	CountTerminalSessions(ctx context.Context, groupID string) (int, error)

	// Message operations
	CreateMessage(ctx context.Context, message *domain.Message) error
	GetMessages(ctx context.Context, sessionID string, newestFirst bool) ([]domain.Message, error)

	Close() error
}
