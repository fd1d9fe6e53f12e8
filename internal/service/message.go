package service

import (
	"context"
	"fmt"

	"github.com/arpankumarde/havoc-machine/internal/domain"
)

// SessionMessages returns a session's transcript newest-first, for the live
// polling view.
func (s *Service) SessionMessages(ctx context.Context, sessionID string) ([]domain.Message, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return nil, domain.ErrNotFound
	}

	messages, err := s.store.GetMessages(ctx, sessionID, true)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	return messages, nil
}
