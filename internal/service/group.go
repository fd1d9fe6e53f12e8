package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/arpankumarde/havoc-machine/internal/adapter/adversary"
	"github.com/arpankumarde/havoc-machine/internal/domain"
	"github.com/google/uuid"
)

// StartGroup validates the request, creates the group and its sessions
// atomically, and launches one runner goroutine per session.
func (s *Service) StartGroup(ctx context.Context, req domain.StartGroupRequest) (*domain.Group, error) {
	if err := req.Validate(s.config.MaxParallel, s.config.MaxDurationMinutes); err != nil {
		return nil, err
	}

	now := time.Now()
	groupID := fmt.Sprintf("grp-%s-%s", now.Format("20060102-150405"), uuid.New().String()[:8])

	sessions := make([]domain.Session, req.ParallelExecutions)
	sessionIDs := make([]string, req.ParallelExecutions)
	for i := 0; i < req.ParallelExecutions; i++ {
		sessionIDs[i] = fmt.Sprintf("%s-agent-%d", groupID, i+1)
		sessions[i] = domain.Session{
			SessionID:  sessionIDs[i],
			GroupID:    groupID,
			TopicFocus: adversary.TopicFocuses[i%len(adversary.TopicFocuses)],
			State:      domain.SessionStatePending,
		}
	}

	group := &domain.Group{
		GroupID:    groupID,
		SessionIDs: sessionIDs,
		Config: domain.GroupConfig{
			TargetEndpoint:     req.TargetEndpoint,
			ParallelExecutions: req.ParallelExecutions,
			DurationMinutes:    req.DurationMinutes,
		},
		Status:    domain.GroupStatusRunning,
		CreatedAt: now,
	}

	if err := s.store.CreateGroup(ctx, group, sessions); err != nil {
		return nil, fmt.Errorf("failed to create group: %w", err)
	}

	s.mu.Lock()
	s.trackers[groupID] = &groupTracker{remaining: int32(req.ParallelExecutions)}
	s.mu.Unlock()

	log.Printf("INFO: group %s started: %d sessions, %.1f min budget, target %s",
		groupID, req.ParallelExecutions, req.DurationMinutes, req.TargetEndpoint)

	budget := time.Duration(req.DurationMinutes * float64(time.Minute))
	for _, session := range sessions {
		go s.runSession(session.SessionID, groupID, req.TargetEndpoint, session.TopicFocus, budget)
	}

	return group, nil
}

// sessionDone is called by every runner exactly once. The runner that brings
// the group to all-terminal triggers aggregation.
func (s *Service) sessionDone(groupID string) {
	s.mu.Lock()
	tracker := s.trackers[groupID]
	s.mu.Unlock()

	// The tracker is registered before any runner launches, so it is always
	// present while runners live.
	if tracker == nil || !tracker.done() {
		return
	}

	s.mu.Lock()
	delete(s.trackers, groupID)
	s.mu.Unlock()

	if err := s.Aggregate(context.Background(), groupID); err != nil {
		log.Printf("ERROR: aggregation for group %s failed: %v", groupID, err)
	}
}

func (s *Service) GetGroup(ctx context.Context, groupID string) (*domain.Group, error) {
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	if group == nil {
		return nil, domain.ErrNotFound
	}
	return group, nil
}

func (s *Service) ListGroups(ctx context.Context) ([]string, error) {
	ids, err := s.store.ListGroupIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	return ids, nil
}

func (s *Service) GetGroupSessions(ctx context.Context, groupID string) ([]domain.Session, error) {
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	if group == nil {
		return nil, domain.ErrNotFound
	}

	sessions, err := s.store.GetGroupSessions(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to get sessions: %w", err)
	}
	return sessions, nil
}
