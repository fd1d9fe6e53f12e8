package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/arpankumarde/havoc-machine/internal/domain"
)

// Aggregate builds and publishes the group report once every member session
// is terminal. It is idempotent: concurrent and repeated calls for the same
// group no-op after the first claim.
func (s *Service) Aggregate(ctx context.Context, groupID string) error {
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return fmt.Errorf("failed to get group: %w", err)
	}
	if group == nil {
		return domain.ErrNotFound
	}
	// A failed group may be aggregated again once the cause is fixed; only
	// a completed group is final.
	if group.Status == domain.GroupStatusCompleted {
		return nil
	}

	terminal, err := s.store.CountTerminalSessions(ctx, groupID)
	if err != nil {
		return fmt.Errorf("failed to count terminal sessions: %w", err)
	}
	if terminal < group.Config.ParallelExecutions {
		return fmt.Errorf("group %s not ready for aggregation: %d/%d sessions terminal",
			groupID, terminal, group.Config.ParallelExecutions)
	}

	claimed, err := s.store.ClaimAggregation(ctx, groupID)
	if err != nil {
		return fmt.Errorf("failed to claim aggregation: %w", err)
	}
	if !claimed {
		return nil
	}

	urls, err := s.publishReports(ctx, group)
	if err != nil {
		log.Printf("ERROR: report publication for group %s failed: %v", groupID, err)
		if failErr := s.store.UpdateGroupFailed(ctx, groupID, err.Error()); failErr != nil {
			log.Printf("ERROR: failed to mark group %s failed: %v", groupID, failErr)
		}
		// Release so a manual re-aggregation can retry after the cause is
		// fixed.
		if relErr := s.store.ReleaseAggregation(ctx, groupID); relErr != nil {
			log.Printf("ERROR: failed to release aggregation claim for %s: %v", groupID, relErr)
		}
		return err
	}

	if err := s.store.UpdateGroupCompleted(ctx, groupID, urls); err != nil {
		return fmt.Errorf("failed to mark group completed: %w", err)
	}

	log.Printf("INFO: group %s completed: reports at %s", groupID, urls.Markdown)
	return nil
}

// publishReports renders both artifacts from the full transcripts and
// uploads them. Keys drop the grp- prefix from the group ID.
func (s *Service) publishReports(ctx context.Context, group *domain.Group) (domain.ReportURLs, error) {
	sessions, err := s.store.GetGroupSessions(ctx, group.GroupID)
	if err != nil {
		return domain.ReportURLs{}, fmt.Errorf("failed to load sessions: %w", err)
	}

	transcripts := make(map[string][]domain.Message, len(sessions))
	for _, session := range sessions {
		messages, err := s.store.GetMessages(ctx, session.SessionID, false)
		if err != nil {
			return domain.ReportURLs{}, fmt.Errorf("failed to load transcript for %s: %w", session.SessionID, err)
		}
		transcripts[session.SessionID] = messages
	}

	jsonData, err := renderJSONReport(group, sessions, transcripts)
	if err != nil {
		return domain.ReportURLs{}, fmt.Errorf("failed to render JSON report: %w", err)
	}
	markdown := renderMarkdownReport(group, sessions, transcripts)

	reportID := strings.TrimPrefix(group.GroupID, "grp-")

	jsonURL, err := s.artifacts.Put(ctx, fmt.Sprintf("reports/%s.json", reportID), jsonData, "application/json")
	if err != nil {
		return domain.ReportURLs{}, fmt.Errorf("failed to upload JSON report: %w", err)
	}
	mdURL, err := s.artifacts.Put(ctx, fmt.Sprintf("reports/%s.md", reportID), []byte(markdown), "text/markdown")
	if err != nil {
		return domain.ReportURLs{}, fmt.Errorf("failed to upload markdown report: %w", err)
	}

	return domain.ReportURLs{Markdown: mdURL, JSON: jsonURL}, nil
}
