package store

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/arpankumarde/havoc-machine/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return store
}

func newTestGroup(t *testing.T, store *SQLiteStore, groupID string, n int) []domain.Session {
	t.Helper()
	group := &domain.Group{
		GroupID: groupID,
		Config: domain.GroupConfig{
			TargetEndpoint:     "ws://localhost:8000",
			ParallelExecutions: n,
			DurationMinutes:    1,
		},
		Status:    domain.GroupStatusRunning,
		CreatedAt: time.Now().UTC(),
	}
	sessions := make([]domain.Session, n)
	for i := range sessions {
		sessions[i] = domain.Session{
			SessionID: fmt.Sprintf("%s-agent-%d", groupID, i+1),
			GroupID:   groupID,
			State:     domain.SessionStatePending,
		}
	}
	if err := store.CreateGroup(context.Background(), group, sessions); err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	return sessions
}

func TestSQLiteStoreGroupAndSessions(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()

	newTestGroup(t, store, "grp-test-1", 3)

	group, err := store.GetGroup(ctx, "grp-test-1")
	if err != nil {
		t.Fatalf("GetGroup failed: %v", err)
	}
	if group == nil {
		t.Fatal("expected group, got nil")
	}
	if group.Status != domain.GroupStatusRunning {
		t.Fatalf("expected running status, got %s", group.Status)
	}
	if len(group.SessionIDs) != 3 {
		t.Fatalf("expected 3 session IDs, got %d", len(group.SessionIDs))
	}
	if group.SessionIDs[0] != "grp-test-1-agent-1" || group.SessionIDs[2] != "grp-test-1-agent-3" {
		t.Fatalf("session IDs out of order: %v", group.SessionIDs)
	}
	if group.CompletedAt != nil {
		t.Fatalf("completed_at must be unset for a running group")
	}

	sess, err := store.GetSession(ctx, "grp-test-1-agent-2")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if sess == nil || sess.State != domain.SessionStatePending {
		t.Fatalf("unexpected session: %+v", sess)
	}

	missing, err := store.GetGroup(ctx, "grp-nope")
	if err != nil {
		t.Fatalf("GetGroup failed: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for unknown group, got %+v", missing)
	}
}

func TestSQLiteStoreSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()

	newTestGroup(t, store, "grp-test-1", 2)

	started := time.Now().UTC()
	if err := store.UpdateSessionStarted(ctx, "grp-test-1-agent-1", started); err != nil {
		t.Fatalf("UpdateSessionStarted failed: %v", err)
	}
	sess, err := store.GetSession(ctx, "grp-test-1-agent-1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if sess.State != domain.SessionStateRunning || sess.StartedAt == nil {
		t.Fatalf("unexpected session after start: %+v", sess)
	}

	count, err := store.CountTerminalSessions(ctx, "grp-test-1")
	if err != nil {
		t.Fatalf("CountTerminalSessions failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 terminal sessions, got %d", count)
	}

	ended := time.Now().UTC()
	if err := store.UpdateSessionEnded(ctx, "grp-test-1-agent-1", domain.SessionStateFailed, "target unreachable", ended); err != nil {
		t.Fatalf("UpdateSessionEnded failed: %v", err)
	}
	sess, err = store.GetSession(ctx, "grp-test-1-agent-1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if sess.State != domain.SessionStateFailed || sess.Error != "target unreachable" || sess.EndedAt == nil {
		t.Fatalf("unexpected session after end: %+v", sess)
	}

	// Terminal states are sticky.
	if err := store.UpdateSessionEnded(ctx, "grp-test-1-agent-1", domain.SessionStateCompleted, "", time.Now().UTC()); err != nil {
		t.Fatalf("UpdateSessionEnded failed: %v", err)
	}
	sess, _ = store.GetSession(ctx, "grp-test-1-agent-1")
	if sess.State != domain.SessionStateFailed {
		t.Fatalf("terminal state must not transition, got %s", sess.State)
	}

	count, err = store.CountTerminalSessions(ctx, "grp-test-1")
	if err != nil {
		t.Fatalf("CountTerminalSessions failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 terminal session, got %d", count)
	}
}

func TestSQLiteStoreMessagesOrdering(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()

	newTestGroup(t, store, "grp-test-1", 1)
	sessionID := "grp-test-1-agent-1"

	base := time.Now().UTC()
	for i := 0; i < 4; i++ {
		role := domain.RoleHuman
		if i%2 == 1 {
			role = domain.RoleAI
		}
		msg := &domain.Message{
			MessageID: fmt.Sprintf("msg_%d", i),
			SessionID: sessionID,
			Role:      role,
			Content:   fmt.Sprintf("turn %d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Millisecond),
		}
		if i == 3 {
			msg.Metadata = json.RawMessage(`{"markers":["fabricated_guarantee"]}`)
		}
		if err := store.CreateMessage(ctx, msg); err != nil {
			t.Fatalf("CreateMessage failed: %v", err)
		}
	}

	asc, err := store.GetMessages(ctx, sessionID, false)
	if err != nil {
		t.Fatalf("GetMessages failed: %v", err)
	}
	if len(asc) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(asc))
	}
	for i, msg := range asc {
		if msg.Content != fmt.Sprintf("turn %d", i) {
			t.Fatalf("ascending order broken at %d: %+v", i, msg)
		}
	}
	if len(asc[3].Metadata) == 0 {
		t.Fatalf("expected metadata on last message")
	}

	desc, err := store.GetMessages(ctx, sessionID, true)
	if err != nil {
		t.Fatalf("GetMessages failed: %v", err)
	}
	if desc[0].Content != "turn 3" || desc[3].Content != "turn 0" {
		t.Fatalf("descending order broken: %+v", desc)
	}

	// A poll after more appends is a superset with preserved order.
	if err := store.CreateMessage(ctx, &domain.Message{
		MessageID: "msg_4", SessionID: sessionID, Role: domain.RoleHuman,
		Content: "turn 4", CreatedAt: base.Add(4 * time.Millisecond),
	}); err != nil {
		t.Fatalf("CreateMessage failed: %v", err)
	}
	again, err := store.GetMessages(ctx, sessionID, false)
	if err != nil {
		t.Fatalf("GetMessages failed: %v", err)
	}
	if len(again) != 5 {
		t.Fatalf("expected 5 messages, got %d", len(again))
	}
	for i := range asc {
		if again[i].MessageID != asc[i].MessageID {
			t.Fatalf("existing entries reordered at %d", i)
		}
	}
}

func TestSQLiteStoreAggregationClaim(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()

	newTestGroup(t, store, "grp-test-1", 1)

	claimed, err := store.ClaimAggregation(ctx, "grp-test-1")
	if err != nil {
		t.Fatalf("ClaimAggregation failed: %v", err)
	}
	if !claimed {
		t.Fatal("first claim must succeed")
	}

	claimed, err = store.ClaimAggregation(ctx, "grp-test-1")
	if err != nil {
		t.Fatalf("ClaimAggregation failed: %v", err)
	}
	if claimed {
		t.Fatal("second claim must fail while held")
	}

	if err := store.ReleaseAggregation(ctx, "grp-test-1"); err != nil {
		t.Fatalf("ReleaseAggregation failed: %v", err)
	}
	claimed, err = store.ClaimAggregation(ctx, "grp-test-1")
	if err != nil {
		t.Fatalf("ClaimAggregation failed: %v", err)
	}
	if !claimed {
		t.Fatal("claim must succeed after release")
	}
}

func TestSQLiteStoreGroupTerminalTransitions(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()

	newTestGroup(t, store, "grp-test-1", 1)

	urls := domain.ReportURLs{Markdown: "https://x/reports/test-1.md", JSON: "https://x/reports/test-1.json"}
	if err := store.UpdateGroupCompleted(ctx, "grp-test-1", urls); err != nil {
		t.Fatalf("UpdateGroupCompleted failed: %v", err)
	}
	group, err := store.GetGroup(ctx, "grp-test-1")
	if err != nil {
		t.Fatalf("GetGroup failed: %v", err)
	}
	if group.Status != domain.GroupStatusCompleted {
		t.Fatalf("expected completed, got %s", group.Status)
	}
	if group.ReportURLs != urls {
		t.Fatalf("unexpected report urls: %+v", group.ReportURLs)
	}
	if group.CompletedAt == nil {
		t.Fatal("completed_at must be set")
	}
	first := *group.CompletedAt

	// completed_at is written exactly once.
	time.Sleep(5 * time.Millisecond)
	if err := store.UpdateGroupCompleted(ctx, "grp-test-1", urls); err != nil {
		t.Fatalf("UpdateGroupCompleted failed: %v", err)
	}
	group, _ = store.GetGroup(ctx, "grp-test-1")
	if !group.CompletedAt.Equal(first) {
		t.Fatalf("completed_at changed: %v -> %v", first, group.CompletedAt)
	}

	newTestGroup(t, store, "grp-test-2", 1)
	if err := store.UpdateGroupFailed(ctx, "grp-test-2", "upload failed"); err != nil {
		t.Fatalf("UpdateGroupFailed failed: %v", err)
	}
	group, err = store.GetGroup(ctx, "grp-test-2")
	if err != nil {
		t.Fatalf("GetGroup failed: %v", err)
	}
	if group.Status != domain.GroupStatusFailed || group.Error != "upload failed" {
		t.Fatalf("unexpected failed group: %+v", group)
	}
	if group.ReportURLs.Markdown != "" || group.ReportURLs.JSON != "" {
		t.Fatalf("failed group must not carry report urls: %+v", group.ReportURLs)
	}

	ids, err := store.ListGroupIDs(ctx)
	if err != nil {
		t.Fatalf("ListGroupIDs failed: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 groups, got %v", ids)
	}
}
