package v1

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/arpankumarde/havoc-machine/internal/domain"
	"github.com/labstack/echo/v4"
)

func TestGetSessionMessages(t *testing.T) {
	e := echo.New()
	h, db := newTestHandler(t)
	ctx := context.Background()

	group := &domain.Group{
		GroupID: "grp-20260101-130000-ab12cd34",
		Config: domain.GroupConfig{
			TargetEndpoint:     "ws://target:8000",
			ParallelExecutions: 1,
			DurationMinutes:    1,
		},
		Status:    domain.GroupStatusRunning,
		CreatedAt: time.Now(),
	}
	sessionID := group.GroupID + "-agent-1"
	sessions := []domain.Session{
		{SessionID: sessionID, GroupID: group.GroupID, State: domain.SessionStateRunning},
	}
	if err := db.CreateGroup(ctx, group, sessions); err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}

	base := time.Now()
	for i, content := range []string{"first probe", "first answer"} {
		role := domain.RoleHuman
		if i%2 == 1 {
			role = domain.RoleAI
		}
		msg := &domain.Message{
			MessageID: "msg_test" + string(rune('a'+i)),
			SessionID: sessionID,
			Role:      role,
			Content:   content,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := db.CreateMessage(ctx, msg); err != nil {
			t.Fatalf("CreateMessage failed: %v", err)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/"+sessionID+"/messages", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/v1/sessions/:session_id/messages")
	c.SetParamNames("session_id")
	c.SetParamValues(sessionID)

	if err := h.GetSessionMessages(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		SessionID    string           `json:"session_id"`
		MessageCount int              `json:"message_count"`
		Messages     []domain.Message `json:"messages"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.SessionID != sessionID || resp.MessageCount != 2 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	// Newest first.
	if resp.Messages[0].Content != "first answer" {
		t.Fatalf("expected newest message first, got %q", resp.Messages[0].Content)
	}
}

func TestGetSessionMessagesNotFound(t *testing.T) {
	e := echo.New()
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/unknown/messages", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/v1/sessions/:session_id/messages")
	c.SetParamNames("session_id")
	c.SetParamValues("unknown")

	if err := h.GetSessionMessages(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
