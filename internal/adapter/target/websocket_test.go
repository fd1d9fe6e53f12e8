package target

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{}

// newTargetServer runs a minimal target: welcome frame on connect, then one
// scripted reply per query.
func newTargetServer(t *testing.T, reply func(question string) map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/ws/") {
			t.Errorf("unexpected path: %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		conn.WriteJSON(map[string]any{"type": "welcome", "session_id": strings.TrimPrefix(r.URL.Path, "/ws/")})

		for {
			var frame struct {
				Type     string `json:"type"`
				Question string `json:"question"`
			}
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			if err := conn.WriteJSON(reply(frame.Question)); err != nil {
				return
			}
		}
	}))
}

func wsURL(s *httptest.Server) string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func TestWSDialerRespond(t *testing.T) {
	server := newTargetServer(t, func(question string) map[string]any {
		return map[string]any{"type": "answer", "answer": "echo: " + question}
	})
	defer server.Close()

	dialer := NewWSDialer(time.Second)
	conn, err := dialer.Dial(context.Background(), wsURL(server), "grp-20260101-120000-ab12cd34-agent-1")
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	answer, err := conn.Respond(context.Background(), "what is the fee?")
	if err != nil {
		t.Fatalf("Respond failed: %v", err)
	}
	if answer != "echo: what is the fee?" {
		t.Fatalf("unexpected answer: %q", answer)
	}
}

func TestWSDialerErrorFrame(t *testing.T) {
	server := newTargetServer(t, func(question string) map[string]any {
		return map[string]any{"type": "error", "message": "Empty question"}
	})
	defer server.Close()

	dialer := NewWSDialer(time.Second)
	conn, err := dialer.Dial(context.Background(), wsURL(server), "s1")
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	_, err = conn.Respond(context.Background(), "")
	if err == nil {
		t.Fatalf("expected error from error frame")
	}
	if !strings.Contains(err.Error(), "Empty question") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWSDialerRespectsContextDeadline(t *testing.T) {
	server := newTargetServer(t, func(question string) map[string]any {
		time.Sleep(300 * time.Millisecond)
		return map[string]any{"type": "answer", "answer": "late"}
	})
	defer server.Close()

	dialer := NewWSDialer(time.Second)
	conn, err := dialer.Dial(context.Background(), wsURL(server), "s1")
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := conn.Respond(ctx, "slow one"); err == nil {
		t.Fatalf("expected deadline error")
	}
}

func TestSessionURL(t *testing.T) {
	tests := []struct {
		endpoint string
		want     string
	}{
		{"ws://host:8000", "ws://host:8000/ws/s1"},
		{"ws://host:8000/", "ws://host:8000/ws/s1"},
		{"ws://host:8000/ws", "ws://host:8000/ws/s1"},
	}
	for _, tt := range tests {
		if got := sessionURL(tt.endpoint, "s1"); got != tt.want {
			t.Errorf("sessionURL(%q) = %q, want %q", tt.endpoint, got, tt.want)
		}
	}
}
