package target

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// queryFrame is the outbound wire frame understood by the target server.
type queryFrame struct {
	Type     string `json:"type"`
	Question string `json:"question"`
}

// replyFrame covers every inbound frame type: welcome on connect, answer,
// and error.
type replyFrame struct {
	Type      string `json:"type"`
	Answer    string `json:"answer,omitempty"`
	Message   string `json:"message,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// WSDialer dials targets over websocket.
type WSDialer struct {
	dialer *websocket.Dialer
}

// NewWSDialer creates a websocket dialer with the given handshake timeout.
func NewWSDialer(handshakeTimeout time.Duration) *WSDialer {
	return &WSDialer{
		dialer: &websocket.Dialer{HandshakeTimeout: handshakeTimeout},
	}
}

var _ Dialer = (*WSDialer)(nil)

// Dial connects to the target's per-session websocket URL and consumes the
// welcome frame. The session ID is appended to the endpoint path; endpoints
// without an explicit ws path get the conventional /ws prefix.
func (d *WSDialer) Dial(ctx context.Context, endpoint, sessionID string) (Conn, error) {
	url := sessionURL(endpoint, sessionID)

	conn, _, err := d.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial target %s: %w", url, err)
	}

	// The server greets each connection with a welcome frame; discard it so
	// the first Respond reads the first answer.
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetReadDeadline(deadline)
	}
	var welcome replyFrame
	if err := conn.ReadJSON(&welcome); err != nil {
		conn.Close()
		return nil, fmt.Errorf("read welcome frame: %w", err)
	}
	conn.SetReadDeadline(time.Time{})

	return &wsConn{conn: conn}, nil
}

func sessionURL(endpoint, sessionID string) string {
	switch {
	case strings.HasSuffix(endpoint, "/ws"):
		return endpoint + "/" + sessionID
	case strings.HasSuffix(endpoint, "/"):
		return endpoint + "ws/" + sessionID
	default:
		return endpoint + "/ws/" + sessionID
	}
}

type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) Respond(ctx context.Context, utterance string) (string, error) {
	deadline, hasDeadline := ctx.Deadline()
	if hasDeadline {
		c.conn.SetWriteDeadline(deadline)
		c.conn.SetReadDeadline(deadline)
	}

	if err := c.conn.WriteJSON(queryFrame{Type: "query", Question: utterance}); err != nil {
		return "", fmt.Errorf("send query: %w", err)
	}

	var reply replyFrame
	if err := c.conn.ReadJSON(&reply); err != nil {
		return "", fmt.Errorf("read reply: %w", err)
	}
	if hasDeadline {
		c.conn.SetWriteDeadline(time.Time{})
		c.conn.SetReadDeadline(time.Time{})
	}

	switch reply.Type {
	case "answer":
		return reply.Answer, nil
	case "error":
		return "", fmt.Errorf("target error: %s", reply.Message)
	default:
		return "", fmt.Errorf("unexpected frame type %q", reply.Type)
	}
}

func (c *wsConn) Close() error {
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return c.conn.Close()
}
