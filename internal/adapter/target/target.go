// Package target talks to the system under test over its websocket chat
// endpoint, one connection per session.
package target

import "context"

// Conn is an open conversation channel with the target system.
type Conn interface {
	// Respond sends one utterance and returns the target's reply.
	Respond(ctx context.Context, utterance string) (string, error)
	Close() error
}

// Dialer opens a Conn for a session against the given endpoint.
type Dialer interface {
	Dial(ctx context.Context, endpoint, sessionID string) (Conn, error)
}
