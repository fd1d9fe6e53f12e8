package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/arpankumarde/havoc-machine/internal/adapter/target"
	"github.com/arpankumarde/havoc-machine/internal/domain"
	"github.com/avast/retry-go"
	"github.com/google/uuid"
)

// targetConn wraps the per-session websocket and re-dials lazily, so a
// dropped connection is re-established on the next retry attempt instead of
// failing the session outright.
type targetConn struct {
	dialer    target.Dialer
	endpoint  string
	sessionID string
	conn      target.Conn
}

func (tc *targetConn) get(ctx context.Context) (target.Conn, error) {
	if tc.conn != nil {
		return tc.conn, nil
	}
	conn, err := tc.dialer.Dial(ctx, tc.endpoint, tc.sessionID)
	if err != nil {
		return nil, err
	}
	tc.conn = conn
	return conn, nil
}

func (tc *targetConn) drop() {
	if tc.conn != nil {
		tc.conn.Close()
		tc.conn = nil
	}
}

// runSession drives one adversarial conversation to a terminal state and
// always reports completion to the group, whatever happened.
func (s *Service) runSession(sessionID, groupID, endpoint, topicFocus string, budget time.Duration) {
	defer s.sessionDone(groupID)

	ctx := context.Background()
	startedAt := time.Now()

	if err := s.store.UpdateSessionStarted(ctx, sessionID, startedAt); err != nil {
		log.Printf("ERROR: failed to mark session %s running: %v", sessionID, err)
		s.endSession(ctx, sessionID, domain.SessionStateFailed, "could not start session")
		return
	}

	tc := &targetConn{dialer: s.targetDialer, endpoint: endpoint, sessionID: sessionID}
	defer tc.drop()

	state, errNote := s.converse(ctx, sessionID, topicFocus, tc, startedAt.Add(budget))
	s.endSession(ctx, sessionID, state, errNote)
}

// converse runs the turn loop until the deadline, a natural conclusion, or
// an unrecoverable error. The deadline is soft: it is checked at turn
// boundaries and in-flight calls run to completion.
func (s *Service) converse(ctx context.Context, sessionID, topicFocus string, tc *targetConn, deadline time.Time) (domain.SessionState, string) {
	var history []domain.Message

	for turn := 1; ; turn++ {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			log.Printf("INFO: session %s completed: time budget spent after %d turns", sessionID, turn-1)
			return domain.SessionStateCompleted, ""
		}

		utterance, resolved, err := s.nextUtterance(ctx, history, topicFocus, remaining)
		if err != nil {
			log.Printf("ERROR: session %s adversary failed on turn %d: %v", sessionID, turn, err)
			return domain.SessionStateFailed, fmt.Sprintf("adversary error: %v", err)
		}
		if resolved {
			log.Printf("INFO: session %s completed: conversation resolved after %d turns", sessionID, turn-1)
			return domain.SessionStateCompleted, ""
		}

		humanMsg, err := s.appendMessage(ctx, sessionID, domain.RoleHuman, utterance, nil)
		if err != nil {
			return domain.SessionStateFailed, fmt.Sprintf("transcript write error: %v", err)
		}
		history = append(history, *humanMsg)

		answer, err := s.respondWithRetry(ctx, tc, utterance)
		if err != nil {
			log.Printf("ERROR: session %s target unreachable on turn %d: %v", sessionID, turn, err)
			return domain.SessionStateFailed, fmt.Sprintf("target error: %v", err)
		}

		markers := s.judgeReply(ctx, sessionID, answer)
		aiMsg, err := s.appendMessage(ctx, sessionID, domain.RoleAI, answer, markers)
		if err != nil {
			return domain.SessionStateFailed, fmt.Sprintf("transcript write error: %v", err)
		}
		history = append(history, *aiMsg)

		if len(markers) > 0 {
			log.Printf("WARN: session %s turn %d tripped markers %v", sessionID, turn, markers)
		}

		time.Sleep(s.config.TurnDelay)
	}
}

func (s *Service) nextUtterance(ctx context.Context, history []domain.Message, topicFocus string, remaining time.Duration) (string, bool, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.config.LLMTimeout)
	defer cancel()
	return s.adversary.NextUtterance(callCtx, history, topicFocus, remaining)
}

// respondWithRetry sends one utterance over the session websocket with
// bounded backoff. The connection is dropped between attempts so each retry
// re-dials a fresh one.
func (s *Service) respondWithRetry(ctx context.Context, tc *targetConn, utterance string) (string, error) {
	var answer string

	err := retry.Do(
		func() error {
			callCtx, cancel := context.WithTimeout(ctx, s.config.TargetTimeout)
			defer cancel()

			conn, err := tc.get(callCtx)
			if err != nil {
				return err
			}
			answer, err = conn.Respond(callCtx, utterance)
			if err != nil {
				tc.drop()
				return err
			}
			return nil
		},
		retry.Attempts(uint(s.config.TargetRetries)),
		retry.Delay(s.config.TargetRetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return "", err
	}
	return answer, nil
}

// judgeReply evaluates a target reply against the transcript policy. Judge
// failures degrade to an unjudged message rather than failing the turn.
func (s *Service) judgeReply(ctx context.Context, sessionID, answer string) []string {
	if s.policyEngine == nil {
		return nil
	}
	markers, err := s.policyEngine.Evaluate(ctx, domain.RoleAI, answer)
	if err != nil {
		log.Printf("WARN: session %s policy evaluation failed: %v", sessionID, err)
		return nil
	}
	return markers
}

func (s *Service) appendMessage(ctx context.Context, sessionID, role, content string, markers []string) (*domain.Message, error) {
	msg := &domain.Message{
		MessageID: "msg_" + uuid.New().String()[:8],
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}
	if len(markers) > 0 {
		metadata, err := json.Marshal(map[string][]string{"markers": markers})
		if err != nil {
			return nil, fmt.Errorf("failed to encode markers: %w", err)
		}
		msg.Metadata = metadata
	}

	if err := s.store.CreateMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to save %s message: %w", role, err)
	}
	return msg, nil
}

func (s *Service) endSession(ctx context.Context, sessionID string, state domain.SessionState, errNote string) {
	if err := s.store.UpdateSessionEnded(ctx, sessionID, state, errNote, time.Now()); err != nil {
		log.Printf("ERROR: failed to mark session %s %s: %v", sessionID, state, err)
	}
}
