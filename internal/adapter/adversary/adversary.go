package adversary

import (
	"context"
	"time"

	"github.com/arpankumarde/havoc-machine/internal/domain"
)

// TopicFocuses are the probe areas assigned round-robin to the sessions of a
// group so parallel conversations cover different ground.
var TopicFocuses = []string{
	"policies, terms, and conditions",
	"pricing, costs, and financial details",
	"procedures, processes, and workflows",
	"contact information and support details",
	"coverage, benefits, and exclusions",
	"deadlines, timelines, and time-sensitive information",
	"edge cases and exceptions",
	"comparisons and rankings",
	"specific numbers, dates, and metrics",
	"interpretations and opinions",
}

// Adversary produces the next probing utterance for a session. The bool
// result reports a natural conclusion: true means the adversary considers
// the conversation resolved and the session should complete early.
type Adversary interface {
	NextUtterance(ctx context.Context, history []domain.Message, topicFocus string, timeRemaining time.Duration) (string, bool, error)
}
