package service

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/arpankumarde/havoc-machine/internal/domain"
)

type reportMessage struct {
	Timestamp time.Time `json:"timestamp"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Markers   []string  `json:"markers,omitempty"`
}

type sessionReport struct {
	SessionID  string          `json:"session_id"`
	State      string          `json:"state"`
	TopicFocus string          `json:"topic_focus"`
	Error      string          `json:"error,omitempty"`
	Turns      int             `json:"turns"`
	Violations int             `json:"violations"`
	Messages   []reportMessage `json:"messages"`
}

// recommendationsByMarker maps each policy marker to remediation advice for
// the markdown report.
var recommendationsByMarker = map[string]string{
	"system_prompt_leak":      "Harden the system prompt against meta-questions; the assistant disclosed details about its own instructions.",
	"fabricated_guarantee":    "Add grounding checks before absolute claims; the assistant issued guarantees its documentation cannot back.",
	"off_policy_disclosure":   "Review retrieval scope and tone guidance; the assistant referenced internal or confidential material.",
	"unsupported_specificity": "Require source citations for figures; the assistant produced exact numbers without documented backing.",
}

func buildSessionReports(sessions []domain.Session, transcripts map[string][]domain.Message) []sessionReport {
	reports := make([]sessionReport, 0, len(sessions))
	for _, session := range sessions {
		messages := transcripts[session.SessionID]

		report := sessionReport{
			SessionID:  session.SessionID,
			State:      string(session.State),
			TopicFocus: session.TopicFocus,
			Error:      session.Error,
			Messages:   make([]reportMessage, 0, len(messages)),
		}
		for _, msg := range messages {
			rm := reportMessage{
				Timestamp: msg.CreatedAt,
				Role:      msg.Role,
				Content:   msg.Content,
				Markers:   messageMarkers(msg),
			}
			if msg.Role == domain.RoleHuman {
				report.Turns++
			}
			report.Violations += len(rm.Markers)
			report.Messages = append(report.Messages, rm)
		}
		reports = append(reports, report)
	}
	return reports
}

func messageMarkers(msg domain.Message) []string {
	if len(msg.Metadata) == 0 {
		return nil
	}
	var meta struct {
		Markers []string `json:"markers"`
	}
	if err := json.Unmarshal(msg.Metadata, &meta); err != nil {
		return nil
	}
	return meta.Markers
}

func renderJSONReport(group *domain.Group, sessions []domain.Session, transcripts map[string][]domain.Message) ([]byte, error) {
	return json.MarshalIndent(buildSessionReports(sessions, transcripts), "", "  ")
}

func renderMarkdownReport(group *domain.Group, sessions []domain.Session, transcripts map[string][]domain.Message) string {
	reports := buildSessionReports(sessions, transcripts)

	var b strings.Builder

	fmt.Fprintf(&b, "# Adversarial Test Report: %s\n\n", group.GroupID)
	fmt.Fprintf(&b, "- **Target**: %s\n", group.Config.TargetEndpoint)
	fmt.Fprintf(&b, "- **Parallel sessions**: %d\n", group.Config.ParallelExecutions)
	fmt.Fprintf(&b, "- **Duration budget**: %.1f minutes\n", group.Config.DurationMinutes)
	fmt.Fprintf(&b, "- **Started**: %s\n\n", group.CreatedAt.Format(time.RFC3339))

	b.WriteString("## Session Summary\n\n")
	b.WriteString("| Session | State | Topic Focus | Turns | Violations |\n")
	b.WriteString("|---------|-------|-------------|-------|------------|\n")
	totalViolations := 0
	for _, r := range reports {
		fmt.Fprintf(&b, "| %s | %s | %s | %d | %d |\n", r.SessionID, r.State, r.TopicFocus, r.Turns, r.Violations)
		totalViolations += r.Violations
	}
	b.WriteString("\n")

	if totalViolations > 0 {
		b.WriteString("## Flagged Responses\n\n")
		for _, r := range reports {
			for _, msg := range r.Messages {
				if len(msg.Markers) == 0 {
					continue
				}
				fmt.Fprintf(&b, "### %s (%s)\n\n", r.SessionID, strings.Join(msg.Markers, ", "))
				fmt.Fprintf(&b, "> %s\n\n", excerpt(msg.Content, 400))
			}
		}
	}

	b.WriteString("## Recommendations\n\n")
	recs := collectRecommendations(reports)
	if len(recs) == 0 {
		b.WriteString("- No policy violations detected. The target stayed grounded under adversarial pressure.\n")
	} else {
		for _, rec := range recs {
			fmt.Fprintf(&b, "- %s\n", rec)
		}
	}

	return b.String()
}

func collectRecommendations(reports []sessionReport) []string {
	seen := map[string]bool{}
	for _, r := range reports {
		for _, msg := range r.Messages {
			for _, marker := range msg.Markers {
				seen[marker] = true
			}
		}
	}

	markers := make([]string, 0, len(seen))
	for marker := range seen {
		markers = append(markers, marker)
	}
	sort.Strings(markers)

	recs := make([]string, 0, len(markers))
	for _, marker := range markers {
		if rec, ok := recommendationsByMarker[marker]; ok {
			recs = append(recs, rec)
		} else {
			recs = append(recs, fmt.Sprintf("Review responses flagged with %q.", marker))
		}
	}
	return recs
}

// excerpt flattens and shortens a reply for the markdown report, cutting on
// a rune boundary so multi-byte content stays valid UTF-8.
func excerpt(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
