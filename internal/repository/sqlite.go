package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/arpankumarde/havoc-machine/internal/domain"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS groups (
			group_id TEXT PRIMARY KEY,
			target_endpoint TEXT NOT NULL,
			parallel_executions INTEGER NOT NULL,
			duration_minutes REAL NOT NULL,
			status TEXT NOT NULL,
			report_markdown_url TEXT,
			report_json_url TEXT,
			error TEXT,
			aggregation_claimed INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			completed_at DATETIME
		)`,
		`CREATE INDEX IF NOT EXISTS idx_groups_created ON groups(created_at)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			group_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			topic_focus TEXT,
			state TEXT NOT NULL,
			error TEXT,
			started_at DATETIME,
			ended_at DATETIME,
			FOREIGN KEY (group_id) REFERENCES groups(group_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_group ON sessions(group_id, seq)`,
		`CREATE TABLE IF NOT EXISTS messages (
			message_id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			metadata TEXT,
			FOREIGN KEY (session_id) REFERENCES sessions(session_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, created_at)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateGroup persists a group and its sessions in one transaction.
func (s *SQLiteStore) CreateGroup(ctx context.Context, group *domain.Group, sessions []domain.Session) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO groups (group_id, target_endpoint, parallel_executions, duration_minutes, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		group.GroupID, group.Config.TargetEndpoint, group.Config.ParallelExecutions,
		group.Config.DurationMinutes, group.Status, group.CreatedAt)
	if err != nil {
		return err
	}

	for i, sess := range sessions {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO sessions (session_id, group_id, seq, topic_focus, state) VALUES (?, ?, ?, ?, ?)`,
			sess.SessionID, sess.GroupID, i, sess.TopicFocus, sess.State)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetGroup retrieves a group with its session IDs in creation order.
func (s *SQLiteStore) GetGroup(ctx context.Context, groupID string) (*domain.Group, error) {
	var group domain.Group
	var mdURL, jsonURL, errNote sql.NullString
	var completedAt sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT group_id, target_endpoint, parallel_executions, duration_minutes, status,
		        report_markdown_url, report_json_url, error, created_at, completed_at
		 FROM groups WHERE group_id = ?`, groupID).Scan(
		&group.GroupID, &group.Config.TargetEndpoint, &group.Config.ParallelExecutions,
		&group.Config.DurationMinutes, &group.Status, &mdURL, &jsonURL, &errNote,
		&group.CreatedAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if mdURL.Valid {
		group.ReportURLs.Markdown = mdURL.String
	}
	if jsonURL.Valid {
		group.ReportURLs.JSON = jsonURL.String
	}
	if errNote.Valid {
		group.Error = errNote.String
	}
	if completedAt.Valid {
		group.CompletedAt = &completedAt.Time
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id FROM sessions WHERE group_id = ? ORDER BY seq ASC`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var sessionID string
		if err := rows.Scan(&sessionID); err != nil {
			return nil, err
		}
		group.SessionIDs = append(group.SessionIDs, sessionID)
	}
	return &group, rows.Err()
}

// ListGroupIDs lists all group IDs, newest first.
func (s *SQLiteStore) ListGroupIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT group_id FROM groups ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpdateGroupCompleted records the report URLs and marks the group completed.
// completed_at is written only once, at the first terminal transition.
func (s *SQLiteStore) UpdateGroupCompleted(ctx context.Context, groupID string, urls domain.ReportURLs) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`UPDATE groups SET status = ?, report_markdown_url = ?, report_json_url = ?, error = NULL,
		        completed_at = COALESCE(completed_at, ?)
		 WHERE group_id = ?`,
		domain.GroupStatusCompleted, urls.Markdown, urls.JSON, now, groupID)
	return err
}

// UpdateGroupFailed marks the group failed with an error note.
func (s *SQLiteStore) UpdateGroupFailed(ctx context.Context, groupID string, errMsg string) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`UPDATE groups SET status = ?, error = ?, completed_at = COALESCE(completed_at, ?) WHERE group_id = ?`,
		domain.GroupStatusFailed, errMsg, now, groupID)
	return err
}

// ClaimAggregation atomically claims the right to aggregate a group.
func (s *SQLiteStore) ClaimAggregation(ctx context.Context, groupID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE groups SET aggregation_claimed = 1 WHERE group_id = ? AND aggregation_claimed = 0`,
		groupID)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ReleaseAggregation frees the aggregation claim after a failed attempt.
func (s *SQLiteStore) ReleaseAggregation(ctx context.Context, groupID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE groups SET aggregation_claimed = 0 WHERE group_id = ?`, groupID)
	return err
}

// GetSession retrieves a session by ID.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT session_id, group_id, topic_focus, state, error, started_at, ended_at
		 FROM sessions WHERE session_id = ?`, sessionID)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// GetGroupSessions retrieves all sessions of a group in creation order.
func (s *SQLiteStore) GetGroupSessions(ctx context.Context, groupID string) ([]domain.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, group_id, topic_focus, state, error, started_at, ended_at
		 FROM sessions WHERE group_id = ? ORDER BY seq ASC`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *sess)
	}
	return sessions, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var sess domain.Session
	var topicFocus, errNote sql.NullString
	var startedAt, endedAt sql.NullTime
	err := row.Scan(&sess.SessionID, &sess.GroupID, &topicFocus, &sess.State, &errNote, &startedAt, &endedAt)
	if err != nil {
		return nil, err
	}
	if topicFocus.Valid {
		sess.TopicFocus = topicFocus.String
	}
	if errNote.Valid {
		sess.Error = errNote.String
	}
	if startedAt.Valid {
		sess.StartedAt = &startedAt.Time
	}
	if endedAt.Valid {
		sess.EndedAt = &endedAt.Time
	}
	return &sess, nil
}

// UpdateSessionStarted transitions a session to running.
func (s *SQLiteStore) UpdateSessionStarted(ctx context.Context, sessionID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET state = ?, started_at = ? WHERE session_id = ?`,
		domain.SessionStateRunning, at, sessionID)
	return err
}

// UpdateSessionEnded records a session's terminal state. A session already in
// a terminal state is left untouched.
func (s *SQLiteStore) UpdateSessionEnded(ctx context.Context, sessionID string, state domain.SessionState, errMsg string, at time.Time) error {
	var errNote sql.NullString
	if errMsg != "" {
		errNote = sql.NullString{String: errMsg, Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET state = ?, error = ?, ended_at = ? WHERE session_id = ? AND state NOT IN (?, ?)`,
		state, errNote, at, sessionID, domain.SessionStateCompleted, domain.SessionStateFailed)
	return err
}

// CountTerminalSessions counts a group's sessions in a terminal state.
func (s *SQLiteStore) CountTerminalSessions(ctx context.Context, groupID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sessions WHERE group_id = ? AND state IN (?, ?)`,
		groupID, domain.SessionStateCompleted, domain.SessionStateFailed).Scan(&count)
	return count, err
}

// CreateMessage appends a message to a session transcript.
func (s *SQLiteStore) CreateMessage(ctx context.Context, message *domain.Message) error {
	var metadata sql.NullString
	if len(message.Metadata) > 0 {
		metadata = sql.NullString{String: string(message.Metadata), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (message_id, session_id, role, content, created_at, metadata) VALUES (?, ?, ?, ?, ?, ?)`,
		message.MessageID, message.SessionID, message.Role, message.Content, message.CreatedAt, metadata)
	return err
}

// GetMessages retrieves a session's transcript. rowid breaks ties for appends
// within the same clock tick, preserving insertion order.
func (s *SQLiteStore) GetMessages(ctx context.Context, sessionID string, newestFirst bool) ([]domain.Message, error) {
	order := "ASC"
	if newestFirst {
		order = "DESC"
	}
	query := fmt.Sprintf(
		`SELECT message_id, session_id, role, content, created_at, metadata
		 FROM messages WHERE session_id = ? ORDER BY created_at %s, rowid %s`, order, order)

	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var msg domain.Message
		var metadata sql.NullString
		if err := rows.Scan(&msg.MessageID, &msg.SessionID, &msg.Role, &msg.Content, &msg.CreatedAt, &metadata); err != nil {
			return nil, err
		}
		if metadata.Valid {
			msg.Metadata = []byte(metadata.String)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}
