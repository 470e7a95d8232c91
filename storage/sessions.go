package storage

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gennadis/groqchat/internal/chat"
	"github.com/jmoiron/sqlx"
)

// SessionRecord is a journaled session. DeletedAt is nil while it is live.
type SessionRecord struct {
	ID        string     `db:"id" json:"id"`
	Title     string     `db:"title" json:"title"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	DeletedAt *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
}

// Sessions is a storage for sessions
type Sessions struct {
	db *sqlx.DB
}

// NewSessions creates a new Sessions storage
func NewSessions(db *sqlx.DB) (*Sessions, error) {
	createSessionsTable := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		deleted_at DATETIME
	)
	`
	if _, err := db.Exec(createSessionsTable); err != nil {
		return nil, fmt.Errorf("failed to create sessions table: %w", err)
	}

	return &Sessions{db: db}, nil
}

// Read returns all journaled sessions, newest first
func (s *Sessions) Read() ([]SessionRecord, error) {
	var sessions []SessionRecord
	err := s.db.Select(&sessions, "SELECT id, title, created_at, deleted_at FROM sessions ORDER BY created_at DESC, rowid DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to get sessions: %w", err)
	}

	slog.Debug("read sessions",
		slog.Int("count", len(sessions)),
	)
	return sessions, nil
}

// Get returns one journaled session
func (s *Sessions) Get(id string) (SessionRecord, error) {
	var session SessionRecord
	if err := s.db.Get(&session, "SELECT id, title, created_at, deleted_at FROM sessions WHERE id = ?", id); err != nil {
		return SessionRecord{}, fmt.Errorf("failed to get session for id %s: %w", id, err)
	}
	return session, nil
}

// Write writes new session to the storage
func (s *Sessions) Write(session chat.Session) error {
	if session.LastUpdated.IsZero() {
		session.LastUpdated = time.Now()
	}
	// Prepare the query to insert a new record, ignoring if it already exists
	insertQuery := "INSERT OR IGNORE INTO sessions (id, title, created_at) VALUES (?, ?, ?)"
	if _, err := s.db.Exec(insertQuery, session.ID, session.Title, session.LastUpdated); err != nil {
		return fmt.Errorf("failed to insert session %s: %w", session.ID, err)
	}

	slog.Debug("session added to sessions",
		slog.String("id", session.ID),
		slog.String("title", session.Title),
		slog.Time("created_at", session.LastUpdated),
	)
	return nil
}

// MarkDeleted stamps the session as deleted, its rows are kept
func (s *Sessions) MarkDeleted(id string, at time.Time) error {
	res, err := s.db.Exec("UPDATE sessions SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL", at, id)
	if err != nil {
		return fmt.Errorf("failed to mark session %s deleted: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("failed to mark session %s deleted: no live session", id)
	}

	slog.Debug("session marked deleted",
		slog.String("id", id),
		slog.Time("deleted_at", at),
	)
	return nil
}
