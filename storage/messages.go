package storage

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gennadis/groqchat/internal/chat"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// EntryKind tells appended messages apart from clear markers
type EntryKind string

const (
	EntryMessage EntryKind = "message"
	EntryCleared EntryKind = "cleared"
)

// MessageRecord is one journaled transcript entry
type MessageRecord struct {
	Seq       int64         `db:"seq" json:"seq"`
	ID        string        `db:"id" json:"id"`
	SessionID string        `db:"session_id" json:"session_id"`
	Role      chat.ChatRole `db:"role" json:"role"`
	Content   string        `db:"content" json:"content"`
	Kind      EntryKind     `db:"kind" json:"kind"`
	Timestamp time.Time     `db:"timestamp" json:"timestamp"`
}

// Messages is a storage for messages
type Messages struct {
	db *sqlx.DB
}

// NewMessages creates a new Messages storage
func NewMessages(db *sqlx.DB) (*Messages, error) {
	createMessagesTable := `
	CREATE TABLE IF NOT EXISTS messages (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		session_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		kind TEXT NOT NULL DEFAULT 'message',
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (session_id) REFERENCES sessions(id)
	)
	`
	if _, err := db.Exec(createMessagesTable); err != nil {
		return nil, fmt.Errorf("failed to create messages table: %w", err)
	}

	return &Messages{db: db}, nil
}

// ReadBySessionID returns entries for a specific session_id in journal order
func (m *Messages) ReadBySessionID(sessionID string) ([]MessageRecord, error) {
	var messages []MessageRecord
	err := m.db.Select(&messages, "SELECT seq, id, session_id, role, content, kind, timestamp FROM messages WHERE session_id = ? ORDER BY seq ASC", sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages for session_id %s: %w", sessionID, err)
	}

	slog.Debug("read messages by session_id",
		slog.String("session_id", sessionID),
		slog.Int("count", len(messages)),
	)
	return messages, nil
}

// Write appends a new entry to the storage
func (m *Messages) Write(sessionID string, message chat.Message, kind EntryKind, at time.Time) error {
	if at.IsZero() {
		at = time.Now()
	}
	id := uuid.NewString()
	insertQuery := "INSERT INTO messages (id, session_id, role, content, kind, timestamp) VALUES (?, ?, ?, ?, ?, ?)"
	if _, err := m.db.Exec(insertQuery, id, sessionID, string(message.Role), message.Content, string(kind), at); err != nil {
		return fmt.Errorf("failed to insert message into session %s: %w", sessionID, err)
	}

	slog.Debug("message added to messages",
		slog.String("id", id),
		slog.String("session_id", sessionID),
		slog.String("role", string(message.Role)),
		slog.String("kind", string(kind)),
		slog.Time("timestamp", at),
	)
	return nil
}
