package storage

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gennadis/groqchat/internal/chat"
	"github.com/jmoiron/sqlx"
)

// Journal is an append-only transcript log fed by session.Store events.
// Nothing is ever loaded back from it into the live store.
type Journal struct {
	db       *sqlx.DB
	sessions *Sessions
	messages *Messages
}

// JournalEntry is one session together with its journaled entries
type JournalEntry struct {
	Session SessionRecord   `json:"session"`
	Entries []MessageRecord `json:"entries"`
}

// NewJournal opens dsn and prepares the tables
func NewJournal(dsn string) (*Journal, error) {
	db, err := NewSqliteDB(dsn)
	if err != nil {
		return nil, err
	}
	sessions, err := NewSessions(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	messages, err := NewMessages(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Journal{db: db, sessions: sessions, messages: messages}, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

// SessionCreated records the session and its greeting
func (j *Journal) SessionCreated(s chat.Session) {
	if err := j.sessions.Write(s); err != nil {
		slog.Error("Failed to journal session", "session_id", s.ID, "error", err)
		return
	}
	for _, msg := range s.Messages {
		if err := j.messages.Write(s.ID, msg, EntryMessage, s.LastUpdated); err != nil {
			slog.Error("Failed to journal message", "session_id", s.ID, "error", err)
		}
	}
}

func (j *Journal) MessageAppended(sessionID string, msg chat.Message, at time.Time) {
	if err := j.messages.Write(sessionID, msg, EntryMessage, at); err != nil {
		slog.Error("Failed to journal message", "session_id", sessionID, "error", err)
	}
}

// SessionCleared records a marker carrying the fresh greeting
func (j *Journal) SessionCleared(s chat.Session) {
	if err := j.messages.Write(s.ID, s.Last(), EntryCleared, s.LastUpdated); err != nil {
		slog.Error("Failed to journal clear", "session_id", s.ID, "error", err)
	}
}

func (j *Journal) SessionDeleted(id string, at time.Time) {
	if err := j.sessions.MarkDeleted(id, at); err != nil {
		slog.Error("Failed to journal delete", "session_id", id, "error", err)
	}
}

// Sessions lists journaled sessions, deleted ones included
func (j *Journal) Sessions() ([]SessionRecord, error) {
	return j.sessions.Read()
}

// Entry returns the journal of one session
func (j *Journal) Entry(sessionID string) (JournalEntry, error) {
	session, err := j.sessions.Get(sessionID)
	if err != nil {
		return JournalEntry{}, err
	}
	entries, err := j.messages.ReadBySessionID(sessionID)
	if err != nil {
		return JournalEntry{}, fmt.Errorf("failed to read journal of %s: %w", sessionID, err)
	}
	return JournalEntry{Session: session, Entries: entries}, nil
}
