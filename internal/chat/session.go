package chat

import (
	"time"

	"github.com/google/uuid"
)

// Session represents a chat session
type Session struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Messages    []Message `json:"messages"`
	LastUpdated time.Time `json:"last_updated"`
}

// NewSession creates a new Session seeded with the assistant greeting
func NewSession(title, greeting string, now time.Time) *Session {
	return &Session{
		ID:          uuid.NewString(),
		Title:       title,
		Messages:    []Message{{Role: ChatRoleAssistant, Content: greeting}},
		LastUpdated: now,
	}
}

// Clone returns a copy that shares no mutable state with s
func (s Session) Clone() Session {
	msgs := make([]Message, len(s.Messages))
	copy(msgs, s.Messages)
	s.Messages = msgs
	return s
}

// Last returns the most recent message of the transcript
func (s Session) Last() Message {
	return s.Messages[len(s.Messages)-1]
}
