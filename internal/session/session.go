package session

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gennadis/groqchat/internal/chat"
)

const (
	DefaultTitle    = "New chat"
	DefaultGreeting = "Hi! I'm your AI assistant powered by Groq. How can I help?"

	unknownError = "unknown error"
)

var (
	// ErrNotFound is returned when an operation references an absent session id.
	ErrNotFound = errors.New("session not found")
	// ErrEmptyMessage marks user input that is empty after trimming.
	ErrEmptyMessage = errors.New("message is empty")
)

// Observer is notified after every committed mutation. Methods are called
// with the store lock held, so they must not call back into the Store.
type Observer interface {
	SessionCreated(s chat.Session)
	MessageAppended(sessionID string, msg chat.Message, at time.Time)
	SessionCleared(s chat.Session)
	SessionDeleted(id string, at time.Time)
}

// Option configures a Store
type Option func(*Store)

// WithGreeting sets the assistant message every session starts with
func WithGreeting(greeting string) Option {
	return func(s *Store) {
		if greeting != "" {
			s.greeting = greeting
		}
	}
}

// WithTitle sets the title given to new sessions
func WithTitle(title string) Option {
	return func(s *Store) {
		if title != "" {
			s.title = title
		}
	}
}

// WithObserver registers o for mutation events
func WithObserver(o Observer) Option {
	return func(s *Store) {
		s.observer = o
	}
}

// WithClock overrides time.Now, mostly for tests
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Store owns the chat sessions and the current selection. All mutations go
// through its methods; readers only ever receive deep copies.
type Store struct {
	mu         sync.RWMutex
	sessions   map[string]*chat.Session
	order      []string // display order, newest first
	selectedID string

	title    string
	greeting string
	observer Observer
	now      func() time.Time
}

// New creates a Store holding exactly one selected default session
func New(opts ...Option) *Store {
	s := &Store{
		sessions: make(map[string]*chat.Session),
		title:    DefaultTitle,
		greeting: DefaultGreeting,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.CreateSession()
	return s
}

// CreateSession adds a fresh session in front of the list and selects it
func (s *Store) CreateSession() chat.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := chat.NewSession(s.title, s.greeting, s.now())
	for {
		if _, exists := s.sessions[sess.ID]; !exists {
			break
		}
		sess = chat.NewSession(s.title, s.greeting, s.now())
	}

	s.sessions[sess.ID] = sess
	s.order = append([]string{sess.ID}, s.order...)
	s.selectedID = sess.ID

	slog.Debug("session created",
		slog.String("id", sess.ID),
		slog.String("title", sess.Title),
	)
	if s.observer != nil {
		s.observer.SessionCreated(sess.Clone())
	}
	return sess.Clone()
}

// SelectSession makes id the active session
func (s *Store) SelectSession(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return fmt.Errorf("select %s: %w", id, ErrNotFound)
	}
	s.selectedID = id
	return nil
}

// DeleteSession removes the session. When it was selected, the first
// remaining session in display order becomes selected, or nothing when the
// store is empty. Unknown ids return ErrNotFound and change nothing.
func (s *Store) DeleteSession(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return fmt.Errorf("delete %s: %w", id, ErrNotFound)
	}

	delete(s.sessions, id)
	order := make([]string, 0, len(s.order))
	for _, sid := range s.order {
		if sid != id {
			order = append(order, sid)
		}
	}
	s.order = order

	if s.selectedID == id {
		s.selectedID = ""
		if len(s.order) > 0 {
			s.selectedID = s.order[0]
		}
	}

	slog.Debug("session deleted",
		slog.String("id", id),
		slog.String("selected_id", s.selectedID),
	)
	if s.observer != nil {
		s.observer.SessionDeleted(id, s.now())
	}
	return nil
}

// AppendUserMessage appends the trimmed text as a user message and returns
// the full updated history. Blank text is ignored and the current history is
// returned unchanged.
func (s *Store) AppendUserMessage(id, text string) ([]chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("append user message to %s: %w", id, ErrNotFound)
	}

	text = strings.TrimSpace(text)
	if text != "" {
		s.appendLocked(sess, chat.Message{Role: chat.ChatRoleUser, Content: text})
	}
	return sess.Clone().Messages, nil
}

// AppendAssistantMessage appends a reply from the assistant
func (s *Store) AppendAssistantMessage(id, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("append assistant message to %s: %w", id, ErrNotFound)
	}
	s.appendLocked(sess, chat.Message{Role: chat.ChatRoleAssistant, Content: text})
	return nil
}

// AppendErrorMessage surfaces a failed completion in the transcript
func (s *Store) AppendErrorMessage(id, errorText string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("append error message to %s: %w", id, ErrNotFound)
	}
	s.appendLocked(sess, chat.Message{Role: chat.ChatRoleAssistant, Content: FormatError(errorText)})
	return nil
}

// ClearSession resets the transcript to a single greeting
func (s *Store) ClearSession(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("clear %s: %w", id, ErrNotFound)
	}
	sess.Messages = []chat.Message{{Role: chat.ChatRoleAssistant, Content: s.greeting}}
	sess.LastUpdated = s.now()

	if s.observer != nil {
		s.observer.SessionCleared(sess.Clone())
	}
	return nil
}

// Get returns a snapshot of the session
func (s *Store) Get(id string) (chat.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return chat.Session{}, fmt.Errorf("get %s: %w", id, ErrNotFound)
	}
	return sess.Clone(), nil
}

// Sessions returns snapshots of all sessions in display order
func (s *Store) Sessions() []chat.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]chat.Session, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.sessions[id].Clone())
	}
	return out
}

// SelectedID returns the active session id, or "" when the store is empty
func (s *Store) SelectedID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectedID
}

// Selected returns a snapshot of the active session
func (s *Store) Selected() (chat.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.selectedID == "" {
		return chat.Session{}, false
	}
	return s.sessions[s.selectedID].Clone(), true
}

// Len returns the number of sessions
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// appendLocked swaps in a new message slice so earlier snapshots never alias it.
func (s *Store) appendLocked(sess *chat.Session, msg chat.Message) {
	msgs := make([]chat.Message, len(sess.Messages), len(sess.Messages)+1)
	copy(msgs, sess.Messages)
	sess.Messages = append(msgs, msg)
	sess.LastUpdated = s.now()

	if s.observer != nil {
		s.observer.MessageAppended(sess.ID, msg, sess.LastUpdated)
	}
}

// FormatError renders a completion failure as transcript text
func FormatError(errorText string) string {
	if strings.TrimSpace(errorText) == "" {
		errorText = unknownError
	}
	return "Error: " + errorText
}
