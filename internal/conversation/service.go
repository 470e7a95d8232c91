package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gennadis/groqchat/internal/chat"
	"github.com/gennadis/groqchat/internal/client"
	"github.com/gennadis/groqchat/internal/observability"
	"github.com/gennadis/groqchat/internal/session"
)

// ErrBusy is returned when a send is attempted while the same session still
// waits for its previous completion.
var ErrBusy = errors.New("a completion is already in progress for this session")

// Service drives the store and the completion client the way every
// presentation layer needs it: append the user turn, complete, then append
// the reply or the error.
type Service struct {
	store     *session.Store
	completer client.Completer

	mu   sync.Mutex
	busy map[string]struct{}
}

func NewService(store *session.Store, completer client.Completer) *Service {
	return &Service{
		store:     store,
		completer: completer,
		busy:      make(map[string]struct{}),
	}
}

// Store exposes the underlying session store for reads and session commands
func (s *Service) Store() *session.Store {
	return s.store
}

type SendOutput struct {
	Session chat.Session
	Result  client.Result
}

// Send appends text to the session, asks for a completion and records the
// outcome. Blank text returns session.ErrEmptyMessage without touching the
// transcript or the provider. A failed completion is not an error: it is
// written into the transcript and reported in SendOutput.Result.
func (s *Service) Send(ctx context.Context, id, text string, model chat.ChatModel) (*SendOutput, error) {
	log := observability.LoggerFromContext(ctx).With(
		"session_id", id,
		"model", model,
	)

	if strings.TrimSpace(text) == "" {
		return nil, session.ErrEmptyMessage
	}
	if !s.acquire(id) {
		log.Warn("send rejected, session busy")
		return nil, ErrBusy
	}
	defer s.release(id)

	history, err := s.store.AppendUserMessage(id, text)
	if err != nil {
		return nil, err
	}
	log.Info("sending message", "history", len(history))

	result := s.completer.Complete(ctx, history, model)
	if result.Success {
		err = s.store.AppendAssistantMessage(id, result.Content)
	} else {
		log.Warn("completion failed",
			"error", result.Error,
			"status", result.Status,
			"kind", result.Kind,
		)
		err = s.store.AppendErrorMessage(id, result.Error)
	}
	if err != nil {
		// the session was deleted while the request was outstanding
		log.Error("failed to record completion", "error", err)
		return nil, fmt.Errorf("record completion: %w", err)
	}

	sess, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	log.Info("send message completed", "success", result.Success)

	return &SendOutput{Session: sess, Result: result}, nil
}

// Busy reports whether a completion is outstanding for the session
func (s *Service) Busy(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.busy[id]
	return ok
}

func (s *Service) acquire(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.busy[id]; ok {
		return false
	}
	s.busy[id] = struct{}{}
	return true
}

func (s *Service) release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.busy, id)
}
