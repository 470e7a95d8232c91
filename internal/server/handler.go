package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gennadis/groqchat/internal/chat"
	"github.com/gennadis/groqchat/internal/client"
	"github.com/gennadis/groqchat/internal/conversation"
	"github.com/gennadis/groqchat/internal/observability"
	"github.com/gennadis/groqchat/internal/session"
	"github.com/gennadis/groqchat/storage"
)

const maxBodySize = 1 << 20

// JournalReader is the read side of the transcript journal
type JournalReader interface {
	Entry(sessionID string) (storage.JournalEntry, error)
}

type Server struct {
	svc     *conversation.Service
	journal JournalReader
}

// NewServer wires the JSON API. journal may be nil.
func NewServer(svc *conversation.Service, journal JournalReader) http.Handler {
	s := &Server{svc: svc, journal: journal}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /sessions", s.handleListSessions)
	mux.HandleFunc("POST /sessions", s.handleCreateSession)
	mux.HandleFunc("GET /sessions/{id}", s.handleGetSession)
	mux.HandleFunc("DELETE /sessions/{id}", s.handleDeleteSession)
	mux.HandleFunc("POST /sessions/{id}/select", s.handleSelectSession)
	mux.HandleFunc("POST /sessions/{id}/clear", s.handleClearSession)
	mux.HandleFunc("POST /sessions/{id}/messages", s.handleSendMessage)
	mux.HandleFunc("GET /sessions/{id}/busy", s.handleBusy)
	mux.HandleFunc("GET /sessions/{id}/journal", s.handleJournal)

	return chainMiddlewares(mux, withLogging, withCORS, withRequestID)
}

// ─────────────────────────────────────────────
// DTOs (request/response)
// ─────────────────────────────────────────────

type sessionResponse struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Messages    []chat.Message `json:"messages"`
	LastUpdated time.Time      `json:"last_updated"`
	Selected    bool           `json:"selected"`
	Busy        bool           `json:"busy"`
}

type listSessionsResponse struct {
	Sessions   []sessionResponse `json:"sessions"`
	SelectedID string            `json:"selected_id,omitempty"`
}

type sendMessageRequest struct {
	Text  string         `json:"text"`
	Model chat.ChatModel `json:"model,omitempty"`
}

type sendMessageResponse struct {
	Session sessionResponse `json:"session"`
	Result  client.Result   `json:"result"`
}

type busyResponse struct {
	Busy bool `json:"busy"`
}

// ─────────────────────────────────────────────
// Handlers
// ─────────────────────────────────────────────

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	store := s.svc.Store()
	selectedID := store.SelectedID()

	sessions := store.Sessions()
	resp := listSessionsResponse{
		Sessions:   make([]sessionResponse, 0, len(sessions)),
		SelectedID: selectedID,
	}
	for _, sess := range sessions {
		resp.Sessions = append(resp.Sessions, s.toSessionResponse(sess, selectedID))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess := s.svc.Store().CreateSession()
	observability.LoggerFromContext(r.Context()).Info("session created", "session_id", sess.ID)
	writeJSON(w, http.StatusCreated, s.toSessionResponse(sess, sess.ID))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	store := s.svc.Store()
	sess, err := store.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.toSessionResponse(sess, store.SelectedID()))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Store().DeleteSession(r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	s.handleListSessions(w, r)
}

func (s *Server) handleSelectSession(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Store().SelectSession(r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	s.handleGetSession(w, r)
}

func (s *Server) handleClearSession(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Store().ClearSession(r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	s.handleGetSession(w, r)
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	id := r.PathValue("id")
	out, err := s.svc.Send(r.Context(), id, req.Text, req.Model)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, sendMessageResponse{
		Session: s.toSessionResponse(out.Session, s.svc.Store().SelectedID()),
		Result:  out.Result,
	})
}

func (s *Server) handleBusy(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.svc.Store().Get(id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, busyResponse{Busy: s.svc.Busy(id)})
}

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "journal disabled"})
		return
	}
	entry, err := s.journal.Entry(r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// ─────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────

func (s *Server) toSessionResponse(sess chat.Session, selectedID string) sessionResponse {
	return sessionResponse{
		ID:          sess.ID,
		Title:       sess.Title,
		Messages:    sess.Messages,
		LastUpdated: sess.LastUpdated,
		Selected:    sess.ID == selectedID,
		Busy:        s.svc.Busy(sess.ID),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{
		"error": msg,
	})
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound), errors.Is(err, sql.ErrNoRows):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
	case errors.Is(err, session.ErrEmptyMessage):
		badRequest(w, "text is required")
	case errors.Is(err, conversation.ErrBusy):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		observability.LoggerFromContext(r.Context()).Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}
