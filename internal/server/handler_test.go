package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gennadis/groqchat/internal/chat"
	"github.com/gennadis/groqchat/internal/client"
	"github.com/gennadis/groqchat/internal/conversation"
	"github.com/gennadis/groqchat/internal/server"
	"github.com/gennadis/groqchat/internal/session"
	"github.com/gennadis/groqchat/storage"
)

type stubCompleter struct {
	result client.Result
}

func (s stubCompleter) Complete(ctx context.Context, history []chat.Message, model chat.ChatModel) client.Result {
	return s.result
}

type sessionJSON struct {
	ID       string         `json:"id"`
	Title    string         `json:"title"`
	Messages []chat.Message `json:"messages"`
	Selected bool           `json:"selected"`
	Busy     bool           `json:"busy"`
}

type listJSON struct {
	Sessions   []sessionJSON `json:"sessions"`
	SelectedID string        `json:"selected_id"`
}

func newTestServer(t *testing.T, result client.Result) (http.Handler, *session.Store) {
	t.Helper()

	journal, err := storage.NewJournal(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = journal.Close() })

	store := session.New(session.WithObserver(journal))
	svc := conversation.NewService(store, stubCompleter{result: result})
	return server.NewServer(svc, journal), store
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t, client.Result{})
	w := do(t, srv, http.MethodGet, "/healthz", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestListAndCreateSessions(t *testing.T) {
	srv, store := newTestServer(t, client.Result{})

	w := do(t, srv, http.MethodGet, "/sessions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[listJSON](t, w)
	require.Len(t, list.Sessions, 1)
	assert.Equal(t, store.SelectedID(), list.SelectedID)
	assert.True(t, list.Sessions[0].Selected)

	w = do(t, srv, http.MethodPost, "/sessions", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode[sessionJSON](t, w)
	assert.True(t, created.Selected)
	require.Len(t, created.Messages, 1)
	assert.Equal(t, chat.ChatRoleAssistant, created.Messages[0].Role)

	list = decode[listJSON](t, do(t, srv, http.MethodGet, "/sessions", nil))
	require.Len(t, list.Sessions, 2)
	assert.Equal(t, created.ID, list.Sessions[0].ID)
	assert.Equal(t, created.ID, list.SelectedID)
}

func TestSendMessage(t *testing.T) {
	srv, store := newTestServer(t, client.Result{Success: true, Content: "pong"})
	id := store.SelectedID()

	w := do(t, srv, http.MethodPost, "/sessions/"+id+"/messages", map[string]string{"text": "ping"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[struct {
		Session sessionJSON   `json:"session"`
		Result  client.Result `json:"result"`
	}](t, w)
	assert.True(t, resp.Result.Success)
	require.Len(t, resp.Session.Messages, 3)
	assert.Equal(t, chat.Message{Role: chat.ChatRoleUser, Content: "ping"}, resp.Session.Messages[1])
	assert.Equal(t, chat.Message{Role: chat.ChatRoleAssistant, Content: "pong"}, resp.Session.Messages[2])
	assert.False(t, resp.Session.Busy)
}

func TestSendMessageFailureSurfacesInTranscript(t *testing.T) {
	srv, store := newTestServer(t, client.Result{Error: "Invalid API Key", Status: 401, Kind: client.KindTransport})
	id := store.SelectedID()

	w := do(t, srv, http.MethodPost, "/sessions/"+id+"/messages", map[string]string{"text": "ping"})
	require.Equal(t, http.StatusOK, w.Code)

	sess, err := store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "Error: Invalid API Key", sess.Last().Content)
}

func TestSendMessageErrors(t *testing.T) {
	srv, store := newTestServer(t, client.Result{Success: true, Content: "pong"})
	id := store.SelectedID()

	w := do(t, srv, http.MethodPost, "/sessions/"+id+"/messages", map[string]string{"text": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, srv, http.MethodPost, "/sessions/missing/messages", map[string]string{"text": "hi"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/sessions/"+id+"/messages", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	sess, err := store.Get(id)
	require.NoError(t, err)
	assert.Len(t, sess.Messages, 1)
}

func TestSelectClearDelete(t *testing.T) {
	srv, store := newTestServer(t, client.Result{Success: true, Content: "pong"})
	first := store.SelectedID()
	second := store.CreateSession().ID

	w := do(t, srv, http.MethodPost, "/sessions/"+first+"/select", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[sessionJSON](t, w).Selected)
	assert.Equal(t, first, store.SelectedID())

	do(t, srv, http.MethodPost, "/sessions/"+first+"/messages", map[string]string{"text": "ping"})
	w = do(t, srv, http.MethodPost, "/sessions/"+first+"/clear", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[sessionJSON](t, w).Messages, 1)

	w = do(t, srv, http.MethodDelete, "/sessions/"+first, nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[listJSON](t, w)
	require.Len(t, list.Sessions, 1)
	assert.Equal(t, second, list.SelectedID)

	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodDelete, "/sessions/"+first, nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodPost, "/sessions/missing/select", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, "/sessions/missing", nil).Code)
}

func TestBusyAndJournal(t *testing.T) {
	srv, store := newTestServer(t, client.Result{Success: true, Content: "pong"})
	id := store.SelectedID()

	w := do(t, srv, http.MethodGet, "/sessions/"+id+"/busy", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[map[string]bool](t, w)["busy"])

	do(t, srv, http.MethodPost, "/sessions/"+id+"/messages", map[string]string{"text": "ping"})
	require.NoError(t, store.DeleteSession(id))

	w = do(t, srv, http.MethodGet, "/sessions/"+id+"/journal", nil)
	require.Equal(t, http.StatusOK, w.Code)
	entry := decode[storage.JournalEntry](t, w)
	assert.Len(t, entry.Entries, 3)
	assert.NotNil(t, entry.Session.DeletedAt)

	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, "/sessions/missing/journal", nil).Code)
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t, client.Result{})
	w := do(t, srv, http.MethodOptions, "/sessions", nil)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
