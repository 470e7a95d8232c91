package conversation_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gennadis/groqchat/internal/chat"
	"github.com/gennadis/groqchat/internal/client"
	"github.com/gennadis/groqchat/internal/conversation"
	"github.com/gennadis/groqchat/internal/session"
)

type fakeCompleter struct {
	mu      sync.Mutex
	calls   [][]chat.Message
	models  []chat.ChatModel
	result  client.Result
	release chan struct{}
	started chan struct{}
}

func (f *fakeCompleter) Complete(ctx context.Context, history []chat.Message, model chat.ChatModel) client.Result {
	f.mu.Lock()
	f.calls = append(f.calls, history)
	f.models = append(f.models, model)
	f.mu.Unlock()

	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	return f.result
}

func (f *fakeCompleter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestSendSuccess(t *testing.T) {
	store := session.New()
	fake := &fakeCompleter{result: client.Result{Success: true, Content: "Hello! What can I do?"}}
	svc := conversation.NewService(store, fake)
	id := store.SelectedID()

	out, err := svc.Send(context.Background(), id, "hello", chat.ModelGemma)
	require.NoError(t, err)

	require.Len(t, fake.calls, 1)
	sent := fake.calls[0]
	require.Len(t, sent, 2)
	assert.Equal(t, chat.Message{Role: chat.ChatRoleUser, Content: "hello"}, sent[1])
	assert.Equal(t, chat.ModelGemma, fake.models[0])

	msgs := out.Session.Messages
	require.Len(t, msgs, 3)
	assert.Equal(t, chat.Message{Role: chat.ChatRoleUser, Content: "hello"}, msgs[1])
	assert.Equal(t, chat.Message{Role: chat.ChatRoleAssistant, Content: "Hello! What can I do?"}, msgs[2])
	assert.True(t, out.Result.Success)
	assert.False(t, svc.Busy(id))
}

func TestSendFailureIsWrittenToTranscript(t *testing.T) {
	store := session.New()
	fake := &fakeCompleter{result: client.Result{Error: "Invalid API Key", Status: 401, Kind: client.KindTransport}}
	svc := conversation.NewService(store, fake)
	id := store.SelectedID()

	out, err := svc.Send(context.Background(), id, "hello", "")
	require.NoError(t, err)

	assert.False(t, out.Result.Success)
	assert.Equal(t, 401, out.Result.Status)
	last := out.Session.Last()
	assert.Equal(t, chat.ChatRoleAssistant, last.Role)
	assert.Equal(t, "Error: Invalid API Key", last.Content)
}

func TestSendBlankTextSkipsProvider(t *testing.T) {
	store := session.New()
	fake := &fakeCompleter{result: client.Result{Success: true, Content: "x"}}
	svc := conversation.NewService(store, fake)
	id := store.SelectedID()
	before, err := store.Get(id)
	require.NoError(t, err)

	_, err = svc.Send(context.Background(), id, "   ", "")
	assert.ErrorIs(t, err, session.ErrEmptyMessage)

	after, err := store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Zero(t, fake.callCount())
}

func TestSendUnknownSession(t *testing.T) {
	fake := &fakeCompleter{}
	svc := conversation.NewService(session.New(), fake)

	_, err := svc.Send(context.Background(), "missing", "hello", "")
	assert.ErrorIs(t, err, session.ErrNotFound)
	assert.Zero(t, fake.callCount())
	assert.False(t, svc.Busy("missing"))
}

func TestSendRejectsSecondOutstandingRequest(t *testing.T) {
	store := session.New()
	fake := &fakeCompleter{
		result:  client.Result{Success: true, Content: "first reply"},
		release: make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	svc := conversation.NewService(store, fake)
	id := store.SelectedID()

	done := make(chan error, 1)
	go func() {
		_, err := svc.Send(context.Background(), id, "first", "")
		done <- err
	}()

	select {
	case <-fake.started:
	case <-time.After(2 * time.Second):
		t.Fatal("completion was not started")
	}
	assert.True(t, svc.Busy(id))

	_, err := svc.Send(context.Background(), id, "second", "")
	assert.ErrorIs(t, err, conversation.ErrBusy)

	close(fake.release)
	require.NoError(t, <-done)
	assert.False(t, svc.Busy(id))

	sess, err := store.Get(id)
	require.NoError(t, err)
	require.Len(t, sess.Messages, 3)
	assert.Equal(t, "first", sess.Messages[1].Content)
	assert.Equal(t, "first reply", sess.Messages[2].Content)
}

func TestSendDifferentSessionsInParallel(t *testing.T) {
	store := session.New()
	fake := &fakeCompleter{
		result:  client.Result{Success: true, Content: "ok"},
		release: make(chan struct{}),
		started: make(chan struct{}, 2),
	}
	svc := conversation.NewService(store, fake)
	a := store.SelectedID()
	b := store.CreateSession().ID

	var wg sync.WaitGroup
	for _, id := range []string{a, b} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := svc.Send(context.Background(), id, "hi", "")
			assert.NoError(t, err)
		}(id)
	}

	for i := 0; i < 2; i++ {
		select {
		case <-fake.started:
		case <-time.After(2 * time.Second):
			t.Fatal("sessions did not run in parallel")
		}
	}
	close(fake.release)
	wg.Wait()

	for _, id := range []string{a, b} {
		sess, err := store.Get(id)
		require.NoError(t, err)
		assert.Len(t, sess.Messages, 3)
	}
}

func TestSendSessionDeletedWhileOutstanding(t *testing.T) {
	store := session.New()
	fake := &fakeCompleter{
		result:  client.Result{Success: true, Content: "late"},
		release: make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	svc := conversation.NewService(store, fake)
	id := store.SelectedID()

	done := make(chan error, 1)
	go func() {
		_, err := svc.Send(context.Background(), id, "hello", "")
		done <- err
	}()
	<-fake.started
	require.NoError(t, store.DeleteSession(id))
	close(fake.release)

	assert.ErrorIs(t, <-done, session.ErrNotFound)
	assert.False(t, svc.Busy(id))
}
