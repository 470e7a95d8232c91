// Package repl is the interactive terminal presentation of the chat sessions.
package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"github.com/gennadis/groqchat/internal/chat"
	"github.com/gennadis/groqchat/internal/conversation"
	"github.com/gennadis/groqchat/internal/session"
)

const helpText = `Commands:
  /new            start a new chat
  /list           list chats, newest first
  /switch <n>     switch to chat number n
  /delete [n]     delete chat n, or the current one
  /clear          reset the current chat
  /help           show this help
  /quit           leave`

var errQuit = errors.New("quit")

// REPL reads lines from in and renders the transcript to out
type REPL struct {
	svc   *conversation.Service
	model chat.ChatModel
	in    *bufio.Scanner
	out   io.Writer

	user      func(a ...interface{}) string
	assistant func(a ...interface{}) string
	failed    func(a ...interface{}) string
	dim       func(a ...interface{}) string
}

func New(svc *conversation.Service, model chat.ChatModel, in io.Reader, out io.Writer) *REPL {
	return &REPL{
		svc:       svc,
		model:     model,
		in:        bufio.NewScanner(in),
		out:       out,
		user:      color.New(color.FgGreen, color.Bold).SprintFunc(),
		assistant: color.New(color.FgCyan, color.Bold).SprintFunc(),
		failed:    color.New(color.FgRed).SprintFunc(),
		dim:       color.New(color.Faint).SprintFunc(),
	}
}

// Run loops until EOF, /quit or ctx is done. Cancelling ctx returns even
// while waiting for input.
func (r *REPL) Run(ctx context.Context) error {
	fmt.Fprintln(r.out, r.assistant("Groq chat"), r.dim("(model "+string(r.model)+", /help for commands)"))
	if sess, ok := r.svc.Store().Selected(); ok {
		r.printTranscript(sess)
	}

	done := make(chan struct{})
	defer close(done)
	lines, readErr := r.readLines(done)

	for {
		if ctx.Err() != nil {
			return nil
		}
		fmt.Fprint(r.out, r.user("You: "))

		var raw string
		select {
		case <-ctx.Done():
			fmt.Fprintln(r.out)
			return nil
		case line, ok := <-lines:
			if !ok {
				fmt.Fprintln(r.out)
				return <-readErr
			}
			raw = line
		}

		line := strings.TrimSpace(raw)
		var err error
		if strings.HasPrefix(line, "/") {
			err = r.command(line)
		} else {
			err = r.send(ctx, line)
		}
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			fmt.Fprintln(r.out, r.failed(err.Error()))
		}
	}
}

// readLines scans input in the background until EOF or done is closed.
// The scanner error is delivered after lines is closed.
func (r *REPL) readLines(done <-chan struct{}) (<-chan string, <-chan error) {
	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(lines)
		for r.in.Scan() {
			select {
			case lines <- r.in.Text():
			case <-done:
				return
			}
		}
		errc <- r.in.Err()
	}()
	return lines, errc
}

func (r *REPL) send(ctx context.Context, text string) error {
	id := r.svc.Store().SelectedID()
	if id == "" {
		return errors.New("no chat selected, use /new")
	}

	out, err := r.svc.Send(ctx, id, text, r.model)
	if errors.Is(err, session.ErrEmptyMessage) {
		return nil
	}
	if err != nil {
		return err
	}

	reply := out.Session.Last()
	if out.Result.Success {
		fmt.Fprintln(r.out, r.assistant("Assistant:"), reply.Content)
	} else {
		fmt.Fprintln(r.out, r.assistant("Assistant:"), r.failed(reply.Content))
	}
	return nil
}

func (r *REPL) command(line string) error {
	fields := strings.Fields(line)
	store := r.svc.Store()

	switch fields[0] {
	case "/quit", "/exit":
		return errQuit
	case "/help":
		fmt.Fprintln(r.out, helpText)
	case "/new":
		sess := store.CreateSession()
		r.printTranscript(sess)
	case "/list":
		r.printList()
	case "/switch":
		id, err := r.pick(fields)
		if err != nil {
			return err
		}
		if err := store.SelectSession(id); err != nil {
			return err
		}
		sess, _ := store.Selected()
		r.printTranscript(sess)
	case "/delete":
		id := store.SelectedID()
		if len(fields) > 1 {
			var err error
			if id, err = r.pick(fields); err != nil {
				return err
			}
		}
		if id == "" {
			return errors.New("nothing to delete")
		}
		if err := store.DeleteSession(id); err != nil {
			return err
		}
		fmt.Fprintln(r.out, r.dim("chat deleted"))
		r.printList()
	case "/clear":
		id := store.SelectedID()
		if id == "" {
			return errors.New("no chat selected, use /new")
		}
		if err := store.ClearSession(id); err != nil {
			return err
		}
		sess, _ := store.Selected()
		r.printTranscript(sess)
	default:
		return fmt.Errorf("unknown command %s, try /help", fields[0])
	}
	return nil
}

// pick resolves a 1-based position from the /list output
func (r *REPL) pick(fields []string) (string, error) {
	if len(fields) < 2 {
		return "", fmt.Errorf("usage: %s <n>", fields[0])
	}
	n, err := strconv.Atoi(fields[1])
	sessions := r.svc.Store().Sessions()
	if err != nil || n < 1 || n > len(sessions) {
		return "", fmt.Errorf("no chat number %s", fields[1])
	}
	return sessions[n-1].ID, nil
}

func (r *REPL) printList() {
	store := r.svc.Store()
	selected := store.SelectedID()
	sessions := store.Sessions()
	if len(sessions) == 0 {
		fmt.Fprintln(r.out, r.dim("no chats, use /new"))
		return
	}
	for i, sess := range sessions {
		marker := " "
		if sess.ID == selected {
			marker = "*"
		}
		fmt.Fprintf(r.out, "%s %d. %s %s\n", marker, i+1, sess.Title,
			r.dim(fmt.Sprintf("(%d messages, %s)", len(sess.Messages), sess.LastUpdated.Format("15:04:05"))))
	}
}

func (r *REPL) printTranscript(sess chat.Session) {
	fmt.Fprintln(r.out, r.dim("── "+sess.Title+" ──"))
	for _, msg := range sess.Messages {
		if msg.Role == chat.ChatRoleUser {
			fmt.Fprintln(r.out, r.user("You:"), msg.Content)
		} else {
			fmt.Fprintln(r.out, r.assistant("Assistant:"), msg.Content)
		}
	}
}
