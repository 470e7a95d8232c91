package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gennadis/groqchat/internal/auth"
	"github.com/gennadis/groqchat/internal/chat"
	"github.com/gennadis/groqchat/internal/config"
)

const (
	completionsPath = "/chat/completions"
	maxResponseSize = 4 << 20

	invalidResponseFormat = "invalid response format from API"
)

// Kind classifies a failed completion
type Kind string

const (
	KindTransport Kind = "transport"
	KindProtocol  Kind = "protocol"
)

// Result is the normalized outcome of one completion attempt. Failures are
// reported here and never as a Go error.
type Result struct {
	Success bool        `json:"success"`
	Content string      `json:"content,omitempty"`
	Usage   *chat.Usage `json:"usage,omitempty"`
	Error   string      `json:"error,omitempty"`
	Status  int         `json:"status,omitempty"`
	Kind    Kind        `json:"kind,omitempty"`
}

// Completer is what presentation code needs from a completion provider
type Completer interface {
	Complete(ctx context.Context, history []chat.Message, model chat.ChatModel) Result
}

// Option customizes a Client
type Option func(*Client)

// WithHTTPClient replaces the transport, the timeout is still enforced per call
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// Client sends chat histories to an OpenAI compatible completions endpoint.
// It keeps no per-call state and is safe for concurrent use.
type Client struct {
	httpClient  *http.Client
	credentials *auth.Credentials
	endpoint    string
	model       chat.ChatModel
	timeout     time.Duration
	temperature float64
	topP        float64
	maxTokens   int
}

func NewClient(cfg *config.Config, opts ...Option) (*Client, error) {
	creds, err := auth.NewCredentials(cfg.APIKey)
	if err != nil {
		slog.Error("Failed to init credentials", "error", err)
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid client config: %w", err)
	}

	c := &Client{
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		credentials: creds,
		endpoint:    cfg.BaseURL + completionsPath,
		model:       cfg.Model,
		timeout:     cfg.Timeout,
		temperature: cfg.Temperature,
		topP:        cfg.TopP,
		maxTokens:   cfg.MaxTokens,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Complete makes exactly one request for history. An empty model selects the
// configured default. Cancelling ctx aborts the transport call.
func (c *Client) Complete(ctx context.Context, history []chat.Message, model chat.ChatModel) Result {
	if model == "" {
		model = c.model
	}
	parent := ctx
	deadline := time.Now().Add(c.timeout)
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	request := ChatCompletionRequest{
		Model:       model,
		Messages:    history,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		TopP:        c.topP,
	}
	if request.Messages == nil {
		request.Messages = []chat.Message{}
	}

	reqBytes, err := json.Marshal(request)
	if err != nil {
		slog.Error("Failed to marshal completion request", "error", err)
		return failure(KindProtocol, err.Error(), 0)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(reqBytes))
	if err != nil {
		slog.Error("Failed to build completion request", "error", err)
		return failure(KindTransport, err.Error(), 0)
	}
	req.Header.Set("Content-Type", auth.JSONContentType)
	req.Header.Set("Accept", auth.JSONContentType)
	c.credentials.Authorize(req)

	started := time.Now()
	res, err := c.httpClient.Do(req)
	if err != nil {
		msg := c.transportMessage(parent, deadline, err)
		slog.Error("Failed to send completion request",
			slog.String("model", string(model)),
			slog.String("error", msg),
		)
		return failure(KindTransport, msg, 0)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxResponseSize))
	if err != nil {
		msg := c.transportMessage(parent, deadline, err)
		slog.Error("Failed to read completion response body", "error", msg)
		return failure(KindTransport, msg, res.StatusCode)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		msg := handleApiError(res.StatusCode, body)
		slog.Error("Completion request failed",
			slog.Int("status", res.StatusCode),
			slog.String("error", msg),
		)
		return failure(KindTransport, msg, res.StatusCode)
	}

	chatResp := ChatResponse{}
	if err := json.Unmarshal(body, &chatResp); err != nil {
		slog.Error("Failed to unmarshal chat response body", "error", err)
		return failure(KindProtocol, invalidResponseFormat, res.StatusCode)
	}
	if chatResp.Error != nil && chatResp.Error.Message != "" {
		return failure(KindProtocol, chatResp.Error.Message, res.StatusCode)
	}
	if len(chatResp.Choices) == 0 || chatResp.Choices[0].Message.Content == nil || *chatResp.Choices[0].Message.Content == "" {
		slog.Error("Completion response has no content", slog.String("body", string(body)))
		return failure(KindProtocol, invalidResponseFormat, res.StatusCode)
	}

	slog.Debug("completion received",
		slog.String("model", string(model)),
		slog.Int("history", len(history)),
		slog.Duration("elapsed", time.Since(started)),
	)
	return Result{
		Success: true,
		Content: *chatResp.Choices[0].Message.Content,
		Usage:   chatResp.Usage,
		Status:  res.StatusCode,
	}
}

func failure(kind Kind, msg string, status int) Result {
	return Result{Success: false, Error: msg, Status: status, Kind: kind}
}

// handleApiError prefers the provider message over a generic one
func handleApiError(status int, body []byte) string {
	apiErr := ApiErrorResponse{}
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != nil && apiErr.Error.Message != "" {
		return apiErr.Error.Message
	}
	return fmt.Sprintf("request failed with status code %d", status)
}

// transportMessage names the client timeout only when it was the client's
// own deadline that expired, not an earlier one set by the caller.
func (c *Client) transportMessage(parent context.Context, deadline time.Time, err error) string {
	var netErr net.Error
	timedOut := errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout())
	switch {
	case timedOut || errors.Is(parent.Err(), context.DeadlineExceeded):
		if parentDeadline, ok := parent.Deadline(); ok && parentDeadline.Before(deadline) {
			return "request timed out"
		}
		return fmt.Sprintf("request timed out after %s", c.timeout)
	case errors.Is(err, context.Canceled):
		return "request canceled"
	}
	return err.Error()
}
