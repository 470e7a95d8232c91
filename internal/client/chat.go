package client

import "github.com/gennadis/groqchat/internal/chat"

type ChatCompletionRequest struct {
	Model       chat.ChatModel `json:"model"`
	Messages    []chat.Message `json:"messages"`
	Temperature float64        `json:"temperature"`
	MaxTokens   int            `json:"max_tokens"`
	TopP        float64        `json:"top_p"`
}

type ChatResponse struct {
	ID      string               `json:"id"`
	Choices []ChatResponseChoice `json:"choices"`
	Created int64                `json:"created"`
	Model   chat.ChatModel       `json:"model"`
	Usage   *chat.Usage          `json:"usage"`
	Object  string               `json:"object"`
	Error   *ApiError            `json:"error,omitempty"`
}

type ChatResponseChoice struct {
	Index        int                 `json:"index"`
	Message      ChatResponseMessage `json:"message"`
	FinishReason string              `json:"finish_reason"`
}

// ChatResponseMessage keeps content nullable so a missing field can be told
// apart from an empty one.
type ChatResponseMessage struct {
	Role    chat.ChatRole `json:"role"`
	Content *string       `json:"content"`
}

type ApiErrorResponse struct {
	Error *ApiError `json:"error"`
}

type ApiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code"`
}
