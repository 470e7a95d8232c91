package chat

// https://console.groq.com/docs/api-reference#chat-create
const (
	DefaultTemperature = 0.7  // [ 0 .. 2 ] Default: 1
	DefaultTopP        = 1.0  // [ 0 .. 1 ] Default: 1
	DefaultMaxTokens   = 1024
)

type ChatModel string

const (
	ModelLlama3_70B ChatModel = "llama3-70b-8192"
	ModelLlama3_8B  ChatModel = "llama3-8b-8192"
	ModelMixtral    ChatModel = "mixtral-8x7b-32768"
	ModelGemma      ChatModel = "gemma-7b-it"

	DefaultModel = ModelLlama3_70B
)

// KnownModels lists the model identifiers offered to the user, default first.
func KnownModels() []ChatModel {
	return []ChatModel{ModelLlama3_70B, ModelLlama3_8B, ModelMixtral, ModelGemma}
}

type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
)

// Message is a single transcript entry. Messages are values and are never
// modified after they are appended to a session.
type Message struct {
	Role    ChatRole `json:"role"`
	Content string   `json:"content"`
}

// Usage is the token accounting reported by the provider for one completion.
type Usage struct {
	PromptTokens     int32   `json:"prompt_tokens"`
	CompletionTokens int32   `json:"completion_tokens"`
	TotalTokens      int32   `json:"total_tokens"`
	QueueTime        float64 `json:"queue_time,omitempty"`
	TotalTime        float64 `json:"total_time,omitempty"`
}
