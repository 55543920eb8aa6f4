package types

// Role values accepted in Message.Role.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Image is an inline image attached to a message.
type Image struct {
	MIMEType string `json:"mime_type"` // e.g. image/png
	Data     []byte `json:"data"`      // raw, not base64
}

// Message represents a message in a conversation
type Message struct {
	Role    string  `json:"role"`             // user, assistant, system
	Content string  `json:"content"`          // message text
	Images  []Image `json:"images,omitempty"` // attached images, sent after the text
}

// CompletionRequest represents a request to complete text
type CompletionRequest struct {
	System      string    `json:"system,omitempty"`      // system instruction
	Messages    []Message `json:"messages"`              // conversation history
	MaxTokens   int       `json:"max_tokens,omitempty"`  // 0 uses the provider default
	Temperature *float32  `json:"temperature,omitempty"` // nil uses the provider default
}

// CompletionResponse represents a completion response
type CompletionResponse struct {
	Content string     `json:"content"` // generated text
	Model   string     `json:"model"`   // model that produced the text
	Usage   TokenUsage `json:"usage"`   // token usage
}

// TokenUsage tracks token usage
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`     // input tokens
	CompletionTokens int `json:"completion_tokens"` // output tokens
	TotalTokens      int `json:"total_tokens"`      // total tokens
}

// Add accumulates u into t.
func (t *TokenUsage) Add(u TokenUsage) {
	t.PromptTokens += u.PromptTokens
	t.CompletionTokens += u.CompletionTokens
	t.TotalTokens += u.TotalTokens
}

// Capabilities describes what a provider/model pair supports.
type Capabilities struct {
	Provider      string `json:"provider"`
	Model         string `json:"model"`
	Vision        bool   `json:"vision"`
	MaxTokens     int    `json:"max_tokens"`
	ContextWindow int    `json:"context_window"`
}

// Float32 returns a pointer to v, for CompletionRequest.Temperature.
func Float32(v float32) *float32 { return &v }

// SystemAndMessages splits out any system-role messages, joining them with
// req.System. Providers that take the system prompt as a separate field use it.
func SystemAndMessages(req CompletionRequest) (string, []Message) {
	system := req.System
	filtered := make([]Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		if m.Role == RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
			continue
		}
		filtered = append(filtered, m)
	}
	return system, filtered
}
