package llm

import "context"

// Provider generates text from a prompt. Implementations wrap one vendor
// SDK; decorators add retry, timeouts and usage logging.
type Provider interface {
	// Generate sends the request and returns the model's text output.
	Generate(ctx context.Context, req Request) (*Response, error)

	// ModelID returns the model identifier this provider is configured to use.
	ModelID() string
}

// Request describes what to send to the model.
type Request struct {
	// System is an optional system prompt.
	System string

	// Messages is the conversation. Tutoring and reports send a single
	// user message carrying the fully composed prompt.
	Messages []Message

	// MaxTokens caps the response length.
	MaxTokens int

	// Temperature controls randomness. Zero leaves the provider default.
	Temperature float64
}

// Message represents a single message in the conversation.
type Message struct {
	Role    Role
	Content string
}

// Role is the message sender role.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Prompt wraps a composed prompt into a single-message request.
func Prompt(text string, maxTokens int, temperature float64) Request {
	return Request{
		Messages:    []Message{{Role: RoleUser, Content: text}},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}
}

// Response holds the model's output.
type Response struct {
	// Text is the raw generated text, unmodified.
	Text string

	// Usage reports token consumption for this request.
	Usage Usage

	// Model is the actual model that served the request.
	Model string

	// StopReason is normalized to "end", "max_tokens" or "error".
	StopReason string
}

// Usage tracks token consumption for a single request.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// EstimateUsage fills in a rough count (four characters per token) when a
// backend reports none. Counts are diagnostic only.
func EstimateUsage(prompt, output string) Usage {
	in := len([]rune(prompt)) / 4
	out := len([]rune(output)) / 4
	return Usage{InputTokens: in, OutputTokens: out, TotalTokens: in + out}
}
