// Package llm provides the chat-completion client contract consumed by the
// decision engine, plus the Anthropic implementation. The engine only depends
// on the Client interface, so tests substitute a scripted fake and alternate
// providers can be added without touching the engine.
package llm

import "context"

// Message represents a chat message in provider-neutral form.
type Message struct {
	Role    string `json:"role"`    // "system", "user", or "assistant"
	Content string `json:"content"` // Message content
}

// Chat roles used in projected conversation history.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ToolSpec describes one callable tool offered to the model: a name plus a
// JSON-schema-like parameter specification. The catalog is pluggable
// configuration, not a fixed list.
type ToolSpec struct {
	// Name is the tool identifier the model invokes it by.
	Name string `json:"name" yaml:"name"`

	// Description tells the model what the tool does and when to use it.
	Description string `json:"description" yaml:"description"`

	// Parameters is a JSON-schema object describing the arguments.
	Parameters map[string]any `json:"parameters" yaml:"parameters"`
}

// ToolCall is a structured function invocation returned by the model instead
// of (or alongside) free text.
type ToolCall struct {
	// ID is the provider-assigned call identifier, when available.
	ID string

	// Name is the invoked tool's name.
	Name string

	// ArgumentsJSON is the raw JSON-encoded arguments object.
	ArgumentsJSON string
}

// Request defines one chat completion call.
type Request struct {
	// Messages is the full prompt: system message first, then history.
	Messages []Message

	// Tools is the catalog offered to the model. Empty disables tool calling.
	Tools []ToolSpec

	// MaxTokens limits response length. 0 uses the provider default.
	MaxTokens int

	// Temperature controls randomness. nil uses the provider default.
	Temperature *float64
}

// Usage reports token consumption for one call.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Response contains the completion result.
type Response struct {
	// Content is the generated text, empty when the model only called tools.
	Content string

	// ToolCalls holds structured tool invocations, in the order the model
	// emitted them.
	ToolCalls []ToolCall

	// Model is the actual model that served the request.
	Model string

	// StopReason indicates why generation stopped (provider-specific).
	StopReason string

	// Usage contains token consumption metrics.
	Usage Usage
}

// Client is the chat interface the decision engine calls. Implementations
// must support a tool-calling mode where the model can return a structured
// function invocation instead of free text.
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}
