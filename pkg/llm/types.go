// Package llm abstracts the embedding and chat providers behind capability
// interfaces. The agent never names providers; a factory selects the
// implementation from the active agent configuration.
package llm

import (
	"context"
	"encoding/json"
	"time"

	"github.com/paydesk/paydesk/pkg/config"
)

// Role identifies the author of a chat message sent to a provider
type Role string

const (
	// RoleSystem is instruction content
	RoleSystem Role = "system"
	// RoleUser is end-user content
	RoleUser Role = "user"
	// RoleAssistant is prior model output
	RoleAssistant Role = "assistant"
)

// Message is one turn in a provider chat call.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ToolDefinition describes one callable tool offered to the model.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Schema      json.RawMessage `json:"schema,omitempty"`
}

// ToolCall is one tool invocation requested by the model.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ChatOptions parameterizes a single chat call.
type ChatOptions struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// ChatResult is the outcome of a chat call: generated text, or a list of
// tool calls when tools were bound and the model chose to use them.
type ChatResult struct {
	Text       string
	ToolCalls  []ToolCall
	TokensUsed int
}

// StreamFunc receives incremental text deltas during a streaming chat call.
// Returning an error aborts the stream.
type StreamFunc func(delta string) error

// ChatClient is the chat capability implemented once per provider.
type ChatClient interface {
	// Chat performs a non-streaming completion.
	Chat(ctx context.Context, msgs []Message, opts ChatOptions) (*ChatResult, error)
	// ChatStream performs a streaming completion, invoking fn per delta and
	// returning the assembled result.
	ChatStream(ctx context.Context, msgs []Message, opts ChatOptions, fn StreamFunc) (*ChatResult, error)
	// ChatWithTools binds tools to the call; the result carries either tool
	// calls or text.
	ChatWithTools(ctx context.Context, msgs []Message, tools []ToolDefinition, opts ChatOptions) (*ChatResult, error)
	// Provider identifies the backing provider.
	Provider() config.LLMProviderType
}

// Embedder is the embedding capability. Embed preserves input order and
// batches to provider limits internally.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// Default deadlines applied when the caller's context has none.
const (
	DefaultEmbedTimeout      = 30 * time.Second
	DefaultChatTimeout       = 60 * time.Second
	DefaultChatStreamTimeout = 120 * time.Second
)
