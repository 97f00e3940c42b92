// Package tools hosts the agent's callable tools: the in-process built-ins,
// the registry the agent invokes through, and the persisted per-tool
// configuration (enablement, credentials).
package tools

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/paydesk/paydesk/pkg/llm"
)

// Sentinel errors for tool invocation.
var (
	// ErrToolNotFound means no tool with that name is registered.
	ErrToolNotFound = errors.New("tool not found")
	// ErrToolDisabled means the tool exists but is administratively disabled.
	ErrToolDisabled = errors.New("tool disabled")
)

// Tool is one callable capability exposed to the agent.
type Tool interface {
	// Name is the unique registry key, also used in model tool definitions.
	Name() string
	// Description tells the model when to call the tool.
	Description() string
	// Schema is the JSON Schema of the arguments object.
	Schema() json.RawMessage
	// Invoke runs the tool. The returned string is fed back to the model.
	Invoke(ctx context.Context, args map[string]any) (string, error)
}

// Definition converts a tool to the provider-neutral model declaration.
func Definition(t Tool) llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        t.Name(),
		Description: t.Description(),
		Schema:      t.Schema(),
	}
}
