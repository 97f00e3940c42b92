package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// remoteTool adapts one discovered MCP tool to the registry's Tool interface.
// The registry name is namespaced "server.tool" so remote names can never
// shadow built-ins or other servers.
type remoteTool struct {
	manager    *Manager
	server     string
	remoteName string
	desc       string
	schema     json.RawMessage
}

func (t *remoteTool) Name() string            { return t.server + "." + t.remoteName }
func (t *remoteTool) Description() string     { return t.desc }
func (t *remoteTool) Schema() json.RawMessage { return t.schema }

func (t *remoteTool) Invoke(ctx context.Context, args map[string]any) (string, error) {
	result, err := t.manager.callTool(ctx, t.server, t.remoteName, args)
	if err != nil {
		return "", fmt.Errorf("remote tool %s failed: %w", t.Name(), err)
	}
	text := flattenContent(result)
	if result.IsError {
		return "", fmt.Errorf("remote tool %s returned an error: %s", t.Name(), text)
	}
	return text, nil
}

// flattenContent joins the text blocks of a tool result. Non-text content is
// represented by its type tag so the model knows something was omitted.
func flattenContent(result *mcpsdk.CallToolResult) string {
	var parts []string
	for _, content := range result.Content {
		switch c := content.(type) {
		case *mcpsdk.TextContent:
			parts = append(parts, c.Text)
		case *mcpsdk.ImageContent:
			parts = append(parts, "[image content omitted]")
		default:
			parts = append(parts, "[non-text content omitted]")
		}
	}
	return strings.Join(parts, "\n")
}
