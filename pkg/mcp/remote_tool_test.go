package mcp

import (
	"testing"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
)

func TestRemoteTool_Name(t *testing.T) {
	rt := &remoteTool{server: "payments", remoteName: "lookup_rate"}
	assert.Equal(t, "payments.lookup_rate", rt.Name())
}

func TestFlattenContent(t *testing.T) {
	result := &mcpsdk.CallToolResult{Content: []mcpsdk.Content{
		&mcpsdk.TextContent{Text: "line one"},
		&mcpsdk.ImageContent{},
		&mcpsdk.TextContent{Text: "line two"},
	}}
	assert.Equal(t, "line one\n[image content omitted]\nline two", flattenContent(result))
}

func TestMarshalSchema_NilFallsBack(t *testing.T) {
	assert.JSONEq(t, `{"type":"object"}`, string(marshalSchema(nil)))
}
