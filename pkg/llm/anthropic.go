package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/paydesk/paydesk/pkg/config"
)

// anthropicClient implements ChatClient against the Anthropic Messages API.
// Anthropic has no embedding endpoint; the factory pairs it with another
// provider's embedder.
type anthropicClient struct {
	client sdk.Client
}

// NewAnthropicClient builds a chat client for the Anthropic API.
func NewAnthropicClient(apiKey string) (*anthropicClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: missing Anthropic API key", ErrAuth)
	}
	return &anthropicClient{
		client: sdk.NewClient(option.WithAPIKey(apiKey)),
	}, nil
}

func (c *anthropicClient) Provider() config.LLMProviderType {
	return config.LLMProviderTypeAnthropic
}

func (c *anthropicClient) Chat(ctx context.Context, msgs []Message, opts ChatOptions) (*ChatResult, error) {
	return c.call(ctx, msgs, nil, opts)
}

func (c *anthropicClient) ChatWithTools(ctx context.Context, msgs []Message, tools []ToolDefinition, opts ChatOptions) (*ChatResult, error) {
	return c.call(ctx, msgs, tools, opts)
}

func (c *anthropicClient) call(ctx context.Context, msgs []Message, tools []ToolDefinition, opts ChatOptions) (*ChatResult, error) {
	params, err := buildAnthropicParams(msgs, tools, opts)
	if err != nil {
		return nil, err
	}
	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, mapAnthropicError(err)
	}

	result := &ChatResult{
		TokensUsed: int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
	}
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			result.Text += block.Text
		case "tool_use":
			result.ToolCalls = append(result.ToolCalls, ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: json.RawMessage(block.Input),
			})
		}
	}
	return result, nil
}

func (c *anthropicClient) ChatStream(ctx context.Context, msgs []Message, opts ChatOptions, fn StreamFunc) (*ChatResult, error) {
	params, err := buildAnthropicParams(msgs, nil, opts)
	if err != nil {
		return nil, err
	}
	stream := c.client.Messages.NewStreaming(ctx, params)
	defer func() { _ = stream.Close() }()

	var full string
	for stream.Next() {
		event := stream.Current()
		if ev, ok := event.AsAny().(sdk.ContentBlockDeltaEvent); ok {
			if delta, ok := ev.Delta.AsAny().(sdk.TextDelta); ok && delta.Text != "" {
				full += delta.Text
				if fn != nil {
					if err := fn(delta.Text); err != nil {
						return nil, err
					}
				}
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, mapAnthropicError(err)
	}
	return &ChatResult{Text: full}, nil
}

func buildAnthropicParams(msgs []Message, tools []ToolDefinition, opts ChatOptions) (sdk.MessageNewParams, error) {
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	params := sdk.MessageNewParams{
		Model:     sdk.Model(opts.Model),
		MaxTokens: int64(maxTokens),
	}
	if opts.Temperature > 0 {
		params.Temperature = sdk.Float(opts.Temperature)
	}

	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			params.System = append(params.System, sdk.TextBlockParam{Text: m.Content})
		case RoleUser:
			params.Messages = append(params.Messages, sdk.NewUserMessage(sdk.NewTextBlock(m.Content)))
		case RoleAssistant:
			params.Messages = append(params.Messages, sdk.NewAssistantMessage(sdk.NewTextBlock(m.Content)))
		default:
			return sdk.MessageNewParams{}, fmt.Errorf("%w: unsupported role %q", ErrBadRequest, m.Role)
		}
	}
	if len(params.Messages) == 0 {
		return sdk.MessageNewParams{}, fmt.Errorf("%w: at least one user message required", ErrBadRequest)
	}

	for _, t := range tools {
		var schema sdk.ToolInputSchemaParam
		if len(t.Schema) > 0 {
			var m map[string]any
			if err := json.Unmarshal(t.Schema, &m); err != nil {
				return sdk.MessageNewParams{}, fmt.Errorf("%w: tool %q schema: %w", ErrBadRequest, t.Name, err)
			}
			schema.ExtraFields = m
		}
		u := sdk.ToolUnionParamOfTool(schema, t.Name)
		if u.OfTool != nil {
			u.OfTool.Description = sdk.String(t.Description)
		}
		params.Tools = append(params.Tools, u)
	}
	return params, nil
}

// mapAnthropicError translates SDK errors onto the shared taxonomy.
func mapAnthropicError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.StatusCode, err)
	}
	return classifyTransport(err)
}
