package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/paydesk/paydesk/pkg/config"
)

// googleClient implements ChatClient and Embedder against the Gemini API.
type googleClient struct {
	client    *genai.Client
	embedding config.EmbeddingSettings
}

// NewGoogleClient builds a client for the Google Gemini API.
func NewGoogleClient(ctx context.Context, apiKey string, embedding config.EmbeddingSettings) (*googleClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: missing Google API key", ErrAuth)
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &googleClient{client: client, embedding: embedding}, nil
}

func (c *googleClient) Provider() config.LLMProviderType {
	return config.LLMProviderTypeGoogle
}

func (c *googleClient) Chat(ctx context.Context, msgs []Message, opts ChatOptions) (*ChatResult, error) {
	contents, cfg := buildGenaiRequest(msgs, nil, opts)
	resp, err := c.client.Models.GenerateContent(ctx, opts.Model, contents, cfg)
	if err != nil {
		return nil, mapGoogleError(err)
	}
	result := &ChatResult{Text: resp.Text()}
	if resp.UsageMetadata != nil {
		result.TokensUsed = int(resp.UsageMetadata.TotalTokenCount)
	}
	return result, nil
}

func (c *googleClient) ChatStream(ctx context.Context, msgs []Message, opts ChatOptions, fn StreamFunc) (*ChatResult, error) {
	contents, cfg := buildGenaiRequest(msgs, nil, opts)
	var full string
	for resp, err := range c.client.Models.GenerateContentStream(ctx, opts.Model, contents, cfg) {
		if err != nil {
			return nil, mapGoogleError(err)
		}
		delta := resp.Text()
		if delta == "" {
			continue
		}
		full += delta
		if fn != nil {
			if err := fn(delta); err != nil {
				return nil, err
			}
		}
	}
	return &ChatResult{Text: full}, nil
}

func (c *googleClient) ChatWithTools(ctx context.Context, msgs []Message, tools []ToolDefinition, opts ChatOptions) (*ChatResult, error) {
	contents, cfg := buildGenaiRequest(msgs, tools, opts)
	resp, err := c.client.Models.GenerateContent(ctx, opts.Model, contents, cfg)
	if err != nil {
		return nil, mapGoogleError(err)
	}
	result := &ChatResult{Text: resp.Text()}
	if resp.UsageMetadata != nil {
		result.TokensUsed = int(resp.UsageMetadata.TotalTokenCount)
	}
	for i, fc := range resp.FunctionCalls() {
		args, err := json.Marshal(fc.Args)
		if err != nil {
			return nil, fmt.Errorf("%w: tool call arguments: %w", ErrProvider, err)
		}
		id := fc.ID
		if id == "" {
			id = fmt.Sprintf("call_%d", i)
		}
		result.ToolCalls = append(result.ToolCalls, ToolCall{
			ID:        id,
			Name:      fc.Name,
			Arguments: args,
		})
	}
	return result, nil
}

// Embed generates embeddings for texts in order.
func (c *googleClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}
	dim := int32(c.embedding.Dimension)
	resp, err := c.client.Models.EmbedContent(ctx, c.embedding.Model, contents, &genai.EmbedContentConfig{
		OutputDimensionality: &dim,
	})
	if err != nil {
		return nil, mapGoogleError(err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d inputs", ErrProvider, len(resp.Embeddings), len(texts))
	}
	out := make([][]float32, len(texts))
	for i, e := range resp.Embeddings {
		out[i] = e.Values
	}
	return out, nil
}

func (c *googleClient) Dimension() int { return c.embedding.Dimension }

func buildGenaiRequest(msgs []Message, tools []ToolDefinition, opts ChatOptions) ([]*genai.Content, *genai.GenerateContentConfig) {
	cfg := &genai.GenerateContentConfig{}
	temp := float32(opts.Temperature)
	cfg.Temperature = &temp
	if opts.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(opts.MaxTokens)
	}

	var contents []*genai.Content
	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			if cfg.SystemInstruction == nil {
				cfg.SystemInstruction = genai.NewContentFromText(m.Content, genai.RoleUser)
			} else {
				cfg.SystemInstruction.Parts = append(cfg.SystemInstruction.Parts,
					&genai.Part{Text: m.Content})
			}
		case RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}

	for _, t := range tools {
		decl := &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
		}
		if len(t.Schema) > 0 {
			var m map[string]any
			if err := json.Unmarshal(t.Schema, &m); err == nil {
				decl.ParametersJsonSchema = m
			}
		}
		cfg.Tools = append(cfg.Tools, &genai.Tool{
			FunctionDeclarations: []*genai.FunctionDeclaration{decl},
		})
	}
	return contents, cfg
}

// mapGoogleError translates genai errors onto the shared taxonomy.
func mapGoogleError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.Code, err)
	}
	return classifyTransport(err)
}
