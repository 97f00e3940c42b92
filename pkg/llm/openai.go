package llm

import (
	"context"
	"errors"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"github.com/paydesk/paydesk/pkg/config"
)

// openAIClient implements ChatClient and Embedder against the OpenAI API.
// The same implementation serves Azure OpenAI through its client config.
type openAIClient struct {
	client    *openai.Client
	provider  config.LLMProviderType
	embedding config.EmbeddingSettings
}

// NewOpenAIClient builds a client for the OpenAI API. An empty baseURL uses
// the public endpoint.
func NewOpenAIClient(apiKey, baseURL string, embedding config.EmbeddingSettings) (*openAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: missing OpenAI API key", ErrAuth)
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &openAIClient{
		client:    openai.NewClientWithConfig(cfg),
		provider:  config.LLMProviderTypeOpenAI,
		embedding: embedding,
	}, nil
}

// NewAzureClient builds a client for Azure OpenAI. Deployment names are
// derived from model ids by the SDK's default mapper.
func NewAzureClient(apiKey, endpoint string, embedding config.EmbeddingSettings) (*openAIClient, error) {
	if apiKey == "" || endpoint == "" {
		return nil, fmt.Errorf("%w: missing Azure OpenAI credentials", ErrAuth)
	}
	cfg := openai.DefaultAzureConfig(apiKey, endpoint)
	return &openAIClient{
		client:    openai.NewClientWithConfig(cfg),
		provider:  config.LLMProviderTypeAzure,
		embedding: embedding,
	}, nil
}

func (c *openAIClient) Provider() config.LLMProviderType { return c.provider }

func (c *openAIClient) Chat(ctx context.Context, msgs []Message, opts ChatOptions) (*ChatResult, error) {
	resp, err := c.client.CreateChatCompletion(ctx, c.buildRequest(msgs, nil, opts, false))
	if err != nil {
		return nil, mapOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices returned", ErrProvider)
	}
	return &ChatResult{
		Text:       resp.Choices[0].Message.Content,
		TokensUsed: resp.Usage.TotalTokens,
	}, nil
}

func (c *openAIClient) ChatStream(ctx context.Context, msgs []Message, opts ChatOptions, fn StreamFunc) (*ChatResult, error) {
	stream, err := c.client.CreateChatCompletionStream(ctx, c.buildRequest(msgs, nil, opts, true))
	if err != nil {
		return nil, mapOpenAIError(err)
	}
	defer stream.Close()

	var full string
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, mapOpenAIError(err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta.Content
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

func (c *openAIClient) ChatWithTools(ctx context.Context, msgs []Message, tools []ToolDefinition, opts ChatOptions) (*ChatResult, error) {
	resp, err := c.client.CreateChatCompletion(ctx, c.buildRequest(msgs, tools, opts, false))
	if err != nil {
		return nil, mapOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices returned", ErrProvider)
	}
	choice := resp.Choices[0].Message
	result := &ChatResult{
		Text:       choice.Content,
		TokensUsed: resp.Usage.TotalTokens,
	}
	for _, tc := range choice.ToolCalls {
		result.ToolCalls = append(result.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: []byte(tc.Function.Arguments),
		})
	}
	return result, nil
}

// Embed generates embeddings for texts, preserving input order. Callers batch
// to ≤ the configured batch size; the provider call itself is one request.
func (c *openAIClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      texts,
		Model:      openai.EmbeddingModel(c.embedding.Model),
		Dimensions: c.embedding.Dimension,
	})
	if err != nil {
		return nil, mapOpenAIError(err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d inputs", ErrProvider, len(resp.Data), len(texts))
	}
	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("%w: embedding index %d out of range", ErrProvider, d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

func (c *openAIClient) Dimension() int { return c.embedding.Dimension }

func (c *openAIClient) buildRequest(msgs []Message, tools []ToolDefinition, opts ChatOptions, stream bool) openai.ChatCompletionRequest {
	oaMsgs := make([]openai.ChatCompletionMessage, len(msgs))
	for i, m := range msgs {
		oaMsgs[i] = openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		}
	}
	req := openai.ChatCompletionRequest{
		Model:       opts.Model,
		Messages:    oaMsgs,
		Temperature: float32(opts.Temperature),
		Stream:      stream,
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}
	for _, t := range tools {
		params := t.Schema
		if len(params) == 0 {
			params = []byte(`{"type":"object","properties":{}}`)
		}
		req.Tools = append(req.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		})
	}
	return req
}

// mapOpenAIError translates SDK errors onto the shared taxonomy.
func mapOpenAIError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.HTTPStatusCode, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return classifyStatus(reqErr.HTTPStatusCode, err)
	}
	return classifyTransport(err)
}
