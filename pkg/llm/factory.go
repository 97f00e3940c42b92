package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/paydesk/paydesk/pkg/config"
)

// Factory builds provider clients from settings and hands them out wrapped
// with deadlines, retries, and per-provider concurrency budgets. Clients are
// constructed once per provider and reused; credentials are bound at
// construction.
type Factory struct {
	providers config.ProviderSettings
	embedding config.EmbeddingSettings

	mu    sync.Mutex
	chat  map[config.LLMProviderType]ChatClient
	embed map[config.LLMProviderType]Embedder
	sems  map[config.LLMProviderType]*semaphore.Weighted
}

// NewFactory creates the provider client factory.
func NewFactory(providers config.ProviderSettings, embedding config.EmbeddingSettings) *Factory {
	return &Factory{
		providers: providers,
		embedding: embedding,
		chat:      make(map[config.LLMProviderType]ChatClient),
		embed:     make(map[config.LLMProviderType]Embedder),
		sems:      make(map[config.LLMProviderType]*semaphore.Weighted),
	}
}

// ChatClient returns the chat client for the given provider, building it on
// first use.
func (f *Factory) ChatClient(ctx context.Context, provider config.LLMProviderType) (ChatClient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.chat[provider]; ok {
		return c, nil
	}

	raw, err := f.buildChat(ctx, provider)
	if err != nil {
		return nil, err
	}
	guarded := &guardedChat{inner: raw, sem: f.semLocked(provider)}
	f.chat[provider] = guarded
	return guarded, nil
}

// Embedder returns the embedding client for the configured embedding
// provider, building it on first use.
func (f *Factory) Embedder(ctx context.Context) (Embedder, error) {
	provider := f.embedding.Provider

	f.mu.Lock()
	defer f.mu.Unlock()

	if e, ok := f.embed[provider]; ok {
		return e, nil
	}

	raw, err := f.buildEmbedder(ctx, provider)
	if err != nil {
		return nil, err
	}
	guarded := &guardedEmbedder{
		inner:     raw,
		sem:       f.semLocked(provider),
		batchSize: f.embedding.BatchSize,
	}
	f.embed[provider] = guarded
	return guarded, nil
}

func (f *Factory) buildChat(ctx context.Context, provider config.LLMProviderType) (ChatClient, error) {
	switch provider {
	case config.LLMProviderTypeOpenAI:
		return NewOpenAIClient(f.providers.OpenAI.APIKey, f.providers.OpenAI.BaseURL, f.embedding)
	case config.LLMProviderTypeAzure:
		return NewAzureClient(f.providers.Azure.APIKey, f.providers.Azure.Endpoint, f.embedding)
	case config.LLMProviderTypeAnthropic:
		return NewAnthropicClient(f.providers.Anthropic.APIKey)
	case config.LLMProviderTypeGoogle:
		return NewGoogleClient(ctx, f.providers.Google.APIKey, f.embedding)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrBadRequest, provider)
	}
}

func (f *Factory) buildEmbedder(ctx context.Context, provider config.LLMProviderType) (Embedder, error) {
	switch provider {
	case config.LLMProviderTypeOpenAI:
		return NewOpenAIClient(f.providers.OpenAI.APIKey, f.providers.OpenAI.BaseURL, f.embedding)
	case config.LLMProviderTypeAzure:
		return NewAzureClient(f.providers.Azure.APIKey, f.providers.Azure.Endpoint, f.embedding)
	case config.LLMProviderTypeGoogle:
		return NewGoogleClient(ctx, f.providers.Google.APIKey, f.embedding)
	default:
		return nil, fmt.Errorf("%w: provider %q does not offer embeddings", ErrBadRequest, provider)
	}
}

// semLocked returns the provider's concurrency budget, creating it on first
// use. Caller holds f.mu.
func (f *Factory) semLocked(provider config.LLMProviderType) *semaphore.Weighted {
	if s, ok := f.sems[provider]; ok {
		return s
	}
	weight := f.providers.MaxConcurrent
	if weight <= 0 {
		weight = 8
	}
	s := semaphore.NewWeighted(weight)
	f.sems[provider] = s
	return s
}

// guardedChat wraps a provider chat client with the provider's concurrency
// budget, default deadlines, and the retry policy.
type guardedChat struct {
	inner ChatClient
	sem   *semaphore.Weighted
}

func (g *guardedChat) Provider() config.LLMProviderType { return g.inner.Provider() }

func (g *guardedChat) Chat(ctx context.Context, msgs []Message, opts ChatOptions) (*ChatResult, error) {
	ctx, cancel := ensureDeadline(ctx, DefaultChatTimeout)
	defer cancel()
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, classifyTransport(err)
	}
	defer g.sem.Release(1)

	var result *ChatResult
	err := withRetry(ctx, "chat", func() error {
		var callErr error
		result, callErr = g.inner.Chat(ctx, msgs, opts)
		return callErr
	})
	return result, err
}

func (g *guardedChat) ChatWithTools(ctx context.Context, msgs []Message, tools []ToolDefinition, opts ChatOptions) (*ChatResult, error) {
	ctx, cancel := ensureDeadline(ctx, DefaultChatTimeout)
	defer cancel()
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, classifyTransport(err)
	}
	defer g.sem.Release(1)

	var result *ChatResult
	err := withRetry(ctx, "chat_with_tools", func() error {
		var callErr error
		result, callErr = g.inner.ChatWithTools(ctx, msgs, tools, opts)
		return callErr
	})
	return result, err
}

// ChatStream is not retried: deltas may already have reached the caller.
func (g *guardedChat) ChatStream(ctx context.Context, msgs []Message, opts ChatOptions, fn StreamFunc) (*ChatResult, error) {
	ctx, cancel := ensureDeadline(ctx, DefaultChatStreamTimeout)
	defer cancel()
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, classifyTransport(err)
	}
	defer g.sem.Release(1)

	return g.inner.ChatStream(ctx, msgs, opts, fn)
}

// guardedEmbedder wraps a provider embedder with batching, deadlines, and
// retries. Output order always matches input order.
type guardedEmbedder struct {
	inner     Embedder
	sem       *semaphore.Weighted
	batchSize int
}

func (g *guardedEmbedder) Dimension() int { return g.inner.Dimension() }

func (g *guardedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	batchSize := g.batchSize
	if batchSize <= 0 || batchSize > 128 {
		batchSize = 128
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := min(start+batchSize, len(texts))
		batch, err := g.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
	}
	return out, nil
}

func (g *guardedEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := ensureDeadline(ctx, DefaultEmbedTimeout)
	defer cancel()
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, classifyTransport(err)
	}
	defer g.sem.Release(1)

	var result [][]float32
	err := withRetry(ctx, "embed", func() error {
		var callErr error
		result, callErr = g.inner.Embed(ctx, texts)
		return callErr
	})
	return result, err
}

// ensureDeadline applies a default timeout when the caller's context carries
// none.
func ensureDeadline(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
