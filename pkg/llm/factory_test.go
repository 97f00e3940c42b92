package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paydesk/paydesk/pkg/config"
)

func testEmbeddingSettings() config.EmbeddingSettings {
	return config.EmbeddingSettings{
		Provider:  config.LLMProviderTypeOpenAI,
		Model:     "text-embedding-3-small",
		Dimension: 1536,
		BatchSize: 128,
	}
}

func TestFactory_UnknownProvider(t *testing.T) {
	f := NewFactory(config.ProviderSettings{}, testEmbeddingSettings())
	_, err := f.ChatClient(context.Background(), "mystery")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBadRequest))
}

func TestFactory_MissingCredentials(t *testing.T) {
	f := NewFactory(config.ProviderSettings{}, testEmbeddingSettings())
	for _, provider := range []config.LLMProviderType{
		config.LLMProviderTypeOpenAI,
		config.LLMProviderTypeAnthropic,
		config.LLMProviderTypeAzure,
		config.LLMProviderTypeGoogle,
	} {
		t.Run(string(provider), func(t *testing.T) {
			_, err := f.ChatClient(context.Background(), provider)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrAuth))
		})
	}
}

func TestFactory_CachesClients(t *testing.T) {
	f := NewFactory(config.ProviderSettings{
		OpenAI: config.ProviderCredentials{APIKey: "sk-test"},
	}, testEmbeddingSettings())

	a, err := f.ChatClient(context.Background(), config.LLMProviderTypeOpenAI)
	require.NoError(t, err)
	b, err := f.ChatClient(context.Background(), config.LLMProviderTypeOpenAI)
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestFactory_AnthropicHasNoEmbedder(t *testing.T) {
	settings := testEmbeddingSettings()
	settings.Provider = config.LLMProviderTypeAnthropic
	f := NewFactory(config.ProviderSettings{
		Anthropic: config.ProviderCredentials{APIKey: "sk-ant"},
	}, settings)

	_, err := f.Embedder(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBadRequest))
}

// fakeEmbedder records batch sizes for the batching test.
type fakeEmbedder struct {
	batches [][]string
	dim     int
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.batches = append(f.batches, texts)
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(len(f.batches)), float32(i)}
	}
	return out, nil
}

func (f *fakeEmbedder) Dimension() int { return f.dim }

func TestGuardedEmbedder_BatchesAndPreservesOrder(t *testing.T) {
	inner := &fakeEmbedder{dim: 2}
	g := &guardedEmbedder{inner: inner, sem: NewFactory(config.ProviderSettings{}, testEmbeddingSettings()).semLocked("x"), batchSize: 3}

	texts := make([]string, 8)
	for i := range texts {
		texts[i] = fmt.Sprintf("text-%d", i)
	}
	out, err := g.Embed(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, out, 8)
	assert.Len(t, inner.batches, 3)
	assert.Len(t, inner.batches[0], 3)
	assert.Len(t, inner.batches[2], 2)
	// first vector of batch 2 carries batch marker 2, index 0
	assert.Equal(t, []float32{2, 0}, out[3])
}

func TestCatalog(t *testing.T) {
	all := Catalog("")
	assert.Len(t, all, 4)

	one := Catalog(config.LLMProviderTypeOpenAI)
	require.Len(t, one, 1)
	assert.NotEmpty(t, one[config.LLMProviderTypeOpenAI])

	none := Catalog("mystery")
	assert.Empty(t, none)
}
