package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paydesk/paydesk/pkg/config"
	"github.com/paydesk/paydesk/pkg/llm"
	"github.com/paydesk/paydesk/pkg/models"
)

// fakeChat scripts provider responses. Confidence-evaluation calls are
// detected by prompt content so one client can serve every node.
type fakeChat struct {
	analysis       string
	generation     string
	confidence     string
	confidenceErr  error
	toolCalls      []llm.ToolCall
	generationErr  error
	streamedChunks []string
}

func (f *fakeChat) Provider() config.LLMProviderType { return config.LLMProviderTypeOpenAI }

func (f *fakeChat) Chat(_ context.Context, msgs []llm.Message, _ llm.ChatOptions) (*llm.ChatResult, error) {
	last := msgs[len(msgs)-1].Content
	if strings.Contains(last, "Rate how well") {
		if f.confidenceErr != nil {
			return nil, f.confidenceErr
		}
		return &llm.ChatResult{Text: f.confidence}, nil
	}
	if strings.Contains(last, "Analyse this question") {
		return &llm.ChatResult{Text: f.analysis}, nil
	}
	if f.generationErr != nil {
		return nil, f.generationErr
	}
	return &llm.ChatResult{Text: f.generation, TokensUsed: 42}, nil
}

func (f *fakeChat) ChatStream(ctx context.Context, msgs []llm.Message, opts llm.ChatOptions, fn llm.StreamFunc) (*llm.ChatResult, error) {
	for _, c := range f.streamedChunks {
		if err := fn(c); err != nil {
			return nil, err
		}
	}
	return f.Chat(ctx, msgs, opts)
}

func (f *fakeChat) ChatWithTools(_ context.Context, _ []llm.Message, _ []llm.ToolDefinition, _ llm.ChatOptions) (*llm.ChatResult, error) {
	return &llm.ChatResult{ToolCalls: f.toolCalls}, nil
}

type fakeProvider struct {
	chat     *fakeChat
	embedErr error
}

func (f *fakeProvider) ChatClient(context.Context, config.LLMProviderType) (llm.ChatClient, error) {
	return f.chat, nil
}

func (f *fakeProvider) Embedder(context.Context) (llm.Embedder, error) {
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	return fakeEmbedder{}, nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{0.1, 0.2}
	}
	return out, nil
}
func (fakeEmbedder) Dimension() int { return 2 }

type fakeRetriever struct {
	chunks []models.ScoredChunk
	hybrid bool
	vector bool
}

func (f *fakeRetriever) HybridSearch(_ context.Context, _ []float32, _ string, _ int, _ float64) ([]models.ScoredChunk, error) {
	f.hybrid = true
	return f.chunks, nil
}

func (f *fakeRetriever) VectorSearch(_ context.Context, _ []float32, _ int, _ float64) ([]models.ScoredChunk, error) {
	f.vector = true
	return f.chunks, nil
}

// fakePrompts always renders the compiled-in fallback.
type fakePrompts struct{}

func (fakePrompts) FormatPrompt(_ context.Context, _ string, _ config.PromptType, vars map[string]string, fallback string) (string, *int) {
	out := fallback
	for k, v := range vars {
		out = strings.ReplaceAll(out, "{"+k+"}", v)
	}
	return out, nil
}

type fakeRegistry struct {
	defs    []llm.ToolDefinition
	results map[string]string
	errs    map[string]error
	calls   []string
}

func (f *fakeRegistry) Definitions() []llm.ToolDefinition { return f.defs }
func (f *fakeRegistry) Invoke(_ context.Context, name string, _ map[string]any) (string, error) {
	f.calls = append(f.calls, name)
	if err := f.errs[name]; err != nil {
		return "", err
	}
	return f.results[name], nil
}

func testConfig() config.AgentConfigData {
	return config.DefaultAgentConfig()
}

func newTestAgent(chat *fakeChat, ret *fakeRetriever, reg *fakeRegistry) *Agent {
	if reg == nil {
		reg = &fakeRegistry{}
	}
	return New(&fakeProvider{chat: chat}, ret, fakePrompts{}, reg, Options{})
}

func TestRun_AnswerAboveThreshold(t *testing.T) {
	chat := &fakeChat{
		analysis:   `{"query_type":"direct_question","strategy":"standard_rag","urgency":"low","topics":["fees"]}`,
		generation: strings.Repeat("The refund fee is waived for premium accounts. ", 6),
		confidence: "0.99",
	}
	ret := &fakeRetriever{chunks: []models.ScoredChunk{
		{Chunk: models.Chunk{Content: "Premium accounts have refund fees waived."}, Score: 0.92, Source: config.SourceSlack},
		{Chunk: models.Chunk{Content: "Refunds settle in five days."}, Score: 0.85, Source: config.SourceSlack},
		{Chunk: models.Chunk{Content: "Fee schedule 2026."}, Score: 0.78, Source: config.SourceAdminUpload},
	}}

	a := newTestAgent(chat, ret, nil)
	cfg := testConfig()
	cfg.ConfidenceThresholds.Escalation = 0.90

	resp, err := a.Run(context.Background(), Request{Query: "Is the refund fee waived?", SessionID: "s1", Config: cfg})
	require.NoError(t, err)

	assert.False(t, resp.Escalated)
	assert.Equal(t, chat.generation, resp.Message)
	assert.Equal(t, "formula", resp.ConfidenceMethod)
	assert.InDelta(t, 0.908, resp.Confidence, 1e-9)
	require.Len(t, resp.Sources, 3)
	assert.Equal(t, config.SourceSlack, resp.Sources[0].Source)
	assert.True(t, ret.hybrid, "hybrid search is the default")
	assert.Equal(t, "s1", resp.SessionID)
	assert.Equal(t, 42, resp.TokensUsed)
}

func TestRun_EscalatesBelowThreshold(t *testing.T) {
	chat := &fakeChat{
		analysis:   `{"strategy":"standard_rag"}`,
		generation: strings.Repeat("x", 260),
	}
	ret := &fakeRetriever{chunks: []models.ScoredChunk{
		{Score: 0.92}, {Score: 0.85}, {Score: 0.78},
	}}

	a := newTestAgent(chat, ret, nil)
	resp, err := a.Run(context.Background(), Request{Query: "q", SessionID: "s1", Config: testConfig()})
	require.NoError(t, err)

	assert.True(t, resp.Escalated)
	assert.Contains(t, resp.EscalationReason, "0.91")
	assert.Contains(t, resp.EscalationReason, "0.95")
	assert.Equal(t, config.DefaultEscalationMessage, resp.Message)
}

func TestRun_EmptyRetrievalEscalatesWithZeroConfidence(t *testing.T) {
	chat := &fakeChat{
		analysis:   `{"strategy":"standard_rag"}`,
		generation: "I could not find anything about that.",
	}
	a := newTestAgent(chat, &fakeRetriever{}, nil)

	resp, err := a.Run(context.Background(), Request{Query: "q", Config: testConfig()})
	require.NoError(t, err)
	assert.True(t, resp.Escalated)
	assert.Zero(t, resp.Confidence)
	assert.Empty(t, resp.Sources)
}

func TestRun_HybridConfidenceWithLLMFailure(t *testing.T) {
	chat := &fakeChat{
		analysis:      `{"strategy":"standard_rag"}`,
		generation:    "short",
		confidenceErr: errors.New("deadline exceeded"),
	}
	// two chunks 0.7/0.7: sim = 0.7, no high-quality sources, short response
	ret := &fakeRetriever{chunks: []models.ScoredChunk{{Score: 0.7}, {Score: 0.7}}}

	a := newTestAgent(chat, ret, nil)
	cfg := testConfig()
	cfg.ConfidenceCalculation.Method = config.ConfidenceMethodHybrid
	cfg.ConfidenceCalculation.HybridWeights = config.HybridWeights{Formula: 0.6, LLM: 0.4}
	cfg.ConfidenceCalculation.FormulaWeights = config.FormulaWeights{Similarity: 1, SourceBoost: 0, LengthBoost: 0}

	resp, err := a.Run(context.Background(), Request{Query: "q", Config: cfg})
	require.NoError(t, err)

	assert.Equal(t, "hybrid", resp.ConfidenceMethod)
	assert.InDelta(t, 0.7, resp.Confidence, 1e-9, "formula leg only when LLM leg fails")
	assert.Equal(t, true, resp.ConfidenceBreakdown["llm_unavailable"])
}

func TestRun_DirectEscalationShortCircuits(t *testing.T) {
	chat := &fakeChat{
		analysis: `{"strategy":"direct_escalation","reasoning":"multi-jurisdiction tax question"}`,
	}
	ret := &fakeRetriever{}
	a := newTestAgent(chat, ret, nil)

	resp, err := a.Run(context.Background(), Request{Query: "q", Config: testConfig()})
	require.NoError(t, err)
	assert.True(t, resp.Escalated)
	assert.Equal(t, "too complex for agent", resp.EscalationReason)
	assert.False(t, ret.hybrid, "no retrieval on direct escalation")
	assert.False(t, ret.vector)
}

func TestRun_InvokeToolsCapturesFailuresAndContinues(t *testing.T) {
	chat := &fakeChat{
		analysis:   `{"strategy":"invoke_tools"}`,
		generation: strings.Repeat("answer ", 40),
		confidence: "0.99",
		toolCalls: []llm.ToolCall{
			{ID: "1", Name: "calculator", Arguments: []byte(`{"expression":"1+1"}`)},
			{ID: "2", Name: "broken", Arguments: []byte(`{}`)},
		},
	}
	reg := &fakeRegistry{
		defs:    []llm.ToolDefinition{{Name: "calculator"}, {Name: "broken"}},
		results: map[string]string{"calculator": "2"},
		errs:    map[string]error{"broken": errors.New("boom")},
	}
	ret := &fakeRetriever{chunks: []models.ScoredChunk{{Score: 0.9}, {Score: 0.9}, {Score: 0.9}}}

	a := newTestAgent(chat, ret, reg)
	cfg := testConfig()
	cfg.ConfidenceThresholds.Escalation = 0.5

	resp, err := a.Run(context.Background(), Request{Query: "what is 1+1", Config: cfg})
	require.NoError(t, err)
	assert.False(t, resp.Escalated)
	assert.ElementsMatch(t, []string{"calculator", "broken"}, reg.calls)
}

func TestRun_StreamingEmitsDeltas(t *testing.T) {
	chat := &fakeChat{
		analysis:       `{"strategy":"standard_rag"}`,
		generation:     "full text",
		confidence:     "0.99",
		streamedChunks: []string{"full ", "text"},
	}
	ret := &fakeRetriever{chunks: []models.ScoredChunk{{Score: 0.9}}}
	a := newTestAgent(chat, ret, nil)
	cfg := testConfig()
	cfg.ConfidenceThresholds.Escalation = 0.5

	var got []string
	resp, err := a.Run(context.Background(), Request{
		Query:  "q",
		Config: cfg,
		Emit:   func(delta string) error { got = append(got, delta); return nil },
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"full ", "text"}, got)
	assert.Equal(t, "full text", resp.Message)
}

func TestRun_GenerationFailureIsAnError(t *testing.T) {
	chat := &fakeChat{
		analysis:      `{"strategy":"standard_rag"}`,
		generationErr: errors.New("provider down"),
	}
	a := newTestAgent(chat, &fakeRetriever{}, nil)
	_, err := a.Run(context.Background(), Request{Query: "q", Config: testConfig()})
	assert.Error(t, err)
}

func TestParseAnalysis(t *testing.T) {
	t.Run("strict json", func(t *testing.T) {
		got, ok := parseAnalysis(`{"query_type":"calculation","strategy":"invoke_tools","urgency":"high","topics":["fx"]}`)
		require.True(t, ok)
		assert.Equal(t, StrategyInvokeTools, got.Strategy)
		assert.Equal(t, []string{"fx"}, got.Topics)
	})

	t.Run("json wrapped in prose", func(t *testing.T) {
		got, ok := parseAnalysis("Here you go:\n{\"strategy\":\"standard_rag\"}\nDone.")
		require.True(t, ok)
		assert.Equal(t, StrategyStandardRAG, got.Strategy)
		assert.Equal(t, "direct_question", got.QueryType)
		assert.Equal(t, "medium", got.Urgency)
	})

	t.Run("garbage falls back", func(t *testing.T) {
		_, ok := parseAnalysis("I think you should escalate")
		assert.False(t, ok)
	})

	t.Run("unknown strategy falls back", func(t *testing.T) {
		_, ok := parseAnalysis(`{"strategy":"guess"}`)
		assert.False(t, ok)
	})
}
