package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/paydesk/paydesk/pkg/config"
	"github.com/paydesk/paydesk/pkg/llm"
	"github.com/paydesk/paydesk/pkg/models"
)

// sourceContentChars caps the evidence excerpt attached to a response.
const sourceContentChars = 500

// chatProvider selects chat clients and the embedder. Implemented by
// *llm.Factory.
type chatProvider interface {
	ChatClient(ctx context.Context, provider config.LLMProviderType) (llm.ChatClient, error)
	Embedder(ctx context.Context) (llm.Embedder, error)
}

// retriever is the search surface of the knowledge store.
type retriever interface {
	HybridSearch(ctx context.Context, embedding []float32, query string, k int, threshold float64) ([]models.ScoredChunk, error)
	VectorSearch(ctx context.Context, embedding []float32, k int, threshold float64) ([]models.ScoredChunk, error)
}

// promptSource renders stored prompts with compiled-in fallbacks.
type promptSource interface {
	FormatPrompt(ctx context.Context, name string, promptType config.PromptType, vars map[string]string, fallback string) (string, *int)
}

// toolInvoker is the tool registry surface the graph uses.
type toolInvoker interface {
	Definitions() []llm.ToolDefinition
	Invoke(ctx context.Context, name string, args map[string]any) (string, error)
}

// Agent executes the question-answering graph. It is stateless between runs;
// all per-request data lives in State.
type Agent struct {
	llm       chatProvider
	store     retriever
	prompts   promptSource
	registry  toolInvoker
	toolLimit time.Duration

	// escalationMessage replaces the response text on escalation.
	escalationMessage string
}

// Options configures agent construction.
type Options struct {
	// ToolTimeout bounds a single tool invocation.
	ToolTimeout time.Duration
	// EscalationMessage overrides the compiled-in handoff text.
	EscalationMessage string
}

// New creates the agent.
func New(provider chatProvider, store retriever, prompts promptSource, registry toolInvoker, opts Options) *Agent {
	if opts.ToolTimeout <= 0 {
		opts.ToolTimeout = 15 * time.Second
	}
	if opts.EscalationMessage == "" {
		opts.EscalationMessage = config.DefaultEscalationMessage
	}
	return &Agent{
		llm:               provider,
		store:             store,
		prompts:           prompts,
		registry:          registry,
		toolLimit:         opts.ToolTimeout,
		escalationMessage: opts.EscalationMessage,
	}
}

// Request is one chat turn to answer.
type Request struct {
	Query     string
	SessionID string
	UserID    string
	History   []llm.Message
	Config    config.AgentConfigData
	// Emit receives streaming text deltas; nil for non-streaming calls.
	Emit llm.StreamFunc
}

// Run executes the graph for one request. Node order is fixed; only tool
// calls fan out. The returned response is complete in both the answer and the
// escalation case; an error means the turn could not be served at all.
func (a *Agent) Run(ctx context.Context, req Request) (*models.ChatResponse, error) {
	started := time.Now()
	st := &State{
		Query:               req.Query,
		SessionID:           req.SessionID,
		UserID:              req.UserID,
		ConversationHistory: req.History,
	}
	cfg := req.Config

	st.Analysis = a.analyseQuery(ctx, st, cfg)

	// route
	switch st.Analysis.Strategy {
	case StrategyDirectEscalation:
		st.Escalated = true
		st.EscalationReason = "too complex for agent"
		st.Response = a.escalationMessage
		return a.formatOutput(st, started), nil

	case StrategyInvokeTools:
		a.invokeTools(ctx, st, cfg)
		a.retrieveContext(ctx, st, cfg)

	default:
		a.retrieveContext(ctx, st, cfg)
	}

	if err := a.generate(ctx, st, cfg, req.Emit); err != nil {
		return nil, fmt.Errorf("generation failed: %w", err)
	}

	a.computeConfidence(ctx, st, cfg)

	// decide
	threshold := cfg.ConfidenceThresholds.Escalation
	if st.ConfidenceScore < threshold {
		st.Escalated = true
		st.EscalationReason = fmt.Sprintf("Confidence score (%.2f) below threshold (%.2f)",
			st.ConfidenceScore, threshold)
		st.Response = a.escalationMessage
		slog.Info("Response escalated",
			"session_id", st.SessionID, "confidence", st.ConfidenceScore, "threshold", threshold)
	}

	return a.formatOutput(st, started), nil
}

// formatOutput assembles the terminal payload from the state.
func (a *Agent) formatOutput(st *State, started time.Time) *models.ChatResponse {
	sources := make([]models.SourceRef, 0, len(st.SourcesUsed))
	for _, c := range st.SourcesUsed {
		ref := models.SourceRef{
			Content:         truncateChars(c.Content, sourceContentChars),
			Source:          c.Source,
			SimilarityScore: c.Score,
			Metadata:        c.DocMeta,
		}
		if !c.CreatedAt.IsZero() {
			ref.Timestamp = c.CreatedAt.UTC().Format(time.RFC3339)
		}
		sources = append(sources, ref)
	}

	return &models.ChatResponse{
		Message:             st.Response,
		Confidence:          st.ConfidenceScore,
		ConfidenceMethod:    string(st.ConfidenceMethod),
		ConfidenceBreakdown: st.ConfidenceBreakdown,
		Sources:             sources,
		Escalated:           st.Escalated,
		EscalationReason:    st.EscalationReason,
		SessionID:           st.SessionID,
		ResponseTimeMs:      time.Since(started).Milliseconds(),
		TokensUsed:          st.TokensUsed,
	}
}
