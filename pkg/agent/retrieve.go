package agent

import (
	"context"
	"log/slog"
	"strings"

	"github.com/paydesk/paydesk/pkg/config"
	"github.com/paydesk/paydesk/pkg/models"
)

// retrieveContext embeds the query and pulls supporting chunks. Retrieval
// failure leaves the context empty; the formula confidence then yields zero
// and the turn escalates rather than erroring.
func (a *Agent) retrieveContext(ctx context.Context, st *State, cfg config.AgentConfigData) {
	embedder, err := a.llm.Embedder(ctx)
	if err != nil {
		slog.Warn("Embedder unavailable, answering without retrieval", "error", err)
		return
	}
	vectors, err := embedder.Embed(ctx, []string{st.Query})
	if err != nil || len(vectors) == 0 {
		slog.Warn("Query embedding failed, answering without retrieval", "error", err)
		return
	}

	k := cfg.SearchSettings.MaxResults
	if k < 1 {
		k = 5
	}
	threshold := cfg.SearchSettings.SimilarityThreshold

	var chunks []models.ScoredChunk
	if cfg.SearchSettings.HybridEnabled() {
		chunks, err = a.store.HybridSearch(ctx, vectors[0], st.Query, k, threshold)
	} else {
		chunks, err = a.store.VectorSearch(ctx, vectors[0], k, threshold)
	}
	if err != nil {
		slog.Warn("Retrieval failed, answering without context", "error", err)
		return
	}

	st.ContextChunks = chunks
	st.SourcesUsed = chunks
	st.ContextText = formatContext(chunks)
}

// formatContext renders chunks for the prompt: each prefixed with its source,
// blank-line separated.
func formatContext(chunks []models.ScoredChunk) string {
	if len(chunks) == 0 {
		return ""
	}
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = "Source: " + string(c.Source) + "\n" + c.Content
	}
	return strings.Join(parts, "\n\n")
}
