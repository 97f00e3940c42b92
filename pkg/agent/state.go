// Package agent implements the deterministic question-answering graph:
// analyse, route, optional tool use, retrieval, generation, confidence
// scoring, and the escalation decision.
package agent

import (
	"github.com/paydesk/paydesk/pkg/config"
	"github.com/paydesk/paydesk/pkg/llm"
	"github.com/paydesk/paydesk/pkg/models"
)

// Query strategies chosen by the analyser.
const (
	StrategyStandardRAG      = "standard_rag"
	StrategyInvokeTools      = "invoke_tools"
	StrategyDirectEscalation = "direct_escalation"
)

// Analysis is the analyser's structured verdict on the query.
type Analysis struct {
	QueryType string   `json:"query_type"`
	Strategy  string   `json:"strategy"`
	Urgency   string   `json:"urgency"`
	Topics    []string `json:"topics"`
	Reasoning string   `json:"reasoning,omitempty"`
}

// defaultAnalysis is used when the analyser's output cannot be parsed.
func defaultAnalysis() Analysis {
	return Analysis{
		QueryType: "direct_question",
		Strategy:  StrategyStandardRAG,
		Urgency:   "medium",
		Topics:    []string{},
	}
}

// ToolResult is the outcome of one tool call requested by the model.
// Failures are recorded here rather than aborting the graph.
type ToolResult struct {
	CallID string `json:"call_id"`
	Tool   string `json:"tool"`
	Output string `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
}

// State is the single mutable record the graph nodes read and write.
type State struct {
	Query               string
	SessionID           string
	UserID              string
	ConversationHistory []llm.Message

	Analysis    Analysis
	ToolCalls   []llm.ToolCall
	ToolResults []ToolResult

	ContextChunks []models.ScoredChunk
	ContextText   string
	SourcesUsed   []models.ScoredChunk

	Response   string
	TokensUsed int

	ConfidenceScore     float64
	ConfidenceMethod    config.ConfidenceMethod
	ConfidenceBreakdown map[string]any

	Escalated        bool
	EscalationReason string

	PromptVersionsUsed map[string]int
}

// recordPromptVersion notes which stored prompt version was rendered; nil
// means the compiled-in fallback was used.
func (s *State) recordPromptVersion(name string, version *int) {
	if version == nil {
		return
	}
	if s.PromptVersionsUsed == nil {
		s.PromptVersionsUsed = make(map[string]int)
	}
	s.PromptVersionsUsed[name] = *version
}
