package agent

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/paydesk/paydesk/pkg/config"
	"github.com/paydesk/paydesk/pkg/llm"
	"github.com/paydesk/paydesk/pkg/models"
)

// highQualityScore is the chunk score above which a chunk counts as a
// distinct supporting source for the source boost.
const highQualityScore = 0.75

// Truncation limits for the confidence evaluation prompt.
const (
	confidenceContextChars  = 1000
	confidenceResponseChars = 500
)

// confidenceNumber extracts the first decimal in [0,1] from free-form model
// output when strict parsing fails.
var confidenceNumber = regexp.MustCompile(`0?\.\d+|1(\.0+)?|0`)

// computeConfidence runs the configured method and fills the state's score,
// method, and breakdown.
func (a *Agent) computeConfidence(ctx context.Context, st *State, cfg config.AgentConfigData) {
	cc := cfg.ConfidenceCalculation
	st.ConfidenceMethod = cc.Method

	switch cc.Method {
	case config.ConfidenceMethodLLM:
		score, breakdown, err := a.llmConfidence(ctx, st, cc.LLMSettings)
		if err != nil {
			// Scoring must never fail the answer: degrade to the formula.
			score, breakdown = formulaConfidence(st.ContextChunks, len(st.Response), cc.FormulaWeights)
			breakdown["fallback_reason"] = err.Error()
		}
		st.ConfidenceScore = score
		st.ConfidenceBreakdown = breakdown

	case config.ConfidenceMethodHybrid:
		formulaScore, formulaDetails := formulaConfidence(st.ContextChunks, len(st.Response), cc.FormulaWeights)
		breakdown := map[string]any{
			"formula_score":   formulaScore,
			"formula_weight":  cc.HybridWeights.Formula,
			"llm_weight":      cc.HybridWeights.LLM,
			"formula_details": formulaDetails,
		}
		llmScore, llmDetails, err := a.llmConfidence(ctx, st, cc.LLMSettings)
		if err != nil {
			breakdown["llm_unavailable"] = true
			breakdown["llm_error"] = err.Error()
			st.ConfidenceScore = formulaScore
		} else {
			breakdown["llm_score"] = llmScore
			breakdown["llm_details"] = llmDetails
			st.ConfidenceScore = clamp01(cc.HybridWeights.Formula*formulaScore + cc.HybridWeights.LLM*llmScore)
		}
		st.ConfidenceBreakdown = breakdown

	default: // formula
		st.ConfidenceScore, st.ConfidenceBreakdown = formulaConfidence(st.ContextChunks, len(st.Response), cc.FormulaWeights)
	}
}

// formulaConfidence is the deterministic score: a weighted blend of retrieval
// similarity, the number of high-quality sources, and response length.
func formulaConfidence(chunks []models.ScoredChunk, responseLen int, w config.FormulaWeights) (float64, map[string]any) {
	if len(chunks) == 0 {
		return 0, map[string]any{
			"similarity_score":          0.0,
			"source_boost":              0.0,
			"length_boost":              0.0,
			"high_quality_source_count": 0,
			"response_length":           responseLen,
			"weights":                   weightsMap(w),
		}
	}

	scores := make([]float64, len(chunks))
	for i, c := range chunks {
		scores[i] = c.Score
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(scores)))

	var simScore float64
	switch {
	case len(scores) >= 3:
		simScore = 0.6*scores[0] + 0.3*scores[1] + 0.1*scores[2]
	case len(scores) == 2:
		simScore = 0.7*scores[0] + 0.3*scores[1]
	default:
		simScore = scores[0]
	}

	highQuality := 0
	for _, s := range scores {
		if s > highQualityScore {
			highQuality++
		}
	}
	var sourceBoost float64
	switch {
	case highQuality >= 3:
		sourceBoost = 1.0
	case highQuality == 2:
		sourceBoost = 0.6
	case highQuality == 1:
		sourceBoost = 0.3
	}

	var lengthBoost float64
	switch {
	case responseLen >= 200:
		lengthBoost = 1.0
	case responseLen >= 100:
		lengthBoost = 0.5
	}

	final := clamp01(w.Similarity*simScore + w.SourceBoost*sourceBoost + w.LengthBoost*lengthBoost)
	return final, map[string]any{
		"similarity_score":          simScore,
		"source_boost":              sourceBoost,
		"length_boost":              lengthBoost,
		"high_quality_source_count": highQuality,
		"response_length":           responseLen,
		"weights":                   weightsMap(w),
	}
}

func weightsMap(w config.FormulaWeights) map[string]float64 {
	return map[string]float64{
		"similarity":   w.Similarity,
		"source_boost": w.SourceBoost,
		"length_boost": w.LengthBoost,
	}
}

// llmConfidence asks a model to score the response under a hard deadline.
func (a *Agent) llmConfidence(ctx context.Context, st *State, ls config.ConfidenceLLMSettings) (float64, map[string]any, error) {
	timeout := time.Duration(ls.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	prompt, version := a.prompts.FormatPrompt(opCtx, PromptConfidenceEvaluation, config.PromptTypeEvaluation,
		map[string]string{
			"query":    st.Query,
			"context":  truncateChars(st.ContextText, confidenceContextChars),
			"response": truncateChars(st.Response, confidenceResponseChars),
		}, fallbackConfidenceEvaluation)
	st.recordPromptVersion(PromptConfidenceEvaluation, version)

	client, err := a.llm.ChatClient(opCtx, ls.Provider)
	if err != nil {
		return 0, nil, fmt.Errorf("confidence provider unavailable: %w", err)
	}
	result, err := client.Chat(opCtx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, llm.ChatOptions{
		Model:       ls.Model,
		Temperature: ls.Temperature,
		MaxTokens:   ls.MaxTokens,
	})
	if err != nil {
		return 0, nil, fmt.Errorf("confidence call failed: %w", err)
	}

	score, err := parseConfidence(result.Text)
	if err != nil {
		return 0, nil, fmt.Errorf("confidence reply unparseable: %w", err)
	}

	breakdown := map[string]any{
		"llm_provider":     string(ls.Provider),
		"llm_model":        ls.Model,
		"llm_raw_response": result.Text,
	}
	if version != nil {
		breakdown["prompt_version"] = *version
	}
	return score, breakdown, nil
}

// parseConfidence extracts a [0,1] float from model output: a strict parse of
// the trimmed reply first, then the first embedded decimal, clamped.
func parseConfidence(text string) (float64, error) {
	trimmed := strings.TrimSpace(text)
	if v, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return clamp01(v), nil
	}
	match := confidenceNumber.FindString(trimmed)
	if match == "" {
		return 0, fmt.Errorf("no number found in %q", trimmed)
	}
	v, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, fmt.Errorf("no number found in %q", trimmed)
	}
	return clamp01(v), nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// truncateChars cuts s to at most n bytes without splitting a rune.
func truncateChars(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
