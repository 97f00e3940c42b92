package agent

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/paydesk/paydesk/pkg/config"
	"github.com/paydesk/paydesk/pkg/llm"
)

// analyserTemperature keeps classification near-deterministic.
const analyserTemperature = 0.1

// analyseQuery classifies the query into a strategy. Any failure — provider
// error or unparseable output — yields the default analysis; classification
// is advisory, never fatal.
func (a *Agent) analyseQuery(ctx context.Context, st *State, cfg config.AgentConfigData) Analysis {
	system, sysVersion := a.prompts.FormatPrompt(ctx, PromptAnalyserSystem, config.PromptTypeSystem,
		nil, fallbackAnalyserSystem)
	st.recordPromptVersion(PromptAnalyserSystem, sysVersion)

	user, userVersion := a.prompts.FormatPrompt(ctx, PromptAnalyserUser, config.PromptTypeUser,
		map[string]string{"query": st.Query}, fallbackAnalyserUser)
	st.recordPromptVersion(PromptAnalyserUser, userVersion)

	client, err := a.llm.ChatClient(ctx, cfg.ModelSettings.Provider)
	if err != nil {
		slog.Warn("Analyser provider unavailable, using default analysis", "error", err)
		return defaultAnalysis()
	}

	result, err := client.Chat(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: user},
	}, llm.ChatOptions{
		Model:       cfg.ModelSettings.Model,
		Temperature: analyserTemperature,
		MaxTokens:   300,
	})
	if err != nil {
		slog.Warn("Analyser call failed, using default analysis", "error", err)
		return defaultAnalysis()
	}

	analysis, ok := parseAnalysis(result.Text)
	if !ok {
		slog.Warn("Analyser output unparseable, using default analysis")
		return defaultAnalysis()
	}
	return analysis
}

// parseAnalysis decodes the analyser's strict JSON, tolerating surrounding
// prose by extracting the outermost object.
func parseAnalysis(text string) (Analysis, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return Analysis{}, false
	}

	var out Analysis
	if err := json.Unmarshal([]byte(text[start:end+1]), &out); err != nil {
		return Analysis{}, false
	}
	if !validStrategy(out.Strategy) {
		return Analysis{}, false
	}
	if out.QueryType == "" {
		out.QueryType = "direct_question"
	}
	if out.Urgency == "" {
		out.Urgency = "medium"
	}
	if out.Topics == nil {
		out.Topics = []string{}
	}
	return out, true
}

func validStrategy(s string) bool {
	switch s {
	case StrategyStandardRAG, StrategyInvokeTools, StrategyDirectEscalation:
		return true
	}
	return false
}
