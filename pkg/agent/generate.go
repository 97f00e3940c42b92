package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/paydesk/paydesk/pkg/config"
	"github.com/paydesk/paydesk/pkg/llm"
)

// generate produces the answer: main system prompt, prior turns, then the
// filled retrieval-context template. Streaming deltas go to emit when set.
func (a *Agent) generate(ctx context.Context, st *State, cfg config.AgentConfigData, emit llm.StreamFunc) error {
	system, sysVersion := a.prompts.FormatPrompt(ctx, PromptMainSystem, config.PromptTypeSystem,
		nil, fallbackMainSystem)
	st.recordPromptVersion(PromptMainSystem, sysVersion)

	userPrompt, ctxVersion := a.prompts.FormatPrompt(ctx, PromptRetrievalContext, config.PromptTypeTemplate,
		map[string]string{
			"context": a.generationContext(st),
			"query":   st.Query,
		}, fallbackRetrievalContext)
	st.recordPromptVersion(PromptRetrievalContext, ctxVersion)

	msgs := make([]llm.Message, 0, len(st.ConversationHistory)+2)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: system})
	msgs = append(msgs, st.ConversationHistory...)
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: userPrompt})

	client, err := a.llm.ChatClient(ctx, cfg.ModelSettings.Provider)
	if err != nil {
		return fmt.Errorf("generation provider unavailable: %w", err)
	}
	opts := llm.ChatOptions{
		Model:       cfg.ModelSettings.Model,
		Temperature: cfg.ModelSettings.Temperature,
		MaxTokens:   cfg.ModelSettings.MaxTokens,
	}

	var result *llm.ChatResult
	if emit != nil {
		result, err = client.ChatStream(ctx, msgs, opts, emit)
	} else {
		result, err = client.Chat(ctx, msgs, opts)
	}
	if err != nil {
		return err
	}

	st.Response = result.Text
	st.TokensUsed += result.TokensUsed
	return nil
}

// generationContext is the retrieval context plus any tool outputs.
func (a *Agent) generationContext(st *State) string {
	if len(st.ToolResults) == 0 {
		return st.ContextText
	}

	var sb strings.Builder
	sb.WriteString(st.ContextText)
	for _, tr := range st.ToolResults {
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		if tr.Error != "" {
			fmt.Fprintf(&sb, "Tool %s failed: %s", tr.Tool, tr.Error)
		} else {
			fmt.Fprintf(&sb, "Tool %s returned: %s", tr.Tool, tr.Output)
		}
	}
	return sb.String()
}
