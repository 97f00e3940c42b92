package agent

import (
	"context"
	"encoding/json"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/paydesk/paydesk/pkg/config"
	"github.com/paydesk/paydesk/pkg/llm"
)

// invokeTools asks the model which tools to call, then executes the calls
// concurrently. Individual failures are captured into the results; the graph
// always proceeds to retrieval and generation.
func (a *Agent) invokeTools(ctx context.Context, st *State, cfg config.AgentConfigData) {
	defs := a.registry.Definitions()
	if len(defs) == 0 {
		return
	}

	client, err := a.llm.ChatClient(ctx, cfg.ModelSettings.Provider)
	if err != nil {
		slog.Warn("Tool provider unavailable, skipping tool use", "error", err)
		return
	}

	result, err := client.ChatWithTools(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: "Decide which of the available tools to call to help answer the question. " +
			"Call a tool only when its output is needed."},
		{Role: llm.RoleUser, Content: st.Query},
	}, defs, llm.ChatOptions{
		Model:       cfg.ModelSettings.Model,
		Temperature: cfg.ModelSettings.Temperature,
		MaxTokens:   cfg.ModelSettings.MaxTokens,
	})
	if err != nil {
		slog.Warn("Tool selection call failed, skipping tool use", "error", err)
		return
	}
	if len(result.ToolCalls) == 0 {
		return
	}
	st.ToolCalls = result.ToolCalls
	st.TokensUsed += result.TokensUsed

	results := make([]ToolResult, len(result.ToolCalls))
	g, gctx := errgroup.WithContext(ctx)
	for i, call := range result.ToolCalls {
		g.Go(func() error {
			results[i] = a.runToolCall(gctx, call)
			return nil
		})
	}
	_ = g.Wait()

	st.ToolResults = results
}

// runToolCall executes one call under its own timeout. Errors become data.
func (a *Agent) runToolCall(ctx context.Context, call llm.ToolCall) ToolResult {
	res := ToolResult{CallID: call.ID, Tool: call.Name}

	var args map[string]any
	if len(call.Arguments) > 0 {
		if err := json.Unmarshal(call.Arguments, &args); err != nil {
			res.Error = "malformed tool arguments: " + err.Error()
			return res
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, a.toolLimit)
	defer cancel()

	out, err := a.registry.Invoke(callCtx, call.Name, args)
	if err != nil {
		res.Error = err.Error()
		slog.Warn("Tool call failed", "tool", call.Name, "error", err)
		return res
	}
	res.Output = out
	return res
}
