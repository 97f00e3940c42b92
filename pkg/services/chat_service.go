package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/paydesk/paydesk/pkg/agent"
	"github.com/paydesk/paydesk/pkg/config"
	"github.com/paydesk/paydesk/pkg/history"
	"github.com/paydesk/paydesk/pkg/llm"
	"github.com/paydesk/paydesk/pkg/models"
)

// agentRunner is the graph surface the chat service drives.
type agentRunner interface {
	Run(ctx context.Context, req agent.Request) (*models.ChatResponse, error)
}

// ChatService glues one chat turn together: it persists the user message,
// assembles the history window, runs the agent, and persists the answer.
type ChatService struct {
	agent    agentRunner
	sessions *SessionService
	configs  *ConfigService
	env      config.Environment
	history  config.HistorySettings
}

// NewChatService creates the chat service.
func NewChatService(runner agentRunner, sessions *SessionService, configs *ConfigService,
	env config.Environment, historySettings config.HistorySettings) *ChatService {
	return &ChatService{
		agent:    runner,
		sessions: sessions,
		configs:  configs,
		env:      env,
		history:  historySettings,
	}
}

// Respond answers one user message. emit is nil for the non-streaming path.
// The user turn is persisted before the agent runs, so a failed generation
// still leaves the question on record.
func (s *ChatService) Respond(ctx context.Context, userID string, req *models.ChatRequest, emit llm.StreamFunc) (*models.ChatResponse, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, NewValidationError("message", "must not be empty")
	}
	if len(message) > models.MaxChatMessageLength {
		return nil, NewValidationError("message",
			fmt.Sprintf("must not exceed %d characters", models.MaxChatMessageLength))
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	window, err := s.historyWindow(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}

	if _, err := s.sessions.AppendMessage(ctx, userID, &models.CreateMessageRequest{
		SessionID: sessionID,
		Role:      models.MessageRoleUser,
		Content:   message,
		Metadata:  req.Context,
	}); err != nil {
		return nil, fmt.Errorf("failed to record user message: %w", err)
	}

	cfg := s.configs.ActiveOrDefault(ctx, s.env)

	resp, err := s.agent.Run(ctx, agent.Request{
		Query:     message,
		SessionID: sessionID,
		UserID:    userID,
		History:   window,
		Config:    cfg,
		Emit:      emit,
	})
	if err != nil {
		return nil, err
	}

	s.recordAnswer(ctx, userID, resp)
	return resp, nil
}

// historyWindow loads prior turns for an existing session. A brand-new
// session id yields an empty window; an ownership violation propagates.
func (s *ChatService) historyWindow(ctx context.Context, sessionID, userID string) ([]llm.Message, error) {
	messages, err := s.sessions.GetMessages(ctx, sessionID, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return history.Window(messages, s.history.MaxMessages, s.history.MaxTokens), nil
}

// recordAnswer persists the assistant turn. Persistence failures are logged,
// not surfaced: the user already has the answer.
func (s *ChatService) recordAnswer(ctx context.Context, userID string, resp *models.ChatResponse) {
	confidence := resp.Confidence
	metadata := map[string]any{
		"confidence_method": resp.ConfidenceMethod,
		"sources":           len(resp.Sources),
		"response_time_ms":  resp.ResponseTimeMs,
	}
	if resp.EscalationReason != "" {
		metadata["escalation_reason"] = resp.EscalationReason
	}

	if _, err := s.sessions.AppendMessage(ctx, userID, &models.CreateMessageRequest{
		SessionID:  resp.SessionID,
		Role:       models.MessageRoleAssistant,
		Content:    resp.Message,
		Confidence: &confidence,
		Escalated:  resp.Escalated,
		Metadata:   metadata,
	}); err != nil {
		slog.Error("Failed to record assistant message",
			"session_id", resp.SessionID, "error", err)
	}
}
