package models

import "github.com/paydesk/paydesk/pkg/config"

// ChatRequest is the body of POST /api/v1/chat and /chat/stream.
type ChatRequest struct {
	Message   string         `json:"message"`
	SessionID string         `json:"session_id,omitempty"`
	UserID    string         `json:"user_id,omitempty"`
	Context   map[string]any `json:"context,omitempty"`
	Stream    bool           `json:"stream"`
}

// MaxChatMessageLength bounds a single user message.
const MaxChatMessageLength = 4000

// SourceRef is one retrieved evidence item attached to a response.
type SourceRef struct {
	Content         string         `json:"content"`
	Source          config.Source  `json:"source"`
	Timestamp       string         `json:"timestamp,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	SimilarityScore float64        `json:"similarity_score"`
}

// ChatResponse is the full (non-streaming) agent answer.
type ChatResponse struct {
	Message             string         `json:"message"`
	Confidence          float64        `json:"confidence"`
	ConfidenceMethod    string         `json:"confidence_method"`
	ConfidenceBreakdown map[string]any `json:"confidence_breakdown,omitempty"`
	Sources             []SourceRef    `json:"sources"`
	Escalated           bool           `json:"escalated"`
	EscalationReason    string         `json:"escalation_reason,omitempty"`
	SessionID           string         `json:"session_id"`
	ResponseTimeMs      int64          `json:"response_time_ms,omitempty"`
	TokensUsed          int            `json:"tokens_used,omitempty"`
}

// StreamEvent is one line of the streaming response. Zero or more partial
// events are followed by exactly one terminal event with IsFinal=true.
type StreamEvent struct {
	Chunk   string `json:"chunk"`
	IsFinal bool   `json:"is_final"`

	// Terminal-only fields.
	Confidence       *float64    `json:"confidence,omitempty"`
	ConfidenceMethod string      `json:"confidence_method,omitempty"`
	Sources          []SourceRef `json:"sources,omitempty"`
	Escalated        *bool       `json:"escalated,omitempty"`
	EscalationReason string      `json:"escalation_reason,omitempty"`
}
