package models

import "time"

// MessageRole identifies who authored a chat message
type MessageRole string

const (
	// MessageRoleUser is an end-user message
	MessageRoleUser MessageRole = "user"
	// MessageRoleAssistant is an agent response
	MessageRoleAssistant MessageRole = "assistant"
	// MessageRoleSystem is an injected system message
	MessageRoleSystem MessageRole = "system"
)

// IsValid checks if the role is valid
func (r MessageRole) IsValid() bool {
	switch r {
	case MessageRoleUser, MessageRoleAssistant, MessageRoleSystem:
		return true
	default:
		return false
	}
}

// ChatSession is one user's conversation. Sessions are created lazily on the
// first message and hard-deleted only by their owner.
type ChatSession struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Title        string    `json:"title"`
	LastMessage  string    `json:"last_message"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ChatMessage is a single turn within a session.
type ChatMessage struct {
	ID         string         `json:"id"`
	SessionID  string         `json:"session_id"`
	Role       MessageRole    `json:"role"`
	Content    string         `json:"content"`
	Confidence *float64       `json:"confidence,omitempty"`
	Escalated  bool           `json:"escalated"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// CreateMessageRequest adds one message to a session.
type CreateMessageRequest struct {
	SessionID  string         `json:"session_id"`
	Role       MessageRole    `json:"role"`
	Content    string         `json:"content"`
	Confidence *float64       `json:"confidence,omitempty"`
	Escalated  bool           `json:"escalated"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// SessionListResponse is a paginated session listing for one user.
type SessionListResponse struct {
	Sessions   []*ChatSession `json:"sessions"`
	Pagination Pagination     `json:"pagination"`
}
