package models

import (
	"time"

	"github.com/paydesk/paydesk/pkg/config"
)

// Prompt is one immutable version of a named prompt. At most one version per
// (Name, PromptType) is active; activation atomically deactivates siblings.
type Prompt struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	PromptType config.PromptType `json:"prompt_type"`
	Version    int               `json:"version"`
	Content    string            `json:"content"`
	Active     bool              `json:"active"`
	Tags       []string          `json:"tags,omitempty"`
	Notes      string            `json:"notes,omitempty"`
	UsageCount int64             `json:"usage_count"`
	LastUsedAt *time.Time        `json:"last_used_at,omitempty"`
	CreatedBy  string            `json:"created_by,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// CreatePromptVersionRequest creates the next version of a named prompt.
type CreatePromptVersionRequest struct {
	Name       string            `json:"name"`
	PromptType config.PromptType `json:"prompt_type"`
	Content    string            `json:"content"`
	Notes      string            `json:"notes,omitempty"`
	Tags       []string          `json:"tags,omitempty"`
	Activate   bool              `json:"activate"`
}

// UpdatePromptRequest patches mutable prompt metadata (not content; content
// changes are new versions).
type UpdatePromptRequest struct {
	Tags  *[]string `json:"tags,omitempty"`
	Notes *string   `json:"notes,omitempty"`
}

// AgentConfig is one versioned row of runtime agent behaviour. Exactly one
// row per (Name, Environment) is active.
type AgentConfig struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Environment config.Environment     `json:"environment"`
	Version     int                    `json:"version"`
	Active      bool                   `json:"active"`
	Data        config.AgentConfigData `json:"config"`
	UpdatedBy   string                 `json:"updated_by,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}
