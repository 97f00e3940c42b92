package models

import (
	"encoding/json"
	"time"
)

// ToolRecord is the persisted configuration of a named callable tool.
// Credentials are stored encrypted and decrypted only at invoke time.
type ToolRecord struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Enabled     bool            `json:"enabled"`
	Credentials string          `json:"-"`
	ArgsSchema  json.RawMessage `json:"args_schema,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// UpdateToolRequest patches tool configuration.
type UpdateToolRequest struct {
	Description *string         `json:"description,omitempty"`
	Category    *string         `json:"category,omitempty"`
	Enabled     *bool           `json:"enabled,omitempty"`
	Credentials map[string]any  `json:"credentials,omitempty"`
	ArgsSchema  json.RawMessage `json:"args_schema,omitempty"`
}

// MCPServer is an external remote tool provider addressed by URL. Enabling a
// server merges its discovered tools (namespaced) into the registry.
type MCPServer struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	URL             string          `json:"url"`
	Enabled         bool            `json:"enabled"`
	AuthToken       string          `json:"-"`
	HealthStatus    string          `json:"health_status"`
	LastCheckedAt   *time.Time      `json:"last_checked_at,omitempty"`
	DiscoveredTools json.RawMessage `json:"discovered_tools,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// CreateMCPServerRequest registers a remote tool server.
type CreateMCPServerRequest struct {
	Name      string `json:"name"`
	URL       string `json:"url"`
	AuthToken string `json:"auth_token,omitempty"`
	Enabled   bool   `json:"enabled"`
}

// UpdateMCPServerRequest patches a remote tool server.
type UpdateMCPServerRequest struct {
	URL       *string `json:"url,omitempty"`
	AuthToken *string `json:"auth_token,omitempty"`
	Enabled   *bool   `json:"enabled,omitempty"`
}
