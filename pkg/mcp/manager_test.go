package mcp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paydesk/paydesk/pkg/config"
	"github.com/paydesk/paydesk/pkg/models"
	"github.com/paydesk/paydesk/pkg/services"
	"github.com/paydesk/paydesk/pkg/tools"
)

func TestValidateServerURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		ok   bool
	}{
		{"https", "https://tools.internal:8443/mcp", true},
		{"http", "http://localhost:9000", true},
		{"ftp", "ftp://tools.internal/mcp", false},
		{"no scheme", "tools.internal/mcp", false},
		{"not a url", "not a url", false},
		{"scheme only", "https://", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateServerURL(tt.url)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, services.ErrInvalidInput)
			}
		})
	}
}

// Scheme validation must run before any row is touched, so a manager with no
// database still rejects bad URLs.
func TestCreateServer_RejectsNonHTTPURL(t *testing.T) {
	m := NewManager(nil, tools.NewRegistry(), config.MCPSettings{})

	_, err := m.CreateServer(context.Background(), &models.CreateMCPServerRequest{
		Name: "legacy",
		URL:  "ftp://tools.internal/mcp",
	})
	require.ErrorIs(t, err, services.ErrInvalidInput)
}

func TestUpdateServer_RejectsNonHTTPURL(t *testing.T) {
	m := NewManager(nil, tools.NewRegistry(), config.MCPSettings{})

	bad := "gopher://tools.internal"
	_, err := m.UpdateServer(context.Background(), "legacy",
		&models.UpdateMCPServerRequest{URL: &bad})
	require.ErrorIs(t, err, services.ErrInvalidInput)
}
