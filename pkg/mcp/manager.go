// Package mcp connects to remote MCP (Model Context Protocol) tool servers,
// discovers their tools, and merges them into the tool registry under a
// "server.tool" namespace.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/paydesk/paydesk/pkg/config"
	"github.com/paydesk/paydesk/pkg/database"
	"github.com/paydesk/paydesk/pkg/models"
	"github.com/paydesk/paydesk/pkg/services"
	"github.com/paydesk/paydesk/pkg/tools"
	"github.com/paydesk/paydesk/pkg/version"
)

// Health states recorded on server rows.
const (
	HealthUnknown     = "unknown"
	HealthHealthy     = "healthy"
	HealthUnreachable = "unreachable"
)

const (
	defaultRefreshInterval  = 5 * time.Minute
	defaultDiscoveryTimeout = 15 * time.Second
)

// Manager owns the remote tool-server lifecycle: persistence, connections,
// periodic rediscovery, and registry merging. Enabling a server connects and
// registers its tools; disabling unregisters them, with any in-flight call
// finishing on the old session.
type Manager struct {
	db       *database.Client
	registry *tools.Registry

	refreshInterval  time.Duration
	discoveryTimeout time.Duration

	mu       sync.Mutex
	sessions map[string]*mcpsdk.ClientSession // server name → session

	stop chan struct{}
	done chan struct{}
}

// NewManager creates the remote tool-server manager.
func NewManager(db *database.Client, registry *tools.Registry, cfg config.MCPSettings) *Manager {
	refresh := cfg.RefreshInterval
	if refresh <= 0 {
		refresh = defaultRefreshInterval
	}
	discovery := cfg.DiscoveryTimeout
	if discovery <= 0 {
		discovery = defaultDiscoveryTimeout
	}
	return &Manager{
		db:               db,
		registry:         registry,
		refreshInterval:  refresh,
		discoveryTimeout: discovery,
		sessions:         make(map[string]*mcpsdk.ClientSession),
		stop:             make(chan struct{}),
		done:             make(chan struct{}),
	}
}

// Start connects to all enabled servers and launches the refresh loop.
// Connection failures are recorded on the row, never fatal.
func (m *Manager) Start(ctx context.Context) error {
	servers, err := m.ListServers(ctx)
	if err != nil {
		return err
	}
	for _, srv := range servers {
		if srv.Enabled {
			m.refreshServer(ctx, srv)
		}
	}

	go m.refreshLoop()
	slog.Info("MCP manager started", "servers", len(servers), "refresh_interval", m.refreshInterval)
	return nil
}

// Stop halts the refresh loop and closes all sessions.
func (m *Manager) Stop() {
	close(m.stop)
	<-m.done

	m.mu.Lock()
	defer m.mu.Unlock()
	for name, session := range m.sessions {
		if err := session.Close(); err != nil {
			slog.Warn("Failed to close MCP session", "server", name, "error", err)
		}
		delete(m.sessions, name)
	}
}

func (m *Manager) refreshLoop() {
	defer close(m.done)
	ticker := time.NewTicker(m.refreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), m.refreshInterval)
			servers, err := m.ListServers(ctx)
			if err != nil {
				slog.Warn("Failed to load MCP servers for refresh", "error", err)
				cancel()
				continue
			}
			for _, srv := range servers {
				if srv.Enabled {
					m.refreshServer(ctx, srv)
				}
			}
			cancel()
		case <-m.stop:
			return
		}
	}
}

// refreshServer (re)connects if needed, rediscovers tools, and updates the
// registry and the server row's health.
func (m *Manager) refreshServer(ctx context.Context, srv *models.MCPServer) {
	opCtx, cancel := context.WithTimeout(ctx, m.discoveryTimeout)
	defer cancel()

	session, err := m.session(opCtx, srv)
	if err != nil {
		m.recordHealth(ctx, srv.Name, HealthUnreachable, nil)
		slog.Warn("MCP server unreachable", "server", srv.Name, "error", err)
		return
	}

	result, err := session.ListTools(opCtx, nil)
	if err != nil {
		m.dropSession(srv.Name)
		m.recordHealth(ctx, srv.Name, HealthUnreachable, nil)
		slog.Warn("MCP tool discovery failed", "server", srv.Name, "error", err)
		return
	}

	prefix := srv.Name + "."
	m.registry.UnregisterPrefix(prefix)
	names := make([]string, 0, len(result.Tools))
	for _, t := range result.Tools {
		rt := &remoteTool{
			manager:    m,
			server:     srv.Name,
			remoteName: t.Name,
			desc:       t.Description,
			schema:     marshalSchema(t.InputSchema),
		}
		m.registry.Register(rt)
		names = append(names, rt.Name())
	}

	m.recordHealth(ctx, srv.Name, HealthHealthy, names)
	slog.Info("MCP tools discovered", "server", srv.Name, "tools", len(names))
}

// RefreshTools forces an immediate discovery round for one server, outside
// the periodic refresh schedule. Returns the server row with updated health.
func (m *Manager) RefreshTools(ctx context.Context, name string) (*models.MCPServer, error) {
	srv, err := m.GetServer(ctx, name)
	if err != nil {
		return nil, err
	}
	if !srv.Enabled {
		return nil, fmt.Errorf("%w: server %q is disabled", services.ErrInvalidInput, name)
	}
	m.refreshServer(ctx, srv)
	return m.GetServer(ctx, name)
}

// session returns the live session for the server, connecting when absent.
func (m *Manager) session(ctx context.Context, srv *models.MCPServer) (*mcpsdk.ClientSession, error) {
	m.mu.Lock()
	if s, ok := m.sessions[srv.Name]; ok {
		m.mu.Unlock()
		return s, nil
	}
	m.mu.Unlock()

	transport := &mcpsdk.StreamableClientTransport{Endpoint: srv.URL}
	if srv.AuthToken != "" {
		transport.HTTPClient = &http.Client{Transport: &bearerTransport{
			base:  http.DefaultTransport,
			token: srv.AuthToken,
		}}
	}

	client := mcpsdk.NewClient(&mcpsdk.Implementation{
		Name:    version.AppName,
		Version: version.GitCommit,
	}, nil)
	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %q: %w", srv.Name, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.sessions[srv.Name]; ok {
		_ = session.Close()
		return existing, nil
	}
	m.sessions[srv.Name] = session
	return session, nil
}

func (m *Manager) dropSession(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[name]; ok {
		_ = s.Close()
		delete(m.sessions, name)
	}
}

// callTool invokes one remote tool through the server's session.
func (m *Manager) callTool(ctx context.Context, server, tool string, args map[string]any) (*mcpsdk.CallToolResult, error) {
	m.mu.Lock()
	session, ok := m.sessions[server]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("no session for server %q", server)
	}
	return session.CallTool(ctx, &mcpsdk.CallToolParams{Name: tool, Arguments: args})
}

func (m *Manager) recordHealth(ctx context.Context, name, status string, toolNames []string) {
	var err error
	if toolNames != nil {
		discovered, _ := json.Marshal(toolNames)
		_, err = m.db.Pool().Exec(ctx, `
			UPDATE mcp_servers
			SET health_status = $2, last_checked_at = now(), discovered_tools = $3, updated_at = now()
			WHERE name = $1`, name, status, discovered)
	} else {
		_, err = m.db.Pool().Exec(ctx, `
			UPDATE mcp_servers
			SET health_status = $2, last_checked_at = now(), updated_at = now()
			WHERE name = $1`, name, status)
	}
	if err != nil {
		slog.Warn("Failed to record MCP server health", "server", name, "error", err)
	}
}

func marshalSchema(schema any) json.RawMessage {
	if schema == nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return raw
}

// validateServerURL rejects endpoints the streamable HTTP transport cannot
// reach: only absolute http/https URLs with a host are allowed.
func validateServerURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: invalid server url %q: %v", services.ErrInvalidInput, raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: server url must be http or https, got %q", services.ErrInvalidInput, raw)
	}
	return nil
}

// CreateServer registers a new remote server row. When enabled, connection
// and discovery run immediately.
func (m *Manager) CreateServer(ctx context.Context, req *models.CreateMCPServerRequest) (*models.MCPServer, error) {
	if req.Name == "" || req.URL == "" {
		return nil, fmt.Errorf("%w: server name and url are required", services.ErrInvalidInput)
	}
	if err := validateServerURL(req.URL); err != nil {
		return nil, err
	}

	srv := &models.MCPServer{
		ID:           uuid.NewString(),
		Name:         req.Name,
		URL:          req.URL,
		Enabled:      req.Enabled,
		AuthToken:    req.AuthToken,
		HealthStatus: HealthUnknown,
	}
	err := m.db.Pool().QueryRow(ctx, `
		INSERT INTO mcp_servers (id, name, url, enabled, auth_token, health_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		RETURNING created_at, updated_at`,
		srv.ID, srv.Name, srv.URL, srv.Enabled, srv.AuthToken, srv.HealthStatus).
		Scan(&srv.CreatedAt, &srv.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, fmt.Errorf("server %q: %w", req.Name, services.ErrAlreadyExists)
		}
		return nil, fmt.Errorf("failed to create MCP server: %w", err)
	}

	if srv.Enabled {
		m.refreshServer(ctx, srv)
	}
	return srv, nil
}

// UpdateServer patches a server row. Disabling removes its tools from the
// registry; enabling triggers discovery.
func (m *Manager) UpdateServer(ctx context.Context, name string, req *models.UpdateMCPServerRequest) (*models.MCPServer, error) {
	if req.URL != nil {
		if err := validateServerURL(*req.URL); err != nil {
			return nil, err
		}
	}

	srv, err := m.GetServer(ctx, name)
	if err != nil {
		return nil, err
	}

	wasEnabled := srv.Enabled
	if req.URL != nil && *req.URL != srv.URL {
		srv.URL = *req.URL
		m.dropSession(name)
	}
	if req.AuthToken != nil {
		srv.AuthToken = *req.AuthToken
		m.dropSession(name)
	}
	if req.Enabled != nil {
		srv.Enabled = *req.Enabled
	}

	err = m.db.Pool().QueryRow(ctx, `
		UPDATE mcp_servers SET url = $2, auth_token = $3, enabled = $4, updated_at = now()
		WHERE name = $1
		RETURNING updated_at`, name, srv.URL, srv.AuthToken, srv.Enabled).
		Scan(&srv.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to update MCP server: %w", err)
	}

	switch {
	case srv.Enabled:
		m.refreshServer(ctx, srv)
	case wasEnabled:
		m.registry.UnregisterPrefix(name + ".")
		m.dropSession(name)
		slog.Info("MCP server disabled", "server", name)
	}
	return srv, nil
}

// DeleteServer removes the server row, its registry tools, and its session.
func (m *Manager) DeleteServer(ctx context.Context, name string) error {
	tag, err := m.db.Pool().Exec(ctx, `DELETE FROM mcp_servers WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("failed to delete MCP server: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("server %q: %w", name, services.ErrNotFound)
	}
	m.registry.UnregisterPrefix(name + ".")
	m.dropSession(name)
	return nil
}

// GetServer fetches one server row by name.
func (m *Manager) GetServer(ctx context.Context, name string) (*models.MCPServer, error) {
	row := m.db.Pool().QueryRow(ctx, `
		SELECT id, name, url, enabled, auth_token, health_status, last_checked_at, discovered_tools, created_at, updated_at
		FROM mcp_servers WHERE name = $1`, name)
	srv, err := scanServer(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("server %q: %w", name, services.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get MCP server: %w", err)
	}
	return srv, nil
}

// ListServers returns all server rows.
func (m *Manager) ListServers(ctx context.Context) ([]*models.MCPServer, error) {
	rows, err := m.db.Pool().Query(ctx, `
		SELECT id, name, url, enabled, auth_token, health_status, last_checked_at, discovered_tools, created_at, updated_at
		FROM mcp_servers ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list MCP servers: %w", err)
	}
	defer rows.Close()

	var out []*models.MCPServer
	for rows.Next() {
		srv, err := scanServer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan MCP server: %w", err)
		}
		out = append(out, srv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read MCP servers: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanServer(row rowScanner) (*models.MCPServer, error) {
	var srv models.MCPServer
	err := row.Scan(&srv.ID, &srv.Name, &srv.URL, &srv.Enabled, &srv.AuthToken,
		&srv.HealthStatus, &srv.LastCheckedAt, &srv.DiscoveredTools, &srv.CreatedAt, &srv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &srv, nil
}

// bearerTransport adds an Authorization header to every request.
type bearerTransport struct {
	base  http.RoundTripper
	token string
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+t.token)
	return t.base.RoundTrip(req)
}
