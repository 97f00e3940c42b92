// Package api exposes the HTTP surface: the chat endpoints, session and
// document management, ingestion webhooks, and the admin control plane.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/paydesk/paydesk/pkg/collectors"
	"github.com/paydesk/paydesk/pkg/config"
	"github.com/paydesk/paydesk/pkg/database"
	"github.com/paydesk/paydesk/pkg/llm"
	"github.com/paydesk/paydesk/pkg/models"
	"github.com/paydesk/paydesk/pkg/notifier"
)

// chatResponder answers one chat turn.
type chatResponder interface {
	Respond(ctx context.Context, userID string, req *models.ChatRequest, emit llm.StreamFunc) (*models.ChatResponse, error)
}

// sessionReader is the session-management surface.
type sessionReader interface {
	GetSession(ctx context.Context, sessionID, userID string) (*models.ChatSession, error)
	GetMessages(ctx context.Context, sessionID, userID string) ([]*models.ChatMessage, error)
	ListSessions(ctx context.Context, userID string, page, pageSize int) (*models.SessionListResponse, error)
	DeleteSession(ctx context.Context, sessionID, userID string) error
}

// documentCatalog is the knowledge-base admin surface.
type documentCatalog interface {
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	DeleteDocument(ctx context.Context, id string) error
	ListDocuments(ctx context.Context, filters models.DocumentFilters) (*models.DocumentListResponse, error)
}

// uploadSink ingests admin-uploaded files synchronously.
type uploadSink interface {
	Accepts(filename string) bool
	Ingest(ctx context.Context, filename string, data []byte, uploadedBy string) (*models.Document, error)
}

// slackSource handles Slack webhooks and backfills.
type slackSource interface {
	HandleWebhook(timestamp, signature string, body []byte) (challenge string, err error)
	Backfill(ctx context.Context, channelIDs []string, start, end time.Time, limitPerChannel int) (map[string]int, error)
}

// whatsappSource handles WhatsApp webhooks.
type whatsappSource interface {
	HandleWebhook(timestamp, signature string, body []byte) (int, error)
}

// telegramHook handles signed Telegram webhook ingress (Bot API relay),
// independent of the MTProto listener.
type telegramHook interface {
	HandleWebhook(timestamp, signature string, body []byte) (int, error)
}

// telegramSource is the Telegram admin surface. Nil when the collector is
// disabled.
type telegramSource interface {
	ListDialogs(ctx context.Context) ([]collectors.DialogInfo, error)
	FetchHistorical(ctx context.Context, chatID int64, start, end time.Time, limit int) (int, error)
	Running() bool
}

// configAdmin manages versioned agent configuration.
type configAdmin interface {
	GetActiveConfig(ctx context.Context, env config.Environment) (*models.AgentConfig, error)
	UpdateConfig(ctx context.Context, env config.Environment, patch config.AgentConfigData, updatedBy string) (*models.AgentConfig, error)
}

// promptAdmin manages versioned prompts.
type promptAdmin interface {
	ListPrompts(ctx context.Context, name string, promptType config.PromptType) ([]*models.Prompt, error)
	GetPrompt(ctx context.Context, id string) (*models.Prompt, error)
	CreatePromptVersion(ctx context.Context, req *models.CreatePromptVersionRequest, createdBy string) (*models.Prompt, error)
	ActivateVersion(ctx context.Context, id string) (*models.Prompt, error)
	UpdatePrompt(ctx context.Context, id string, req *models.UpdatePromptRequest) (*models.Prompt, error)
}

// toolAdmin manages built-in tool configuration.
type toolAdmin interface {
	List(ctx context.Context) ([]*models.ToolRecord, error)
	Get(ctx context.Context, name string) (*models.ToolRecord, error)
	Update(ctx context.Context, name string, req *models.UpdateToolRequest) (*models.ToolRecord, error)
}

// mcpAdmin manages remote tool servers.
type mcpAdmin interface {
	ListServers(ctx context.Context) ([]*models.MCPServer, error)
	GetServer(ctx context.Context, name string) (*models.MCPServer, error)
	CreateServer(ctx context.Context, req *models.CreateMCPServerRequest) (*models.MCPServer, error)
	UpdateServer(ctx context.Context, name string, req *models.UpdateMCPServerRequest) (*models.MCPServer, error)
	DeleteServer(ctx context.Context, name string) error
	RefreshTools(ctx context.Context, name string) (*models.MCPServer, error)
}

// sourceStatusReader lists per-source ingestion health.
type sourceStatusReader interface {
	List(ctx context.Context) ([]*models.SourceStatus, error)
}

// queueInspector reports ingestion queue occupancy.
type queueInspector interface {
	QueueDepths() map[config.Source]int
}

// Deps carries everything the server fronts.
type Deps struct {
	Chat         chatResponder
	Sessions     sessionReader
	Documents    documentCatalog
	Upload       uploadSink
	Slack        slackSource
	WhatsApp     whatsappSource
	Telegram     telegramSource
	TelegramHook telegramHook
	Configs      configAdmin
	Prompts      promptAdmin
	Tools        toolAdmin
	MCP          mcpAdmin
	Sources      sourceStatusReader
	Queues       queueInspector
	DB           *database.Client
	Alerts       *notifier.Notifier
}

// Server is the HTTP front door.
type Server struct {
	settings config.Settings
	deps     Deps
	alerts   *notifier.Notifier
	auth     *authenticator
	limiter  *userLimiter

	httpServer *http.Server
}

// NewServer wires the router. Call Start to begin serving.
func NewServer(settings config.Settings, deps Deps) *Server {
	s := &Server{
		settings: settings,
		deps:     deps,
		alerts:   deps.Alerts,
		auth:     newAuthenticator(settings.Auth),
		limiter:  newUserLimiter(),
	}
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", settings.Server.Host, settings.Server.Port),
		Handler:      s.Router(),
		ReadTimeout:  settings.Server.ReadTimeout,
		WriteTimeout: settings.Server.WriteTimeout,
	}
	return s
}

// Router builds the gin engine. Exposed for httptest.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(s.recovery(), requestLogger(), securityHeaders())

	r.GET("/health", s.handleHealth)

	v1 := r.Group("/api/v1")

	// Webhooks authenticate by signature, not by user identity.
	webhooks := v1.Group("/webhooks")
	webhooks.POST("/slack", s.handleSlackWebhook)
	webhooks.POST("/whatsapp", s.handleWhatsAppWebhook)
	webhooks.POST("/telegram", s.handleTelegramWebhook)

	authed := v1.Group("")
	authed.Use(s.auth.middleware(), s.rateLimit())

	authed.POST("/chat", s.handleChat)
	authed.POST("/chat/stream", s.handleChatStream)
	authed.GET("/chat/sessions", s.handleListSessions)
	authed.GET("/chat/history/:session_id", s.handleGetSessionMessages)
	authed.GET("/chat/session/:session_id", s.handleGetSession)
	authed.DELETE("/chat/session/:session_id", s.handleDeleteSession)

	authed.GET("/documents", s.handleListDocuments)
	authed.GET("/documents/:id", s.handleGetDocument)
	authed.DELETE("/documents/:id", s.handleDeleteDocument)
	authed.POST("/documents/upload", s.handleUpload)
	authed.POST("/documents/upload/bulk", s.handleBulkUpload)

	authed.GET("/tools", s.handleListTools)
	authed.GET("/tools/:name", s.handleGetTool)
	authed.PATCH("/tools/:name", s.handleUpdateTool)
	authed.POST("/tools/:name/enable", s.handleSetToolEnabled(true))
	authed.POST("/tools/:name/disable", s.handleSetToolEnabled(false))

	authed.GET("/mcp-servers", s.handleListMCPServers)
	authed.POST("/mcp-servers", s.handleCreateMCPServer)
	authed.GET("/mcp-servers/:name", s.handleGetMCPServer)
	authed.PATCH("/mcp-servers/:name", s.handleUpdateMCPServer)
	authed.DELETE("/mcp-servers/:name", s.handleDeleteMCPServer)
	authed.POST("/mcp-servers/:name/enable", s.handleSetMCPServerEnabled(true))
	authed.POST("/mcp-servers/:name/disable", s.handleSetMCPServerEnabled(false))
	authed.POST("/mcp-servers/:name/refresh-tools", s.handleRefreshMCPServer)

	authed.GET("/sources/status", s.handleListSources)
	authed.POST("/sources/slack/ingest", s.handleSlackBackfill)
	authed.GET("/sources/telegram/dialogs", s.handleTelegramDialogs)
	authed.POST("/sources/telegram/ingest", s.handleTelegramBackfill)

	authed.GET("/agent/config", s.handleGetConfig)
	authed.PUT("/agent/config", s.handleUpdateConfig)

	authed.GET("/prompts", s.handleListPrompts)
	authed.POST("/prompts/versions", s.handleCreatePromptVersion)
	authed.GET("/prompts/:id", s.handleGetPrompt)
	authed.GET("/prompts/:id/history", s.handlePromptHistory)
	authed.PATCH("/prompts/:id", s.handleUpdatePrompt)
	authed.POST("/prompts/:id/activate", s.handleActivatePrompt)

	authed.GET("/admin/llm/models", s.handleListModels)

	return r
}

// Start begins serving in the background.
func (s *Server) Start() {
	go func() {
		slog.Info("HTTP server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server failed", "error", err)
		}
	}()
}

// Stop drains in-flight requests, bounded by the context deadline.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
