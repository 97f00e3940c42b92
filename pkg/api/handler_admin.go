package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/paydesk/paydesk/pkg/config"
	"github.com/paydesk/paydesk/pkg/llm"
	"github.com/paydesk/paydesk/pkg/models"
)

// environmentParam resolves the ?environment= override, defaulting to the
// process environment.
func (s *Server) environmentParam(c *gin.Context) (config.Environment, bool) {
	raw := c.Query("environment")
	if raw == "" {
		return s.settings.Environment, true
	}
	env := config.Environment(raw)
	if !env.IsValid() {
		c.JSON(http.StatusBadRequest, errorBody{
			Detail:     "unknown environment",
			StatusCode: http.StatusBadRequest,
		})
		return "", false
	}
	return env, true
}

func (s *Server) handleGetConfig(c *gin.Context) {
	env, ok := s.environmentParam(c)
	if !ok {
		return
	}
	cfg, err := s.deps.Configs.GetActiveConfig(c.Request.Context(), env)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (s *Server) handleUpdateConfig(c *gin.Context) {
	env, ok := s.environmentParam(c)
	if !ok {
		return
	}
	var patch config.AgentConfigData
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{
			Detail:     "invalid request body: " + err.Error(),
			StatusCode: http.StatusBadRequest,
		})
		return
	}

	updated, err := s.deps.Configs.UpdateConfig(c.Request.Context(), env, patch, currentUser(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (s *Server) handleListPrompts(c *gin.Context) {
	prompts, err := s.deps.Prompts.ListPrompts(c.Request.Context(),
		c.Query("name"), config.PromptType(c.Query("prompt_type")))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"prompts": prompts})
}

func (s *Server) handleCreatePromptVersion(c *gin.Context) {
	var req models.CreatePromptVersionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{
			Detail:     "invalid request body: " + err.Error(),
			StatusCode: http.StatusBadRequest,
		})
		return
	}

	prompt, err := s.deps.Prompts.CreatePromptVersion(c.Request.Context(), &req, currentUser(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, prompt)
}

// handlePromptHistory lists every version of a named prompt, newest first.
// The path segment is the prompt name, not a version id.
func (s *Server) handlePromptHistory(c *gin.Context) {
	prompts, err := s.deps.Prompts.ListPrompts(c.Request.Context(), c.Param("id"), "")
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"prompts": prompts})
}

func (s *Server) handleGetPrompt(c *gin.Context) {
	prompt, err := s.deps.Prompts.GetPrompt(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, prompt)
}

func (s *Server) handleUpdatePrompt(c *gin.Context) {
	var req models.UpdatePromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{
			Detail:     "invalid request body: " + err.Error(),
			StatusCode: http.StatusBadRequest,
		})
		return
	}
	prompt, err := s.deps.Prompts.UpdatePrompt(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, prompt)
}

func (s *Server) handleActivatePrompt(c *gin.Context) {
	prompt, err := s.deps.Prompts.ActivateVersion(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, prompt)
}

func (s *Server) handleListTools(c *gin.Context) {
	records, err := s.deps.Tools.List(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tools": records})
}

func (s *Server) handleGetTool(c *gin.Context) {
	record, err := s.deps.Tools.Get(c.Request.Context(), c.Param("name"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (s *Server) handleUpdateTool(c *gin.Context) {
	var req models.UpdateToolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{
			Detail:     "invalid request body: " + err.Error(),
			StatusCode: http.StatusBadRequest,
		})
		return
	}
	record, err := s.deps.Tools.Update(c.Request.Context(), c.Param("name"), &req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// handleSetToolEnabled returns a handler flipping one tool's enabled flag.
func (s *Server) handleSetToolEnabled(enabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		record, err := s.deps.Tools.Update(c.Request.Context(), c.Param("name"),
			&models.UpdateToolRequest{Enabled: &enabled})
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, record)
	}
}

func (s *Server) handleListMCPServers(c *gin.Context) {
	servers, err := s.deps.MCP.ListServers(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"servers": servers})
}

func (s *Server) handleCreateMCPServer(c *gin.Context) {
	var req models.CreateMCPServerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{
			Detail:     "invalid request body: " + err.Error(),
			StatusCode: http.StatusBadRequest,
		})
		return
	}
	server, err := s.deps.MCP.CreateServer(c.Request.Context(), &req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, server)
}

func (s *Server) handleGetMCPServer(c *gin.Context) {
	server, err := s.deps.MCP.GetServer(c.Request.Context(), c.Param("name"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, server)
}

func (s *Server) handleUpdateMCPServer(c *gin.Context) {
	var req models.UpdateMCPServerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{
			Detail:     "invalid request body: " + err.Error(),
			StatusCode: http.StatusBadRequest,
		})
		return
	}
	server, err := s.deps.MCP.UpdateServer(c.Request.Context(), c.Param("name"), &req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, server)
}

// handleSetMCPServerEnabled returns a handler flipping one server's enabled
// flag. Enabling reconnects and rediscovers on the next pass; disabling drops
// the session and unregisters its tools.
func (s *Server) handleSetMCPServerEnabled(enabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		server, err := s.deps.MCP.UpdateServer(c.Request.Context(), c.Param("name"),
			&models.UpdateMCPServerRequest{Enabled: &enabled})
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, server)
	}
}

func (s *Server) handleRefreshMCPServer(c *gin.Context) {
	server, err := s.deps.MCP.RefreshTools(c.Request.Context(), c.Param("name"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, server)
}

func (s *Server) handleDeleteMCPServer(c *gin.Context) {
	if err := s.deps.MCP.DeleteServer(c.Request.Context(), c.Param("name")); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleListSources(c *gin.Context) {
	statuses, err := s.deps.Sources.List(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"sources":      statuses,
		"queue_depths": s.deps.Queues.QueueDepths(),
	})
}

// handleSlackBackfill pulls channel history inside the request, so backfills
// of any size should go through a narrow date window.
func (s *Server) handleSlackBackfill(c *gin.Context) {
	var req models.SlackIngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{
			Detail:     "invalid request body: " + err.Error(),
			StatusCode: http.StatusBadRequest,
		})
		return
	}
	if len(req.ChannelIDs) == 0 {
		c.JSON(http.StatusBadRequest, errorBody{
			Detail:     "channel_ids must not be empty",
			StatusCode: http.StatusBadRequest,
		})
		return
	}

	start, end, ok := parseDateWindow(c, req.StartDate, req.EndDate)
	if !ok {
		return
	}

	counts, err := s.deps.Slack.Backfill(c.Request.Context(),
		req.ChannelIDs, start, end, req.LimitPerChannel)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"enqueued": counts})
}

func (s *Server) handleTelegramDialogs(c *gin.Context) {
	if s.deps.Telegram == nil {
		c.JSON(http.StatusServiceUnavailable, errorBody{
			Detail:     "telegram collector is not enabled",
			StatusCode: http.StatusServiceUnavailable,
		})
		return
	}
	dialogs, err := s.deps.Telegram.ListDialogs(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"dialogs": dialogs})
}

func (s *Server) handleTelegramBackfill(c *gin.Context) {
	if s.deps.Telegram == nil {
		c.JSON(http.StatusServiceUnavailable, errorBody{
			Detail:     "telegram collector is not enabled",
			StatusCode: http.StatusServiceUnavailable,
		})
		return
	}

	var req struct {
		ChatID    int64  `json:"chat_id"`
		StartDate string `json:"start_date,omitempty"`
		EndDate   string `json:"end_date,omitempty"`
		Limit     int    `json:"limit,omitempty"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.ChatID == 0 {
		c.JSON(http.StatusBadRequest, errorBody{
			Detail:     "body must carry a non-zero chat_id",
			StatusCode: http.StatusBadRequest,
		})
		return
	}

	start, end, ok := parseDateWindow(c, req.StartDate, req.EndDate)
	if !ok {
		return
	}

	enqueued, err := s.deps.Telegram.FetchHistorical(c.Request.Context(),
		req.ChatID, start, end, req.Limit)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"enqueued": enqueued})
}

func (s *Server) handleListModels(c *gin.Context) {
	provider := config.LLMProviderType(c.Query("provider"))
	if provider != "" && !provider.IsValid() {
		c.JSON(http.StatusBadRequest, errorBody{
			Detail:     "unknown provider",
			StatusCode: http.StatusBadRequest,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"models": llm.Catalog(provider)})
}

// parseDateWindow parses optional YYYY-MM-DD bounds. The end bound is
// inclusive of the whole day.
func parseDateWindow(c *gin.Context, startDate, endDate string) (start, end time.Time, ok bool) {
	badDate := func(field string) (time.Time, time.Time, bool) {
		c.JSON(http.StatusBadRequest, errorBody{
			Detail:     field + " must be YYYY-MM-DD",
			StatusCode: http.StatusBadRequest,
		})
		return time.Time{}, time.Time{}, false
	}

	var err error
	if startDate != "" {
		if start, err = time.Parse("2006-01-02", startDate); err != nil {
			return badDate("start_date")
		}
	}
	if endDate != "" {
		if end, err = time.Parse("2006-01-02", endDate); err != nil {
			return badDate("end_date")
		}
		end = end.Add(24*time.Hour - time.Second)
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		c.JSON(http.StatusBadRequest, errorBody{
			Detail:     "end_date must not precede start_date",
			StatusCode: http.StatusBadRequest,
		})
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}
