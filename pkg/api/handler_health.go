package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// handleHealth reports process health. Database failure makes the endpoint
// return 503; degraded collectors only show up in the payload.
func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	payload := gin.H{
		"status":       "healthy",
		"queue_depths": s.deps.Queues.QueueDepths(),
	}
	if s.deps.Telegram != nil {
		payload["telegram_connected"] = s.deps.Telegram.Running()
	}

	if s.deps.DB != nil {
		dbHealth, err := s.deps.DB.Health(ctx)
		payload["database"] = dbHealth
		if err != nil {
			payload["status"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, payload)
			return
		}
	}

	c.JSON(http.StatusOK, payload)
}
