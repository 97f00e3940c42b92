package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/paydesk/paydesk/pkg/models"
)

// handleChat answers a chat message in one response body.
func (s *Server) handleChat(c *gin.Context) {
	var req models.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{
			Detail:     "invalid request body: " + err.Error(),
			StatusCode: http.StatusBadRequest,
		})
		return
	}

	resp, err := s.deps.Chat.Respond(c.Request.Context(), currentUser(c), &req, nil)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// handleChatStream answers a chat message as newline-delimited JSON events:
// zero or more partial chunks, then exactly one terminal event. Once the
// stream has started, failures are reported inside the terminal event rather
// than by status code.
func (s *Server) handleChatStream(c *gin.Context) {
	var req models.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{
			Detail:     "invalid request body: " + err.Error(),
			StatusCode: http.StatusBadRequest,
		})
		return
	}

	c.Header("Content-Type", "application/x-ndjson")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")

	enc := json.NewEncoder(c.Writer)
	streamed := false
	emit := func(delta string) error {
		if delta == "" {
			return nil
		}
		streamed = true
		if err := enc.Encode(models.StreamEvent{Chunk: delta}); err != nil {
			return err
		}
		c.Writer.Flush()
		return nil
	}

	resp, err := s.deps.Chat.Respond(c.Request.Context(), currentUser(c), &req, emit)
	if err != nil {
		if !streamed {
			s.respondError(c, err)
			return
		}
		// The stream is already under way: close it with an escalated
		// terminal event so the client always gets exactly one.
		slog.Error("Streaming generation failed mid-stream",
			"session_id", req.SessionID, "error", err)
		escalated := true
		_ = enc.Encode(models.StreamEvent{
			IsFinal:          true,
			Escalated:        &escalated,
			EscalationReason: "generation failed",
		})
		c.Writer.Flush()
		return
	}

	// On escalation the streamed deltas were the raw draft; the replacement
	// handoff text goes out as one more chunk before the terminal event,
	// which itself carries no text.
	if resp.Escalated && resp.Message != "" {
		_ = emit(resp.Message)
	}
	_ = enc.Encode(terminalEvent(resp))
	c.Writer.Flush()
}

// terminalEvent projects the full response into the closing stream event.
func terminalEvent(resp *models.ChatResponse) models.StreamEvent {
	confidence := resp.Confidence
	escalated := resp.Escalated
	return models.StreamEvent{
		IsFinal:          true,
		Confidence:       &confidence,
		ConfidenceMethod: resp.ConfidenceMethod,
		Sources:          resp.Sources,
		Escalated:        &escalated,
		EscalationReason: resp.EscalationReason,
	}
}
