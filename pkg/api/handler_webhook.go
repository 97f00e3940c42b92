package api

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Signature headers on incoming webhooks.
const (
	headerTimestamp = "X-Paydesk-Request-Timestamp"
	headerSignature = "X-Paydesk-Signature"
)

// handleSlackWebhook acks event deliveries. The collector only verifies and
// enqueues, so the handler responds well inside the platform's deadline.
func (s *Server) handleSlackWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		s.respondError(c, err)
		return
	}

	timestamp := c.GetHeader(headerTimestamp)
	signature := c.GetHeader(headerSignature)
	// Native Slack header names, for deliveries straight from the platform.
	if timestamp == "" {
		timestamp = c.GetHeader("X-Slack-Request-Timestamp")
	}
	if signature == "" {
		signature = c.GetHeader("X-Slack-Signature")
	}

	challenge, err := s.deps.Slack.HandleWebhook(timestamp, signature, body)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if challenge != "" {
		c.JSON(http.StatusOK, gin.H{"challenge": challenge})
		return
	}
	c.Status(http.StatusOK)
}

func (s *Server) handleWhatsAppWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		s.respondError(c, err)
		return
	}

	enqueued, err := s.deps.WhatsApp.HandleWebhook(
		c.GetHeader(headerTimestamp), c.GetHeader(headerSignature), body)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"enqueued": enqueued})
}

func (s *Server) handleTelegramWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		s.respondError(c, err)
		return
	}

	enqueued, err := s.deps.TelegramHook.HandleWebhook(
		c.GetHeader(headerTimestamp), c.GetHeader(headerSignature), body)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"enqueued": enqueued})
}
