package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/paydesk/paydesk/pkg/collectors"
	"github.com/paydesk/paydesk/pkg/ingest"
	"github.com/paydesk/paydesk/pkg/notifier"
	"github.com/paydesk/paydesk/pkg/services"
	"github.com/paydesk/paydesk/pkg/tools"
)

// errorBody is the uniform error envelope.
type errorBody struct {
	Detail     string `json:"detail"`
	StatusCode int    `json:"status_code"`
	ErrorCode  string `json:"error_code,omitempty"`
}

// respondError maps service-layer errors to HTTP responses. Unexpected errors
// are logged, alerted, and returned as an opaque 500.
func (s *Server) respondError(c *gin.Context, err error) {
	status, code, detail := classifyError(err)

	if status == http.StatusInternalServerError {
		slog.Error("Unexpected service error",
			"method", c.Request.Method, "path", c.FullPath(), "error", err)
		s.alerts.Notify(notifier.Event{
			Kind:    "api_error",
			Message: err.Error(),
			Method:  c.Request.Method,
			Path:    c.FullPath(),
			UserID:  currentUser(c),
		})
	}

	c.AbortWithStatusJSON(status, errorBody{
		Detail:     detail,
		StatusCode: status,
		ErrorCode:  code,
	})
}

func classifyError(err error) (status int, code, detail string) {
	var validErr *services.ValidationError
	switch {
	case errors.As(err, &validErr):
		return http.StatusBadRequest, "validation_error", validErr.Error()
	case errors.Is(err, services.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input", err.Error()
	case errors.Is(err, collectors.ErrBadSignature):
		return http.StatusUnauthorized, "bad_signature", "webhook signature verification failed"
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden, "forbidden", "access denied"
	case errors.Is(err, services.ErrNotFound), errors.Is(err, tools.ErrToolNotFound):
		return http.StatusNotFound, "not_found", "resource not found"
	case errors.Is(err, services.ErrAlreadyExists):
		return http.StatusConflict, "already_exists", "resource already exists"
	case errors.Is(err, services.ErrConcurrentModification):
		return http.StatusConflict, "conflict", "resource was modified concurrently"
	case errors.Is(err, ingest.ErrQueueFull):
		return http.StatusServiceUnavailable, "queue_full", "ingestion queue is full, retry later"
	default:
		return http.StatusInternalServerError, "", "internal server error"
	}
}
