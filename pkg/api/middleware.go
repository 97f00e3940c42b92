package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/paydesk/paydesk/pkg/notifier"
)

// Per-user request budget for the chat surface.
const (
	rateLimitPerMinute = 60
	rateLimitBurst     = 10
)

// securityHeaders sets standard security response headers.
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
		c.Next()
	}
}

// requestLogger logs one structured line per request.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		level := slog.LevelInfo
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		slog.Log(c.Request.Context(), level, "HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"user", currentUser(c))
	}
}

// recovery converts panics into 500 responses and alerts with the stack.
func (s *Server) recovery() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, recovered any) {
		err := fmt.Sprintf("%v", recovered)
		slog.Error("Panic in request handler",
			"method", c.Request.Method, "path", c.FullPath(), "panic", err)
		s.alerts.Notify(notifier.Event{
			Kind:    "panic",
			Message: err,
			Stack:   string(debug.Stack()),
			Method:  c.Request.Method,
			Path:    c.FullPath(),
			UserID:  currentUser(c),
		})
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody{
			Detail:     "internal server error",
			StatusCode: http.StatusInternalServerError,
		})
	})
}

// userLimiter hands out one token bucket per user id. Buckets idle for an
// hour are dropped on the next sweep.
type userLimiter struct {
	mu      sync.Mutex
	buckets map[string]*limiterEntry
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newUserLimiter() *userLimiter {
	return &userLimiter{buckets: make(map[string]*limiterEntry)}
}

func (l *userLimiter) allow(user string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.buckets[user]
	if !ok {
		entry = &limiterEntry{
			limiter: rate.NewLimiter(rate.Limit(rateLimitPerMinute)/60, rateLimitBurst),
		}
		l.buckets[user] = entry
		if len(l.buckets)%512 == 0 {
			l.sweepLocked()
		}
	}
	entry.lastSeen = time.Now()
	return entry.limiter.Allow()
}

func (l *userLimiter) sweepLocked() {
	cutoff := time.Now().Add(-time.Hour)
	for user, entry := range l.buckets {
		if entry.lastSeen.Before(cutoff) {
			delete(l.buckets, user)
		}
	}
}

// rateLimit enforces the per-user budget after authentication.
func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.allow(currentUser(c)) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorBody{
				Detail:     "rate limit exceeded",
				StatusCode: http.StatusTooManyRequests,
			})
			return
		}
		c.Next()
	}
}
