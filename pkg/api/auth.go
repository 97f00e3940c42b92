package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/paydesk/paydesk/pkg/config"
)

const userContextKey = "paydesk.user"

// defaultAuthCacheTTL bounds how long a verified token is remembered.
const defaultAuthCacheTTL = 60 * time.Second

// authenticator resolves a request to a user id. With a userinfo endpoint
// configured it verifies bearer tokens (or the `session` cookie) against it
// and caches the result; otherwise it trusts gateway-set identity headers.
type authenticator struct {
	userInfoURL string
	cacheTTL    time.Duration
	client      *http.Client

	mu    sync.Mutex
	cache map[string]cachedIdentity
}

type cachedIdentity struct {
	user    string
	expires time.Time
}

func newAuthenticator(cfg config.AuthSettings) *authenticator {
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = defaultAuthCacheTTL
	}
	return &authenticator{
		userInfoURL: cfg.UserInfoURL,
		cacheTTL:    ttl,
		client:      &http.Client{Timeout: 5 * time.Second},
		cache:       make(map[string]cachedIdentity),
	}
}

// middleware authenticates the request and stores the user id in the gin
// context. Requests without a resolvable identity get 401.
func (a *authenticator) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := a.identify(c)
		if err != nil || user == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody{
				Detail:     "authentication required",
				StatusCode: http.StatusUnauthorized,
			})
			return
		}
		c.Set(userContextKey, user)
		c.Next()
	}
}

// currentUser reads the authenticated user id set by the middleware.
func currentUser(c *gin.Context) string {
	return c.GetString(userContextKey)
}

func (a *authenticator) identify(c *gin.Context) (string, error) {
	if a.userInfoURL != "" {
		token := requestToken(c)
		if token == "" {
			return "", fmt.Errorf("no token presented")
		}
		return a.verifyToken(c.Request.Context(), token)
	}

	// Trusted-header mode behind an authenticating gateway.
	if user := c.GetHeader("X-Forwarded-User"); user != "" {
		return user, nil
	}
	if email := c.GetHeader("X-Forwarded-Email"); email != "" {
		return email, nil
	}
	return "", fmt.Errorf("no identity headers present")
}

// requestToken pulls the credential from the Authorization header or the
// `session` cookie.
func requestToken(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	if cookie, err := c.Cookie("session"); err == nil {
		return cookie
	}
	return ""
}

// verifyToken resolves a token through the identity provider, with a short
// positive cache so every chat turn does not round-trip the IdP.
func (a *authenticator) verifyToken(ctx context.Context, token string) (string, error) {
	a.mu.Lock()
	if entry, ok := a.cache[token]; ok && time.Now().Before(entry.expires) {
		a.mu.Unlock()
		return entry.user, nil
	}
	a.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.userInfoURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("userinfo request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("userinfo rejected token: status %d", resp.StatusCode)
	}

	var info struct {
		Sub               string `json:"sub"`
		Email             string `json:"email"`
		PreferredUsername string `json:"preferred_username"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return "", fmt.Errorf("failed to decode userinfo response: %w", err)
	}

	user := info.Email
	if user == "" {
		user = info.PreferredUsername
	}
	if user == "" {
		user = info.Sub
	}
	if user == "" {
		return "", fmt.Errorf("userinfo response carries no identity")
	}

	a.mu.Lock()
	a.cache[token] = cachedIdentity{user: user, expires: time.Now().Add(a.cacheTTL)}
	a.mu.Unlock()
	return user, nil
}
