package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paydesk/paydesk/pkg/config"
)

func TestVerifyToken_CachesPositiveResults(t *testing.T) {
	var calls atomic.Int64
	idp := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Header.Get("Authorization") != "Bearer good-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sub":"u-1","email":"ops@example.com"}`))
	}))
	defer idp.Close()

	a := newAuthenticator(config.AuthSettings{UserInfoURL: idp.URL, CacheTTL: time.Minute})
	ctx := context.Background()

	user, err := a.verifyToken(ctx, "good-token")
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", user)

	user, err = a.verifyToken(ctx, "good-token")
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", user)
	assert.Equal(t, int64(1), calls.Load(), "second lookup must be served from cache")

	_, err = a.verifyToken(ctx, "bad-token")
	assert.Error(t, err)
}

func TestVerifyToken_IdentityFallbackOrder(t *testing.T) {
	idp := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sub":"u-1","preferred_username":"priya"}`))
	}))
	defer idp.Close()

	a := newAuthenticator(config.AuthSettings{UserInfoURL: idp.URL})
	user, err := a.verifyToken(context.Background(), "t")
	require.NoError(t, err)
	assert.Equal(t, "priya", user, "preferred_username outranks sub when email is absent")
}
