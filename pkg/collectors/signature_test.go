package collectors

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freshTimestamp() string {
	return strconv.FormatInt(time.Now().Unix(), 10)
}

func TestVerifySignature_Valid(t *testing.T) {
	secret := "test-secret"
	body := []byte(`{"type":"event_callback"}`)
	ts := freshTimestamp()

	sig := ComputeSignature(secret, ts, body)
	assert.NoError(t, VerifySignature(secret, ts, sig, body))
}

func TestVerifySignature_Failures(t *testing.T) {
	secret := "test-secret"
	body := []byte("payload")
	ts := freshTimestamp()
	good := ComputeSignature(secret, ts, body)

	stale := strconv.FormatInt(time.Now().Add(-10*time.Minute).Unix(), 10)
	future := strconv.FormatInt(time.Now().Add(10*time.Minute).Unix(), 10)

	tests := []struct {
		name      string
		secret    string
		timestamp string
		signature string
		body      []byte
	}{
		{"no secret configured", "", ts, good, body},
		{"missing timestamp", secret, "", good, body},
		{"missing signature", secret, ts, "", body},
		{"malformed timestamp", secret, "not-a-number", good, body},
		{"stale timestamp", secret, stale, ComputeSignature(secret, stale, body), body},
		{"future timestamp", secret, future, ComputeSignature(secret, future, body), body},
		{"wrong secret", secret, ts, ComputeSignature("other", ts, body), body},
		{"tampered body", secret, ts, good, []byte("payload2")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifySignature(tt.secret, tt.timestamp, tt.signature, tt.body)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrBadSignature)
		})
	}
}

func TestComputeSignature_Format(t *testing.T) {
	sig := ComputeSignature("s", "1700000000", []byte("b"))
	assert.Regexp(t, `^v0=[0-9a-f]{64}$`, sig)
}

func TestComputeSignature_TimestampIsSigned(t *testing.T) {
	sig := ComputeSignature("secret", "1700000000", []byte(`{"ok":true}`))
	other := ComputeSignature("secret", "1700000001", []byte(`{"ok":true}`))
	assert.NotEqual(t, sig, other, "timestamp must be part of the signed string")
}
