package tools

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialCipher_RoundTrip(t *testing.T) {
	c, err := NewCredentialCipher(strings.Repeat("k", 32))
	require.NoError(t, err)

	sealed, err := c.Encrypt(`{"api_key":"secret"}`)
	require.NoError(t, err)
	assert.NotContains(t, sealed, "secret")

	plain, err := c.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, `{"api_key":"secret"}`, plain)
}

func TestCredentialCipher_HexKey(t *testing.T) {
	c, err := NewCredentialCipher(strings.Repeat("ab", 32))
	require.NoError(t, err)
	sealed, err := c.Encrypt("x")
	require.NoError(t, err)
	plain, err := c.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, "x", plain)
}

func TestCredentialCipher_BadKeyLength(t *testing.T) {
	_, err := NewCredentialCipher("short")
	assert.Error(t, err)
}

func TestCredentialCipher_EmptyPassthrough(t *testing.T) {
	c, err := NewCredentialCipher(strings.Repeat("k", 32))
	require.NoError(t, err)
	sealed, err := c.Encrypt("")
	require.NoError(t, err)
	assert.Empty(t, sealed)
	plain, err := c.Decrypt("")
	require.NoError(t, err)
	assert.Empty(t, plain)
}

func TestCredentialCipher_TamperDetected(t *testing.T) {
	c, err := NewCredentialCipher(strings.Repeat("k", 32))
	require.NoError(t, err)
	sealed, err := c.Encrypt("payload")
	require.NoError(t, err)

	_, err = c.Decrypt("AAAA" + sealed[4:])
	assert.Error(t, err)
}
