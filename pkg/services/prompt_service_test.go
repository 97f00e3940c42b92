package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	t.Run("substitutes all placeholders", func(t *testing.T) {
		out, err := render("Answer {query} using {context}.", map[string]string{
			"query":   "what is the refund window",
			"context": "Refunds take 5 days.",
		})
		require.NoError(t, err)
		assert.Equal(t, "Answer what is the refund window using Refunds take 5 days.", out)
	})

	t.Run("fails on undefined variable", func(t *testing.T) {
		_, err := render("Hello {name}, {missing}", map[string]string{"name": "ops"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing")
	})

	t.Run("extra variables are ignored", func(t *testing.T) {
		out, err := render("plain text", map[string]string{"unused": "x"})
		require.NoError(t, err)
		assert.Equal(t, "plain text", out)
	})

	t.Run("repeated placeholder", func(t *testing.T) {
		out, err := render("{a} and {a}", map[string]string{"a": "x"})
		require.NoError(t, err)
		assert.Equal(t, "x and x", out)
	})

	t.Run("double braces escape literals", func(t *testing.T) {
		out, err := render(`respond with {{"answer": "{a}"}}`, map[string]string{"a": "x"})
		require.NoError(t, err)
		assert.Equal(t, `respond with {"answer": "x"}`, out)
	})

	t.Run("escaped placeholder is not substituted", func(t *testing.T) {
		out, err := render("literal {{a}} next to {a}", map[string]string{"a": "x"})
		require.NoError(t, err)
		assert.Equal(t, "literal {a} next to x", out)
	})
}

func TestSubstitute_LeavesUnknownVerbatim(t *testing.T) {
	out := substitute("Use {context} near {unknown}", map[string]string{"context": "C"})
	assert.Equal(t, "Use C near {unknown}", out)

	out = substitute("keep {{context}} literal", map[string]string{"context": "C"})
	assert.Equal(t, "keep {context} literal", out)
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "short", truncateRunes("short", 50))
	got := truncateRunes("abcdefghij", 5)
	assert.Equal(t, "abcd…", got)
	assert.Len(t, []rune(got), 5)
	// multibyte input is cut on rune boundaries
	got = truncateRunes("ééééééé", 3)
	assert.Equal(t, "éé…", got)
}
