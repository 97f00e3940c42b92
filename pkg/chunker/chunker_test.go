package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit_Empty(t *testing.T) {
	c := New(100, 20, ApproxTokenCounter)
	assert.Nil(t, c.Split(""))
	assert.Nil(t, c.Split("   \n\n  "))
}

func TestSplit_SmallTextSingleChunk(t *testing.T) {
	c := New(100, 20, ApproxTokenCounter)
	chunks := c.Split("A short paragraph about fees.")
	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, "A short paragraph about fees.", chunks[0].Content)
	assert.Positive(t, chunks[0].TokenCount)
}

func TestSplit_Deterministic(t *testing.T) {
	c := New(50, 10, ApproxTokenCounter)
	text := buildParagraphs(12)
	a := c.Split(text)
	b := c.Split(text)
	assert.Equal(t, a, b)
}

func TestSplit_IndexesSequential(t *testing.T) {
	c := New(50, 10, ApproxTokenCounter)
	chunks := c.Split(buildParagraphs(12))
	require.Greater(t, len(chunks), 1)
	for i, ch := range chunks {
		assert.Equal(t, i, ch.Index)
	}
}

func TestSplit_HardCapHolds(t *testing.T) {
	c := New(50, 10, ApproxTokenCounter)
	// one giant unbreakable line, no sentence ends
	giant := strings.Repeat("x", 4000)
	chunks := c.Split(giant)
	require.NotEmpty(t, chunks)
	for _, ch := range chunks {
		assert.LessOrEqual(t, ch.TokenCount, int(float64(50)*hardCapFactor),
			"chunk %d exceeds hard cap", ch.Index)
	}
}

func TestSplit_OverlapCarriesContext(t *testing.T) {
	c := New(50, 10, ApproxTokenCounter)
	chunks := c.Split(buildParagraphs(10))
	require.Greater(t, len(chunks), 1)

	// at least one pair of consecutive chunks shares a trailing/leading paragraph
	shared := 0
	for i := 1; i < len(chunks); i++ {
		prevParas := strings.Split(chunks[i-1].Content, "\n\n")
		tail := prevParas[len(prevParas)-1]
		if strings.HasPrefix(chunks[i].Content, tail) {
			shared++
		}
	}
	assert.Positive(t, shared, "expected overlap between consecutive chunks")
}

func TestSplit_PrefersHeadingBoundaries(t *testing.T) {
	c := New(40, 0, ApproxTokenCounter)
	text := "# Refund policy\nRefunds are processed in five days. The fee is waived for premium accounts.\n" +
		"# Chargebacks\nChargebacks are handled by the disputes team. Evidence must be supplied within ten days."
	chunks := c.Split(text)
	require.GreaterOrEqual(t, len(chunks), 2)
	assert.True(t, strings.HasPrefix(chunks[0].Content, "# Refund policy"))
	found := false
	for _, ch := range chunks {
		if strings.HasPrefix(ch.Content, "# Chargebacks") {
			found = true
		}
	}
	assert.True(t, found, "heading should start a chunk")
}

func TestSplit_SentenceFallbackForLongParagraphs(t *testing.T) {
	size := 25
	c := New(size, 0, ApproxTokenCounter)
	var sb strings.Builder
	for i := 0; i < 20; i++ {
		fmt.Fprintf(&sb, "Sentence number %d talks about payment limits. ", i)
	}
	chunks := c.Split(sb.String())
	require.Greater(t, len(chunks), 1)
	for _, ch := range chunks {
		assert.LessOrEqual(t, ch.TokenCount, int(float64(size)*hardCapFactor))
	}
}

func TestLineKind(t *testing.T) {
	assert.Equal(t, "heading", lineKind("# Title"))
	assert.Equal(t, "heading", lineKind("  ## Sub"))
	assert.Equal(t, "list", lineKind("- item"))
	assert.Equal(t, "list", lineKind("* item"))
	assert.Equal(t, "list", lineKind("3. item"))
	assert.Equal(t, "table", lineKind("| a | b |"))
	assert.Equal(t, "text", lineKind("plain prose"))
}

func TestApproxTokenCounter(t *testing.T) {
	assert.Equal(t, 0, ApproxTokenCounter(""))
	assert.Equal(t, 1, ApproxTokenCounter("abc"))
	assert.Equal(t, 1, ApproxTokenCounter("abcd"))
	assert.Equal(t, 2, ApproxTokenCounter("abcde"))
}

func buildParagraphs(n int) string {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&sb, "Paragraph %d covers settlement timing and dispute windows for merchants.\n\n", i)
	}
	return sb.String()
}
