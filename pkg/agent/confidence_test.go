package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paydesk/paydesk/pkg/config"
	"github.com/paydesk/paydesk/pkg/models"
)

func scoredChunks(scores ...float64) []models.ScoredChunk {
	out := make([]models.ScoredChunk, len(scores))
	for i, s := range scores {
		out[i] = models.ScoredChunk{Score: s}
	}
	return out
}

func TestFormulaConfidence_HighQualityRetrieval(t *testing.T) {
	weights := config.FormulaWeights{Similarity: 0.80, SourceBoost: 0.10, LengthBoost: 0.10}
	score, breakdown := formulaConfidence(scoredChunks(0.92, 0.85, 0.78), 260, weights)

	assert.InDelta(t, 0.885, breakdown["similarity_score"], 1e-9)
	assert.Equal(t, 1.0, breakdown["source_boost"])
	assert.Equal(t, 1.0, breakdown["length_boost"])
	assert.Equal(t, 3, breakdown["high_quality_source_count"])
	assert.InDelta(t, 0.908, score, 1e-9)
}

func TestFormulaConfidence_EmptyRetrievalShortCircuits(t *testing.T) {
	weights := config.FormulaWeights{Similarity: 0.8, SourceBoost: 0.1, LengthBoost: 0.1}
	score, breakdown := formulaConfidence(nil, 500, weights)
	assert.Zero(t, score)
	assert.Equal(t, 0, breakdown["high_quality_source_count"])
}

func TestFormulaConfidence_SimilarityTiers(t *testing.T) {
	weights := config.FormulaWeights{Similarity: 1, SourceBoost: 0, LengthBoost: 0}

	score, _ := formulaConfidence(scoredChunks(0.9), 0, weights)
	assert.InDelta(t, 0.9, score, 1e-9)

	score, _ = formulaConfidence(scoredChunks(0.9, 0.6), 0, weights)
	assert.InDelta(t, 0.7*0.9+0.3*0.6, score, 1e-9)

	// scores arrive unsorted; the formula sorts descending
	score, _ = formulaConfidence(scoredChunks(0.6, 0.9, 0.8), 0, weights)
	assert.InDelta(t, 0.6*0.9+0.3*0.8+0.1*0.6, score, 1e-9)
}

func TestFormulaConfidence_SourceBoostTiers(t *testing.T) {
	weights := config.FormulaWeights{Similarity: 0, SourceBoost: 1, LengthBoost: 0}
	for _, tc := range []struct {
		scores []float64
		want   float64
	}{
		{[]float64{0.5}, 0.0},
		{[]float64{0.8}, 0.3},
		{[]float64{0.8, 0.76}, 0.6},
		{[]float64{0.8, 0.76, 0.9}, 1.0},
		{[]float64{0.8, 0.76, 0.9, 0.99}, 1.0},
	} {
		score, _ := formulaConfidence(scoredChunks(tc.scores...), 0, weights)
		assert.InDelta(t, tc.want, score, 1e-9, "scores %v", tc.scores)
	}
}

func TestFormulaConfidence_LengthBoostTiers(t *testing.T) {
	weights := config.FormulaWeights{Similarity: 0, SourceBoost: 0, LengthBoost: 1}
	chunks := scoredChunks(0.5)
	for _, tc := range []struct {
		length int
		want   float64
	}{
		{0, 0}, {99, 0}, {100, 0.5}, {199, 0.5}, {200, 1.0}, {5000, 1.0},
	} {
		score, _ := formulaConfidence(chunks, tc.length, weights)
		assert.InDelta(t, tc.want, score, 1e-9, "length %d", tc.length)
	}
}

func TestParseConfidence(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"0.85", 0.85},
		{"  0.85\n", 0.85},
		{"1", 1},
		{"0", 0},
		{"1.0", 1},
		{"The confidence is 0.72 overall.", 0.72},
		{"Score: .9", 0.9},
		{"confidence=1.0", 1.0},
		{"2.5", 1},  // strict parse, clamped
		{"-0.3", 0}, // strict parse, clamped
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := parseConfidence(tc.in)
			require.NoError(t, err)
			assert.InDelta(t, tc.want, got, 1e-9)
		})
	}

	_, err := parseConfidence("no idea")
	assert.Error(t, err)
}

func TestTruncateChars(t *testing.T) {
	assert.Equal(t, "abc", truncateChars("abc", 10))
	assert.Equal(t, "abcde", truncateChars("abcdefgh", 5))
	// never splits a multibyte rune
	s := truncateChars("ééééé", 3)
	assert.Equal(t, "é", s)
}
