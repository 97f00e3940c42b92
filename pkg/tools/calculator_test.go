package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		expr string
		want float64
	}{
		{"1 + 2", 3},
		{"2 * 3 + 4", 10},
		{"2 + 3 * 4", 14},
		{"(2 + 3) * 4", 20},
		{"10 / 4", 2.5},
		{"10 % 3", 1},
		{"2 ^ 10", 1024},
		{"2 ^ 3 ^ 2", 512}, // right associative
		{"-5 + 3", -2},
		{"-(2 + 3)", -5},
		{"1.5 * 2", 3},
		{"100 - 20 - 5", 75}, // left associative
	}
	for _, tc := range tests {
		t.Run(tc.expr, func(t *testing.T) {
			got, err := Evaluate(tc.expr)
			require.NoError(t, err)
			assert.InDelta(t, tc.want, got, 1e-9)
		})
	}
}

func TestEvaluate_Errors(t *testing.T) {
	for _, expr := range []string{
		"", "   ", "1 +", "+ 1 2", "(1 + 2", "1 + 2)", "1 / 0", "5 % 0", "abc", "1 + $",
	} {
		t.Run(expr, func(t *testing.T) {
			_, err := Evaluate(expr)
			assert.Error(t, err)
		})
	}
}

func TestCalculator_Invoke(t *testing.T) {
	c := NewCalculator()

	out, err := c.Invoke(context.Background(), map[string]any{"expression": "(1200 * 0.029) + 0.30"})
	require.NoError(t, err)
	assert.Equal(t, "35.1", out)

	_, err = c.Invoke(context.Background(), map[string]any{})
	assert.Error(t, err)
}
