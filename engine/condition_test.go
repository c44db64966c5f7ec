package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvalCondition(t *testing.T) {
	state := map[string]any{
		"analyze": map[string]any{"confidence": 0.3, "error": false},
		"count":   float64(2),
		"label":   "urgent",
		"items":   []any{"a"},
		"empty":   []any{},
	}

	cases := []struct {
		expr string
		want bool
	}{
		{"analyze.confidence < `0.5`", true},
		{"analyze.confidence > `0.5`", false},
		{"analyze.error", false},
		{"label == 'urgent'", true},
		{"label == 'routine'", false},
		{"items", true},
		{"empty", false},
		{"missing_key", false},
		{"count", true},
	}
	for _, tc := range cases {
		t.Run(tc.expr, func(t *testing.T) {
			got, err := evalCondition(tc.expr, state)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got, tc.expr)
		})
	}
}

func TestEvalCondition_InvalidExpression(t *testing.T) {
	_, err := evalCondition("][", map[string]any{})
	assert.Error(t, err)
}

func TestTruthy(t *testing.T) {
	assert.False(t, truthy(nil))
	assert.False(t, truthy(false))
	assert.False(t, truthy(""))
	assert.False(t, truthy(float64(0)))
	assert.False(t, truthy([]any{}))
	assert.False(t, truthy(map[string]any{}))
	assert.True(t, truthy(true))
	assert.True(t, truthy("x"))
	assert.True(t, truthy(float64(1)))
	assert.True(t, truthy(map[string]any{"k": 1}))
}
