package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowmesh/flowmesh/completion"
	"github.com/flowmesh/flowmesh/core"
)

func TestDynamic_ExecuteParsesResponse(t *testing.T) {
	mock := completion.NewMock()
	mock.SetDefaultResponse("Analysis: all clear\nConfidence: 90%")

	d := NewDynamic("analyze", "dynamic", mock)
	result, err := d.Execute(context.Background(), map[string]any{"data": "metrics"})
	require.NoError(t, err)

	assert.Equal(t, "all clear", result["analysis"])
	assert.Equal(t, 0.9, result["confidence"])
	assert.Equal(t, 1, d.APICalls())

	// The prompt carries the rendered context.
	calls := mock.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0], "data: metrics")
}

func TestDynamic_DegradedResultOnCompletionFailure(t *testing.T) {
	mock := completion.NewMock()
	mock.FailWith(errors.New("rate limited"))

	d := NewDynamic("analyze", "dynamic", mock)
	result, err := d.Execute(context.Background(), map[string]any{"data": "x"})

	// Not fatal: a degraded low-confidence result is returned instead.
	require.NoError(t, err)
	assert.Equal(t, 0.1, result["confidence"])
	assert.Equal(t, true, result["error"])
	assert.Contains(t, result["analysis"], "Error processing dynamic")
	assert.Contains(t, result["analysis"], "rate limited")
}

func TestDynamic_PromptTemplate(t *testing.T) {
	mock := completion.NewMock()
	d := NewDynamic("analyze", "dynamic", mock, func(o *DynamicOptions) {
		o.PromptTemplate = "Summarize {{.topic}} for {{.audience}}."
	})

	_, err := d.Execute(context.Background(), map[string]any{"topic": "latency", "audience": "oncall"})
	require.NoError(t, err)

	calls := mock.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0], "Summarize latency for oncall.")
}

func TestDynamic_PromptCarriesPriorSteps(t *testing.T) {
	mock := completion.NewMock()
	d := NewDynamic("analyze", "dynamic", mock)

	_, err := d.Execute(context.Background(), map[string]any{"data": "first"})
	require.NoError(t, err)
	_, err = d.Execute(context.Background(), map[string]any{"data": "second"})
	require.NoError(t, err)

	calls := mock.Calls()
	require.Len(t, calls, 2)
	assert.NotContains(t, calls[0], "Prior step results")
	assert.Contains(t, calls[1], "Prior step results")
	assert.Contains(t, calls[1], "Conversation so far")
}

func TestDynamic_ImagesAttached(t *testing.T) {
	mock := completion.NewMock()
	d := NewDynamic("analyze", "dynamic", mock)

	_, err := d.Execute(context.Background(), map[string]any{
		"images": []any{
			"https://example.com/a.png",
			map[string]any{"data": "aGVsbG8=", "mediaType": "image/png"},
		},
	})
	require.NoError(t, err)

	calls := mock.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0], "2 image(s) attached")
	// Image refs are carried out-of-band, not rendered into the context block.
	assert.NotContains(t, calls[0], "- images:")
}

func TestNewDynamicFromSpec(t *testing.T) {
	spec := core.AgentSpec{
		ID:   "analyze",
		Type: "dynamic",
		Config: map[string]any{
			"promptTemplate": "Analyze {{.data}}",
			"model":          "gpt-4o",
			"temperature":    0.2,
			"maxTokens":      512,
			"maxHistory":     3,
			"requiredInputs": []any{"data"},
		},
	}
	d := NewDynamicFromSpec(spec, completion.NewMock(), nil)

	assert.Equal(t, "Analyze {{.data}}", d.opts.PromptTemplate)
	assert.Equal(t, "gpt-4o", d.opts.Model)
	assert.Equal(t, 0.2, d.opts.Temperature)
	assert.Equal(t, int64(512), d.opts.MaxTokens)
	assert.Equal(t, 3, d.opts.MaxHistory)
	assert.Equal(t, []string{"data"}, d.RequiredInputs())

	// Missing required input surfaces as a validation error through Process.
	_, err := Process(context.Background(), d, map[string]any{}, nil)
	assert.True(t, core.IsValidation(err))
}

func TestExtractImages(t *testing.T) {
	assert.Nil(t, extractImages(map[string]any{}))

	images := extractImages(map[string]any{"images": []string{"u1", "u2"}})
	require.Len(t, images, 2)
	assert.Equal(t, "u1", images[0].URL)

	images = extractImages(map[string]any{"images": []any{
		map[string]any{"url": "u3"},
		map[string]any{"comment": "no ref"},
	}})
	require.Len(t, images, 1)
	assert.Equal(t, "u3", images[0].URL)
}
