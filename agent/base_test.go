package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowmesh/flowmesh/core"
	"github.com/flowmesh/flowmesh/logging"
)

// stubAgent embeds Base and supplies a canned Execute.
type stubAgent struct {
	Base
	output   map[string]any
	execErr  error
	apiCalls int
}

func (s *stubAgent) Execute(_ context.Context, _ map[string]any) (map[string]any, error) {
	if s.execErr != nil {
		return nil, s.execErr
	}
	return s.output, nil
}

func (s *stubAgent) APICalls() int { return s.apiCalls }

func TestBase_Defaults(t *testing.T) {
	b := NewBase("node-1", "custom")

	assert.Equal(t, "node-1", b.ID())
	assert.Equal(t, "custom", b.Type())
	assert.NotNil(t, b.Memory())

	require.NoError(t, b.Initialize(context.Background()))
	assert.True(t, b.Initialized())
	require.NoError(t, b.Initialize(context.Background()))

	_, err := b.Execute(context.Background(), nil)
	assert.True(t, core.IsNotImplemented(err))
}

func TestBase_ValidateInputs(t *testing.T) {
	b := NewBase("node-1", "custom", func(o *BaseOptions) {
		o.RequiredInputs = []string{"data", "topic"}
	})

	require.NoError(t, b.ValidateInputs(map[string]any{"data": 1, "topic": "x"}))

	err := b.ValidateInputs(map[string]any{"data": 1, "topic": nil})
	require.Error(t, err)
	assert.True(t, core.IsValidation(err))
	assert.Contains(t, err.Error(), "topic")
}

func TestBase_Confidence(t *testing.T) {
	b := NewBase("node-1", "custom")

	assert.Equal(t, 0.9, b.Confidence(map[string]any{"confidence": 0.9}, nil))
	assert.Equal(t, 1.0, b.Confidence(map[string]any{"confidence": 1}, nil))
	assert.Equal(t, 0.8, b.Confidence(map[string]any{}, nil))
	assert.Equal(t, 0.8, b.Confidence(nil, nil))
	assert.Equal(t, 0.8, b.Confidence(map[string]any{"confidence": "high"}, nil))
}

func TestProcess_SequencesPipeline(t *testing.T) {
	a := &stubAgent{
		Base:     NewBase("node-1", "custom"),
		output:   map[string]any{"analysis": "done", "confidence": 0.6},
		apiCalls: 2,
	}

	result, err := Process(context.Background(), a, map[string]any{"k": "v"}, logging.NoOpLogger{})
	require.NoError(t, err)

	assert.Equal(t, "node-1", result.AgentID)
	assert.Equal(t, "done", result.Output["analysis"])
	assert.Equal(t, 0.6, result.Confidence)
	assert.Equal(t, 2, result.APICalls)
	assert.False(t, result.Timestamp.IsZero())
	assert.True(t, a.Initialized())
}

func TestProcess_ClampsConfidence(t *testing.T) {
	a := &stubAgent{
		Base:   NewBase("node-1", "custom"),
		output: map[string]any{"confidence": 7.5},
	}
	result, err := Process(context.Background(), a, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, result.Confidence)
}

func TestProcess_ValidationFailureStopsPipeline(t *testing.T) {
	a := &stubAgent{
		Base: NewBase("node-1", "custom", func(o *BaseOptions) {
			o.RequiredInputs = []string{"data"}
		}),
		output: map[string]any{"analysis": "never reached"},
	}

	_, err := Process(context.Background(), a, map[string]any{}, nil)
	require.Error(t, err)
	assert.True(t, core.IsValidation(err))
}

func TestProcess_ExecuteErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	a := &stubAgent{Base: NewBase("node-1", "custom"), execErr: boom}

	_, err := Process(context.Background(), a, nil, nil)
	assert.ErrorIs(t, err, boom)
}
