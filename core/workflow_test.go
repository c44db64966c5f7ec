package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validWorkflow() *WorkflowDefinition {
	return &WorkflowDefinition{
		ID: "wf-1",
		Agents: []AgentSpec{
			{ID: "analyze", Type: "dynamic"},
			{ID: "report", Type: "dynamic", Config: map[string]any{"outputKey": "final"}},
		},
		Connections: []Connection{
			{From: "analyze", To: "report"},
		},
		EntryPoint:  "analyze",
		FinishPoint: "report",
		Config:      ExecutionConfig{Timeout: time.Minute, MaxRetries: 2, EnableCheckpoints: true},
		Version:     1,
	}
}

func TestWorkflow_Validate(t *testing.T) {
	require.NoError(t, validWorkflow().Validate())

	t.Run("no agents", func(t *testing.T) {
		w := &WorkflowDefinition{ID: "wf-1"}
		assert.Error(t, w.Validate())
	})

	t.Run("unknown entry point", func(t *testing.T) {
		w := validWorkflow()
		w.EntryPoint = "missing"
		assert.Error(t, w.Validate())
	})

	t.Run("unknown finish point", func(t *testing.T) {
		w := validWorkflow()
		w.FinishPoint = "missing"
		assert.Error(t, w.Validate())
	})

	t.Run("dangling connection", func(t *testing.T) {
		w := validWorkflow()
		w.Connections = append(w.Connections, Connection{From: "report", To: "ghost"})
		assert.Error(t, w.Validate())
	})
}

func TestWorkflow_Lookups(t *testing.T) {
	w := validWorkflow()

	spec, ok := w.Agent("report")
	require.True(t, ok)
	assert.Equal(t, "final", spec.Config["outputKey"])

	_, ok = w.Agent("missing")
	assert.False(t, ok)

	out := w.Outbound("analyze")
	require.Len(t, out, 1)
	assert.Equal(t, "report", out[0].To)
	assert.Empty(t, w.Outbound("report"))

	in := w.Inbound("report")
	require.Len(t, in, 1)
	assert.Equal(t, "analyze", in[0].From)
}

func TestWorkflow_OutboundPreservesDeclarationOrder(t *testing.T) {
	w := validWorkflow()
	w.Agents = append(w.Agents, AgentSpec{ID: "retry", Type: "dynamic"})
	w.Connections = []Connection{
		{From: "analyze", To: "retry", Condition: "analyze.confidence < `0.5`"},
		{From: "analyze", To: "report"},
	}

	out := w.Outbound("analyze")
	require.Len(t, out, 2)
	assert.Equal(t, "retry", out[0].To)
	assert.Equal(t, "report", out[1].To)
}

func TestWorkflow_Clone(t *testing.T) {
	w := validWorkflow()
	w.Connections[0].DataMapping = &DataMapping{SourceKey: "analyze", TargetKey: "analysis"}

	clone := w.Clone()
	clone.Agents[1].Config["outputKey"] = "mutated"
	clone.Connections[0].DataMapping.SourceKey = "mutated"

	assert.Equal(t, "final", w.Agents[1].Config["outputKey"])
	assert.Equal(t, "analyze", w.Connections[0].DataMapping.SourceKey)
	assert.Equal(t, w.Config, clone.Config)
	assert.Equal(t, w.Version, clone.Version)
}
