package flowmesh

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowmesh/flowmesh/agent"
	"github.com/flowmesh/flowmesh/completion"
	"github.com/flowmesh/flowmesh/core"
	"github.com/flowmesh/flowmesh/internal/testutil"
)

func TestFlowMesh_EndToEnd(t *testing.T) {
	ctx := context.Background()
	mock := completion.NewMock()
	mock.SetDefaultResponse("Analysis: steady\nConfidence: 80%")

	mesh := New(func(o *Options) {
		o.Completer = mock
	})

	require.NoError(t, mesh.RegisterWorkflow(ctx, testutil.TwoNodeWorkflow("wf-1")))

	exec, err := mesh.CreateExecution(ctx, "wf-1", map[string]any{"input": "q3 data"}, "alice")
	require.NoError(t, err)

	summary, err := mesh.Run(ctx, exec.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, summary.Status)
	assert.Equal(t, 2, summary.Metrics.CompletedNodes)

	full, err := mesh.Execution(ctx, exec.ID)
	require.NoError(t, err)
	assert.Contains(t, full.FinalResult, "analyze")
	assert.Contains(t, full.FinalResult, "report")
}

func TestFlowMesh_RegisterWorkflowValidates(t *testing.T) {
	mesh := New()
	err := mesh.RegisterWorkflow(context.Background(), &core.WorkflowDefinition{ID: "bad"})
	assert.Error(t, err)
}

func TestFlowMesh_ApprovalGateRoundTrip(t *testing.T) {
	ctx := context.Background()
	mesh := New(func(o *Options) {
		o.Completer = completion.NewMock()
	})
	require.NoError(t, mesh.RegisterWorkflow(ctx, testutil.GateWorkflow("wf-1")))

	exec, err := mesh.CreateExecution(ctx, "wf-1", nil, "alice")
	require.NoError(t, err)

	summary, err := mesh.Run(ctx, exec.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusPaused, summary.Status)

	full, err := mesh.Execution(ctx, exec.ID)
	require.NoError(t, err)
	iv, ok := full.OpenInterventionRecord()
	require.True(t, ok)

	require.NoError(t, mesh.SubmitDecision(ctx, exec.ID, iv.ID, "approve", "go ahead", "bob"))

	summary, err = mesh.Resume(ctx, exec.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, summary.Status)
	assert.Equal(t, 3, summary.Metrics.CompletedNodes)
}

func TestFlowMesh_StaticAgentType(t *testing.T) {
	ctx := context.Background()
	mesh := New()
	mesh.RegisterAgentType("static", func(spec core.AgentSpec) (agent.Agent, error) {
		return &fixedAgent{Base: agent.NewBase(spec.ID, spec.Type)}, nil
	})

	w := testutil.NewWorkflowBuilder("wf-1").
		Node("only", "static", nil).
		Entry("only").Finish("only").
		Build()
	require.NoError(t, mesh.RegisterWorkflow(ctx, w))

	exec, err := mesh.CreateExecution(ctx, "wf-1", nil, "")
	require.NoError(t, err)
	summary, err := mesh.Run(ctx, exec.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, summary.Status)

	full, err := mesh.Execution(ctx, exec.ID)
	require.NoError(t, err)
	only, ok := full.FinalResult["only"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "fixed", only["analysis"])
}

func TestFlowMesh_Cancel(t *testing.T) {
	ctx := context.Background()
	mesh := New()
	require.NoError(t, mesh.RegisterWorkflow(ctx, testutil.TwoNodeWorkflow("wf-1")))

	exec, err := mesh.CreateExecution(ctx, "wf-1", nil, "")
	require.NoError(t, err)
	require.NoError(t, mesh.Cancel(ctx, exec.ID))

	summary, err := mesh.Summary(ctx, exec.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusCancelled, summary.Status)
}

type fixedAgent struct {
	agent.Base
}

func (f *fixedAgent) Execute(_ context.Context, _ map[string]any) (map[string]any, error) {
	return map[string]any{"analysis": "fixed", "confidence": 1.0}, nil
}
