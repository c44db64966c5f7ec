package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowmesh/flowmesh/core"
	"github.com/flowmesh/flowmesh/internal/testutil"
)

// Interface compliance (compile-time assertion)
var _ core.Store = (*InMemoryStore)(nil)

func TestInMemoryStore_WorkflowRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	_, err := s.LoadWorkflow(ctx, "wf-1")
	assert.True(t, core.IsNotFound(err))

	w := testutil.TwoNodeWorkflow("wf-1")
	require.NoError(t, s.PutWorkflow(ctx, w))

	loaded, err := s.LoadWorkflow(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, w.ID, loaded.ID)
	assert.Equal(t, w.EntryPoint, loaded.EntryPoint)

	// Mutating the loaded copy never affects the stored document.
	loaded.EntryPoint = "mutated"
	again, err := s.LoadWorkflow(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "analyze", again.EntryPoint)
}

func TestInMemoryStore_ExecutionRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	now := time.Now()

	_, err := s.LoadExecution(ctx, "missing")
	assert.True(t, core.IsNotFound(err))

	exec := core.NewExecution("wf-1", map[string]any{"k": "v"}, "alice")
	require.NoError(t, exec.Start(now))
	require.NoError(t, exec.AppendCheckpoint(core.Checkpoint{Node: "analyze", Timestamp: now}))
	require.NoError(t, exec.UpdateMetrics(func(m *core.Metrics) { m.CompletedNodes = 1 }))
	require.NoError(t, s.SaveExecution(ctx, exec))

	loaded, err := s.LoadExecution(ctx, exec.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusRunning, loaded.Status)
	assert.Equal(t, "alice", loaded.InitiatedBy)
	assert.Equal(t, 1, loaded.Metrics.CompletedNodes)
	require.Len(t, loaded.Checkpoints, 1)
	assert.Equal(t, "analyze", loaded.Checkpoints[0].Node)
	assert.Equal(t, "v", loaded.CurrentState["k"])

	// Saves are snapshots: later entity changes are invisible until re-saved.
	require.NoError(t, exec.Pause(now))
	unchanged, err := s.LoadExecution(ctx, exec.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusRunning, unchanged.Status)
}

func TestInMemoryStore_ListExecutions(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	e1 := core.NewExecution("wf-1", nil, "")
	e2 := core.NewExecution("wf-1", nil, "")
	e3 := core.NewExecution("wf-2", nil, "")
	for _, e := range []*core.Execution{e1, e2, e3} {
		require.NoError(t, s.SaveExecution(ctx, e))
	}

	all, err := s.ListExecutions(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	scoped, err := s.ListExecutions(ctx, "wf-1")
	require.NoError(t, err)
	assert.Len(t, scoped, 2)
}
