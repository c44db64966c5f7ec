package badgerstore

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
var _ core.Store = (*Store)(nil)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New("", WithInMemory())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestBadgerStore_WorkflowRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.LoadWorkflow(ctx, "wf-1")
	assert.True(t, core.IsNotFound(err))

	w := testutil.GateWorkflow("wf-1")
	w.Config.Timeout = time.Minute
	require.NoError(t, s.PutWorkflow(ctx, w))

	loaded, err := s.LoadWorkflow(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "wf-1", loaded.ID)
	assert.Len(t, loaded.Agents, 3)
	assert.Equal(t, time.Minute, loaded.Config.Timeout)
	assert.Equal(t, "analyze", loaded.EntryPoint)

	spec, ok := loaded.Agent("approve")
	require.True(t, ok)
	assert.Equal(t, "human_approval", spec.Type)
}

func TestBadgerStore_ExecutionRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	now := time.Now().UTC().Truncate(time.Millisecond)

	exec := core.NewExecution("wf-1", map[string]any{"input": "data"}, "alice")
	require.NoError(t, exec.Start(now))
	require.NoError(t, exec.MergeState(map[string]any{"analyze": map[string]any{"confidence": 0.9}}))
	require.NoError(t, exec.AppendCheckpoint(core.Checkpoint{Node: "analyze", Message: "done", Timestamp: now}))
	require.NoError(t, exec.UpdateMetrics(func(m *core.Metrics) {
		m.TotalNodes = 2
		m.CompletedNodes = 1
		m.AgentCalls = 1
	}))
	require.NoError(t, exec.Pause(now))
	_, err := exec.OpenIntervention("compliance", now)
	require.NoError(t, err)

	require.NoError(t, s.SaveExecution(ctx, exec))

	loaded, err := s.LoadExecution(ctx, exec.ID)
	require.NoError(t, err)
	assert.Equal(t, exec.ID, loaded.ID)
	assert.Equal(t, core.StatusPaused, loaded.Status)
	assert.Equal(t, "alice", loaded.InitiatedBy)
	assert.Equal(t, 1, loaded.Metrics.CompletedNodes)
	require.Len(t, loaded.Checkpoints, 1)
	assert.Equal(t, "done", loaded.Checkpoints[0].Message)

	iv, ok := loaded.OpenInterventionRecord()
	require.True(t, ok)
	assert.Equal(t, "compliance", iv.RequestedBy)

	// Nested state survives the JSON round trip.
	analyze, ok := loaded.CurrentState["analyze"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 0.9, analyze["confidence"])

	// The loaded entity is live: it can continue its lifecycle.
	require.NoError(t, loaded.CompleteIntervention(iv.ID, "approve", "", "bob", now))
	require.NoError(t, loaded.Resume(now))
	assert.Equal(t, core.StatusRunning, loaded.Status)
}

func TestBadgerStore_NotFound(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.LoadExecution(ctx, "missing")
	assert.True(t, core.IsNotFound(err))
}

func TestBadgerStore_OverwriteKeepsLatest(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	now := time.Now()

	exec := core.NewExecution("wf-1", nil, "")
	require.NoError(t, s.SaveExecution(ctx, exec))
	require.NoError(t, exec.Start(now))
	require.NoError(t, s.SaveExecution(ctx, exec))

	loaded, err := s.LoadExecution(ctx, exec.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusRunning, loaded.Status)
}
