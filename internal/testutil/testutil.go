// Package testutil contains helper builders used across tests to reduce
// boilerplate when constructing workflow definitions. These helpers are
// intentionally minimal and not intended for production usage.
package testutil

import (
	"time"

	"github.com/flowmesh/flowmesh/core"
)

// WorkflowBuilder provides a fluent helper for constructing workflow
// definitions in tests. Example:
//
//	w := NewWorkflowBuilder("wf-1").
//		Node("analyze", "dynamic", nil).
//		Node("report", "dynamic", nil).
//		Edge("analyze", "report").
//		Entry("analyze").Finish("report").
//		Build()
//
// Chain only the parts you need; checkpoints are enabled by default.
type WorkflowBuilder struct {
	w core.WorkflowDefinition
}

// NewWorkflowBuilder creates a builder for a workflow with the given id.
func NewWorkflowBuilder(id string) *WorkflowBuilder {
	return &WorkflowBuilder{w: core.WorkflowDefinition{
		ID:      id,
		Version: 1,
		Config:  core.ExecutionConfig{EnableCheckpoints: true},
	}}
}

// Node appends an agent spec (chainable).
func (b *WorkflowBuilder) Node(id, agentType string, config map[string]any) *WorkflowBuilder {
	b.w.Agents = append(b.w.Agents, core.AgentSpec{ID: id, Type: agentType, Config: config})
	return b
}

// Gate appends a human-approval node (chainable).
func (b *WorkflowBuilder) Gate(id string, config map[string]any) *WorkflowBuilder {
	return b.Node(id, "human_approval", config)
}

// Edge appends an unconditional connection (chainable).
func (b *WorkflowBuilder) Edge(from, to string) *WorkflowBuilder {
	b.w.Connections = append(b.w.Connections, core.Connection{From: from, To: to})
	return b
}

// ConditionalEdge appends a connection guarded by a JMESPath condition (chainable).
func (b *WorkflowBuilder) ConditionalEdge(from, to, condition string) *WorkflowBuilder {
	b.w.Connections = append(b.w.Connections, core.Connection{From: from, To: to, Condition: condition})
	return b
}

// MappedEdge appends a connection with a data mapping (chainable).
func (b *WorkflowBuilder) MappedEdge(from, to, sourceKey, targetKey string) *WorkflowBuilder {
	b.w.Connections = append(b.w.Connections, core.Connection{
		From: from, To: to,
		DataMapping: &core.DataMapping{SourceKey: sourceKey, TargetKey: targetKey},
	})
	return b
}

// Entry sets the entry point (chainable).
func (b *WorkflowBuilder) Entry(node string) *WorkflowBuilder { b.w.EntryPoint = node; return b }

// Finish sets the finish point (chainable).
func (b *WorkflowBuilder) Finish(node string) *WorkflowBuilder { b.w.FinishPoint = node; return b }

// Timeout sets the execution timeout (chainable).
func (b *WorkflowBuilder) Timeout(d time.Duration) *WorkflowBuilder { b.w.Config.Timeout = d; return b }

// Retries sets the per-node retry limit (chainable).
func (b *WorkflowBuilder) Retries(n int) *WorkflowBuilder { b.w.Config.MaxRetries = n; return b }

// Checkpoints toggles checkpoint recording (chainable).
func (b *WorkflowBuilder) Checkpoints(enabled bool) *WorkflowBuilder {
	b.w.Config.EnableCheckpoints = enabled
	return b
}

// Build returns the assembled workflow definition.
func (b *WorkflowBuilder) Build() *core.WorkflowDefinition { return b.w.Clone() }

// TwoNodeWorkflow returns a minimal analyze→report workflow with checkpoints
// enabled.
func TwoNodeWorkflow(id string) *core.WorkflowDefinition {
	return NewWorkflowBuilder(id).
		Node("analyze", "dynamic", nil).
		Node("report", "dynamic", nil).
		Edge("analyze", "report").
		Entry("analyze").Finish("report").
		Build()
}

// GateWorkflow returns an analyze→approve→report workflow where the middle
// node is a human-approval gate.
func GateWorkflow(id string) *core.WorkflowDefinition {
	return NewWorkflowBuilder(id).
		Node("analyze", "dynamic", nil).
		Gate("approve", map[string]any{"requestedBy": "compliance"}).
		Node("report", "dynamic", nil).
		Edge("analyze", "approve").
		Edge("approve", "report").
		Entry("analyze").Finish("report").
		Build()
}
