package core

import (
	"fmt"
	"time"
)

// AgentSpec declares one node of a workflow graph: a stable node id, the
// agent type used to instantiate it, and an opaque configuration blob
// interpreted by the agent implementation (prompt template, model settings,
// required inputs, approval flags, ...).
type AgentSpec struct {
	ID     string         `json:"id"`
	Type   string         `json:"type"`
	Config map[string]any `json:"config,omitempty"`
}

// DataMapping narrows the inputs passed along a connection: the value stored
// under SourceKey in the execution state is handed to the target node under
// TargetKey. Absent mapping means the full state is passed through.
type DataMapping struct {
	SourceKey string `json:"sourceKey"`
	TargetKey string `json:"targetKey"`
}

// Connection is a directed edge between two agent specs. Condition, when
// non-empty, is a JMESPath expression over the execution state; the edge is
// only taken when it evaluates truthy. Conditional edges are tried before
// unconditional ones, first match in declaration order wins.
type Connection struct {
	From        string       `json:"from"`
	To          string       `json:"to"`
	DataMapping *DataMapping `json:"dataMapping,omitempty"`
	Condition   string       `json:"condition,omitempty"`
}

// ExecutionConfig carries per-workflow runtime limits.
type ExecutionConfig struct {
	// Timeout bounds the cumulative running time of one execution. Paused
	// time awaiting a human decision is excluded from the budget. Zero means
	// no timeout.
	Timeout time.Duration `json:"timeout"`
	// MaxRetries bounds per-node retry attempts after a failed execute call.
	MaxRetries int `json:"maxRetries"`
	// EnableCheckpoints toggles checkpoint recording during traversal.
	EnableCheckpoints bool `json:"enableCheckpoints"`
}

// WorkflowDefinition is the static, versioned definition of a workflow
// graph. Definitions are immutable per version: an execution captures a
// snapshot at start, so later edits never affect in-flight runs.
type WorkflowDefinition struct {
	ID          string          `json:"id"`
	Agents      []AgentSpec     `json:"agents"`
	Connections []Connection    `json:"connections"`
	EntryPoint  string          `json:"entryPoint"`
	FinishPoint string          `json:"finishPoint"`
	Config      ExecutionConfig `json:"executionConfig"`
	Version     int             `json:"version"`
}

// Agent returns the spec for the given node id.
func (w *WorkflowDefinition) Agent(id string) (AgentSpec, bool) {
	for _, spec := range w.Agents {
		if spec.ID == id {
			return spec, true
		}
	}
	return AgentSpec{}, false
}

// Outbound returns the connections leaving the given node in declaration order.
func (w *WorkflowDefinition) Outbound(node string) []Connection {
	var out []Connection
	for _, c := range w.Connections {
		if c.From == node {
			out = append(out, c)
		}
	}
	return out
}

// Inbound returns the connections entering the given node in declaration order.
func (w *WorkflowDefinition) Inbound(node string) []Connection {
	var in []Connection
	for _, c := range w.Connections {
		if c.To == node {
			in = append(in, c)
		}
	}
	return in
}

// Validate checks structural integrity: entry and finish points exist and
// every connection references declared agents.
func (w *WorkflowDefinition) Validate() error {
	if len(w.Agents) == 0 {
		return fmt.Errorf("workflow %s has no agents", w.ID)
	}
	if _, ok := w.Agent(w.EntryPoint); !ok {
		return fmt.Errorf("workflow %s entry point %q is not a declared agent", w.ID, w.EntryPoint)
	}
	if _, ok := w.Agent(w.FinishPoint); !ok {
		return fmt.Errorf("workflow %s finish point %q is not a declared agent", w.ID, w.FinishPoint)
	}
	for _, c := range w.Connections {
		if _, ok := w.Agent(c.From); !ok {
			return fmt.Errorf("workflow %s connection references unknown agent %q", w.ID, c.From)
		}
		if _, ok := w.Agent(c.To); !ok {
			return fmt.Errorf("workflow %s connection references unknown agent %q", w.ID, c.To)
		}
	}
	return nil
}

// Clone returns a deep copy safe for independent mutation.
func (w *WorkflowDefinition) Clone() *WorkflowDefinition {
	clone := &WorkflowDefinition{
		ID:          w.ID,
		Agents:      make([]AgentSpec, len(w.Agents)),
		Connections: make([]Connection, len(w.Connections)),
		EntryPoint:  w.EntryPoint,
		FinishPoint: w.FinishPoint,
		Config:      w.Config,
		Version:     w.Version,
	}
	for i, spec := range w.Agents {
		cfg := make(map[string]any, len(spec.Config))
		for k, v := range spec.Config {
			cfg[k] = v
		}
		clone.Agents[i] = AgentSpec{ID: spec.ID, Type: spec.Type, Config: cfg}
	}
	for i, c := range w.Connections {
		cc := Connection{From: c.From, To: c.To, Condition: c.Condition}
		if c.DataMapping != nil {
			dm := *c.DataMapping
			cc.DataMapping = &dm
		}
		clone.Connections[i] = cc
	}
	return clone
}
