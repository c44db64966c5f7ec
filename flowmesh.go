// Package flowmesh provides a high-level façade over the workflow execution
// engine. Most applications interact with this package by:
//  1. Creating a FlowMesh via New() (optionally overriding the default
//     in-memory store, completion service and logger)
//  2. Registering workflow definitions and, optionally, statically-typed
//     agent constructors (unregistered types fall back to the generic
//     completion-backed dynamic agent)
//  3. Creating executions and driving them with Run / Resume, submitting
//     human decisions where a workflow pauses at an approval gate
//
// The façade delegates orchestration to engine.Engine while keeping setup
// and usage ergonomics concise. All defaults are safe for local development
// and testing; production deployments typically supply a durable store and a
// structured logger.
package flowmesh

import (
	"context"
	"time"

	"github.com/flowmesh/flowmesh/agent"
	"github.com/flowmesh/flowmesh/completion"
	"github.com/flowmesh/flowmesh/core"
	"github.com/flowmesh/flowmesh/engine"
	"github.com/flowmesh/flowmesh/logging"
	"github.com/flowmesh/flowmesh/store"
)

// WorkflowStore is the persistence surface the façade needs: the engine's
// read/save contract plus workflow registration.
type WorkflowStore interface {
	core.Store
	PutWorkflow(ctx context.Context, workflow *core.WorkflowDefinition) error
}

// Options configures the FlowMesh instance.
type Options struct {
	// Store persists workflows and executions. Defaults to the in-memory
	// implementation.
	Store WorkflowStore

	// Completer backs dynamic agents. Workflows whose nodes are all
	// statically registered (or approval gates) run without one.
	Completer completion.Completer

	// Logger defaults to NoOpLogger when nil.
	Logger logging.Logger

	// RetryBaseDelay and RetryMaxDelay bound the exponential backoff between
	// per-node retry attempts. Zero keeps the engine defaults.
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
}

// FlowMesh is the high-level façade aggregating the engine and its store.
type FlowMesh struct {
	opts   Options
	store  WorkflowStore
	engine *engine.Engine
}

// New creates a FlowMesh instance with optional overrides. Any unset
// collaborator is initialized with a safe in-process default.
func New(optFns ...func(o *Options)) *FlowMesh {
	opts := Options{
		Store:  store.NewInMemoryStore(),
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	eng := engine.New(opts.Store, func(o *engine.Options) {
		o.Completer = opts.Completer
		o.Logger = opts.Logger
		if opts.RetryBaseDelay > 0 {
			o.RetryBaseDelay = opts.RetryBaseDelay
		}
		if opts.RetryMaxDelay > 0 {
			o.RetryMaxDelay = opts.RetryMaxDelay
		}
	})

	return &FlowMesh{opts: opts, store: opts.Store, engine: eng}
}

// RegisterWorkflow validates and persists a workflow definition.
func (m *FlowMesh) RegisterWorkflow(ctx context.Context, workflow *core.WorkflowDefinition) error {
	if err := workflow.Validate(); err != nil {
		return err
	}
	return m.store.PutWorkflow(ctx, workflow)
}

// RegisterAgentType adds a statically-typed agent constructor. Nodes of this
// type are constructed through it instead of the dynamic fallback.
func (m *FlowMesh) RegisterAgentType(agentType string, ctor agent.Constructor) {
	m.engine.Registry().Register(agentType, ctor)
}

// CreateExecution creates a pending execution for the workflow.
func (m *FlowMesh) CreateExecution(ctx context.Context, workflowID string, initialState map[string]any, initiatedBy string) (*core.Execution, error) {
	return m.engine.CreateExecution(ctx, workflowID, initialState, initiatedBy)
}

// Run starts the execution and blocks until it completes, fails, pauses at a
// human gate or is cancelled. Inspect the returned summary (or Summary) to
// distinguish the outcomes; a recorded execution failure is not an error
// return.
func (m *FlowMesh) Run(ctx context.Context, executionID string) (core.Summary, error) {
	if err := m.engine.Start(ctx, executionID); err != nil {
		return core.Summary{}, err
	}
	return m.engine.Summary(ctx, executionID)
}

// Resume continues a paused execution from its recorded position. A gate
// pause requires the decision to have been submitted first.
func (m *FlowMesh) Resume(ctx context.Context, executionID string) (core.Summary, error) {
	if err := m.engine.Resume(ctx, executionID); err != nil {
		return core.Summary{}, err
	}
	return m.engine.Summary(ctx, executionID)
}

// Pause requests a cooperative pause of a running execution.
func (m *FlowMesh) Pause(executionID string) error {
	return m.engine.Pause(executionID)
}

// Cancel cancels a pending, running or paused execution.
func (m *FlowMesh) Cancel(ctx context.Context, executionID string) error {
	return m.engine.Cancel(ctx, executionID)
}

// SubmitDecision records a human decision for an open intervention. The
// execution stays paused until Resume is called.
func (m *FlowMesh) SubmitDecision(ctx context.Context, executionID, interventionID, decision, comments, approvedBy string) error {
	return m.engine.SubmitDecision(ctx, executionID, interventionID, decision, comments, approvedBy)
}

// Summary returns the condensed status view for an execution.
func (m *FlowMesh) Summary(ctx context.Context, executionID string) (core.Summary, error) {
	return m.engine.Summary(ctx, executionID)
}

// Execution returns the full execution document from the store.
func (m *FlowMesh) Execution(ctx context.Context, executionID string) (*core.Execution, error) {
	return m.store.LoadExecution(ctx, executionID)
}
