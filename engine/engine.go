package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/flowmesh/flowmesh/agent"
	"github.com/flowmesh/flowmesh/completion"
	"github.com/flowmesh/flowmesh/core"
	"github.com/flowmesh/flowmesh/logging"
)

// Options holds dependency + configuration overrides passed to New().
type Options struct {
	// Registry supplies agent constructors. When nil, a registry with only
	// the dynamic fallback is created from Completer.
	Registry *agent.Registry
	// Completer is the completion service handed to dynamic agents. Only
	// used when Registry is nil.
	Completer completion.Completer
	// Logger defaults to NoOpLogger when nil.
	Logger logging.Logger
	// Now is the clock used for all timestamps. Defaults to time.Now;
	// injectable for deterministic tests.
	Now func() time.Time
	// RetryBaseDelay and RetryMaxDelay bound the exponential backoff between
	// per-node retry attempts.
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
}

// run tracks one live execution: its cancellation and pause flags and the
// per-execution registry scope holding cached agent instances.
type run struct {
	exec      *core.Execution
	registry  *agent.Registry
	cancelled atomic.Bool
	pauseReq  atomic.Bool
	// stepMu serializes traversal steps so no two goroutines ever drive the
	// same execution concurrently.
	stepMu sync.Mutex
}

// Engine is the execution state machine orchestrating workflow runs. It is
// the exclusive owner of each execution's status, timing, checkpoint and
// metric fields; agents only contribute results. Public methods are safe for
// concurrent use and distinct executions may run concurrently.
type Engine struct {
	store    core.Store
	registry *agent.Registry
	logger   logging.Logger
	now      func() time.Time

	retryBase time.Duration
	retryMax  time.Duration

	mu     sync.Mutex
	active map[string]*run
}

// New constructs an Engine over the given persistence collaborator.
func New(store core.Store, optFns ...func(o *Options)) *Engine {
	opts := Options{
		Now:            time.Now,
		RetryBaseDelay: 100 * time.Millisecond,
		RetryMaxDelay:  2 * time.Second,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Registry == nil {
		opts.Registry = agent.NewRegistry(opts.Completer, func(o *agent.RegistryOptions) {
			o.Logger = opts.Logger
		})
	}
	return &Engine{
		store:     store,
		registry:  opts.Registry,
		logger:    opts.Logger,
		now:       opts.Now,
		retryBase: opts.RetryBaseDelay,
		retryMax:  opts.RetryMaxDelay,
		active:    make(map[string]*run),
	}
}

// Registry exposes the engine's agent registry for static registrations.
func (e *Engine) Registry() *agent.Registry { return e.registry }

// CreateExecution creates and persists a pending execution for the workflow.
func (e *Engine) CreateExecution(ctx context.Context, workflowID string, initialState map[string]any, initiatedBy string) (*core.Execution, error) {
	if _, err := e.store.LoadWorkflow(ctx, workflowID); err != nil {
		return nil, err
	}
	exec := core.NewExecution(workflowID, initialState, initiatedBy)
	if err := e.store.SaveExecution(ctx, exec); err != nil {
		return nil, err
	}
	return exec, nil
}

// Start transitions a pending execution to running and drives the traversal
// until it completes, fails, pauses for a human gate or is cancelled. The
// call blocks for the duration of the run; a recorded execution failure is
// not an error return. Fails with an invalid-state error if the execution
// is not pending or is already being driven.
func (e *Engine) Start(ctx context.Context, executionID string) error {
	exec, err := e.store.LoadExecution(ctx, executionID)
	if err != nil {
		return err
	}

	workflow, err := e.store.LoadWorkflow(ctx, exec.WorkflowID)
	if err != nil {
		return err
	}
	if err := workflow.Validate(); err != nil {
		return fmt.Errorf("invalid workflow %s: %w", workflow.ID, err)
	}

	rn, err := e.register(executionID, exec)
	if err != nil {
		return err
	}
	defer e.unregister(executionID)

	// Pin the workflow version so later edits never affect this run.
	exec.SetConfigSnapshot(workflow)
	if err := exec.UpdateMetrics(func(m *core.Metrics) { m.TotalNodes = len(workflow.Agents) }); err != nil {
		return err
	}
	if err := exec.Start(e.now()); err != nil {
		return err
	}
	if err := e.save(ctx, exec); err != nil {
		return err
	}

	e.logger.Info("execution started", "execution_id", exec.ID, "workflow_id", workflow.ID)
	return e.traverse(ctx, rn, workflow, workflow.EntryPoint, false)
}

// Resume transitions a paused execution back to running and continues the
// traversal from the recorded position. Resuming from a human gate requires
// the open intervention to have been decided first.
func (e *Engine) Resume(ctx context.Context, executionID string) error {
	exec, err := e.loadLive(ctx, executionID)
	if err != nil {
		return err
	}
	workflow := exec.ConfigSnapshot
	if workflow == nil {
		return core.NewInvalidStateError("resume", "execution "+executionID+" has no workflow snapshot")
	}

	rn, err := e.register(executionID, exec)
	if err != nil {
		return err
	}
	defer e.unregister(executionID)

	if err := exec.Resume(e.now()); err != nil {
		return err
	}
	if err := e.save(ctx, exec); err != nil {
		return err
	}

	node := exec.CurrentNode
	if node == "" {
		node = workflow.EntryPoint
	}
	e.logger.Info("execution resumed", "execution_id", exec.ID, "node", node)
	return e.traverse(ctx, rn, workflow, node, true)
}

// Pause requests a cooperative pause of a running execution. The traversal
// observes the request at the next node boundary; an in-flight agent call
// runs to completion first.
func (e *Engine) Pause(executionID string) error {
	e.mu.Lock()
	rn, ok := e.active[executionID]
	e.mu.Unlock()
	if !ok {
		return core.NewInvalidStateError("pause", "execution "+executionID+" is not running")
	}
	rn.pauseReq.Store(true)
	return nil
}

// Cancel cancels an execution. For a live run the flag is observed
// cooperatively between node steps: an agent call already dispatched to the
// completion service runs to completion before the cancellation lands. A
// pending or paused execution is cancelled immediately.
func (e *Engine) Cancel(ctx context.Context, executionID string) error {
	e.mu.Lock()
	rn, isActive := e.active[executionID]
	e.mu.Unlock()

	if isActive {
		rn.cancelled.Store(true)
		// A paused live run has no traversal loop to observe the flag.
		if rn.exec.CurrentStatus() == core.StatusPaused {
			if err := rn.exec.Cancel(e.now()); err != nil {
				return err
			}
			return e.save(ctx, rn.exec)
		}
		return nil
	}

	exec, err := e.store.LoadExecution(ctx, executionID)
	if err != nil {
		return err
	}
	if err := exec.Cancel(e.now()); err != nil {
		return err
	}
	return e.save(ctx, exec)
}

// SubmitDecision records a human decision for the matching open
// intervention. Only valid while the execution is paused for that gate. The
// execution stays paused until Resume is called.
func (e *Engine) SubmitDecision(ctx context.Context, executionID, interventionID, decision, comments, approvedBy string) error {
	exec, err := e.loadLive(ctx, executionID)
	if err != nil {
		return err
	}
	if err := exec.CompleteIntervention(interventionID, decision, comments, approvedBy, e.now()); err != nil {
		return err
	}
	e.logger.Info("intervention decided",
		"execution_id", executionID, "intervention_id", interventionID, "decision", decision, "approved_by", approvedBy)
	return e.save(ctx, exec)
}

// Summary returns the condensed status view for an execution.
func (e *Engine) Summary(ctx context.Context, executionID string) (core.Summary, error) {
	exec, err := e.loadLive(ctx, executionID)
	if err != nil {
		return core.Summary{}, err
	}
	return exec.Summary(), nil
}

// register records a live run, enforcing single ownership per execution.
// Each run gets a fresh registry scope, including on Resume: agent instance
// caches and their memory do not survive a pause, so nodes after a gate must
// read from the persisted execution state.
func (e *Engine) register(executionID string, exec *core.Execution) (*run, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.active[executionID]; exists {
		return nil, core.NewInvalidStateError("start", "execution "+executionID+" is already being driven")
	}
	rn := &run{exec: exec, registry: e.registry.Scope()}
	e.active[executionID] = rn
	return rn, nil
}

func (e *Engine) unregister(executionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.active, executionID)
}

// loadLive returns the in-memory execution for a live run, falling back to
// the store. The live entity is authoritative while a run is active.
func (e *Engine) loadLive(ctx context.Context, executionID string) (*core.Execution, error) {
	e.mu.Lock()
	rn, ok := e.active[executionID]
	e.mu.Unlock()
	if ok {
		return rn.exec, nil
	}
	return e.store.LoadExecution(ctx, executionID)
}

// save persists the execution. The in-memory state is not rolled back on
// failure; the caller must reconcile, typically by retrying the save.
func (e *Engine) save(ctx context.Context, exec *core.Execution) error {
	if err := e.store.SaveExecution(ctx, exec); err != nil {
		e.logger.Error("failed to persist execution", "execution_id", exec.ID, "error", err)
		return fmt.Errorf("saving execution %s: %w", exec.ID, err)
	}
	return nil
}
