package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/flowmesh/flowmesh/agent"
	"github.com/flowmesh/flowmesh/core"
	"github.com/flowmesh/flowmesh/internal/util"
)

// errRunCancelled aborts the attempt loop when the run's cancel flag lands
// between attempts. The node is then neither completed nor failed; the
// traversal loop performs the cancelled transition.
var errRunCancelled = errors.New("run cancelled")

// traverse drives the execution from node until it reaches the finish
// point, fails, pauses or is cancelled. A recorded execution failure is not
// an error return; only persistence and invalid-state problems surface as
// errors. resumed is true for the first node after Resume, so a human gate
// consumes its decided intervention instead of opening a new one.
func (e *Engine) traverse(ctx context.Context, rn *run, workflow *core.WorkflowDefinition, node string, resumed bool) error {
	rn.stepMu.Lock()
	defer rn.stepMu.Unlock()

	exec := rn.exec
	var inbound *core.Connection
	if resumed {
		inbound = singleInbound(workflow, node)
	}

	for {
		if rn.cancelled.Load() {
			if err := exec.Cancel(e.now()); err != nil {
				return err
			}
			e.logger.Info("execution cancelled", "execution_id", exec.ID, "node", node)
			rn.registry.Clear()
			return e.save(ctx, exec)
		}
		if rn.pauseReq.Swap(false) {
			exec.SetCurrentNode(node)
			if err := exec.Pause(e.now()); err != nil {
				return err
			}
			e.logger.Info("execution paused on request", "execution_id", exec.ID, "node", node)
			return e.save(ctx, exec)
		}
		if timedOut, err := e.checkTimeout(ctx, exec, workflow, node); timedOut || err != nil {
			rn.registry.Clear()
			return err
		}

		spec, ok := workflow.Agent(node)
		if !ok {
			rn.registry.Clear()
			return e.failExecution(ctx, exec, node, fmt.Sprintf("workflow references unknown node %q", node))
		}
		exec.SetCurrentNode(node)

		if isGate(spec) {
			proceed, err := e.stepGate(ctx, exec, spec, resumed)
			if err != nil || !proceed {
				if !proceed && err == nil && exec.CurrentStatus().Terminal() {
					rn.registry.Clear()
				}
				return err
			}
		} else {
			fatal, err := e.stepNode(ctx, rn, exec, workflow, spec, inbound)
			if err != nil {
				return err
			}
			if fatal {
				rn.registry.Clear()
				return nil
			}
		}
		resumed = false

		// A cancel that landed during the step is honored before the
		// execution may complete or advance.
		if rn.cancelled.Load() {
			continue
		}

		if node == workflow.FinishPoint {
			if err := exec.Complete(exec.StateSnapshot(), e.now()); err != nil {
				return err
			}
			e.logger.Info("execution completed", "execution_id", exec.ID,
				"nodes", exec.Summary().Metrics.CompletedNodes, "duration", exec.Duration)
			rn.registry.Clear()
			return e.save(ctx, exec)
		}

		next, edge, found := e.nextNode(workflow, node, exec.StateSnapshot())
		if !found {
			rn.registry.Clear()
			return e.failExecution(ctx, exec, node, fmt.Sprintf("no outbound connection from node %q", node))
		}
		node, inbound = next, edge
	}
}

// stepNode runs one regular node with retries. It returns fatal=true when
// the node failure terminated the execution.
func (e *Engine) stepNode(ctx context.Context, rn *run, exec *core.Execution, workflow *core.WorkflowDefinition, spec core.AgentSpec, inbound *core.Connection) (fatal bool, err error) {
	inputs := resolveInputs(exec, inbound)

	result, procErr := e.invokeWithRetry(ctx, rn, exec, workflow, spec, inputs)
	if errors.Is(procErr, errRunCancelled) {
		// Not a node outcome: the traversal loop observes the cancel flag
		// and transitions the execution.
		return false, nil
	}
	if procErr != nil {
		if err := exec.UpdateMetrics(func(m *core.Metrics) { m.FailedNodes++ }); err != nil {
			return false, err
		}
		e.appendCheckpoint(exec, workflow, core.Checkpoint{
			Timestamp: e.now(),
			Node:      spec.ID,
			Message:   fmt.Sprintf("node %s failed: %v", spec.ID, procErr),
			Metadata:  map[string]any{"error": procErr.Error()},
		})
		return true, e.failExecutionErr(ctx, exec, procErr)
	}

	delta := map[string]any{outputKey(spec): result.Output}
	if mergeFlag(spec) {
		delta = result.Output
	}
	if err := exec.MergeState(delta); err != nil {
		return false, err
	}
	if err := exec.UpdateMetrics(func(m *core.Metrics) { m.CompletedNodes++ }); err != nil {
		return false, err
	}
	e.appendCheckpoint(exec, workflow, core.Checkpoint{
		Timestamp: e.now(),
		Node:      spec.ID,
		Message:   checkpointMessage(spec, result),
		Metadata: map[string]any{
			"confidence":       result.Confidence,
			"processingTimeMs": result.ProcessingTime.Milliseconds(),
			"apiCalls":         result.APICalls,
		},
	})
	return false, e.save(ctx, exec)
}

// stepGate pauses the execution at a human gate, or consumes the decided
// intervention when resuming through it. proceed is true when the gate has
// been approved and traversal should continue past it.
func (e *Engine) stepGate(ctx context.Context, exec *core.Execution, spec core.AgentSpec, resumed bool) (proceed bool, err error) {
	if !resumed {
		if err := exec.Pause(e.now()); err != nil {
			return false, err
		}
		iv, err := exec.OpenIntervention(requestedBy(spec, exec), e.now())
		if err != nil {
			return false, err
		}
		e.logger.Info("execution paused for human intervention",
			"execution_id", exec.ID, "node", spec.ID, "intervention_id", iv.ID)
		return false, e.save(ctx, exec)
	}

	iv, ok := exec.LastIntervention()
	if !ok || iv.Open() {
		return false, core.NewInvalidStateError("gate", "execution "+exec.ID+" resumed without a decided intervention")
	}
	if !approved(iv.Decision) {
		if err := exec.UpdateMetrics(func(m *core.Metrics) { m.FailedNodes++ }); err != nil {
			return false, err
		}
		msg := fmt.Sprintf("approval rejected by %s", iv.ApprovedBy)
		if iv.Comments != "" {
			msg += ": " + iv.Comments
		}
		return false, e.failExecution(ctx, exec, spec.ID, msg)
	}

	if err := exec.MergeState(map[string]any{outputKey(spec): map[string]any{
		"approved":   true,
		"approvedBy": iv.ApprovedBy,
		"decision":   iv.Decision,
		"comments":   iv.Comments,
	}}); err != nil {
		return false, err
	}
	if err := exec.UpdateMetrics(func(m *core.Metrics) { m.CompletedNodes++ }); err != nil {
		return false, err
	}
	if exec.ConfigSnapshot != nil {
		e.appendCheckpoint(exec, exec.ConfigSnapshot, core.Checkpoint{
			Timestamp: e.now(),
			Node:      spec.ID,
			Message:   fmt.Sprintf("approval granted by %s", iv.ApprovedBy),
			Metadata:  map[string]any{"interventionId": iv.ID},
		})
	}
	return true, e.save(ctx, exec)
}

// invokeWithRetry runs the agent for the spec with capped exponential
// backoff between attempts. Validation and not-implemented failures are not
// retryable. Every attempt counts against the agent-call and api-call
// metrics, including attempts that fail. A cancel flag observed between
// attempts aborts with errRunCancelled so the loop never reports a node it
// never ran.
func (e *Engine) invokeWithRetry(ctx context.Context, rn *run, exec *core.Execution, workflow *core.WorkflowDefinition, spec core.AgentSpec, inputs map[string]any) (agent.Result, error) {
	a, err := rn.registry.Create(spec)
	if err != nil {
		return agent.Result{}, err
	}

	var lastErr error
	for attempt := 0; attempt <= workflow.Config.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := e.backoff(ctx, attempt); err != nil {
				return agent.Result{}, lastErr
			}
			e.logger.Warn("retrying node", "execution_id", exec.ID, "node", spec.ID, "attempt", attempt)
		}
		if rn.cancelled.Load() {
			return agent.Result{}, errRunCancelled
		}

		callCtx, cancel := e.callContext(ctx, exec, workflow)
		result, procErr := agent.Process(callCtx, a, inputs, e.logger)
		cancel()

		apiCalls := result.APICalls
		if procErr != nil {
			if reporter, ok := a.(agent.APICallReporter); ok {
				apiCalls = reporter.APICalls()
			}
		}
		if err := exec.UpdateMetrics(func(m *core.Metrics) {
			m.AgentCalls++
			m.APICalls += apiCalls
		}); err != nil {
			return agent.Result{}, err
		}
		if procErr == nil {
			return result, nil
		}
		lastErr = procErr
		if core.IsValidation(procErr) || core.IsNotImplemented(procErr) {
			break
		}
	}
	return agent.Result{}, lastErr
}

// callContext bounds one agent call by the remaining timeout budget so an
// in-flight completion call observes the deadline as a best effort.
func (e *Engine) callContext(ctx context.Context, exec *core.Execution, workflow *core.WorkflowDefinition) (context.Context, context.CancelFunc) {
	timeout := workflow.Config.Timeout
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	remaining := timeout - exec.RunningElapsed(e.now())
	if remaining <= 0 {
		remaining = time.Millisecond
	}
	return context.WithTimeout(ctx, remaining)
}

// checkTimeout fails the execution when the running-time budget is spent.
func (e *Engine) checkTimeout(ctx context.Context, exec *core.Execution, workflow *core.WorkflowDefinition, node string) (bool, error) {
	timeout := workflow.Config.Timeout
	if timeout <= 0 || exec.RunningElapsed(e.now()) <= timeout {
		return false, nil
	}
	terr := core.NewTimeoutError(exec.ID, fmt.Sprintf("exceeded timeout of %s at node %s", timeout, node))
	return true, e.failExecutionErr(ctx, exec, terr)
}

// backoff sleeps for the capped exponential retry delay, honoring context
// cancellation.
func (e *Engine) backoff(ctx context.Context, attempt int) error {
	delay := e.retryBase << (attempt - 1)
	if delay > e.retryMax {
		delay = e.retryMax
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}

func (e *Engine) failExecution(ctx context.Context, exec *core.Execution, node, message string) error {
	e.logger.Error("execution failed", "execution_id", exec.ID, "node", node, "error", message)
	if err := exec.Fail(message, e.now()); err != nil {
		return err
	}
	return e.save(ctx, exec)
}

func (e *Engine) failExecutionErr(ctx context.Context, exec *core.Execution, cause error) error {
	e.logger.Error("execution failed", "execution_id", exec.ID, "error", cause)
	if err := exec.Fail(cause.Error(), e.now()); err != nil {
		return err
	}
	return e.save(ctx, exec)
}

// appendCheckpoint records a checkpoint when the workflow enables them.
// Append failures after a terminal transition indicate a racing writer and
// are logged rather than swallowed.
func (e *Engine) appendCheckpoint(exec *core.Execution, workflow *core.WorkflowDefinition, cp core.Checkpoint) {
	if !workflow.Config.EnableCheckpoints {
		return
	}
	if err := exec.AppendCheckpoint(cp); err != nil {
		e.logger.Warn("checkpoint rejected", "execution_id", exec.ID, "node", cp.Node, "error", err)
	}
}

// nextNode picks the outbound edge from node: conditional edges are tried
// first in declaration order (first truthy match wins), then the first
// unconditional edge serves as the fallback.
func (e *Engine) nextNode(workflow *core.WorkflowDefinition, node string, state map[string]any) (string, *core.Connection, bool) {
	outbound := workflow.Outbound(node)
	for i := range outbound {
		edge := outbound[i]
		if edge.Condition == "" {
			continue
		}
		match, err := evalCondition(edge.Condition, state)
		if err != nil {
			e.logger.Warn("condition evaluation failed, skipping edge",
				"node", node, "to", edge.To, "condition", edge.Condition, "error", err)
			continue
		}
		if match {
			return edge.To, &edge, true
		}
	}
	for i := range outbound {
		if outbound[i].Condition == "" {
			return outbound[i].To, &outbound[i], true
		}
	}
	return "", nil, false
}

// resolveInputs narrows the node's inputs through the inbound edge's data
// mapping; without a mapping the full state is passed through.
func resolveInputs(exec *core.Execution, inbound *core.Connection) map[string]any {
	state := exec.StateSnapshot()
	if inbound == nil || inbound.DataMapping == nil {
		return state
	}
	return map[string]any{inbound.DataMapping.TargetKey: state[inbound.DataMapping.SourceKey]}
}

// singleInbound returns the sole inbound edge of a node, used to recover
// the data mapping when resuming mid-graph.
func singleInbound(workflow *core.WorkflowDefinition, node string) *core.Connection {
	inbound := workflow.Inbound(node)
	if len(inbound) == 1 {
		return &inbound[0]
	}
	return nil
}

func isGate(spec core.AgentSpec) bool {
	if spec.Type == "human_approval" {
		return true
	}
	flag, ok := spec.Config["requiresApproval"].(bool)
	return ok && flag
}

func approved(decision string) bool {
	return decision == "approve" || decision == "approved"
}

func requestedBy(spec core.AgentSpec, exec *core.Execution) string {
	if s, ok := spec.Config["requestedBy"].(string); ok && s != "" {
		return s
	}
	if exec.InitiatedBy != "" {
		return exec.InitiatedBy
	}
	return "system"
}

func outputKey(spec core.AgentSpec) string {
	if s, ok := spec.Config["outputKey"].(string); ok && s != "" {
		return s
	}
	return spec.ID
}

func mergeFlag(spec core.AgentSpec) bool {
	flag, ok := spec.Config["mergeOutput"].(bool)
	return ok && flag
}

func checkpointMessage(spec core.AgentSpec, result agent.Result) string {
	if analysis, ok := result.Output["analysis"].(string); ok && analysis != "" {
		return util.Truncate(analysis, 120)
	}
	return fmt.Sprintf("node %s completed", spec.ID)
}
