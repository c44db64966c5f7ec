package agent

import (
	"context"
	"time"

	"github.com/flowmesh/flowmesh/logging"
)

// Agent is the capability contract every workflow node implements.
//
// Execute is the only method a variant must supply; the Base type provides
// working defaults for everything else. Agents may only write into their own
// memory and return results. They never touch execution metadata: the engine
// is the sole writer of checkpoints, metrics and status.
type Agent interface {
	// ID returns the node id this instance is bound to.
	ID() string

	// Type returns the agent-type identifier from the workflow definition.
	Type() string

	// Initialize performs idempotent one-time setup. Process invokes it
	// lazily before first use.
	Initialize(ctx context.Context) error

	// ValidateInputs fails with a validation error naming missing required
	// keys, derived from the agent's declared required inputs.
	ValidateInputs(inputs map[string]any) error

	// Execute performs the unit of work and returns the raw result.
	Execute(ctx context.Context, inputs map[string]any) (map[string]any, error)

	// FormatOutput shapes the raw result for consumers. Identity by default.
	FormatOutput(raw map[string]any) map[string]any

	// Confidence scores the result in [0,1]. Defaults to the result's own
	// confidence field, or 0.8 when absent.
	Confidence(result map[string]any, inputs map[string]any) float64
}

// APICallReporter is implemented by agents that call external services so
// the engine can account for API usage without inspecting agent internals.
type APICallReporter interface {
	// APICalls returns the number of external service calls made during the
	// most recent Execute.
	APICalls() int
}

// Result is the typed outcome of one Process invocation.
type Result struct {
	AgentID        string         `json:"agentId"`
	Output         map[string]any `json:"output"`
	Confidence     float64        `json:"confidence"`
	Timestamp      time.Time      `json:"timestamp"`
	ProcessingTime time.Duration  `json:"processingTime"`
	// APICalls counts external completion-service calls made by the agent
	// during this invocation.
	APICalls int `json:"apiCalls,omitempty"`
}

// Process is the public entry point for invoking an agent. It sequences
// initialize → validate → execute → format, scores confidence and attaches
// result metadata. Any error is logged and propagated unchanged to the
// caller: the engine, not the agent, decides whether the failure is fatal to
// the execution.
func Process(ctx context.Context, a Agent, inputs map[string]any, logger logging.Logger) (Result, error) {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	start := time.Now()

	if err := a.Initialize(ctx); err != nil {
		logger.Error("agent initialization failed", "agent_id", a.ID(), "error", err)
		return Result{}, err
	}
	if err := a.ValidateInputs(inputs); err != nil {
		logger.Error("agent input validation failed", "agent_id", a.ID(), "error", err)
		return Result{}, err
	}

	raw, err := a.Execute(ctx, inputs)
	if err != nil {
		logger.Error("agent execution failed", "agent_id", a.ID(), "error", err)
		return Result{}, err
	}

	output := a.FormatOutput(raw)
	confidence := clamp01(a.Confidence(output, inputs))

	result := Result{
		AgentID:        a.ID(),
		Output:         output,
		Confidence:     confidence,
		Timestamp:      time.Now(),
		ProcessingTime: time.Since(start),
	}
	if reporter, ok := a.(APICallReporter); ok {
		result.APICalls = reporter.APICalls()
	}

	logger.Debug("agent processed", "agent_id", a.ID(), "confidence", confidence, "duration", result.ProcessingTime)
	return result, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
