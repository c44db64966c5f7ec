package agent

import (
	"context"
	"sync"

	"github.com/flowmesh/flowmesh/core"
	"github.com/flowmesh/flowmesh/logging"
	"github.com/flowmesh/flowmesh/memory"
)

// BaseOptions configure a Base agent.
type BaseOptions struct {
	// RequiredInputs lists the input keys ValidateInputs checks for.
	RequiredInputs []string
	// Memory is the working memory owned by this instance. A fresh one is
	// allocated when nil.
	Memory *memory.AgentMemory
	// Logger defaults to NoOpLogger when nil.
	Logger logging.Logger
}

// Base bundles the default capability implementations shared by all agent
// variants. Embed it in concrete implementations and supply Execute to
// satisfy the Agent interface. Exported methods are goroutine-safe.
type Base struct {
	id             string
	agentType      string
	requiredInputs []string
	mem            *memory.AgentMemory
	logger         logging.Logger

	mu          sync.Mutex
	initialized bool
}

// NewBase constructs a Base bound to a node id and agent type.
func NewBase(id, agentType string, optFns ...func(o *BaseOptions)) Base {
	opts := BaseOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Memory == nil {
		opts.Memory = memory.New()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return Base{
		id:             id,
		agentType:      agentType,
		requiredInputs: opts.RequiredInputs,
		mem:            opts.Memory,
		logger:         opts.Logger,
	}
}

// ID returns the node id this instance is bound to.
func (b *Base) ID() string { return b.id }

// Type returns the agent-type identifier.
func (b *Base) Type() string { return b.agentType }

// Memory returns the working memory owned by this instance.
func (b *Base) Memory() *memory.AgentMemory { return b.mem }

// Logger returns the configured logger.
func (b *Base) Logger() logging.Logger { return b.logger }

// RequiredInputs returns the declared required input keys.
func (b *Base) RequiredInputs() []string {
	out := make([]string, len(b.requiredInputs))
	copy(out, b.requiredInputs)
	return out
}

// Initialize marks the agent ready. Idempotent; only the first call does work.
func (b *Base) Initialize(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.initialized {
		return nil
	}
	b.initialized = true
	b.logger.Debug("agent initialized", "agent_id", b.id, "agent_type", b.agentType)
	return nil
}

// Initialized reports whether Initialize has run.
func (b *Base) Initialized() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.initialized
}

// ValidateInputs checks that every required key is present and non-nil.
func (b *Base) ValidateInputs(inputs map[string]any) error {
	var missing []string
	for _, key := range b.requiredInputs {
		if v, ok := inputs[key]; !ok || v == nil {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return core.NewValidationError(b.id, missing)
	}
	return nil
}

// Execute fails with a not-implemented error; variants must supply their own.
func (b *Base) Execute(_ context.Context, _ map[string]any) (map[string]any, error) {
	return nil, core.NewNotImplementedError(b.agentType)
}

// FormatOutput is the identity transformation.
func (b *Base) FormatOutput(raw map[string]any) map[string]any { return raw }

// Confidence returns the result's own confidence field when present,
// otherwise 0.8.
func (b *Base) Confidence(result map[string]any, _ map[string]any) float64 {
	if result != nil {
		if c, ok := toFloat(result["confidence"]); ok {
			return c
		}
	}
	return 0.8
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
