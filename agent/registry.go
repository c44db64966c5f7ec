package agent

import (
	"fmt"
	"sync"

	"github.com/flowmesh/flowmesh/completion"
	"github.com/flowmesh/flowmesh/core"
	"github.com/flowmesh/flowmesh/logging"
)

// Constructor builds a statically-typed agent from its spec.
type Constructor func(spec core.AgentSpec) (Agent, error)

// RegistryOptions configure a Registry.
type RegistryOptions struct {
	// Logger defaults to NoOpLogger when nil.
	Logger logging.Logger
}

// Registry maps agent-type identifiers to constructors and instantiates
// agents from workflow metadata. Unregistered types fall back to the generic
// Dynamic agent, whose instances are cached by node id so later nodes in the
// same execution can rely on accumulated memory. Safe for concurrent use.
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
	instances    map[string]Agent
	completer    completion.Completer
	logger       logging.Logger
}

// NewRegistry constructs a Registry backed by the given completion service.
func NewRegistry(completer completion.Completer, optFns ...func(o *RegistryOptions)) *Registry {
	opts := RegistryOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Registry{
		constructors: make(map[string]Constructor),
		instances:    make(map[string]Agent),
		completer:    completer,
		logger:       opts.Logger,
	}
}

// Register makes a statically-typed agent constructor available. Last
// registration for a type wins; duplicates are not an error.
func (r *Registry) Register(agentType string, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constructors[agentType] = ctor
}

// Registered reports whether a static constructor exists for the type.
func (r *Registry) Registered(agentType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.constructors[agentType]
	return ok
}

// Create instantiates an agent for the spec. Statically registered types are
// constructed fresh; everything else gets a cached Dynamic instance seeded
// with its own memory.
func (r *Registry) Create(spec core.AgentSpec) (Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ctor, ok := r.constructors[spec.Type]; ok {
		a, err := ctor(spec)
		if err != nil {
			return nil, fmt.Errorf("constructing agent %s (type %s): %w", spec.ID, spec.Type, err)
		}
		return a, nil
	}

	if cached, ok := r.instances[spec.ID]; ok {
		return cached, nil
	}
	dyn := NewDynamicFromSpec(spec, r.completer, r.logger)
	r.instances[spec.ID] = dyn
	r.logger.Debug("created dynamic agent", "agent_id", spec.ID, "agent_type", spec.Type)
	return dyn, nil
}

// Instance returns the cached agent instance for the node id, if any.
func (r *Registry) Instance(id string) (Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.instances[id]
	return a, ok
}

// Clear drops all cached instances. Intended for the end of an execution,
// not mid-run: agents cache inter-step memory that later nodes depend on.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instances = make(map[string]Agent)
}

// Scope returns a registry sharing this registry's constructors and
// completion service but with an empty instance cache. The engine creates
// one scope per execution so concurrent runs never share agent memory.
func (r *Registry) Scope() *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ctors := make(map[string]Constructor, len(r.constructors))
	for k, v := range r.constructors {
		ctors[k] = v
	}
	return &Registry{
		constructors: ctors,
		instances:    make(map[string]Agent),
		completer:    r.completer,
		logger:       r.logger,
	}
}
