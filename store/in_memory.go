package store

import (
	"context"
	"sync"

	"github.com/flowmesh/flowmesh/core"
)

// InMemoryStore is a volatile core.Store implementation keeping workflows and
// executions in process-local maps. It is safe for concurrent access and best
// suited for tests or ephemeral demo runs. Each returned document is cloned
// to prevent external mutation of internal state.
type InMemoryStore struct {
	mu         sync.RWMutex
	workflows  map[string]*core.WorkflowDefinition
	executions map[string]*core.Execution
}

// NewInMemoryStore constructs an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		workflows:  make(map[string]*core.WorkflowDefinition),
		executions: make(map[string]*core.Execution),
	}
}

// PutWorkflow stores a clone of the workflow definition, keyed by its id.
func (s *InMemoryStore) PutWorkflow(_ context.Context, workflow *core.WorkflowDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workflows[workflow.ID] = workflow.Clone()
	return nil
}

// LoadWorkflow returns a clone of the stored workflow definition.
func (s *InMemoryStore) LoadWorkflow(_ context.Context, workflowID string) (*core.WorkflowDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.workflows[workflowID]
	if !ok {
		return nil, core.NewNotFoundError("workflow", workflowID)
	}
	return w.Clone(), nil
}

// SaveExecution stores a clone of the execution snapshot.
func (s *InMemoryStore) SaveExecution(_ context.Context, execution *core.Execution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executions[execution.ID] = execution.Clone()
	return nil
}

// LoadExecution returns a clone of the stored execution.
func (s *InMemoryStore) LoadExecution(_ context.Context, executionID string) (*core.Execution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.executions[executionID]
	if !ok {
		return nil, core.NewNotFoundError("execution", executionID)
	}
	return e.Clone(), nil
}

// ListExecutions returns clones of all executions for the workflow id, or all
// executions when workflowID is empty.
func (s *InMemoryStore) ListExecutions(_ context.Context, workflowID string) ([]*core.Execution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*core.Execution
	for _, e := range s.executions {
		if workflowID == "" || e.WorkflowID == workflowID {
			out = append(out, e.Clone())
		}
	}
	return out, nil
}
