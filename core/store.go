package core

import "context"

// Store is the persistence collaborator consumed by the engine. The engine
// calls SaveExecution after every state transition and after every
// checkpoint or metric update that must survive a process restart. A save
// failure after a successful in-memory transition is surfaced to the caller;
// the in-memory state is not rolled back.
type Store interface {
	LoadWorkflow(ctx context.Context, workflowID string) (*WorkflowDefinition, error)
	LoadExecution(ctx context.Context, executionID string) (*Execution, error)
	SaveExecution(ctx context.Context, execution *Execution) error
}
