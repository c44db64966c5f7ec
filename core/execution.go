package core

import (
	"sync"
	"time"

	"dario.cat/mergo"
	"github.com/google/uuid"
)

// Status is the lifecycle state of an execution.
type Status string

const (
	// StatusPending is the initial state before Start.
	StatusPending Status = "pending"
	// StatusRunning means the traversal loop is active.
	StatusRunning Status = "running"
	// StatusPaused means the execution awaits an external decision.
	StatusPaused Status = "paused"
	// StatusCompleted is the successful terminal state.
	StatusCompleted Status = "completed"
	// StatusFailed is the terminal state after a fatal node error or timeout.
	StatusFailed Status = "failed"
	// StatusCancelled is the terminal state after a cooperative cancel.
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// validTransitions encodes the execution state machine:
// pending → running → {completed|failed|cancelled}, running ⇄ paused,
// and any non-terminal state → failed|cancelled.
var validTransitions = map[Status][]Status{
	StatusPending: {StatusRunning, StatusFailed, StatusCancelled},
	StatusRunning: {StatusPaused, StatusCompleted, StatusFailed, StatusCancelled},
	StatusPaused:  {StatusRunning, StatusFailed, StatusCancelled},
}

// Metrics are monotonically increasing per-execution counters. No decrement
// operation exists.
type Metrics struct {
	TotalNodes     int `json:"totalNodes"`
	CompletedNodes int `json:"completedNodes"`
	FailedNodes    int `json:"failedNodes"`
	AgentCalls     int `json:"agentCalls"`
	APICalls       int `json:"apiCalls"`
}

// Checkpoint is an immutable, append-only progress record. Ordering reflects
// graph traversal order; only the owning state machine writes checkpoints.
type Checkpoint struct {
	Timestamp time.Time      `json:"timestamp"`
	Node      string         `json:"node"`
	Message   string         `json:"message,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Intervention records one human-approval gate. An execution paused for a
// gate has exactly one open (CompletedAt unset) intervention.
type Intervention struct {
	ID          string     `json:"interventionId"`
	RequestedAt time.Time  `json:"requestedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	RequestedBy string     `json:"requestedBy"`
	ApprovedBy  string     `json:"approvedBy,omitempty"`
	Decision    string     `json:"decision,omitempty"`
	Comments    string     `json:"comments,omitempty"`
}

// Open reports whether the intervention still awaits a decision.
func (iv *Intervention) Open() bool { return iv.CompletedAt == nil }

// Summary is the condensed execution view exposed by the status surface.
type Summary struct {
	ExecutionID string     `json:"executionId"`
	WorkflowID  string     `json:"workflowId"`
	Status      Status     `json:"status"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Duration    string     `json:"duration,omitempty"`
	InitiatedBy string     `json:"initiatedBy,omitempty"`
	Metrics     Metrics    `json:"metrics"`
}

// Execution is one run of a WorkflowDefinition. The engine driving it is the
// sole writer of status, timing, checkpoints and metrics; agents only ever
// contribute results that the engine merges into CurrentState. All exported
// methods are safe for concurrent use.
type Execution struct {
	ID             string              `json:"executionId"`
	WorkflowID     string              `json:"workflowId"`
	Status         Status              `json:"status"`
	InitialState   map[string]any      `json:"initialState,omitempty"`
	CurrentState   map[string]any      `json:"currentState,omitempty"`
	FinalResult    map[string]any      `json:"finalResult,omitempty"`
	Checkpoints    []Checkpoint        `json:"checkpoints"`
	Metrics        Metrics             `json:"metrics"`
	Interventions  []Intervention      `json:"humanInterventions"`
	ConfigSnapshot *WorkflowDefinition `json:"configSnapshot,omitempty"`
	CurrentNode    string              `json:"currentNode,omitempty"`
	InitiatedBy    string              `json:"initiatedBy,omitempty"`
	ErrorMessage   string              `json:"errorMessage,omitempty"`
	StartedAt      *time.Time          `json:"startedAt,omitempty"`
	PausedAt       *time.Time          `json:"pausedAt,omitempty"`
	CompletedAt    *time.Time          `json:"completedAt,omitempty"`
	Duration       time.Duration       `json:"duration,omitempty"`
	// PausedTotal accumulates time spent paused. It is excluded from the
	// workflow timeout budget.
	PausedTotal time.Duration `json:"pausedTotal,omitempty"`

	mu sync.RWMutex `json:"-"`
}

// NewExecution creates a pending execution for the given workflow.
func NewExecution(workflowID string, initialState map[string]any, initiatedBy string) *Execution {
	current := make(map[string]any, len(initialState))
	for k, v := range initialState {
		current[k] = v
	}
	return &Execution{
		ID:            uuid.NewString(),
		WorkflowID:    workflowID,
		Status:        StatusPending,
		InitialState:  initialState,
		CurrentState:  current,
		Checkpoints:   []Checkpoint{},
		Interventions: []Intervention{},
		InitiatedBy:   initiatedBy,
	}
}

func (e *Execution) transitionLocked(next Status, now time.Time) error {
	if e.Status.Terminal() {
		return NewInvalidStateError("transition", "execution "+e.ID+" is already "+string(e.Status))
	}
	allowed := false
	for _, s := range validTransitions[e.Status] {
		if s == next {
			allowed = true
			break
		}
	}
	if !allowed {
		return NewInvalidStateError("transition", "cannot transition from "+string(e.Status)+" to "+string(next))
	}

	switch next {
	case StatusRunning:
		if e.Status == StatusPending {
			t := now
			e.StartedAt = &t
		}
		if e.Status == StatusPaused && e.PausedAt != nil {
			e.PausedTotal += now.Sub(*e.PausedAt)
			e.PausedAt = nil
		}
	case StatusPaused:
		t := now
		e.PausedAt = &t
	case StatusCompleted, StatusFailed, StatusCancelled:
		t := now
		e.CompletedAt = &t
		if e.Status == StatusPaused && e.PausedAt != nil {
			e.PausedTotal += now.Sub(*e.PausedAt)
			e.PausedAt = nil
		}
		// Duration is set exactly once, at the first terminal transition.
		if e.StartedAt != nil {
			e.Duration = now.Sub(*e.StartedAt)
		}
	}
	e.Status = next
	return nil
}

// Start transitions pending → running and stamps StartedAt.
func (e *Execution) Start(now time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Status != StatusPending {
		return NewInvalidStateError("start", "execution "+e.ID+" is "+string(e.Status)+", expected pending")
	}
	return e.transitionLocked(StatusRunning, now)
}

// Pause transitions running → paused.
func (e *Execution) Pause(now time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.transitionLocked(StatusPaused, now)
}

// Resume transitions paused → running. It fails while an intervention is
// still open: the decision must land before the execution may proceed.
func (e *Execution) Resume(now time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Status != StatusPaused {
		return NewInvalidStateError("resume", "execution "+e.ID+" is "+string(e.Status)+", expected paused")
	}
	for i := range e.Interventions {
		if e.Interventions[i].Open() {
			return NewInvalidStateError("resume", "intervention "+e.Interventions[i].ID+" is still awaiting a decision")
		}
	}
	return e.transitionLocked(StatusRunning, now)
}

// Complete transitions running → completed and records the final result.
func (e *Execution) Complete(result map[string]any, now time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Status != StatusRunning {
		return NewInvalidStateError("complete", "execution "+e.ID+" is "+string(e.Status)+", expected running")
	}
	if err := e.transitionLocked(StatusCompleted, now); err != nil {
		return err
	}
	e.FinalResult = result
	return nil
}

// Fail transitions any non-terminal state → failed and records the error.
func (e *Execution) Fail(message string, now time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.transitionLocked(StatusFailed, now); err != nil {
		return err
	}
	e.ErrorMessage = message
	return nil
}

// Cancel transitions any non-terminal state → cancelled.
func (e *Execution) Cancel(now time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.transitionLocked(StatusCancelled, now)
}

// AppendCheckpoint appends a progress record. Rejected once terminal so
// racing writers detect the lost update instead of silently dropping it.
func (e *Execution) AppendCheckpoint(cp Checkpoint) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Status.Terminal() {
		return NewInvalidStateError("checkpoint", "execution "+e.ID+" is already "+string(e.Status))
	}
	e.Checkpoints = append(e.Checkpoints, cp)
	return nil
}

// UpdateMetrics applies fn to the metrics counters under the entity lock.
// Rejected once terminal.
func (e *Execution) UpdateMetrics(fn func(m *Metrics)) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Status.Terminal() {
		return NewInvalidStateError("metrics", "execution "+e.ID+" is already "+string(e.Status))
	}
	fn(&e.Metrics)
	return nil
}

// MergeState deep-merges the delta into CurrentState. Later writes win per
// key; slices are appended.
func (e *Execution) MergeState(delta map[string]any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Status.Terminal() {
		return NewInvalidStateError("state", "execution "+e.ID+" is already "+string(e.Status))
	}
	if e.CurrentState == nil {
		e.CurrentState = make(map[string]any, len(delta))
	}
	return mergo.Merge(&e.CurrentState, delta, mergo.WithOverride, mergo.WithAppendSlice)
}

// StateSnapshot returns a shallow copy of the current state.
func (e *Execution) StateSnapshot() map[string]any {
	e.mu.RLock()
	defer e.mu.RUnlock()
	snap := make(map[string]any, len(e.CurrentState))
	for k, v := range e.CurrentState {
		snap[k] = v
	}
	return snap
}

// OpenIntervention appends a new undecided intervention. At most one may be
// open at a time.
func (e *Execution) OpenIntervention(requestedBy string, now time.Time) (Intervention, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Status.Terminal() {
		return Intervention{}, NewInvalidStateError("intervention", "execution "+e.ID+" is already "+string(e.Status))
	}
	for i := range e.Interventions {
		if e.Interventions[i].Open() {
			return Intervention{}, NewInvalidStateError("intervention", "execution "+e.ID+" already has an open intervention")
		}
	}
	iv := Intervention{ID: uuid.NewString(), RequestedAt: now, RequestedBy: requestedBy}
	e.Interventions = append(e.Interventions, iv)
	return iv, nil
}

// CompleteIntervention records the decision for the matching open
// intervention. Only valid while the execution is paused.
func (e *Execution) CompleteIntervention(interventionID, decision, comments, approvedBy string, now time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Status != StatusPaused {
		return NewInvalidStateError("decision", "execution "+e.ID+" is "+string(e.Status)+", expected paused")
	}
	for i := range e.Interventions {
		if e.Interventions[i].ID != interventionID {
			continue
		}
		if !e.Interventions[i].Open() {
			return NewInvalidStateError("decision", "intervention "+interventionID+" is already decided")
		}
		t := now
		e.Interventions[i].CompletedAt = &t
		e.Interventions[i].Decision = decision
		e.Interventions[i].Comments = comments
		e.Interventions[i].ApprovedBy = approvedBy
		return nil
	}
	return NewInvalidStateError("decision", "no intervention "+interventionID+" for execution "+e.ID)
}

// OpenInterventionRecord returns the currently open intervention, if any.
func (e *Execution) OpenInterventionRecord() (Intervention, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for i := range e.Interventions {
		if e.Interventions[i].Open() {
			return e.Interventions[i], true
		}
	}
	return Intervention{}, false
}

// LastIntervention returns the most recently opened intervention, if any.
func (e *Execution) LastIntervention() (Intervention, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if len(e.Interventions) == 0 {
		return Intervention{}, false
	}
	return e.Interventions[len(e.Interventions)-1], true
}

// RunningElapsed returns the cumulative time spent in the running state up
// to now. Paused time is excluded, so workflow timeouts do not count time
// spent awaiting a human decision.
func (e *Execution) RunningElapsed(now time.Time) time.Duration {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.StartedAt == nil {
		return 0
	}
	elapsed := now.Sub(*e.StartedAt) - e.PausedTotal
	if e.PausedAt != nil {
		elapsed -= now.Sub(*e.PausedAt)
	}
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// CurrentStatus returns the status under the entity lock.
func (e *Execution) CurrentStatus() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.Status
}

// SetCurrentNode records the traversal position for pause/resume.
func (e *Execution) SetCurrentNode(node string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.CurrentNode = node
}

// SetConfigSnapshot pins the workflow version this execution runs against.
func (e *Execution) SetConfigSnapshot(w *WorkflowDefinition) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ConfigSnapshot = w.Clone()
}

// Summary returns the condensed status view.
func (e *Execution) Summary() Summary {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s := Summary{
		ExecutionID: e.ID,
		WorkflowID:  e.WorkflowID,
		Status:      e.Status,
		StartedAt:   e.StartedAt,
		CompletedAt: e.CompletedAt,
		InitiatedBy: e.InitiatedBy,
		Metrics:     e.Metrics,
	}
	if e.Duration > 0 {
		s.Duration = e.Duration.String()
	}
	return s
}

// Clone returns a deep copy of the execution safe for independent mutation.
func (e *Execution) Clone() *Execution {
	e.mu.RLock()
	defer e.mu.RUnlock()
	clone := &Execution{
		ID:           e.ID,
		WorkflowID:   e.WorkflowID,
		Status:       e.Status,
		CurrentNode:  e.CurrentNode,
		InitiatedBy:  e.InitiatedBy,
		ErrorMessage: e.ErrorMessage,
		Metrics:      e.Metrics,
		Duration:     e.Duration,
		PausedTotal:  e.PausedTotal,
	}
	clone.InitialState = copyMap(e.InitialState)
	clone.CurrentState = copyMap(e.CurrentState)
	clone.FinalResult = copyMap(e.FinalResult)
	clone.Checkpoints = make([]Checkpoint, len(e.Checkpoints))
	copy(clone.Checkpoints, e.Checkpoints)
	clone.Interventions = make([]Intervention, len(e.Interventions))
	copy(clone.Interventions, e.Interventions)
	if e.ConfigSnapshot != nil {
		clone.ConfigSnapshot = e.ConfigSnapshot.Clone()
	}
	clone.StartedAt = copyTime(e.StartedAt)
	clone.PausedAt = copyTime(e.PausedAt)
	clone.CompletedAt = copyTime(e.CompletedAt)
	return clone
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
