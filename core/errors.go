package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies engine errors so callers can branch on failure class
// without string matching.
type ErrorKind int

const (
	// KindValidation indicates bad or missing agent inputs. Always fatal to
	// the node and therefore to the execution.
	KindValidation ErrorKind = iota
	// KindCompletion indicates the external completion service failed.
	KindCompletion
	// KindInvalidState indicates an operation attempted from an incompatible
	// execution state (e.g. resuming a running execution).
	KindInvalidState
	// KindTimeout indicates the execution exceeded its configured timeout.
	KindTimeout
	// KindNotImplemented indicates an agent variant did not supply Execute.
	KindNotImplemented
	// KindNotFound indicates a workflow or execution could not be loaded.
	KindNotFound
)

// String returns the canonical name of the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindCompletion:
		return "completion"
	case KindInvalidState:
		return "invalid_state"
	case KindTimeout:
		return "timeout"
	case KindNotImplemented:
		return "not_implemented"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Error is the typed error used across the agent/engine boundary. Op names
// the operation that failed; Err carries an optional wrapped cause.
type Error struct {
	Kind    ErrorKind
	Op      string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error { return e.Err }

// NewValidationError reports missing required inputs for an agent.
func NewValidationError(agentID string, missing []string) *Error {
	return &Error{
		Kind:    KindValidation,
		Op:      "validate_inputs",
		Message: fmt.Sprintf("agent %s missing required inputs: %s", agentID, strings.Join(missing, ", ")),
	}
}

// NewCompletionError wraps a failure from the completion-service collaborator.
func NewCompletionError(op string, err error) *Error {
	return &Error{Kind: KindCompletion, Op: op, Message: "completion service call failed", Err: err}
}

// NewInvalidStateError reports an operation attempted from an incompatible state.
func NewInvalidStateError(op, message string) *Error {
	return &Error{Kind: KindInvalidState, Op: op, Message: message}
}

// NewTimeoutError reports an execution exceeding its timeout budget.
func NewTimeoutError(executionID string, message string) *Error {
	return &Error{Kind: KindTimeout, Op: "execution", Message: fmt.Sprintf("execution %s %s", executionID, message)}
}

// NewNotImplementedError reports an agent variant without an Execute implementation.
func NewNotImplementedError(agentType string) *Error {
	return &Error{Kind: KindNotImplemented, Op: "execute", Message: fmt.Sprintf("agent type %s does not implement execute", agentType)}
}

// NewNotFoundError reports a missing workflow or execution document.
func NewNotFoundError(resource, id string) *Error {
	return &Error{Kind: KindNotFound, Op: "load", Message: fmt.Sprintf("%s %s not found", resource, id)}
}

func kindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool { k, ok := kindOf(err); return ok && k == KindValidation }

// IsCompletion reports whether err is a completion-service error.
func IsCompletion(err error) bool { k, ok := kindOf(err); return ok && k == KindCompletion }

// IsInvalidState reports whether err is an invalid-state error.
func IsInvalidState(err error) bool { k, ok := kindOf(err); return ok && k == KindInvalidState }

// IsTimeout reports whether err is a timeout error.
func IsTimeout(err error) bool { k, ok := kindOf(err); return ok && k == KindTimeout }

// IsNotImplemented reports whether err is a not-implemented error.
func IsNotImplemented(err error) bool { k, ok := kindOf(err); return ok && k == KindNotImplemented }

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool { k, ok := kindOf(err); return ok && k == KindNotFound }
