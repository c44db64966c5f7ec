package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKinds(t *testing.T) {
	cases := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"validation", NewValidationError("agent-1", []string{"data", "topic"}), IsValidation},
		{"completion", NewCompletionError("complete", errors.New("boom")), IsCompletion},
		{"invalid state", NewInvalidStateError("resume", "not paused"), IsInvalidState},
		{"timeout", NewTimeoutError("exec-1", "exceeded timeout"), IsTimeout},
		{"not implemented", NewNotImplementedError("custom"), IsNotImplemented},
		{"not found", NewNotFoundError("workflow", "wf-1"), IsNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.True(t, tc.check(tc.err))
			assert.NotEmpty(t, tc.err.Error())
		})
	}
}

func TestErrorKinds_NoFalsePositives(t *testing.T) {
	err := NewValidationError("agent-1", []string{"x"})
	assert.False(t, IsCompletion(err))
	assert.False(t, IsTimeout(err))
	assert.False(t, IsValidation(errors.New("plain")))
	assert.False(t, IsValidation(nil))
}

func TestError_WrappedCauseSurvives(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewCompletionError("complete", cause)

	wrapped := fmt.Errorf("node analyze: %w", err)
	assert.True(t, IsCompletion(wrapped))
	assert.ErrorIs(t, wrapped, cause)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestValidationError_NamesMissingInputs(t *testing.T) {
	err := NewValidationError("analyzer", []string{"data", "topic"})
	assert.Contains(t, err.Error(), "analyzer")
	assert.Contains(t, err.Error(), "data, topic")
}
