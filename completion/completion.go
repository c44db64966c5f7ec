// Package completion defines the narrow contract FlowMesh holds against an
// external AI completion service: a single Complete call taking a prompt and
// per-call options and returning text. Provider adapters live in the
// subpackages; Mock provides a deterministic in-memory implementation for
// tests and examples.
package completion

import (
	"context"
	"fmt"
	"sync"
)

// Image references one piece of visual context attached to a prompt. Either
// URL or base64 Data is set; MediaType qualifies Data (e.g. "image/png").
type Image struct {
	URL       string `json:"url,omitempty"`
	MediaType string `json:"mediaType,omitempty"`
	Data      string `json:"data,omitempty"`
}

// Options are per-call generation parameters. Zero values fall back to the
// adapter's configured defaults.
type Options struct {
	Model           string  `json:"model,omitempty"`
	Temperature     float64 `json:"temperature,omitempty"`
	MaxTokens       int64   `json:"maxTokens,omitempty"`
	ReasoningEffort string  `json:"reasoningEffort,omitempty"`
	Images          []Image `json:"images,omitempty"`
}

// Completer is the completion-service collaborator consumed by dynamic
// agents. Implementations must respect context cancellation.
type Completer interface {
	Complete(ctx context.Context, prompt string, opts Options) (string, error)
}

// Mock is a lightweight in-memory Completer useful for tests & examples.
// Canned responses are matched by exact prompt; unmatched prompts get a
// generated echo response. FailWith forces every call to fail.
type Mock struct {
	mu        sync.Mutex
	responses map[string]string
	defaults  string
	failWith  error
	calls     []string
}

// NewMock constructs an empty Mock completer.
func NewMock() *Mock {
	return &Mock{responses: make(map[string]string)}
}

// AddResponse registers a deterministic canned completion for a prompt.
func (m *Mock) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// SetDefaultResponse sets the response returned for unmatched prompts.
func (m *Mock) SetDefaultResponse(response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaults = response
}

// FailWith makes every subsequent call return err. Pass nil to clear.
func (m *Mock) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = err
}

// Calls returns the prompts received so far.
func (m *Mock) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

// Complete implements Completer.
func (m *Mock) Complete(ctx context.Context, prompt string, _ Options) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, prompt)
	if m.failWith != nil {
		return "", m.failWith
	}
	if resp, ok := m.responses[prompt]; ok {
		return resp, nil
	}
	if m.defaults != "" {
		return m.defaults, nil
	}
	return fmt.Sprintf("Mock response to: %s", prompt), nil
}
