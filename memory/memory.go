package memory

import (
	"sync"
	"time"
)

// Interaction is one entry of the conversation history.
type Interaction struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Step      string    `json:"step,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Metadata tracks bookkeeping about a memory instance.
type Metadata struct {
	CreatedAt         time.Time `json:"createdAt"`
	LastUpdated       time.Time `json:"lastUpdated"`
	TotalInteractions int       `json:"totalInteractions"`
}

// AgentMemory is the mutable working state of a single agent instance.
// Conversation history is append-only; step data is last-write-wins per key.
// Safe for concurrent access, though in practice only the owning agent
// touches it.
type AgentMemory struct {
	mu                sync.RWMutex
	history           []Interaction
	stepData          map[string]any
	persistentContext map[string]any
	meta              Metadata
}

// New creates an empty AgentMemory.
func New() *AgentMemory {
	now := time.Now()
	return &AgentMemory{
		stepData:          make(map[string]any),
		persistentContext: make(map[string]any),
		meta:              Metadata{CreatedAt: now, LastUpdated: now},
	}
}

// AddInteraction appends a conversation entry and bumps the interaction count.
func (m *AgentMemory) AddInteraction(role, content, step string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	m.history = append(m.history, Interaction{Role: role, Content: content, Step: step, Timestamp: now})
	m.meta.TotalInteractions++
	m.meta.LastUpdated = now
}

// History returns a defensive copy of the conversation history.
func (m *AgentMemory) History() []Interaction {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Interaction, len(m.history))
	copy(out, m.history)
	return out
}

// RecentHistory returns up to n most recent interactions.
func (m *AgentMemory) RecentHistory(n int) []Interaction {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if n <= 0 || n > len(m.history) {
		n = len(m.history)
	}
	out := make([]Interaction, n)
	copy(out, m.history[len(m.history)-n:])
	return out
}

// SetStepData stores a value under key. Last write wins.
func (m *AgentMemory) SetStepData(key string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stepData[key] = value
	m.meta.LastUpdated = time.Now()
}

// StepData returns the value stored under key.
func (m *AgentMemory) StepData(key string) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.stepData[key]
	return v, ok
}

// StepDataSnapshot returns a shallow copy of all step data.
func (m *AgentMemory) StepDataSnapshot() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]any, len(m.stepData))
	for k, v := range m.stepData {
		out[k] = v
	}
	return out
}

// SetContext stores a persistent context value.
func (m *AgentMemory) SetContext(key string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.persistentContext[key] = value
	m.meta.LastUpdated = time.Now()
}

// Context returns the persistent context value under key.
func (m *AgentMemory) Context(key string) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.persistentContext[key]
	return v, ok
}

// Meta returns a copy of the memory metadata.
func (m *AgentMemory) Meta() Metadata {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.meta
}
