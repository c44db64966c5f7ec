// Package memory provides per-agent-instance working memory: an append-only
// conversation history, keyed step data and persistent context. Each
// AgentMemory is owned exclusively by one agent instance within one
// execution and is discarded with it; nothing here outlives the run unless
// the engine explicitly checkpoints a digest of it.
package memory
