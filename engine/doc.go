// Package engine contains the execution state machine: it walks a workflow
// graph, invokes agents through the registry, records checkpoints, enforces
// timeouts and retries, manages pause/resume for human intervention,
// aggregates metrics and drives the execution entity through its lifecycle.
//
// Each execution runs as one logical sequential task; nodes are invoked
// strictly one at a time because a node's inputs depend on its
// predecessor's output. Distinct executions are fully independent and may
// run concurrently: the engine scopes a fresh agent-instance cache per run
// so no agent memory leaks between executions.
package engine
