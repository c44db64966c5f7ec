// Package agent defines the unit of work executed at each node of a
// workflow graph. Every agent, static or dynamic, implements the capability
// contract {Initialize, ValidateInputs, Execute, FormatOutput, Confidence};
// Process sequences those capabilities into one invocation and attaches
// result metadata. Dynamic is the metadata-driven variant that delegates to
// an external completion service, and Registry maps agent-type identifiers
// to constructors, falling back to Dynamic for unregistered types.
package agent
