// Package core contains the shared domain model of FlowMesh: workflow
// definitions, the execution entity with its status state machine,
// checkpoint/intervention/metrics records, the error taxonomy and the
// persistence contract. Higher-level packages (agent, engine, store) depend
// on core; core depends on nothing above the standard library.
package core
