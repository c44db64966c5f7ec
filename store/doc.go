// Package store provides persistence for workflow definitions and execution
// documents. The in-memory store backs tests and ephemeral demos; the badger
// subpackage persists both to an embedded key-value database.
package store
