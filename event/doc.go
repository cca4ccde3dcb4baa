// Package event defines the events produced by nodes and transaction
// coordinators, and the per-source listener registry that delivers them.
//
// # Event Types
//
// Node events:
//
//   - VALUE_CHANGED: a value key changed (Key, Old, New)
//   - CHILD_ADDED, CHILD_REMOVED: a node valued key gained or lost a child
//   - ADDED, REMOVED: the source node was attached to or detached from a holder
//   - MODIFIED, UNMODIFIED: the aggregate modified flag flipped
//   - NODE_CHANGED: something about the node changed in this transaction
//   - PARENT_CHANGED: an ancestor's modifying key set changed
//
// Lifecycle events, produced only by the outermost commit of a
// transaction:
//
//   - COMMIT_BEGIN, COMMIT_SUCCESS, COMMIT_FAILURE, COMMIT_END
//
// # Identity
//
// Two events are Equal when source, type and key match; payloads are not
// compared.
//
// # Registries
//
// A Registry holds handlers per type plus handlers for all types.
// Dispatch works from a snapshot so handlers may register and unregister
// during delivery.
package event
