// Package txn provides the unit of work that node mutations are submitted
// into.
//
// # Usage
//
//	c := txn.New(nil)
//	err := txn.Run(c, func(tx *txn.Tx) error {
//	    return n.Set(tx, "name", "value")
//	})
//
// # Protocol
//
//  1. Begin opens a transaction; Begin while one is open joins it and
//     returns the same handle.
//  2. Submit queues ops.  Mergeable ops with equal merge keys collapse
//     while the transaction is open, which is how several writes to one
//     key net out to a single change.
//  3. SubmitFinal queues ops for the final phase, deduplicated by merge
//     key.  Node recomputation of modified flags runs there.
//  4. Commit on the outermost handle applies everything in order.  Ops
//     buffer their events with Emit; the buffer is flushed only after all
//     ops succeed.
//
// # Lifecycle Events
//
// The coordinator is itself an event source.  The outermost Commit fires
// COMMIT_BEGIN before applying anything, then either the flushed node
// events followed by COMMIT_SUCCESS, or COMMIT_FAILURE, and finally
// COMMIT_END.
//
// # Failure
//
// When an op fails, every op started so far is undone in strict reverse
// order and no buffered event is delivered, so a failed commit leaves no
// observable trace except the lifecycle events.
package txn
