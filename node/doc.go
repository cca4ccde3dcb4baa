// Package node provides an observable tree of keyed values with dirty
// tracking.
//
// # Values and Children
//
// A [Node] maps string keys to values.  A value of type *Node makes that
// node a child: it gets a parent link and the key it is stored under.  A
// node has at most one parent; storing it elsewhere moves it.  Storing a
// node under itself or one of its descendants fails with
// [ErrCircularReference].
//
// # Transactions
//
// Every mutation takes a [txn.Tx] and is applied when the outermost
// transaction commits.  Writes to one key within a transaction collapse,
// so setting a key and setting it back produces no value event at all.
// A failed commit reverts every change exactly, including modified state.
//
// # Modified State
//
// A node is modified when it was explicitly marked, when a modifying key
// holds something other than its saved value, or when a child is
// modified.  SetModified(tx, false) saves: it clears n and everything
// below it.  By default every key is modifying; AddModifyingKeys narrows
// that.  Collections ([Set]) can have a filter installed on their owner
// deciding which modified members count.
//
// # Events
//
// Events are delivered to the source node and then to each ancestor, so
// a listener on a root sees everything below it.  Within a commit, value
// events for a node precede its MODIFIED/UNMODIFIED, which precedes its
// NODE_CHANGED.  Value changes and saves of a node produce one
// NODE_CHANGED per commit.  Resource writes add one per key written and
// Refresh adds one more.
//
// # Identity
//
// Nodes declaring primary or natural keys compare with [Node.Equal] by
// kind and key values.  Nodes without declarations are equal only to
// themselves.
package node
