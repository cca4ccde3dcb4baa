package node

import (
	"fmt"
	"maps"

	"github.com/signadot/nodegraph/event"
	"github.com/signadot/nodegraph/txn"
)

// Resources are auxiliary values attached to a node.  They never affect
// the modified state and changing one fires only NODE_CHANGED.

func (n *Node) GetResource(key string, def any) (any, error) {
	if key == "" {
		return nil, fmt.Errorf("%w: resource on %s", ErrNullKey, n)
	}
	if v, ok := n.resources[key]; ok {
		return v, nil
	}
	return def, nil
}

func (n *Node) Resources() map[string]any {
	return maps.Clone(n.resources)
}

// PutResource submits setting resource key to v; nil removes it.
func (n *Node) PutResource(tx *txn.Tx, key string, v any) error {
	if tx == nil {
		return ErrNoTransaction
	}
	if key == "" {
		return fmt.Errorf("%w: resource on %s", ErrNullKey, n)
	}
	return tx.Submit(&resourceOp{n: n, key: key, v: v})
}

type resourceKey struct {
	n   *Node
	key string
}

type resourceOp struct {
	journal
	n   *Node
	key string
	v   any
}

func (o *resourceOp) MergeKey() any {
	return resourceKey{o.n, o.key}
}

func (o *resourceOp) Merge(later txn.Op) bool {
	l, ok := later.(*resourceOp)
	if !ok {
		return false
	}
	o.v = l.v
	return true
}

func (o *resourceOp) Apply(tx *txn.Tx) error {
	if sameValue(o.n.resources[o.key], o.v) {
		return nil
	}
	o.n.putResource(&o.journal, o.key, o.v)
	o.n.fire(tx, event.Event{Type: event.NodeChanged})
	return nil
}

// Refresh submits a NODE_CHANGED for n without changing anything.
func (n *Node) Refresh(tx *txn.Tx) error {
	if tx == nil {
		return ErrNoTransaction
	}
	return tx.Submit(&refreshOp{n: n})
}

type refreshKey struct {
	n *Node
}

type refreshOp struct {
	n *Node
}

func (o *refreshOp) MergeKey() any {
	return refreshKey{o.n}
}

func (o *refreshOp) Merge(later txn.Op) bool {
	_, ok := later.(*refreshOp)
	return ok
}

func (o *refreshOp) Apply(tx *txn.Tx) error {
	o.n.fire(tx, event.Event{Type: event.NodeChanged})
	return nil
}

func (o *refreshOp) Undo() {}
