package node

import (
	"fmt"

	"github.com/signadot/nodegraph/debug"
	"github.com/signadot/nodegraph/event"
	"github.com/signadot/nodegraph/txn"
)

type valueKey struct {
	n   *Node
	key string
}

// pendingValue is the value key will hold once tx commits as far as the
// ops already submitted to tx are concerned.
func (n *Node) pendingValue(tx *txn.Tx, key string) any {
	if tx != nil {
		if op, ok := tx.Lookup(valueKey{n, key}).(*setOp); ok {
			return op.new
		}
	}
	return n.values[key]
}

// Set submits a change of key to v.  A nil v removes the key.  Setting a
// key to the value it will already hold is a no-op and submits nothing.
func (n *Node) Set(tx *txn.Tx, key string, v any) error {
	if tx == nil {
		return ErrNoTransaction
	}
	if key == "" {
		return fmt.Errorf("%w: set on %s", ErrNullKey, n)
	}
	v = normalize(v)
	cur := n.pendingValue(tx, key)
	if sameValue(cur, v) {
		return nil
	}
	if cur != nil && n.isReadOnly(key) {
		return fmt.Errorf("%w: %q on %s", ErrReadOnly, key, n)
	}
	if c, ok := v.(*Node); ok {
		if err := checkAttach(c, n); err != nil {
			return err
		}
	}
	op := &setOp{n: n, key: key, old: n.values[key], new: v}
	if err := tx.Submit(op); err != nil {
		return err
	}
	return tx.SubmitFinal(newRecompute(n, false))
}

// Remove submits the removal of key.
func (n *Node) Remove(tx *txn.Tx, key string) error {
	return n.Set(tx, key, nil)
}

// ComputeIfAbsent returns the value key holds or will hold in tx.  If
// there is none, fn is called and its result set.
func (n *Node) ComputeIfAbsent(tx *txn.Tx, key string, fn func() any) (any, error) {
	if key == "" {
		return nil, fmt.Errorf("%w: compute on %s", ErrNullKey, n)
	}
	if v := n.pendingValue(tx, key); v != nil {
		return v, nil
	}
	v := normalize(fn())
	if v == nil {
		return nil, nil
	}
	if err := n.Set(tx, key, v); err != nil {
		return nil, err
	}
	return v, nil
}

// checkAttach rejects making c a value of p when c is p or one of its
// ancestors.
func checkAttach(c, p *Node) error {
	for a := p; a != nil; a = a.Parent() {
		if a == c {
			return fmt.Errorf("%w: %s under %s", ErrCircularReference, c, p)
		}
	}
	return nil
}

// setOp changes one key.  Later sets of the same key in an open
// transaction merge into it.
type setOp struct {
	journal
	n   *Node
	key string
	old any
	new any
}

func (o *setOp) MergeKey() any {
	return valueKey{o.n, o.key}
}

func (o *setOp) Merge(later txn.Op) bool {
	l, ok := later.(*setOp)
	if !ok {
		return false
	}
	o.new = l.new
	return true
}

func (o *setOp) Apply(tx *txn.Tx) error {
	n := o.n
	if sameValue(n.values[o.key], o.new) {
		return nil
	}
	if debug.Txn() {
		debug.Logf("set %s %q: %v -> %v\n", n, o.key, o.old, o.new)
	}
	if c, ok := o.new.(*Node); ok {
		if err := checkAttach(c, n); err != nil {
			return err
		}
		if p := c.Parent(); p != nil {
			p.applySet(tx, &o.journal, c.parentKey, nil)
		}
	}
	n.applySet(tx, &o.journal, o.key, o.new)
	return nil
}

// applySet writes v at key and keeps the parent links, the modified
// children and the baselines consistent with it.
func (n *Node) applySet(tx *txn.Tx, j *journal, key string, v any) {
	old := n.values[key]
	oc, _ := old.(*Node)
	nc, _ := v.(*Node)
	if oc != nil {
		oc.fire(tx, event.Event{Type: event.Removed, Key: key})
		oc.putParent(j, nil, "")
		n.removeChildMod(j, oc)
	}
	n.putValue(j, key, v)
	if nc != nil {
		nc.putParent(j, n, key)
		if nc.modified && n.admits(nc) {
			n.addChildMod(j, nc)
		}
		nc.fire(tx, event.Event{Type: event.Added, Key: key})
	}
	if n.isModifying(key) {
		n.trackBaseline(j, key, old, v)
	}
	n.fire(tx, event.Event{Type: event.ValueChanged, Key: key, Old: old, New: v})
	if oc != nil {
		n.fire(tx, event.Event{Type: event.ChildRemoved, Key: key, Old: oc})
	}
	if nc != nil {
		n.fire(tx, event.Event{Type: event.ChildAdded, Key: key, New: nc})
	}
	tx.SubmitFinal(newRecompute(n, false))
}
