package node

import (
	"fmt"
	"maps"
	"slices"

	"github.com/signadot/nodegraph/debug"
	"github.com/signadot/nodegraph/event"
	"github.com/signadot/nodegraph/txn"
)

// Baseline is the value a modified key held when it was last saved.
type Baseline struct {
	Value   any
	Present bool
}

// Matches reports whether v restores the baseline.
func (b Baseline) Matches(v any) bool {
	if !b.Present {
		return normalize(v) == nil
	}
	return sameValue(b.Value, v)
}

// IsModified reports whether n is self modified, has a modified value or
// has a contributing modified child.
func (n *Node) IsModified() bool {
	return n.modified
}

func (n *Node) IsSelfModified() bool {
	return n.selfModified
}

func (n *Node) IsModifiedByValue() bool {
	return len(n.modifiedValues) != 0
}

func (n *Node) IsModifiedByChild() bool {
	return n.modifiedChildren.len() != 0
}

// ModifiedKeys returns the keys whose value differs from their baseline,
// sorted.
func (n *Node) ModifiedKeys() []string {
	return slices.Sorted(maps.Keys(n.modifiedValues))
}

// Baseline returns the saved value of a modified key.
func (n *Node) Baseline(key string) (Baseline, bool) {
	b, ok := n.modifiedValues[key]
	return b, ok
}

// ModifiedChildren returns the children contributing to n's modified
// state.
func (n *Node) ModifiedChildren() []*Node {
	return n.modifiedChildren.list()
}

// ModifyingKeys returns the declared modifying keys, or nil when every
// key is modifying.
func (n *Node) ModifyingKeys() []string {
	if n.modifying == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(n.modifying))
}

func (n *Node) isModifying(key string) bool {
	if n.modifying == nil {
		return true
	}
	_, ok := n.modifying[key]
	return ok
}

// trackBaseline records the first departure of key from its saved value
// and forgets it once the saved value is restored.
func (n *Node) trackBaseline(j *journal, key string, old, v any) {
	b, ok := n.modifiedValues[key]
	if !ok {
		if !sameValue(old, v) {
			n.putBaseline(j, key, Baseline{Value: old, Present: old != nil})
		}
		return
	}
	if b.Matches(v) {
		n.dropBaseline(j, key)
	}
}

// admits reports whether modified child c counts toward n.
func (n *Node) admits(c *Node) bool {
	if !n.collection {
		return true
	}
	owner := n.Parent()
	if owner == nil {
		return true
	}
	if f := owner.filters[n.parentKey]; f != nil {
		return f(c)
	}
	return true
}

// refreshFlag recomputes the cached modified flag and fires MODIFIED or
// UNMODIFIED when it flips.
func (n *Node) refreshFlag(tx *txn.Tx, j *journal) bool {
	now := n.ownDirty()
	if now == n.modified {
		return false
	}
	n.putFlag(j, now)
	if debug.Modified() {
		debug.Logf("%s: modified=%t\n", n, now)
	}
	typ := event.Unmodified
	if now {
		typ = event.Modified
	}
	n.fire(tx, event.Event{Type: typ})
	return true
}

func (n *Node) ownDirty() bool {
	return n.selfModified || len(n.modifiedValues) != 0 || n.modifiedChildren.len() != 0
}

// dirty reports whether n or anything below it holds unsaved changes,
// including changes the final phase has not folded into the cached flags
// yet.
func (n *Node) dirty() bool {
	if n.ownDirty() {
		return true
	}
	for _, c := range n.Children() {
		if c.dirty() {
			return true
		}
	}
	return false
}

// propagate updates the contribution of n and each ancestor to the next
// one up, refreshing flags on the way to the root.  With announce, an
// ancestor whose flag flips also gets NODE_CHANGED.
func (n *Node) propagate(tx *txn.Tx, j *journal, announce bool) {
	child := n
	for p := n.Parent(); p != nil; child, p = p, p.Parent() {
		if child.modified && p.admits(child) {
			p.addChildMod(j, child)
		} else {
			p.removeChildMod(j, child)
		}
		if p.refreshFlag(tx, j) && announce {
			p.fire(tx, event.Event{Type: event.NodeChanged})
		}
	}
}

type recomputeKey struct {
	n *Node
}

// recomputeOp runs in the final phase, at most once per node and commit.
// Unless quiet it ends with NODE_CHANGED.  A quiet recompute sends
// NODE_CHANGED only from nodes whose flag flips.
type recomputeOp struct {
	journal
	n     *Node
	quiet bool
}

func newRecompute(n *Node, quiet bool) *recomputeOp {
	return &recomputeOp{n: n, quiet: quiet}
}

func (o *recomputeOp) MergeKey() any {
	return recomputeKey{o.n}
}

func (o *recomputeOp) Merge(later txn.Op) bool {
	l, ok := later.(*recomputeOp)
	if !ok {
		return false
	}
	o.quiet = o.quiet && l.quiet
	return true
}

func (o *recomputeOp) Apply(tx *txn.Tx) error {
	if o.n.refreshFlag(tx, &o.journal) && o.quiet {
		o.n.fire(tx, event.Event{Type: event.NodeChanged})
	}
	o.n.propagate(tx, &o.journal, o.quiet)
	if !o.quiet {
		o.n.fire(tx, event.Event{Type: event.NodeChanged})
	}
	return nil
}

// SetModified submits setting the self modified flag.  Clearing it also
// forgets every modified value of n and its descendants, making the
// current state the new baseline.
func (n *Node) SetModified(tx *txn.Tx, v bool) error {
	if tx == nil {
		return ErrNoTransaction
	}
	return tx.Submit(&selfModOp{n: n, v: v})
}

type selfModOp struct {
	journal
	n *Node
	v bool
}

func (o *selfModOp) Apply(tx *txn.Tx) error {
	if o.n.applySelfModified(tx, &o.journal, o.v) {
		return tx.SubmitFinal(newRecompute(o.n, false))
	}
	return nil
}

func (n *Node) applySelfModified(tx *txn.Tx, j *journal, v bool) bool {
	n.putSelf(j, v)
	if !v {
		for _, k := range n.ModifiedKeys() {
			n.dropBaseline(j, k)
		}
		for _, c := range n.Children() {
			if c.dirty() {
				c.applySelfModified(tx, j, false)
				tx.SubmitFinal(newRecompute(c, false))
			}
		}
		for _, c := range n.modifiedChildren.list() {
			n.removeChildMod(j, c)
		}
	}
	return n.refreshFlag(tx, j)
}

// AddModifyingKeys declares keys whose changes mark n modified.  The first
// declaration switches n from every key modifying to only declared keys
// modifying; modified values of other keys are forgotten.  Descendants
// are sent PARENT_CHANGED.
func (n *Node) AddModifyingKeys(tx *txn.Tx, keys ...string) error {
	if tx == nil {
		return ErrNoTransaction
	}
	for _, k := range keys {
		if k == "" {
			return fmt.Errorf("%w: modifying key on %s", ErrNullKey, n)
		}
	}
	return tx.Submit(&modifyingOp{n: n, keys: slices.Clone(keys)})
}

type modifyingOp struct {
	journal
	n    *Node
	keys []string
}

func (o *modifyingOp) Apply(tx *txn.Tx) error {
	n := o.n
	next := maps.Clone(n.modifying)
	if next == nil {
		next = map[string]struct{}{}
	}
	grew := n.modifying == nil
	for _, k := range o.keys {
		if _, ok := next[k]; !ok {
			next[k] = struct{}{}
			grew = true
		}
	}
	if !grew {
		return nil
	}
	n.putModifying(&o.journal, next)
	for _, k := range n.ModifiedKeys() {
		if _, ok := next[k]; !ok {
			n.dropBaseline(&o.journal, k)
		}
	}
	n.visitDescendants(func(d *Node) {
		d.fire(tx, event.Event{Type: event.ParentChanged})
	})
	return tx.SubmitFinal(newRecompute(n, false))
}

// SetSetModifyFilter installs f as the filter of the collection stored at
// key name.  A nil f admits every modified member.
func (n *Node) SetSetModifyFilter(tx *txn.Tx, name string, f ModifyFilter) error {
	if tx == nil {
		return ErrNoTransaction
	}
	if name == "" {
		return fmt.Errorf("%w: filter on %s", ErrNullKey, n)
	}
	return tx.Submit(&filterOp{n: n, name: name, f: f})
}

// ModifyFilter returns the filter installed for collection name.
func (n *Node) ModifyFilter(name string) ModifyFilter {
	return n.filters[name]
}

type filterOp struct {
	journal
	n    *Node
	name string
	f    ModifyFilter
}

func (o *filterOp) Apply(tx *txn.Tx) error {
	o.n.putFilter(&o.journal, o.name, o.f)
	c, ok := o.n.values[o.name].(*Node)
	if !ok {
		return nil
	}
	for _, m := range c.Children() {
		if err := tx.SubmitFinal(newRecompute(m, true)); err != nil {
			return err
		}
	}
	return nil
}
