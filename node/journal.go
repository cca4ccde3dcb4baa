package node

import (
	"maps"
	"slices"
	"weak"
)

// journal records how to revert each primitive mutation made by an op.
// A nil journal records nothing; construction uses it.
type journal struct {
	undo []func()
}

func (j *journal) record(fn func()) {
	if j == nil {
		return
	}
	j.undo = append(j.undo, fn)
}

func (j *journal) Undo() {
	for i := len(j.undo) - 1; i >= 0; i-- {
		j.undo[i]()
	}
	j.undo = nil
}

// The put* and drop* helpers below are the only places node state
// changes after construction.

func (n *Node) putValue(j *journal, key string, v any) {
	old, had := n.values[key]
	switch {
	case v == nil && !had:
		return
	case v == nil:
		i := slices.Index(n.keys, key)
		n.keys = slices.Delete(n.keys, i, i+1)
		delete(n.values, key)
		j.record(func() {
			n.keys = slices.Insert(n.keys, i, key)
			n.values[key] = old
		})
	case had:
		n.values[key] = v
		j.record(func() { n.values[key] = old })
	default:
		n.keys = append(n.keys, key)
		n.values[key] = v
		j.record(func() {
			n.keys = n.keys[:len(n.keys)-1]
			delete(n.values, key)
		})
	}
}

func (n *Node) putParent(j *journal, p *Node, key string) {
	oldP, oldKey := n.parent, n.parentKey
	if p == nil {
		n.parent = weak.Pointer[Node]{}
	} else {
		n.parent = weak.Make(p)
	}
	n.parentKey = key
	j.record(func() {
		n.parent, n.parentKey = oldP, oldKey
	})
}

func (n *Node) putSelf(j *journal, v bool) {
	if n.selfModified == v {
		return
	}
	n.selfModified = v
	j.record(func() { n.selfModified = !v })
}

func (n *Node) putFlag(j *journal, v bool) {
	if n.modified == v {
		return
	}
	n.modified = v
	j.record(func() { n.modified = !v })
}

func (n *Node) putBaseline(j *journal, key string, b Baseline) {
	n.modifiedValues[key] = b
	j.record(func() { delete(n.modifiedValues, key) })
}

func (n *Node) dropBaseline(j *journal, key string) {
	b, ok := n.modifiedValues[key]
	if !ok {
		return
	}
	delete(n.modifiedValues, key)
	j.record(func() { n.modifiedValues[key] = b })
}

func (n *Node) addChildMod(j *journal, c *Node) {
	if n.modifiedChildren.add(c) {
		j.record(func() { n.modifiedChildren.remove(c) })
	}
}

func (n *Node) removeChildMod(j *journal, c *Node) {
	if n.modifiedChildren.remove(c) {
		j.record(func() { n.modifiedChildren.add(c) })
	}
}

func (n *Node) putResource(j *journal, key string, v any) {
	old, had := n.resources[key]
	if v == nil {
		delete(n.resources, key)
	} else {
		n.resources[key] = v
	}
	j.record(func() {
		if had {
			n.resources[key] = old
		} else {
			delete(n.resources, key)
		}
	})
}

func (n *Node) putFilter(j *journal, name string, f ModifyFilter) {
	old, had := n.filters[name]
	if f == nil {
		delete(n.filters, name)
	} else {
		n.filters[name] = f
	}
	j.record(func() {
		if had {
			n.filters[name] = old
		} else {
			delete(n.filters, name)
		}
	})
}

func (n *Node) putModifying(j *journal, keys map[string]struct{}) {
	old := n.modifying
	n.modifying = maps.Clone(keys)
	j.record(func() { n.modifying = old })
}
