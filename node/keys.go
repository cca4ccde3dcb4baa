package node

import (
	"fmt"
	"hash/maphash"
	"maps"
	"slices"
	"strings"
)

var seed = maphash.MakeSeed()

// DefinePrimaryKey declares the keys identifying n among nodes of its
// kind.  It may be called once.
func (n *Node) DefinePrimaryKey(keys ...string) error {
	if n.declared.primary {
		return fmt.Errorf("%w: primary key of %s", ErrDuplicateDeclaration, n)
	}
	n.declared.primary = true
	n.primaryKey = slices.Clone(keys)
	return nil
}

// DefineNaturalKey declares a secondary identity.  It may be called once.
func (n *Node) DefineNaturalKey(keys ...string) error {
	if n.declared.natural {
		return fmt.Errorf("%w: natural key of %s", ErrDuplicateDeclaration, n)
	}
	n.declared.natural = true
	n.naturalKey = slices.Clone(keys)
	return nil
}

// DefineReadOnly declares keys that accept one initializing write and
// reject every later change.  It may be called once.
func (n *Node) DefineReadOnly(keys ...string) error {
	if n.declared.readOnly {
		return fmt.Errorf("%w: read only keys of %s", ErrDuplicateDeclaration, n)
	}
	n.declared.readOnly = true
	n.readOnly = map[string]struct{}{}
	for _, k := range keys {
		n.readOnly[k] = struct{}{}
	}
	return nil
}

func (n *Node) PrimaryKey() []string {
	return slices.Clone(n.primaryKey)
}

func (n *Node) NaturalKey() []string {
	return slices.Clone(n.naturalKey)
}

func (n *Node) ReadOnlyKeys() []string {
	return slices.Sorted(maps.Keys(n.readOnly))
}

func (n *Node) isReadOnly(key string) bool {
	_, ok := n.readOnly[key]
	return ok
}

func union(a, b []string) []string {
	res := slices.Clone(a)
	for _, k := range b {
		if !slices.Contains(res, k) {
			res = append(res, k)
		}
	}
	return res
}

// Equal reports whether n and o are the same entity: same kind and equal
// values at the union of both sides' primary keys and natural keys.
// Nodes without any declared key are equal only to themselves.
func (n *Node) Equal(o *Node) bool {
	if n == o {
		return true
	}
	if n == nil || o == nil || n.kind != o.kind {
		return false
	}
	pk := union(n.primaryKey, o.primaryKey)
	nk := union(n.naturalKey, o.naturalKey)
	if len(pk) == 0 && len(nk) == 0 {
		return false
	}
	for _, k := range append(pk, nk...) {
		if !keyValueEqual(n.values[k], o.values[k]) {
			return false
		}
	}
	return true
}

func keyValueEqual(a, b any) bool {
	an, aok := a.(*Node)
	bn, bok := b.(*Node)
	if aok && bok {
		return an.Equal(bn)
	}
	return sameValue(a, b)
}

// Hash is consistent with Equal for nodes declaring the same keys.
func (n *Node) Hash() uint64 {
	if n == nil {
		return 0
	}
	keys := union(n.primaryKey, n.naturalKey)
	if len(keys) == 0 {
		return maphash.Bytes(seed, n.id[:])
	}
	h := maphash.String(seed, n.kind)
	for _, k := range keys {
		if v := n.values[k]; v != nil {
			h ^= hashValue(v)
		}
	}
	return h
}

func hashValue(v any) uint64 {
	switch x := v.(type) {
	case *Node:
		return x.Hash()
	case string:
		return maphash.String(seed, x)
	default:
		return maphash.String(seed, fmt.Sprintf("%T:%v", v, v))
	}
}

// String renders n as Kind[k=v,...] over its primary and natural keys.
// Absent values are omitted.
func (n *Node) String() string {
	if n == nil {
		return "<nil>"
	}
	return n.render(union(n.primaryKey, n.naturalKey))
}

// StringKeys renders n over the given keys.
func (n *Node) StringKeys(keys ...string) string {
	return n.render(keys)
}

// StringAll renders n over all its keys, sorted.
func (n *Node) StringAll() string {
	return n.render(slices.Sorted(maps.Keys(n.values)))
}

func (n *Node) render(keys []string) string {
	var b strings.Builder
	b.WriteString(n.kind)
	b.WriteByte('[')
	first := true
	for _, k := range keys {
		v, ok := n.values[k]
		if !ok {
			continue
		}
		if !first {
			b.WriteByte(',')
		}
		first = false
		fmt.Fprintf(&b, "%s=%v", k, v)
	}
	b.WriteByte(']')
	return b.String()
}
