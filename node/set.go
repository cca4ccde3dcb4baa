package node

import (
	"fmt"
	"strings"

	"github.com/signadot/nodegraph/txn"
)

const (
	// SetKind is the kind of nodes created by NewSet.
	SetKind = "NodeSet"
	// DefaultSetPrefix prefixes the member keys of a collection.
	DefaultSetPrefix = "member:"
)

// Set is a node whose values are its members, each stored under a key
// derived from the member's id.
type Set struct {
	*Node
}

func NewSet(opts ...Option) *Set {
	n := New(append([]Option{WithKind(SetKind)}, opts...)...)
	n.collection = true
	if n.setPrefix == "" {
		n.setPrefix = DefaultSetPrefix
	}
	return &Set{Node: n}
}

// AsSet views n as a collection when it is one.
func AsSet(n *Node) (*Set, bool) {
	if n == nil || !n.collection {
		return nil, false
	}
	return &Set{Node: n}, true
}

func (s *Set) Prefix() string {
	return s.setPrefix
}

// MemberKey is the key m is stored under in s.
func (s *Set) MemberKey(m *Node) string {
	return s.setPrefix + m.id.String()
}

// Add submits adding m.  Adding nil does nothing.
func (s *Set) Add(tx *txn.Tx, m *Node) error {
	if m == nil {
		return nil
	}
	return s.Node.Set(tx, s.MemberKey(m), m)
}

func (s *Set) Remove(tx *txn.Tx, m *Node) error {
	if m == nil {
		return nil
	}
	return s.Node.Set(tx, s.MemberKey(m), nil)
}

func (s *Set) Contains(m *Node) bool {
	if m == nil {
		return false
	}
	c, ok := s.values[s.MemberKey(m)].(*Node)
	return ok && c == m
}

// Members returns the members in insertion order.
func (s *Set) Members() []*Node {
	var res []*Node
	for _, k := range s.keys {
		if !strings.HasPrefix(k, s.setPrefix) {
			continue
		}
		if c, ok := s.values[k].(*Node); ok {
			res = append(res, c)
		}
	}
	return res
}

func (s *Set) Len() int {
	return len(s.Members())
}

// Collection returns the collection stored at name, creating it in tx
// when absent.
func (n *Node) Collection(tx *txn.Tx, name string, opts ...Option) (*Set, error) {
	v, err := n.ComputeIfAbsent(tx, name, func() any {
		return NewSet(opts...).Node
	})
	if err != nil {
		return nil, err
	}
	c, _ := v.(*Node)
	s, ok := AsSet(c)
	if !ok {
		return nil, fmt.Errorf("%w: %q on %s", ErrNotCollection, name, n)
	}
	return s, nil
}

// SetOf returns the committed collection stored at name, or nil.
func (n *Node) SetOf(name string) *Set {
	c, _ := n.values[name].(*Node)
	s, _ := AsSet(c)
	return s
}
