package node

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
	"weak"

	"github.com/google/uuid"

	"github.com/signadot/nodegraph/debug"
	"github.com/signadot/nodegraph/event"
	"github.com/signadot/nodegraph/txn"
)

// DefaultKind is the kind of nodes created without WithKind.
const DefaultKind = "Node"

// ModifyFilter decides whether a modified member of a collection counts
// toward the modified state of the collection.
type ModifyFilter func(member *Node) bool

// Node is a keyed store of values with a parent link, a dirty tracking
// state and event listeners.
//
// Values of type *Node are children: setting one attaches it to this node
// and detaches it from wherever it was before.  All other values are
// opaque and compared with ==, or reflect.DeepEqual when not comparable.
//
// Mutations go through a *txn.Tx and take effect when it commits.  Reads
// observe committed state.
//
// A Node is NOT safe for concurrent use.
type Node struct {
	id   uuid.UUID
	kind string

	keys      []string
	values    map[string]any
	resources map[string]any

	parent    weak.Pointer[Node]
	parentKey string

	primaryKey []string
	naturalKey []string
	readOnly   map[string]struct{}
	declared   declarations
	// nil means every key is modifying
	modifying map[string]struct{}

	selfModified     bool
	modifiedValues   map[string]Baseline
	modifiedChildren childSet
	modified         bool

	collection bool
	setPrefix  string
	filters    map[string]ModifyFilter

	listeners *event.Registry
}

type declarations struct {
	primary, natural, readOnly bool
}

// Option configures a Node at construction.
type Option func(*Node)

func WithKind(kind string) Option {
	return func(n *Node) { n.kind = kind }
}

// WithID replaces the random identity token, which collections use to
// derive member keys.
func WithID(id uuid.UUID) Option {
	return func(n *Node) { n.id = id }
}

// WithValue stores an initial value.  Initial values produce no events
// and are not recorded as modifications.  A *Node value attached
// elsewhere is moved: its old slot is cleared, also without events.
func WithValue(key string, v any) Option {
	return func(n *Node) {
		v = normalize(v)
		if key == "" || v == nil {
			return
		}
		c, isNode := v.(*Node)
		if isNode {
			if old := c.Parent(); old != nil {
				old.putValue(nil, c.parentKey, nil)
				old.removeChildMod(nil, c)
				old.settle()
			}
		}
		n.putValue(nil, key, v)
		if isNode {
			c.putParent(nil, n, key)
		}
	}
}

// settle recomputes the cached flags of n and its ancestors without
// events.
func (n *Node) settle() {
	var child *Node
	for x := n; x != nil; child, x = x, x.Parent() {
		if child != nil {
			if child.modified && x.admits(child) {
				x.addChildMod(nil, child)
			} else {
				x.removeChildMod(nil, child)
			}
		}
		x.putFlag(nil, x.ownDirty())
	}
}

// WithModifyingKeys restricts the keys whose changes mark the node
// modified.
func WithModifyingKeys(keys ...string) Option {
	return func(n *Node) {
		if n.modifying == nil {
			n.modifying = map[string]struct{}{}
		}
		for _, k := range keys {
			n.modifying[k] = struct{}{}
		}
	}
}

// WithSetPrefix sets the member key prefix of a collection.
func WithSetPrefix(prefix string) Option {
	return func(n *Node) { n.setPrefix = prefix }
}

func New(opts ...Option) *Node {
	n := &Node{
		id:             uuid.New(),
		kind:           DefaultKind,
		values:         map[string]any{},
		resources:      map[string]any{},
		modifiedValues: map[string]Baseline{},
		filters:        map[string]ModifyFilter{},
		listeners:      event.NewRegistry(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func (n *Node) ID() uuid.UUID {
	return n.id
}

func (n *Node) Kind() string {
	return n.kind
}

// IsCollection reports whether n was created by NewSet.
func (n *Node) IsCollection() bool {
	return n.collection
}

// Parent returns the node holding n as a value, or nil.
func (n *Node) Parent() *Node {
	p := n.parent.Value()
	if p == nil {
		return nil
	}
	if c, ok := p.values[n.parentKey].(*Node); !ok || c != n {
		return nil
	}
	return p
}

// ParentKey returns the key under which n is stored in its parent.
func (n *Node) ParentKey() string {
	if n.Parent() == nil {
		return ""
	}
	return n.parentKey
}

// TrueParent is the parent skipping over an intermediate collection.
func (n *Node) TrueParent() *Node {
	p := n.Parent()
	if p != nil && p.collection {
		return p.Parent()
	}
	return p
}

// CollectionID is the key of the collection holding n within its owner,
// or the parent key when n is not a collection member.
func (n *Node) CollectionID() string {
	p := n.Parent()
	if p == nil {
		return ""
	}
	if p.collection {
		return p.ParentKey()
	}
	return n.parentKey
}

// DistanceTo returns the number of parent links from n to a, 0 when a is
// n, and -1 when a is not an ancestor of n.
func (n *Node) DistanceTo(a *Node) int {
	d := 0
	for x := n; x != nil; x = x.Parent() {
		if x == a {
			return d
		}
		d++
	}
	return -1
}

func (n *Node) Root() *Node {
	r := n
	for p := n.Parent(); p != nil; p = p.Parent() {
		r = p
	}
	return r
}

// Ancestors returns the parent chain of n, nearest first.
func (n *Node) Ancestors() []*Node {
	var res []*Node
	for p := n.Parent(); p != nil; p = p.Parent() {
		res = append(res, p)
	}
	return res
}

// Get returns the value at key, or def when there is none.
func (n *Node) Get(key string, def any) (any, error) {
	if key == "" {
		return nil, fmt.Errorf("%w: get on %s", ErrNullKey, n)
	}
	if v, ok := n.values[key]; ok {
		return v, nil
	}
	return def, nil
}

// Value returns the value at key or nil.
func (n *Node) Value(key string) any {
	return n.values[key]
}

func (n *Node) Has(key string) bool {
	_, ok := n.values[key]
	return ok
}

// IsSet reports whether key holds a value.
func (n *Node) IsSet(key string) bool {
	return n.Has(key)
}

func (n *Node) IsNotSet(key string) bool {
	return !n.Has(key)
}

// Keys returns the keys holding values in insertion order.
func (n *Node) Keys() []string {
	return slices.Clone(n.keys)
}

func (n *Node) Len() int {
	return len(n.keys)
}

func (n *Node) AsMap() map[string]any {
	return maps.Clone(n.values)
}

// Children returns the *Node values in key order.
func (n *Node) Children() []*Node {
	var res []*Node
	for _, k := range n.keys {
		if c, ok := n.values[k].(*Node); ok {
			res = append(res, c)
		}
	}
	return res
}

func (n *Node) visitDescendants(fn func(*Node)) {
	for _, c := range n.Children() {
		fn(c)
		c.visitDescendants(fn)
	}
}

func (n *Node) Register(t event.Type, h event.Handler) event.Handle {
	return n.listeners.Register(t, h)
}

func (n *Node) RegisterAll(h event.Handler) event.Handle {
	return n.listeners.RegisterAll(h)
}

func (n *Node) Unregister(h event.Handle) bool {
	return n.listeners.Unregister(h)
}

func (n *Node) EventHandlers() map[event.Type][]event.Handler {
	return n.listeners.Handlers()
}

// setKey is the collection key reported on events from n.
func (n *Node) setKey() string {
	if n.collection {
		return n.ParentKey()
	}
	if p := n.Parent(); p != nil && p.collection {
		return p.ParentKey()
	}
	return ""
}

// fire buffers ev for delivery to n and every ancestor of n as they are
// now.
func (n *Node) fire(tx *txn.Tx, ev event.Event) {
	ev.Source = n
	ev.SetKey = n.setKey()
	chain := append([]*Node{n}, n.Ancestors()...)
	if debug.Events() {
		debug.Logf("event %s %s\n", n, ev)
	}
	tx.Emit(func() {
		for _, m := range chain {
			m.listeners.Dispatch(ev)
		}
	})
}

// normalize maps typed nil nodes to nil and collections to their node.
func normalize(v any) any {
	switch x := v.(type) {
	case *Node:
		if x == nil {
			return nil
		}
	case *Set:
		if x == nil || x.Node == nil {
			return nil
		}
		return x.Node
	}
	return v
}

// sameValue reports whether a and b are the same value.  Nodes compare by
// identity.
func sameValue(a, b any) bool {
	a, b = normalize(a), normalize(b)
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	an, aok := a.(*Node)
	bn, bok := b.(*Node)
	if aok || bok {
		return aok && bok && an == bn
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta.Comparable() {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}
