package event

import (
	"fmt"
	"strings"
)

// Type is the kind of an Event.
type Type int

const (
	ValueChanged Type = iota
	ChildAdded
	ChildRemoved
	Added
	Removed
	Modified
	Unmodified
	NodeChanged
	ParentChanged

	CommitBegin
	CommitSuccess
	CommitFailure
	CommitEnd
)

var typeNames = [...]string{
	ValueChanged:  "VALUE_CHANGED",
	ChildAdded:    "CHILD_ADDED",
	ChildRemoved:  "CHILD_REMOVED",
	Added:         "ADDED",
	Removed:       "REMOVED",
	Modified:      "MODIFIED",
	Unmodified:    "UNMODIFIED",
	NodeChanged:   "NODE_CHANGED",
	ParentChanged: "PARENT_CHANGED",
	CommitBegin:   "COMMIT_BEGIN",
	CommitSuccess: "COMMIT_SUCCESS",
	CommitFailure: "COMMIT_FAILURE",
	CommitEnd:     "COMMIT_END",
}

// Types returns every event type in declaration order.
func Types() []Type {
	res := make([]Type, len(typeNames))
	for i := range typeNames {
		res[i] = Type(i)
	}
	return res
}

func (t Type) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return fmt.Sprintf("Type(%d)", int(t))
	}
	return typeNames[t]
}

// IsLifecycle reports whether t is a transaction lifecycle type rather
// than a node event.
func (t Type) IsLifecycle() bool {
	return t >= CommitBegin && t <= CommitEnd
}

// ParseType is the inverse of Type.String.  It is case insensitive and
// accepts '-' in place of '_'.
func ParseType(s string) (Type, error) {
	u := strings.ToUpper(strings.ReplaceAll(s, "-", "_"))
	for i, name := range typeNames {
		if name == u {
			return Type(i), nil
		}
	}
	return 0, fmt.Errorf("unknown event type %q", s)
}

// Source is whatever produced an event: a node or a coordinator.
type Source interface {
	String() string
}

// Event is a tagged union: which payload fields are meaningful depends on
// Type.
//
//   - ValueChanged: Key, Old, New
//   - ChildAdded: Key, New (the child)
//   - ChildRemoved: Key, Old (the child)
//   - Added, Removed: Key (slot in the new/old holder)
//   - Modified, Unmodified, NodeChanged, ParentChanged: no payload
//   - Commit*: no payload, Source is the coordinator
//
// SetKey is the collection key when the source is a set or a set member.
type Event struct {
	Source Source
	Type   Type
	Key    string
	SetKey string
	Old    any
	New    any
}

// Equal compares the identity of two events: source, type and key.  The
// payload does not take part.
func (e Event) Equal(o Event) bool {
	return e.Source == o.Source && e.Type == o.Type && e.Key == o.Key
}

func (e Event) String() string {
	var b strings.Builder
	b.WriteString(e.Type.String())
	if e.Key != "" {
		fmt.Fprintf(&b, "(%s)", e.Key)
	}
	return b.String()
}
