package event

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRegistryDispatchOrder(t *testing.T) {
	r := NewRegistry()
	var got []string
	r.RegisterAll(func(ev Event) { got = append(got, "all:"+ev.Type.String()) })
	r.Register(Modified, func(ev Event) { got = append(got, "mod1") })
	r.Register(Modified, func(ev Event) { got = append(got, "mod2") })
	r.Register(Unmodified, func(ev Event) { got = append(got, "unmod") })

	r.Dispatch(Event{Type: Modified})
	r.Dispatch(Event{Type: NodeChanged})

	want := []string{"mod1", "mod2", "all:MODIFIED", "all:NODE_CHANGED"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("dispatch mismatch (-want +got):\n%s", diff)
	}
}

func TestRegistryUnregister(t *testing.T) {
	r := NewRegistry()
	count := 0
	h := r.Register(ValueChanged, func(Event) { count++ })
	a := r.RegisterAll(func(Event) { count++ })
	if r.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", r.Len())
	}
	r.Dispatch(Event{Type: ValueChanged})
	if !r.Unregister(h) {
		t.Error("Unregister(typed) = false")
	}
	if r.Unregister(h) {
		t.Error("second Unregister(typed) = true")
	}
	if !r.Unregister(a) {
		t.Error("Unregister(all) = false")
	}
	r.Dispatch(Event{Type: ValueChanged})
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
	if r.Unregister(Handle{}) {
		t.Error("Unregister of zero handle = true")
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}
}

func TestRegistryUnregisterDuringDispatch(t *testing.T) {
	r := NewRegistry()
	var got []string
	var self Handle
	self = r.Register(Modified, func(Event) {
		got = append(got, "once")
		r.Unregister(self)
	})
	r.Register(Modified, func(Event) { got = append(got, "always") })

	r.Dispatch(Event{Type: Modified})
	r.Dispatch(Event{Type: Modified})

	want := []string{"once", "always", "always"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestRegistryRegisterDuringDispatch(t *testing.T) {
	r := NewRegistry()
	calls := 0
	r.Register(Added, func(Event) {
		r.Register(Added, func(Event) { calls++ })
	})
	r.Dispatch(Event{Type: Added})
	if calls != 0 {
		t.Errorf("handler registered during dispatch ran in same dispatch")
	}
	r.Dispatch(Event{Type: Added})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRegistryHandlers(t *testing.T) {
	r := NewRegistry()
	r.Register(Removed, func(Event) {})
	r.RegisterAll(func(Event) {})
	hs := r.Handlers()
	if n := len(hs[Removed]); n != 2 {
		t.Errorf("len(Handlers()[REMOVED]) = %d, want 2", n)
	}
	if n := len(hs[Added]); n != 1 {
		t.Errorf("len(Handlers()[ADDED]) = %d, want 1", n)
	}
}

func TestNilRegistryDispatch(t *testing.T) {
	var r *Registry
	r.Dispatch(Event{Type: Added})
}
