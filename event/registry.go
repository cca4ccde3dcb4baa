package event

import (
	"sync"
)

// Handler receives events.
type Handler func(Event)

// Handle identifies a registration; pass it to Unregister.
type Handle struct {
	id  uint64
	typ Type
	all bool
}

// Valid reports whether h came from a registration.
func (h Handle) Valid() bool {
	return h.id != 0
}

type entry struct {
	id uint64
	h  Handler
}

// Registry is a set of handlers keyed by event type.
//
// Registration and unregistration may happen from within a handler:
// Dispatch iterates over a snapshot, so the change takes effect from the
// next dispatch on.
type Registry struct {
	mu     sync.RWMutex
	nextID uint64
	byType map[Type][]entry
	all    []entry
}

func NewRegistry() *Registry {
	return &Registry{byType: map[Type][]entry{}}
}

// Register adds h for events of type t.
func (r *Registry) Register(t Type, h Handler) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	r.byType[t] = append(r.byType[t], entry{id: r.nextID, h: h})
	return Handle{id: r.nextID, typ: t}
}

// RegisterAll adds h for every event type.
func (r *Registry) RegisterAll(h Handler) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	r.all = append(r.all, entry{id: r.nextID, h: h})
	return Handle{id: r.nextID, all: true}
}

// Unregister removes the registration identified by h.  It reports
// whether anything was removed.
func (r *Registry) Unregister(h Handle) bool {
	if !h.Valid() {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if h.all {
		var ok bool
		r.all, ok = without(r.all, h.id)
		return ok
	}
	es, ok := without(r.byType[h.typ], h.id)
	if len(es) == 0 {
		delete(r.byType, h.typ)
	} else {
		r.byType[h.typ] = es
	}
	return ok
}

// without returns a fresh slice so that snapshots held by a running
// Dispatch are never mutated.
func without(es []entry, id uint64) ([]entry, bool) {
	for i := range es {
		if es[i].id != id {
			continue
		}
		res := make([]entry, 0, len(es)-1)
		res = append(res, es[:i]...)
		return append(res, es[i+1:]...), true
	}
	return es, false
}

// Len returns the number of registrations.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := len(r.all)
	for _, es := range r.byType {
		n += len(es)
	}
	return n
}

// Handlers returns the handlers registered per type.  Handlers registered
// for all types are listed under every type.
func (r *Registry) Handlers() map[Type][]Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := make(map[Type][]Handler)
	for t, es := range r.byType {
		for _, e := range es {
			res[t] = append(res[t], e.h)
		}
	}
	if len(r.all) != 0 {
		for _, t := range Types() {
			for _, e := range r.all {
				res[t] = append(res[t], e.h)
			}
		}
	}
	return res
}

// Dispatch calls the handlers registered for ev.Type, then those
// registered for all types, each in registration order.
func (r *Registry) Dispatch(ev Event) {
	if r == nil {
		return
	}
	r.mu.RLock()
	typed := r.byType[ev.Type]
	all := r.all
	r.mu.RUnlock()
	for _, e := range typed {
		e.h(ev)
	}
	for _, e := range all {
		e.h(ev)
	}
}
