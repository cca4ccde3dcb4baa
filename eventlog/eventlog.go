// Package eventlog records delivered events and renders them as stable
// text, for tests and the ng trace command.
package eventlog

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/signadot/nodegraph/event"
	"github.com/signadot/nodegraph/libdiff"
)

// Observable is anything events can be listened to on: nodes and
// coordinators.
type Observable interface {
	event.Source
	RegisterAll(event.Handler) event.Handle
	Unregister(event.Handle) bool
}

// Log is an append only record of events.
type Log struct {
	mu       sync.Mutex
	events   []event.Event
	attached []attachment
}

type attachment struct {
	o Observable
	h event.Handle
}

func New() *Log {
	return &Log{}
}

func (l *Log) add(ev event.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

// Attach records every event delivered to o, including events cascading
// from below a node.
func (l *Log) Attach(o Observable) {
	l.attach(o, l.add)
}

// AttachSource records only the events o itself is the source of.
func (l *Log) AttachSource(o Observable) {
	l.attach(o, func(ev event.Event) {
		if ev.Source == event.Source(o) {
			l.add(ev)
		}
	})
}

func (l *Log) attach(o Observable, h event.Handler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.attached = append(l.attached, attachment{o: o, h: o.RegisterAll(h)})
}

// Detach stops recording.
func (l *Log) Detach() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, a := range l.attached {
		a.o.Unregister(a.h)
	}
	l.attached = nil
}

func (l *Log) Events() []event.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]event.Event(nil), l.events...)
}

// Since returns the events recorded after the first i.
func (l *Log) Since(i int) []event.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i >= len(l.events) {
		return nil
	}
	return append([]event.Event(nil), l.events[i:]...)
}

func (l *Log) Types() []event.Type {
	l.mu.Lock()
	defer l.mu.Unlock()
	res := make([]event.Type, len(l.events))
	for i, ev := range l.events {
		res[i] = ev.Type
	}
	return res
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

func (l *Log) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = nil
}

// Lines formats every recorded event.
func (l *Log) Lines() []string {
	evs := l.Events()
	res := make([]string, len(evs))
	for i, ev := range evs {
		res[i] = Format(ev)
	}
	return res
}

func (l *Log) String() string {
	var b strings.Builder
	for _, line := range l.Lines() {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

// Format renders ev on one line:
//
//	Source TYPE(key) [set=items] [old -> new]
//
// The old and new values are only shown for VALUE_CHANGED.
func Format(ev event.Event) string {
	return format(ev, nil)
}

func format(ev event.Event, c *Colors) string {
	var b strings.Builder
	b.WriteString(c.Color(ev.Type, SourceColor, sourceString(ev.Source)))
	b.WriteByte(' ')
	b.WriteString(c.Color(ev.Type, TypeColor, ev.Type.String()))
	if ev.Key != "" {
		b.WriteString("(" + c.Color(ev.Type, KeyColor, ev.Key) + ")")
	}
	if ev.SetKey != "" {
		b.WriteString(" set=" + c.Color(ev.Type, KeyColor, ev.SetKey))
	}
	if ev.Type == event.ValueChanged {
		fmt.Fprintf(&b, " %s -> %s",
			c.Color(ev.Type, ValueColor, valueString(ev.Old)),
			c.Color(ev.Type, ValueColor, valueString(ev.New)))
	}
	return b.String()
}

func sourceString(s event.Source) string {
	if s == nil {
		return "<nil>"
	}
	return s.String()
}

func valueString(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(x)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Render writes one formatted line per event.  A nil c renders without
// color.
func Render(w io.Writer, events []event.Event, c *Colors) error {
	for _, ev := range events {
		if _, err := io.WriteString(w, format(ev, c)+"\n"); err != nil {
			return err
		}
	}
	return nil
}

// Diff returns a line diff of two renderings, or "" when they match.
func Diff(want, got string) string {
	return libdiff.DiffString(want, got)
}
