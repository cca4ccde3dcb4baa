package event

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

type src string

func (s src) String() string { return string(s) }

func TestTypeString(t *testing.T) {
	tests := []struct {
		typ  Type
		want string
	}{
		{ValueChanged, "VALUE_CHANGED"},
		{ChildAdded, "CHILD_ADDED"},
		{ParentChanged, "PARENT_CHANGED"},
		{CommitEnd, "COMMIT_END"},
		{Type(99), "Type(99)"},
		{Type(-1), "Type(-1)"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.typ.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseType(t *testing.T) {
	for _, typ := range Types() {
		got, err := ParseType(typ.String())
		if err != nil {
			t.Fatalf("ParseType(%q): %v", typ, err)
		}
		if got != typ {
			t.Errorf("ParseType(%q) = %v", typ, got)
		}
	}
	got, err := ParseType("node-changed")
	if err != nil || got != NodeChanged {
		t.Errorf("ParseType(node-changed) = %v, %v", got, err)
	}
	if _, err := ParseType("bogus"); err == nil {
		t.Error("expected error for unknown type")
	}
}

func TestIsLifecycle(t *testing.T) {
	var got []Type
	for _, typ := range Types() {
		if typ.IsLifecycle() {
			got = append(got, typ)
		}
	}
	want := []Type{CommitBegin, CommitSuccess, CommitFailure, CommitEnd}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("lifecycle types mismatch (-want +got):\n%s", diff)
	}
}

func TestEventEqual(t *testing.T) {
	a, b := src("a"), src("b")
	tests := []struct {
		name string
		x, y Event
		want bool
	}{
		{"payload ignored",
			Event{Source: a, Type: ValueChanged, Key: "k", Old: 1, New: 2},
			Event{Source: a, Type: ValueChanged, Key: "k", Old: 3, New: 4},
			true},
		{"set key ignored",
			Event{Source: a, Type: ValueChanged, Key: "k", SetKey: "items"},
			Event{Source: a, Type: ValueChanged, Key: "k"},
			true},
		{"source differs",
			Event{Source: a, Type: Modified},
			Event{Source: b, Type: Modified},
			false},
		{"type differs",
			Event{Source: a, Type: Modified},
			Event{Source: a, Type: Unmodified},
			false},
		{"key differs",
			Event{Source: a, Type: ValueChanged, Key: "x"},
			Event{Source: a, Type: ValueChanged, Key: "y"},
			false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.x.Equal(tt.y); got != tt.want {
				t.Errorf("Equal() = %v, want %v", got, tt.want)
			}
			if got := tt.y.Equal(tt.x); got != tt.want {
				t.Errorf("Equal() not symmetric")
			}
		})
	}
}

func TestEventString(t *testing.T) {
	ev := Event{Type: ValueChanged, Key: "name"}
	if got := ev.String(); got != "VALUE_CHANGED(name)" {
		t.Errorf("String() = %q", got)
	}
	ev = Event{Type: Modified}
	if got := ev.String(); got != "MODIFIED" {
		t.Errorf("String() = %q", got)
	}
}
