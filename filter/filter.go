// Package filter compiles collection modify filters from expressions.
//
// An expression is evaluated against one member with these names bound:
//
//	kind          the member's kind
//	fields        the member's values as a map
//	modified      whether the member is modified
//	self          whether the member is self modified
//	modifiedKeys  the member's modified keys
//	value(key)    the value at key or nil
//	has(key)      whether key holds a value
//
// For example
//
//	kind == "Item" && value("important") == true
package filter

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/signadot/nodegraph/node"
)

var ErrCompile = errors.New("filter compile error")

type Filter struct {
	src  string
	prog *vm.Program
	log  *slog.Logger
}

func env(m *node.Node) map[string]any {
	return map[string]any{
		"kind":         m.Kind(),
		"fields":       m.AsMap(),
		"modified":     m.IsModified(),
		"self":         m.IsSelfModified(),
		"modifiedKeys": m.ModifiedKeys(),
		"value":        func(key string) any { return m.Value(key) },
		"has":          func(key string) bool { return m.Has(key) },
	}
}

// Compile compiles src, which must evaluate to a bool.
func Compile(src string) (*Filter, error) {
	prog, err := expr.Compile(src, expr.Env(env(node.New())), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrCompile, src, err)
	}
	return &Filter{
		src:  src,
		prog: prog,
		log:  slog.Default().With("component", "filter"),
	}, nil
}

func MustCompile(src string) *Filter {
	f, err := Compile(src)
	if err != nil {
		panic(err)
	}
	return f
}

func (f *Filter) String() string {
	return f.src
}

// Match evaluates f against m.
func (f *Filter) Match(m *node.Node) (bool, error) {
	out, err := expr.Run(f.prog, env(m))
	if err != nil {
		return false, err
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("filter %q returned %T", f.src, out)
	}
	return b, nil
}

// ModifyFilter adapts f for Node.SetSetModifyFilter.  A member for which
// evaluation fails is not admitted.
func (f *Filter) ModifyFilter() node.ModifyFilter {
	return func(m *node.Node) bool {
		ok, err := f.Match(m)
		if err != nil {
			f.log.Debug("filter failed", "filter", f.src, "member", m.String(), "error", err)
			return false
		}
		return ok
	}
}
