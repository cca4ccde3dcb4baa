// Package settings provides key/value views over one or more nodes.
//
// A view reads committed node values and writes each change in its own
// transaction, so callers never handle a txn.Tx.  All writes go through
// the checked node API: read only keys, null keys and circular references
// are rejected as they would be for direct callers.
package settings

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"slices"

	jsonpatch "github.com/evanphx/json-patch"

	"github.com/signadot/nodegraph/event"
	"github.com/signadot/nodegraph/node"
	"github.com/signadot/nodegraph/txn"
)

// Settings is a view over nodes.  Reads consult the nodes in order and
// the first one holding a key wins; a write goes to the node holding the
// key, or the first node when none does.
type Settings struct {
	c     *txn.Coordinator
	nodes []*node.Node
}

func New(c *txn.Coordinator, n *node.Node) *Settings {
	return NewMulti(c, n)
}

func NewMulti(c *txn.Coordinator, nodes ...*node.Node) *Settings {
	return &Settings{c: c, nodes: slices.Clone(nodes)}
}

func (s *Settings) holder(key string) *node.Node {
	for _, n := range s.nodes {
		if n.Has(key) {
			return n
		}
	}
	return nil
}

// GetValue returns the value of key or def.
func (s *Settings) GetValue(key string, def any) (any, error) {
	if key == "" {
		return nil, fmt.Errorf("%w: settings get", node.ErrNullKey)
	}
	if n := s.holder(key); n != nil {
		return n.Get(key, def)
	}
	return def, nil
}

// SetValue sets key to v in its own transaction, or joins the one open
// on the coordinator.
func (s *Settings) SetValue(key string, v any) error {
	return txn.Run(s.c, func(tx *txn.Tx) error {
		return s.set(tx, key, v)
	})
}

func (s *Settings) set(tx *txn.Tx, key string, v any) error {
	if len(s.nodes) == 0 {
		return fmt.Errorf("%w: set %q", ErrNoNodes, key)
	}
	n := s.holder(key)
	if n == nil {
		n = s.nodes[0]
	}
	return n.Set(tx, key, v)
}

// GetValueKeys returns every key held by any node, first occurrence order.
func (s *Settings) GetValueKeys() []string {
	var res []string
	for _, n := range s.nodes {
		for _, k := range n.Keys() {
			if !slices.Contains(res, k) {
				res = append(res, k)
			}
		}
	}
	return res
}

func (s *Settings) HasKey(key string) bool {
	return s.holder(key) != nil
}

// Registration undoes a Register.
type Registration struct {
	nodes   []*node.Node
	handles []event.Handle
}

func (r *Registration) Unregister() {
	for i, n := range r.nodes {
		n.Unregister(r.handles[i])
	}
	r.nodes, r.handles = nil, nil
}

// Register adds h for events of type t on every node of the view.
func (s *Settings) Register(t event.Type, h event.Handler) *Registration {
	r := &Registration{}
	for _, n := range s.nodes {
		r.nodes = append(r.nodes, n)
		r.handles = append(r.handles, n.Register(t, h))
	}
	return r
}

// Document returns the scalar values of the view as JSON.  Child nodes
// are left out.
func (s *Settings) Document() ([]byte, error) {
	doc := map[string]any{}
	for _, k := range s.GetValueKeys() {
		v, _ := s.GetValue(k, nil)
		if _, ok := v.(*node.Node); ok {
			continue
		}
		doc[k] = v
	}
	return json.Marshal(doc)
}

// ApplyPatch applies an RFC 6902 patch to Document in one transaction.
// Keys whose JSON encoding changes are set, keys the patch removes are
// removed.
func (s *Settings) ApplyPatch(patchJSON []byte) error {
	patch, err := jsonpatch.DecodePatch(patchJSON)
	if err != nil {
		return fmt.Errorf("decoding patch: %w", err)
	}
	return s.patch(func(doc []byte) ([]byte, error) { return patch.Apply(doc) })
}

// ApplyMergePatch applies an RFC 7386 merge patch to Document.
func (s *Settings) ApplyMergePatch(patchJSON []byte) error {
	return s.patch(func(doc []byte) ([]byte, error) { return jsonpatch.MergePatch(doc, patchJSON) })
}

func (s *Settings) patch(apply func([]byte) ([]byte, error)) error {
	before, err := s.Document()
	if err != nil {
		return err
	}
	after, err := apply(before)
	if err != nil {
		return fmt.Errorf("applying patch: %w", err)
	}
	var was, now map[string]json.RawMessage
	if err := json.Unmarshal(before, &was); err != nil {
		return err
	}
	if err := json.Unmarshal(after, &now); err != nil {
		return fmt.Errorf("patched document: %w", err)
	}
	return txn.Run(s.c, func(tx *txn.Tx) error {
		for _, k := range s.GetValueKeys() {
			if _, ok := was[k]; !ok {
				continue
			}
			if _, ok := now[k]; !ok {
				if err := s.set(tx, k, nil); err != nil {
					return err
				}
			}
		}
		keys := make([]string, 0, len(now))
		for k := range now {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			v, err := decode(now[k])
			if err != nil {
				return err
			}
			if raw, ok := was[k]; ok {
				if old, err := decode(raw); err == nil && reflect.DeepEqual(old, v) {
					continue
				}
			}
			prior, _ := s.GetValue(k, nil)
			if err := s.set(tx, k, numbers(v, prior)); err != nil {
				return err
			}
		}
		return nil
	})
}

func decode(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// numbers replaces the json.Numbers in v.  A number replacing a numeric
// value takes that value's type when it fits; otherwise integers become
// int64 and the rest float64.
func numbers(v, prior any) any {
	switch x := v.(type) {
	case json.Number:
		return number(x, prior)
	case []any:
		for i := range x {
			x[i] = numbers(x[i], nil)
		}
	case map[string]any:
		for k := range x {
			x[k] = numbers(x[k], nil)
		}
	}
	return v
}

func number(num json.Number, prior any) any {
	if prior != nil {
		pt := reflect.TypeOf(prior)
		switch pt.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			if i, err := num.Int64(); err == nil {
				pv := reflect.New(pt).Elem()
				if !pv.OverflowInt(i) {
					pv.SetInt(i)
					return pv.Interface()
				}
			}
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			if i, err := num.Int64(); err == nil && i >= 0 {
				pv := reflect.New(pt).Elem()
				if !pv.OverflowUint(uint64(i)) {
					pv.SetUint(uint64(i))
					return pv.Interface()
				}
			}
		case reflect.Float32, reflect.Float64:
			if f, err := num.Float64(); err == nil {
				return reflect.ValueOf(f).Convert(pt).Interface()
			}
		}
	}
	if i, err := num.Int64(); err == nil {
		return i
	}
	f, _ := num.Float64()
	return f
}
