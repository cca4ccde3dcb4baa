// Package scenario runs scripted node mutations and records the events
// they produce.
//
// A scenario file declares nodes and a list of steps.  Each step runs its
// ops in one transaction.
//
//	nodes:
//	- name: child
//	  kind: Child
//	- name: root
//	  kind: Root
//	  primaryKey: [name]
//	  values: {name: root}
//	  refs: {c: child}
//	steps:
//	- name: edit child
//	  ops:
//	  - {op: set, node: child, key: x, value: 1}
//	  - {op: add, node: root, collection: items, ref: child}
package scenario

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

type Scenario struct {
	Nodes []NodeSpec `yaml:"nodes"`
	Steps []Step     `yaml:"steps"`
}

// NodeSpec declares a node.  Refs name earlier nodes to store as initial
// values.
type NodeSpec struct {
	Name          string            `yaml:"name"`
	Kind          string            `yaml:"kind"`
	Collection    bool              `yaml:"collection"`
	PrimaryKey    []string          `yaml:"primaryKey"`
	NaturalKey    []string          `yaml:"naturalKey"`
	ReadOnly      []string          `yaml:"readOnly"`
	ModifyingKeys []string          `yaml:"modifyingKeys"`
	Values        map[string]any    `yaml:"values"`
	Refs          map[string]string `yaml:"refs"`
}

type Step struct {
	Name string `yaml:"name"`
	Ops  []Op   `yaml:"ops"`
}

// Op is one mutation.  Which fields are used depends on Op:
//
//	set        node key (value | ref)
//	remove     node key
//	modified   node modified
//	save       node
//	add        node collection ref
//	drop       node collection ref
//	resource   node key value
//	refresh    node
//	modifying  node keys
//	filter     node collection expr
type Op struct {
	Op         string   `yaml:"op"`
	Node       string   `yaml:"node"`
	Key        string   `yaml:"key"`
	Value      any      `yaml:"value"`
	Ref        string   `yaml:"ref"`
	Collection string   `yaml:"collection"`
	Keys       []string `yaml:"keys"`
	Expr       string   `yaml:"expr"`
	Modified   bool     `yaml:"modified"`
}

// Parse decodes a scenario and checks that it refers only to declared
// nodes.
func Parse(data []byte) (*Scenario, error) {
	s := &Scenario{}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

func (s *Scenario) Validate() error {
	seen := map[string]bool{}
	held := map[string]string{}
	for i, ns := range s.Nodes {
		if ns.Name == "" {
			return fmt.Errorf("%w: node %d has no name", ErrInvalid, i)
		}
		if seen[ns.Name] {
			return fmt.Errorf("%w: node %q declared twice", ErrInvalid, ns.Name)
		}
		for key, ref := range ns.Refs {
			if !seen[ref] {
				return fmt.Errorf("%w: node %q: ref %s=%q is not declared before it", ErrInvalid, ns.Name, key, ref)
			}
			if owner, ok := held[ref]; ok {
				return fmt.Errorf("%w: node %q: ref %s=%q is already held by %q", ErrInvalid, ns.Name, key, ref, owner)
			}
			held[ref] = ns.Name
		}
		seen[ns.Name] = true
	}
	for i, st := range s.Steps {
		for j, op := range st.Ops {
			if _, ok := opFuncs[op.Op]; !ok {
				return fmt.Errorf("%w: step %d op %d: unknown op %q", ErrInvalid, i+1, j+1, op.Op)
			}
			if !seen[op.Node] {
				return fmt.Errorf("%w: step %d op %d: unknown node %q", ErrInvalid, i+1, j+1, op.Node)
			}
			if op.Ref != "" && !seen[op.Ref] {
				return fmt.Errorf("%w: step %d op %d: unknown ref %q", ErrInvalid, i+1, j+1, op.Ref)
			}
		}
	}
	return nil
}
