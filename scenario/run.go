package scenario

import (
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/signadot/nodegraph/event"
	"github.com/signadot/nodegraph/eventlog"
	"github.com/signadot/nodegraph/filter"
	"github.com/signadot/nodegraph/metrics"
	"github.com/signadot/nodegraph/node"
	"github.com/signadot/nodegraph/txn"
)

// Namespace derives node ids from node names so that traces, which show
// collection member keys, are reproducible.
var Namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/signadot/nodegraph/scenario"))

type Config struct {
	Log       *slog.Logger     // Logger (optional)
	SetPrefix string           // member key prefix of created collections
	Metrics   *metrics.Metrics // (optional)
}

type Result struct {
	Steps []StepResult
	names []string
	nodes map[string]*node.Node
}

type StepResult struct {
	Name   string
	Events []event.Event
	Err    error
}

// Node returns the declared node called name.
func (r *Result) Node(name string) *node.Node {
	return r.nodes[name]
}

// Failed reports whether any step failed.
func (r *Result) Failed() bool {
	for _, st := range r.Steps {
		if st.Err != nil {
			return true
		}
	}
	return false
}

type runner struct {
	cfg     *Config
	log     *slog.Logger
	c       *txn.Coordinator
	rec     *eventlog.Log
	nodes   map[string]*node.Node
	watched map[*node.Node]bool
}

// Run builds the declared nodes and runs each step in a transaction of
// its own.  A failing step is recorded in its StepResult and does not
// stop later steps.
func Run(s *Scenario, cfg *Config) (*Result, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	r := &runner{
		cfg:     cfg,
		log:     log.With("component", "scenario"),
		c:       txn.New(&txn.Config{Log: log}),
		rec:     eventlog.New(),
		nodes:   map[string]*node.Node{},
		watched: map[*node.Node]bool{},
	}
	r.rec.Attach(r.c)
	defer r.rec.Detach()

	res := &Result{nodes: r.nodes}
	for _, ns := range s.Nodes {
		n, err := r.build(ns)
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", ns.Name, err)
		}
		r.nodes[ns.Name] = n
		res.names = append(res.names, ns.Name)
		r.watch(n)
	}
	if m := cfg.Metrics; m != nil {
		defer m.ObserveCoordinator(r.c)()
		for _, name := range res.names {
			if n := r.nodes[name]; n.Parent() == nil {
				defer m.ObserveTree(n)()
			}
		}
	}
	for i, st := range s.Steps {
		name := st.Name
		if name == "" {
			name = fmt.Sprintf("step %d", i+1)
		}
		start := r.rec.Len()
		err := txn.Run(r.c, func(tx *txn.Tx) error {
			for j := range st.Ops {
				op := &st.Ops[j]
				if err := opFuncs[op.Op](r, tx, op); err != nil {
					return fmt.Errorf("op %d (%s): %w", j+1, op.Op, err)
				}
			}
			return nil
		})
		if err != nil {
			r.log.Info("step failed", "step", name, "error", err)
		}
		res.Steps = append(res.Steps, StepResult{Name: name, Events: r.rec.Since(start), Err: err})
	}
	return res, nil
}

func (r *runner) watch(n *node.Node) {
	if r.watched[n] {
		return
	}
	r.watched[n] = true
	r.rec.AttachSource(n)
}

func (r *runner) build(ns NodeSpec) (*node.Node, error) {
	opts := []node.Option{node.WithID(uuid.NewSHA1(Namespace, []byte(ns.Name)))}
	if ns.Kind != "" {
		opts = append(opts, node.WithKind(ns.Kind))
	}
	for _, k := range slices.Sorted(maps.Keys(ns.Values)) {
		opts = append(opts, node.WithValue(k, ns.Values[k]))
	}
	for _, k := range slices.Sorted(maps.Keys(ns.Refs)) {
		opts = append(opts, node.WithValue(k, r.nodes[ns.Refs[k]]))
	}
	if len(ns.ModifyingKeys) != 0 {
		opts = append(opts, node.WithModifyingKeys(ns.ModifyingKeys...))
	}
	var n *node.Node
	if ns.Collection {
		opts = append(opts, node.WithSetPrefix(r.cfg.SetPrefix))
		n = node.NewSet(opts...).Node
	} else {
		n = node.New(opts...)
	}
	if len(ns.PrimaryKey) != 0 {
		if err := n.DefinePrimaryKey(ns.PrimaryKey...); err != nil {
			return nil, err
		}
	}
	if len(ns.NaturalKey) != 0 {
		if err := n.DefineNaturalKey(ns.NaturalKey...); err != nil {
			return nil, err
		}
	}
	if len(ns.ReadOnly) != 0 {
		if err := n.DefineReadOnly(ns.ReadOnly...); err != nil {
			return nil, err
		}
	}
	return n, nil
}

type opFunc func(r *runner, tx *txn.Tx, op *Op) error

var opFuncs = map[string]opFunc{
	"set": func(r *runner, tx *txn.Tx, op *Op) error {
		v := op.Value
		if op.Ref != "" {
			v = r.nodes[op.Ref]
		}
		return r.nodes[op.Node].Set(tx, op.Key, v)
	},
	"remove": func(r *runner, tx *txn.Tx, op *Op) error {
		return r.nodes[op.Node].Remove(tx, op.Key)
	},
	"modified": func(r *runner, tx *txn.Tx, op *Op) error {
		return r.nodes[op.Node].SetModified(tx, op.Modified)
	},
	"save": func(r *runner, tx *txn.Tx, op *Op) error {
		return r.nodes[op.Node].SetModified(tx, false)
	},
	"add": func(r *runner, tx *txn.Tx, op *Op) error {
		if op.Ref == "" {
			return fmt.Errorf("%w: add needs a ref", ErrInvalid)
		}
		s, err := r.nodes[op.Node].Collection(tx, op.Collection, node.WithSetPrefix(r.cfg.SetPrefix))
		if err != nil {
			return err
		}
		r.watch(s.Node)
		return s.Add(tx, r.nodes[op.Ref])
	},
	"drop": func(r *runner, tx *txn.Tx, op *Op) error {
		s := r.nodes[op.Node].SetOf(op.Collection)
		if s == nil {
			return fmt.Errorf("%w: %q", ErrNoCollection, op.Collection)
		}
		return s.Remove(tx, r.nodes[op.Ref])
	},
	"resource": func(r *runner, tx *txn.Tx, op *Op) error {
		return r.nodes[op.Node].PutResource(tx, op.Key, op.Value)
	},
	"refresh": func(r *runner, tx *txn.Tx, op *Op) error {
		return r.nodes[op.Node].Refresh(tx)
	},
	"modifying": func(r *runner, tx *txn.Tx, op *Op) error {
		return r.nodes[op.Node].AddModifyingKeys(tx, op.Keys...)
	},
	"filter": func(r *runner, tx *txn.Tx, op *Op) error {
		f, err := filter.Compile(op.Expr)
		if err != nil {
			return err
		}
		return r.nodes[op.Node].SetSetModifyFilter(tx, op.Collection, f.ModifyFilter())
	},
}

// Render writes the trace of every step followed by the final state of
// the declared nodes.  A nil c renders without color.
func (r *Result) Render(w io.Writer, c *eventlog.Colors) error {
	for i, st := range r.Steps {
		if _, err := fmt.Fprintf(w, "# step %d: %s\n", i+1, st.Name); err != nil {
			return err
		}
		if err := eventlog.Render(w, st.Events, c); err != nil {
			return err
		}
		if st.Err != nil {
			if _, err := fmt.Fprintf(w, "# error: %v\n", st.Err); err != nil {
				return err
			}
		}
	}
	if _, err := io.WriteString(w, "# state\n"); err != nil {
		return err
	}
	for _, name := range r.names {
		if _, err := io.WriteString(w, stateLine(name, r.nodes[name])+"\n"); err != nil {
			return err
		}
	}
	return nil
}

func stateLine(name string, n *node.Node) string {
	var b strings.Builder
	b.WriteString(name + ": " + n.StringAll())
	if n.IsModified() {
		b.WriteString(" modified")
		if keys := n.ModifiedKeys(); len(keys) != 0 {
			b.WriteString(" keys=" + strings.Join(keys, ","))
		}
	}
	return b.String()
}

// String renders r without color.
func (r *Result) String() string {
	var b strings.Builder
	r.Render(&b, nil)
	return b.String()
}
