package txn

import (
	"fmt"
	"log/slog"

	"github.com/signadot/nodegraph/debug"
	"github.com/signadot/nodegraph/event"
)

// Op is a unit of work submitted to a transaction.  Ops are applied in
// submission order when the outermost transaction commits.
//
// If a commit fails, Undo is called on every op whose Apply was started,
// including the failing one, in reverse order.  Undo must restore exactly
// the state seen before Apply.
type Op interface {
	Apply(tx *Tx) error
	Undo()
}

// Mergeable ops collapse with a pending op of the same MergeKey while the
// transaction is open.  Merge is called on the earlier op with the later
// one and reports whether the later op was absorbed.
type Mergeable interface {
	Op
	MergeKey() any
	Merge(later Op) bool
}

// Config holds configuration for a Coordinator.
type Config struct {
	Name string       // name used as event source (default "txn")
	Log  *slog.Logger // Logger (optional)
}

// Coordinator hands out transactions.  At most one transaction is open at
// a time; Begin while one is open joins it.
//
// The coordinator is NOT safe for concurrent use.
type Coordinator struct {
	name      string
	log       *slog.Logger
	listeners *event.Registry
	cur       *Tx
	seq       int64
}

func New(cfg *Config) *Coordinator {
	if cfg == nil {
		cfg = &Config{}
	}
	name := cfg.Name
	if name == "" {
		name = "txn"
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{
		name:      name,
		log:       log.With("component", "txn"),
		listeners: event.NewRegistry(),
	}
}

func (c *Coordinator) String() string {
	return c.name
}

// Begin opens a transaction, or joins the one already open.  Every Begin
// must be matched by one Commit or Rollback.
func (c *Coordinator) Begin() *Tx {
	if c.cur != nil {
		c.cur.depth++
		return c.cur
	}
	c.seq++
	tx := &Tx{
		c:            c,
		id:           c.seq,
		depth:        1,
		pending:      map[any]Mergeable{},
		finalPending: map[any]Mergeable{},
	}
	c.cur = tx
	if debug.Txn() {
		debug.Logf("txn %d: begin\n", tx.id)
	}
	return tx
}

// Current returns the open transaction or nil.
func (c *Coordinator) Current() *Tx {
	return c.cur
}

func (c *Coordinator) Register(t event.Type, h event.Handler) event.Handle {
	return c.listeners.Register(t, h)
}

func (c *Coordinator) RegisterAll(h event.Handler) event.Handle {
	return c.listeners.RegisterAll(h)
}

func (c *Coordinator) Unregister(h event.Handle) bool {
	return c.listeners.Unregister(h)
}

func (c *Coordinator) EventHandlers() map[event.Type][]event.Handler {
	return c.listeners.Handlers()
}

func (c *Coordinator) fire(t event.Type) {
	c.listeners.Dispatch(event.Event{Source: c, Type: t})
}

type state int

const (
	open state = iota
	committing
	done
)

// Tx is a transaction handle.  Nested Begin calls return the same handle.
type Tx struct {
	c            *Coordinator
	id           int64
	depth        int
	state        state
	rollbackOnly bool

	ops          []Op
	finals       []Op
	pending      map[any]Mergeable
	finalPending map[any]Mergeable
	events       []func()
}

func (tx *Tx) ID() int64 {
	return tx.id
}

func (tx *Tx) Coordinator() *Coordinator {
	return tx.c
}

// Depth is the number of unmatched Begin calls.
func (tx *Tx) Depth() int {
	return tx.depth
}

// Committing reports whether ops are currently being applied.
func (tx *Tx) Committing() bool {
	return tx.state == committing
}

// Done reports whether the transaction committed or rolled back.
func (tx *Tx) Done() bool {
	return tx.state == done
}

// Submit adds op to the transaction.  While the transaction is open a
// Mergeable op is merged into a pending op with the same key when
// possible.  Ops submitted while committing are applied after the ones
// already queued.
func (tx *Tx) Submit(op Op) error {
	if tx.state == done {
		return ErrDone
	}
	if m, ok := op.(Mergeable); ok && tx.state == open {
		key := m.MergeKey()
		if prev, ok := tx.pending[key]; ok && prev.Merge(op) {
			return nil
		}
		tx.pending[key] = m
	}
	tx.ops = append(tx.ops, op)
	return nil
}

// SubmitFinal adds op to the final phase, which runs after all regular
// ops.  A Mergeable final op is merged into a not yet applied final op
// with the same key.
func (tx *Tx) SubmitFinal(op Op) error {
	if tx.state == done {
		return ErrDone
	}
	if m, ok := op.(Mergeable); ok {
		key := m.MergeKey()
		if prev, ok := tx.finalPending[key]; ok && prev.Merge(op) {
			return nil
		}
		tx.finalPending[key] = m
	}
	tx.finals = append(tx.finals, op)
	return nil
}

// Lookup returns the pending regular op with the given merge key, or nil.
func (tx *Tx) Lookup(key any) Op {
	if tx.state != open {
		return nil
	}
	if op, ok := tx.pending[key]; ok {
		return op
	}
	return nil
}

// Len returns the number of queued regular and final ops.
func (tx *Tx) Len() int {
	return len(tx.ops) + len(tx.finals)
}

// Emit buffers a delivery.  Buffered deliveries run in order after a
// successful commit and are dropped on failure.
func (tx *Tx) Emit(deliver func()) {
	tx.events = append(tx.events, deliver)
}

// Rollback discards the transaction.  Called on a nested handle it only
// marks the transaction so that the outermost Commit fails.
func (tx *Tx) Rollback() {
	if tx.state == done {
		return
	}
	if tx.depth > 1 {
		tx.depth--
		tx.rollbackOnly = true
		return
	}
	tx.c.log.Debug("rollback", "tx", tx.id, "ops", tx.Len())
	tx.finish()
}

func (tx *Tx) finish() {
	tx.state = done
	tx.depth = 0
	tx.ops, tx.finals, tx.events = nil, nil, nil
	tx.pending, tx.finalPending = nil, nil
	if tx.c.cur == tx {
		tx.c.cur = nil
	}
}

// Commit applies the transaction.  Called on a nested handle it only
// closes that level.
//
// The outermost Commit fires COMMIT_BEGIN, applies regular ops then final
// ops in submission order, and on success flushes buffered deliveries and
// fires COMMIT_SUCCESS and COMMIT_END.  On failure every started op is
// undone in reverse order, deliveries are dropped, COMMIT_FAILURE and
// COMMIT_END are fired and the error wraps ErrCommitFailed.
func (tx *Tx) Commit() error {
	if tx.state == done {
		return ErrDone
	}
	if tx.state == committing {
		return fmt.Errorf("%w: commit called while committing", ErrCommitFailed)
	}
	if tx.depth > 1 {
		tx.depth--
		return nil
	}
	if tx.rollbackOnly {
		tx.c.log.Debug("rollback only", "tx", tx.id)
		tx.finish()
		return ErrRollbackOnly
	}
	c := tx.c
	tx.state = committing
	c.fire(event.CommitBegin)

	var started []Op
	i, j := 0, 0
	for {
		var op Op
		switch {
		case i < len(tx.ops):
			op = tx.ops[i]
			i++
		case j < len(tx.finals):
			op = tx.finals[j]
			j++
			if m, ok := op.(Mergeable); ok && tx.finalPending[m.MergeKey()] == m {
				delete(tx.finalPending, m.MergeKey())
			}
		}
		if op == nil {
			break
		}
		if debug.Txn() {
			debug.Logf("txn %d: apply %T\n", tx.id, op)
		}
		started = append(started, op)
		if err := op.Apply(tx); err != nil {
			for k := len(started) - 1; k >= 0; k-- {
				started[k].Undo()
			}
			c.log.Warn("commit failed", "tx", tx.id, "op", fmt.Sprintf("%T", op), "error", err)
			tx.finish()
			c.fire(event.CommitFailure)
			c.fire(event.CommitEnd)
			return fmt.Errorf("%w: %w", ErrCommitFailed, err)
		}
	}
	events := tx.events
	c.log.Debug("commit", "tx", tx.id, "ops", len(started), "events", len(events))
	tx.finish()
	for _, deliver := range events {
		deliver()
	}
	c.fire(event.CommitSuccess)
	c.fire(event.CommitEnd)
	return nil
}

// Run runs fn in a transaction from c, committing if fn succeeds and
// rolling back otherwise.
func Run(c *Coordinator, fn func(tx *Tx) error) error {
	tx := c.Begin()
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
