package txn

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/signadot/nodegraph/event"
)

// recOp appends to a shared log on apply and undo.
type recOp struct {
	name string
	log  *[]string
	fail bool
	emit bool
}

func (o *recOp) Apply(tx *Tx) error {
	*o.log = append(*o.log, "apply:"+o.name)
	if o.emit {
		tx.Emit(func() { *o.log = append(*o.log, "event:"+o.name) })
	}
	if o.fail {
		return errors.New(o.name + " failed")
	}
	return nil
}

func (o *recOp) Undo() {
	*o.log = append(*o.log, "undo:"+o.name)
}

// setOp merges with later setOps on the same key.
type setOp struct {
	key, val string
	store    map[string]string
	old      string
}

func (o *setOp) Apply(*Tx) error {
	o.old = o.store[o.key]
	o.store[o.key] = o.val
	return nil
}

func (o *setOp) Undo() { o.store[o.key] = o.old }

func (o *setOp) MergeKey() any { return o.key }

func (o *setOp) Merge(later Op) bool {
	l, ok := later.(*setOp)
	if !ok {
		return false
	}
	o.val = l.val
	return true
}

func lifecycle(c *Coordinator, log *[]string) {
	c.RegisterAll(func(ev event.Event) {
		*log = append(*log, ev.Type.String())
	})
}

func TestCommitOrder(t *testing.T) {
	c := New(nil)
	var log []string
	lifecycle(c, &log)

	err := Run(c, func(tx *Tx) error {
		if err := tx.SubmitFinal(&recOp{name: "final", log: &log, emit: true}); err != nil {
			return err
		}
		if err := tx.Submit(&recOp{name: "a", log: &log, emit: true}); err != nil {
			return err
		}
		return tx.Submit(&recOp{name: "b", log: &log, emit: true})
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		"COMMIT_BEGIN",
		"apply:a", "apply:b", "apply:final",
		"event:a", "event:b", "event:final",
		"COMMIT_SUCCESS", "COMMIT_END",
	}
	if diff := cmp.Diff(want, log); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if c.Current() != nil {
		t.Error("coordinator still has a current transaction")
	}
}

func TestCommitFailureUndoesInReverse(t *testing.T) {
	c := New(nil)
	var log []string
	lifecycle(c, &log)

	tx := c.Begin()
	tx.Submit(&recOp{name: "a", log: &log, emit: true})
	tx.Submit(&recOp{name: "b", log: &log, emit: true})
	tx.SubmitFinal(&recOp{name: "final", log: &log, fail: true})
	err := tx.Commit()
	if !errors.Is(err, ErrCommitFailed) {
		t.Fatalf("Commit() = %v, want ErrCommitFailed", err)
	}
	want := []string{
		"COMMIT_BEGIN",
		"apply:a", "apply:b", "apply:final",
		"undo:final", "undo:b", "undo:a",
		"COMMIT_FAILURE", "COMMIT_END",
	}
	if diff := cmp.Diff(want, log); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if !tx.Done() {
		t.Error("transaction not done after failed commit")
	}
	if err := tx.Submit(&recOp{name: "late", log: &log}); !errors.Is(err, ErrDone) {
		t.Errorf("Submit after commit = %v, want ErrDone", err)
	}
}

func TestNestedCollapse(t *testing.T) {
	c := New(nil)
	var log []string
	lifecycle(c, &log)

	outer := c.Begin()
	inner := c.Begin()
	if inner != outer {
		t.Fatal("nested Begin returned a different handle")
	}
	if inner.Depth() != 2 {
		t.Fatalf("Depth() = %d, want 2", inner.Depth())
	}
	inner.Submit(&recOp{name: "a", log: &log})
	if err := inner.Commit(); err != nil {
		t.Fatal(err)
	}
	if len(log) != 0 {
		t.Fatalf("inner commit applied ops: %v", log)
	}
	if err := outer.Commit(); err != nil {
		t.Fatal(err)
	}
	want := []string{"COMMIT_BEGIN", "apply:a", "COMMIT_SUCCESS", "COMMIT_END"}
	if diff := cmp.Diff(want, log); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestNestedRollbackMarksRollbackOnly(t *testing.T) {
	c := New(nil)
	var log []string
	lifecycle(c, &log)

	outer := c.Begin()
	outer.Submit(&recOp{name: "a", log: &log})
	inner := c.Begin()
	inner.Rollback()
	if err := outer.Commit(); !errors.Is(err, ErrRollbackOnly) {
		t.Fatalf("Commit() = %v, want ErrRollbackOnly", err)
	}
	if len(log) != 0 {
		t.Errorf("rollback only transaction applied or fired: %v", log)
	}
	if c.Current() != nil {
		t.Error("coordinator still has a current transaction")
	}
}

func TestRunRollsBackOnError(t *testing.T) {
	c := New(nil)
	var log []string
	boom := errors.New("boom")
	err := Run(c, func(tx *Tx) error {
		tx.Submit(&recOp{name: "a", log: &log})
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Run() = %v, want boom", err)
	}
	if len(log) != 0 {
		t.Errorf("ops applied after error: %v", log)
	}
}

func TestMergeCollapses(t *testing.T) {
	c := New(nil)
	store := map[string]string{"k": "1"}
	tx := c.Begin()
	tx.Submit(&setOp{key: "k", val: "2", store: store})
	tx.Submit(&setOp{key: "k", val: "3", store: store})
	tx.Submit(&setOp{key: "j", val: "x", store: store})
	if tx.Len() != 2 {
		t.Errorf("Len() = %d, want 2", tx.Len())
	}
	op, ok := tx.Lookup("k").(*setOp)
	if !ok || op.val != "3" {
		t.Errorf("Lookup(k) = %v", tx.Lookup("k"))
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}
	want := map[string]string{"k": "3", "j": "x"}
	if diff := cmp.Diff(want, store); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestFinalDedup(t *testing.T) {
	c := New(nil)
	store := map[string]string{}
	tx := c.Begin()
	tx.SubmitFinal(&setOp{key: "k", val: "a", store: store})
	tx.SubmitFinal(&setOp{key: "k", val: "b", store: store})
	if tx.Len() != 1 {
		t.Errorf("Len() = %d, want 1", tx.Len())
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}
	if store["k"] != "b" {
		t.Errorf("k = %q, want b", store["k"])
	}
}

// chainOp submits more work while committing.
type chainOp struct {
	log *[]string
}

func (o *chainOp) Apply(tx *Tx) error {
	*o.log = append(*o.log, "apply:chain")
	tx.Submit(&recOp{name: "late", log: o.log})
	return tx.SubmitFinal(&recOp{name: "lateFinal", log: o.log})
}

func (o *chainOp) Undo() {}

func TestSubmitWhileCommitting(t *testing.T) {
	c := New(nil)
	var log []string
	err := Run(c, func(tx *Tx) error {
		tx.SubmitFinal(&recOp{name: "final", log: &log})
		return tx.Submit(&chainOp{log: &log})
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"apply:chain", "apply:late", "apply:final", "apply:lateFinal"}
	if diff := cmp.Diff(want, log); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestListenerTransactionDuringFlush(t *testing.T) {
	c := New(nil)
	var log []string
	triggered := false
	err := Run(c, func(tx *Tx) error {
		tx.Emit(func() {
			if triggered {
				return
			}
			triggered = true
			if err := Run(c, func(tx2 *Tx) error {
				if tx2 == tx {
					t.Error("listener joined a finished transaction")
				}
				return tx2.Submit(&recOp{name: "reaction", log: &log})
			}); err != nil {
				t.Error(err)
			}
		})
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"apply:reaction"}, log); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestCommitTwice(t *testing.T) {
	c := New(&Config{Name: "prefs"})
	if c.String() != "prefs" {
		t.Errorf("String() = %q", c.String())
	}
	tx := c.Begin()
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}
	if err := tx.Commit(); !errors.Is(err, ErrDone) {
		t.Errorf("second Commit() = %v, want ErrDone", err)
	}
	tx.Rollback()
}
