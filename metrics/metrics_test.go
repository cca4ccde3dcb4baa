package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signadot/nodegraph/node"
	"github.com/signadot/nodegraph/txn"
)

func newTestMetrics(t *testing.T) (*Metrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)
	return m, reg
}

func TestRegisterTwice(t *testing.T) {
	_, reg := newTestMetrics(t)
	_, err := New(reg)
	require.Error(t, err)
}

func TestObserveTree(t *testing.T) {
	m, _ := newTestMetrics(t)
	c := txn.New(nil)
	child := node.New()
	root := node.New(node.WithValue("c", child))
	stop := m.ObserveTree(root)

	require.NoError(t, txn.Run(c, func(tx *txn.Tx) error { return child.Set(tx, "x", 1) }))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsTotal.WithLabelValues("VALUE_CHANGED")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.EventsTotal.WithLabelValues("MODIFIED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsTotal.WithLabelValues("NODE_CHANGED")))

	stop()
	require.NoError(t, txn.Run(c, func(tx *txn.Tx) error { return child.Set(tx, "x", 2) }))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsTotal.WithLabelValues("VALUE_CHANGED")))
}

func TestObserveCoordinator(t *testing.T) {
	m, reg := newTestMetrics(t)
	c := txn.New(nil)
	defer m.ObserveCoordinator(c)()

	n := node.New()
	require.NoError(t, txn.Run(c, func(tx *txn.Tx) error { return n.Set(tx, "k", 1) }))
	require.NoError(t, txn.Run(c, func(tx *txn.Tx) error { return n.Set(tx, "k", 2) }))

	x, y := node.New(), node.New()
	err := txn.Run(c, func(tx *txn.Tx) error {
		if err := x.Set(tx, "y", y); err != nil {
			return err
		}
		return y.Set(tx, "x", x)
	})
	require.True(t, errors.Is(err, node.ErrCircularReference))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CommitsTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CommitsTotal.WithLabelValues("failure")))

	count, err := testutil.GatherAndCount(reg, "nodegraph_commit_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
