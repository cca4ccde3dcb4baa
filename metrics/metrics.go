// Package metrics exports event and commit counters to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/signadot/nodegraph/event"
)

const namespace = "nodegraph"

// Observable is a node or a coordinator.
type Observable interface {
	RegisterAll(event.Handler) event.Handle
	Unregister(event.Handle) bool
}

type Metrics struct {
	// EventsTotal counts delivered node events by type.
	EventsTotal *prometheus.CounterVec
	// CommitsTotal counts finished commits by result (success, failure).
	CommitsTotal *prometheus.CounterVec
	// CommitDuration measures COMMIT_BEGIN to COMMIT_END.
	CommitDuration prometheus.Histogram
}

// New creates the metrics and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		EventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_total",
				Help:      "Node events delivered to observed trees by type",
			},
			[]string{"type"},
		),
		CommitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "commits_total",
				Help:      "Finished outermost commits by result",
			},
			[]string{"result"},
		),
		CommitDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "commit_duration_seconds",
				Help:      "Time from commit begin to commit end in seconds",
				Buckets:   []float64{.00001, .0001, .001, .01, .1, 1},
			},
		),
	}
	for _, c := range []prometheus.Collector{m.EventsTotal, m.CommitsTotal, m.CommitDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveTree counts every node event delivered to root, which includes
// the events of all its descendants.  The returned func stops counting.
func (m *Metrics) ObserveTree(root Observable) func() {
	h := root.RegisterAll(func(ev event.Event) {
		if ev.Type.IsLifecycle() {
			return
		}
		m.EventsTotal.WithLabelValues(ev.Type.String()).Inc()
	})
	return func() { root.Unregister(h) }
}

// ObserveCoordinator counts the commits of c and measures their duration.
func (m *Metrics) ObserveCoordinator(c Observable) func() {
	var (
		start  time.Time
		result string
	)
	h := c.RegisterAll(func(ev event.Event) {
		switch ev.Type {
		case event.CommitBegin:
			start = time.Now()
			result = ""
		case event.CommitSuccess:
			result = "success"
		case event.CommitFailure:
			result = "failure"
		case event.CommitEnd:
			if result == "" {
				return
			}
			m.CommitsTotal.WithLabelValues(result).Inc()
			m.CommitDuration.Observe(time.Since(start).Seconds())
		}
	})
	return func() { c.Unregister(h) }
}
