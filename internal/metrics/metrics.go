// Package metrics exports task engine activity to Prometheus.
//
// Metrics subscribes to the plugin registry's event bus and turns task and
// plugin events into counters and histograms. QueueCollector reads the task
// queue lazily on each scrape.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"curator/internal/plugin"
	"curator/internal/taskerr"
)

const namespace = "curator"

// Metrics holds the event driven collectors.
type Metrics struct {
	TaskRuns       *prometheus.CounterVec
	TaskReruns     *prometheus.CounterVec
	Entries        *prometheus.CounterVec
	PluginDuration *prometheus.HistogramVec
	PluginErrors   *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TaskRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "task",
			Name:      "runs_total",
			Help:      "Finished task executions by outcome.",
		}, []string{"task", "outcome"}),
		TaskReruns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "task",
			Name:      "reruns_total",
			Help:      "Extra passes run because a component requested a rerun.",
		}, []string{"task"}),
		Entries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "task",
			Name:      "entries_total",
			Help:      "Entries seen in the final pass of each execution by state.",
		}, []string{"task", "state"}),
		PluginDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "plugin",
			Name:      "duration_seconds",
			Help:      "Duration of one component invocation.",
			Buckets:   []float64{0.001, 0.005, 0.025, 0.1, 0.25, 1, 2.5, 10, 30},
		}, []string{"phase", "plugin"}),
		PluginErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "plugin",
			Name:      "errors_total",
			Help:      "Component invocations that returned an error, by taxonomy kind.",
		}, []string{"phase", "plugin", "kind"}),
	}

	reg.MustRegister(
		m.TaskRuns,
		m.TaskReruns,
		m.Entries,
		m.PluginDuration,
		m.PluginErrors,
	)
	return m
}

// Subscribe feeds m from bus until the returned function is called.
func (m *Metrics) Subscribe(bus *plugin.Bus) func() {
	return bus.Subscribe(m.Observe)
}

// Observe records one event.
func (m *Metrics) Observe(evt plugin.Event) {
	switch evt.Kind {
	case plugin.EventAfterPlugin:
		m.PluginDuration.WithLabelValues(string(evt.Phase), evt.Plugin).Observe(evt.Duration.Seconds())
		if evt.Err != nil {
			m.PluginErrors.WithLabelValues(string(evt.Phase), evt.Plugin, string(taskerr.KindOf(evt.Err))).Inc()
		}
	case plugin.EventTaskFinished:
		m.TaskRuns.WithLabelValues(evt.Task, evt.Outcome).Inc()
		if evt.Reruns > 0 {
			m.TaskReruns.WithLabelValues(evt.Task).Add(float64(evt.Reruns))
		}
		for state, n := range map[string]int{
			"accepted":  evt.Counts.Accepted,
			"rejected":  evt.Counts.Rejected,
			"failed":    evt.Counts.Failed,
			"undecided": evt.Counts.Undecided,
		} {
			if n > 0 {
				m.Entries.WithLabelValues(evt.Task, state).Add(float64(n))
			}
		}
	}
}
