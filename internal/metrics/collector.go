package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"curator/internal/taskqueue"
)

// QueueSource is the part of the task queue the collector reads.
type QueueSource interface {
	Running() (taskqueue.Info, bool)
	Pending() []taskqueue.Info
}

// QueueCollector reports queue depth and the running task on each scrape
// instead of tracking its own copy of the queue state.
type QueueCollector struct {
	queue QueueSource

	pending *prometheus.Desc
	running *prometheus.Desc
}

// NewQueueCollector creates a collector over q.
func NewQueueCollector(q QueueSource) *QueueCollector {
	return &QueueCollector{
		queue: q,
		pending: prometheus.NewDesc(
			namespace+"_queue_pending",
			"Tasks waiting in the queue.",
			nil, nil,
		),
		running: prometheus.NewDesc(
			namespace+"_queue_running",
			"1 while the named task is executing.",
			[]string{"task"}, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *QueueCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.pending
	ch <- c.running
}

// Collect implements prometheus.Collector.
func (c *QueueCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.pending, prometheus.GaugeValue, float64(len(c.queue.Pending())))
	if info, ok := c.queue.Running(); ok {
		ch <- prometheus.MustNewConstMetric(c.running, prometheus.GaugeValue, 1, info.Name)
	}
}
