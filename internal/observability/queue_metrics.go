package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/metric"

	"github.com/collect-intel/dtef-app-sub001/internal/queue"
)

const (
	metricQueueActive          = "dtefd.queue.active"
	metricQueueWaiting         = "dtefd.queue.waiting"
	metricQueueBackfillRunning = "dtefd.queue.backfill.running"
	metricQueueEnqueuedTotal   = "dtefd.queue.enqueued.total"
	metricQueueCompletedTotal  = "dtefd.queue.completed.total"
	metricQueueFailedTotal     = "dtefd.queue.failed.total"
	metricQueueBackfillsTotal  = "dtefd.queue.backfills.total"
)

// StatsFunc supplies the current queue snapshot on each collection cycle.
type StatsFunc func() queue.Stats

// QueueMetrics exposes evaluation-queue state as OTel instruments. Gauges
// and counters are read from the queue snapshot on each collection cycle;
// no manual polling is needed.
type QueueMetrics struct {
	stats StatsFunc

	active          metric.Int64ObservableGauge
	waiting         metric.Int64ObservableGauge
	backfillRunning metric.Int64ObservableGauge
	enqueuedTotal   metric.Int64ObservableCounter
	completedTotal  metric.Int64ObservableCounter
	failedTotal     metric.Int64ObservableCounter
	backfillsTotal  metric.Int64ObservableCounter
}

// NewQueueMetrics registers queue instruments on the meter, backed by stats.
func NewQueueMetrics(mt metric.Meter, stats StatsFunc) (*QueueMetrics, error) {
	set := instrumentsOn(mt)

	qm := &QueueMetrics{
		stats:           stats,
		active:          set.observedGauge(metricQueueActive, "Evaluations currently running", "{job}"),
		waiting:         set.observedGauge(metricQueueWaiting, "Evaluations waiting in the queue", "{job}"),
		backfillRunning: set.observedGauge(metricQueueBackfillRunning, "Whether the drain-time backfill is running", "1"),
		enqueuedTotal:   set.observedCounter(metricQueueEnqueuedTotal, "Total evaluations enqueued", "{job}"),
		completedTotal:  set.observedCounter(metricQueueCompletedTotal, "Total evaluations completed", "{job}"),
		failedTotal:     set.observedCounter(metricQueueFailedTotal, "Total evaluations failed", "{job}"),
		backfillsTotal:  set.observedCounter(metricQueueBackfillsTotal, "Total drain-time backfills", "{backfill}"),
	}

	err := set.done()
	if err != nil {
		return nil, err
	}

	_, err = mt.RegisterCallback(qm.observe,
		qm.active, qm.waiting, qm.backfillRunning,
		qm.enqueuedTotal, qm.completedTotal, qm.failedTotal, qm.backfillsTotal,
	)
	if err != nil {
		return nil, fmt.Errorf("register queue metrics callback: %w", err)
	}

	return qm, nil
}

// observe reads one queue snapshot and reports it to the OTel observer.
func (qm *QueueMetrics) observe(_ context.Context, obs metric.Observer) error {
	s := qm.stats()

	obs.ObserveInt64(qm.active, int64(s.Active))
	obs.ObserveInt64(qm.waiting, int64(s.Queued))
	obs.ObserveInt64(qm.backfillRunning, boolToInt64(s.BackfillRunning))
	obs.ObserveInt64(qm.enqueuedTotal, s.TotalEnqueued)
	obs.ObserveInt64(qm.completedTotal, s.TotalCompleted)
	obs.ObserveInt64(qm.failedTotal, s.TotalFailed)
	obs.ObserveInt64(qm.backfillsTotal, s.TotalBackfills)

	return nil
}

func boolToInt64(v bool) int64 {
	if v {
		return 1
	}

	return 0
}
