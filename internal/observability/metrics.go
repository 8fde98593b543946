package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricRequestsTotal    = "dtefd.requests.total"
	metricRequestDuration  = "dtefd.request.duration.seconds"
	metricErrorsTotal      = "dtefd.errors.total"
	metricInflightRequests = "dtefd.inflight.requests"

	attrOp     = "op"
	attrStatus = "status"

	statusError = "error"
)

// durationBucketBoundaries covers 10ms to 3600s: admin requests are
// sub-second, evaluation pipelines run for minutes, a full backfill can
// run longer.
var durationBucketBoundaries = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300, 900, 3600}

// instrumentSet registers a batch of instruments on one meter, deferring
// the error check to done(). The first registration failure wins; later
// calls still return usable no-op instruments.
type instrumentSet struct {
	meter    metric.Meter
	firstErr error
}

func instrumentsOn(mt metric.Meter) *instrumentSet {
	return &instrumentSet{meter: mt}
}

func (s *instrumentSet) counter(name, desc, unit string) metric.Int64Counter {
	c, err := s.meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	s.record(name, err)

	return c
}

// seconds registers a duration histogram in seconds with explicit bucket
// boundaries. Duration is the only histogram shape the daemon emits.
func (s *instrumentSet) seconds(name, desc string, bounds []float64) metric.Float64Histogram {
	h, err := s.meter.Float64Histogram(name,
		metric.WithDescription(desc),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(bounds...),
	)
	s.record(name, err)

	return h
}

func (s *instrumentSet) upDown(name, desc, unit string) metric.Int64UpDownCounter {
	c, err := s.meter.Int64UpDownCounter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	s.record(name, err)

	return c
}

// observedGauge registers a gauge sampled by a collection callback.
func (s *instrumentSet) observedGauge(name, desc, unit string) metric.Int64ObservableGauge {
	g, err := s.meter.Int64ObservableGauge(name, metric.WithDescription(desc), metric.WithUnit(unit))
	s.record(name, err)

	return g
}

// observedCounter registers a monotonic counter sampled by a collection
// callback, for totals owned by another component (queue, runtime).
func (s *instrumentSet) observedCounter(name, desc, unit string) metric.Int64ObservableCounter {
	c, err := s.meter.Int64ObservableCounter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	s.record(name, err)

	return c
}

func (s *instrumentSet) record(name string, err error) {
	if err != nil && s.firstErr == nil {
		s.firstErr = fmt.Errorf("register %s: %w", name, err)
	}
}

func (s *instrumentSet) done() error {
	return s.firstErr
}

// REDMetrics holds the OTel instruments for Rate, Error, Duration metrics.
type REDMetrics struct {
	requestsTotal    metric.Int64Counter
	requestDuration  metric.Float64Histogram
	errorsTotal      metric.Int64Counter
	inflightRequests metric.Int64UpDownCounter
}

// NewREDMetrics creates RED metric instruments from the given meter.
func NewREDMetrics(mt metric.Meter) (*REDMetrics, error) {
	set := instrumentsOn(mt)

	rm := &REDMetrics{
		requestsTotal:    set.counter(metricRequestsTotal, "Total number of requests", "{request}"),
		requestDuration:  set.seconds(metricRequestDuration, "Request duration in seconds", durationBucketBoundaries),
		errorsTotal:      set.counter(metricErrorsTotal, "Total number of errors", "{error}"),
		inflightRequests: set.upDown(metricInflightRequests, "Number of in-flight requests", "{request}"),
	}

	err := set.done()
	if err != nil {
		return nil, err
	}

	return rm, nil
}

// RecordRequest records a completed request with its operation, status, and duration.
// Safe to call on a nil receiver (no-op).
func (rm *REDMetrics) RecordRequest(ctx context.Context, op, status string, duration time.Duration) {
	if rm == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(attrOp, op),
		attribute.String(attrStatus, status),
	)

	rm.requestsTotal.Add(ctx, 1, attrs)
	rm.requestDuration.Record(ctx, duration.Seconds(), attrs)

	if status == statusError {
		rm.errorsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String(attrOp, op),
		))
	}
}

// TrackInflight increments the in-flight gauge and returns a function to decrement it.
func (rm *REDMetrics) TrackInflight(ctx context.Context, op string) func() {
	if rm == nil {
		return func() {}
	}

	attrs := metric.WithAttributes(attribute.String(attrOp, op))
	rm.inflightRequests.Add(ctx, 1, attrs)

	return func() {
		rm.inflightRequests.Add(ctx, -1, attrs)
	}
}
