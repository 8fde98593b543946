package observability

import (
	"context"
	"math"
	runtimemetrics "runtime/metrics"

	"go.opentelemetry.io/otel/metric"
)

const (
	metricGoroutines        = "dtefd.runtime.goroutines"
	metricThreads           = "dtefd.runtime.threads"
	metricGoroutinesCreated = "dtefd.runtime.goroutines.created"

	// runtime/metrics sample names.
	sampleGoroutines        = "/sched/goroutines:goroutines"
	sampleThreads           = "/sched/threads:threads"
	sampleGoroutinesCreated = "/sched/goroutines-created:goroutines"
)

// RuntimeMetrics exposes Go runtime scheduler metrics as OTel instruments.
// Goroutine and thread counts are read from runtime/metrics on each
// collection cycle.
type RuntimeMetrics struct {
	goroutines        metric.Int64ObservableGauge
	threads           metric.Int64ObservableGauge
	goroutinesCreated metric.Int64ObservableCounter
}

// NewRuntimeMetrics creates OTel instruments backed by runtime/metrics.
// The meter's reader invokes the callback automatically; no manual polling
// is needed.
func NewRuntimeMetrics(mt metric.Meter) (*RuntimeMetrics, error) {
	set := instrumentsOn(mt)

	rm := &RuntimeMetrics{
		goroutines:        set.observedGauge(metricGoroutines, "Current number of live goroutines", "{goroutine}"),
		threads:           set.observedGauge(metricThreads, "Current number of OS threads created by the Go runtime", "{thread}"),
		goroutinesCreated: set.observedCounter(metricGoroutinesCreated, "Total goroutines created since process start", "{goroutine}"),
	}

	err := set.done()
	if err != nil {
		return nil, err
	}

	_, err = mt.RegisterCallback(rm.observe, rm.goroutines, rm.threads, rm.goroutinesCreated)
	if err != nil {
		return nil, err
	}

	return rm, nil
}

// observe reads runtime/metrics samples and reports them to the OTel observer.
func (rm *RuntimeMetrics) observe(_ context.Context, obs metric.Observer) error {
	samples := []runtimemetrics.Sample{
		{Name: sampleGoroutines},
		{Name: sampleThreads},
		{Name: sampleGoroutinesCreated},
	}

	runtimemetrics.Read(samples)

	for idx := range samples {
		val, ok := sampleInt64Value(samples[idx].Value)
		if !ok {
			continue
		}

		switch samples[idx].Name {
		case sampleGoroutines:
			obs.ObserveInt64(rm.goroutines, val)
		case sampleThreads:
			obs.ObserveInt64(rm.threads, val)
		case sampleGoroutinesCreated:
			obs.ObserveInt64(rm.goroutinesCreated, val)
		}
	}

	return nil
}

// sampleInt64Value extracts an int64 from a runtime/metrics value,
// handling both Uint64 and Float64 kinds.
func sampleInt64Value(val runtimemetrics.Value) (int64, bool) {
	switch val.Kind() {
	case runtimemetrics.KindUint64:
		u := val.Uint64()
		if u > uint64(math.MaxInt64) {
			return math.MaxInt64, true
		}

		return int64(u), true
	case runtimemetrics.KindFloat64:
		return int64(val.Float64()), true
	case runtimemetrics.KindBad, runtimemetrics.KindFloat64Histogram:
		return 0, false
	default:
		return 0, false
	}
}
