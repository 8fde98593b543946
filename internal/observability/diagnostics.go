package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"go.opentelemetry.io/otel/metric"
)

// DiagnosticsServer exposes health, readiness, and Prometheus metrics
// endpoints over HTTP for operational monitoring.
type DiagnosticsServer struct {
	server   *http.Server
	listener net.Listener
	meter    metric.Meter
}

// NewDiagnosticsServer starts an HTTP server at addr with /healthz, /readyz,
// and /metrics endpoints. Go runtime metrics are always registered on the
// scrape meter; when queueStats is non-nil, queue depth and lifetime
// counters are too. Readiness probes gate /readyz.
func NewDiagnosticsServer(addr string, queueStats StatsFunc, probes ...ReadyProbe) (*DiagnosticsServer, error) {
	mux := http.NewServeMux()

	mux.Handle("/healthz", HealthHandler())
	mux.Handle("/readyz", ReadyHandler(probes...))

	metricsHandler, mp, err := PrometheusHandler()
	if err != nil {
		return nil, fmt.Errorf("create prometheus handler: %w", err)
	}

	mux.Handle("/metrics", metricsHandler)

	mt := mp.Meter(meterName)

	_, err = NewRuntimeMetrics(mt)
	if err != nil {
		return nil, fmt.Errorf("register runtime metrics: %w", err)
	}

	if queueStats != nil {
		_, err = NewQueueMetrics(mt, queueStats)
		if err != nil {
			return nil, fmt.Errorf("register queue metrics: %w", err)
		}
	}

	var lc net.ListenConfig

	listener, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	srv := &http.Server{Handler: mux}

	go func() {
		serveErr := srv.Serve(listener)
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			slog.Warn("diagnostics server stopped", "error", serveErr)
		}
	}()

	return &DiagnosticsServer{server: srv, listener: listener, meter: mt}, nil
}

// Addr returns the address the server is listening on.
func (d *DiagnosticsServer) Addr() string {
	return d.listener.Addr().String()
}

// Meter returns the scrape-backed meter. Instruments registered on it
// appear in /metrics output.
func (d *DiagnosticsServer) Meter() metric.Meter {
	return d.meter
}

// Close gracefully shuts down the diagnostics server.
func (d *DiagnosticsServer) Close() error {
	err := d.server.Shutdown(context.Background())
	if err != nil {
		return fmt.Errorf("shutdown diagnostics server: %w", err)
	}

	return nil
}
