// Package server exposes the orchestrator's admin HTTP API: manual schedule
// ticks and a status snapshot, protected by a shared-secret header.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/collect-intel/dtef-app-sub001/internal/observability"
	"github.com/collect-intel/dtef-app-sub001/internal/queue"
	"github.com/collect-intel/dtef-app-sub001/internal/scheduler"
)

const (
	// AuthHeader carries the shared admin secret.
	AuthHeader = "X-Admin-Secret"

	// scheduleTimeout bounds one manually triggered discovery pass.
	scheduleTimeout = 10 * time.Minute
)

// Ticker runs one scheduling pass. Implemented by [scheduler.Scheduler].
type Ticker interface {
	Tick(ctx context.Context, opts scheduler.TickOptions) (scheduler.TickReport, error)
}

// Deps holds injectable dependencies for the admin server.
// Zero-value fields use production defaults.
type Deps struct {
	// Scheduler handles manual schedule requests. Required.
	Scheduler Ticker

	// QueueStats supplies the current queue snapshot. Required.
	QueueStats func() queue.Stats

	// Secret is the shared admin secret. Empty disables authentication.
	Secret string

	// Version is reported in status responses.
	Version string

	// Metrics is an optional RED metrics recorder. Nil disables per-request metrics.
	Metrics *observability.REDMetrics

	// Logger is an optional structured logger. Nil uses slog default.
	Logger *slog.Logger
}

// Server is the admin HTTP server.
type Server struct {
	deps     Deps
	server   *http.Server
	listener net.Listener
}

// ErrMissingDependency reports a Deps field left unset.
var ErrMissingDependency = errors.New("missing server dependency")

// New starts the admin server at addr. The caller owns shutdown via Close.
func New(addr string, deps Deps) (*Server, error) {
	if deps.Scheduler == nil || deps.QueueStats == nil {
		return nil, ErrMissingDependency
	}

	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	srv := &Server{deps: deps}

	mux := http.NewServeMux()
	mux.Handle("POST /api/admin/schedule", srv.instrument("schedule", srv.authenticate(srv.handleSchedule)))
	mux.Handle("GET /api/status", srv.instrument("status", srv.authenticate(srv.handleStatus)))

	var lc net.ListenConfig

	listener, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	srv.listener = listener
	srv.server = &http.Server{Handler: mux}

	go func() {
		serveErr := srv.server.Serve(listener)
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			deps.Logger.Warn("admin server stopped", "error", serveErr)
		}
	}()

	return srv, nil
}

// Addr returns the address the server is listening on.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Close gracefully shuts down the admin server.
func (s *Server) Close() error {
	err := s.server.Shutdown(context.Background())
	if err != nil {
		return fmt.Errorf("shutdown admin server: %w", err)
	}

	return nil
}

// authenticate rejects requests whose shared-secret header does not match.
// With no secret configured all requests pass.
func (s *Server) authenticate(next http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, hr *http.Request) {
		if s.deps.Secret != "" && hr.Header.Get(AuthHeader) != s.deps.Secret {
			writeError(rw, http.StatusUnauthorized, "unauthorized")

			return
		}

		next(rw, hr)
	}
}

// instrument records RED metrics for one admin operation.
func (s *Server) instrument(op string, next http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, hr *http.Request) {
		start := time.Now()
		release := s.deps.Metrics.TrackInflight(hr.Context(), op)

		recorder := &statusRecorder{ResponseWriter: rw, status: http.StatusOK}
		next(recorder, hr)

		release()

		status := "ok"
		if recorder.status >= http.StatusInternalServerError {
			status = "error"
		}

		s.deps.Metrics.RecordRequest(hr.Context(), op, status, time.Since(start))
	}
}

// statusRecorder captures the response status for metrics.
type statusRecorder struct {
	http.ResponseWriter

	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// ScheduleRequest is the body of POST /api/admin/schedule.
type ScheduleRequest struct {
	// Force schedules blueprints even when a fresh run exists.
	Force bool `json:"force"`

	// Limit caps the number of evaluations scheduled in this pass.
	// Zero uses the configured batch limit.
	Limit int `json:"limit"`
}

func (s *Server) handleSchedule(rw http.ResponseWriter, hr *http.Request) {
	var req ScheduleRequest

	if hr.Body != nil && hr.ContentLength != 0 {
		decodeErr := json.NewDecoder(hr.Body).Decode(&req)
		if decodeErr != nil {
			writeError(rw, http.StatusBadRequest, "invalid request body")

			return
		}
	}

	ctx, cancel := context.WithTimeout(hr.Context(), scheduleTimeout)
	defer cancel()

	report, err := s.deps.Scheduler.Tick(ctx, scheduler.TickOptions{Force: req.Force, Limit: req.Limit})
	if err != nil {
		s.deps.Logger.Error("manual schedule failed", "error", err)
		writeError(rw, http.StatusInternalServerError, err.Error())

		return
	}

	writeJSON(rw, http.StatusOK, report)
}

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	Version string      `json:"version"`
	Queue   queue.Stats `json:"queue"`
}

func (s *Server) handleStatus(rw http.ResponseWriter, _ *http.Request) {
	writeJSON(rw, http.StatusOK, StatusResponse{
		Version: s.deps.Version,
		Queue:   s.deps.QueueStats(),
	})
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)

	encodeErr := json.NewEncoder(rw).Encode(v)
	if encodeErr != nil {
		return
	}
}

func writeError(rw http.ResponseWriter, status int, msg string) {
	writeJSON(rw, status, map[string]string{"error": msg})
}
