package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collect-intel/dtef-app-sub001/internal/queue"
	"github.com/collect-intel/dtef-app-sub001/internal/scheduler"
	"github.com/collect-intel/dtef-app-sub001/internal/server"
)

type fakeTicker struct {
	lastOpts scheduler.TickOptions
	report   scheduler.TickReport
	err      error
	calls    int
}

func (f *fakeTicker) Tick(_ context.Context, opts scheduler.TickOptions) (scheduler.TickReport, error) {
	f.calls++
	f.lastOpts = opts

	return f.report, f.err
}

func startServer(t *testing.T, deps server.Deps) (*server.Server, string) {
	t.Helper()

	if deps.QueueStats == nil {
		deps.QueueStats = func() queue.Stats { return queue.Stats{} }
	}

	srv, err := server.New("127.0.0.1:0", deps)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })

	return srv, "http://" + srv.Addr()
}

func doRequest(t *testing.T, method, url, secret string, body []byte) (*http.Response, []byte) {
	t.Helper()

	req, err := http.NewRequestWithContext(t.Context(), method, url, bytes.NewReader(body))
	require.NoError(t, err)

	if secret != "" {
		req.Header.Set(server.AuthHeader, secret)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, data
}

func TestNew_MissingDependenciesRejected(t *testing.T) {
	t.Parallel()

	_, err := server.New("127.0.0.1:0", server.Deps{})
	require.ErrorIs(t, err, server.ErrMissingDependency)
}

func TestSchedule_TriggersTick(t *testing.T) {
	t.Parallel()

	ticker := &fakeTicker{report: scheduler.TickReport{Discovered: 4, Scheduled: 2}}
	_, base := startServer(t, server.Deps{Scheduler: ticker})

	resp, data := doRequest(t, http.MethodPost, base+"/api/admin/schedule", "", []byte(`{"force":true,"limit":5}`))

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, ticker.calls)
	assert.True(t, ticker.lastOpts.Force)
	assert.Equal(t, 5, ticker.lastOpts.Limit)

	var report scheduler.TickReport

	require.NoError(t, json.Unmarshal(data, &report))
	assert.Equal(t, 4, report.Discovered)
	assert.Equal(t, 2, report.Scheduled)
}

func TestSchedule_EmptyBodyUsesDefaults(t *testing.T) {
	t.Parallel()

	ticker := &fakeTicker{}
	_, base := startServer(t, server.Deps{Scheduler: ticker})

	resp, _ := doRequest(t, http.MethodPost, base+"/api/admin/schedule", "", nil)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, ticker.lastOpts.Force)
	assert.Zero(t, ticker.lastOpts.Limit)
}

func TestSchedule_BadBodyRejected(t *testing.T) {
	t.Parallel()

	ticker := &fakeTicker{}
	_, base := startServer(t, server.Deps{Scheduler: ticker})

	resp, _ := doRequest(t, http.MethodPost, base+"/api/admin/schedule", "", []byte(`{nope`))

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Zero(t, ticker.calls)
}

var errSourceDown = errors.New("source unreachable")

func TestSchedule_TickErrorReported(t *testing.T) {
	t.Parallel()

	ticker := &fakeTicker{err: errSourceDown}
	_, base := startServer(t, server.Deps{Scheduler: ticker})

	resp, data := doRequest(t, http.MethodPost, base+"/api/admin/schedule", "", nil)

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, string(data), "source unreachable")
}

func TestStatus_ReportsQueueAndVersion(t *testing.T) {
	t.Parallel()

	_, base := startServer(t, server.Deps{
		Scheduler: &fakeTicker{},
		Version:   "1.2.3",
		QueueStats: func() queue.Stats {
			return queue.Stats{Active: 1, Queued: 7, TotalCompleted: 12}
		},
	})

	resp, data := doRequest(t, http.MethodGet, base+"/api/status", "", nil)

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var status server.StatusResponse

	require.NoError(t, json.Unmarshal(data, &status))
	assert.Equal(t, "1.2.3", status.Version)
	assert.Equal(t, 1, status.Queue.Active)
	assert.Equal(t, 7, status.Queue.Queued)
	assert.Equal(t, int64(12), status.Queue.TotalCompleted)
}

func TestAuth_MissingSecretRejected(t *testing.T) {
	t.Parallel()

	ticker := &fakeTicker{}
	_, base := startServer(t, server.Deps{Scheduler: ticker, Secret: "s3cret"})

	resp, _ := doRequest(t, http.MethodPost, base+"/api/admin/schedule", "", nil)

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Zero(t, ticker.calls)
}

func TestAuth_WrongSecretRejected(t *testing.T) {
	t.Parallel()

	ticker := &fakeTicker{}
	_, base := startServer(t, server.Deps{Scheduler: ticker, Secret: "s3cret"})

	resp, _ := doRequest(t, http.MethodGet, base+"/api/status", "wrong", nil)

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuth_CorrectSecretAccepted(t *testing.T) {
	t.Parallel()

	ticker := &fakeTicker{}
	_, base := startServer(t, server.Deps{Scheduler: ticker, Secret: "s3cret"})

	resp, _ := doRequest(t, http.MethodPost, base+"/api/admin/schedule", "s3cret", nil)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, ticker.calls)
}
