package observability_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collect-intel/dtef-app-sub001/internal/observability"
)

var errStoreRootMissing = errors.New("store root missing")

func probeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()

	var body map[string]string

	err := json.Unmarshal(rec.Body.Bytes(), &body)
	require.NoError(t, err)

	return body
}

func TestHealthHandler_AlwaysLive(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	observability.HealthHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "ok", probeBody(t, rec)["status"])
}

func TestReadyHandler_AllProbesPass(t *testing.T) {
	t.Parallel()

	handler := observability.ReadyHandler(
		observability.ReadyProbe{Name: "store", Probe: func(_ context.Context) error { return nil }},
		observability.ReadyProbe{Name: "queue", Probe: func(_ context.Context) error { return nil }},
	)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", http.NoBody))

	assert.Equal(t, http.StatusOK, rec.Code)

	body := probeBody(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.NotContains(t, body, "failed")
}

func TestReadyHandler_NoProbesMeansReady(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	observability.ReadyHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", http.NoBody))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyHandler_FailingProbeNamed(t *testing.T) {
	t.Parallel()

	handler := observability.ReadyHandler(
		observability.ReadyProbe{Name: "queue", Probe: func(_ context.Context) error { return nil }},
		observability.ReadyProbe{Name: "store", Probe: func(_ context.Context) error { return errStoreRootMissing }},
	)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", http.NoBody))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	body := probeBody(t, rec)
	assert.Equal(t, "unavailable", body["status"])
	assert.Equal(t, "store", body["failed"])
	assert.Equal(t, "store root missing", body["reason"])
}

func TestReadyHandler_NilProbeFuncSkipped(t *testing.T) {
	t.Parallel()

	handler := observability.ReadyHandler(observability.ReadyProbe{Name: "placeholder"})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", http.NoBody))

	assert.Equal(t, http.StatusOK, rec.Code)
}
