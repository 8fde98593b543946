package commands

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collect-intel/dtef-app-sub001/internal/queue"
	"github.com/collect-intel/dtef-app-sub001/internal/server"
)

func statusHandler(t *testing.T, wantSecret string, status server.StatusResponse) http.Handler {
	t.Helper()

	return http.HandlerFunc(func(rw http.ResponseWriter, hr *http.Request) {
		assert.Equal(t, "/api/status", hr.URL.Path)

		if wantSecret != "" && hr.Header.Get(server.AuthHeader) != wantSecret {
			rw.WriteHeader(http.StatusUnauthorized)

			return
		}

		rw.Header().Set("Content-Type", "application/json")
		writeStatusJSON(t, rw, status)
	})
}

func writeStatusJSON(t *testing.T, rw http.ResponseWriter, status server.StatusResponse) {
	t.Helper()

	data, err := json.Marshal(status)
	require.NoError(t, err)

	_, err = rw.Write(data)
	require.NoError(t, err)
}

func TestFetchStatus_Success(t *testing.T) {
	t.Parallel()

	want := server.StatusResponse{
		Version: "1.0.0",
		Queue:   queue.Stats{Active: 2, Queued: 3, TotalCompleted: 9},
	}

	srv := httptest.NewServer(statusHandler(t, "", want))
	t.Cleanup(srv.Close)

	got, err := fetchStatus(t.Context(), srv.URL, "")
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", got.Version)
	assert.Equal(t, 2, got.Queue.Active)
	assert.Equal(t, int64(9), got.Queue.TotalCompleted)
}

func TestFetchStatus_SecretForwarded(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(statusHandler(t, "s3cret", server.StatusResponse{}))
	t.Cleanup(srv.Close)

	_, err := fetchStatus(t.Context(), srv.URL, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")

	_, err = fetchStatus(t.Context(), srv.URL, "s3cret")
	require.NoError(t, err)
}

func TestRenderStatus_ShowsQueueCounts(t *testing.T) {
	color.NoColor = true //nolint:reassign // deterministic test output

	var buf bytes.Buffer

	renderStatus(&buf, server.StatusResponse{
		Version: "1.0.0",
		Queue: queue.Stats{
			Active:          1,
			Queued:          4,
			TotalCompleted:  20,
			TotalFailed:     2,
			TotalBackfills:  3,
			LastCompletedID: "dtef__gss",
			LastCompletedAt: time.Now().Add(-time.Minute),
		},
	})

	out := buf.String()
	assert.Contains(t, out, "dtefd 1.0.0 - ok")
	assert.Contains(t, out, "Active")
	assert.Contains(t, out, "dtef__gss")
	assert.Contains(t, out, "minute ago")
}

func TestRenderStatus_BackfillRunningBanner(t *testing.T) {
	color.NoColor = true //nolint:reassign // deterministic test output

	var buf bytes.Buffer

	renderStatus(&buf, server.StatusResponse{
		Version: "1.0.0",
		Queue:   queue.Stats{BackfillRunning: true},
	})

	assert.Contains(t, buf.String(), "backfill running")
}
