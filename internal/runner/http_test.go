package runner

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collect-intel/dtef-app-sub001/internal/blueprint"
)

func TestHTTPRunner_Run(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/run", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		var job Job

		require.NoError(t, json.NewDecoder(r.Body).Decode(&job))
		assert.Equal(t, "foo__bar", job.Blueprint.ID)
		assert.Equal(t, []string{"openai:gpt-x"}, job.Models)
		assert.Equal(t, "abc123", job.CommitSHA)

		_, _ = w.Write([]byte(`{"fileName":"hash_2024-05-01T00-00-00Z_comparison.json"}`))
	}))
	t.Cleanup(srv.Close)

	r := NewHTTPRunner(HTTPConfig{BaseURL: srv.URL, Token: "tok"})

	fileName, err := r.Run(context.Background(), Job{
		Blueprint: blueprint.Blueprint{ID: "foo__bar"},
		Models:    []string{"openai:gpt-x"},
		RunLabel:  "hash",
		CommitSHA: "abc123",
	})
	require.NoError(t, err)
	assert.Equal(t, "hash_2024-05-01T00-00-00Z_comparison.json", fileName)
}

func TestHTTPRunner_FailureStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model provider quota exhausted", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	r := NewHTTPRunner(HTTPConfig{BaseURL: srv.URL})

	_, err := r.Run(context.Background(), Job{RunLabel: "hash"})
	require.ErrorIs(t, err, ErrPipelineFailed)
	assert.ErrorContains(t, err, "quota exhausted")
}

func TestHTTPRunner_EmptyFileNameRejected(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(srv.Close)

	r := NewHTTPRunner(HTTPConfig{BaseURL: srv.URL})

	_, err := r.Run(context.Background(), Job{RunLabel: "hash"})
	assert.ErrorIs(t, err, ErrPipelineFailed)
}

func TestFunc_AdaptsPlainFunction(t *testing.T) {
	t.Parallel()

	var captured Job

	f := Func(func(ctx context.Context, job Job) (string, error) {
		captured = job

		return "file.json", nil
	})

	fileName, err := f.Run(context.Background(), Job{RunLabel: "x"})
	require.NoError(t, err)
	assert.Equal(t, "file.json", fileName)
	assert.Equal(t, "x", captured.RunLabel)
}
