package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// defaultRunTimeout bounds a single pipeline invocation. Evaluations
// routinely take minutes; the bound exists to reclaim a wedged call, not
// to police slow ones.
const defaultRunTimeout = 30 * time.Minute

// ErrPipelineFailed indicates the pipeline service rejected or failed the run.
var ErrPipelineFailed = errors.New("pipeline run failed")

// HTTPConfig configures an HTTPRunner.
type HTTPConfig struct {
	// BaseURL is the pipeline service root.
	BaseURL string

	// Token authenticates against the pipeline service. Optional.
	Token string

	// Timeout bounds one run call; defaults to defaultRunTimeout.
	Timeout time.Duration

	// HTTPClient is overridable in tests.
	HTTPClient *http.Client
}

// HTTPRunner submits evaluation jobs to a remote pipeline service.
type HTTPRunner struct {
	cfg HTTPConfig
}

// NewHTTPRunner creates an HTTPRunner.
func NewHTTPRunner(cfg HTTPConfig) *HTTPRunner {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultRunTimeout
	}

	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &HTTPRunner{cfg: cfg}
}

// Run implements Runner: POST the job, wait for completion, return the
// artifact filename the pipeline reports.
func (r *HTTPRunner) Run(ctx context.Context, job Job) (string, error) {
	payload, marshalErr := json.Marshal(job)
	if marshalErr != nil {
		return "", fmt.Errorf("encoding job: %w", marshalErr)
	}

	req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.BaseURL+"/api/run", bytes.NewReader(payload))
	if reqErr != nil {
		return "", reqErr
	}

	req.Header.Set("Content-Type", "application/json")

	if r.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+r.cfg.Token)
	}

	resp, doErr := r.cfg.HTTPClient.Do(req)
	if doErr != nil {
		return "", fmt.Errorf("%w: %v", ErrPipelineFailed, doErr)
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return "", fmt.Errorf("%w: reading response: %v", ErrPipelineFailed, readErr)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: %s: %s", ErrPipelineFailed, resp.Status, strings.TrimSpace(string(body)))
	}

	var result struct {
		FileName string `json:"fileName"`
	}

	if decodeErr := json.Unmarshal(body, &result); decodeErr != nil {
		return "", fmt.Errorf("%w: decoding response: %v", ErrPipelineFailed, decodeErr)
	}

	if result.FileName == "" {
		return "", fmt.Errorf("%w: response carries no artifact filename", ErrPipelineFailed)
	}

	return result.FileName, nil
}
