// Package source is the read-only client for the external configuration
// repository: recursive tree listing, raw file fetch, and branch head
// lookup over a GitHub-compatible REST surface.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBranch is the branch evaluated when none is configured.
const DefaultBranch = "main"

// defaultTimeout bounds every individual request.
const defaultTimeout = 30 * time.Second

// maxRawSize caps a raw file read. Blueprints are small; anything larger
// indicates a listing mistake.
const maxRawSize = 4 << 20

// ErrUnexpectedStatus indicates a non-2xx response from the source.
var ErrUnexpectedStatus = errors.New("unexpected response status")

// ErrFileNotFound indicates the requested path does not exist at the ref.
var ErrFileNotFound = errors.New("file not found in source")

// TreeEntry is one path in a recursive tree listing.
type TreeEntry struct {
	Path string `json:"path"`
	Type string `json:"type"`
	Size int64  `json:"size,omitempty"`
}

// IsBlob reports whether the entry is a regular file.
func (e TreeEntry) IsBlob() bool { return e.Type == "blob" }

// Config configures a Client.
type Config struct {
	// BaseURL is the repository API root, e.g.
	// https://api.github.com/repos/owner/repo.
	BaseURL string

	// Token is the bearer token. Empty means anonymous operation, subject
	// to the source's rate limits.
	Token string

	// HTTPClient is overridable in tests; defaults to a client with
	// defaultTimeout.
	HTTPClient *http.Client
}

// Client talks to the configuration source.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a Client.
func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		http:    httpClient,
	}
}

// ListTree returns the full recursive tree of the repository at ref,
// blobs and trees alike. Callers filter for the paths they care about.
func (c *Client) ListTree(ctx context.Context, ref string) ([]TreeEntry, error) {
	endpoint := fmt.Sprintf("%s/git/trees/%s?recursive=1", c.baseURL, url.PathEscape(ref))

	body, err := c.get(ctx, endpoint, "application/json")
	if err != nil {
		return nil, fmt.Errorf("listing tree at %s: %w", ref, err)
	}

	var payload struct {
		Tree      []TreeEntry `json:"tree"`
		Truncated bool        `json:"truncated"`
	}

	if decodeErr := json.Unmarshal(body, &payload); decodeErr != nil {
		return nil, fmt.Errorf("decoding tree listing: %w", decodeErr)
	}

	if payload.Truncated {
		return nil, fmt.Errorf("tree listing at %s truncated by the source", ref)
	}

	return payload.Tree, nil
}

// GetRaw fetches the raw contents of one file at ref.
func (c *Client) GetRaw(ctx context.Context, path, ref string) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/contents/%s?ref=%s", c.baseURL, escapePath(path), url.QueryEscape(ref))

	body, err := c.get(ctx, endpoint, "application/vnd.github.raw+json")
	if err != nil {
		return nil, fmt.Errorf("fetching %s at %s: %w", path, ref, err)
	}

	return body, nil
}

// BranchHead returns the latest commit id of a branch.
func (c *Client) BranchHead(ctx context.Context, branch string) (string, error) {
	endpoint := fmt.Sprintf("%s/commits/%s", c.baseURL, url.PathEscape(branch))

	body, err := c.get(ctx, endpoint, "application/json")
	if err != nil {
		return "", fmt.Errorf("resolving head of %s: %w", branch, err)
	}

	var payload struct {
		SHA string `json:"sha"`
	}

	if decodeErr := json.Unmarshal(body, &payload); decodeErr != nil {
		return "", fmt.Errorf("decoding commit: %w", decodeErr)
	}

	if payload.SHA == "" {
		return "", fmt.Errorf("branch %s: empty commit id", branch)
	}

	return payload.SHA, nil
}

func (c *Client) get(ctx context.Context, endpoint, accept string) ([]byte, error) {
	req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if reqErr != nil {
		return nil, reqErr
	}

	req.Header.Set("Accept", accept)

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, doErr := c.http.Do(req)
	if doErr != nil {
		return nil, doErr
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrFileNotFound
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)
	}

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxRawSize))
	if readErr != nil {
		return nil, readErr
	}

	return body, nil
}

// escapePath escapes each path segment while preserving separators.
func escapePath(p string) string {
	segments := strings.Split(p, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}

	return strings.Join(segments, "/")
}
