package summary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/collect-intel/dtef-app-sub001/internal/store"
)

// Updater serialises all incremental summary updates through one worker
// goroutine. The read-modify-write cycles against the object store would
// otherwise interleave and the later write would silently clobber the
// earlier one.
type Updater struct {
	store    store.Store
	logger   *slog.Logger
	now      func() time.Time
	requests chan request
}

type request struct {
	configID string
	result   RunResult
	fileName string
	done     chan error
}

// NewUpdater creates an Updater. Call Start before submitting work.
func NewUpdater(st store.Store, logger *slog.Logger) *Updater {
	if logger == nil {
		logger = slog.Default()
	}

	return &Updater{
		store:    st,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		requests: make(chan request),
	}
}

// Start launches the worker. It exits when ctx is cancelled.
func (u *Updater) Start(ctx context.Context) {
	go u.loop(ctx)
}

func (u *Updater) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-u.requests:
			req.done <- u.apply(ctx, req)
		}
	}
}

// Apply submits one completed run to the worker and waits for the
// three-step update to finish. A step failure is not fatal to later
// requests; the next drain-time backfill reconstructs fleet-wide state
// from the per-config summaries.
func (u *Updater) Apply(ctx context.Context, configID string, result RunResult, fileName string) error {
	req := request{
		configID: configID,
		result:   result,
		fileName: fileName,
		done:     make(chan error, 1),
	}

	select {
	case u.requests <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// apply performs the three-step update. Each object write is atomic on its
// own; the triple is never transactional across the set. Steps that fail
// are logged and the remaining steps still run.
func (u *Updater) apply(ctx context.Context, req request) error {
	timestamp, err := u.canonicalTimestamp(req)
	if err != nil {
		return err
	}

	rec := Lean(req.configID, req.result, timestamp)

	merged, perConfigErr := u.updatePerConfig(ctx, req, rec)
	if perConfigErr != nil {
		u.logger.Error("per-config summary update failed", "configId", req.configID, "error", perConfigErr)
	}

	fleetErr := u.updateFleet(ctx, rec, merged)
	if fleetErr != nil {
		u.logger.Error("fleet summary update failed", "configId", req.configID, "error", fleetErr)
	}

	latestErr := u.updateLatest(ctx, rec)
	if latestErr != nil {
		u.logger.Error("latest-runs summary update failed", "configId", req.configID, "error", latestErr)
	}

	return errors.Join(perConfigErr, fleetErr, latestErr)
}

// canonicalTimestamp resolves the run timestamp: the artifact filename is
// canonical; the body timestamp is a last resort for legacy artifacts.
func (u *Updater) canonicalTimestamp(req request) (time.Time, error) {
	_, ts, err := store.ParseRunFileName(req.fileName)
	if err == nil {
		return ts, nil
	}

	if req.result.Timestamp != "" {
		if bodyTS, parseErr := time.Parse(time.RFC3339, req.result.Timestamp); parseErr == nil {
			u.logger.Warn("falling back to body timestamp", "fileName", req.fileName)

			return bodyTS, nil
		}
	}

	return time.Time{}, fmt.Errorf("no usable timestamp for %q: %w", req.fileName, err)
}

func (u *Updater) updatePerConfig(ctx context.Context, req request, rec RunRecord) (PerConfig, error) {
	var existing PerConfig

	readErr := store.GetJSON(ctx, u.store, store.SummaryKey(req.configID), &existing)
	if readErr != nil && !errors.Is(readErr, store.ErrNotFound) {
		return MergeRun(PerConfig{ConfigID: req.configID}, rec), readErr
	}

	merged := MergeRun(existing, rec)
	merged.Description = firstNonEmpty(req.result.Description, merged.Description)
	merged.LastUpdated = u.now()

	return merged, store.PutJSON(ctx, u.store, store.SummaryKey(req.configID), merged)
}

func (u *Updater) updateFleet(ctx context.Context, rec RunRecord, merged PerConfig) error {
	var fleet Fleet

	readErr := store.GetJSON(ctx, u.store, store.FleetSummaryKey, &fleet)
	if readErr != nil && !errors.Is(readErr, store.ErrNotFound) {
		return readErr
	}

	shallow := rec.Shallow()

	entry := FleetEntry{
		ConfigID:    rec.ConfigID,
		Title:       merged.Title,
		Description: merged.Description,
		Tags:        merged.Tags,
		LatestRun:   &shallow,
		TotalRuns:   merged.TotalRuns,
	}

	replaced := false

	for i := range fleet.Entries {
		if fleet.Entries[i].ConfigID == rec.ConfigID {
			fleet.Entries[i] = entry
			replaced = true

			break
		}
	}

	if !replaced {
		fleet.Entries = append(fleet.Entries, entry)
	}

	fleet.LastUpdated = u.now()

	return store.PutJSON(ctx, u.store, store.FleetSummaryKey, fleet)
}

func (u *Updater) updateLatest(ctx context.Context, rec RunRecord) error {
	var latest LatestRuns

	readErr := store.GetJSON(ctx, u.store, store.LatestRunsKey, &latest)
	if readErr != nil && !errors.Is(readErr, store.ErrNotFound) {
		return readErr
	}

	latest.Runs = InsertLatest(latest.Runs, rec, LatestRunsCap)
	latest.LastUpdated = u.now()

	return store.PutJSON(ctx, u.store, store.LatestRunsKey, latest)
}

// InsertLatest places rec into a most-recent-runs list: any entry for the
// same run is removed first, the result is kept strictly descending by
// timestamp, and the list is truncated to cap.
func InsertLatest(runs []RunRecord, rec RunRecord, limit int) []RunRecord {
	out := make([]RunRecord, 0, len(runs)+1)
	out = append(out, rec)

	for _, r := range runs {
		if r.SameRun(rec) {
			continue
		}

		out = append(out, r)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})

	if len(out) > limit {
		out = out[:limit]
	}

	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}

	return ""
}
