// Package scheduler discovers blueprints in the configuration source,
// decides which warrant a fresh evaluation run, and submits jobs to the
// evaluation queue.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/collect-intel/dtef-app-sub001/internal/blueprint"
	"github.com/collect-intel/dtef-app-sub001/internal/models"
	"github.com/collect-intel/dtef-app-sub001/internal/queue"
	"github.com/collect-intel/dtef-app-sub001/internal/runner"
	"github.com/collect-intel/dtef-app-sub001/internal/source"
	"github.com/collect-intel/dtef-app-sub001/internal/store"
	"github.com/collect-intel/dtef-app-sub001/internal/summary"
)

// DefaultFreshnessWindow is how recent a run must be to count as fresh.
// A blueprint with a run younger than this is skipped.
const DefaultFreshnessWindow = 7 * 24 * time.Hour

// DefaultBatchLimit caps how many jobs a single tick may submit; the
// remainder wait for the next tick or the drain continuation.
const DefaultBatchLimit = 200

// Source is the configuration-source surface the scheduler consumes.
type Source interface {
	ListTree(ctx context.Context, ref string) ([]source.TreeEntry, error)
	GetRaw(ctx context.Context, path, ref string) ([]byte, error)
	BranchHead(ctx context.Context, branch string) (string, error)
}

// Enqueuer accepts evaluation jobs.
type Enqueuer interface {
	Enqueue(id string, fn queue.Job) (position, length int)
}

// ResultApplier receives completed run results for summary maintenance.
type ResultApplier interface {
	Apply(ctx context.Context, configID string, result summary.RunResult, fileName string) error
}

// Config configures a Scheduler.
type Config struct {
	Source  Source
	Store   store.Store
	Queue   Enqueuer
	Runner  runner.Runner
	Applier ResultApplier

	// Branch is the source branch evaluated; defaults to source.DefaultBranch.
	Branch string

	// FreshnessWindow defaults to DefaultFreshnessWindow.
	FreshnessWindow time.Duration

	// BatchLimit defaults to DefaultBatchLimit.
	BatchLimit int

	// EvalMethods is passed through to the pipeline runner.
	EvalMethods []string

	// UseCache permits the pipeline to reuse cached model responses.
	UseCache bool

	Logger *slog.Logger

	// Now supplies the freshness clock; overridable in tests.
	Now func() time.Time
}

// TickOptions modify one scheduling pass.
type TickOptions struct {
	// Force schedules every periodic blueprint regardless of run age.
	Force bool

	// Limit overrides the configured batch limit when positive.
	Limit int
}

// TickReport summarises one scheduling pass.
type TickReport struct {
	CommitSHA          string `json:"commitSha"`
	Discovered         int    `json:"discovered"`
	Scheduled          int    `json:"scheduled"`
	SkippedFresh       int    `json:"skippedFresh"`
	SkippedNonPeriodic int    `json:"skippedNonPeriodic"`
	SkippedReserved    int    `json:"skippedReserved"`
	Errors             int    `json:"errors"`
}

// Scheduler performs periodic discovery and dispatch.
type Scheduler struct {
	cfg Config
}

// New creates a Scheduler.
func New(cfg Config) *Scheduler {
	if cfg.Branch == "" {
		cfg.Branch = source.DefaultBranch
	}

	if cfg.FreshnessWindow <= 0 {
		cfg.FreshnessWindow = DefaultFreshnessWindow
	}

	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = DefaultBatchLimit
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}

	return &Scheduler{cfg: cfg}
}

// Tick runs one scheduling pass. Per-blueprint failures are isolated and
// counted; only a failure to resolve the branch head or list the tree
// aborts the pass, because then the scheduler cannot know what it missed.
func (s *Scheduler) Tick(ctx context.Context, opts TickOptions) (TickReport, error) {
	var report TickReport

	sha, headErr := s.cfg.Source.BranchHead(ctx, s.cfg.Branch)
	if headErr != nil {
		return report, fmt.Errorf("resolving branch head: %w", headErr)
	}

	report.CommitSHA = sha

	entries, listErr := s.cfg.Source.ListTree(ctx, sha)
	if listErr != nil {
		return report, fmt.Errorf("listing source tree: %w", listErr)
	}

	catalogue, catErr := models.FetchCatalogue(ctx, s.cfg.Source, sha)
	if catErr != nil {
		// Blueprints with symbolic aliases will fail resolution this tick;
		// concrete-only blueprints can still run.
		s.cfg.Logger.Warn("model catalogue unavailable", "error", catErr)
	}

	blueprints := s.discover(ctx, entries, sha, &report)

	limit := s.cfg.BatchLimit
	if opts.Limit > 0 {
		limit = opts.Limit
	}

	for _, bp := range blueprints {
		if report.Scheduled >= limit {
			s.cfg.Logger.Info("batch limit reached", "limit", limit)

			break
		}

		s.consider(ctx, bp, catalogue, sha, opts.Force, &report)
	}

	s.cfg.Logger.Info("tick complete",
		"commit", sha,
		"discovered", report.Discovered,
		"scheduled", report.Scheduled,
		"skippedFresh", report.SkippedFresh,
		"skippedNonPeriodic", report.SkippedNonPeriodic,
		"skippedReserved", report.SkippedReserved,
		"errors", report.Errors,
	)

	return report, nil
}

// discover lists, fetches, and parses every blueprint file at the commit.
// Duplicate derived ids are a misconfiguration; the last occurrence wins
// and the collision is logged loudly.
func (s *Scheduler) discover(ctx context.Context, entries []source.TreeEntry, sha string, report *TickReport) []*blueprint.Blueprint {
	var order []string

	byID := make(map[string]*blueprint.Blueprint)

	for _, entry := range entries {
		if !entry.IsBlob() || !isBlueprintPath(entry.Path) {
			continue
		}

		report.Discovered++

		id := blueprint.DeriveID(entry.Path)
		if blueprint.IsReservedID(id) {
			report.SkippedReserved++

			s.cfg.Logger.Warn("skipping reserved blueprint id", "path", entry.Path, "id", id)

			continue
		}

		data, fetchErr := s.cfg.Source.GetRaw(ctx, entry.Path, sha)
		if fetchErr != nil {
			report.Errors++

			s.cfg.Logger.Warn("blueprint fetch failed", "path", entry.Path, "error", fetchErr)

			continue
		}

		bp, parseErr := blueprint.Parse(entry.Path, data)
		if parseErr != nil {
			report.Errors++

			s.cfg.Logger.Warn("blueprint parse failed", "path", entry.Path, "error", parseErr)

			continue
		}

		if _, dup := byID[bp.ID]; dup {
			s.cfg.Logger.Error("duplicate blueprint id, last occurrence wins", "id", bp.ID, "path", entry.Path)
		} else {
			order = append(order, bp.ID)
		}

		byID[bp.ID] = bp
	}

	out := make([]*blueprint.Blueprint, 0, len(order))
	for _, id := range order {
		out = append(out, byID[id])
	}

	return out
}

// consider applies the policy gates to one blueprint and enqueues it when
// a run is warranted.
func (s *Scheduler) consider(ctx context.Context, bp *blueprint.Blueprint, catalogue models.Catalogue, sha string, force bool, report *TickReport) {
	if !bp.IsPeriodic() {
		report.SkippedNonPeriodic++

		s.cfg.Logger.Debug("skipping non-periodic blueprint", "id", bp.ID)

		return
	}

	concrete, resolveErr := models.Resolve(bp.Models, catalogue)
	if resolveErr != nil {
		report.Errors++

		s.cfg.Logger.Warn("model resolution failed", "id", bp.ID, "error", resolveErr)

		return
	}

	if len(concrete) == 0 {
		report.Errors++

		s.cfg.Logger.Warn("blueprint resolves to no models", "id", bp.ID)

		return
	}

	if !force {
		fresh, freshErr := s.isFresh(ctx, bp.ID)
		if freshErr != nil {
			report.Errors++

			s.cfg.Logger.Warn("freshness check failed", "id", bp.ID, "error", freshErr)

			return
		}

		if fresh {
			report.SkippedFresh++

			s.cfg.Logger.Info("skip fresh", "id", bp.ID)

			return
		}
	}

	label := blueprint.RunLabel(bp, concrete)

	job := runner.Job{
		Blueprint:   *bp,
		Models:      concrete,
		RunLabel:    label,
		EvalMethods: s.cfg.EvalMethods,
		CommitSHA:   sha,
		UseCache:    s.cfg.UseCache,
	}

	position, length := s.cfg.Queue.Enqueue(bp.ID, s.evaluationJob(bp.ID, job))
	report.Scheduled++

	s.cfg.Logger.Info("scheduled evaluation",
		"id", bp.ID,
		"runLabel", label,
		"models", len(concrete),
		"position", position,
		"queueLength", length,
	)
}

// isFresh reports whether the blueprint's latest run is younger than the
// freshness window. The run label of prior runs is deliberately not
// consulted: re-resolving a model group changes the hash without changing
// the blueprint's observable intent.
func (s *Scheduler) isFresh(ctx context.Context, configID string) (bool, error) {
	infos, err := s.cfg.Store.ListPrefix(ctx, store.RunPrefix(configID))
	if err != nil {
		return false, err
	}

	latest, ok := latestRunTimestamp(infos)
	if !ok {
		return false, nil
	}

	return s.cfg.Now().Sub(latest) < s.cfg.FreshnessWindow, nil
}

// latestRunTimestamp returns the newest filename-derived timestamp among
// the listed artifacts. Artifacts with unusable filenames count as absent.
func latestRunTimestamp(infos []store.ObjectInfo) (time.Time, bool) {
	var latest time.Time

	found := false

	for _, info := range infos {
		_, ts, err := store.ParseRunFileName(info.Key)
		if err != nil {
			continue
		}

		if !found || ts.After(latest) {
			latest = ts
			found = true
		}
	}

	return latest, found
}

// evaluationJob wraps one pipeline invocation: run, read back the written
// artifact, and feed it to the summary updater.
func (s *Scheduler) evaluationJob(configID string, job runner.Job) queue.Job {
	return func(ctx context.Context) error {
		fileName, runErr := s.cfg.Runner.Run(ctx, job)
		if runErr != nil {
			return fmt.Errorf("pipeline run for %s: %w", configID, runErr)
		}

		var result summary.RunResult

		readErr := store.GetJSON(ctx, s.cfg.Store, store.RunPrefix(configID)+fileName, &result)
		if readErr != nil {
			return fmt.Errorf("reading artifact %s: %w", fileName, readErr)
		}

		if result.RunLabel == "" {
			result.RunLabel = job.RunLabel
		}

		result.Tags = blueprint.NormalizeTags(append(result.Tags, job.Blueprint.Tags...))

		applyErr := s.cfg.Applier.Apply(ctx, configID, result, fileName)
		if applyErr != nil {
			// The next drain-time backfill reconstructs what this missed.
			s.cfg.Logger.Error("summary update failed", "id", configID, "error", applyErr)
		}

		return nil
	}
}

// isBlueprintPath reports whether the path is a blueprint file under the
// blueprints directory.
func isBlueprintPath(path string) bool {
	if len(path) <= len(blueprint.BlueprintsDir) {
		return false
	}

	if path[:len(blueprint.BlueprintsDir)] != blueprint.BlueprintsDir {
		return false
	}

	return blueprint.HasBlueprintExtension(path)
}
