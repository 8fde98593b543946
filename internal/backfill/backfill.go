// Package backfill rebuilds the fleet-wide aggregate artifacts from the
// per-config summaries. It reads summaries only, never raw run artifacts:
// a summary is ~20 KB where a raw result can reach 500 KB, and at fleet
// scale the difference is what keeps the rebuild inside the memory budget.
package backfill

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/collect-intel/dtef-app-sub001/internal/store"
	"github.com/collect-intel/dtef-app-sub001/internal/summary"
)

// DefaultFetchConcurrency bounds parallel per-config summary fetches.
const DefaultFetchConcurrency = 10

// Config configures a Backfill.
type Config struct {
	Store store.Store

	// FetchConcurrency bounds parallel summary fetches; defaults to
	// DefaultFetchConcurrency.
	FetchConcurrency int

	Logger *slog.Logger

	// Now supplies artifact timestamps; overridable in tests.
	Now func() time.Time
}

// Backfill is the drain-time aggregator.
type Backfill struct {
	cfg Config
}

// New creates a Backfill.
func New(cfg Config) *Backfill {
	if cfg.FetchConcurrency <= 0 {
		cfg.FetchConcurrency = DefaultFetchConcurrency
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}

	return &Backfill{cfg: cfg}
}

// Run performs one full rebuild: list per-config summaries, fetch them with
// bounded parallelism, derive every aggregate, and write the results. A
// summary that fails to fetch or decode is skipped; a missing aggregate
// write is reported but does not stop the remaining writes.
func (b *Backfill) Run(ctx context.Context) error {
	started := b.cfg.Now()

	infos, listErr := b.cfg.Store.ListPrefix(ctx, store.SummaryPrefix)
	if listErr != nil {
		return fmt.Errorf("listing per-config summaries: %w", listErr)
	}

	configs := b.fetchSummaries(ctx, infos)
	runs := collectRuns(configs)

	now := b.cfg.Now()

	var writeErrs []error

	record := func(what string, err error) {
		if err != nil {
			b.cfg.Logger.Error("aggregate write failed", "artifact", what, "error", err)
			writeErrs = append(writeErrs, fmt.Errorf("%s: %w", what, err))
		}
	}

	for _, ms := range buildModelSummaries(configs, now) {
		record("model summary "+ms.BaseModelID, store.PutJSON(ctx, b.cfg.Store, store.ModelSummaryKey(ms.BaseModelID), ms))
	}

	// Per-survey demographic summaries land before the combined one, so a
	// reader of the combined summary can always resolve its survey links.
	surveys := buildSurveyStats(configs)
	for _, sv := range surveys {
		record("survey summary "+sv.SurveyID, store.PutJSON(ctx, b.cfg.Store, store.DTEFSurveyKey(sv.SurveyID), sv))
	}

	if len(surveys) > 0 {
		combined := summary.DTEFSummary{Surveys: surveys, LastUpdated: now}
		record("combined survey summary", store.PutJSON(ctx, b.cfg.Store, store.DTEFSummaryKey, combined))
	}

	record("homepage summary", store.PutJSON(ctx, b.cfg.Store, store.HomepageKey, buildHomepage(configs, now)))
	record("fleet summary", store.PutJSON(ctx, b.cfg.Store, store.FleetSummaryKey, buildFleet(configs, now)))
	record("latest-runs summary", store.PutJSON(ctx, b.cfg.Store, store.LatestRunsKey, buildLatest(runs, now)))

	b.cfg.Logger.Info("backfill complete",
		"configs", len(configs),
		"runs", len(runs),
		"surveys", len(surveys),
		"duration", time.Since(started),
	)

	return errors.Join(writeErrs...)
}

// fetchSummaries reads the listed per-config summaries with bounded
// parallelism. Unreadable summaries are logged and skipped; the backfill
// works with what it can read.
func (b *Backfill) fetchSummaries(ctx context.Context, infos []store.ObjectInfo) []summary.PerConfig {
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		configs []summary.PerConfig
	)

	sem := make(chan struct{}, b.cfg.FetchConcurrency)

	for _, info := range infos {
		wg.Add(1)

		go func(key string) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			var pc summary.PerConfig

			if err := store.GetJSON(ctx, b.cfg.Store, key, &pc); err != nil {
				b.cfg.Logger.Warn("skipping unreadable summary", "key", key, "error", err)

				return
			}

			if pc.ConfigID == "" {
				pc.ConfigID = store.ConfigIDFromSummaryKey(key)
			}

			mu.Lock()
			configs = append(configs, pc)
			mu.Unlock()
		}(info.Key)
	}

	wg.Wait()

	sort.Slice(configs, func(i, j int) bool { return configs[i].ConfigID < configs[j].ConfigID })

	return configs
}
