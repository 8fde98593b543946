// Package commands implements CLI command handlers for dtefd.
package commands

import (
	"fmt"
	"log/slog"

	"github.com/collect-intel/dtef-app-sub001/internal/backfill"
	"github.com/collect-intel/dtef-app-sub001/internal/cache"
	"github.com/collect-intel/dtef-app-sub001/internal/config"
	"github.com/collect-intel/dtef-app-sub001/internal/observability"
	"github.com/collect-intel/dtef-app-sub001/internal/runner"
	"github.com/collect-intel/dtef-app-sub001/internal/scheduler"
	"github.com/collect-intel/dtef-app-sub001/internal/source"
	"github.com/collect-intel/dtef-app-sub001/internal/store"
	"github.com/collect-intel/dtef-app-sub001/internal/summary"
	"github.com/collect-intel/dtef-app-sub001/pkg/version"
)

// app bundles the wired components shared by the daemon and one-shot
// commands.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	obs     observability.Providers
	store   store.Store
	source  *source.CachingFetcher
	updater *summary.Updater
	backfil *backfill.Backfill
}

// buildApp loads configuration and wires the component graph common to all
// commands. The queue, cron, and HTTP surfaces are daemon-only and wired in
// serve.
func buildApp(configPath string, mode observability.AppMode) (*app, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Version
	obsCfg.Mode = mode
	obsCfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	obsCfg.OTLPInsecure = cfg.Telemetry.OTLPInsecure
	obsCfg.SampleRatio = cfg.Telemetry.SampleRatio
	obsCfg.LogLevel = cfg.LogLevel()
	obsCfg.LogJSON = cfg.Telemetry.LogJSON

	obs, err := observability.Init(obsCfg)
	if err != nil {
		return nil, fmt.Errorf("init observability: %w", err)
	}

	st, err := store.NewFSStore(cfg.Store.Root, cfg.Store.CompressArtifacts)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	client := source.NewClient(source.Config{
		BaseURL: cfg.Source.BaseURL,
		Token:   cfg.Source.Token,
	})
	fetcher := source.NewCachingFetcher(client, cache.New(cache.DefaultMaxSize))

	updater := summary.NewUpdater(st, obs.Logger)

	bf := backfill.New(backfill.Config{
		Store:            st,
		FetchConcurrency: cfg.Backfill.FetchConcurrency,
		Logger:           obs.Logger,
	})

	return &app{
		cfg:     cfg,
		logger:  obs.Logger,
		obs:     obs,
		store:   st,
		source:  fetcher,
		updater: updater,
		backfil: bf,
	}, nil
}

// buildScheduler wires a scheduler over the app components and the given
// job sink.
func (a *app) buildScheduler(sink scheduler.Enqueuer) *scheduler.Scheduler {
	return scheduler.New(scheduler.Config{
		Source:          a.source,
		Store:           a.store,
		Queue:           sink,
		Runner:          a.buildRunner(),
		Applier:         a.updater,
		Branch:          a.cfg.Source.Branch,
		FreshnessWindow: a.cfg.FreshnessWindow(),
		BatchLimit:      a.cfg.Scheduler.BatchLimit,
		EvalMethods:     a.cfg.Pipeline.EvalMethods,
		UseCache:        a.cfg.Pipeline.UseCache,
		Logger:          a.logger,
	})
}

func (a *app) buildRunner() runner.Runner {
	return runner.NewHTTPRunner(runner.HTTPConfig{
		BaseURL: a.cfg.Pipeline.BaseURL,
		Token:   a.cfg.Pipeline.Token,
	})
}
