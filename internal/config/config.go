// Package config holds the daemon configuration: sources, store layout,
// scheduling policy, and queue tuning.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Default values applied when neither file nor environment sets a key.
const (
	// DefaultSourceBranch is the configuration-source branch evaluated.
	DefaultSourceBranch = "main"

	// DefaultStoreRoot is the filesystem root for the object store.
	DefaultStoreRoot = "./data"

	// DefaultFreshnessWindow is the run age below which a blueprint is fresh.
	DefaultFreshnessWindow = "168h"

	// DefaultBatchLimit caps jobs submitted per scheduling tick.
	DefaultBatchLimit = 200

	// DefaultQueueConcurrency bounds parallel evaluation pipelines.
	DefaultQueueConcurrency = 3

	// DefaultDrainWait is the idle settle window before drain handling.
	DefaultDrainWait = "15s"

	// DefaultBackfillConcurrency bounds parallel summary fetches in backfill.
	DefaultBackfillConcurrency = 10

	// DefaultTickInterval is the steady-state scheduling interval.
	DefaultTickInterval = "1h"

	// DefaultFirstFireDelay is the delay before the first scheduled tick.
	DefaultFirstFireDelay = "60s"

	// DefaultListenAddr is the admin HTTP listen address.
	DefaultListenAddr = ":8080"

	// DefaultDiagnosticsAddr is the health and metrics listen address.
	DefaultDiagnosticsAddr = ":9090"

	// DefaultLogLevel is the minimum log severity.
	DefaultLogLevel = "info"
)

// Config is the top-level configuration struct for dtefd.
// Field tags use mapstructure for viper unmarshalling.
type Config struct {
	Source    SourceConfig    `mapstructure:"source"`
	Store     StoreConfig     `mapstructure:"store"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Queue     QueueConfig     `mapstructure:"queue"`
	Backfill  BackfillConfig  `mapstructure:"backfill"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Server    ServerConfig    `mapstructure:"server"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// SourceConfig locates the configuration repository.
type SourceConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Branch  string `mapstructure:"branch"`
	Token   string `mapstructure:"token"`
}

// StoreConfig holds object-store settings.
type StoreConfig struct {
	Root              string `mapstructure:"root"`
	CompressArtifacts bool   `mapstructure:"compress_artifacts"`
}

// SchedulerConfig holds scheduling policy knobs. Duration-valued keys use
// Go duration syntax.
type SchedulerConfig struct {
	FreshnessWindow string `mapstructure:"freshness_window"`
	BatchLimit      int    `mapstructure:"batch_limit"`
	TickInterval    string `mapstructure:"tick_interval"`
	FirstFireDelay  string `mapstructure:"first_fire_delay"`
}

// QueueConfig holds evaluation-queue tuning.
type QueueConfig struct {
	Concurrency int    `mapstructure:"concurrency"`
	DrainWait   string `mapstructure:"drain_wait"`
}

// BackfillConfig holds drain-time backfill tuning.
type BackfillConfig struct {
	FetchConcurrency int `mapstructure:"fetch_concurrency"`
}

// PipelineConfig locates the evaluation pipeline service.
type PipelineConfig struct {
	BaseURL     string   `mapstructure:"base_url"`
	Token       string   `mapstructure:"token"`
	EvalMethods []string `mapstructure:"eval_methods"`
	UseCache    bool     `mapstructure:"use_cache"`
}

// ServerConfig holds the admin HTTP surface settings.
type ServerConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
	AuthSecret string `mapstructure:"auth_secret"`
}

// TelemetryConfig holds logging, tracing, and diagnostics settings.
type TelemetryConfig struct {
	DiagnosticsAddr string  `mapstructure:"diagnostics_addr"`
	OTLPEndpoint    string  `mapstructure:"otlp_endpoint"`
	OTLPInsecure    bool    `mapstructure:"otlp_insecure"`
	SampleRatio     float64 `mapstructure:"sample_ratio"`
	LogLevel        string  `mapstructure:"log_level"`
	LogJSON         bool    `mapstructure:"log_json"`
}

// Sentinel errors for configuration validation.
var (
	// ErrMissingSourceURL indicates no configuration-source URL is set.
	ErrMissingSourceURL = errors.New("source.base_url must be set")
	// ErrInvalidConcurrency indicates the queue concurrency is not positive.
	ErrInvalidConcurrency = errors.New("queue.concurrency must be positive")
	// ErrInvalidBatchLimit indicates the batch limit is not positive.
	ErrInvalidBatchLimit = errors.New("scheduler.batch_limit must be positive")
	// ErrInvalidFetchConcurrency indicates the backfill fetch concurrency is not positive.
	ErrInvalidFetchConcurrency = errors.New("backfill.fetch_concurrency must be positive")
	// ErrInvalidDuration indicates a duration-valued key failed to parse.
	ErrInvalidDuration = errors.New("invalid duration value")
	// ErrInvalidLogLevel indicates an unrecognised log level name.
	ErrInvalidLogLevel = errors.New("invalid log level")
)

// Validate checks Config invariants and returns the first error found.
func (c *Config) Validate() error {
	if c.Source.BaseURL == "" {
		return ErrMissingSourceURL
	}

	if c.Queue.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}

	if c.Scheduler.BatchLimit <= 0 {
		return ErrInvalidBatchLimit
	}

	if c.Backfill.FetchConcurrency <= 0 {
		return ErrInvalidFetchConcurrency
	}

	durations := []string{
		c.Scheduler.FreshnessWindow,
		c.Scheduler.TickInterval,
		c.Scheduler.FirstFireDelay,
		c.Queue.DrainWait,
	}

	for _, d := range durations {
		_, err := ParseDuration(d)
		if err != nil {
			return err
		}
	}

	_, levelErr := ParseLogLevel(c.Telemetry.LogLevel)

	return levelErr
}

// ParseLogLevel maps a level name to its slog severity.
func ParseLogLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidLogLevel, name)
	}
}

// LogLevel returns the parsed log severity. Validate must have passed.
func (c *Config) LogLevel() slog.Level {
	level, _ := ParseLogLevel(c.Telemetry.LogLevel)

	return level
}

// ParseDuration parses a duration-valued configuration key.
func ParseDuration(value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, value)
	}

	return d, nil
}

// FreshnessWindow returns the parsed freshness window. Validate must have
// passed.
func (c *Config) FreshnessWindow() time.Duration {
	d, _ := ParseDuration(c.Scheduler.FreshnessWindow)

	return d
}

// TickInterval returns the parsed scheduling interval.
func (c *Config) TickInterval() time.Duration {
	d, _ := ParseDuration(c.Scheduler.TickInterval)

	return d
}

// FirstFireDelay returns the parsed first-fire delay.
func (c *Config) FirstFireDelay() time.Duration {
	d, _ := ParseDuration(c.Scheduler.FirstFireDelay)

	return d
}

// DrainWait returns the parsed queue drain wait.
func (c *Config) DrainWait() time.Duration {
	d, _ := ParseDuration(c.Queue.DrainWait)

	return d
}
