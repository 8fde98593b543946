package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// configName is the config file name without extension.
const configName = ".dtefd"

// configType is the config file format.
const configType = "yaml"

// envPrefix is the environment variable prefix for dtefd settings.
const envPrefix = "DTEFD"

// envKeySeparator is the nested key separator in environment variable names.
const envKeySeparator = "_"

// LoadConfig loads configuration from file, env vars, and defaults.
// If configPath is non-empty, it is used as the explicit config file path.
// Otherwise, the config file is searched in CWD and $HOME.
// Missing config file is not an error; defaults are used.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	applyDefaults(viperCfg)

	viperCfg.SetConfigType(configType)
	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", envKeySeparator))
	viperCfg.AutomaticEnv()

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viperCfg.AddConfigPath(home)
		}
	}

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFound) {
			return nil, fmt.Errorf("read config: %w", readErr)
		}
	}

	var cfg Config

	unmarshalErr := viperCfg.Unmarshal(&cfg)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal config: %w", unmarshalErr)
	}

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("validate config: %w", validateErr)
	}

	return &cfg, nil
}

func applyDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("source.base_url", "")
	viperCfg.SetDefault("source.branch", DefaultSourceBranch)
	viperCfg.SetDefault("source.token", "")

	viperCfg.SetDefault("store.root", DefaultStoreRoot)
	viperCfg.SetDefault("store.compress_artifacts", false)

	viperCfg.SetDefault("scheduler.freshness_window", DefaultFreshnessWindow)
	viperCfg.SetDefault("scheduler.batch_limit", DefaultBatchLimit)
	viperCfg.SetDefault("scheduler.tick_interval", DefaultTickInterval)
	viperCfg.SetDefault("scheduler.first_fire_delay", DefaultFirstFireDelay)

	viperCfg.SetDefault("queue.concurrency", DefaultQueueConcurrency)
	viperCfg.SetDefault("queue.drain_wait", DefaultDrainWait)

	viperCfg.SetDefault("backfill.fetch_concurrency", DefaultBackfillConcurrency)

	viperCfg.SetDefault("pipeline.base_url", "")
	viperCfg.SetDefault("pipeline.token", "")
	viperCfg.SetDefault("pipeline.eval_methods", []string{})
	viperCfg.SetDefault("pipeline.use_cache", true)

	viperCfg.SetDefault("server.listen_addr", DefaultListenAddr)
	viperCfg.SetDefault("server.auth_secret", "")

	viperCfg.SetDefault("telemetry.diagnostics_addr", DefaultDiagnosticsAddr)
	viperCfg.SetDefault("telemetry.otlp_endpoint", "")
	viperCfg.SetDefault("telemetry.otlp_insecure", false)
	viperCfg.SetDefault("telemetry.sample_ratio", 0.0)
	viperCfg.SetDefault("telemetry.log_level", DefaultLogLevel)
	viperCfg.SetDefault("telemetry.log_json", false)
}
