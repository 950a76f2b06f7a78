package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Model matcher names accepted in alerts.model_matcher.
const (
	MatcherWeighted = "weighted"
	MatcherPrefix   = "prefix"
)

// Config holds all application configuration
type Config struct {
	Environment string         `mapstructure:"environment"`
	DataDir     string         `mapstructure:"data_dir"`
	LogsDir     string         `mapstructure:"logs_dir"`
	Files       FilesConfig    `mapstructure:"files"`
	Store       StoreConfig    `mapstructure:"store"`
	Lock        LockConfig     `mapstructure:"lock"`
	Analysis    AnalysisConfig `mapstructure:"analysis"`
	Alerts      AlertsConfig   `mapstructure:"alerts"`
	Watcher     WatcherConfig  `mapstructure:"watcher"`
	Ingest      IngestConfig   `mapstructure:"ingest"`
	Logging     LoggingConfig  `mapstructure:"logging"`
}

// FilesConfig names the store files inside the data directory
type FilesConfig struct {
	AccessInit        string `mapstructure:"access_init"`
	AccessEnd         string `mapstructure:"access_end"`
	ParcelsInit       string `mapstructure:"parcels_init"`
	ParcelsEnd        string `mapstructure:"parcels_end"`
	Orientations      string `mapstructure:"orientations"`
	Observations      string `mapstructure:"observations"`
	Review            string `mapstructure:"review"`
	Analyses          string `mapstructure:"analyses"`
	Alerts            string `mapstructure:"alerts"`
	RuntimeEvents     string `mapstructure:"runtime_events"`
	RuntimeLastStatus string `mapstructure:"runtime_last_status"`
}

// StoreConfig holds JSON store read settings
type StoreConfig struct {
	LoadRetries  int           `mapstructure:"load_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
}

// LockConfig holds advisory lock settings
type LockConfig struct {
	Timeout       time.Duration `mapstructure:"timeout"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`
}

// AnalysisConfig holds analysis builder settings
type AnalysisConfig struct {
	MinGroupSize int `mapstructure:"min_group_size"`
}

// AlertsConfig holds alert builder settings
type AlertsConfig struct {
	ModelSimilarityThreshold int    `mapstructure:"model_similarity_threshold"`
	ModelMatcher             string `mapstructure:"model_matcher"`
}

// WatcherConfig holds change watcher settings
type WatcherConfig struct {
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	Debounce          time.Duration `mapstructure:"debounce"`
	FSNotify          bool          `mapstructure:"fsnotify"`
	ReconcileInterval time.Duration `mapstructure:"reconcile_interval"`
	ReprocessInterval time.Duration `mapstructure:"reprocess_interval"`
}

// IngestConfig holds ingestion settings
type IngestConfig struct {
	SyncRebuild bool `mapstructure:"sync_rebuild"`
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LoadConfig reads configuration from configFile, or from config.yaml / app.env
// in the working directory when configFile is empty. Environment variables
// prefixed with PORTARIA_ override both.
func LoadConfig(configFile string) (Config, error) {
	v := viper.New()

	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Wrapf(err, "error reading config file %s", configFile)
		}
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, errors.Wrap(err, "error reading config file")
			}
			v.SetConfigName("app")
			v.SetConfigType("env")
			if err := v.ReadInConfig(); err != nil {
				log.Debug().Err(err).Msg("No configuration file found, using defaults and environment")
			}
		}
	}

	v.SetEnvPrefix("PORTARIA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "unable to unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// setDefaults sets default values for configuration
func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("data_dir", ".")
	v.SetDefault("logs_dir", "logs")

	// Store files
	v.SetDefault("files.access_init", "dadosinit.json")
	v.SetDefault("files.access_end", "dadosend.json")
	v.SetDefault("files.parcels_init", "encomendasinit.json")
	v.SetDefault("files.parcels_end", "encomendasend.json")
	v.SetDefault("files.orientations", "orientacoes.json")
	v.SetDefault("files.observations", "observacoes.json")
	v.SetDefault("files.review", "revisao.json")
	v.SetDefault("files.analyses", "analises.json")
	v.SetDefault("files.alerts", "avisos.json")
	v.SetDefault("files.runtime_events", "runtime_events.jsonl")
	v.SetDefault("files.runtime_last_status", "runtime_last_status.json")

	v.SetDefault("store.load_retries", 5)
	v.SetDefault("store.retry_backoff", "50ms")
	v.SetDefault("lock.timeout", "5s")
	v.SetDefault("lock.retry_interval", "50ms")

	v.SetDefault("analysis.min_group_size", 2)
	v.SetDefault("alerts.model_similarity_threshold", 85)
	v.SetDefault("alerts.model_matcher", MatcherWeighted)

	v.SetDefault("watcher.poll_interval", "1s")
	v.SetDefault("watcher.debounce", "350ms")
	v.SetDefault("watcher.fsnotify", true)
	v.SetDefault("watcher.reconcile_interval", "5m")
	v.SetDefault("watcher.reprocess_interval", "1m")

	v.SetDefault("ingest.sync_rebuild", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// Validate rejects settings the components cannot run with.
func (c Config) Validate() error {
	durations := map[string]time.Duration{
		"store.retry_backoff":        c.Store.RetryBackoff,
		"lock.timeout":               c.Lock.Timeout,
		"lock.retry_interval":        c.Lock.RetryInterval,
		"watcher.poll_interval":      c.Watcher.PollInterval,
		"watcher.debounce":           c.Watcher.Debounce,
		"watcher.reconcile_interval": c.Watcher.ReconcileInterval,
		"watcher.reprocess_interval": c.Watcher.ReprocessInterval,
	}
	for key, d := range durations {
		if d <= 0 {
			return errors.Errorf("%s must be positive, got %s", key, d)
		}
	}
	if c.Store.LoadRetries <= 0 {
		return errors.Errorf("store.load_retries must be positive, got %d", c.Store.LoadRetries)
	}
	if c.Analysis.MinGroupSize < 2 {
		return errors.Errorf("analysis.min_group_size must be at least 2, got %d", c.Analysis.MinGroupSize)
	}
	if c.Alerts.ModelSimilarityThreshold <= 0 || c.Alerts.ModelSimilarityThreshold > 100 {
		return errors.Errorf("alerts.model_similarity_threshold must be in 1..100, got %d", c.Alerts.ModelSimilarityThreshold)
	}
	if c.Alerts.ModelMatcher != MatcherWeighted && c.Alerts.ModelMatcher != MatcherPrefix {
		return errors.Errorf("alerts.model_matcher must be %q or %q, got %q", MatcherWeighted, MatcherPrefix, c.Alerts.ModelMatcher)
	}
	if c.DataDir == "" {
		return errors.New("data_dir must not be empty")
	}
	return nil
}

// Path resolves a store file name against the data directory.
func (c Config) Path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.DataDir, name)
}

// LogPath resolves a log file name against the logs directory.
func (c Config) LogPath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	dir := c.LogsDir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(c.DataDir, dir)
	}
	return filepath.Join(dir, name)
}
