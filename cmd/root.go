package cmd

import (
	"context"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"example.com/portaria/config"
)

var (
	cfgFile  string
	logLevel string
	dataDir  string
	cfg      config.Config
	app      *application
)

var rootCmd = &cobra.Command{
	Use:   "portaria",
	Short: "Doorman assistant: ingests gate lines, derives analyses and alerts",
	Long: `portaria turns free-form doorman lines into access and parcel records,
keeps per-resident analyses and raises alerts for repeated accesses,
divergent data, missing vehicle tags and undelivered parcels.`,
	SilenceUsage:      true,
	PersistentPreRunE: initApp,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml or ./app.env)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "directory holding the JSON stores")
}

func initApp(cmd *cobra.Command, args []string) error {
	if cmd.Name() == versionCmd.Name() {
		return nil
	}

	var err error
	cfg, err = config.LoadConfig(cfgFile)
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}

	configureLogging(cfg.Logging, logLevel)
	app = newApplication(cfg)

	log.Debug().Str("data_dir", cfg.DataDir).Str("environment", cfg.Environment).Msg("Configuration loaded")
	return nil
}

// configureLogging applies logging.format and the level, the flag winning
// over LOG_LEVEL and the config file.
func configureLogging(lc config.LoggingConfig, flagLevel string) {
	if strings.EqualFold(lc.Format, "json") {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	level := lc.Level
	if env := os.Getenv("LOG_LEVEL"); env != "" {
		level = env
	}
	if flagLevel != "" {
		level = flagLevel
	}
	if parsed, err := zerolog.ParseLevel(strings.ToLower(level)); err == nil && level != "" {
		zerolog.SetGlobalLevel(parsed)
	}
}
