package cmd

import (
	"github.com/spf13/cobra"

	"github.com/altowierigge/maestro/internal/config"
	"github.com/altowierigge/maestro/internal/logging"
)

var (
	cfgFile   string
	logLevel  string
	logFormat string

	appVersion string
	appCommit  string
	appDate    string

	cfg    *config.Config
	logger *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "maestro",
	Short: "Multi-agent LLM workflow orchestrator",
	Long: `maestro orchestrates multiple remote LLM services as cooperating
agents to carry out software-engineering workflows end-to-end:
brainstorm, architecture, phase breakdown, per-phase implementation,
validation, and integration. Results are cached with dependency
tracking so re-execution is cheap.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		return initConfig()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion records build metadata for the version command.
func SetVersion(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: .maestro/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"log format (auto, text, json)")
}

func initConfig() error {
	loaded, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	cfg = loaded

	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	logger = logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	return nil
}
