package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/riskguard/config"
	"github.com/rustyeddy/riskguard/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "riskguard",
	Short: "Pre-trade risk gating: circuit breaker, kill switch and position sizing",
	Long: `Riskguard decides whether a trading loop may keep trading and how big the
next position should be.

It provides tools for:
  - Recording closed trades into a journal
  - Evaluating the circuit breaker, kill switch and trading limits
  - Sizing positions with Kelly, fixed fractional, volatility or anti-martingale
  - Serving guard state as Prometheus metrics and JSON

Each command rebuilds the guards from the configuration and today's
journaled trades.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

var (
	configPath string
	envFile    string
	logLevel   string

	cfg    *config.Config
	logger zerolog.Logger
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (YAML or JSON, default built-in settings)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with RISKGUARD_* overrides")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (overrides config)")
}

func loadConfig(cmd *cobra.Command, args []string) error {
	if err := config.LoadEnv(envFile); err != nil {
		return err
	}

	if configPath != "" {
		c, err := config.LoadFromFile(configPath)
		if err != nil {
			return err
		}
		cfg = c
	} else {
		cfg = config.Default()
	}

	if err := cfg.ApplyEnv(); err != nil {
		return fmt.Errorf("environment: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	logger = logging.New(cfg.Log.Level, cfg.Log.Pretty, os.Stderr)
	return nil
}
