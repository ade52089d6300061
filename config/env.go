package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Environment variables that override file settings.
const (
	EnvLogLevel             = "RISKGUARD_LOG_LEVEL"
	EnvBalanceFloor         = "RISKGUARD_BALANCE_FLOOR"
	EnvMaxOpenPositions     = "RISKGUARD_MAX_OPEN_POSITIONS"
	EnvMaxAPIErrors         = "RISKGUARD_MAX_API_ERRORS"
	EnvMaxConsecutiveLosses = "RISKGUARD_MAX_CONSECUTIVE_LOSSES"
	EnvCooldown             = "RISKGUARD_COOLDOWN"
	EnvSizingStrategy       = "RISKGUARD_SIZING_STRATEGY"
	EnvJournalDB            = "RISKGUARD_JOURNAL_DB"
	EnvMetricsAddr          = "RISKGUARD_METRICS_ADDR"
)

// LoadEnv reads .env style files into the process environment. Missing
// files are skipped; variables already set are not overwritten.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load env file %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides c with any RISKGUARD_* variables that are set and
// validates the result.
func (c *Config) ApplyEnv() error {
	if v, ok := os.LookupEnv(EnvLogLevel); ok {
		c.Log.Level = v
	}
	if err := envFloat(EnvBalanceFloor, &c.KillSwitch.BalanceFloor); err != nil {
		return err
	}
	if err := envInt(EnvMaxOpenPositions, &c.KillSwitch.MaxOpenPositions); err != nil {
		return err
	}
	if err := envInt(EnvMaxAPIErrors, &c.KillSwitch.MaxAPIErrors); err != nil {
		return err
	}
	if err := envInt(EnvMaxConsecutiveLosses, &c.CircuitBreaker.MaxConsecutiveLosses); err != nil {
		return err
	}
	if v, ok := os.LookupEnv(EnvCooldown); ok {
		c.CircuitBreaker.Cooldown = v
	}
	if v, ok := os.LookupEnv(EnvSizingStrategy); ok {
		c.Sizing.Strategy = v
	}
	if v, ok := os.LookupEnv(EnvJournalDB); ok {
		c.Journal.Type = "sqlite"
		c.Journal.DBPath = v
	}
	if v, ok := os.LookupEnv(EnvMetricsAddr); ok {
		c.Metrics.Addr = v
	}
	return c.Validate()
}

func envFloat(key string, dst *float64) error {
	v, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = f
	return nil
}

func envInt(key string, dst *int) error {
	v, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}
