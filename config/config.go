package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/riskguard/risk"
	"github.com/rustyeddy/riskguard/sizing"
)

// Config is the complete guard configuration.
type Config struct {
	CircuitBreaker CircuitBreakerConfig `json:"circuit_breaker" yaml:"circuit_breaker"`
	KillSwitch     KillSwitchConfig     `json:"kill_switch" yaml:"kill_switch"`
	Limits         LimitsConfig         `json:"limits" yaml:"limits"`
	Sizing         SizingConfig         `json:"sizing" yaml:"sizing"`
	Journal        JournalConfig        `json:"journal" yaml:"journal"`
	Log            LogConfig            `json:"log" yaml:"log"`
	Metrics        MetricsConfig        `json:"metrics" yaml:"metrics"`
}

type CircuitBreakerConfig struct {
	MaxConsecutiveLosses   int     `json:"max_consecutive_losses" yaml:"max_consecutive_losses"`
	MaxDailyDrawdownPct    float64 `json:"max_daily_drawdown_pct" yaml:"max_daily_drawdown_pct"`
	Cooldown               string  `json:"cooldown" yaml:"cooldown"` // e.g. "30m", "90s"
	MinTradesForEvaluation int     `json:"min_trades_for_evaluation" yaml:"min_trades_for_evaluation"`
}

// ParseCooldown converts the cooldown string to a time.Duration.
func (c CircuitBreakerConfig) ParseCooldown() (time.Duration, error) {
	if c.Cooldown == "" {
		return 0, nil
	}
	return time.ParseDuration(c.Cooldown)
}

func (c CircuitBreakerConfig) Risk() (risk.CircuitBreakerConfig, error) {
	d, err := c.ParseCooldown()
	if err != nil {
		return risk.CircuitBreakerConfig{}, fmt.Errorf("circuit_breaker.cooldown: %w", err)
	}
	return risk.CircuitBreakerConfig{
		MaxConsecutiveLosses:   c.MaxConsecutiveLosses,
		MaxDailyDrawdownPct:    c.MaxDailyDrawdownPct,
		Cooldown:               d,
		MinTradesForEvaluation: c.MinTradesForEvaluation,
	}, nil
}

type KillSwitchConfig struct {
	BalanceFloor     float64 `json:"balance_floor" yaml:"balance_floor"`
	MaxOpenPositions int     `json:"max_open_positions" yaml:"max_open_positions"`
	MaxAPIErrors     int     `json:"max_api_errors" yaml:"max_api_errors"`
	ManualOverride   bool    `json:"manual_override" yaml:"manual_override"`
}

func (c KillSwitchConfig) Risk() risk.KillSwitchConfig {
	return risk.KillSwitchConfig{
		BalanceFloor:     c.BalanceFloor,
		MaxOpenPositions: c.MaxOpenPositions,
		MaxAPIErrors:     c.MaxAPIErrors,
		ManualOverride:   c.ManualOverride,
	}
}

// LimitsConfig mirrors risk.TradingLimits; zero disables a limit.
type LimitsConfig struct {
	MaxPositionSize      float64 `json:"max_position_size" yaml:"max_position_size"`
	MaxDailyLoss         float64 `json:"max_daily_loss" yaml:"max_daily_loss"`
	MaxDrawdownPct       float64 `json:"max_drawdown_pct" yaml:"max_drawdown_pct"`
	MaxOpenPositions     int     `json:"max_open_positions" yaml:"max_open_positions"`
	MaxConsecutiveLosses int     `json:"max_consecutive_losses" yaml:"max_consecutive_losses"`
}

func (c LimitsConfig) Risk() risk.TradingLimits {
	return risk.TradingLimits{
		MaxPositionSize:      c.MaxPositionSize,
		MaxDailyLoss:         c.MaxDailyLoss,
		MaxDrawdownPct:       c.MaxDrawdownPct,
		MaxOpenPositions:     c.MaxOpenPositions,
		MaxConsecutiveLosses: c.MaxConsecutiveLosses,
	}
}

type SizingConfig struct {
	sizing.Params `yaml:",inline"`
	MinSize       float64 `json:"min_size" yaml:"min_size"`
	MaxSize       float64 `json:"max_size" yaml:"max_size"` // 0 = unbounded
}

func (c SizingConfig) Bounds() sizing.SizerConfig {
	return sizing.SizerConfig{MinSize: c.MinSize, MaxSize: c.MaxSize}
}

// NewSizer builds the configured strategy wrapped in its bounds.
func (c SizingConfig) NewSizer() (*sizing.Sizer, error) {
	s, err := sizing.New(c.Params)
	if err != nil {
		return nil, err
	}
	return sizing.NewSizer(s, c.Bounds()), nil
}

type JournalConfig struct {
	Type       string `json:"type" yaml:"type"` // "sqlite", "csv" or "none"
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	TradesFile string `json:"trades_file,omitempty" yaml:"trades_file,omitempty"`
	EventsFile string `json:"events_file,omitempty" yaml:"events_file,omitempty"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Pretty bool   `json:"pretty" yaml:"pretty"`
}

type MetricsConfig struct {
	Addr string `json:"addr" yaml:"addr"`
}

// LoadFromFile loads configuration from a YAML or JSON file. Keys missing
// from the file keep their Default values.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	if err := yaml.Unmarshal(data, cfg); err != nil {
		cfg = Default()
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveToFile writes YAML for .yaml/.yml paths and indented JSON otherwise.
func (c *Config) SaveToFile(path string) error {
	var (
		data []byte
		err  error
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	cb := c.CircuitBreaker
	if cb.MaxConsecutiveLosses < 1 {
		return fmt.Errorf("circuit_breaker.max_consecutive_losses must be at least 1")
	}
	if cb.MaxDailyDrawdownPct < 0 || cb.MaxDailyDrawdownPct > 100 {
		return fmt.Errorf("circuit_breaker.max_daily_drawdown_pct must be between 0 and 100")
	}
	d, err := cb.ParseCooldown()
	if err != nil {
		return fmt.Errorf("circuit_breaker.cooldown: %w", err)
	}
	if d < 0 {
		return fmt.Errorf("circuit_breaker.cooldown must not be negative")
	}
	if cb.MinTradesForEvaluation < 0 {
		return fmt.Errorf("circuit_breaker.min_trades_for_evaluation must not be negative")
	}

	ks := c.KillSwitch
	if ks.BalanceFloor < 0 {
		return fmt.Errorf("kill_switch.balance_floor must not be negative")
	}
	if ks.MaxOpenPositions < 0 {
		return fmt.Errorf("kill_switch.max_open_positions must not be negative")
	}
	if ks.MaxAPIErrors < 1 {
		return fmt.Errorf("kill_switch.max_api_errors must be at least 1")
	}

	l := c.Limits
	if l.MaxPositionSize < 0 || l.MaxDailyLoss < 0 || l.MaxDrawdownPct < 0 ||
		l.MaxOpenPositions < 0 || l.MaxConsecutiveLosses < 0 {
		return fmt.Errorf("limits must not be negative")
	}
	if l.MaxDrawdownPct > 100 {
		return fmt.Errorf("limits.max_drawdown_pct must be at most 100")
	}

	if _, err := sizing.New(c.Sizing.Params); err != nil {
		return fmt.Errorf("sizing.strategy: %w", err)
	}
	if c.Sizing.MinSize < 0 || c.Sizing.MaxSize < 0 {
		return fmt.Errorf("sizing.min_size and sizing.max_size must not be negative")
	}
	if c.Sizing.MaxSize > 0 && c.Sizing.MaxSize < c.Sizing.MinSize {
		return fmt.Errorf("sizing.max_size must be at least sizing.min_size")
	}

	switch c.Journal.Type {
	case "none", "":
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal db_path required for SQLite type")
		}
	case "csv":
		if c.Journal.TradesFile == "" || c.Journal.EventsFile == "" {
			return fmt.Errorf("journal trades_file and events_file required for CSV type")
		}
	default:
		return fmt.Errorf("journal.type must be 'sqlite', 'csv' or 'none'")
	}

	return nil
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	cb := risk.DefaultCircuitBreakerConfig()
	ks := risk.DefaultKillSwitchConfig()
	lim := risk.DefaultTradingLimits()

	return &Config{
		CircuitBreaker: CircuitBreakerConfig{
			MaxConsecutiveLosses:   cb.MaxConsecutiveLosses,
			MaxDailyDrawdownPct:    cb.MaxDailyDrawdownPct,
			Cooldown:               cb.Cooldown.String(),
			MinTradesForEvaluation: cb.MinTradesForEvaluation,
		},
		KillSwitch: KillSwitchConfig{
			BalanceFloor:     ks.BalanceFloor,
			MaxOpenPositions: ks.MaxOpenPositions,
			MaxAPIErrors:     ks.MaxAPIErrors,
			ManualOverride:   ks.ManualOverride,
		},
		Limits: LimitsConfig{
			MaxPositionSize:      lim.MaxPositionSize,
			MaxDailyLoss:         lim.MaxDailyLoss,
			MaxDrawdownPct:       lim.MaxDrawdownPct,
			MaxOpenPositions:     lim.MaxOpenPositions,
			MaxConsecutiveLosses: lim.MaxConsecutiveLosses,
		},
		Sizing: SizingConfig{
			Params: sizing.Params{Strategy: sizing.StrategyFixed, RiskPct: 2},
		},
		Journal: JournalConfig{
			Type:   "sqlite",
			DBPath: "./riskguard.sqlite",
		},
		Log: LogConfig{
			Level: "info",
		},
		Metrics: MetricsConfig{
			Addr: ":9108",
		},
	}
}
