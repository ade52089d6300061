package sizing

import (
	"fmt"
	"math"
	"strings"
)

// Strategy names accepted by New.
const (
	StrategyKelly          = "kelly"
	StrategyFixed          = "fixed"
	StrategyVolatility     = "volatility"
	StrategyAntiMartingale = "anti-martingale"
)

// Params selects and parameterizes a strategy from configuration.
type Params struct {
	Strategy string `json:"strategy" yaml:"strategy"`

	RiskPct float64 `json:"risk_pct,omitempty" yaml:"risk_pct,omitempty"`

	WinRate   float64 `json:"win_rate,omitempty" yaml:"win_rate,omitempty"`
	AvgWin    float64 `json:"avg_win,omitempty" yaml:"avg_win,omitempty"`
	AvgLoss   float64 `json:"avg_loss,omitempty" yaml:"avg_loss,omitempty"`
	HalfKelly bool    `json:"half_kelly,omitempty" yaml:"half_kelly,omitempty"`

	ATR       float64 `json:"atr,omitempty" yaml:"atr,omitempty"`
	ATRPeriod int     `json:"atr_period,omitempty" yaml:"atr_period,omitempty"`

	BaseSize      float64 `json:"base_size,omitempty" yaml:"base_size,omitempty"`
	WinMultiplier float64 `json:"win_multiplier,omitempty" yaml:"win_multiplier,omitempty"`
	LossDivisor   float64 `json:"loss_divisor,omitempty" yaml:"loss_divisor,omitempty"`
	MaxMultiplier float64 `json:"max_multiplier,omitempty" yaml:"max_multiplier,omitempty"`
}

// New builds the strategy named by p.Strategy. Out-of-range numbers are
// normalized by the strategy constructors; only an unknown name is an error.
func New(p Params) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(p.Strategy)) {
	case StrategyKelly:
		return NewKelly(KellyParams{WinRate: p.WinRate, AvgWin: p.AvgWin, AvgLoss: p.AvgLoss, Half: p.HalfKelly}), nil
	case StrategyFixed, "fixed-fractional":
		return NewFixedFractional(p.RiskPct), nil
	case StrategyVolatility, "atr":
		return NewVolatilityBased(VolatilityParams{ATR: p.ATR, RiskPct: p.RiskPct, ATRPeriod: p.ATRPeriod}), nil
	case StrategyAntiMartingale, "antimartingale":
		return NewAntiMartingale(AntiMartingaleParams{
			BaseSize:      p.BaseSize,
			WinMultiplier: p.WinMultiplier,
			LossDivisor:   p.LossDivisor,
			MaxMultiplier: p.MaxMultiplier,
		}), nil
	case "":
		return nil, fmt.Errorf("sizing strategy is required")
	}
	return nil, fmt.Errorf("unknown sizing strategy %q", p.Strategy)
}

// clamp maps NaN to lo.
func clamp(x, lo, hi float64) float64 {
	if math.IsNaN(x) || x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
