package sizing

import "math"

const (
	defaultATRPeriod  = 14
	defaultVolRiskPct = 2.0
	minATR            = 0.0001
)

// VolatilityBased shrinks positions as the average true range grows.
type VolatilityBased struct {
	atrPeriod int
	riskPct   float64
	atr       float64
}

type VolatilityParams struct {
	ATR float64
	// RiskPct is clamped to [0.1, 10]. Zero selects 2%.
	RiskPct float64
	// ATRPeriod is informational; the caller computes the ATR. Zero selects 14.
	ATRPeriod int
}

func NewVolatilityBased(p VolatilityParams) *VolatilityBased {
	v := &VolatilityBased{
		atrPeriod: p.ATRPeriod,
		riskPct:   defaultVolRiskPct,
	}
	if v.atrPeriod <= 0 {
		v.atrPeriod = defaultATRPeriod
	}
	if p.RiskPct != 0 {
		v.riskPct = clamp(p.RiskPct, 0.1, 10)
	}
	v.UpdateATR(p.ATR)
	return v
}

// UpdateATR replaces the current ATR, flooring it just above zero.
func (v *VolatilityBased) UpdateATR(atr float64) {
	v.atr = math.Max(atr, minATR)
}

func (v *VolatilityBased) ATR() float64     { return v.atr }
func (v *VolatilityBased) ATRPeriod() int   { return v.atrPeriod }
func (v *VolatilityBased) RiskPct() float64 { return v.riskPct }

// Calculate damps a fixed-fractional size by 1 / (1 + ATR).
func (v *VolatilityBased) Calculate(capital float64) float64 {
	damping := 1 / (1 + v.atr)
	return capital * (v.riskPct / 100) * damping
}

// CalculateWithStop sizes so that hitting the stop loses exactly the risk
// budget. It returns 0 when entry and stop coincide.
func (v *VolatilityBased) CalculateWithStop(capital, entry, stop float64) float64 {
	budget := capital * (v.riskPct / 100)
	distance := math.Abs(entry - stop)
	if distance <= 0 {
		return 0
	}
	return budget / distance
}

func (v *VolatilityBased) Name() string { return "Volatility-Based" }
