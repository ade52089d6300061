package risk

import "math"

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// DrawdownPct is how far equity sits below peak, in percent. Equity at or
// above peak, or a non-positive peak, is no drawdown.
func DrawdownPct(peak, equity float64) float64 {
	if peak <= 0 || equity >= peak {
		return 0
	}
	return 100 * (peak - equity) / peak
}

// RiskPct is the share of equity put at risk, as a fraction.
func RiskPct(riskAmount, equity float64) float64 {
	if equity <= 0 {
		return math.Inf(1)
	}
	return abs(riskAmount) / equity
}
