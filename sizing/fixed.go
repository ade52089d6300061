package sizing

// FixedFractional risks a fixed percentage of capital on every trade.
type FixedFractional struct {
	riskPct float64
}

// NewFixedFractional clamps pct to [0, 100].
func NewFixedFractional(pct float64) *FixedFractional {
	return &FixedFractional{riskPct: clamp(pct, 0, 100)}
}

func Conservative() *FixedFractional { return NewFixedFractional(1) }
func Moderate() *FixedFractional     { return NewFixedFractional(2) }
func Aggressive() *FixedFractional   { return NewFixedFractional(5) }

func (f *FixedFractional) RiskPct() float64 { return f.riskPct }

func (f *FixedFractional) Calculate(capital float64) float64 {
	return capital * (f.riskPct / 100)
}

func (f *FixedFractional) Name() string { return "Fixed Fractional" }
