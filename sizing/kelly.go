package sizing

import "math"

// Kelly sizes by the Kelly criterion, f* = (p·b − q) / b, where p is the
// win rate, q = 1 − p and b is avg win / avg loss.
type Kelly struct {
	winRate float64
	avgWin  float64
	avgLoss float64
	half    bool
}

type KellyParams struct {
	WinRate float64
	AvgWin  float64
	AvgLoss float64
	// Half makes Calculate use half-Kelly.
	Half bool
}

// minPayoff floors the average win and loss so b stays finite.
const minPayoff = 0.01

func NewKelly(p KellyParams) *Kelly {
	return &Kelly{
		winRate: clamp(p.WinRate, 0, 1),
		avgWin:  math.Max(p.AvgWin, minPayoff),
		avgLoss: math.Max(p.AvgLoss, minPayoff),
		half:    p.Half,
	}
}

// DefaultKelly is a coin flip with even payoff, which sizes to zero.
func DefaultKelly() *Kelly {
	return NewKelly(KellyParams{WinRate: 0.5, AvgWin: 1, AvgLoss: 1})
}

// KellyFraction is the full Kelly fraction, never negative.
func (k *Kelly) KellyFraction() float64 {
	q := 1 - k.winRate
	b := k.avgWin / k.avgLoss
	return math.Max((k.winRate*b-q)/b, 0)
}

func (k *Kelly) CalculateSize(capital float64, halfKelly bool) float64 {
	f := k.KellyFraction()
	if halfKelly {
		f *= 0.5
	}
	return capital * f
}

func (k *Kelly) Calculate(capital float64) float64 {
	return k.CalculateSize(capital, k.half)
}

func (k *Kelly) Name() string { return "Kelly Criterion" }
