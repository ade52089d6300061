package sizing

import "math"

const minMultiplier = 0.25

// AntiMartingale grows the stake after wins and shrinks it after losses.
// Its size depends only on the streak, never on capital.
type AntiMartingale struct {
	baseSize          float64
	consecutiveWins   int
	consecutiveLosses int
	winMultiplier     float64
	lossDivisor       float64
	maxMultiplier     float64
}

type AntiMartingaleParams struct {
	BaseSize float64
	// Zero values select 1.5, 2 and 4.
	WinMultiplier float64
	LossDivisor   float64
	MaxMultiplier float64
}

func NewAntiMartingale(p AntiMartingaleParams) *AntiMartingale {
	a := &AntiMartingale{
		baseSize:      math.Max(p.BaseSize, 0),
		winMultiplier: 1.5,
		lossDivisor:   2.0,
		maxMultiplier: 4.0,
	}
	if p.WinMultiplier > 0 {
		a.winMultiplier = p.WinMultiplier
	}
	if p.LossDivisor > 0 {
		a.lossDivisor = p.LossDivisor
	}
	if p.MaxMultiplier > 0 {
		a.maxMultiplier = math.Max(p.MaxMultiplier, minMultiplier)
	}
	return a
}

// RecordResult extends the current streak or starts a new one.
func (a *AntiMartingale) RecordResult(win bool) {
	if win {
		a.consecutiveWins++
		a.consecutiveLosses = 0
	} else {
		a.consecutiveLosses++
		a.consecutiveWins = 0
	}
}

func (a *AntiMartingale) Streak() (wins, losses int) {
	return a.consecutiveWins, a.consecutiveLosses
}

// Multiplier is winMult^wins / lossDiv^losses clamped to [0.25, max].
func (a *AntiMartingale) Multiplier() float64 {
	m := math.Pow(a.winMultiplier, float64(a.consecutiveWins)) /
		math.Pow(a.lossDivisor, float64(a.consecutiveLosses))
	return clamp(m, minMultiplier, a.maxMultiplier)
}

// Calculate ignores capital.
func (a *AntiMartingale) Calculate(_ float64) float64 {
	return a.baseSize * a.Multiplier()
}

func (a *AntiMartingale) Name() string { return "Anti-Martingale" }
