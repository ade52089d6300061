// Package sizing turns available capital into a position size.
//
// Each strategy is a small value object implementing Strategy. A Sizer owns
// one strategy and clamps its output to configured bounds, so callers can
// swap formulas without touching the code that asks for a size.
package sizing

import "math"

// Strategy computes a raw position size from available capital.
type Strategy interface {
	Calculate(capital float64) float64
	Name() string
}

// SizerConfig bounds the sizes a Sizer may return. A zero MaxSize means no
// upper bound.
type SizerConfig struct {
	MinSize float64 `json:"min_size" yaml:"min_size"`
	MaxSize float64 `json:"max_size" yaml:"max_size"`
}

type Sizer struct {
	strategy Strategy
	minSize  float64
	maxSize  float64
}

// NewSizer normalizes cfg rather than rejecting it: a negative MinSize
// becomes 0, a zero MaxSize becomes unbounded and a MaxSize below MinSize
// is raised to MinSize.
func NewSizer(s Strategy, cfg SizerConfig) *Sizer {
	lo := math.Max(cfg.MinSize, 0)
	hi := cfg.MaxSize
	if hi == 0 {
		hi = math.MaxFloat64
	}
	if hi < lo {
		hi = lo
	}
	return &Sizer{strategy: s, minSize: lo, maxSize: hi}
}

// Calculate returns the strategy's size clamped to [min, max].
func (s *Sizer) Calculate(capital float64) float64 {
	size := s.strategy.Calculate(capital)
	if math.IsNaN(size) {
		return s.minSize
	}
	return math.Min(math.Max(size, s.minSize), s.maxSize)
}

func (s *Sizer) Strategy() Strategy {
	return s.strategy
}

// Bounds returns the normalized min and max sizes.
func (s *Sizer) Bounds() (lo, hi float64) {
	return s.minSize, s.maxSize
}
