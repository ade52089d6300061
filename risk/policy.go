package risk

// TradingLimits are account-level hard limits. A zero limit disables the
// corresponding check.
type TradingLimits struct {
	MaxPositionSize      float64 // largest single position, account currency
	MaxDailyLoss         float64 // absolute loss allowed per day, positive number
	MaxDrawdownPct       float64 // 10 means 10% below peak equity
	MaxOpenPositions     int
	MaxConsecutiveLosses int
}

func DefaultTradingLimits() TradingLimits {
	return TradingLimits{
		MaxPositionSize:      1000,
		MaxDailyLoss:         500,
		MaxDrawdownPct:       10,
		MaxOpenPositions:     5,
		MaxConsecutiveLosses: 3,
	}
}

// AccountSnapshot is the live state the limits are evaluated against.
type AccountSnapshot struct {
	PositionSize      float64 // size about to be taken
	DailyPnL          float64
	Equity            float64
	PeakEquity        float64
	OpenPositions     int
	ConsecutiveLosses int
}
