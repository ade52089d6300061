package risk

import "fmt"

// Names used for the checks in a limits report.
const (
	CheckPositionSize      = "position_size"
	CheckDailyLoss         = "daily_loss"
	CheckDrawdown          = "drawdown"
	CheckOpenPositions     = "open_positions"
	CheckConsecutiveLosses = "consecutive_losses"
)

// Evaluate checks every enabled limit against snap. Failures are High.
func (l TradingLimits) Evaluate(snap AccountSnapshot) *Report {
	r := NewReport()

	if l.MaxPositionSize > 0 {
		r.Add(CheckPositionSize, FromBool(snap.PositionSize <= l.MaxPositionSize,
			fmt.Sprintf("position size %.2f, max %.2f", snap.PositionSize, l.MaxPositionSize)))
	}

	if l.MaxDailyLoss > 0 {
		r.Add(CheckDailyLoss, FromBool(snap.DailyPnL > -l.MaxDailyLoss,
			fmt.Sprintf("daily P&L %.2f, limit %.2f", snap.DailyPnL, -l.MaxDailyLoss)))
	}

	if l.MaxDrawdownPct > 0 {
		dd := DrawdownPct(snap.PeakEquity, snap.Equity)
		r.Add(CheckDrawdown, FromBool(dd < l.MaxDrawdownPct,
			fmt.Sprintf("drawdown %.2f%%, max %.2f%%", dd, l.MaxDrawdownPct)))
	}

	if l.MaxOpenPositions > 0 {
		r.Add(CheckOpenPositions, FromBool(snap.OpenPositions <= l.MaxOpenPositions,
			fmt.Sprintf("open positions %d, max %d", snap.OpenPositions, l.MaxOpenPositions)))
	}

	if l.MaxConsecutiveLosses > 0 {
		r.Add(CheckConsecutiveLosses, FromBool(snap.ConsecutiveLosses < l.MaxConsecutiveLosses,
			fmt.Sprintf("consecutive losses %d, max %d", snap.ConsecutiveLosses, l.MaxConsecutiveLosses)))
	}

	return r
}

// Check folds the limits report into a single verdict: the first failure,
// or a pass when every limit holds.
func (l TradingLimits) Check(snap AccountSnapshot) Check {
	r := l.Evaluate(snap)
	if nc, ok := r.FirstFailure(); ok {
		nc.Check.Message = nc.Name + ": " + nc.Check.Message
		return nc.Check
	}
	return Pass("Trading limits OK")
}
