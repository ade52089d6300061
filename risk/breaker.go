package risk

import (
	"fmt"
	"time"
)

// historySize is how many trade outcomes the breaker keeps.
const historySize = 100

// CircuitBreakerConfig holds the breaker thresholds.
type CircuitBreakerConfig struct {
	MaxConsecutiveLosses int
	Cooldown             time.Duration

	// MaxDailyDrawdownPct and MinTradesForEvaluation are carried for
	// reporting only. Check does not consult them.
	MaxDailyDrawdownPct    float64
	MinTradesForEvaluation int
}

func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		MaxConsecutiveLosses:   3,
		MaxDailyDrawdownPct:    5.0,
		Cooldown:               30 * time.Minute,
		MinTradesForEvaluation: 5,
	}
}

// TradeOutcome is one closed trade as seen by the breaker.
type TradeOutcome struct {
	Time       time.Time
	PnL        float64
	Profitable bool
}

// CircuitBreaker halts trading after a losing streak and keeps failing for
// a cooldown after it trips. It is not safe for concurrent use.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig
	now func() time.Time

	history           []TradeOutcome
	consecutiveLosses int
	dailyPnL          float64
	lastReset         time.Time
	triggeredAt       time.Time
}

func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	cb := &CircuitBreaker{
		cfg:     cfg,
		now:     time.Now,
		history: make([]TradeOutcome, 0, historySize),
	}
	cb.lastReset = cb.now()
	return cb
}

// SetClock replaces the wall clock. It also restamps the daily reset so a
// fresh breaker starts on the clock's current day.
func (cb *CircuitBreaker) SetClock(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	cb.now = now
	if len(cb.history) == 0 {
		cb.lastReset = now()
	}
}

func (cb *CircuitBreaker) Config() CircuitBreakerConfig {
	return cb.cfg
}

// RecordTrade feeds one closed trade into the breaker.
func (cb *CircuitBreaker) RecordTrade(pnl float64) {
	cb.RecordTradeAt(pnl, cb.now())
}

// RecordTradeAt feeds a trade that closed at t, for replaying trades from a
// journal. A trade from a day before the current one still counts toward
// the streak and history but not toward daily P&L.
func (cb *CircuitBreaker) RecordTradeAt(pnl float64, t time.Time) {
	switch day, last := utcDay(t), utcDay(cb.lastReset); {
	case day.After(last):
		cb.dailyPnL = pnl
		cb.lastReset = t
	case day.Equal(last):
		cb.dailyPnL += pnl
	}

	if pnl < 0 {
		cb.consecutiveLosses++
	} else {
		cb.consecutiveLosses = 0
	}

	cb.history = append(cb.history, TradeOutcome{Time: t, PnL: pnl, Profitable: pnl >= 0})
	for len(cb.history) > historySize {
		cb.history = cb.history[1:]
	}
}

// Check evaluates the breaker without changing it.
func (cb *CircuitBreaker) Check() Check {
	now := cb.now()

	if !cb.triggeredAt.IsZero() {
		elapsed := now.Sub(cb.triggeredAt)
		if elapsed < cb.cfg.Cooldown {
			remaining := cb.cfg.Cooldown - elapsed
			return Fail(Critical, fmt.Sprintf("Circuit breaker active. %ds remaining",
				int64(remaining/time.Second))).At(now)
		}
	}

	if cb.consecutiveLosses >= cb.cfg.MaxConsecutiveLosses {
		return Fail(Critical, fmt.Sprintf("Max consecutive losses reached: %d",
			cb.consecutiveLosses)).At(now)
	}

	return Pass("Circuit breaker OK").At(now)
}

// CheckAndTrigger evaluates the breaker and starts the cooldown on the
// first failure. A breaker that is already tripped is not restamped.
func (cb *CircuitBreaker) CheckAndTrigger() Check {
	c := cb.Check()
	if !c.Passed && cb.triggeredAt.IsZero() {
		cb.triggeredAt = cb.now()
	}
	return c
}

// Trigger trips the breaker by hand.
func (cb *CircuitBreaker) Trigger(reason string) Check {
	cb.triggeredAt = cb.now()
	return Fail(Critical, reason).At(cb.triggeredAt)
}

// Reset clears the trip and the loss streak. Daily P&L and history stay.
func (cb *CircuitBreaker) Reset() {
	cb.triggeredAt = time.Time{}
	cb.consecutiveLosses = 0
}

func (cb *CircuitBreaker) ConsecutiveLosses() int { return cb.consecutiveLosses }
func (cb *CircuitBreaker) DailyPnL() float64      { return cb.dailyPnL }

// TodayPnL is DailyPnL as of the breaker clock: zero once the day of the
// last recorded trade has passed, even if no trade has rolled it over yet.
func (cb *CircuitBreaker) TodayPnL() float64 {
	if !sameDay(cb.now(), cb.lastReset) {
		return 0
	}
	return cb.dailyPnL
}

// History returns a copy of the retained outcomes, oldest first.
func (cb *CircuitBreaker) History() []TradeOutcome {
	out := make([]TradeOutcome, len(cb.history))
	copy(out, cb.history)
	return out
}

// CircuitBreakerStatus is a display snapshot. IsOpen is recomputed from
// Check on every call; a stale TriggeredAt alone does not keep it open.
type CircuitBreakerStatus struct {
	IsOpen            bool      `json:"is_open"`
	ConsecutiveLosses int       `json:"consecutive_losses"`
	DailyPnL          float64   `json:"daily_pnl"`
	TriggeredAt       time.Time `json:"triggered_at,omitzero"`
	Trades            int       `json:"trades"`
}

func (cb *CircuitBreaker) Status() CircuitBreakerStatus {
	return CircuitBreakerStatus{
		IsOpen:            !cb.triggeredAt.IsZero() && !cb.Check().Passed,
		ConsecutiveLosses: cb.consecutiveLosses,
		DailyPnL:          cb.TodayPnL(),
		TriggeredAt:       cb.triggeredAt,
		Trades:            len(cb.history),
	}
}

func sameDay(a, b time.Time) bool {
	return utcDay(a).Equal(utcDay(b))
}

func utcDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
