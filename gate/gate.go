// Package gate is the single entry point a trading loop talks to. It owns
// the circuit breaker, the guard with its kill switch, the trading limits
// and the position sizer, and serializes access to all of them.
//
// Writers (RecordTrade, UpdateAccount, Evaluate, ...) take the lock
// exclusively. Readers (Peek, Status, Size) share it and never latch
// anything.
package gate

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/riskguard/journal"
	"github.com/rustyeddy/riskguard/metrics"
	"github.com/rustyeddy/riskguard/risk"
	"github.com/rustyeddy/riskguard/sizing"
)

// Names the gate registers its checks under, after the kill switch.
const (
	CheckCircuitBreaker = "circuit_breaker"
	CheckLimits         = "limits"
)

// ErrManualOverrideDisabled is returned by Halt when the kill switch config
// does not allow manual triggering.
var ErrManualOverrideDisabled = errors.New("manual kill switch override is disabled")

// ErrNotFinite is returned for NaN or infinite P&L and balances.
var ErrNotFinite = errors.New("value must be a finite number")

type Options struct {
	CircuitBreaker risk.CircuitBreakerConfig
	KillSwitch     risk.KillSwitchConfig
	Limits         risk.TradingLimits

	// Sizer defaults to 2% fixed fractional with no bounds.
	Sizer *sizing.Sizer

	// Journal, Metrics and Logger are optional.
	Journal journal.Journal
	Metrics *metrics.Recorder
	Logger  *zerolog.Logger

	// Clock defaults to time.Now.
	Clock func() time.Time
}

// TradeOutcome is a closed trade reported by the caller.
type TradeOutcome struct {
	TradeID    string
	Instrument string
	PnL        float64
	ClosedAt   time.Time
	Reason     string
}

type Gate struct {
	mu sync.RWMutex

	breaker *risk.CircuitBreaker
	guard   *risk.Guard
	limits  risk.TradingLimits
	sizer   *sizing.Sizer

	journal journal.Journal
	metrics *metrics.Recorder
	log     zerolog.Logger
	now     func() time.Time

	balance       float64
	peakEquity    float64
	openPositions int

	// set only while a writer holds mu
	enforcing    bool
	proposedSize float64

	// last pass/fail per check name, for journaling transitions
	lastPassed map[string]bool
}

func New(opts Options) *Gate {
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}
	sizer := opts.Sizer
	if sizer == nil {
		sizer = sizing.NewSizer(sizing.Moderate(), sizing.SizerConfig{})
	}

	breaker := risk.NewCircuitBreaker(opts.CircuitBreaker)
	breaker.SetClock(now)
	ks := risk.NewKillSwitch(opts.KillSwitch)
	ks.SetClock(now)

	g := &Gate{
		breaker:    breaker,
		guard:      risk.NewGuard(ks),
		limits:     opts.Limits,
		sizer:      sizer,
		journal:    opts.Journal,
		metrics:    opts.Metrics,
		log:        log.With().Str("component", "gate").Logger(),
		now:        now,
		lastPassed: make(map[string]bool),
	}
	g.guard.AddCheck(CheckCircuitBreaker, g.breakerCheck)
	g.guard.AddCheck(CheckLimits, g.limitsCheck)
	return g
}

func (g *Gate) breakerCheck() risk.Check {
	if g.enforcing {
		return g.breaker.CheckAndTrigger()
	}
	return g.breaker.Check()
}

func (g *Gate) limitsCheck() risk.Check {
	return g.limits.Check(g.snapshot()).At(g.now())
}

func (g *Gate) snapshot() risk.AccountSnapshot {
	return risk.AccountSnapshot{
		PositionSize:      g.proposedSize,
		DailyPnL:          g.breaker.TodayPnL(),
		Equity:            g.balance,
		PeakEquity:        g.peakEquity,
		OpenPositions:     g.openPositions,
		ConsecutiveLosses: g.breaker.ConsecutiveLosses(),
	}
}

// RecordTrade feeds a closed trade to the breaker and the sizer, then
// journals it. A journal error is returned after the guards have already
// seen the trade.
func (g *Gate) RecordTrade(t TradeOutcome) error {
	if !finite(t.PnL) {
		return fmt.Errorf("pnl %v: %w", t.PnL, ErrNotFinite)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.recordOutcome(t.PnL, g.now())

	g.log.Debug().
		Float64("pnl", t.PnL).
		Str("instrument", t.Instrument).
		Int("consecutive_losses", g.breaker.ConsecutiveLosses()).
		Float64("daily_pnl", g.breaker.DailyPnL()).
		Msg("trade recorded")

	if g.metrics != nil {
		g.metrics.ObserveTrade(t.PnL)
		g.metrics.ObserveBreaker(g.breaker.Status())
	}

	if g.journal == nil {
		return nil
	}
	closed := t.ClosedAt
	if closed.IsZero() {
		closed = g.now()
	}
	err := g.journal.RecordTrade(journal.TradeRecord{
		TradeID:    t.TradeID,
		Instrument: t.Instrument,
		PnL:        t.PnL,
		ClosedAt:   closed,
		Reason:     t.Reason,
	})
	if err != nil {
		g.log.Error().Err(err).Msg("journal trade")
		return fmt.Errorf("journal trade: %w", err)
	}
	return nil
}

// Replay feeds trades that are already journaled back into the breaker
// and the sizer, stamped with their close time when set. Nothing is
// journaled or counted. Non-finite P&L is skipped.
func (g *Gate) Replay(trades ...TradeOutcome) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, t := range trades {
		if !finite(t.PnL) {
			g.log.Warn().Str("trade_id", t.TradeID).Msg("skipping trade with non-finite pnl")
			continue
		}
		at := t.ClosedAt
		if at.IsZero() {
			at = g.now()
		}
		g.recordOutcome(t.PnL, at)
	}
	g.log.Debug().Int("trades", len(trades)).Msg("trades replayed")
}

func (g *Gate) recordOutcome(pnl float64, at time.Time) {
	g.breaker.RecordTradeAt(pnl, at)
	if am, ok := g.sizer.Strategy().(*sizing.AntiMartingale); ok {
		am.RecordResult(pnl >= 0)
	}
}

// UpdateAccount replaces the observed balance and open position count.
// The highest balance seen is kept as peak equity for the drawdown limit.
// A non-finite balance is rejected and leaves the state unchanged.
func (g *Gate) UpdateAccount(balance float64, openPositions int) error {
	if !finite(balance) {
		return fmt.Errorf("balance %v: %w", balance, ErrNotFinite)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.balance = balance
	g.openPositions = openPositions
	if balance > g.peakEquity {
		g.peakEquity = balance
	}
	g.guard.UpdateState(balance, openPositions)
	return nil
}

func (g *Gate) RecordError() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.guard.RecordError()
}

func (g *Gate) ClearErrors() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.guard.ClearErrors()
}

// Halt latches the kill switch by hand.
func (g *Gate) Halt(reason string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.guard.KillSwitchConfig().ManualOverride {
		return ErrManualOverrideDisabled
	}

	g.guard.ManualTrigger(reason)
	st := g.guard.KillSwitchStatus()

	g.log.Info().Str("reason", st.Reason).Msg("kill switch halted")
	g.observeState()
	g.journalCheck(risk.NamedCheck{
		Name:  risk.KillSwitchCheckName,
		Check: risk.Fail(risk.Critical, st.Reason).At(g.now()),
	})
	g.lastPassed[risk.KillSwitchCheckName] = false
	return nil
}

// TripBreaker opens the circuit breaker for a full cooldown.
func (g *Gate) TripBreaker(reason string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	c := g.breaker.Trigger(reason)
	g.log.Info().Str("reason", reason).Msg("circuit breaker tripped")
	g.observeState()
	g.journalCheck(risk.NamedCheck{Name: CheckCircuitBreaker, Check: c})
	g.lastPassed[CheckCircuitBreaker] = false
}

// Reset clears both latches and the loss streak. Account state, daily P&L
// and the sizer are left alone.
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.breaker.Reset()
	g.guard.ResetKillSwitch()
	g.log.Info().Msg("guards reset")
	g.observeState()
}

// Evaluate runs every check, latching the kill switch and the breaker on
// failure.
func (g *Gate) Evaluate() *risk.Report {
	return g.EvaluateOrder(0)
}

// EvaluateOrder is Evaluate with size checked against the position size
// limit.
func (g *Gate) EvaluateOrder(size float64) *risk.Report {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.enforcing, g.proposedSize = true, size
	r := g.guard.EnforceReport()
	g.enforcing, g.proposedSize = false, 0

	for _, nc := range r.Checks {
		if !nc.Check.Passed {
			g.log.Warn().
				Str("check", nc.Name).
				Str("level", nc.Check.Level.String()).
				Msg(nc.Check.Message)
		}
		if prev, seen := g.lastPassed[nc.Name]; (!seen && !nc.Check.Passed) || (seen && prev != nc.Check.Passed) {
			g.journalCheck(nc)
		}
		g.lastPassed[nc.Name] = nc.Check.Passed
	}

	if g.metrics != nil {
		g.metrics.ObserveReport(r)
	}
	g.observeState()
	return r
}

// Peek reports what Evaluate would see without latching anything.
func (g *Gate) Peek() *risk.Report {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.guard.Report()
}

// Allowed is a shortcut for Evaluate().AllPassed().
func (g *Gate) Allowed() bool {
	return g.Evaluate().AllPassed()
}

// Size runs the configured sizer. It does not consult the guards.
func (g *Gate) Size(capital float64) float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()

	size := g.sizer.Calculate(capital)
	if g.metrics != nil {
		g.metrics.ObserveSize(g.sizer.Strategy().Name(), size)
	}
	return size
}

// History returns the breaker's retained trade outcomes, oldest first.
func (g *Gate) History() []risk.TradeOutcome {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.breaker.History()
}

// Status is a point-in-time view for dashboards and the /status endpoint.
type Status struct {
	Report         *risk.Report              `json:"report"`
	CircuitBreaker risk.CircuitBreakerStatus `json:"circuit_breaker"`
	KillSwitch     risk.KillSwitchStatus     `json:"kill_switch"`
	Strategy       string                    `json:"strategy"`
	Balance        float64                   `json:"balance"`
	PeakEquity     float64                   `json:"peak_equity"`
	OpenPositions  int                       `json:"open_positions"`
}

func (g *Gate) Status() Status {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return Status{
		Report:         g.guard.Report(),
		CircuitBreaker: g.breaker.Status(),
		KillSwitch:     g.guard.KillSwitchStatus(),
		Strategy:       g.sizer.Strategy().Name(),
		Balance:        g.balance,
		PeakEquity:     g.peakEquity,
		OpenPositions:  g.openPositions,
	}
}

// caller holds mu
func (g *Gate) observeState() {
	if g.metrics == nil {
		return
	}
	g.metrics.ObserveBreaker(g.breaker.Status())
	g.metrics.ObserveKillSwitch(g.guard.KillSwitchStatus())
}

// caller holds mu
func (g *Gate) journalCheck(nc risk.NamedCheck) {
	if g.journal == nil {
		return
	}
	if err := g.journal.RecordEvent(journal.EventFromCheck(nc)); err != nil {
		g.log.Error().Err(err).Str("check", nc.Name).Msg("journal event")
	}
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
