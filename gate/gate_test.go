package gate

import (
	"errors"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/riskguard/journal"
	"github.com/rustyeddy/riskguard/metrics"
	"github.com/rustyeddy/riskguard/risk"
	"github.com/rustyeddy/riskguard/sizing"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func defaultOptions(clock *fakeClock) Options {
	return Options{
		CircuitBreaker: risk.DefaultCircuitBreakerConfig(),
		KillSwitch:     risk.DefaultKillSwitchConfig(),
		Limits:         risk.DefaultTradingLimits(),
		Clock:          clock.Now,
	}
}

func newTestGate(t *testing.T, mutate func(*Options)) (*Gate, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	opts := defaultOptions(clock)
	if mutate != nil {
		mutate(&opts)
	}
	g := New(opts)
	require.NoError(t, g.UpdateAccount(1000, 0))
	return g, clock
}

func newTestJournal(t *testing.T) *journal.SQLite {
	t.Helper()
	j, err := journal.NewSQLite(filepath.Join(t.TempDir(), "gate.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func checkNames(r *risk.Report) []string {
	names := make([]string, 0, len(r.Checks))
	for _, nc := range r.Checks {
		names = append(names, nc.Name)
	}
	return names
}

func TestEvaluateHealthy(t *testing.T) {
	t.Parallel()

	g, _ := newTestGate(t, nil)
	r := g.Evaluate()

	assert.True(t, r.AllPassed())
	assert.Equal(t, risk.Normal, r.OverallLevel)
	assert.Equal(t, []string{risk.KillSwitchCheckName, CheckCircuitBreaker, CheckLimits}, checkNames(r))
	assert.True(t, g.Allowed())
}

func TestFreshGateFailsClosed(t *testing.T) {
	t.Parallel()

	g := New(defaultOptions(newFakeClock()))
	r := g.Peek()

	require.False(t, r.AllPassed())
	nc, ok := r.FirstFailure()
	require.True(t, ok)
	assert.Equal(t, risk.KillSwitchCheckName, nc.Name)
	assert.Contains(t, nc.Check.Message, "Balance below floor")
}

func TestLosingStreakTripsBreaker(t *testing.T) {
	t.Parallel()

	j := newTestJournal(t)
	g, clock := newTestGate(t, func(o *Options) { o.Journal = j })

	for i := 0; i < 3; i++ {
		require.NoError(t, g.RecordTrade(TradeOutcome{Instrument: "EUR_USD", PnL: -10}))
	}

	r := g.Evaluate()
	assert.False(t, r.AllPassed())
	assert.Equal(t, risk.Critical, r.OverallLevel)

	failed := r.FailedChecks()
	require.Len(t, failed, 2)
	assert.Equal(t, CheckCircuitBreaker, failed[0].Name)
	assert.Equal(t, "Max consecutive losses reached: 3", failed[0].Check.Message)
	assert.Equal(t, CheckLimits, failed[1].Name)
	assert.Equal(t, risk.High, failed[1].Check.Level)
	assert.Contains(t, failed[1].Check.Message, risk.CheckConsecutiveLosses)

	st := g.Status()
	assert.True(t, st.CircuitBreaker.IsOpen)
	assert.Equal(t, -30.0, st.CircuitBreaker.DailyPnL)

	// Re-evaluating an unchanged failure is not journaled twice.
	clock.Advance(time.Minute)
	r = g.Evaluate()
	nc, _ := r.FirstFailure()
	assert.Equal(t, "Circuit breaker active. 1740s remaining", nc.Check.Message)

	events, err := j.ListEvents(0)
	require.NoError(t, err)
	assert.Len(t, events, 2)

	trades, err := j.ListTradesClosedBetween(clock.Now().Add(-time.Hour), clock.Now())
	require.NoError(t, err)
	assert.Len(t, trades, 3)

	g.Reset()
	r = g.Evaluate()
	assert.True(t, r.AllPassed())

	// Recoveries are journaled too.
	events, err = j.ListEvents(0)
	require.NoError(t, err)
	require.Len(t, events, 4)
	assert.True(t, events[0].Passed)
	assert.True(t, events[1].Passed)
}

func TestBreakerStaysClosedAfterCooldownOnlyWithoutStreak(t *testing.T) {
	t.Parallel()

	g, clock := newTestGate(t, nil)
	for i := 0; i < 3; i++ {
		require.NoError(t, g.RecordTrade(TradeOutcome{PnL: -1}))
	}
	require.False(t, g.Evaluate().AllPassed())

	clock.Advance(31 * time.Minute)
	nc, ok := g.Peek().FirstFailure()
	require.True(t, ok)
	assert.Equal(t, "Max consecutive losses reached: 3", nc.Check.Message)

	require.NoError(t, g.RecordTrade(TradeOutcome{PnL: 5}))
	assert.True(t, g.Evaluate().AllPassed())
	assert.False(t, g.Status().CircuitBreaker.IsOpen)
}

func TestPeekDoesNotLatch(t *testing.T) {
	t.Parallel()

	g, _ := newTestGate(t, nil)
	g.UpdateAccount(50, 0)

	assert.False(t, g.Peek().AllPassed())
	assert.False(t, g.Status().KillSwitch.IsTriggered)

	g.UpdateAccount(1000, 0)
	assert.True(t, g.Peek().AllPassed())

	g.UpdateAccount(50, 0)
	assert.False(t, g.Evaluate().AllPassed())
	g.UpdateAccount(1000, 0)

	nc, ok := g.Peek().FirstFailure()
	require.True(t, ok)
	assert.Equal(t, "Kill switch already triggered: Balance below floor: 50 < 100", nc.Check.Message)

	ks := g.Status().KillSwitch
	assert.True(t, ks.IsTriggered)
	assert.Equal(t, risk.ConditionBalanceFloor, ks.Condition)
}

func TestAPIErrors(t *testing.T) {
	t.Parallel()

	g, _ := newTestGate(t, nil)
	for i := 0; i < 4; i++ {
		g.RecordError()
	}
	assert.True(t, g.Peek().AllPassed())

	g.RecordError()
	nc, ok := g.Peek().FirstFailure()
	require.True(t, ok)
	assert.Equal(t, "Max API errors reached: 5", nc.Check.Message)

	g.ClearErrors()
	assert.True(t, g.Peek().AllPassed())
}

func TestHalt(t *testing.T) {
	t.Parallel()

	j := newTestJournal(t)
	g, _ := newTestGate(t, func(o *Options) { o.Journal = j })

	require.NoError(t, g.Halt("maintenance"))
	r := g.Evaluate()
	nc, ok := r.FirstFailure()
	require.True(t, ok)
	assert.Equal(t, "Kill switch already triggered: Manual: maintenance", nc.Check.Message)

	events, err := j.ListEvents(0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, risk.KillSwitchCheckName, events[0].Check)
	assert.Equal(t, "Manual: maintenance", events[0].Message)

	g.Reset()
	assert.True(t, g.Evaluate().AllPassed())
}

func TestHaltDisabled(t *testing.T) {
	t.Parallel()

	g, _ := newTestGate(t, func(o *Options) { o.KillSwitch.ManualOverride = false })

	err := g.Halt("maintenance")
	assert.ErrorIs(t, err, ErrManualOverrideDisabled)
	assert.True(t, g.Evaluate().AllPassed())
}

func TestHaltDisabledWhileLatched(t *testing.T) {
	t.Parallel()

	j := newTestJournal(t)
	g, _ := newTestGate(t, func(o *Options) {
		o.Journal = j
		o.KillSwitch.ManualOverride = false
	})

	require.NoError(t, g.UpdateAccount(10, 0))
	require.False(t, g.Evaluate().AllPassed())
	require.True(t, g.Status().KillSwitch.IsTriggered)

	before, err := j.ListEvents(0)
	require.NoError(t, err)

	assert.ErrorIs(t, g.Halt("maintenance"), ErrManualOverrideDisabled)

	after, err := j.ListEvents(0)
	require.NoError(t, err)
	assert.Len(t, after, len(before))
	assert.NotContains(t, g.Status().KillSwitch.Reason, "Manual")
}

func TestTripBreaker(t *testing.T) {
	t.Parallel()

	g, clock := newTestGate(t, nil)
	g.TripBreaker("news event")

	nc, ok := g.Peek().FirstFailure()
	require.True(t, ok)
	assert.Equal(t, CheckCircuitBreaker, nc.Name)
	assert.Equal(t, "Circuit breaker active. 1800s remaining", nc.Check.Message)
	assert.True(t, g.Status().CircuitBreaker.IsOpen)

	clock.Advance(30 * time.Minute)
	assert.True(t, g.Peek().AllPassed())
	assert.False(t, g.Status().CircuitBreaker.IsOpen)
}

func TestEvaluateOrder(t *testing.T) {
	t.Parallel()

	g, _ := newTestGate(t, nil)

	r := g.EvaluateOrder(2500)
	nc, ok := r.FirstFailure()
	require.True(t, ok)
	assert.Equal(t, CheckLimits, nc.Name)
	assert.Equal(t, risk.High, nc.Check.Level)
	assert.Contains(t, nc.Check.Message, "position_size: ")

	// Limits failures do not latch anything.
	assert.True(t, g.Evaluate().AllPassed())
	assert.True(t, g.EvaluateOrder(900).AllPassed())
}

func TestDrawdownLimit(t *testing.T) {
	t.Parallel()

	g, _ := newTestGate(t, nil)
	g.UpdateAccount(2000, 0)
	g.UpdateAccount(1850, 0)
	assert.True(t, g.Peek().AllPassed())

	g.UpdateAccount(1790, 0)
	nc, ok := g.Peek().FirstFailure()
	require.True(t, ok)
	assert.Contains(t, nc.Check.Message, risk.CheckDrawdown)
	assert.Equal(t, 2000.0, g.Status().PeakEquity)
}

func TestSizeAntiMartingaleFollowsTrades(t *testing.T) {
	t.Parallel()

	am := sizing.NewAntiMartingale(sizing.AntiMartingaleParams{BaseSize: 100})
	g, _ := newTestGate(t, func(o *Options) {
		o.Sizer = sizing.NewSizer(am, sizing.SizerConfig{MaxSize: 1000})
	})

	assert.InDelta(t, 100.0, g.Size(10000), 1e-9)

	require.NoError(t, g.RecordTrade(TradeOutcome{PnL: 10}))
	assert.InDelta(t, 150.0, g.Size(10000), 1e-9)

	require.NoError(t, g.RecordTrade(TradeOutcome{PnL: -10}))
	assert.InDelta(t, 50.0, g.Size(10000), 1e-9)

	assert.Equal(t, "Anti-Martingale", g.Status().Strategy)
}

func TestSizeDefaultsToModerate(t *testing.T) {
	t.Parallel()

	g, _ := newTestGate(t, nil)
	assert.InDelta(t, 200.0, g.Size(10000), 1e-9)
	assert.Equal(t, "Fixed Fractional", g.Status().Strategy)
}

type failingJournal struct{}

func (failingJournal) RecordTrade(journal.TradeRecord) error { return errors.New("disk full") }
func (failingJournal) RecordEvent(journal.GuardEvent) error  { return errors.New("disk full") }
func (failingJournal) Close() error                          { return nil }

func TestJournalErrorsDoNotHideTrades(t *testing.T) {
	t.Parallel()

	g, _ := newTestGate(t, func(o *Options) { o.Journal = failingJournal{} })

	for i := 0; i < 3; i++ {
		err := g.RecordTrade(TradeOutcome{PnL: -1})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "journal trade: disk full")
	}

	assert.False(t, g.Evaluate().AllPassed())
	assert.Equal(t, 3, g.Status().CircuitBreaker.ConsecutiveLosses)
}

func gaugeValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() == name && len(mf.GetMetric()) > 0 {
			return mf.GetMetric()[0].GetGauge().GetValue()
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

func TestMetrics(t *testing.T) {
	t.Parallel()

	rec := metrics.NewRecorder()
	g, _ := newTestGate(t, func(o *Options) { o.Metrics = rec })

	for i := 0; i < 3; i++ {
		require.NoError(t, g.RecordTrade(TradeOutcome{PnL: -2}))
	}
	g.Evaluate()

	assert.Equal(t, float64(risk.Critical), gaugeValue(t, rec.Registry(), "riskguard_overall_level"))
	assert.Equal(t, 1.0, gaugeValue(t, rec.Registry(), "riskguard_circuit_breaker_open"))
	assert.Equal(t, 3.0, gaugeValue(t, rec.Registry(), "riskguard_consecutive_losses"))
	assert.Equal(t, -6.0, gaugeValue(t, rec.Registry(), "riskguard_daily_pnl"))

	require.NoError(t, g.Halt("stop"))
	assert.Equal(t, 1.0, gaugeValue(t, rec.Registry(), "riskguard_kill_switch_triggered"))

	g.Reset()
	assert.Equal(t, 0.0, gaugeValue(t, rec.Registry(), "riskguard_kill_switch_triggered"))
	assert.Equal(t, 0.0, gaugeValue(t, rec.Registry(), "riskguard_circuit_breaker_open"))
}

func TestConcurrentAccess(t *testing.T) {
	t.Parallel()

	g, _ := newTestGate(t, func(o *Options) { o.Metrics = metrics.NewRecorder() })

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for n := 0; n < 50; n++ {
				switch (i + n) % 5 {
				case 0:
					_ = g.RecordTrade(TradeOutcome{PnL: float64(n%3 - 1)})
				case 1:
					g.UpdateAccount(1000+float64(n), n%4)
				case 2:
					g.Evaluate()
				case 3:
					g.Peek()
					g.Status()
				case 4:
					g.Size(5000)
				}
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 80, g.Status().CircuitBreaker.Trades)
}

func TestReplayDoesNotJournal(t *testing.T) {
	t.Parallel()

	j := newTestJournal(t)
	rec := metrics.NewRecorder()
	g, clock := newTestGate(t, func(o *Options) {
		o.Journal = j
		o.Metrics = rec
	})

	g.Replay(TradeOutcome{PnL: -1}, TradeOutcome{PnL: -2}, TradeOutcome{PnL: -3})
	assert.Equal(t, 3, g.Status().CircuitBreaker.ConsecutiveLosses)

	trades, err := j.ListTradesClosedBetween(clock.Now().Add(-time.Hour), clock.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, trades)
	assert.False(t, g.Peek().AllPassed())
}

func TestDailyLossRollsOverWithoutTrades(t *testing.T) {
	t.Parallel()

	g, clock := newTestGate(t, nil)
	require.NoError(t, g.RecordTrade(TradeOutcome{PnL: -600}))
	require.NoError(t, g.RecordTrade(TradeOutcome{PnL: 10}))
	g.Reset()

	nc, ok := g.Peek().FirstFailure()
	require.True(t, ok)
	assert.Equal(t, risk.CheckDailyLoss, nc.Name)

	clock.Advance(48 * time.Hour)
	assert.True(t, g.Evaluate().AllPassed())
	assert.Zero(t, g.Status().CircuitBreaker.DailyPnL)
}

func TestNonFiniteInputsRejected(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		run  func(g *Gate) error
	}{
		{"nan pnl", func(g *Gate) error { return g.RecordTrade(TradeOutcome{PnL: math.NaN()}) }},
		{"inf pnl", func(g *Gate) error { return g.RecordTrade(TradeOutcome{PnL: math.Inf(-1)}) }},
		{"nan balance", func(g *Gate) error { return g.UpdateAccount(math.NaN(), 0) }},
		{"inf balance", func(g *Gate) error { return g.UpdateAccount(math.Inf(1), 0) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			j := newTestJournal(t)
			g, clock := newTestGate(t, func(o *Options) { o.Journal = j })
			require.NoError(t, g.RecordTrade(TradeOutcome{PnL: -1}))
			require.NoError(t, g.RecordTrade(TradeOutcome{PnL: -1}))

			assert.ErrorIs(t, tt.run(g), ErrNotFinite)

			st := g.Status()
			assert.Equal(t, 2, st.CircuitBreaker.ConsecutiveLosses)
			assert.Equal(t, -2.0, st.CircuitBreaker.DailyPnL)
			assert.Equal(t, 1000.0, st.Balance)

			trades, err := j.ListTradesClosedBetween(clock.Now().Add(-time.Hour), clock.Now().Add(time.Hour))
			require.NoError(t, err)
			assert.Len(t, trades, 2)
		})
	}
}

func TestReplayUsesCloseTime(t *testing.T) {
	t.Parallel()

	g, clock := newTestGate(t, nil)
	now := clock.Now()
	yesterday := now.Add(-24 * time.Hour)
	morning := now.Add(-2 * time.Hour)

	g.Replay(
		TradeOutcome{PnL: -700, ClosedAt: yesterday},
		TradeOutcome{PnL: -5, ClosedAt: morning},
		TradeOutcome{PnL: math.NaN(), ClosedAt: morning},
		TradeOutcome{PnL: -1},
	)

	hist := g.History()
	require.Len(t, hist, 3)
	assert.True(t, yesterday.Equal(hist[0].Time))
	assert.True(t, morning.Equal(hist[1].Time))
	assert.True(t, now.Equal(hist[2].Time))

	st := g.Status()
	assert.Equal(t, 3, st.CircuitBreaker.ConsecutiveLosses)
	assert.Equal(t, -6.0, st.CircuitBreaker.DailyPnL)
}
