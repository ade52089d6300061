// Package metrics exports guard state as Prometheus collectors.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rustyeddy/riskguard/risk"
)

const namespace = "riskguard"

// Recorder owns its registry so several gates (and tests) can coexist in
// one process.
type Recorder struct {
	reg *prometheus.Registry

	checksTotal       *prometheus.CounterVec
	checkPassed       *prometheus.GaugeVec
	overallLevel      prometheus.Gauge
	breakerOpen       prometheus.Gauge
	consecutiveLosses prometheus.Gauge
	dailyPnL          prometheus.Gauge
	killSwitch        prometheus.Gauge
	tradesTotal       *prometheus.CounterVec
	tradePnL          prometheus.Histogram
	positionSize      *prometheus.GaugeVec
}

func NewRecorder() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		checksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "checks_total",
				Help:      "Guard check evaluations by check name and resulting level",
			},
			[]string{"check", "level"},
		),
		checkPassed: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "check_passed",
				Help:      "1 if the last evaluation of the check passed, 0 otherwise",
			},
			[]string{"check"},
		),
		overallLevel: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "overall_level",
			Help:      "Worst risk level of the last evaluation (0=Normal .. 3=Critical)",
		}),
		breakerOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_open",
			Help:      "1 while the circuit breaker is tripped and failing",
		}),
		consecutiveLosses: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "consecutive_losses",
			Help:      "Current losing streak seen by the circuit breaker",
		}),
		dailyPnL: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "daily_pnl",
			Help:      "Realized P&L for the current UTC day",
		}),
		killSwitch: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "kill_switch_triggered",
			Help:      "1 while the kill switch is latched",
		}),
		tradesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "trades_total",
				Help:      "Closed trades recorded, by outcome",
			},
			[]string{"outcome"},
		),
		tradePnL: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "trade_pnl",
			Help:      "Distribution of realized trade P&L",
			Buckets:   []float64{-1000, -500, -100, -50, -10, 0, 10, 50, 100, 500, 1000},
		}),
		positionSize: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "position_size",
				Help:      "Last position size computed, by sizing strategy",
			},
			[]string{"strategy"},
		),
	}

	r.reg.MustRegister(
		r.checksTotal,
		r.checkPassed,
		r.overallLevel,
		r.breakerOpen,
		r.consecutiveLosses,
		r.dailyPnL,
		r.killSwitch,
		r.tradesTotal,
		r.tradePnL,
		r.positionSize,
	)
	return r
}

func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

// Handler serves the recorder's registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

func (r *Recorder) ObserveReport(rep *risk.Report) {
	for _, nc := range rep.Checks {
		r.checksTotal.WithLabelValues(nc.Name, nc.Check.Level.String()).Inc()
		r.checkPassed.WithLabelValues(nc.Name).Set(boolGauge(nc.Check.Passed))
	}
	r.overallLevel.Set(float64(rep.OverallLevel))
}

func (r *Recorder) ObserveBreaker(s risk.CircuitBreakerStatus) {
	r.breakerOpen.Set(boolGauge(s.IsOpen))
	r.consecutiveLosses.Set(float64(s.ConsecutiveLosses))
	r.dailyPnL.Set(s.DailyPnL)
}

func (r *Recorder) ObserveKillSwitch(s risk.KillSwitchStatus) {
	r.killSwitch.Set(boolGauge(s.IsTriggered))
}

func (r *Recorder) ObserveTrade(pnl float64) {
	outcome := "win"
	if pnl < 0 {
		outcome = "loss"
	}
	r.tradesTotal.WithLabelValues(outcome).Inc()
	r.tradePnL.Observe(pnl)
}

func (r *Recorder) ObserveSize(strategy string, size float64) {
	r.positionSize.WithLabelValues(strategy).Set(size)
}

// Serve runs an HTTP server on addr until ctx is done. extra handlers are
// mounted next to /metrics.
func Serve(ctx context.Context, addr string, rec *Recorder, extra map[string]http.Handler) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", rec.Handler())
	for path, h := range extra {
		mux.Handle(path, h)
	}

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
