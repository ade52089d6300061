package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/riskguard/gate"
	"github.com/rustyeddy/riskguard/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the guards as a long-lived HTTP service",
	Long: `Keep one gate in memory and expose it over HTTP.

Endpoints:
  GET  /metrics                         Prometheus metrics
  GET  /status                          guard status as JSON
  POST /evaluate?size=N                 evaluate every guard, latching on failure
  POST /trade?pnl=N&instrument=X        record a closed trade
  POST /account?balance=N&positions=N   update account state
  POST /error, /errors/clear            count or clear API errors
  POST /halt?reason=X                   trigger the kill switch by hand
  POST /reset                           reset the kill switch and circuit breaker

Example:
  riskguard serve --balance 10000`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var (
	serveAddr      string
	serveBalance   float64
	servePositions int
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", "", "listen address (overrides metrics.addr)")
	serveCmd.Flags().Float64VarP(&serveBalance, "balance", "b", 0, "starting account balance")
	serveCmd.Flags().IntVarP(&servePositions, "positions", "p", 0, "starting open positions")
}

func runServe(cmd *cobra.Command, args []string) error {
	addr := cfg.Metrics.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	j, reader, err := openJournal(cfg)
	if err != nil {
		return err
	}
	defer closeJournal(j)

	rec := metrics.NewRecorder()
	g, _, err := buildGate(cfg, j, rec)
	if err != nil {
		return err
	}
	if _, err := replayToday(g, reader); err != nil {
		return err
	}
	if err := g.UpdateAccount(serveBalance, servePositions); err != nil {
		return err
	}
	g.Evaluate()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info().Str("addr", addr).Msg("serving")
	if err := metrics.Serve(ctx, addr, rec, routes(g)); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	logger.Info().Msg("stopped")
	return nil
}

func routes(g *gate.Gate) map[string]http.Handler {
	return map[string]http.Handler{
		"GET /status": http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, g.Status())
		}),
		"POST /evaluate": http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			size, err := formFloat(r, "size", false)
			if err != nil {
				writeError(w, err)
				return
			}
			report := g.EvaluateOrder(size)
			status := http.StatusOK
			if !report.AllPassed() {
				status = http.StatusConflict
			}
			writeJSON(w, status, report)
		}),
		"POST /trade": http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			pnl, err := formFloat(r, "pnl", true)
			if err != nil {
				writeError(w, err)
				return
			}
			err = g.RecordTrade(gate.TradeOutcome{
				Instrument: r.FormValue("instrument"),
				PnL:        pnl,
				Reason:     r.FormValue("reason"),
			})
			if err != nil {
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
				return
			}
			writeJSON(w, http.StatusOK, g.Status().CircuitBreaker)
		}),
		"POST /account": http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			balance, err := formFloat(r, "balance", true)
			if err != nil {
				writeError(w, err)
				return
			}
			positions, err := strconv.Atoi(r.FormValue("positions"))
			if err != nil && r.FormValue("positions") != "" {
				writeError(w, fmt.Errorf("positions: %w", err))
				return
			}
			if err := g.UpdateAccount(balance, positions); err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, g.Status().KillSwitch)
		}),
		"POST /error": http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			g.RecordError()
			writeJSON(w, http.StatusOK, g.Status().KillSwitch)
		}),
		"POST /errors/clear": http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			g.ClearErrors()
			writeJSON(w, http.StatusOK, g.Status().KillSwitch)
		}),
		"POST /halt": http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := g.Halt(r.FormValue("reason")); err != nil {
				writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
				return
			}
			writeJSON(w, http.StatusOK, g.Status().KillSwitch)
		}),
		"POST /reset": http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			g.Reset()
			writeJSON(w, http.StatusOK, g.Status())
		}),
	}
}

func formFloat(r *http.Request, key string, required bool) (float64, error) {
	v := r.FormValue(key)
	if v == "" {
		if required {
			return 0, fmt.Errorf("%s is required", key)
		}
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%s: %w", key, gate.ErrNotFinite)
	}
	return f, nil
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error().Err(err).Msg("write response")
	}
}
