package cmd

import (
	"fmt"
	"math"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/riskguard/gate"
	"github.com/rustyeddy/riskguard/internal/render"
	"github.com/rustyeddy/riskguard/risk"
	"github.com/rustyeddy/riskguard/sizing"
)

var sizeCmd = &cobra.Command{
	Use:   "size",
	Short: "Compute the next position size",
	Long: `Run the configured sizing strategy for the given capital. With --entry and
--stop the volatility strategy sizes by stop distance instead of ATR.

Examples:
  riskguard size --capital 10000
  riskguard size --capital 10000 --entry 1.0850 --stop 1.0820`,
	Args: cobra.NoArgs,
	RunE: runSize,
}

var (
	sizeCapital float64
	sizeEntry   float64
	sizeStop    float64
)

func init() {
	rootCmd.AddCommand(sizeCmd)

	sizeCmd.Flags().Float64Var(&sizeCapital, "capital", 0, "capital available (required)")
	sizeCmd.Flags().Float64Var(&sizeEntry, "entry", 0, "entry price")
	sizeCmd.Flags().Float64Var(&sizeStop, "stop", 0, "stop price")
	_ = sizeCmd.MarkFlagRequired("capital")
}

func runSize(cmd *cobra.Command, args []string) error {
	withStop := cmd.Flags().Changed("entry") || cmd.Flags().Changed("stop")
	if withStop && !(cmd.Flags().Changed("entry") && cmd.Flags().Changed("stop")) {
		return fmt.Errorf("--entry and --stop must be given together")
	}
	for name, v := range map[string]float64{"capital": sizeCapital, "entry": sizeEntry, "stop": sizeStop} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("--%s: %w", name, gate.ErrNotFinite)
		}
	}

	j, reader, err := openJournal(cfg)
	if err != nil {
		return err
	}
	defer closeJournal(j)

	// the sizer only needs trade history; nothing is written
	g, sizer, err := buildGate(cfg, nil, nil)
	if err != nil {
		return err
	}
	if _, err := replayToday(g, reader); err != nil {
		return err
	}

	lo, hi := sizer.Bounds()
	summary := render.SizeSummary{
		Strategy: sizer.Strategy().Name(),
		Capital:  sizeCapital,
		Min:      lo,
		Max:      hi,
	}

	if withStop {
		vb, ok := sizer.Strategy().(*sizing.VolatilityBased)
		if !ok {
			return fmt.Errorf("--entry/--stop need the %q sizing strategy", sizing.StrategyVolatility)
		}
		units := vb.CalculateWithStop(sizeCapital, sizeEntry, sizeStop)
		summary.Size = math.Min(math.Max(units, lo), hi)
		summary.RiskPct = 100 * risk.RiskPct(summary.Size*math.Abs(sizeEntry-sizeStop), sizeCapital)
	} else {
		summary.Size = g.Size(sizeCapital)
		summary.RiskPct = 100 * risk.RiskPct(summary.Size, sizeCapital)
	}

	logger.Debug().
		Str("strategy", summary.Strategy).
		Float64("capital", sizeCapital).
		Float64("size", summary.Size).
		Msg("position sized")

	render.Size(cmd.OutOrStdout(), summary)
	return nil
}
