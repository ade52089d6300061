package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/riskguard/gate"
	"github.com/rustyeddy/riskguard/internal/render"
)

var tradeCmd = &cobra.Command{
	Use:   "trade",
	Short: "Record a closed trade",
	Long: `Record a closed trade in the journal and show the circuit breaker state
after it.

Examples:
  riskguard trade --pnl -42.50 --instrument EUR_USD
  riskguard trade --pnl 120 --reason "take profit"`,
	Args: cobra.NoArgs,
	RunE: runTrade,
}

var (
	tradePnL        float64
	tradeInstrument string
	tradeReason     string
)

func init() {
	rootCmd.AddCommand(tradeCmd)

	tradeCmd.Flags().Float64Var(&tradePnL, "pnl", 0, "realized profit or loss (required)")
	tradeCmd.Flags().StringVarP(&tradeInstrument, "instrument", "i", "", "instrument traded")
	tradeCmd.Flags().StringVarP(&tradeReason, "reason", "r", "", "why the trade was closed")
	_ = tradeCmd.MarkFlagRequired("pnl")
}

func runTrade(cmd *cobra.Command, args []string) error {
	j, reader, err := openJournal(cfg)
	if err != nil {
		return err
	}
	if j == nil {
		return fmt.Errorf("journal is disabled; nothing to record the trade in")
	}
	defer closeJournal(j)

	g, _, err := buildGate(cfg, j, nil)
	if err != nil {
		return err
	}
	if _, err := replayToday(g, reader); err != nil {
		return err
	}

	if err := g.RecordTrade(gate.TradeOutcome{
		Instrument: tradeInstrument,
		PnL:        tradePnL,
		Reason:     tradeReason,
	}); err != nil {
		return err
	}

	render.Breaker(cmd.OutOrStdout(), g.Status().CircuitBreaker)
	return nil
}
