package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/riskguard/internal/render"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Evaluate every guard against the current account",
	Long: `Rebuild the guards from today's journaled trades, apply the account state
given on the command line and evaluate the kill switch, circuit breaker and
trading limits. Exits non-zero when trading is not allowed.

Examples:
  riskguard check --balance 9500 --positions 2
  riskguard check --balance 9500 --size 800 --json`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

var (
	checkBalance   float64
	checkPositions int
	checkErrors    int
	checkSize      float64
	checkJSON      bool
)

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().Float64VarP(&checkBalance, "balance", "b", 0, "current account balance (required)")
	checkCmd.Flags().IntVarP(&checkPositions, "positions", "p", 0, "open positions")
	checkCmd.Flags().IntVarP(&checkErrors, "errors", "e", 0, "consecutive API errors seen")
	checkCmd.Flags().Float64VarP(&checkSize, "size", "s", 0, "proposed position size to check against limits")
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "print the status as JSON")
	_ = checkCmd.MarkFlagRequired("balance")
}

func runCheck(cmd *cobra.Command, args []string) error {
	j, reader, err := openJournal(cfg)
	if err != nil {
		return err
	}
	defer closeJournal(j)

	g, _, err := buildGate(cfg, j, nil)
	if err != nil {
		return err
	}
	if _, err := replayToday(g, reader); err != nil {
		return err
	}

	if err := g.UpdateAccount(checkBalance, checkPositions); err != nil {
		return err
	}
	for i := 0; i < checkErrors; i++ {
		g.RecordError()
	}

	report := g.EvaluateOrder(checkSize)
	st := g.Status()

	out := cmd.OutOrStdout()
	if checkJSON {
		st.Report = report
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(st); err != nil {
			return fmt.Errorf("encode status: %w", err)
		}
	} else {
		render.Report(out, report)
		render.Breaker(out, st.CircuitBreaker)
		render.KillSwitch(out, st.KillSwitch)
	}

	if nc, failed := report.FirstFailure(); failed {
		return fmt.Errorf("trading blocked by %s: %s", nc.Name, nc.Check.Message)
	}
	return nil
}
