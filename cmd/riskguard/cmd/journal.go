package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/riskguard/internal/render"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List recent guard events",
	Long: `Show guard events from the journal, newest first. An event is written
whenever a check starts or stops failing, and on every manual halt.

Example:
  riskguard events --limit 50`,
	Args: cobra.NoArgs,
	RunE: runEvents,
}

var tradesCmd = &cobra.Command{
	Use:   "trades [YYYY-MM-DD]",
	Short: "List trades closed on a day (default today, UTC)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTrades,
}

var eventsLimit int

func init() {
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(tradesCmd)

	eventsCmd.Flags().IntVarP(&eventsLimit, "limit", "n", 20, "maximum events to show (0 for all)")
}

func runEvents(cmd *cobra.Command, args []string) error {
	j, reader, err := openJournal(cfg)
	if err != nil {
		return err
	}
	defer closeJournal(j)
	if reader == nil {
		return errNoReader
	}

	events, err := reader.ListEvents(eventsLimit)
	if err != nil {
		return fmt.Errorf("query events: %w", err)
	}

	render.Events(cmd.OutOrStdout(), events)
	return nil
}

func runTrades(cmd *cobra.Command, args []string) error {
	j, reader, err := openJournal(cfg)
	if err != nil {
		return err
	}
	defer closeJournal(j)
	if reader == nil {
		return errNoReader
	}

	start, end := todayBounds(time.Now())
	if len(args) == 1 {
		if start, end, err = dayBounds(args[0]); err != nil {
			return fmt.Errorf("date: %w", err)
		}
	}

	recs, err := reader.ListTradesClosedBetween(start, end)
	if err != nil {
		return fmt.Errorf("query trades: %w", err)
	}

	render.Trades(cmd.OutOrStdout(), recs)
	return nil
}
