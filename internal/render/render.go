// Package render prints guard state as terminal tables.
package render

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/rustyeddy/riskguard/journal"
	"github.com/rustyeddy/riskguard/risk"
)

const timeLayout = "2006-01-02 15:04:05"

func newTable(w io.Writer, title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(title)
	t.SetStyle(table.StyleRounded)
	return t
}

func keyValue(t table.Writer) {
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 20, WidthMax: 20, Align: text.AlignLeft},
		{Number: 2, WidthMin: 25, WidthMax: 60, Align: text.AlignLeft},
	})
}

func passFail(ok bool) string {
	if ok {
		return "✅ PASS"
	}
	return "❌ FAIL"
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(timeLayout)
}

// Report prints one row per named check and the overall level as footer.
func Report(w io.Writer, r *risk.Report) {
	t := newTable(w, "RISK REPORT")
	t.AppendHeader(table.Row{"Check", "Result", "Level", "Message"})
	for _, nc := range r.Checks {
		t.AppendRow(table.Row{
			nc.Name,
			passFail(nc.Check.Passed),
			nc.Check.Level.Emoji() + " " + nc.Check.Level.String(),
			nc.Check.Message,
		})
	}
	t.AppendFooter(table.Row{"Overall", passFail(r.AllPassed()), r.OverallLevel.String(), stamp(r.Timestamp)})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft},
		{Number: 4, WidthMax: 60, Align: text.AlignLeft},
	})
	t.Render()
}

func Breaker(w io.Writer, s risk.CircuitBreakerStatus) {
	t := newTable(w, "CIRCUIT BREAKER")
	t.AppendRows([]table.Row{
		{"Open", yesNo(s.IsOpen)},
		{"Consecutive losses", s.ConsecutiveLosses},
		{"Daily P&L", fmt.Sprintf("%.2f", s.DailyPnL)},
		{"Triggered at", stamp(s.TriggeredAt)},
		{"Trades recorded", s.Trades},
	})
	keyValue(t)
	t.Render()
}

func KillSwitch(w io.Writer, s risk.KillSwitchStatus) {
	reason := s.Reason
	if reason == "" {
		reason = "-"
	}
	t := newTable(w, "KILL SWITCH")
	t.AppendRows([]table.Row{
		{"Triggered", yesNo(s.IsTriggered)},
		{"Condition", s.Condition.String()},
		{"Reason", reason},
		{"Triggered at", stamp(s.TriggeredAt)},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"Balance", fmt.Sprintf("%.2f", s.CurrentBalance)},
		{"Open positions", s.OpenPositions},
		{"Consecutive errors", s.ConsecutiveErrors},
	})
	keyValue(t)
	t.Render()
}

// SizeSummary is what the size command reports.
type SizeSummary struct {
	Strategy string
	Capital  float64
	Size     float64
	Min, Max float64
	RiskPct  float64 // NaN when not applicable
}

func Size(w io.Writer, s SizeSummary) {
	maxStr := "unbounded"
	if s.Max < math.MaxFloat64 {
		maxStr = fmt.Sprintf("%.2f", s.Max)
	}
	riskStr := "-"
	if !math.IsNaN(s.RiskPct) && !math.IsInf(s.RiskPct, 0) {
		riskStr = fmt.Sprintf("%.2f%%", s.RiskPct)
	}

	t := newTable(w, "POSITION SIZE")
	t.AppendRows([]table.Row{
		{"Strategy", s.Strategy},
		{"Capital", fmt.Sprintf("%.2f", s.Capital)},
		{"Bounds", fmt.Sprintf("%.2f .. %s", s.Min, maxStr)},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"Size", fmt.Sprintf("%.4f", s.Size)},
		{"Risk of capital", riskStr},
	})
	keyValue(t)
	t.Render()
}

// Events prints guard events newest first, as returned by the journal.
func Events(w io.Writer, events []journal.GuardEvent) {
	t := newTable(w, "GUARD EVENTS")
	t.AppendHeader(table.Row{"Time", "Check", "Level", "Result", "Message"})
	for _, ev := range events {
		t.AppendRow(table.Row{
			stamp(ev.Time),
			ev.Check,
			ev.Level.String(),
			passFail(ev.Passed),
			ev.Message,
		})
	}
	t.AppendFooter(table.Row{"", "", "", "Total", len(events)})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 5, WidthMax: 60, Align: text.AlignLeft},
	})
	t.Render()
}

func Trades(w io.Writer, trades []journal.TradeRecord) {
	var total float64
	t := newTable(w, "TRADES")
	t.AppendHeader(table.Row{"Closed", "Trade", "Instrument", "P&L", "Reason"})
	for _, tr := range trades {
		total += tr.PnL
		t.AppendRow(table.Row{
			stamp(tr.ClosedAt),
			tr.TradeID,
			tr.Instrument,
			fmt.Sprintf("%.2f", tr.PnL),
			tr.Reason,
		})
	}
	t.AppendFooter(table.Row{"", "", "Total", fmt.Sprintf("%.2f", total), ""})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight, AlignFooter: text.AlignRight},
	})
	t.Render()
}
