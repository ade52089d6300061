package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/rustyeddy/riskguard/config"
	"github.com/rustyeddy/riskguard/gate"
	"github.com/rustyeddy/riskguard/journal"
	"github.com/rustyeddy/riskguard/metrics"
	"github.com/rustyeddy/riskguard/sizing"
)

var errNoReader = errors.New("journal cannot be queried; use the sqlite journal type")

// openJournal returns nil, nil when the journal is disabled. The reader is
// nil for write-only journals.
func openJournal(c *config.Config) (journal.Journal, journal.Reader, error) {
	switch c.Journal.Type {
	case "sqlite":
		j, err := journal.NewSQLite(c.Journal.DBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open db: %w", err)
		}
		return j, j, nil
	case "csv":
		j, err := journal.NewCSV(c.Journal.TradesFile, c.Journal.EventsFile)
		if err != nil {
			return nil, nil, fmt.Errorf("open csv journal: %w", err)
		}
		return j, nil, nil
	}
	return nil, nil, nil
}

// buildGate wires a gate from c. The sizer is returned as well so callers
// can reach strategy specific methods.
func buildGate(c *config.Config, j journal.Journal, rec *metrics.Recorder) (*gate.Gate, *sizing.Sizer, error) {
	cb, err := c.CircuitBreaker.Risk()
	if err != nil {
		return nil, nil, err
	}
	sizer, err := c.Sizing.NewSizer()
	if err != nil {
		return nil, nil, fmt.Errorf("sizing: %w", err)
	}

	g := gate.New(gate.Options{
		CircuitBreaker: cb,
		KillSwitch:     c.KillSwitch.Risk(),
		Limits:         c.Limits.Risk(),
		Sizer:          sizer,
		Journal:        j,
		Metrics:        rec,
		Logger:         &logger,
	})
	return g, sizer, nil
}

// replayToday feeds today's journaled trades into g and returns them.
func replayToday(g *gate.Gate, r journal.Reader) ([]journal.TradeRecord, error) {
	if r == nil {
		return nil, nil
	}
	start, end := todayBounds(time.Now())
	recs, err := r.ListTradesClosedBetween(start, end)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}

	outcomes := make([]gate.TradeOutcome, 0, len(recs))
	for _, rec := range recs {
		outcomes = append(outcomes, gate.TradeOutcome{
			TradeID:    rec.TradeID,
			Instrument: rec.Instrument,
			PnL:        rec.PnL,
			ClosedAt:   rec.ClosedAt,
			Reason:     rec.Reason,
		})
	}
	g.Replay(outcomes...)
	return recs, nil
}

// todayBounds is the UTC day containing now, matching the breaker's daily
// reset.
func todayBounds(now time.Time) (time.Time, time.Time) {
	now = now.UTC()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.Add(24 * time.Hour)
}

func dayBounds(day string) (time.Time, time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", day, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.Add(24 * time.Hour), nil
}

func closeJournal(j journal.Journal) {
	if j == nil {
		return
	}
	if err := j.Close(); err != nil {
		logger.Error().Err(err).Msg("close journal")
	}
}
