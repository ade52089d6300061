package journal

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"
)

var (
	tradeHeader = []string{"trade_id", "instrument", "pnl", "closed_at", "reason"}
	eventHeader = []string{"event_id", "time", "check", "level", "passed", "message"}
)

// CSVJournal appends trades and events to two CSV files.
type CSVJournal struct {
	trades *csv.Writer
	events *csv.Writer
	tf, ef *os.File
}

// NewCSV opens both files for appending, creating them as needed. A
// header row is written to files that start out empty.
func NewCSV(tradesPath, eventsPath string) (*CSVJournal, error) {
	tf, tNew, err := openAppend(tradesPath)
	if err != nil {
		return nil, err
	}
	ef, eNew, err := openAppend(eventsPath)
	if err != nil {
		_ = tf.Close()
		return nil, err
	}

	j := &CSVJournal{trades: csv.NewWriter(tf), events: csv.NewWriter(ef), tf: tf, ef: ef}
	if tNew {
		if err := j.write(j.trades, tradeHeader); err != nil {
			_ = j.Close()
			return nil, err
		}
	}
	if eNew {
		if err := j.write(j.events, eventHeader); err != nil {
			_ = j.Close()
			return nil, err
		}
	}
	return j, nil
}

func openAppend(path string) (*os.File, bool, error) {
	fh, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, false, fmt.Errorf("open %s: %w", path, err)
	}
	st, err := fh.Stat()
	if err != nil {
		_ = fh.Close()
		return nil, false, fmt.Errorf("stat %s: %w", path, err)
	}
	return fh, st.Size() == 0, nil
}

func (j *CSVJournal) RecordTrade(t TradeRecord) error {
	t.normalize()
	return j.write(j.trades, []string{
		t.TradeID,
		t.Instrument,
		f(t.PnL),
		t.ClosedAt.Format(time.RFC3339Nano),
		t.Reason,
	})
}

func (j *CSVJournal) RecordEvent(e GuardEvent) error {
	e.normalize()
	return j.write(j.events, []string{
		e.EventID,
		e.Time.Format(time.RFC3339Nano),
		e.Check,
		e.Level.String(),
		strconv.FormatBool(e.Passed),
		e.Message,
	})
}

func (j *CSVJournal) write(w *csv.Writer, row []string) error {
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func (j *CSVJournal) Close() error {
	j.trades.Flush()
	if err := j.trades.Error(); err != nil {
		return err
	}
	j.events.Flush()
	if err := j.events.Error(); err != nil {
		return err
	}

	if err := j.tf.Close(); err != nil {
		return err
	}
	return j.ef.Close()
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
