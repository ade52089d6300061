package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rustyeddy/riskguard/risk"
)

// GetTrade returns a single trade record by ID.
func (j *SQLite) GetTrade(tradeID string) (TradeRecord, error) {
	var rec TradeRecord

	row := j.db.QueryRow(`
		SELECT trade_id, instrument, pnl, closed_at, reason
		FROM trades
		WHERE trade_id = ?`, tradeID)

	err := row.Scan(&rec.TradeID, &rec.Instrument, &rec.PnL, &rec.ClosedAt, &rec.Reason)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return TradeRecord{}, fmt.Errorf("trade %q not found", tradeID)
		}
		return TradeRecord{}, err
	}
	return rec, nil
}

// ListTradesClosedBetween returns trades whose closed_at is within
// [start, end), oldest first.
func (j *SQLite) ListTradesClosedBetween(start, end time.Time) ([]TradeRecord, error) {
	rows, err := j.db.Query(`
		SELECT trade_id, instrument, pnl, closed_at, reason
		FROM trades
		WHERE closed_at >= ? AND closed_at < ?
		ORDER BY closed_at ASC, trade_id ASC`, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		var rec TradeRecord
		if err := rows.Scan(&rec.TradeID, &rec.Instrument, &rec.PnL, &rec.ClosedAt, &rec.Reason); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListEvents returns the most recent events, newest first. A limit of zero
// or less returns them all.
func (j *SQLite) ListEvents(limit int) ([]GuardEvent, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := j.db.Query(`
		SELECT event_id, time, check_name, level, passed, message
		FROM events
		ORDER BY time DESC, event_id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []GuardEvent
	for rows.Next() {
		var (
			ev    GuardEvent
			level string
		)
		if err := rows.Scan(&ev.EventID, &ev.Time, &ev.Check, &level, &ev.Passed, &ev.Message); err != nil {
			return nil, err
		}
		if ev.Level, err = risk.ParseLevel(level); err != nil {
			return nil, fmt.Errorf("event %s: %w", ev.EventID, err)
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
