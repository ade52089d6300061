package journal

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordTrade(t TradeRecord) error {
	t.normalize()
	_, err := j.db.Exec(`
		INSERT INTO trades
		(trade_id, instrument, pnl, closed_at, reason)
		VALUES (?, ?, ?, ?, ?)`,
		t.TradeID, t.Instrument, t.PnL, t.ClosedAt, t.Reason,
	)
	if err != nil {
		return fmt.Errorf("insert trade %s: %w", t.TradeID, err)
	}
	return nil
}

func (j *SQLite) RecordEvent(e GuardEvent) error {
	e.normalize()
	_, err := j.db.Exec(`
		INSERT INTO events
		(event_id, time, check_name, level, passed, message)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.EventID, e.Time, e.Check, e.Level.String(), e.Passed, e.Message,
	)
	if err != nil {
		return fmt.Errorf("insert event %s: %w", e.EventID, err)
	}
	return nil
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
