// Package journal keeps an append-only audit log of trade outcomes and
// guard verdicts. It is a record for humans and replays; the guards never
// restore their state from it.
package journal

import (
	"time"

	"github.com/rustyeddy/riskguard/pkg/id"
	"github.com/rustyeddy/riskguard/risk"
)

// TradeRecord is one closed trade as reported by the caller.
type TradeRecord struct {
	TradeID    string
	Instrument string
	PnL        float64
	ClosedAt   time.Time
	Reason     string
}

// GuardEvent is one named check result worth remembering, usually a failure.
type GuardEvent struct {
	EventID string
	Time    time.Time
	Check   string
	Level   risk.Level
	Passed  bool
	Message string
}

type Journal interface {
	RecordTrade(TradeRecord) error
	RecordEvent(GuardEvent) error
	Close() error
}

// Reader is implemented by journals that can be queried.
type Reader interface {
	ListTradesClosedBetween(start, end time.Time) ([]TradeRecord, error)
	ListEvents(limit int) ([]GuardEvent, error)
}

var (
	tradeIDs = id.NewGenerator("trd")
	eventIDs = id.NewGenerator("evt")
)

// normalize fills in missing IDs and times and moves times to UTC.
func (t *TradeRecord) normalize() {
	if t.ClosedAt.IsZero() {
		t.ClosedAt = time.Now()
	}
	t.ClosedAt = t.ClosedAt.UTC()
	if t.TradeID == "" {
		t.TradeID = tradeIDs.At(t.ClosedAt)
	}
}

func (e *GuardEvent) normalize() {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	e.Time = e.Time.UTC()
	if e.EventID == "" {
		e.EventID = eventIDs.At(e.Time)
	}
}

// EventFromCheck turns a named check into a journal event.
func EventFromCheck(nc risk.NamedCheck) GuardEvent {
	return GuardEvent{
		Time:    nc.Check.Timestamp,
		Check:   nc.Name,
		Level:   nc.Check.Level,
		Passed:  nc.Check.Passed,
		Message: nc.Check.Message,
	}
}
