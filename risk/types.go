package risk

import (
	"fmt"
	"strings"
	"time"
)

// Level classifies how dangerous the current state is. Levels are ordered,
// so the worst of several checks is simply the maximum.
type Level int

const (
	Normal Level = iota
	Elevated
	High
	Critical
)

var levelNames = [...]string{"Normal", "Elevated", "High", "Critical"}

// AllowsTrading reports whether trading may continue at this level.
func (l Level) AllowsTrading() bool {
	return l == Normal || l == Elevated
}

func (l Level) String() string {
	if l < Normal || l > Critical {
		return fmt.Sprintf("Level(%d)", int(l))
	}
	return levelNames[l]
}

func (l Level) Emoji() string {
	switch l {
	case Normal:
		return "🟢"
	case Elevated:
		return "🟡"
	case High:
		return "🟠"
	default:
		return "🔴"
	}
}

// ParseLevel accepts a level name in any case.
func ParseLevel(s string) (Level, error) {
	for i, name := range levelNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return Level(i), nil
		}
	}
	return Normal, fmt.Errorf("unknown risk level %q", s)
}

func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *Level) UnmarshalText(b []byte) error {
	lvl, err := ParseLevel(string(b))
	if err != nil {
		return err
	}
	*l = lvl
	return nil
}

// Check is the verdict of a single guard evaluation.
//
// By convention Passed is true exactly when Level is Normal. The
// constructors keep that pairing; the type itself does not enforce it.
type Check struct {
	Passed    bool      `json:"passed"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

func Pass(msg string) Check {
	return Check{Passed: true, Level: Normal, Message: msg, Timestamp: time.Now()}
}

func Fail(level Level, msg string) Check {
	return Check{Passed: false, Level: level, Message: msg, Timestamp: time.Now()}
}

// FromBool passes when ok is true and fails at High otherwise.
func FromBool(ok bool, msg string) Check {
	if ok {
		return Pass(msg)
	}
	return Fail(High, msg)
}

// At returns a copy of c stamped with t.
func (c Check) At(t time.Time) Check {
	c.Timestamp = t
	return c
}

func (c Check) String() string {
	status := "PASS"
	if !c.Passed {
		status = "FAIL"
	}
	return fmt.Sprintf("%s %s [%s] %s", c.Level.Emoji(), status, c.Level, c.Message)
}

// NamedCheck pairs a check with the name it was reported under.
type NamedCheck struct {
	Name  string `json:"name"`
	Check Check  `json:"check"`
}

// Report collects named checks in insertion order.
type Report struct {
	OverallLevel Level        `json:"overall_level"`
	Checks       []NamedCheck `json:"checks"`
	Timestamp    time.Time    `json:"timestamp"`
}

func NewReport() *Report {
	return &Report{OverallLevel: Normal, Timestamp: time.Now()}
}

// Add appends a check and raises OverallLevel if the check is worse.
func (r *Report) Add(name string, c Check) *Report {
	if c.Level > r.OverallLevel {
		r.OverallLevel = c.Level
	}
	r.Checks = append(r.Checks, NamedCheck{Name: name, Check: c})
	return r
}

// Merge appends every check of other, prefixing names with prefix when set.
func (r *Report) Merge(prefix string, other *Report) *Report {
	for _, nc := range other.Checks {
		name := nc.Name
		if prefix != "" {
			name = prefix + "." + name
		}
		r.Add(name, nc.Check)
	}
	return r
}

func (r *Report) AllPassed() bool {
	for _, nc := range r.Checks {
		if !nc.Check.Passed {
			return false
		}
	}
	return true
}

func (r *Report) FailedChecks() []NamedCheck {
	var out []NamedCheck
	for _, nc := range r.Checks {
		if !nc.Check.Passed {
			out = append(out, nc)
		}
	}
	return out
}

// FirstFailure returns the first failing check in insertion order.
func (r *Report) FirstFailure() (NamedCheck, bool) {
	for _, nc := range r.Checks {
		if !nc.Check.Passed {
			return nc, true
		}
	}
	return NamedCheck{}, false
}
