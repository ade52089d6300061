package risk

import (
	"fmt"
	"time"
)

type KillSwitchConfig struct {
	BalanceFloor     float64
	MaxOpenPositions int
	MaxAPIErrors     int
	ManualOverride   bool
}

func DefaultKillSwitchConfig() KillSwitchConfig {
	return KillSwitchConfig{
		BalanceFloor:     100.0,
		MaxOpenPositions: 10,
		MaxAPIErrors:     5,
		ManualOverride:   true,
	}
}

// Condition names the kill switch rule that failed. The values are in
// evaluation order.
type Condition int

const (
	ConditionNone Condition = iota
	ConditionLatched
	ConditionBalanceFloor
	ConditionMaxPositions
	ConditionAPIErrors
	ConditionManual
)

func (c Condition) String() string {
	switch c {
	case ConditionNone:
		return "none"
	case ConditionLatched:
		return "latched"
	case ConditionBalanceFloor:
		return "balance_floor"
	case ConditionMaxPositions:
		return "max_positions"
	case ConditionAPIErrors:
		return "api_errors"
	case ConditionManual:
		return "manual"
	}
	return fmt.Sprintf("Condition(%d)", int(c))
}

func ParseCondition(s string) (Condition, error) {
	for c := ConditionNone; c <= ConditionManual; c++ {
		if c.String() == s {
			return c, nil
		}
	}
	return ConditionNone, fmt.Errorf("unknown kill switch condition %q", s)
}

// KillSwitch is an emergency stop. Once triggered it stays triggered until
// Reset, regardless of whether the condition that tripped it has cleared.
// It is not safe for concurrent use.
type KillSwitch struct {
	cfg KillSwitchConfig
	now func() time.Time

	currentBalance    float64
	openPositions     int
	consecutiveErrors int
	manuallyTriggered bool

	triggeredAt      time.Time
	triggerReason    string
	triggerCondition Condition
}

func NewKillSwitch(cfg KillSwitchConfig) *KillSwitch {
	return &KillSwitch{cfg: cfg, now: time.Now}
}

func (ks *KillSwitch) SetClock(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	ks.now = now
}

func (ks *KillSwitch) Config() KillSwitchConfig {
	return ks.cfg
}

// UpdateState replaces the externally observed account state.
func (ks *KillSwitch) UpdateState(balance float64, openPositions int) {
	ks.currentBalance = balance
	ks.openPositions = openPositions
}

func (ks *KillSwitch) RecordError() {
	ks.consecutiveErrors++
}

// ClearErrors is called after a successful external operation.
func (ks *KillSwitch) ClearErrors() {
	ks.consecutiveErrors = 0
}

// Check reports the first failing condition, in priority order, without
// changing the switch.
func (ks *KillSwitch) Check() Check {
	_, c := ks.evaluate()
	return c
}

func (ks *KillSwitch) evaluate() (Condition, Check) {
	now := ks.now()

	if !ks.triggeredAt.IsZero() {
		reason := ks.triggerReason
		if reason == "" {
			reason = "Unknown"
		}
		return ConditionLatched, Fail(Critical,
			fmt.Sprintf("Kill switch already triggered: %s", reason)).At(now)
	}

	// NaN fails the floor
	if !(ks.currentBalance >= ks.cfg.BalanceFloor) {
		return ConditionBalanceFloor, Fail(Critical,
			fmt.Sprintf("Balance below floor: %v < %v", ks.currentBalance, ks.cfg.BalanceFloor)).At(now)
	}

	if ks.openPositions > ks.cfg.MaxOpenPositions {
		return ConditionMaxPositions, Fail(Critical,
			fmt.Sprintf("Max positions exceeded: %d > %d", ks.openPositions, ks.cfg.MaxOpenPositions)).At(now)
	}

	if ks.consecutiveErrors >= ks.cfg.MaxAPIErrors {
		return ConditionAPIErrors, Fail(Critical,
			fmt.Sprintf("Max API errors reached: %d", ks.consecutiveErrors)).At(now)
	}

	if ks.manuallyTriggered {
		return ConditionManual, Fail(Critical, "Manual kill switch triggered").At(now)
	}

	return ConditionNone, Pass("Kill switch OK").At(now)
}

// CheckAndTrigger evaluates the switch and latches on the first failure,
// using the failing message as the trigger reason.
func (ks *KillSwitch) CheckAndTrigger() Check {
	cond, c := ks.evaluate()
	if !c.Passed && ks.triggeredAt.IsZero() {
		ks.trigger(cond, c.Message)
	}
	return c
}

func (ks *KillSwitch) Trigger(reason string) {
	ks.trigger(ConditionManual, reason)
}

func (ks *KillSwitch) trigger(cond Condition, reason string) {
	ks.triggeredAt = ks.now()
	ks.triggerReason = reason
	ks.triggerCondition = cond
}

// ManualTrigger latches the switch with "Manual: <reason>". It does
// nothing unless the config allows manual override.
func (ks *KillSwitch) ManualTrigger(reason string) {
	if !ks.cfg.ManualOverride {
		return
	}
	ks.manuallyTriggered = true
	ks.trigger(ConditionManual, "Manual: "+reason)
}

// Reset clears the latch, the manual flag and the error counter. Balance
// and positions are left for the next UpdateState.
func (ks *KillSwitch) Reset() {
	ks.triggeredAt = time.Time{}
	ks.triggerReason = ""
	ks.triggerCondition = ConditionNone
	ks.manuallyTriggered = false
	ks.consecutiveErrors = 0
}

func (ks *KillSwitch) IsTriggered() bool {
	return !ks.triggeredAt.IsZero()
}

// TriggerReason returns the latched reason and whether one is set.
func (ks *KillSwitch) TriggerReason() (string, bool) {
	return ks.triggerReason, ks.IsTriggered()
}

type KillSwitchStatus struct {
	IsTriggered       bool      `json:"is_triggered"`
	TriggeredAt       time.Time `json:"triggered_at,omitzero"`
	Reason            string    `json:"reason,omitempty"`
	Condition         Condition `json:"condition"`
	CurrentBalance    float64   `json:"current_balance"`
	OpenPositions     int       `json:"open_positions"`
	ConsecutiveErrors int       `json:"consecutive_errors"`
}

func (c Condition) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Condition) UnmarshalText(b []byte) error {
	cond, err := ParseCondition(string(b))
	if err != nil {
		return err
	}
	*c = cond
	return nil
}

func (ks *KillSwitch) Status() KillSwitchStatus {
	return KillSwitchStatus{
		IsTriggered:       ks.IsTriggered(),
		TriggeredAt:       ks.triggeredAt,
		Reason:            ks.triggerReason,
		Condition:         ks.triggerCondition,
		CurrentBalance:    ks.currentBalance,
		OpenPositions:     ks.openPositions,
		ConsecutiveErrors: ks.consecutiveErrors,
	}
}
