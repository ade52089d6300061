package risk

// CheckFunc produces a verdict on demand.
type CheckFunc func() Check

type namedCheckFunc struct {
	name string
	fn   CheckFunc
}

// KillSwitchCheckName is the report name of the guard's own kill switch.
const KillSwitchCheckName = "kill_switch"

// Guard combines a kill switch it owns with any number of ad-hoc checks.
// Unlike KillSwitch.Check, Guard never short-circuits: every check runs.
type Guard struct {
	ks     *KillSwitch
	checks []namedCheckFunc
}

// NewGuard takes ownership of ks. Callers must not keep using ks directly.
func NewGuard(ks *KillSwitch) *Guard {
	if ks == nil {
		ks = NewKillSwitch(DefaultKillSwitchConfig())
	}
	return &Guard{ks: ks}
}

// AddCheck registers fn to run after the kill switch, in registration order.
func (g *Guard) AddCheck(name string, fn CheckFunc) {
	g.checks = append(g.checks, namedCheckFunc{name: name, fn: fn})
}

// CheckAll runs the kill switch and then every registered check.
func (g *Guard) CheckAll() []Check {
	return g.run(g.ks.Check)
}

// Enforce is CheckAll with the kill switch allowed to latch.
func (g *Guard) Enforce() []Check {
	return g.run(g.ks.CheckAndTrigger)
}

func (g *Guard) run(killSwitch CheckFunc) []Check {
	out := make([]Check, 0, len(g.checks)+1)
	out = append(out, killSwitch())
	for _, c := range g.checks {
		out = append(out, c.fn())
	}
	return out
}

func (g *Guard) AllPassed() bool {
	for _, c := range g.CheckAll() {
		if !c.Passed {
			return false
		}
	}
	return true
}

// FirstFailure returns the first failing check of CheckAll.
func (g *Guard) FirstFailure() (Check, bool) {
	for _, c := range g.CheckAll() {
		if !c.Passed {
			return c, true
		}
	}
	return Check{}, false
}

// Report names the results of CheckAll.
func (g *Guard) Report() *Report {
	return g.report(g.CheckAll())
}

// EnforceReport names the results of Enforce.
func (g *Guard) EnforceReport() *Report {
	return g.report(g.Enforce())
}

func (g *Guard) report(checks []Check) *Report {
	r := NewReport()
	r.Add(KillSwitchCheckName, checks[0])
	for i, c := range g.checks {
		r.Add(c.name, checks[i+1])
	}
	return r
}

func (g *Guard) UpdateState(balance float64, openPositions int) {
	g.ks.UpdateState(balance, openPositions)
}

func (g *Guard) RecordError() {
	g.ks.RecordError()
}

func (g *Guard) ClearErrors() {
	g.ks.ClearErrors()
}

func (g *Guard) ManualTrigger(reason string) {
	g.ks.ManualTrigger(reason)
}

func (g *Guard) ResetKillSwitch() {
	g.ks.Reset()
}

func (g *Guard) KillSwitchConfig() KillSwitchConfig {
	return g.ks.Config()
}

func (g *Guard) KillSwitchStatus() KillSwitchStatus {
	return g.ks.Status()
}
