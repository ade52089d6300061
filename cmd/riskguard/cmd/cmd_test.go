package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/riskguard/config"
	"github.com/rustyeddy/riskguard/gate"
	"github.com/rustyeddy/riskguard/risk"
)

func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func writeTestConfig(t *testing.T, mutate func(*config.Config)) string {
	t.Helper()
	dir := t.TempDir()
	c := config.Default()
	c.Journal.DBPath = filepath.Join(dir, "journal.sqlite")
	c.Log.Level = "error"
	if mutate != nil {
		mutate(c)
	}
	path := filepath.Join(dir, "riskguard.yaml")
	require.NoError(t, c.SaveToFile(path))
	return path
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "riskguard version "+version)
}

func TestConfigInitAndValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")

	out, err := execute(t, "config", "init", "-o", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Created default configuration")

	out, err = execute(t, "config", "validate", "-f", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration valid")
	assert.Contains(t, out, "Sizing: fixed")

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("kill_switch:\n  max_api_errors: 0\n"), 0644))
	_, err = execute(t, "config", "validate", "-f", bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestTradeThenCheck(t *testing.T) {
	path := writeTestConfig(t, nil)

	out, err := execute(t, "-c", path, "check", "--balance", "5000")
	require.NoError(t, err)
	assert.Contains(t, out, "RISK REPORT")

	for i := 0; i < 3; i++ {
		_, err = execute(t, "-c", path, "trade", "--pnl", "-25", "-i", "EUR_USD")
		require.NoError(t, err)
	}

	out, err = execute(t, "-c", path, "check", "--balance", "5000")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trading blocked by circuit_breaker")
	assert.Contains(t, out, "Max consecutive losses reached: 3")

	out, err = execute(t, "-c", path, "trades")
	require.NoError(t, err)
	assert.Contains(t, out, "EUR_USD")
	assert.Contains(t, out, "-75.00")

	out, err = execute(t, "-c", path, "events", "-n", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "circuit_breaker")
}

func TestCheckJSON(t *testing.T) {
	path := writeTestConfig(t, nil)

	out, err := execute(t, "-c", path, "check", "--balance", "50", "--json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kill_switch")

	var st gate.Status
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.True(t, st.KillSwitch.IsTriggered)
	assert.Equal(t, risk.Critical, st.Report.OverallLevel)
}

func TestCheckOrderSize(t *testing.T) {
	path := writeTestConfig(t, func(c *config.Config) { c.Journal = config.JournalConfig{Type: "none"} })

	_, err := execute(t, "-c", path, "check", "--balance", "5000", "--size", "5000")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "position_size")

	_, err = execute(t, "-c", path, "check", "--balance", "5000", "--size", "500")
	assert.NoError(t, err)
}

func TestTradeNeedsJournal(t *testing.T) {
	path := writeTestConfig(t, func(c *config.Config) { c.Journal = config.JournalConfig{Type: "none"} })

	_, err := execute(t, "-c", path, "trade", "--pnl", "10")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "journal is disabled")
}

func TestNonFiniteFlagsRejected(t *testing.T) {
	path := writeTestConfig(t, nil)

	tests := []struct {
		name string
		args []string
	}{
		{"trade pnl", []string{"trade", "--pnl", "NaN"}},
		{"check balance", []string{"check", "--balance", "NaN"}},
		{"size capital", []string{"size", "--capital", "+Inf"}},
		{"size stop", []string{"size", "--capital", "1000", "--entry", "1.1", "--stop", "NaN"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, append([]string{"-c", path}, tt.args...)...)
			require.Error(t, err)
			assert.ErrorIs(t, err, gate.ErrNotFinite)
		})
	}

	out, err := execute(t, "-c", path, "trades")
	require.NoError(t, err)
	assert.NotContains(t, out, "NaN")
}

func TestSize(t *testing.T) {
	path := writeTestConfig(t, nil)

	out, err := execute(t, "-c", path, "size", "--capital", "10000")
	require.NoError(t, err)
	assert.Contains(t, out, "Fixed Fractional")
	assert.Contains(t, out, "200.0000")
	assert.Contains(t, out, "2.00%")

	_, err = execute(t, "-c", path, "size", "--capital", "10000", "--entry", "1.1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "given together")

	_, err = execute(t, "-c", path, "size", "--capital", "10000", "--entry", "1.1", "--stop", "1.09")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "volatility")
}

func TestSizeWithStop(t *testing.T) {
	path := writeTestConfig(t, func(c *config.Config) {
		c.Sizing.Strategy = "volatility"
		c.Sizing.RiskPct = 1
		c.Sizing.ATR = 0.5
	})

	// 10000 * 1% / 0.5 = 200 units, risking 200 * 0.5 = 100
	out, err := execute(t, "-c", path, "size", "--capital", "10000", "--entry", "100", "--stop", "99.5")
	require.NoError(t, err)
	assert.Contains(t, out, "Volatility-Based")
	assert.Contains(t, out, "200.0000")
	assert.Contains(t, out, "1.00%")
}

func TestSizeAntiMartingaleReplaysToday(t *testing.T) {
	path := writeTestConfig(t, func(c *config.Config) {
		c.Sizing.Strategy = "anti-martingale"
		c.Sizing.BaseSize = 100
	})

	_, err := execute(t, "-c", path, "trade", "--pnl", "30")
	require.NoError(t, err)

	out, err := execute(t, "-c", path, "size", "--capital", "10000")
	require.NoError(t, err)
	assert.Contains(t, out, "150.0000")
}

func TestEnvOverride(t *testing.T) {
	path := writeTestConfig(t, func(c *config.Config) { c.Journal = config.JournalConfig{Type: "none"} })
	t.Setenv(config.EnvBalanceFloor, "6000")

	_, err := execute(t, "-c", path, "check", "--balance", "5000")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Balance below floor")
}

func TestDayBounds(t *testing.T) {
	start, end, err := dayBounds("2026-03-02")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, 24*time.Hour, end.Sub(start))

	_, _, err = dayBounds("yesterday")
	assert.Error(t, err)

	s, e := todayBounds(time.Date(2026, 3, 2, 23, 59, 0, 0, time.FixedZone("X", -3600)))
	assert.Equal(t, time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC), s)
	assert.Equal(t, time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC), e)
}

func TestRoutes(t *testing.T) {
	g := gate.New(gate.Options{
		CircuitBreaker: risk.DefaultCircuitBreakerConfig(),
		KillSwitch:     risk.DefaultKillSwitchConfig(),
		Limits:         risk.DefaultTradingLimits(),
	})

	mux := http.NewServeMux()
	for pattern, h := range routes(g) {
		mux.Handle(pattern, h)
	}
	srv := httptest.NewServer(mux)
	defer srv.Close()

	post := func(path string) *http.Response {
		t.Helper()
		resp, err := http.Post(srv.URL+path, "application/x-www-form-urlencoded", strings.NewReader(""))
		require.NoError(t, err)
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	assert.Equal(t, http.StatusBadRequest, post("/account").StatusCode)
	assert.Equal(t, http.StatusOK, post("/account?balance=5000&positions=1").StatusCode)
	assert.Equal(t, http.StatusOK, post("/evaluate").StatusCode)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, post(fmt.Sprintf("/trade?pnl=%d", -10-i)).StatusCode)
	}
	assert.Equal(t, http.StatusConflict, post("/evaluate").StatusCode)

	assert.Equal(t, http.StatusOK, post("/halt?reason=test").StatusCode)
	assert.Equal(t, http.StatusOK, post("/reset").StatusCode)
	assert.Equal(t, http.StatusOK, post("/evaluate").StatusCode)

	resp, err := http.Get(srv.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	var st gate.Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	assert.Equal(t, 5000.0, st.Balance)
	assert.Equal(t, 1, st.OpenPositions)
	assert.False(t, st.KillSwitch.IsTriggered)

	assert.Equal(t, http.StatusMethodNotAllowed, post("/status").StatusCode)
}

func TestRoutesRejectNonFinite(t *testing.T) {
	g := gate.New(gate.Options{
		CircuitBreaker: risk.DefaultCircuitBreakerConfig(),
		KillSwitch:     risk.DefaultKillSwitchConfig(),
		Limits:         risk.DefaultTradingLimits(),
	})

	mux := http.NewServeMux()
	for pattern, h := range routes(g) {
		mux.Handle(pattern, h)
	}
	srv := httptest.NewServer(mux)
	defer srv.Close()

	post := func(path string) int {
		t.Helper()
		resp, err := http.Post(srv.URL+path, "application/x-www-form-urlencoded", strings.NewReader(""))
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	require.Equal(t, http.StatusOK, post("/account?balance=5000"))
	require.Equal(t, http.StatusOK, post("/trade?pnl=-1"))
	require.Equal(t, http.StatusOK, post("/trade?pnl=-1"))

	for _, path := range []string{
		"/trade?pnl=NaN",
		"/trade?pnl=Inf",
		"/account?balance=NaN",
		"/account?balance=-Inf",
		"/evaluate?size=NaN",
	} {
		assert.Equal(t, http.StatusBadRequest, post(path), path)
	}

	resp, err := http.Get(srv.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	var st gate.Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	assert.Equal(t, 2, st.CircuitBreaker.ConsecutiveLosses)
	assert.Equal(t, -2.0, st.CircuitBreaker.DailyPnL)
	assert.Equal(t, 5000.0, st.Balance)
}
