package scenario

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"solana-nft-lab/internal/config"
	"solana-nft-lab/internal/harness"
	"solana-nft-lab/internal/observability"
	"solana-nft-lab/internal/validator"
)

func newRunner(t *testing.T) (*Runner, *observability.Metrics) {
	t.Helper()
	log := zaptest.NewLogger(t)
	metrics := observability.NewMetrics("test", prometheus.NewRegistry())

	v, err := validator.NewInMemory(context.Background(), log, validator.WithMetrics(metrics))
	require.NoError(t, err)
	t.Cleanup(func() { v.Close() })

	r, err := NewRunner(harness.New(v.Client(), log), config.Default().Scenario, log, WithMetrics(metrics))
	require.NoError(t, err)
	return r, metrics
}

func TestAllScenariosPass(t *testing.T) {
	r, metrics := newRunner(t)

	report := r.Run(context.Background(), All())
	for _, res := range report.Results {
		assert.True(t, res.Passed, "%s: %v", res.Name, res.Err)
		assert.NotZero(t, res.Spent, res.Name)
	}
	assert.True(t, report.OK())
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.ScenarioRuns.WithLabelValues("lifecycle", "pass")))
}

func TestRun_FailureDoesNotStopOthers(t *testing.T) {
	r, metrics := newRunner(t)
	boom := errors.New("boom")

	lifecycle, err := Select([]string{"lifecycle"})
	require.NoError(t, err)
	report := r.Run(context.Background(), append([]Scenario{{
		Name: "broken",
		Run:  func(context.Context, *Env) error { return boom },
	}}, lifecycle...))

	require.Len(t, report.Results, 2)
	assert.False(t, report.Results[0].Passed)
	assert.ErrorIs(t, report.Results[0].Err, boom)
	assert.True(t, report.Results[1].Passed, "%v", report.Results[1].Err)
	assert.Equal(t, 1, report.Failed())
	assert.False(t, report.OK())
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.ScenarioRuns.WithLabelValues("broken", "fail")))
}

func TestRun_Timeout(t *testing.T) {
	r, _ := newRunner(t)
	r.timeout = 10 * time.Millisecond

	report := r.Run(context.Background(), []Scenario{{
		Name: "slow",
		Run: func(ctx context.Context, _ *Env) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}})
	assert.ErrorIs(t, report.Results[0].Err, context.DeadlineExceeded)
}

func TestSelect(t *testing.T) {
	all, err := Select(nil)
	require.NoError(t, err)
	assert.Len(t, all, len(registry))
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].Name, all[i].Name)
	}

	got, err := Select([]string{"mint", "lifecycle"})
	require.NoError(t, err)
	assert.Equal(t, "mint", got[0].Name)
	assert.Equal(t, "lifecycle", got[1].Name)

	_, err = Select([]string{"mint", "nope", "other"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope, other")
}

func TestNewRunner_InvalidAirdrop(t *testing.T) {
	cfg := config.Default().Scenario
	for _, bad := range []string{"", "abc", "0", "-1"} {
		cfg.Airdrop = bad
		_, err := NewRunner(nil, cfg, nil)
		assert.Error(t, err, bad)
	}

	cfg.Airdrop = "0.5"
	r, err := NewRunner(nil, cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(500_000_000), r.airdrop)
}

func TestRender(t *testing.T) {
	report := &Report{
		GeneratedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Duration:    1500 * time.Millisecond,
		Results: []Result{
			{Name: "mint", Passed: true, Duration: 20 * time.Millisecond, Spent: 12_345_000},
			{Name: "lifecycle", Err: errors.New(`expected "InsufficientBalance"`), Duration: 30 * time.Millisecond, Spent: 1_000_000_000},
		},
	}

	md := RenderMarkdown(report)
	assert.Contains(t, md, "Generated: 2024-01-02T03:04:05Z")
	assert.Contains(t, md, "Scenarios: 2 | Passed: 1 | Failed: 1 | Spent: 1.012345 SOL")
	assert.Contains(t, md, "| mint | PASS | 20ms | 0.012345 |")
	assert.Contains(t, md, "| lifecycle | FAIL | 30ms | 1 |")
	assert.Contains(t, md, "- **lifecycle**: expected \"InsufficientBalance\"")

	csv := strings.Split(strings.TrimSpace(RenderCSV(report)), "\n")
	require.Len(t, csv, 3)
	assert.Equal(t, "scenario,status,duration_ms,spent_lamports,spent_sol,error", csv[0])
	assert.Equal(t, `mint,PASS,20,12345000,0.012345,""`, csv[1])
	assert.Equal(t, `lifecycle,FAIL,30,1000000000,1,"expected ""InsufficientBalance"""`, csv[2])
}
