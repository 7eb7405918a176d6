package scenario

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"solana-nft-lab/internal/config"
	"solana-nft-lab/internal/harness"
	"solana-nft-lab/internal/observability"
	"solana-nft-lab/internal/solana"
)

// Runner executes scenarios, up to Parallel at a time. Each scenario gets
// its own wallets, so scenarios never contend for accounts.
type Runner struct {
	h        *harness.Harness
	airdrop  uint64
	parallel int
	timeout  time.Duration
	metrics  *observability.Metrics
	log      *zap.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithMetrics overrides the default metrics sink.
func WithMetrics(m *observability.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// NewRunner creates a runner from the scenario section of the config.
func NewRunner(h *harness.Harness, cfg config.ScenarioConfig, log *zap.Logger, opts ...Option) (*Runner, error) {
	sol, err := decimal.NewFromString(cfg.Airdrop)
	if err != nil {
		return nil, errors.Wrapf(err, "scenario.airdrop %q", cfg.Airdrop)
	}
	airdrop := solana.SOLToLamports(sol)
	if airdrop == 0 {
		return nil, errors.Errorf("scenario.airdrop must be positive, got %s", cfg.Airdrop)
	}
	if log == nil {
		log = zap.NewNop()
	}

	r := &Runner{
		h:        h,
		airdrop:  airdrop,
		parallel: cfg.Parallel,
		timeout:  cfg.Timeout,
		metrics:  observability.DefaultMetrics,
		log:      log.With(zap.String("component", "scenario")),
	}
	if r.parallel < 1 {
		r.parallel = 1
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run executes scenarios and reports every result in input order. A failing
// scenario does not stop the others.
func (r *Runner) Run(ctx context.Context, scenarios []Scenario) *Report {
	report := &Report{
		GeneratedAt: time.Now().UTC(),
		Results:     make([]Result, len(scenarios)),
	}

	var g errgroup.Group
	g.SetLimit(r.parallel)
	for i, sc := range scenarios {
		g.Go(func() error {
			report.Results[i] = r.runOne(ctx, sc)
			return nil
		})
	}
	_ = g.Wait()

	report.Duration = time.Since(report.GeneratedAt)
	return report
}

func (r *Runner) runOne(ctx context.Context, sc Scenario) Result {
	env := newEnv(r.h, r.airdrop)
	start := time.Now()

	runCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	err := sc.Run(runCtx, env)
	elapsed := time.Since(start)

	res := Result{
		Name:        sc.Name,
		Description: sc.Description,
		Passed:      err == nil,
		Err:         err,
		Duration:    elapsed,
	}
	if spent, serr := env.Spent(ctx); serr == nil {
		res.Spent = spent
	} else {
		r.log.Warn("could not measure spend", zap.String("scenario", sc.Name), zap.Error(serr))
	}

	r.metrics.RecordScenario(sc.Name, res.Passed, elapsed.Seconds())
	if err != nil {
		r.log.Error("scenario failed", zap.String("scenario", sc.Name), zap.Duration("duration", elapsed), zap.Error(err))
	} else {
		r.log.Info("scenario passed", zap.String("scenario", sc.Name), zap.Duration("duration", elapsed))
	}
	return res
}
