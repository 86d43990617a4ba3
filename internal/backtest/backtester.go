package backtest

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"time"

	"github.com/newthinker/turtle/internal/collector"
	"github.com/newthinker/turtle/internal/core"
	"github.com/newthinker/turtle/internal/decision"
	"github.com/newthinker/turtle/internal/filter"
	"github.com/newthinker/turtle/internal/id"
	"github.com/newthinker/turtle/internal/journal"
	"github.com/newthinker/turtle/internal/ledger"
	"github.com/newthinker/turtle/internal/logger"
	"github.com/newthinker/turtle/internal/metrics"
	"github.com/newthinker/turtle/internal/simulator"
	"github.com/newthinker/turtle/internal/sizing"
	"github.com/newthinker/turtle/internal/strategy"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Deps are the collaborators shared by every run of a Backtester.
type Deps struct {
	Data       collector.HistoricalData
	Calendar   collector.Calendar
	Reference  collector.ReferenceData
	Strategies *strategy.Registry
	// Recorder defaults to an in-memory journal.
	Recorder journal.Recorder
	// Filter overrides the trend filter named by RunConfig.FilterCode.
	Filter  decision.TrendFilter
	Metrics *metrics.Registry
	Logger  *zap.Logger
}

// Backtester fans one simulator per instrument out over a bounded worker
// pool, all sharing a ledger created for the run.
type Backtester struct {
	deps   Deps
	logger *zap.Logger
}

// New creates a new Backtester
func New(deps Deps) *Backtester {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Recorder == nil {
		deps.Recorder = journal.NewMemory()
	}
	return &Backtester{deps: deps, logger: deps.Logger}
}

// RunBacktest runs the instruments over [start, end] with cfg's remaining
// settings and returns the run id. An empty instrument list keeps cfg's selection.
func (b *Backtester) RunBacktest(ctx context.Context, start, end time.Time, instruments []string, cfg RunConfig) (string, error) {
	cfg.From, cfg.To = start, end
	if len(instruments) > 0 {
		cfg.Instruments = instruments
		cfg.All = false
	}
	res, err := b.Run(ctx, cfg)
	if err != nil {
		return "", err
	}
	return res.RunID, nil
}

// Run executes a complete backtest. Setup problems fail the run; an
// instrument whose simulation fails is reported in Result.Failed and the rest
// of the universe carries on. When ctx ends first, Run returns the partial
// Result together with the context error.
func (b *Backtester) Run(ctx context.Context, cfg RunConfig) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.From, cfg.To = core.Day(cfg.From), core.Day(cfg.To)

	openStrategy, err := b.deps.Strategies.Open(cfg.OpenCode)
	if err != nil {
		return nil, err
	}
	closeStrategy, err := b.deps.Strategies.Close(cfg.CloseCode)
	if err != nil {
		return nil, err
	}
	trend := b.deps.Filter
	if trend == nil {
		if cfg.FilterDay <= 0 {
			return nil, core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("filter window must be positive, got %d", cfg.FilterDay))
		}
		f, err := filter.New(cfg.FilterCode, b.deps.Data)
		if err != nil {
			return nil, err
		}
		trend = f
	}
	sizer, err := sizing.New(cfg.Sizing, cfg.Unit, cfg.ATRPeriod, b.deps.Data)
	if err != nil {
		return nil, err
	}

	instruments, err := b.resolveInstruments(ctx, cfg)
	if err != nil {
		return nil, err
	}
	concurrency := cfg.Concurrency
	if concurrency == 0 {
		concurrency = runtime.NumCPU()
	}
	if cfg.Deterministic {
		concurrency = 1
	}

	started := time.Now()
	runID := id.At(started)
	log := logger.Run(b.logger, runID)
	log.Info("backtest started",
		zap.Time("from", cfg.From),
		zap.Time("to", cfg.To),
		zap.Int("instruments", len(instruments)),
		zap.Int("concurrency", concurrency),
		zap.Bool("use_capital", cfg.UseCapital),
	)

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	led := ledger.New(ledger.Config{
		InitialCapital: cfg.InitialCapital,
		RiskParameter:  cfg.RiskParameter,
	}, log)

	engine := decision.New(decision.Config{
		Open:          openStrategy,
		Close:         closeStrategy,
		Filter:        trend,
		Sizer:         sizer,
		BreakOpenDay:  cfg.BreakOpenDay,
		BreakCloseDay: cfg.BreakCloseDay,
		FilterDay:     cfg.FilterDay,
	}, b.deps.Data, led)

	simDeps := simulator.Deps{
		Data:     b.deps.Data,
		Calendar: b.deps.Calendar,
		Decider:  engine,
		Ledger:   led,
		Recorder: b.deps.Recorder,
		Logger:   log,
	}
	if b.deps.Metrics != nil {
		simDeps.Metrics = b.deps.Metrics
	}
	sim := simulator.New(simulator.Config{
		RunID:      runID,
		Start:      cfg.From,
		End:        cfg.To,
		UseCapital: cfg.UseCapital,
		Today:      cfg.Today,
	}, simDeps)

	outcomes := make([]simulator.Outcome, len(instruments))
	errs := make([]error, len(instruments))

	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, inst := range instruments {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					errs[i] = fmt.Errorf("panic: %v", r)
					log.Error("simulation panicked", zap.String("instrument", inst), zap.Any("panic", r))
				}
			}()
			outcomes[i], errs[i] = sim.Run(ctx, inst)
			return nil
		})
	}
	g.Wait()

	res := &Result{
		RunID:     runID,
		Config:    cfg,
		StartedAt: started,
	}
	for i, inst := range instruments {
		if errs[i] != nil {
			res.Failed = append(res.Failed, Failure{Instrument: inst, Error: errs[i].Error()})
			b.recordInstrument("failed")
			continue
		}
		res.Instruments = append(res.Instruments, outcomes[i])
		b.recordInstrument("ok")
	}
	sort.Slice(res.Instruments, func(i, j int) bool {
		return res.Instruments[i].Instrument < res.Instruments[j].Instrument
	})

	// A cancelled run still reports what it simulated; instruments it did not
	// finish are in res.Failed.
	runErr := ctx.Err()
	outCtx := context.WithoutCancel(ctx)

	if err := b.collect(outCtx, res, led); err != nil {
		b.finish(log, "error", started, nil)
		return nil, err
	}

	res.Elapsed = time.Since(started)
	switch {
	case runErr != nil:
		res.Status = "cancelled"
	case len(res.Failed) > 0:
		res.Status = "partial"
	default:
		res.Status = "ok"
	}
	b.finish(log, res.Status, started, res)
	b.recordRun(outCtx, log, res, len(instruments))
	if runErr != nil {
		return res, fmt.Errorf("backtest %s: %w", runID, runErr)
	}
	return res, nil
}

func (b *Backtester) resolveInstruments(ctx context.Context, cfg RunConfig) ([]string, error) {
	var instruments []string
	if cfg.All {
		all, err := b.deps.Reference.AllInstruments(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolving universe: %w", err)
		}
		instruments = all
	} else {
		seen := make(map[string]struct{}, len(cfg.Instruments))
		for _, inst := range cfg.Instruments {
			if _, dup := seen[inst]; dup {
				continue
			}
			seen[inst] = struct{}{}
			instruments = append(instruments, inst)
		}
	}
	if len(instruments) == 0 {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("empty instrument universe"))
	}

	if cfg.Deterministic {
		sorted := make([]string, len(instruments))
		copy(sorted, instruments)
		sort.Strings(sorted)
		instruments = sorted
	}
	return instruments, nil
}

// collect fills the summary, round trips, statistics and ledger snapshot.
func (b *Backtester) collect(ctx context.Context, res *Result, led *ledger.Ledger) error {
	summary, err := b.deps.Recorder.SummarizeRun(ctx, res.RunID)
	if err != nil {
		return fmt.Errorf("summarize run: %w", err)
	}
	res.Summary = summary

	events, err := b.deps.Recorder.Trades(ctx, res.RunID)
	if err != nil {
		return fmt.Errorf("load trades: %w", err)
	}
	for _, ev := range events {
		if ev.IsClose() {
			res.Trades = append(res.Trades, tradeFromClose(ev))
		}
	}
	res.Ledger = led.Snapshot()
	for _, p := range res.Ledger.Positions {
		res.Trades = append(res.Trades, tradeFromPosition(p))
	}
	res.Stats = CalculateStats(res.Trades)

	if res.Config.InitialCapital.IsPositive() {
		change := res.Ledger.TotalCapital.Sub(res.Config.InitialCapital).Div(res.Config.InitialCapital)
		res.CapitalReturn = change.InexactFloat64() * 100
	}
	return nil
}

func (b *Backtester) finish(log *zap.Logger, status string, started time.Time, res *Result) {
	elapsed := time.Since(started)
	fields := []zap.Field{zap.String("status", status), zap.Duration("elapsed", elapsed)}
	if res != nil {
		fields = append(fields,
			zap.Int("failed", len(res.Failed)),
			zap.Int("trades", res.Stats.TotalTrades),
			zap.String("total_capital", res.Ledger.TotalCapital.String()),
		)
	}
	log.Info("backtest finished", fields...)

	if b.deps.Metrics == nil {
		return
	}
	b.deps.Metrics.RecordRun(status, elapsed.Seconds())
	if res != nil {
		b.deps.Metrics.SetCapital(
			res.Ledger.TotalCapital.InexactFloat64(),
			res.Ledger.FrozenCapital.InexactFloat64(),
			res.Ledger.UsableCapital.InexactFloat64(),
		)
	}
}

func (b *Backtester) recordInstrument(status string) {
	if b.deps.Metrics != nil {
		b.deps.Metrics.RecordInstrument(status)
	}
}

func (b *Backtester) recordRun(ctx context.Context, log *zap.Logger, res *Result, instruments int) {
	rr, ok := b.deps.Recorder.(journal.RunRecorder)
	if !ok {
		return
	}
	err := rr.RecordRun(ctx, journal.RunRecord{
		ID:           res.RunID,
		StartedAt:    res.StartedAt,
		From:         res.Config.From,
		To:           res.Config.To,
		Instruments:  instruments,
		Status:       res.Status,
		FinalCapital: res.Ledger.TotalCapital,
	})
	if err != nil {
		log.Warn("failed to record run", zap.Error(err))
	}
}
