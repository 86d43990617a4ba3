// Package app wires configuration into a ready-to-run backtester.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/newthinker/turtle/internal/backtest"
	"github.com/newthinker/turtle/internal/collector"
	"github.com/newthinker/turtle/internal/config"
	"github.com/newthinker/turtle/internal/core"
	"github.com/newthinker/turtle/internal/journal"
	"github.com/newthinker/turtle/internal/metrics"
	"github.com/newthinker/turtle/internal/notifier"
	"github.com/newthinker/turtle/internal/notifier/webhook"
	"github.com/newthinker/turtle/internal/report"
	"github.com/newthinker/turtle/internal/storage/archive"
	"github.com/newthinker/turtle/internal/strategy/builtins"
	"go.uber.org/zap"
)

// journalStore is what the app needs from the configured journal.
type journalStore interface {
	journal.Recorder
	journal.RunRecorder
}

// App owns the data source, journal, metrics and report archive of a process.
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	journal    journalStore
	metrics    *metrics.Registry
	reports    *report.Writer
	notifiers  *notifier.Registry
	backtester *backtest.Backtester

	closers []io.Closer
}

// New opens every backend named by cfg.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &App{
		cfg:       cfg,
		logger:    logger,
		metrics:   metrics.NewRegistry(),
		notifiers: notifier.NewRegistry(),
	}

	data, err := collector.OpenSQLite(cfg.Data.Path)
	if err != nil {
		return nil, fmt.Errorf("opening market data: %w", err)
	}
	a.closers = append(a.closers, data)

	// The run reads its own summary back from memory; SQLite keeps the
	// history queried by later invocations.
	mem := journal.NewMemory()
	var recorder journal.Recorder = mem
	a.journal = mem
	if cfg.Journal.Driver == "sqlite" {
		store, err := journal.OpenSQLite(cfg.Journal.Path)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("opening journal: %w", err)
		}
		a.closers = append(a.closers, store)
		a.journal = store
		recorder = journal.NewTee(mem, store)
	}

	if cfg.Report.Enabled {
		store, err := newArchive(cfg.Report)
		if err != nil {
			a.Close()
			return nil, core.WrapError(core.ErrArchiveFailed, err)
		}
		a.reports = report.NewWriter(store, logger)
	}

	if cfg.Notify.Webhook.URL != "" {
		hook, err := webhook.New(cfg.Notify.Webhook.URL, cfg.Notify.Webhook.Headers)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.notifiers.Register(hook)
	}

	a.backtester = backtest.New(backtest.Deps{
		Data:       data,
		Calendar:   data,
		Reference:  data,
		Strategies: builtins.Registry(),
		Recorder:   recorder,
		Metrics:    a.metrics,
		Logger:     logger,
	})

	logger.Info("app initialized",
		zap.String("data", cfg.Data.Path),
		zap.String("journal", cfg.Journal.Driver),
		zap.Bool("report", cfg.Report.Enabled),
	)
	return a, nil
}

func newArchive(cfg config.ReportConfig) (archive.Storage, error) {
	switch cfg.Type {
	case "s3":
		return archive.NewS3(archive.S3Config{
			Bucket:    cfg.S3.Bucket,
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Prefix:    cfg.S3.Prefix,
		})
	default:
		return archive.NewLocalFS(cfg.Path)
	}
}

// Run executes a backtest, then archives its report and exports metrics.
// Output failures are logged; the result is still returned. A cancelled run
// is archived and announced with its partial result before the error is
// returned.
func (a *App) Run(ctx context.Context, rc backtest.RunConfig) (*backtest.Result, error) {
	res, runErr := a.backtester.Run(ctx, rc)
	if res == nil {
		a.writeTextfile()
		return nil, runErr
	}

	outCtx := context.WithoutCancel(ctx)
	var reportPath string
	if a.reports != nil {
		var err error
		if reportPath, err = a.reports.Write(outCtx, res); err != nil {
			a.logger.Error("failed to archive report", zap.String("run_id", res.RunID), zap.Error(err))
		}
	}
	a.writeTextfile()
	a.notify(outCtx, res, reportPath)
	return res, runErr
}

func (a *App) notify(ctx context.Context, res *backtest.Result, reportPath string) {
	notice := notifier.RunNotice{
		RunID:        res.RunID,
		Status:       res.Status,
		From:         res.Config.From,
		To:           res.Config.To,
		Instruments:  len(res.Instruments) + len(res.Failed),
		Failed:       len(res.Failed),
		Trades:       res.Stats.TotalTrades,
		WinRate:      res.Stats.WinRate,
		RealizedPnL:  res.Summary.RealizedPnL,
		FinalCapital: res.Ledger.TotalCapital,
		Elapsed:      res.Elapsed,
		ReportPath:   reportPath,
	}
	for name, err := range a.notifiers.NotifyAll(ctx, notice) {
		a.logger.Warn("run notification failed", zap.String("notifier", name), zap.Error(err))
	}
}

func (a *App) writeTextfile() {
	if a.cfg.Metrics.Textfile == "" {
		return
	}
	if err := a.metrics.WriteTextfile(a.cfg.Metrics.Textfile); err != nil {
		a.logger.Warn("failed to write metrics textfile", zap.String("path", a.cfg.Metrics.Textfile), zap.Error(err))
	}
}

// Trades returns the journaled events of a run.
func (a *App) Trades(ctx context.Context, runID string) ([]core.TradeEvent, error) {
	return a.journal.Trades(ctx, runID)
}

// Runs returns the journaled run index.
func (a *App) Runs(ctx context.Context) ([]journal.RunRecord, error) {
	return a.journal.Runs(ctx)
}

// Report loads an archived run report.
func (a *App) Report(ctx context.Context, runID string) (*backtest.Result, error) {
	if a.reports == nil {
		return nil, core.WrapError(core.ErrConfigMissing, fmt.Errorf("report archive is disabled"))
	}
	return a.reports.Load(ctx, runID)
}

// Metrics exposes the process metrics registry.
func (a *App) Metrics() *metrics.Registry {
	return a.metrics
}

// Close releases every backend opened by New.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
