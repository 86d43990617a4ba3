// Package simulator walks one instrument day by day against the shared ledger.
package simulator

import (
	"context"
	"fmt"
	"time"

	"github.com/newthinker/turtle/internal/collector"
	"github.com/newthinker/turtle/internal/core"
	"github.com/newthinker/turtle/internal/decision"
	"github.com/newthinker/turtle/internal/id"
	"github.com/newthinker/turtle/internal/journal"
	"github.com/newthinker/turtle/internal/ledger"
	"go.uber.org/zap"
)

// Decider produces the day's open and close decisions.
type Decider interface {
	Open(ctx context.Context, bar core.DailyBar) (*decision.OpenDecision, error)
	Close(ctx context.Context, bar core.DailyBar, pos core.Position) (*decision.CloseDecision, error)
}

// Metrics receives per-day counters.
type Metrics interface {
	RecordTrade(action, direction string)
	RecordRejectedOpen()
	RecordSkippedDay()
}

type nopMetrics struct{}

func (nopMetrics) RecordTrade(string, string) {}
func (nopMetrics) RecordRejectedOpen()        {}
func (nopMetrics) RecordSkippedDay()          {}

// Config is fixed for a run.
type Config struct {
	RunID      string
	Start      time.Time
	End        time.Time
	UseCapital bool
	// Today, when set, also logs trades dated that day on the "today" logger.
	Today time.Time
}

// Deps are the collaborators a simulator drives.
type Deps struct {
	Data     collector.HistoricalData
	Calendar collector.Calendar
	Decider  Decider
	Ledger   *ledger.Ledger
	Recorder journal.Recorder
	Metrics  Metrics
	Logger   *zap.Logger
}

// Outcome is the result of simulating one instrument.
type Outcome struct {
	Instrument    string          `json:"instrument"`
	Summary       journal.Summary `json:"summary"`
	TradingDays   int             `json:"trading_days"`
	SkippedDays   int             `json:"skipped_days"`
	RejectedOpens int             `json:"rejected_opens"`
}

// Simulator holds no per-instrument state; one value may run many
// instruments concurrently.
type Simulator struct {
	cfg   Config
	deps  Deps
	trade *zap.Logger
	today *zap.Logger
}

// New creates a simulator
func New(cfg Config, deps Deps) *Simulator {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Metrics == nil {
		deps.Metrics = nopMetrics{}
	}
	cfg.Start, cfg.End = core.Day(cfg.Start), core.Day(cfg.End)
	if !cfg.Today.IsZero() {
		cfg.Today = core.Day(cfg.Today)
	}
	return &Simulator{
		cfg:   cfg,
		deps:  deps,
		trade: deps.Logger.Named("trade"),
		today: deps.Logger.Named("today"),
	}
}

// Run simulates instrument across every date from Start to End inclusive.
// Data-integrity errors, journal failures and context cancellation stop the
// walk and are returned alongside the partial outcome.
func (s *Simulator) Run(ctx context.Context, instrument string) (Outcome, error) {
	out := Outcome{Instrument: instrument}
	log := s.deps.Logger.With(zap.String("instrument", instrument))

	for date := s.cfg.Start; !date.After(s.cfg.End); date = date.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if err := s.Step(ctx, instrument, date, &out); err != nil {
			log.Error("simulation aborted", zap.Time("date", date), zap.Error(err))
			return out, err
		}
	}

	summary, err := s.deps.Recorder.Summarize(ctx, s.cfg.RunID, instrument)
	if err != nil {
		return out, fmt.Errorf("summarize %s: %w", instrument, err)
	}
	out.Summary = summary
	return out, nil
}

// Step processes one calendar date. Recoverable problems are logged and
// counted in out; only fatal errors are returned.
func (s *Simulator) Step(ctx context.Context, instrument string, date time.Time, out *Outcome) error {
	log := s.deps.Logger.With(zap.String("instrument", instrument), zap.Time("date", date))

	open, err := s.deps.Calendar.IsTradingDay(ctx, date)
	if err != nil {
		s.skip(log, out, "calendar lookup failed", err)
		return nil
	}
	if !open {
		log.Debug("not a trading day")
		return nil
	}

	bar, ok, err := s.deps.Data.DailyBar(ctx, instrument, date)
	if err != nil {
		s.skip(log, out, "daily bar lookup failed", err)
		return nil
	}
	if !ok {
		log.Debug("no bar")
		return nil
	}
	if !bar.IsValid() {
		s.skip(log, out, "invalid daily bar", core.WrapError(core.ErrInvalidBar,
			fmt.Errorf("high %g low %g close %g", bar.High, bar.Low, bar.Close)))
		return nil
	}
	out.TradingDays++

	// Both decisions see the position as it stood before the day began, so a
	// position opened today is never closed today.
	pos, held := s.deps.Ledger.Position(instrument)

	if !held {
		if err := s.open(ctx, log, bar, out); err != nil {
			return err
		}
	}
	if held {
		if err := s.close(ctx, log, bar, pos, out); err != nil {
			return err
		}
	}
	return nil
}

func (s *Simulator) open(ctx context.Context, log *zap.Logger, bar core.DailyBar, out *Outcome) error {
	dec, err := s.deps.Decider.Open(ctx, bar)
	if err != nil {
		if core.IsDataIntegrity(err) {
			return err
		}
		s.skip(log, out, "open decision failed", err)
		return nil
	}
	if dec == nil {
		return nil
	}

	res, err := s.deps.Ledger.Open(ledger.Order{
		Instrument: bar.Instrument,
		Price:      dec.Price,
		Volume:     dec.Volume,
		Direction:  dec.Direction,
		Date:       bar.Date,
		UseCapital: s.cfg.UseCapital,
	})
	if err != nil {
		return err
	}
	if !res.Accepted {
		out.RejectedOpens++
		s.deps.Metrics.RecordRejectedOpen()
		log.Info("open rejected", zap.String("reason", res.Reason))
		return nil
	}
	return s.record(ctx, res.Event)
}

func (s *Simulator) close(ctx context.Context, log *zap.Logger, bar core.DailyBar, pos core.Position, out *Outcome) error {
	dec, err := s.deps.Decider.Close(ctx, bar, pos)
	if err != nil {
		if core.IsDataIntegrity(err) {
			return err
		}
		s.skip(log, out, "close decision failed", err)
		return nil
	}
	if dec == nil {
		return nil
	}

	ev, err := s.deps.Ledger.Close(bar.Instrument, dec.Price, bar.Date, s.cfg.UseCapital)
	if err != nil {
		return err
	}
	if ev == nil {
		return nil
	}
	return s.record(ctx, *ev)
}

func (s *Simulator) record(ctx context.Context, ev core.TradeEvent) error {
	ev.ID = id.New()
	ev.RunID = s.cfg.RunID

	fields := []zap.Field{
		zap.String("run_id", ev.RunID),
		zap.String("instrument", ev.Instrument),
		zap.String("action", string(ev.Action)),
		zap.String("direction", string(ev.Direction)),
		zap.Time("date", ev.Date),
		zap.String("price", ev.Price.String()),
		zap.String("volume", ev.Volume.String()),
	}
	if ev.IsClose() {
		fields = append(fields, zap.String("pnl", ev.PnL.String()))
	}
	s.trade.Info("trade", fields...)
	if !s.cfg.Today.IsZero() && ev.Date.Equal(s.cfg.Today) {
		s.today.Info("trade today", fields...)
	}

	s.deps.Metrics.RecordTrade(string(ev.Action), string(ev.Direction))
	if err := s.deps.Recorder.Record(ctx, ev); err != nil {
		return fmt.Errorf("journal %s %s: %w", ev.Action, ev.Instrument, err)
	}
	return nil
}

func (s *Simulator) skip(log *zap.Logger, out *Outcome, msg string, err error) {
	out.SkippedDays++
	s.deps.Metrics.RecordSkippedDay()
	log.Warn(msg, zap.Error(err))
}
