// Package decision evaluates per-instrument, per-day open and close decisions.
package decision

import (
	"context"
	"fmt"
	"time"

	"github.com/newthinker/turtle/internal/collector"
	"github.com/newthinker/turtle/internal/core"
	"github.com/newthinker/turtle/internal/indicator"
	"github.com/newthinker/turtle/internal/sizing"
	"github.com/newthinker/turtle/internal/strategy"
	"github.com/shopspring/decimal"
)

// TrendFilter returns a signed trend value for instrument on date:
// positive bullish, negative bearish, zero no trade.
type TrendFilter interface {
	Value(ctx context.Context, instrument string, date time.Time, window int) (decimal.Decimal, error)
}

// Capital exposes the ledger figures sizing depends on.
type Capital interface {
	TotalCapital() decimal.Decimal
	RiskParameter() decimal.Decimal
}

// Config parameterises an Engine.
type Config struct {
	Open          strategy.OpenStrategy
	Close         strategy.CloseStrategy
	Filter        TrendFilter
	Sizer         sizing.Sizer
	BreakOpenDay  int
	BreakCloseDay int
	FilterDay     int
}

// OpenDecision is a sized entry.
type OpenDecision struct {
	Direction core.Direction
	Price     decimal.Decimal
	Volume    decimal.Decimal
	Reference float64
	Trend     decimal.Decimal
}

// CloseDecision is an exit of the held position.
type CloseDecision struct {
	Price     decimal.Decimal
	Reference float64
}

// Engine is stateless across days; it is safe for concurrent use when its
// collaborators are.
type Engine struct {
	cfg     Config
	data    collector.HistoricalData
	capital Capital
}

// New creates a decision engine
func New(cfg Config, data collector.HistoricalData, capital Capital) *Engine {
	return &Engine{cfg: cfg, data: data, capital: capital}
}

// Open decides whether to enter on bar. Insufficient history, a flat trend,
// no breakout and a zero size all return nil without error.
func (e *Engine) Open(ctx context.Context, bar core.DailyBar) (*OpenDecision, error) {
	window, err := e.data.DailyBars(ctx, bar.Instrument, bar.Date, e.cfg.BreakOpenDay)
	if err != nil {
		return nil, fmt.Errorf("open window: %w", err)
	}
	if len(window) < e.cfg.BreakOpenDay || len(window) == 0 {
		return nil, nil
	}

	trend, err := e.cfg.Filter.Value(ctx, bar.Instrument, bar.Date, e.cfg.FilterDay)
	if err != nil {
		return nil, fmt.Errorf("trend filter: %w", err)
	}

	var (
		dir core.Direction
		ref float64
	)
	switch trend.Sign() {
	case 1:
		dir = core.DirectionLong
		ref, _ = indicator.Highest(window)
	case -1:
		dir = core.DirectionShort
		ref, _ = indicator.Lowest(window)
	default:
		return nil, nil
	}

	sig := e.cfg.Open.Decide(bar, dir, ref)
	if sig == nil {
		return nil, nil
	}

	price := decimal.NewFromFloat(sig.Price)
	volume, err := e.cfg.Sizer.Size(ctx, sizing.Input{
		Instrument:    bar.Instrument,
		Date:          bar.Date,
		Price:         price,
		TotalCapital:  e.capital.TotalCapital(),
		RiskParameter: e.capital.RiskParameter(),
	})
	if err != nil {
		return nil, fmt.Errorf("sizing: %w", err)
	}
	if !volume.IsPositive() {
		return nil, nil
	}

	return &OpenDecision{
		Direction: sig.Direction,
		Price:     price,
		Volume:    volume,
		Reference: ref,
		Trend:     trend,
	}, nil
}

// Close decides whether bar exits pos. Insufficient history holds the position.
func (e *Engine) Close(ctx context.Context, bar core.DailyBar, pos core.Position) (*CloseDecision, error) {
	if !pos.Direction.IsValid() {
		return nil, core.WrapError(core.ErrUnknownDirection,
			fmt.Errorf("instrument %s direction %q", pos.Instrument, pos.Direction))
	}

	window, err := e.data.DailyBars(ctx, bar.Instrument, bar.Date, e.cfg.BreakCloseDay)
	if err != nil {
		return nil, fmt.Errorf("close window: %w", err)
	}
	if len(window) < e.cfg.BreakCloseDay || len(window) == 0 {
		return nil, nil
	}

	var ref float64
	if pos.Direction == core.DirectionLong {
		ref, _ = indicator.Lowest(window)
	} else {
		ref, _ = indicator.Highest(window)
	}

	sig := e.cfg.Close.Decide(bar, pos, ref)
	if sig == nil {
		return nil, nil
	}
	return &CloseDecision{
		Price:     decimal.NewFromFloat(sig.Price),
		Reference: ref,
	}, nil
}
