// Package filter provides trend filters. A positive value marks a bullish
// regime, negative bearish, zero no trade.
package filter

import (
	"context"
	"fmt"
	"time"

	"github.com/newthinker/turtle/internal/collector"
	"github.com/newthinker/turtle/internal/core"
	"github.com/newthinker/turtle/internal/indicator"
	"github.com/shopspring/decimal"
)

// Filter codes accepted by New.
const (
	CodeSMADistance = "sma_distance"
	CodeEMADistance = "ema_distance"
	CodeSMASlope    = "sma_slope"
)

// Codes lists every moving-average filter code.
var Codes = []string{CodeSMADistance, CodeEMADistance, CodeSMASlope}

// MovingAverage derives the trend from closes strictly before the decision date.
// Short history yields zero so no position opens.
type MovingAverage struct {
	code string
	data collector.HistoricalData
}

// New builds the filter for code.
func New(code string, data collector.HistoricalData) (*MovingAverage, error) {
	switch code {
	case CodeSMADistance, CodeEMADistance, CodeSMASlope:
		return &MovingAverage{code: code, data: data}, nil
	default:
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown trend filter %q", code))
	}
}

// Code returns the filter code
func (f *MovingAverage) Code() string { return f.code }

// Value computes the trend for instrument on date over window bars.
func (f *MovingAverage) Value(ctx context.Context, instrument string, date time.Time, window int) (decimal.Decimal, error) {
	if window <= 0 {
		return decimal.Zero, nil
	}

	need := window
	if f.code == CodeSMASlope {
		need = window + 1
	}
	bars, err := f.data.DailyBars(ctx, instrument, date, need)
	if err != nil {
		return decimal.Zero, err
	}
	if len(bars) < need {
		return decimal.Zero, nil
	}
	closes := indicator.Closes(bars)

	var v float64
	switch f.code {
	case CodeSMADistance:
		v, _ = indicator.Distance(closes, indicator.SMA(closes, window))
	case CodeEMADistance:
		v, _ = indicator.Distance(closes, indicator.EMA(closes, window))
	case CodeSMASlope:
		v, _ = indicator.Slope(indicator.SMA(closes, window))
	}
	return decimal.NewFromFloat(v), nil
}

// Constant always reports the same trend.
type Constant struct {
	V decimal.Decimal
}

// Value implements the trend filter contract
func (c Constant) Value(context.Context, string, time.Time, int) (decimal.Decimal, error) {
	return c.V, nil
}
