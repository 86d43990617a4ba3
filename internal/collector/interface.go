// Package collector defines the market data the simulator reads and ships
// local sources that serve it.
package collector

import (
	"context"
	"time"

	"github.com/newthinker/turtle/internal/core"
)

// HistoricalData serves daily bars.
type HistoricalData interface {
	// DailyBar returns the bar for instrument on date. A missing bar is
	// reported with ok=false and a nil error.
	DailyBar(ctx context.Context, instrument string, date time.Time) (bar core.DailyBar, ok bool, err error)

	// DailyBars returns up to n bars strictly before date, oldest first.
	DailyBars(ctx context.Context, instrument string, date time.Time, n int) ([]core.DailyBar, error)
}

// Calendar answers whether the market was open on a date.
type Calendar interface {
	IsTradingDay(ctx context.Context, date time.Time) (bool, error)
}

// ReferenceData lists the instrument universe.
type ReferenceData interface {
	AllInstruments(ctx context.Context) ([]string, error)
}

// Source bundles everything a backtest reads.
type Source interface {
	HistoricalData
	Calendar
	ReferenceData
	Name() string
	Close() error
}
