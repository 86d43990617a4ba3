// Package sizing turns a fired entry into an order volume.
package sizing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/newthinker/turtle/internal/collector"
	"github.com/newthinker/turtle/internal/core"
	"github.com/newthinker/turtle/internal/indicator"
	"github.com/shopspring/decimal"
)

// Sizer methods accepted by New.
const (
	MethodFixed = "fixed"
	MethodATR   = "atr"
)

// Input is what a sizer sees when an entry fires.
type Input struct {
	Instrument    string
	Date          time.Time
	Price         decimal.Decimal
	TotalCapital  decimal.Decimal
	RiskParameter decimal.Decimal
}

// Sizer returns the volume for an entry. Zero means skip the entry.
type Sizer interface {
	Size(ctx context.Context, in Input) (decimal.Decimal, error)
}

// Fixed always trades Unit.
type Fixed struct {
	Unit decimal.Decimal
}

// Size implements Sizer
func (f Fixed) Size(context.Context, Input) (decimal.Decimal, error) {
	return f.Unit, nil
}

// ATR risks TotalCapital × RiskParameter per average true range, rounded down
// to a whole multiple of Unit.
type ATR struct {
	Unit   decimal.Decimal
	Period int
	Data   collector.HistoricalData
}

// Size implements Sizer
func (a ATR) Size(ctx context.Context, in Input) (decimal.Decimal, error) {
	bars, err := a.Data.DailyBars(ctx, in.Instrument, in.Date, a.Period+1)
	if err != nil {
		return decimal.Zero, err
	}
	atr, err := indicator.ATR(bars, a.Period)
	if errors.Is(err, core.ErrInsufficientData) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	if atr <= 0 {
		return decimal.Zero, nil
	}

	raw := in.TotalCapital.Mul(in.RiskParameter).Div(decimal.NewFromFloat(atr))
	if !a.Unit.IsPositive() {
		return raw.Floor(), nil
	}
	return raw.Div(a.Unit).Floor().Mul(a.Unit), nil
}

// New builds the sizer for method.
func New(method string, unit decimal.Decimal, atrPeriod int, data collector.HistoricalData) (Sizer, error) {
	switch method {
	case "", MethodFixed:
		return Fixed{Unit: unit}, nil
	case MethodATR:
		if atrPeriod <= 0 {
			return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("atr period %d must be positive", atrPeriod))
		}
		return ATR{Unit: unit, Period: atrPeriod, Data: data}, nil
	default:
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown sizing method %q", method))
	}
}
