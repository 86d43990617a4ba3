package core

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Date layouts accepted for run configuration and storage.
const (
	DateLayout      = "2006-01-02"
	ShortDateLayout = "20060102"
)

// Day truncates t to midnight UTC of its calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate accepts either 2006-01-02 or 20060102.
func ParseDate(s string) (time.Time, error) {
	for _, layout := range []string{DateLayout, ShortDateLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return Day(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q (expected YYYY-MM-DD or YYYYMMDD)", s)
}

// DailyBar is one trading day's OHLCV summary for an instrument
type DailyBar struct {
	Instrument string
	Date       time.Time
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     float64
}

// IsValid checks if the bar has the fields the simulator relies on
func (b DailyBar) IsValid() bool {
	return b.Instrument != "" && !b.Date.IsZero() && b.High >= b.Low && b.Close > 0
}

// Direction is the side of a position
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

// IsValid reports whether d is one of the known directions
func (d Direction) IsValid() bool {
	return d == DirectionLong || d == DirectionShort
}

// Action identifies what a TradeEvent did to a position
type Action string

const (
	ActionOpen  Action = "open"
	ActionClose Action = "close"
)

// Position is an open order held in the ledger.
type Position struct {
	Instrument string
	EntryPrice decimal.Decimal
	Volume     decimal.Decimal
	Direction  Direction
	EntryDate  time.Time
}

// Notional returns EntryPrice × Volume, the amount frozen while the position is open.
func (p Position) Notional() decimal.Decimal {
	return p.EntryPrice.Mul(p.Volume)
}

// TradeEvent records one open or close action.
type TradeEvent struct {
	ID         string          `json:"id"`
	RunID      string          `json:"run_id"`
	Instrument string          `json:"instrument"`
	Action     Action          `json:"action"`
	Direction  Direction       `json:"direction"`
	Date       time.Time       `json:"date"`
	Price      decimal.Decimal `json:"price"`
	Volume     decimal.Decimal `json:"volume"`
	EntryPrice decimal.Decimal `json:"entry_price"`
	EntryDate  time.Time       `json:"entry_date"`
	PnL        decimal.Decimal `json:"pnl"` // Realized, close events only
}

// IsClose returns true for close events
func (e TradeEvent) IsClose() bool {
	return e.Action == ActionClose
}

// Return is the realized P&L relative to the entry notional.
func (e TradeEvent) Return() float64 {
	notional := e.EntryPrice.Mul(e.Volume)
	if !e.IsClose() || notional.IsZero() {
		return 0
	}
	r, _ := e.PnL.Div(notional).Float64()
	return r
}
