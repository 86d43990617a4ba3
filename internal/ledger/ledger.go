// Package ledger holds the capital and open positions shared by every
// simulator of a backtest run.
package ledger

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/newthinker/turtle/internal/core"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Config seeds a ledger at the start of a run.
type Config struct {
	InitialCapital decimal.Decimal
	RiskParameter  decimal.Decimal
}

// Order is a request to open a position.
type Order struct {
	Instrument string
	Price      decimal.Decimal
	Volume     decimal.Decimal
	Direction  core.Direction
	Date       time.Time
	UseCapital bool
}

// Notional returns Price × Volume.
func (o Order) Notional() decimal.Decimal {
	return o.Price.Mul(o.Volume)
}

// OpenResult represents the outcome of an open request.
type OpenResult struct {
	// Accepted indicates whether the position was opened.
	Accepted bool
	// Reason explains a rejection.
	Reason string
	// Event is the open TradeEvent when accepted.
	Event core.TradeEvent
}

// Snapshot is a point-in-time copy of the ledger state.
type Snapshot struct {
	TotalCapital  decimal.Decimal `json:"total_capital"`
	FrozenCapital decimal.Decimal `json:"frozen_capital"`
	UsableCapital decimal.Decimal `json:"usable_capital"`
	RiskParameter decimal.Decimal `json:"risk_parameter"`
	Positions     []core.Position `json:"positions"`
}

// Ledger tracks total/frozen capital and at most one position per instrument.
// Every method runs under one mutex, so no two operations interleave their
// read-modify-write regardless of instrument.
type Ledger struct {
	mu        sync.Mutex
	total     decimal.Decimal
	frozen    decimal.Decimal
	risk      decimal.Decimal
	positions map[string]*core.Position
	logger    *zap.Logger
}

// New creates a ledger with the configured capital and no positions.
func New(cfg Config, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		total:     cfg.InitialCapital,
		frozen:    decimal.Zero,
		risk:      cfg.RiskParameter,
		positions: make(map[string]*core.Position),
		logger:    logger.Named("ledger"),
	}
}

// Open inserts a position for the order's instrument.
// Insufficient usable capital is a rejection, not an error. An existing
// position for the instrument returns ErrPositionExists and leaves state untouched.
func (l *Ledger) Open(o Order) (OpenResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	notional := o.Notional()
	if o.UseCapital {
		usable := l.total.Sub(l.frozen)
		if usable.LessThan(notional) {
			l.logger.Warn("insufficient usable capital",
				zap.String("instrument", o.Instrument),
				zap.String("usable", usable.String()),
				zap.String("notional", notional.String()),
			)
			return OpenResult{
				Accepted: false,
				Reason:   fmt.Sprintf("usable capital %s < order notional %s", usable, notional),
			}, nil
		}
	}

	if _, exists := l.positions[o.Instrument]; exists {
		return OpenResult{}, core.WrapError(core.ErrPositionExists, fmt.Errorf("instrument %s", o.Instrument))
	}

	l.positions[o.Instrument] = &core.Position{
		Instrument: o.Instrument,
		EntryPrice: o.Price,
		Volume:     o.Volume,
		Direction:  o.Direction,
		EntryDate:  o.Date,
	}
	if o.UseCapital {
		l.adjustFrozenLocked(notional)
	}

	return OpenResult{
		Accepted: true,
		Event: core.TradeEvent{
			Instrument: o.Instrument,
			Action:     core.ActionOpen,
			Direction:  o.Direction,
			Date:       o.Date,
			Price:      o.Price,
			Volume:     o.Volume,
			EntryPrice: o.Price,
			EntryDate:  o.Date,
		},
	}, nil
}

// Close removes the instrument's position at closePrice and returns the close
// event. Without an open position it returns nil, nil.
// Realized P&L is booked into total capital and the originally frozen notional
// is released only when useCapital is set.
func (l *Ledger) Close(instrument string, closePrice decimal.Decimal, date time.Time, useCapital bool) (*core.TradeEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pos, exists := l.positions[instrument]
	if !exists {
		return nil, nil
	}

	var pnl decimal.Decimal
	switch pos.Direction {
	case core.DirectionLong:
		pnl = closePrice.Sub(pos.EntryPrice).Mul(pos.Volume)
	case core.DirectionShort:
		pnl = pos.EntryPrice.Sub(closePrice).Mul(pos.Volume)
	default:
		return nil, core.WrapError(core.ErrUnknownDirection,
			fmt.Errorf("instrument %s direction %q", instrument, pos.Direction))
	}

	delete(l.positions, instrument)
	if useCapital {
		l.total = l.total.Add(pnl)
		l.adjustFrozenLocked(pos.Notional().Neg())
	}

	return &core.TradeEvent{
		Instrument: instrument,
		Action:     core.ActionClose,
		Direction:  pos.Direction,
		Date:       date,
		Price:      closePrice,
		Volume:     pos.Volume,
		EntryPrice: pos.EntryPrice,
		EntryDate:  pos.EntryDate,
		PnL:        pnl,
	}, nil
}

// Position returns a copy of the instrument's open position.
func (l *Ledger) Position(instrument string) (core.Position, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pos, exists := l.positions[instrument]
	if !exists {
		return core.Position{}, false
	}
	return *pos, true
}

// AdjustFrozenCapital freezes (positive delta) or releases (negative delta) capital.
func (l *Ledger) AdjustFrozenCapital(delta decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.adjustFrozenLocked(delta)
}

// adjustFrozenLocked requires l.mu.
func (l *Ledger) adjustFrozenLocked(delta decimal.Decimal) {
	l.frozen = l.frozen.Add(delta)
	l.logger.Debug("frozen capital adjusted",
		zap.String("delta", delta.String()),
		zap.String("frozen", l.frozen.String()),
	)
}

// TotalCapital returns the booked capital.
func (l *Ledger) TotalCapital() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}

// UsableCapital returns total minus frozen capital.
func (l *Ledger) UsableCapital() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total.Sub(l.frozen)
}

// RiskParameter returns the run's scalar risk parameter.
func (l *Ledger) RiskParameter() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.risk
}

// Snapshot returns a consistent copy of the ledger, positions sorted by instrument.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	positions := make([]core.Position, 0, len(l.positions))
	for _, pos := range l.positions {
		positions = append(positions, *pos)
	}
	sort.Slice(positions, func(i, j int) bool {
		return positions[i].Instrument < positions[j].Instrument
	})

	return Snapshot{
		TotalCapital:  l.total,
		FrozenCapital: l.frozen,
		UsableCapital: l.total.Sub(l.frozen),
		RiskParameter: l.risk,
		Positions:     positions,
	}
}
