package backtest

import (
	"fmt"
	"time"

	"github.com/newthinker/turtle/internal/core"
	"github.com/newthinker/turtle/internal/journal"
	"github.com/newthinker/turtle/internal/ledger"
	"github.com/newthinker/turtle/internal/simulator"
	"github.com/shopspring/decimal"
)

// RunConfig is read once at the start of a run and never modified.
type RunConfig struct {
	From        time.Time `json:"from"`
	To          time.Time `json:"to"`
	Instruments []string  `json:"instruments,omitempty"`
	All         bool      `json:"all"`

	UseCapital     bool            `json:"use_capital"`
	InitialCapital decimal.Decimal `json:"initial_capital"`
	RiskParameter  decimal.Decimal `json:"risk_parameter"`
	Unit           decimal.Decimal `json:"unit"`
	Sizing         string          `json:"sizing"`
	ATRPeriod      int             `json:"atr_period"`

	OpenCode      string `json:"open_code"`
	CloseCode     string `json:"close_code"`
	FilterCode    string `json:"filter_code"`
	BreakOpenDay  int    `json:"break_open_day"`
	BreakCloseDay int    `json:"break_close_day"`
	FilterDay     int    `json:"filter_day"`

	// Concurrency caps parallel simulators; 0 means one per CPU.
	Concurrency int `json:"concurrency"`
	// Deterministic sorts the universe and runs instruments one at a time so
	// capital-constrained runs are reproducible.
	Deterministic bool          `json:"deterministic"`
	Timeout       time.Duration `json:"timeout,omitempty"`
	Today         time.Time     `json:"today,omitempty"`
}

// Validate checks the run configuration.
func (c RunConfig) Validate() error {
	invalid := func(format string, args ...any) error {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf(format, args...))
	}

	switch {
	case c.From.IsZero() || c.To.IsZero():
		return core.WrapError(core.ErrConfigMissing, fmt.Errorf("date range is required"))
	case c.To.Before(c.From):
		return invalid("end %s before start %s", c.To.Format(core.DateLayout), c.From.Format(core.DateLayout))
	case !c.All && len(c.Instruments) == 0:
		return core.WrapError(core.ErrConfigMissing, fmt.Errorf("instruments or all is required"))
	case c.OpenCode == "" || c.CloseCode == "":
		return core.WrapError(core.ErrConfigMissing, fmt.Errorf("open and close strategy codes are required"))
	case c.BreakOpenDay <= 0 || c.BreakCloseDay <= 0:
		return invalid("breakout windows must be positive (open %d, close %d)", c.BreakOpenDay, c.BreakCloseDay)
	case c.FilterDay < 0:
		return invalid("filter window %d is negative", c.FilterDay)
	case !c.Unit.IsPositive():
		return invalid("unit %s must be positive", c.Unit)
	case c.Concurrency < 0:
		return invalid("concurrency %d is negative", c.Concurrency)
	case c.RiskParameter.IsNegative():
		return invalid("risk parameter %s is negative", c.RiskParameter)
	case c.UseCapital && !c.InitialCapital.IsPositive():
		return invalid("initial capital %s must be positive when capital is used", c.InitialCapital)
	}
	return nil
}

// Result holds the complete backtest output
type Result struct {
	RunID       string              `json:"run_id"`
	Config      RunConfig           `json:"config"`
	StartedAt   time.Time           `json:"started_at"`
	Elapsed     time.Duration       `json:"elapsed"`
	Status      string              `json:"status"` // "ok", "partial" or "cancelled"
	Instruments []simulator.Outcome `json:"instruments"`
	Failed      []Failure           `json:"failed,omitempty"`
	Summary     journal.Summary     `json:"summary"`
	Trades      []Trade             `json:"trades"`
	Stats       Stats               `json:"stats"`
	Ledger      ledger.Snapshot     `json:"ledger"`
	// CapitalReturn is the percentage change of total capital over the run.
	CapitalReturn float64 `json:"capital_return"`
}

// Failure is an instrument whose simulation stopped early.
type Failure struct {
	Instrument string `json:"instrument"`
	Error      string `json:"error"`
}

// Trade represents a round trip from entry to exit
type Trade struct {
	Instrument string          `json:"instrument"`
	Direction  core.Direction  `json:"direction"`
	EntryDate  time.Time       `json:"entry_date"`
	ExitDate   time.Time       `json:"exit_date,omitempty"` // zero if position still open
	EntryPrice decimal.Decimal `json:"entry_price"`
	ExitPrice  decimal.Decimal `json:"exit_price"`
	Volume     decimal.Decimal `json:"volume"`
	PnL        decimal.Decimal `json:"pnl"`
	Return     float64         `json:"return"` // Fraction of entry notional
}

// Stats holds performance statistics
type Stats struct {
	TotalTrades    int             `json:"total_trades"`
	OpenTrades     int             `json:"open_trades"`
	WinningTrades  int             `json:"winning_trades"`
	LosingTrades   int             `json:"losing_trades"`
	WinRate        float64         `json:"win_rate"`     // Percentage of profitable closed trades
	TotalReturn    float64         `json:"total_return"` // Sum of per-trade returns, percent
	RealizedPnL    decimal.Decimal `json:"realized_pnl"`
	ProfitFactor   float64         `json:"profit_factor"` // Gross profit / gross loss; 0 without losses
	AvgHoldingDays float64         `json:"avg_holding_days"`
	MaxDrawdown    float64         `json:"max_drawdown"` // Largest peak-to-trough decline, percent
	SharpeRatio    float64         `json:"sharpe_ratio"` // Annualized, zero risk-free rate
}

// IsWin returns true if the trade was profitable
func (t Trade) IsWin() bool {
	return t.PnL.IsPositive()
}

// IsClosed returns true if the trade has an exit
func (t Trade) IsClosed() bool {
	return !t.ExitDate.IsZero()
}

// tradeFromClose builds a closed round trip from a close event.
func tradeFromClose(ev core.TradeEvent) Trade {
	return Trade{
		Instrument: ev.Instrument,
		Direction:  ev.Direction,
		EntryDate:  ev.EntryDate,
		ExitDate:   ev.Date,
		EntryPrice: ev.EntryPrice,
		ExitPrice:  ev.Price,
		Volume:     ev.Volume,
		PnL:        ev.PnL,
		Return:     ev.Return(),
	}
}

// tradeFromPosition builds an open round trip from a position left in the ledger.
func tradeFromPosition(p core.Position) Trade {
	return Trade{
		Instrument: p.Instrument,
		Direction:  p.Direction,
		EntryDate:  p.EntryDate,
		EntryPrice: p.EntryPrice,
		Volume:     p.Volume,
		PnL:        decimal.Zero,
	}
}
