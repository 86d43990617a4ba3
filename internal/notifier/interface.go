// Package notifier announces finished backtest runs.
package notifier

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// RunNotice summarizes a finished run for outside consumers.
type RunNotice struct {
	RunID        string          `json:"run_id"`
	Status       string          `json:"status"`
	From         time.Time       `json:"from"`
	To           time.Time       `json:"to"`
	Instruments  int             `json:"instruments"`
	Failed       int             `json:"failed"`
	Trades       int             `json:"trades"`
	WinRate      float64         `json:"win_rate"`
	RealizedPnL  decimal.Decimal `json:"realized_pnl"`
	FinalCapital decimal.Decimal `json:"final_capital"`
	Elapsed      time.Duration   `json:"elapsed"`
	ReportPath   string          `json:"report_path,omitempty"`
}

// Notifier defines the interface for run notification
type Notifier interface {
	// Name returns the unique identifier for this notifier
	Name() string

	// Notify delivers a run notice
	Notify(ctx context.Context, notice RunNotice) error
}
