// Package journal records trade events and folds them into summaries.
package journal

import (
	"context"
	"sort"
	"time"

	"github.com/newthinker/turtle/internal/core"
	"github.com/shopspring/decimal"
)

// Recorder persists trade events for a run and summarizes them.
type Recorder interface {
	Record(ctx context.Context, ev core.TradeEvent) error
	Trades(ctx context.Context, runID string) ([]core.TradeEvent, error)
	Summarize(ctx context.Context, runID, instrument string) (Summary, error)
	SummarizeRun(ctx context.Context, runID string) (Summary, error)
}

// RunRecord describes one backtest invocation.
type RunRecord struct {
	ID           string          `json:"id"`
	StartedAt    time.Time       `json:"started_at"`
	From         time.Time       `json:"from"`
	To           time.Time       `json:"to"`
	Instruments  int             `json:"instruments"`
	Status       string          `json:"status"`
	FinalCapital decimal.Decimal `json:"final_capital"`
}

// RunRecorder is implemented by recorders that also keep a run index.
type RunRecorder interface {
	RecordRun(ctx context.Context, run RunRecord) error
	Runs(ctx context.Context) ([]RunRecord, error)
}

// Summary aggregates the events of one instrument, or of a whole run when
// Instrument is empty.
type Summary struct {
	Instrument  string          `json:"instrument,omitempty"`
	Opens       int             `json:"opens"`
	Closes      int             `json:"closes"`
	Wins        int             `json:"wins"`
	Losses      int             `json:"losses"`
	RealizedPnL decimal.Decimal `json:"realized_pnl"`
}

// OpenPositions is the number of opens without a matching close.
func (s Summary) OpenPositions() int {
	return s.Opens - s.Closes
}

// WinRate returns winning closes as a percentage of all closes.
func (s Summary) WinRate() float64 {
	if s.Closes == 0 {
		return 0
	}
	return float64(s.Wins) / float64(s.Closes) * 100
}

// Summarize folds events into a Summary labelled with instrument.
func Summarize(instrument string, events []core.TradeEvent) Summary {
	s := Summary{Instrument: instrument, RealizedPnL: decimal.Zero}
	for _, ev := range events {
		switch ev.Action {
		case core.ActionOpen:
			s.Opens++
		case core.ActionClose:
			s.Closes++
			s.RealizedPnL = s.RealizedPnL.Add(ev.PnL)
			if ev.PnL.IsPositive() {
				s.Wins++
			} else {
				s.Losses++
			}
		}
	}
	return s
}

// SortEvents orders events by date, instrument, then opens before closes.
func SortEvents(events []core.TradeEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.Instrument != b.Instrument {
			return a.Instrument < b.Instrument
		}
		return a.Action == core.ActionOpen && b.Action == core.ActionClose
	})
}

func filterInstrument(events []core.TradeEvent, instrument string) []core.TradeEvent {
	var out []core.TradeEvent
	for _, ev := range events {
		if ev.Instrument == instrument {
			out = append(out, ev)
		}
	}
	return out
}
