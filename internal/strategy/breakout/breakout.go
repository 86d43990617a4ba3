// Package breakout holds entry strategies that fire when price leaves the
// rolling channel.
package breakout

import (
	"math"

	"github.com/newthinker/turtle/internal/core"
	"github.com/newthinker/turtle/internal/strategy"
)

var (
	_ strategy.OpenStrategy = (*Intraday)(nil)
	_ strategy.OpenStrategy = (*OnClose)(nil)
)

// Intraday enters as soon as the day's range crosses the reference. A bar
// that gaps through the level fills at the open.
type Intraday struct{}

// NewIntraday creates the intraday breakout entry
func NewIntraday() *Intraday { return &Intraday{} }

func (Intraday) Code() string { return "breakout" }

func (Intraday) Description() string {
	return "Enter when the day's high/low crosses the rolling channel"
}

func (Intraday) Decide(bar core.DailyBar, dir core.Direction, ref float64) *strategy.OpenSignal {
	switch dir {
	case core.DirectionLong:
		if bar.High > ref {
			return &strategy.OpenSignal{Direction: dir, Price: math.Max(ref, bar.Open)}
		}
	case core.DirectionShort:
		if bar.Low < ref {
			return &strategy.OpenSignal{Direction: dir, Price: math.Min(ref, bar.Open)}
		}
	}
	return nil
}

// OnClose enters at the close when the close itself is beyond the reference.
type OnClose struct{}

// NewOnClose creates the closing-price breakout entry
func NewOnClose() *OnClose { return &OnClose{} }

func (OnClose) Code() string { return "close_breakout" }

func (OnClose) Description() string {
	return "Enter at the close when it settles outside the rolling channel"
}

func (OnClose) Decide(bar core.DailyBar, dir core.Direction, ref float64) *strategy.OpenSignal {
	switch dir {
	case core.DirectionLong:
		if bar.Close > ref {
			return &strategy.OpenSignal{Direction: dir, Price: bar.Close}
		}
	case core.DirectionShort:
		if bar.Close < ref {
			return &strategy.OpenSignal{Direction: dir, Price: bar.Close}
		}
	}
	return nil
}
