// Package exit holds close strategies that unwind a position once price
// reverses through the opposite side of a shorter channel.
package exit

import (
	"math"

	"github.com/newthinker/turtle/internal/core"
	"github.com/newthinker/turtle/internal/strategy"
)

var (
	_ strategy.CloseStrategy = (*Channel)(nil)
	_ strategy.CloseStrategy = (*Reversal)(nil)
)

// Channel exits intraday when the range crosses the reference, filling at the
// level or at the open when the bar gaps through it.
type Channel struct{}

// NewChannel creates the intraday channel exit
func NewChannel() *Channel { return &Channel{} }

func (Channel) Code() string { return "channel_exit" }

func (Channel) Description() string {
	return "Exit when the day's range crosses the opposite channel edge"
}

func (Channel) Decide(bar core.DailyBar, pos core.Position, ref float64) *strategy.CloseSignal {
	switch pos.Direction {
	case core.DirectionLong:
		if bar.Low < ref {
			return &strategy.CloseSignal{Price: math.Min(ref, bar.Open)}
		}
	case core.DirectionShort:
		if bar.High > ref {
			return &strategy.CloseSignal{Price: math.Max(ref, bar.Open)}
		}
	}
	return nil
}

// Reversal exits at the close when the close settles beyond the reference.
type Reversal struct{}

// NewReversal creates the closing-price reversal exit
func NewReversal() *Reversal { return &Reversal{} }

func (Reversal) Code() string { return "close_reversal" }

func (Reversal) Description() string {
	return "Exit at the close when it settles beyond the opposite channel edge"
}

func (Reversal) Decide(bar core.DailyBar, pos core.Position, ref float64) *strategy.CloseSignal {
	switch pos.Direction {
	case core.DirectionLong:
		if bar.Close < ref {
			return &strategy.CloseSignal{Price: bar.Close}
		}
	case core.DirectionShort:
		if bar.Close > ref {
			return &strategy.CloseSignal{Price: bar.Close}
		}
	}
	return nil
}
