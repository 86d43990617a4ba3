package indicator

import (
	"fmt"

	"github.com/newthinker/turtle/internal/core"
	"github.com/thrasher-corp/gct-ta/indicators"
)

// ATR returns the most recent Wilder average true range over period.
// bars must be oldest first and hold at least period+1 entries.
func ATR(bars []core.DailyBar, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("atr period %d must be positive", period)
	}
	if len(bars) < period+1 {
		return 0, core.WrapError(core.ErrInsufficientData,
			fmt.Errorf("atr(%d) needs %d bars, got %d", period, period+1, len(bars)))
	}

	high := make([]float64, len(bars))
	low := make([]float64, len(bars))
	closes := make([]float64, len(bars))
	for i, b := range bars {
		high[i], low[i], closes[i] = b.High, b.Low, b.Close
	}

	series := indicators.ATR(high, low, closes, period)
	if len(series) == 0 {
		return 0, core.WrapError(core.ErrInsufficientData, fmt.Errorf("atr(%d) produced no values", period))
	}
	return series[len(series)-1], nil
}
