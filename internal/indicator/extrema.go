package indicator

import "github.com/newthinker/turtle/internal/core"

// Highest returns the maximum High across bars, or false for an empty window.
func Highest(bars []core.DailyBar) (float64, bool) {
	if len(bars) == 0 {
		return 0, false
	}
	max := bars[0].High
	for _, b := range bars[1:] {
		if b.High > max {
			max = b.High
		}
	}
	return max, true
}

// Lowest returns the minimum Low across bars, or false for an empty window.
func Lowest(bars []core.DailyBar) (float64, bool) {
	if len(bars) == 0 {
		return 0, false
	}
	min := bars[0].Low
	for _, b := range bars[1:] {
		if b.Low < min {
			min = b.Low
		}
	}
	return min, true
}

// Closes extracts the close series from bars.
func Closes(bars []core.DailyBar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}
