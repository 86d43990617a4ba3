package indicator

// SMA returns one simple average per full window of prices, oldest first.
// A non-positive period or a series shorter than period yields nil.
func SMA(prices []float64, period int) []float64 {
	if period <= 0 || len(prices) < period {
		return nil
	}

	out := make([]float64, 0, len(prices)-period+1)
	var sum float64
	for i, p := range prices {
		sum += p
		if i >= period {
			sum -= prices[i-period]
		}
		if i >= period-1 {
			out = append(out, sum/float64(period))
		}
	}
	return out
}

// EMA returns the exponential average seeded with the SMA of the first
// window, one value per full window.
func EMA(prices []float64, period int) []float64 {
	if period <= 0 || len(prices) < period {
		return nil
	}
	seed := SMA(prices[:period], period)
	if seed == nil {
		return nil
	}

	k := 2.0 / float64(period+1)
	out := make([]float64, 0, len(prices)-period+1)
	ema := seed[0]
	out = append(out, ema)
	for _, p := range prices[period:] {
		ema += (p - ema) * k
		out = append(out, ema)
	}
	return out
}

// Distance is the last price minus the last average value.
func Distance(prices, avg []float64) (float64, bool) {
	if len(prices) == 0 || len(avg) == 0 {
		return 0, false
	}
	return prices[len(prices)-1] - avg[len(avg)-1], true
}

// Slope is the change between the last two values of series.
func Slope(series []float64) (float64, bool) {
	if len(series) < 2 {
		return 0, false
	}
	return series[len(series)-1] - series[len(series)-2], true
}
