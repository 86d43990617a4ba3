package backtest

import (
	"math"

	"github.com/shopspring/decimal"
)

// CalculateStats computes performance statistics from trades ordered by exit.
// Open trades count toward TotalTrades and OpenTrades only.
func CalculateStats(trades []Trade) Stats {
	s := Stats{TotalTrades: len(trades)}
	if len(trades) == 0 {
		return s
	}

	var returns []float64
	var holdingDays float64
	grossProfit, grossLoss := decimal.Zero, decimal.Zero
	for _, t := range trades {
		if !t.IsClosed() {
			s.OpenTrades++
			continue
		}
		returns = append(returns, t.Return)
		s.TotalReturn += t.Return
		holdingDays += t.ExitDate.Sub(t.EntryDate).Hours() / 24

		if t.IsWin() {
			s.WinningTrades++
			grossProfit = grossProfit.Add(t.PnL)
		} else {
			s.LosingTrades++
			grossLoss = grossLoss.Add(t.PnL.Neg())
		}
	}

	s.RealizedPnL = grossProfit.Sub(grossLoss)
	closed := len(returns)
	if closed == 0 {
		return s
	}

	s.WinRate = float64(s.WinningTrades) / float64(closed) * 100
	s.TotalReturn *= 100
	s.AvgHoldingDays = holdingDays / float64(closed)
	if grossLoss.IsPositive() {
		s.ProfitFactor = grossProfit.Div(grossLoss).InexactFloat64()
	}
	s.MaxDrawdown = calculateMaxDrawdown(returns) * 100
	s.SharpeRatio = calculateSharpeRatio(returns)
	return s
}

// calculateMaxDrawdown compounds per-trade returns from an equity of 1.0 and
// returns the largest fractional fall from a running peak.
func calculateMaxDrawdown(returns []float64) float64 {
	var maxDD float64
	peak, equity := 1.0, 1.0

	for _, r := range returns {
		equity *= 1 + r
		peak = math.Max(peak, equity)
		maxDD = math.Max(maxDD, (peak-equity)/peak)
	}
	return maxDD
}

// calculateSharpeRatio annualizes the per-trade mean over the sample standard
// deviation, with a zero risk-free rate.
func calculateSharpeRatio(returns []float64) float64 {
	n := float64(len(returns))
	if n < 2 {
		return 0
	}

	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= n

	var ss float64
	for _, r := range returns {
		ss += (r - mean) * (r - mean)
	}
	// Identical returns leave rounding residue rather than an exact zero.
	stdDev := math.Sqrt(ss / (n - 1))
	if stdDev < 1e-12*math.Max(1, math.Abs(mean)) {
		return 0
	}

	const periods = 252
	return mean / stdDev * math.Sqrt(periods)
}
