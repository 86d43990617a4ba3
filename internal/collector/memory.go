package collector

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/newthinker/turtle/internal/core"
)

var _ Source = (*Memory)(nil)

// Memory is an in-process Source. Without an explicit trading-day set every
// weekday counts as a trading day.
type Memory struct {
	mu          sync.RWMutex
	bars        map[string][]core.DailyBar
	tradingDays map[time.Time]struct{}
}

// NewMemory creates an empty in-memory source
func NewMemory() *Memory {
	return &Memory{
		bars: make(map[string][]core.DailyBar),
	}
}

// Name returns the source name
func (m *Memory) Name() string { return "memory" }

// Close is a no-op
func (m *Memory) Close() error { return nil }

// AddBars stores bars, replacing any existing bar for the same instrument and day.
func (m *Memory) AddBars(bars ...core.DailyBar) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, b := range bars {
		b.Date = core.Day(b.Date)
		series := m.bars[b.Instrument]
		i := sort.Search(len(series), func(i int) bool { return !series[i].Date.Before(b.Date) })
		if i < len(series) && series[i].Date.Equal(b.Date) {
			series[i] = b
			continue
		}
		series = append(series, core.DailyBar{})
		copy(series[i+1:], series[i:])
		series[i] = b
		m.bars[b.Instrument] = series
	}
}

// SetTradingDays replaces the weekday fallback with an explicit calendar.
func (m *Memory) SetTradingDays(days ...time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tradingDays = make(map[time.Time]struct{}, len(days))
	for _, d := range days {
		m.tradingDays[core.Day(d)] = struct{}{}
	}
}

// DailyBar implements HistoricalData
func (m *Memory) DailyBar(_ context.Context, instrument string, date time.Time) (core.DailyBar, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	date = core.Day(date)
	series := m.bars[instrument]
	i := sort.Search(len(series), func(i int) bool { return !series[i].Date.Before(date) })
	if i < len(series) && series[i].Date.Equal(date) {
		return series[i], true, nil
	}
	return core.DailyBar{}, false, nil
}

// DailyBars implements HistoricalData
func (m *Memory) DailyBars(_ context.Context, instrument string, date time.Time, n int) ([]core.DailyBar, error) {
	if n <= 0 {
		return nil, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	date = core.Day(date)
	series := m.bars[instrument]
	end := sort.Search(len(series), func(i int) bool { return !series[i].Date.Before(date) })
	start := end - n
	if start < 0 {
		start = 0
	}

	out := make([]core.DailyBar, end-start)
	copy(out, series[start:end])
	return out, nil
}

// IsTradingDay implements Calendar
func (m *Memory) IsTradingDay(_ context.Context, date time.Time) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	date = core.Day(date)
	if m.tradingDays == nil {
		wd := date.Weekday()
		return wd != time.Saturday && wd != time.Sunday, nil
	}
	_, ok := m.tradingDays[date]
	return ok, nil
}

// AllInstruments implements ReferenceData, sorted by code.
func (m *Memory) AllInstruments(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, 0, len(m.bars))
	for inst := range m.bars {
		out = append(out, inst)
	}
	sort.Strings(out)
	return out, nil
}
