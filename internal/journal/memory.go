package journal

import (
	"context"
	"sort"
	"sync"

	"github.com/newthinker/turtle/internal/core"
)

var (
	_ Recorder    = (*Memory)(nil)
	_ RunRecorder = (*Memory)(nil)
)

// Memory is an in-process recorder.
type Memory struct {
	mu     sync.RWMutex
	events map[string][]core.TradeEvent
	runs   map[string]RunRecord
}

// NewMemory creates an empty in-memory journal
func NewMemory() *Memory {
	return &Memory{
		events: make(map[string][]core.TradeEvent),
		runs:   make(map[string]RunRecord),
	}
}

// Record implements Recorder
func (m *Memory) Record(_ context.Context, ev core.TradeEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[ev.RunID] = append(m.events[ev.RunID], ev)
	return nil
}

// Trades returns a sorted copy of the run's events.
func (m *Memory) Trades(_ context.Context, runID string) ([]core.TradeEvent, error) {
	m.mu.RLock()
	out := make([]core.TradeEvent, len(m.events[runID]))
	copy(out, m.events[runID])
	m.mu.RUnlock()

	SortEvents(out)
	return out, nil
}

// Summarize implements Recorder
func (m *Memory) Summarize(ctx context.Context, runID, instrument string) (Summary, error) {
	events, err := m.Trades(ctx, runID)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(instrument, filterInstrument(events, instrument)), nil
}

// SummarizeRun implements Recorder
func (m *Memory) SummarizeRun(ctx context.Context, runID string) (Summary, error) {
	events, err := m.Trades(ctx, runID)
	if err != nil {
		return Summary{}, err
	}
	return Summarize("", events), nil
}

// RecordRun implements RunRecorder
func (m *Memory) RecordRun(_ context.Context, run RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = run
	return nil
}

// Runs returns recorded runs, newest first.
func (m *Memory) Runs(_ context.Context) ([]RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]RunRecord, 0, len(m.runs))
	for _, r := range m.runs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}
