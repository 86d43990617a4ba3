package journal

import (
	"context"
	"errors"

	"github.com/newthinker/turtle/internal/core"
)

var (
	_ Recorder    = (*Tee)(nil)
	_ RunRecorder = (*Tee)(nil)
)

// Tee records to every recorder and reads from the first.
type Tee struct {
	recorders []Recorder
}

// NewTee fans writes out to recorders; at least one is required.
func NewTee(primary Recorder, others ...Recorder) *Tee {
	return &Tee{recorders: append([]Recorder{primary}, others...)}
}

// Record writes ev to every recorder and joins their errors.
func (t *Tee) Record(ctx context.Context, ev core.TradeEvent) error {
	var errs []error
	for _, r := range t.recorders {
		if err := r.Record(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t *Tee) Trades(ctx context.Context, runID string) ([]core.TradeEvent, error) {
	return t.recorders[0].Trades(ctx, runID)
}

func (t *Tee) Summarize(ctx context.Context, runID, instrument string) (Summary, error) {
	return t.recorders[0].Summarize(ctx, runID, instrument)
}

func (t *Tee) SummarizeRun(ctx context.Context, runID string) (Summary, error) {
	return t.recorders[0].SummarizeRun(ctx, runID)
}

// RecordRun forwards to every recorder that keeps a run index.
func (t *Tee) RecordRun(ctx context.Context, run RunRecord) error {
	var errs []error
	for _, r := range t.recorders {
		if rr, ok := r.(RunRecorder); ok {
			if err := rr.RecordRun(ctx, run); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Runs reads from the first recorder that keeps a run index.
func (t *Tee) Runs(ctx context.Context) ([]RunRecord, error) {
	for _, r := range t.recorders {
		if rr, ok := r.(RunRecorder); ok {
			return rr.Runs(ctx)
		}
	}
	return nil, nil
}
