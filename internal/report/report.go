// Package report archives finished backtest results as JSON documents.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/newthinker/turtle/internal/backtest"
	"github.com/newthinker/turtle/internal/core"
	"github.com/newthinker/turtle/internal/storage/archive"
	"go.uber.org/zap"
)

const (
	runsPrefix = "runs"
	reportFile = "report.json"
)

// Writer stores one report per run under runs/<run-id>/report.json.
type Writer struct {
	store  archive.Storage
	logger *zap.Logger
}

// NewWriter creates a report writer on top of an archive backend.
func NewWriter(store archive.Storage, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{store: store, logger: logger.Named("report")}
}

// Path returns the archive path of a run's report.
func Path(runID string) string {
	return path.Join(runsPrefix, runID, reportFile)
}

// Write archives res and returns the path it was stored at.
func (w *Writer) Write(ctx context.Context, res *backtest.Result) (string, error) {
	if res == nil || res.RunID == "" {
		return "", core.WrapError(core.ErrArchiveFailed, fmt.Errorf("result has no run id"))
	}

	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", core.WrapError(core.ErrArchiveFailed, err)
	}

	p := Path(res.RunID)
	if err := w.store.Write(ctx, p, data); err != nil {
		return "", core.WrapError(core.ErrArchiveFailed, fmt.Errorf("write %s: %w", p, err))
	}

	w.logger.Info("report archived",
		zap.String("run_id", res.RunID),
		zap.String("path", p),
		zap.Int("bytes", len(data)),
	)
	return p, nil
}

// Load reads a run's archived report back.
func (w *Writer) Load(ctx context.Context, runID string) (*backtest.Result, error) {
	data, err := w.store.Read(ctx, Path(runID))
	if err != nil {
		return nil, err
	}

	var res backtest.Result
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("decode report %s: %w", runID, err)
	}
	return &res, nil
}

// Runs lists the ids of archived runs, oldest first.
// Run ids are ULIDs, so lexical order is chronological.
func (w *Writer) Runs(ctx context.Context) ([]string, error) {
	paths, err := w.store.List(ctx, runsPrefix)
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, p := range paths {
		dir, file := path.Split(p)
		if file != reportFile {
			continue
		}
		ids = append(ids, path.Base(strings.TrimSuffix(dir, "/")))
	}
	sort.Strings(ids)
	return ids, nil
}
