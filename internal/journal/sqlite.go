package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/newthinker/turtle/internal/core"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

var (
	_ Recorder    = (*SQLite)(nil)
	_ RunRecorder = (*SQLite)(nil)
)

// SQLite is a recorder backed by a SQLite file.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the journal at path.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, core.WrapError(core.ErrJournalFailed, err)
	}
	// simulators record concurrently; a single writer avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, core.WrapError(core.ErrJournalFailed, fmt.Errorf("applying schema: %w", err))
	}
	return &SQLite{db: db}, nil
}

// Close closes the database
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Record implements Recorder
func (s *SQLite) Record(ctx context.Context, ev core.TradeEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trade_events
		(id, run_id, instrument, action, direction, trade_date, price, volume, entry_price, entry_date, pnl)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.RunID, ev.Instrument, string(ev.Action), string(ev.Direction),
		ev.Date.Format(core.DateLayout), ev.Price.String(), ev.Volume.String(),
		ev.EntryPrice.String(), ev.EntryDate.Format(core.DateLayout), ev.PnL.String(),
	)
	if err != nil {
		return core.WrapError(core.ErrJournalFailed, err)
	}
	return nil
}

// Trades implements Recorder
func (s *SQLite) Trades(ctx context.Context, runID string) ([]core.TradeEvent, error) {
	return s.query(ctx, `
		SELECT id, run_id, instrument, action, direction, trade_date, price, volume, entry_price, entry_date, pnl
		FROM trade_events WHERE run_id = ?`, runID)
}

// Summarize implements Recorder
func (s *SQLite) Summarize(ctx context.Context, runID, instrument string) (Summary, error) {
	events, err := s.query(ctx, `
		SELECT id, run_id, instrument, action, direction, trade_date, price, volume, entry_price, entry_date, pnl
		FROM trade_events WHERE run_id = ? AND instrument = ?`, runID, instrument)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(instrument, events), nil
}

// SummarizeRun implements Recorder
func (s *SQLite) SummarizeRun(ctx context.Context, runID string) (Summary, error) {
	events, err := s.Trades(ctx, runID)
	if err != nil {
		return Summary{}, err
	}
	return Summarize("", events), nil
}

// RecordRun implements RunRecorder
func (s *SQLite) RecordRun(ctx context.Context, run RunRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs
		(id, started_at, date_from, date_to, instruments, status, final_capital)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.UTC().Format(time.RFC3339Nano), run.From.Format(core.DateLayout), run.To.Format(core.DateLayout),
		run.Instruments, run.Status, run.FinalCapital.String(),
	)
	if err != nil {
		return core.WrapError(core.ErrJournalFailed, err)
	}
	return nil
}

// Runs implements RunRecorder
func (s *SQLite) Runs(ctx context.Context) ([]RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, date_from, date_to, instruments, status, final_capital
		FROM runs ORDER BY id DESC`)
	if err != nil {
		return nil, core.WrapError(core.ErrJournalFailed, err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var (
			r                       RunRecord
			started, from, to, cash string
		)
		if err := rows.Scan(&r.ID, &started, &from, &to, &r.Instruments, &r.Status, &cash); err != nil {
			return nil, core.WrapError(core.ErrJournalFailed, err)
		}
		if r.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, core.WrapError(core.ErrJournalFailed, err)
		}
		if r.From, err = time.Parse(core.DateLayout, from); err != nil {
			return nil, core.WrapError(core.ErrJournalFailed, err)
		}
		if r.To, err = time.Parse(core.DateLayout, to); err != nil {
			return nil, core.WrapError(core.ErrJournalFailed, err)
		}
		if r.FinalCapital, err = decimal.NewFromString(cash); err != nil {
			return nil, core.WrapError(core.ErrJournalFailed, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, core.WrapError(core.ErrJournalFailed, err)
	}
	return out, nil
}

func (s *SQLite) query(ctx context.Context, q string, args ...any) ([]core.TradeEvent, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, core.WrapError(core.ErrJournalFailed, err)
	}
	defer rows.Close()

	var out []core.TradeEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, core.WrapError(core.ErrJournalFailed, err)
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, core.WrapError(core.ErrJournalFailed, err)
	}

	SortEvents(out)
	return out, nil
}

func scanEvent(rows *sql.Rows) (core.TradeEvent, error) {
	var (
		ev                                 core.TradeEvent
		action, direction, date, entryDate string
		price, volume, entryPrice, pnl     string
		err                                error
	)
	if err = rows.Scan(&ev.ID, &ev.RunID, &ev.Instrument, &action, &direction,
		&date, &price, &volume, &entryPrice, &entryDate, &pnl); err != nil {
		return ev, err
	}
	ev.Action = core.Action(action)
	ev.Direction = core.Direction(direction)

	if ev.Date, err = time.Parse(core.DateLayout, date); err != nil {
		return ev, err
	}
	if ev.EntryDate, err = time.Parse(core.DateLayout, entryDate); err != nil {
		return ev, err
	}
	for _, f := range []struct {
		dst *decimal.Decimal
		src string
	}{{&ev.Price, price}, {&ev.Volume, volume}, {&ev.EntryPrice, entryPrice}, {&ev.PnL, pnl}} {
		if *f.dst, err = decimal.NewFromString(f.src); err != nil {
			return ev, fmt.Errorf("decimal %q: %w", f.src, err)
		}
	}
	return ev, nil
}
