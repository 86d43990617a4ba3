package collector

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/newthinker/turtle/internal/core"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Schema is the daily-bar layout read by SQLite. Dates are stored as
// YYYYMMDD text so lexical order matches calendar order.
const Schema = `
CREATE TABLE IF NOT EXISTS instruments (
	code TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	listed INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS daily_bars (
	code TEXT NOT NULL,
	trade_date TEXT NOT NULL,
	open REAL NOT NULL,
	high REAL NOT NULL,
	low REAL NOT NULL,
	close REAL NOT NULL,
	volume REAL NOT NULL DEFAULT 0,
	PRIMARY KEY (code, trade_date)
);

CREATE TABLE IF NOT EXISTS trade_calendar (
	cal_date TEXT PRIMARY KEY,
	is_open INTEGER NOT NULL
);
`

var _ Source = (*SQLite)(nil)

// SQLite serves bars, calendar and universe from a SQLite database.
// A date missing from trade_calendar is not a trading day.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and applies Schema.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, core.WrapError(core.ErrCollectorFailed, err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, core.WrapError(core.ErrCollectorFailed, fmt.Errorf("applying schema: %w", err))
	}
	return &SQLite{db: db}, nil
}

// Name returns the source name
func (s *SQLite) Name() string { return "sqlite" }

// Close closes the underlying database
func (s *SQLite) Close() error { return s.db.Close() }

// DailyBar implements HistoricalData
func (s *SQLite) DailyBar(ctx context.Context, instrument string, date time.Time) (core.DailyBar, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT trade_date, open, high, low, close, volume
		FROM daily_bars WHERE code = ? AND trade_date = ?`,
		instrument, date.Format(core.ShortDateLayout))

	bar, err := scanBar(row, instrument)
	if errors.Is(err, sql.ErrNoRows) {
		return core.DailyBar{}, false, nil
	}
	if err != nil {
		return core.DailyBar{}, false, core.WrapError(core.ErrCollectorFailed, err)
	}
	return bar, true, nil
}

// DailyBars implements HistoricalData
func (s *SQLite) DailyBars(ctx context.Context, instrument string, date time.Time, n int) ([]core.DailyBar, error) {
	if n <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT trade_date, open, high, low, close, volume
		FROM daily_bars WHERE code = ? AND trade_date < ?
		ORDER BY trade_date DESC LIMIT ?`,
		instrument, date.Format(core.ShortDateLayout), n)
	if err != nil {
		return nil, core.WrapError(core.ErrCollectorFailed, err)
	}
	defer rows.Close()

	var newestFirst []core.DailyBar
	for rows.Next() {
		bar, err := scanBar(rows, instrument)
		if err != nil {
			return nil, core.WrapError(core.ErrCollectorFailed, err)
		}
		newestFirst = append(newestFirst, bar)
	}
	if err := rows.Err(); err != nil {
		return nil, core.WrapError(core.ErrCollectorFailed, err)
	}

	out := make([]core.DailyBar, len(newestFirst))
	for i, b := range newestFirst {
		out[len(out)-1-i] = b
	}
	return out, nil
}

// IsTradingDay implements Calendar
func (s *SQLite) IsTradingDay(ctx context.Context, date time.Time) (bool, error) {
	var open int
	err := s.db.QueryRowContext(ctx,
		`SELECT is_open FROM trade_calendar WHERE cal_date = ?`,
		date.Format(core.ShortDateLayout)).Scan(&open)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, core.WrapError(core.ErrCollectorFailed, err)
	}
	return open == 1, nil
}

// AllInstruments implements ReferenceData, listed instruments only.
func (s *SQLite) AllInstruments(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT code FROM instruments WHERE listed = 1 ORDER BY code`)
	if err != nil {
		return nil, core.WrapError(core.ErrCollectorFailed, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, core.WrapError(core.ErrCollectorFailed, err)
		}
		out = append(out, code)
	}
	if err := rows.Err(); err != nil {
		return nil, core.WrapError(core.ErrCollectorFailed, err)
	}
	return out, nil
}

// SaveInstruments upserts listed instruments.
func (s *SQLite) SaveInstruments(ctx context.Context, codes ...string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, code := range codes {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR REPLACE INTO instruments (code, listed) VALUES (?, 1)`, code); err != nil {
				return err
			}
		}
		return nil
	})
}

// SaveBars upserts bars and registers their instruments.
func (s *SQLite) SaveBars(ctx context.Context, bars ...core.DailyBar) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, b := range bars {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO instruments (code, listed) VALUES (?, 1)`, b.Instrument); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT OR REPLACE INTO daily_bars (code, trade_date, open, high, low, close, volume)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				b.Instrument, b.Date.Format(core.ShortDateLayout),
				b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
				return err
			}
		}
		return nil
	})
}

// SaveCalendar records whether the market was open on each date.
func (s *SQLite) SaveCalendar(ctx context.Context, open bool, dates ...time.Time) error {
	flag := 0
	if open {
		flag = 1
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, d := range dates {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR REPLACE INTO trade_calendar (cal_date, is_open) VALUES (?, ?)`,
				d.Format(core.ShortDateLayout), flag); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLite) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return core.WrapError(core.ErrCollectorFailed, err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return core.WrapError(core.ErrCollectorFailed, err)
	}
	if err := tx.Commit(); err != nil {
		return core.WrapError(core.ErrCollectorFailed, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBar(sc scanner, instrument string) (core.DailyBar, error) {
	var (
		date string
		bar  = core.DailyBar{Instrument: instrument}
	)
	if err := sc.Scan(&date, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume); err != nil {
		return core.DailyBar{}, err
	}
	d, err := time.Parse(core.ShortDateLayout, date)
	if err != nil {
		return core.DailyBar{}, fmt.Errorf("bad trade_date %q: %w", date, err)
	}
	bar.Date = d
	return bar, nil
}
