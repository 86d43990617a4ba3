package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/newthinker/turtle/internal/collector"
	"github.com/newthinker/turtle/internal/config"
	"github.com/newthinker/turtle/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

// seedMarket writes 19 rising days followed by a crash on day 20.
func seedMarket(t *testing.T, path string) {
	t.Helper()
	db, err := collector.OpenSQLite(path)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	var (
		bars  []core.DailyBar
		dates []time.Time
	)
	for k := 1; k <= 19; k++ {
		f := float64(k)
		d := start.AddDate(0, 0, k-1)
		dates = append(dates, d)
		bars = append(bars, core.DailyBar{
			Instrument: "600000.SH", Date: d,
			Open: 9.5 + f, High: 10.5 + f, Low: 9 + f, Close: 10 + f, Volume: 1000,
		})
	}
	crash := start.AddDate(0, 0, 19)
	dates = append(dates, crash)
	bars = append(bars, core.DailyBar{
		Instrument: "600000.SH", Date: crash,
		Open: 15, High: 15.5, Low: 5, Close: 6, Volume: 5000,
	})

	require.NoError(t, db.SaveInstruments(ctx, "600000.SH"))
	require.NoError(t, db.SaveBars(ctx, bars...))
	require.NoError(t, db.SaveCalendar(ctx, true, dates...))
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Defaults()
	cfg.Data.Path = filepath.Join(dir, "market.db")
	cfg.Journal.Path = filepath.Join(dir, "journal.db")
	cfg.Report.Enabled = true
	cfg.Report.Path = filepath.Join(dir, "reports")
	cfg.Metrics.Textfile = filepath.Join(dir, "turtle.prom")

	cfg.Backtest.From = "2024-03-01"
	cfg.Backtest.To = "2024-03-20"
	cfg.Backtest.All = true
	cfg.Capital.Use = true
	cfg.Strategy.BreakOpenDay = 3
	cfg.Strategy.BreakCloseDay = 2
	cfg.Strategy.FilterDay = 5

	seedMarket(t, cfg.Data.Path)
	return cfg
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := config.Defaults()
	cfg.Journal.Driver = "postgres"

	_, err := New(cfg, nil)
	assert.ErrorIs(t, err, core.ErrConfigInvalid)
}

func TestApp_Run(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	rc, err := cfg.RunConfig()
	require.NoError(t, err)

	ctx := context.Background()
	res, err := a.Run(ctx, rc)
	require.NoError(t, err)
	require.Empty(t, res.Failed)

	require.Len(t, res.Trades, 1)
	assert.True(t, res.Trades[0].IsClosed())
	assert.Equal(t, core.DirectionLong, res.Trades[0].Direction)
	assert.Equal(t, 1, res.Summary.Closes)

	// journal
	events, err := a.Trades(ctx, res.RunID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, core.ActionOpen, events[0].Action)
	assert.Equal(t, core.ActionClose, events[1].Action)

	runs, err := a.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, res.RunID, runs[0].ID)

	// archive
	archived, err := a.Report(ctx, res.RunID)
	require.NoError(t, err)
	assert.Equal(t, res.RunID, archived.RunID)
	assert.Len(t, archived.Trades, 1)

	// metrics
	data, err := os.ReadFile(cfg.Metrics.Textfile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "turtle_runs_total")
}

func TestApp_JournalSurvivesRestart(t *testing.T) {
	cfg := testConfig(t)
	rc, err := cfg.RunConfig()
	require.NoError(t, err)
	ctx := context.Background()

	a, err := New(cfg, nil)
	require.NoError(t, err)
	res, err := a.Run(ctx, rc)
	require.NoError(t, err)
	require.NoError(t, a.Close())

	b, err := New(cfg, nil)
	require.NoError(t, err)
	defer b.Close()

	events, err := b.Trades(ctx, res.RunID)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestApp_MemoryJournalWithoutReports(t *testing.T) {
	cfg := testConfig(t)
	cfg.Journal.Driver = "memory"
	cfg.Report.Enabled = false

	a, err := New(cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	rc, err := cfg.RunConfig()
	require.NoError(t, err)
	res, err := a.Run(context.Background(), rc)
	require.NoError(t, err)

	events, err := a.Trades(context.Background(), res.RunID)
	require.NoError(t, err)
	assert.Len(t, events, 2)

	_, err = a.Report(context.Background(), res.RunID)
	assert.ErrorIs(t, err, core.ErrConfigMissing)
}

func TestApp_NotifiesWebhook(t *testing.T) {
	var got struct {
		Type string `json:"type"`
		Run  struct {
			RunID      string `json:"run_id"`
			Status     string `json:"status"`
			Trades     int    `json:"trades"`
			ReportPath string `json:"report_path"`
		} `json:"run"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	cfg := testConfig(t)
	cfg.Notify.Webhook.URL = srv.URL

	a, err := New(cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	rc, err := cfg.RunConfig()
	require.NoError(t, err)
	res, err := a.Run(context.Background(), rc)
	require.NoError(t, err)

	assert.Equal(t, "run_finished", got.Type)
	assert.Equal(t, res.RunID, got.Run.RunID)
	assert.Equal(t, "ok", got.Run.Status)
	assert.Equal(t, 1, got.Run.Trades)
	assert.Equal(t, "runs/"+res.RunID+"/report.json", got.Run.ReportPath)
}
