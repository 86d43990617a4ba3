package simulator_test

import (
	"context"
	"testing"
	"time"

	"github.com/newthinker/turtle/internal/collector"
	"github.com/newthinker/turtle/internal/core"
	"github.com/newthinker/turtle/internal/decision"
	"github.com/newthinker/turtle/internal/filter"
	"github.com/newthinker/turtle/internal/journal"
	"github.com/newthinker/turtle/internal/ledger"
	"github.com/newthinker/turtle/internal/simulator"
	"github.com/newthinker/turtle/internal/sizing"
	"github.com/newthinker/turtle/internal/strategy"
	"github.com/newthinker/turtle/internal/strategy/breakout"
	"github.com/newthinker/turtle/internal/strategy/exit"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var d1 = time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)

func day(n int) time.Time { return d1.AddDate(0, 0, n-1) }

func week(d4Low float64) *collector.Memory {
	m := collector.NewMemory()
	m.AddBars(
		core.DailyBar{Instrument: "AAA", Date: day(1), Open: 10, High: 11, Low: 9, Close: 10},
		core.DailyBar{Instrument: "AAA", Date: day(2), Open: 10, High: 11.5, Low: 9.5, Close: 11},
		core.DailyBar{Instrument: "AAA", Date: day(3), Open: 11, High: 12, Low: 10, Close: 11.5},
		core.DailyBar{Instrument: "AAA", Date: day(4), Open: 11.8, High: 13, Low: d4Low, Close: 12.8},
		core.DailyBar{Instrument: "AAA", Date: day(5), Open: 11, High: 11.2, Low: 9, Close: 9.5},
	)
	return m
}

type fixture struct {
	src      *collector.Memory
	ledger   *ledger.Ledger
	recorder *journal.Memory
	trend    int64
	closer   strategy.CloseStrategy
	closeDay int
	capital  int64
	today    time.Time
	logger   *zap.Logger
	calendar collector.Calendar
	decider  simulator.Decider
}

func newFixture() *fixture {
	return &fixture{
		src:      week(11.5),
		recorder: journal.NewMemory(),
		trend:    1,
		closer:   exit.NewReversal(),
		closeDay: 2,
		capital:  100000,
	}
}

func (f *fixture) build() *simulator.Simulator {
	f.ledger = ledger.New(ledger.Config{
		InitialCapital: decimal.NewFromInt(f.capital),
		RiskParameter:  decimal.RequireFromString("0.01"),
	}, nil)

	decider := f.decider
	if decider == nil {
		decider = decision.New(decision.Config{
			Open:          breakout.NewIntraday(),
			Close:         f.closer,
			Filter:        filter.Constant{V: decimal.NewFromInt(f.trend)},
			Sizer:         sizing.Fixed{Unit: decimal.NewFromInt(100)},
			BreakOpenDay:  3,
			BreakCloseDay: f.closeDay,
			FilterDay:     5,
		}, f.src, f.ledger)
	}
	calendar := f.calendar
	if calendar == nil {
		calendar = f.src
	}

	return simulator.New(simulator.Config{
		RunID:      "run-1",
		Start:      day(1),
		End:        day(5),
		UseCapital: true,
		Today:      f.today,
	}, simulator.Deps{
		Data:     f.src,
		Calendar: calendar,
		Decider:  decider,
		Ledger:   f.ledger,
		Recorder: f.recorder,
		Logger:   f.logger,
	})
}

func trades(t *testing.T, f *fixture) []core.TradeEvent {
	t.Helper()
	evs, err := f.recorder.Trades(context.Background(), "run-1")
	require.NoError(t, err)
	return evs
}

func TestSimulator_EndToEnd(t *testing.T) {
	f := newFixture()

	out, err := f.build().Run(context.Background(), "AAA")
	require.NoError(t, err)

	evs := trades(t, f)
	require.Len(t, evs, 2)

	open, closed := evs[0], evs[1]
	assert.Equal(t, core.ActionOpen, open.Action)
	assert.Equal(t, core.DirectionLong, open.Direction)
	assert.True(t, open.Date.Equal(day(4)))
	assert.True(t, open.Price.Equal(decimal.NewFromInt(12)))
	assert.True(t, open.Volume.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, "run-1", open.RunID)
	assert.Len(t, open.ID, 26)

	assert.Equal(t, core.ActionClose, closed.Action)
	assert.True(t, closed.Date.Equal(day(5)))
	assert.True(t, closed.Price.Equal(decimal.RequireFromString("9.5")))
	assert.True(t, closed.PnL.Equal(decimal.NewFromInt(-250)))

	assert.Equal(t, "AAA", out.Instrument)
	assert.Equal(t, 5, out.TradingDays)
	assert.Equal(t, 0, out.SkippedDays)
	assert.Equal(t, 1, out.Summary.Opens)
	assert.Equal(t, 1, out.Summary.Closes)
	assert.True(t, out.Summary.RealizedPnL.Equal(decimal.NewFromInt(-250)))

	snap := f.ledger.Snapshot()
	assert.True(t, snap.TotalCapital.Equal(decimal.NewFromInt(99750)))
	assert.True(t, snap.FrozenCapital.IsZero())
	assert.Empty(t, snap.Positions)
}

func TestSimulator_NoSameDayRoundTrip(t *testing.T) {
	f := newFixture()
	// d4 opens at 12 and also trades below the 3-day low of 9
	f.src = week(8)
	f.closer = exit.NewChannel()
	f.closeDay = 3

	_, err := f.build().Run(context.Background(), "AAA")
	require.NoError(t, err)

	evs := trades(t, f)
	require.Len(t, evs, 1, "position must not close on its open day")
	assert.Equal(t, core.ActionOpen, evs[0].Action)

	pos, held := f.ledger.Position("AAA")
	require.True(t, held, "position survives d5")
	assert.True(t, pos.EntryDate.Equal(day(4)))
}

func TestSimulator_ZeroTrendNeverOpens(t *testing.T) {
	f := newFixture()
	f.trend = 0

	out, err := f.build().Run(context.Background(), "AAA")
	require.NoError(t, err)
	assert.Empty(t, trades(t, f))
	assert.Equal(t, 0, out.Summary.Opens)
}

func TestSimulator_InsufficientCapitalRejects(t *testing.T) {
	f := newFixture()
	f.capital = 1000 // 12 × 100 = 1200 needed

	out, err := f.build().Run(context.Background(), "AAA")
	require.NoError(t, err)
	assert.Empty(t, trades(t, f))
	assert.Equal(t, 1, out.RejectedOpens)
	assert.True(t, f.ledger.TotalCapital().Equal(decimal.NewFromInt(1000)))
}

type flakyCalendar struct {
	collector.Calendar
	bad time.Time
}

func (c flakyCalendar) IsTradingDay(ctx context.Context, date time.Time) (bool, error) {
	if date.Equal(c.bad) {
		return false, core.ErrCollectorFailed
	}
	return c.Calendar.IsTradingDay(ctx, date)
}

func TestSimulator_CollaboratorFailureSkipsDay(t *testing.T) {
	f := newFixture()
	f.calendar = flakyCalendar{Calendar: f.src, bad: day(2)}

	out, err := f.build().Run(context.Background(), "AAA")
	require.NoError(t, err)
	assert.Equal(t, 1, out.SkippedDays)
	assert.Equal(t, 4, out.TradingDays)
	assert.Len(t, trades(t, f), 2, "later days still trade")
}

func TestSimulator_InvalidBarSkipsDay(t *testing.T) {
	f := newFixture()
	// d5 would close the position at 9.5; a zero close keeps it away from the strategies
	f.src.AddBars(core.DailyBar{Instrument: "AAA", Date: day(5), Open: 11, High: 11.2, Low: 9, Close: 0})

	out, err := f.build().Run(context.Background(), "AAA")
	require.NoError(t, err)
	assert.Equal(t, 1, out.SkippedDays)
	assert.Equal(t, 4, out.TradingDays)

	evs := trades(t, f)
	require.Len(t, evs, 1)
	assert.Equal(t, core.ActionOpen, evs[0].Action)
	_, held := f.ledger.Position("AAA")
	assert.True(t, held)
}

type corruptDecider struct{}

func (corruptDecider) Open(context.Context, core.DailyBar) (*decision.OpenDecision, error) {
	return nil, core.ErrUnknownDirection
}

func (corruptDecider) Close(context.Context, core.DailyBar, core.Position) (*decision.CloseDecision, error) {
	return nil, nil
}

func TestSimulator_DataIntegrityAborts(t *testing.T) {
	f := newFixture()
	f.decider = corruptDecider{}

	out, err := f.build().Run(context.Background(), "AAA")
	require.Error(t, err)
	assert.True(t, core.IsDataIntegrity(err))
	assert.Equal(t, 1, out.TradingDays, "stopped on the first trading day")
}

func TestSimulator_ContextCancelled(t *testing.T) {
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.build().Run(ctx, "AAA")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSimulator_TodayLogger(t *testing.T) {
	f := newFixture()
	obs, logs := observer.New(zapcore.InfoLevel)
	f.logger = zap.New(obs)
	f.today = day(5).Add(10 * time.Hour)

	_, err := f.build().Run(context.Background(), "AAA")
	require.NoError(t, err)

	today := logs.FilterLoggerName("today").All()
	require.Len(t, today, 1)
	assert.Equal(t, "close", today[0].ContextMap()["action"])
	assert.Len(t, logs.FilterLoggerName("trade").All(), 2)
}

func TestSimulator_Step_NonTradingDay(t *testing.T) {
	f := newFixture()
	sim := f.build()
	var out simulator.Outcome

	// Saturday: weekday calendar says closed
	require.NoError(t, sim.Step(context.Background(), "AAA", day(6), &out))
	assert.Equal(t, 0, out.TradingDays)
	assert.Equal(t, 0, out.SkippedDays)
}
