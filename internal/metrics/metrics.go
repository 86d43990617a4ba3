package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	runsTotal        *prometheus.CounterVec
	runDuration      prometheus.Histogram
	instrumentsTotal *prometheus.CounterVec
	tradesTotal      *prometheus.CounterVec
	rejectedOpens    prometheus.Counter
	skippedDays      prometheus.Counter
	capital          *prometheus.GaugeVec
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{Registry: reg}

	r.runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "turtle_runs_total",
			Help: "Total number of backtest runs",
		},
		[]string{"status"},
	)
	r.runDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "turtle_run_duration_seconds",
			Help:    "Backtest run duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 900},
		},
	)
	r.instrumentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "turtle_instruments_total",
			Help: "Instruments simulated, by outcome",
		},
		[]string{"status"},
	)
	r.tradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "turtle_trades_total",
			Help: "Trade events applied to the ledger",
		},
		[]string{"action", "direction"},
	)
	r.rejectedOpens = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "turtle_rejected_opens_total",
			Help: "Opens rejected for insufficient usable capital",
		},
	)
	r.skippedDays = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "turtle_skipped_days_total",
			Help: "Instrument days skipped after a collaborator failure",
		},
	)
	r.capital = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "turtle_capital",
			Help: "Ledger capital at the end of the last run",
		},
		[]string{"kind"},
	)

	reg.MustRegister(r.runsTotal)
	reg.MustRegister(r.runDuration)
	reg.MustRegister(r.instrumentsTotal)
	reg.MustRegister(r.tradesTotal)
	reg.MustRegister(r.rejectedOpens)
	reg.MustRegister(r.skippedDays)
	reg.MustRegister(r.capital)

	return r
}

// RecordRun records a run completion.
func (r *Registry) RecordRun(status string, duration float64) {
	r.runsTotal.WithLabelValues(status).Inc()
	r.runDuration.Observe(duration)
}

// RecordInstrument records one simulated instrument ("ok" or "failed").
func (r *Registry) RecordInstrument(status string) {
	r.instrumentsTotal.WithLabelValues(status).Inc()
}

// RecordTrade records an applied open or close.
func (r *Registry) RecordTrade(action, direction string) {
	r.tradesTotal.WithLabelValues(action, direction).Inc()
}

// RecordRejectedOpen records an open refused by the ledger.
func (r *Registry) RecordRejectedOpen() {
	r.rejectedOpens.Inc()
}

// RecordSkippedDay records a day skipped after a data error.
func (r *Registry) RecordSkippedDay() {
	r.skippedDays.Inc()
}

// SetCapital publishes the ledger's closing figures.
func (r *Registry) SetCapital(total, frozen, usable float64) {
	r.capital.WithLabelValues("total").Set(total)
	r.capital.WithLabelValues("frozen").Set(frozen)
	r.capital.WithLabelValues("usable").Set(usable)
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.Registry, promhttp.HandlerOpts{})
}

// WriteTextfile writes the registry for the node_exporter textfile collector.
func (r *Registry) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.Registry)
}
