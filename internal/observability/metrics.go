// Package observability exposes backtest progress as Prometheus metrics.
package observability

import (
	"net/http"

	"PerpTradeBot/internal/operations/backtest"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every backtest metric, labelled by run
type Metrics struct {
	TicksProcessed *prometheus.CounterVec
	Balance        *prometheus.GaugeVec
	OpenPositions  *prometheus.GaugeVec
	UnrealizedPnL  *prometheus.GaugeVec
	MaxDrawdown    *prometheus.GaugeVec
	Fills          *prometheus.GaugeVec
	WinRate        *prometheus.GaugeVec
	Progress       *prometheus.GaugeVec

	RunsTotal   *prometheus.CounterVec
	RunDuration *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// NewMetrics registers all metrics on reg
func NewMetrics(namespace string, reg *prometheus.Registry) *Metrics {
	if namespace == "" {
		namespace = "perp_backtest"
	}
	factory := promauto.With(reg)

	return &Metrics{
		TicksProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_processed_total",
			Help:      "Simulation ticks processed",
		}, []string{"run"}),
		Balance: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "balance_usd",
			Help:      "Current simulated balance",
		}, []string{"run"}),
		OpenPositions: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_positions",
			Help:      "Currently open simulated positions",
		}, []string{"run"}),
		UnrealizedPnL: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "unrealized_pnl_usd",
			Help:      "Gross unrealized PnL of open simulated positions",
		}, []string{"run"}),
		MaxDrawdown: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "max_drawdown_ratio",
			Help:      "Maximum drawdown so far as a fraction of peak balance",
		}, []string{"run"}),
		Fills: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "fills",
			Help:      "Trade records written so far",
		}, []string{"run"}),
		WinRate: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "win_rate_percent",
			Help:      "Share of closed trades that won",
		}, []string{"run"}),
		Progress: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "progress_ratio",
			Help:      "Processed share of the run's ticks",
		}, []string{"run"}),
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Finished backtest runs",
		}, []string{"strategy", "status"}),
		RunDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a backtest run",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"strategy"}),
		gatherer: reg,
	}
}

// Handler serves the registry the metrics were created on
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Reporter returns a progress reporter feeding the gauges of runID
func (m *Metrics) Reporter(runID string) backtest.ProgressReporter {
	lastTick := 0
	return backtest.ProgressFunc(func(p backtest.Progress) {
		if p.Tick > lastTick {
			m.TicksProcessed.WithLabelValues(runID).Add(float64(p.Tick - lastTick))
			lastTick = p.Tick
		}
		m.Balance.WithLabelValues(runID).Set(p.Balance)
		m.OpenPositions.WithLabelValues(runID).Set(float64(p.OpenPositions))
		m.UnrealizedPnL.WithLabelValues(runID).Set(p.UnrealizedPnL)
		m.MaxDrawdown.WithLabelValues(runID).Set(p.MaxDrawdown)
		m.Fills.WithLabelValues(runID).Set(float64(p.Trades))
		m.WinRate.WithLabelValues(runID).Set(p.WinRate)
		if p.TotalTicks > 0 {
			m.Progress.WithLabelValues(runID).Set(float64(p.Tick) / float64(p.TotalTicks))
		}
	})
}

// RecordRun counts a finished run
func (m *Metrics) RecordRun(strategy, status string, seconds float64) {
	m.RunsTotal.WithLabelValues(strategy, status).Inc()
	m.RunDuration.WithLabelValues(strategy).Observe(seconds)
}
