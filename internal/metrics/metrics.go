// Package metrics exposes scanner counters and timings in Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

const namespace = "arbscanner"

// Metrics owns a private registry so tests and multiple instances in one
// process do not collide. A nil *Metrics records nothing.
type Metrics struct {
	reg *prometheus.Registry

	cycles        *prometheus.CounterVec
	cycleDuration prometheus.Histogram
	quotes        *prometheus.CounterVec
	signals       *prometheus.CounterVec
	bestSpread    *prometheus.GaugeVec
	trades        *prometheus.CounterVec
	running       prometheus.Gauge
}

// New registers every collector on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		cycles: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scan_cycles_total",
			Help:      "Scan cycles by result (ok, error, skipped).",
		}, []string{"result"}),
		cycleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scan_cycle_duration_seconds",
			Help:      "Wall time of one scan cycle across all symbols.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		quotes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quotes_total",
			Help:      "Per-venue quote outcomes by status (ok, degraded, unavailable).",
		}, []string{"venue", "status"}),
		signals: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signals_total",
			Help:      "Signals emitted by symbol.",
		}, []string{"symbol"}),
		bestSpread: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "best_net_spread_bps",
			Help:      "Best net spread of the latest signal per symbol.",
		}, []string{"symbol"}),
		trades: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trades_total",
			Help:      "Executions by mode and result (ok or error kind).",
		}, []string{"mode", "result"}),
		running: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "running",
			Help:      "1 while the scan loop is enabled.",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

// ObserveCycle records one cycle. result is "ok", "error" or "skipped".
func (m *Metrics) ObserveCycle(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(result).Inc()
	if result != "skipped" {
		m.cycleDuration.Observe(d.Seconds())
	}
}

// ObserveOutcomes counts each venue's quote status.
func (m *Metrics) ObserveOutcomes(outcomes []domain.QuoteOutcome) {
	if m == nil {
		return
	}
	for _, o := range outcomes {
		m.quotes.WithLabelValues(o.Venue, string(o.Status)).Inc()
	}
}

// ObserveSignal counts sig and records its spread.
func (m *Metrics) ObserveSignal(sig domain.Signal) {
	if m == nil {
		return
	}
	m.signals.WithLabelValues(sig.Symbol).Inc()
	m.bestSpread.WithLabelValues(sig.Symbol).Set(sig.NetSpreadBps)
}

// ObserveTrade counts an execution outcome.
func (m *Metrics) ObserveTrade(res domain.TradeResult) {
	if m == nil {
		return
	}
	result := "ok"
	if !res.OK() {
		result = string(res.ErrorKind)
	}
	m.trades.WithLabelValues(string(res.Mode), result).Inc()
}

// SetRunning mirrors the settings' running flag.
func (m *Metrics) SetRunning(on bool) {
	if m == nil {
		return
	}
	if on {
		m.running.Set(1)
	} else {
		m.running.Set(0)
	}
}
