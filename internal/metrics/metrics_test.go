package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

func TestObserve(t *testing.T) {
	m := New()

	m.ObserveCycle("ok", 120*time.Millisecond)
	m.ObserveCycle("skipped", 0)
	m.ObserveOutcomes([]domain.QuoteOutcome{
		{Venue: "binance", Status: domain.QuoteOk},
		{Venue: "bybit", Status: domain.QuoteDegraded},
		{Venue: "kucoin", Status: domain.QuoteUnavailable},
	})
	m.ObserveSignal(domain.Signal{Symbol: "BTC/USDT", NetSpreadBps: 42})
	m.ObserveTrade(domain.TradeResult{Mode: domain.TradeModeLive, ErrorKind: domain.KindInsufficientBalance})
	m.ObserveTrade(domain.TradeResult{Mode: domain.TradeModePaper})
	m.SetRunning(true)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.cycles.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cycles.WithLabelValues("skipped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.quotes.WithLabelValues("bybit", "degraded")))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.bestSpread.WithLabelValues("BTC/USDT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.trades.WithLabelValues("live", "insufficient_balance")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.trades.WithLabelValues("paper", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.running))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveSignal(domain.Signal{Symbol: "ETH/USDT", NetSpreadBps: 10})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `arbscanner_signals_total{symbol="ETH/USDT"} 1`)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveCycle("ok", time.Second)
	m.ObserveSignal(domain.Signal{})
	m.SetRunning(true)
	assert.Nil(t, m.Registry())
}
