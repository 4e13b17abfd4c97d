// Package metrics exposes copy-trading counters to prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/starsarenaorg/arena-perps-agent-cli/pkg/copytrade"
)

const namespace = "copytrader"

// Metrics implements copytrade.Metrics on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	fillsReceived   *prometheus.CounterVec
	fillsIgnored    *prometheus.CounterVec
	tradesSkipped   *prometheus.CounterVec
	tradesExecuted  *prometheus.CounterVec
	tradesFailed    *prometheus.CounterVec
	reconnects      prometheus.Counter
	reconnectDelays prometheus.Histogram
}

var _ copytrade.Metrics = (*Metrics)(nil)

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		fillsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fills_received_total",
			Help:      "fills delivered by the observed account stream",
		}, []string{"coin"}),
		fillsIgnored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fills_ignored_total",
			Help:      "fills dropped because the coin was held before startup",
		}, []string{"coin"}),
		tradesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trades_skipped_total",
			Help:      "fills not mirrored, by reason",
		}, []string{"reason"}),
		tradesExecuted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trades_executed_total",
			Help:      "mirrored orders accepted by the execution backend",
		}, []string{"action", "coin"}),
		tradesFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trades_failed_total",
			Help:      "mirroring attempts that failed, by reason",
		}, []string{"reason"}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_reconnects_total",
			Help:      "websocket reconnect attempts",
		}),
		reconnectDelays: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stream_reconnect_delay_seconds",
			Help:      "backoff applied before each reconnect attempt",
			Buckets:   []float64{1, 2, 4, 8, 16, 30},
		}),
	}
	m.registry.MustRegister(
		m.fillsReceived, m.fillsIgnored, m.tradesSkipped,
		m.tradesExecuted, m.tradesFailed, m.reconnects, m.reconnectDelays,
		collectors.NewGoCollector(),
	)
	return m
}

func (m *Metrics) FillReceived(coin string) { m.fillsReceived.WithLabelValues(coin).Inc() }

func (m *Metrics) FillIgnored(coin string) { m.fillsIgnored.WithLabelValues(coin).Inc() }

func (m *Metrics) TradeSkipped(reason string) { m.tradesSkipped.WithLabelValues(reason).Inc() }

func (m *Metrics) TradeExecuted(action copytrade.Action, coin string) {
	m.tradesExecuted.WithLabelValues(string(action), coin).Inc()
}

func (m *Metrics) TradeFailed(reason string) { m.tradesFailed.WithLabelValues(reason).Inc() }

// StreamReconnect matches the stream subscriber reconnect hook.
func (m *Metrics) StreamReconnect(_ int, delay time.Duration) {
	m.reconnects.Inc()
	m.reconnectDelays.Observe(delay.Seconds())
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
