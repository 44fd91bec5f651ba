// internal/metrics/collector.go
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bondswap"

// Collector owns the swap metrics and the registry they live in. Each
// Collector has its own registry so tests and simulations never collide on
// the global one.
type Collector struct {
	registry *prometheus.Registry

	trades        *prometheus.CounterVec
	tradeDuration *prometheus.HistogramVec
	tradePrice    *prometheus.HistogramVec
	aborts        *prometheus.CounterVec
	rpcLatency    *prometheus.HistogramVec
	custody       *prometheus.GaugeVec
}

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		trades: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "trades_total",
				Help:      "Total number of settled trades",
			},
			[]string{"direction", "strategy"},
		),
		tradeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "trade_duration_seconds",
				Help:      "Settlement duration in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
			},
			[]string{"direction"},
		),
		tradePrice: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "trade_price_lamports",
				Help:      "Total price paid or received per trade",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 16),
			},
			[]string{"direction", "strategy"},
		),
		aborts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "trades_aborted_total",
				Help:      "Trades rejected or rolled back, by error kind",
			},
			[]string{"direction", "kind"},
		),
		rpcLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "rpc_latency_seconds",
				Help:      "RPC request latency in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 10),
			},
			[]string{"method", "status"},
		),
		custody: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pool_custody",
				Help:      "Balance held in pool custody",
			},
			[]string{"pool", "account"},
		),
	}

	c.registry.MustRegister(c.trades, c.tradeDuration, c.tradePrice, c.aborts, c.rpcLatency, c.custody)
	return c
}

// Registry exposes the underlying registry for gathering.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the collector in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Reset clears every series.
func (c *Collector) Reset() {
	c.trades.Reset()
	c.tradeDuration.Reset()
	c.tradePrice.Reset()
	c.aborts.Reset()
	c.rpcLatency.Reset()
	c.custody.Reset()
}

func (c *Collector) RecordSettled(direction, strategy string, totalPrice uint64, elapsed time.Duration) {
	c.trades.WithLabelValues(direction, strategy).Inc()
	c.tradeDuration.WithLabelValues(direction).Observe(elapsed.Seconds())
	c.tradePrice.WithLabelValues(direction, strategy).Observe(float64(totalPrice))
}

func (c *Collector) RecordAborted(direction, _ string, kind string) {
	c.aborts.WithLabelValues(direction, kind).Inc()
}

// RecordRPC records the latency of one RPC call.
func (c *Collector) RecordRPC(method string, elapsed time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	c.rpcLatency.WithLabelValues(method, status).Observe(elapsed.Seconds())
}

// SetCustody publishes a pool account balance.
func (c *Collector) SetCustody(pool, account string, amount uint64) {
	c.custody.WithLabelValues(pool, account).Set(float64(amount))
}
