// internal/metrics/collector.go
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pumpwatch"

// Collector owns every metric of the process on a dedicated registry.
// All methods are safe on a nil receiver so components can run without metrics.
type Collector struct {
	registry *prometheus.Registry

	sourceRequests  *prometheus.CounterVec
	sourceDuration  *prometheus.HistogramVec
	aggregations    *prometheus.CounterVec
	rpcLatency      *prometheus.HistogramVec
	pollerTicks     *prometheus.CounterVec
	tokensDetected  *prometheus.CounterVec
	processedSigs   *prometheus.GaugeVec
	httpRequests    *prometheus.CounterVec
	websocketActive prometheus.Gauge
}

// NewCollector создает коллектор и регистрирует метрики
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		sourceRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "source_requests_total",
				Help:      "Upstream source fetches by outcome",
			},
			[]string{"source", "status"},
		),
		sourceDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "source_request_duration_seconds",
				Help:      "Upstream source fetch duration in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
			},
			[]string{"source"},
		),
		aggregations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "aggregations_total",
				Help:      "Aggregated fetches by result kind",
			},
			[]string{"kind"},
		),
		rpcLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "rpc_latency_seconds",
				Help:      "RPC request latency in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
			},
			[]string{"method"},
		),
		pollerTicks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "poller_ticks_total",
				Help:      "Poll ticks by result",
			},
			[]string{"monitor", "result"},
		),
		tokensDetected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tokens_detected_total",
				Help:      "New tokens reported by monitors",
			},
			[]string{"monitor"},
		),
		processedSigs: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "processed_signatures",
				Help:      "Size of the processed signature set",
			},
			[]string{"monitor"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP API requests by route and status code",
			},
			[]string{"route", "code"},
		),
		websocketActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "websocket_connections",
				Help:      "Number of active stream subscribers",
			},
		),
	}

	c.registry.MustRegister(
		c.sourceRequests,
		c.sourceDuration,
		c.aggregations,
		c.rpcLatency,
		c.pollerTicks,
		c.tokensDetected,
		c.processedSigs,
		c.httpRequests,
		c.websocketActive,
	)
	return c
}

// Registry exposes the underlying registry, mostly for tests.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordSourceFetch записывает результат запроса к источнику
func (c *Collector) RecordSourceFetch(source string, duration time.Duration, err error) {
	if c == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	c.sourceRequests.WithLabelValues(source, status).Inc()
	c.sourceDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordAggregation counts one orchestrated fetch; kind is real, fallback or cache.
func (c *Collector) RecordAggregation(kind string) {
	if c == nil {
		return
	}
	c.aggregations.WithLabelValues(kind).Inc()
}

func (c *Collector) ObserveRPC(method string, duration time.Duration) {
	if c == nil {
		return
	}
	c.rpcLatency.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordTick counts a poll tick; result is ok, skipped or error.
func (c *Collector) RecordTick(monitor, result string) {
	if c == nil {
		return
	}
	c.pollerTicks.WithLabelValues(monitor, result).Inc()
}

func (c *Collector) RecordDetection(monitor string) {
	if c == nil {
		return
	}
	c.tokensDetected.WithLabelValues(monitor).Inc()
}

func (c *Collector) SetProcessedSignatures(monitor string, n int) {
	if c == nil {
		return
	}
	c.processedSigs.WithLabelValues(monitor).Set(float64(n))
}

func (c *Collector) RecordHTTP(route string, code int) {
	if c == nil {
		return
	}
	c.httpRequests.WithLabelValues(route, http.StatusText(code)).Inc()
}

func (c *Collector) StreamOpened() {
	if c == nil {
		return
	}
	c.websocketActive.Inc()
}

func (c *Collector) StreamClosed() {
	if c == nil {
		return
	}
	c.websocketActive.Dec()
}

// Reset сбрасывает все метрики (полезно для тестирования)
func (c *Collector) Reset() {
	if c == nil {
		return
	}
	c.sourceRequests.Reset()
	c.sourceDuration.Reset()
	c.aggregations.Reset()
	c.rpcLatency.Reset()
	c.pollerTicks.Reset()
	c.tokensDetected.Reset()
	c.processedSigs.Reset()
	c.httpRequests.Reset()
	c.websocketActive.Set(0)
}
