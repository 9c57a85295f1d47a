// Package metrics defines the Prometheus collectors exposed at
// GET /metrics. Merges enesyesil-parallax/internal/metrics/prom.go's
// dedicated-registry pattern with
// shambharkar-siddhant-LockServer/internal/obs/metrics.go's per-operation
// CounterVec/HistogramVec style.
package metrics

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	RequestsTotal    *prometheus.CounterVec   // status=ok|error|cancelled
	ProxyLatencyMS   prometheus.Histogram     // end-to-end intake-to-response
	BatchSize        prometheus.Histogram     // tickets per dispatched batch
	DispatchLatency  prometheus.Histogram     // downstream round-trip seconds
	DownstreamErrors *prometheus.CounterVec   // kind=core.ErrorKind, e.g. DownstreamTransport
	QueueDepth       prometheus.Gauge
	ReplicaLoad      *prometheus.GaugeVec // replica=<id>
}

func New() *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "proxy_requests_total", Help: "Total classify requests by outcome"},
			[]string{"status"},
		),
		ProxyLatencyMS: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "proxy_latency_ms",
				Help:    "End-to-end proxy latency observed by callers, in milliseconds",
				Buckets: prometheus.ExponentialBuckets(1, 2, 14),
			},
		),
		BatchSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "proxy_batch_size",
				Help:    "Number of tickets in each dispatched batch",
				Buckets: prometheus.LinearBuckets(1, 1, 5),
			},
		),
		DispatchLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "proxy_dispatch_latency_seconds",
				Help:    "Downstream round-trip latency per batch",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
			},
		),
		DownstreamErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "proxy_downstream_errors_total", Help: "Downstream failures by kind"},
			[]string{"kind"},
		),
		QueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "proxy_queue_depth", Help: "Pending tickets not yet dispatched"},
		),
		ReplicaLoad: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "proxy_replica_load_ema_ms", Help: "EMA of milliseconds per unit of batch cost per downstream replica"},
			[]string{"replica"},
		),
	}
	return m
}

// Collectors lists every collector for registration against a dedicated
// prometheus.Registry (enesyesil-parallax/internal/metrics/prom.go
// pattern).
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.RequestsTotal,
		m.ProxyLatencyMS,
		m.BatchSize,
		m.DispatchLatency,
		m.DownstreamErrors,
		m.QueueDepth,
		m.ReplicaLoad,
	}
}
