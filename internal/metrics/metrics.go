package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "alor"

var (
	// Token renewals by result: ok, status, decode, transport.
	TokenRenewals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_renewals_total",
			Help:      "Access token renewal attempts by result",
		},
		[]string{"result"},
	)

	// REST API
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Total number of REST API requests",
		},
		[]string{"endpoint", "status"},
	)
	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "Duration of REST API requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	// Order book fetches by result: ok, error.
	OrderbookFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orderbook_fetches_total",
			Help:      "Per-symbol order book fetches by result",
		},
		[]string{"result"},
	)
	OrderbookBatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "orderbook_batch_duration_seconds",
			Help:      "Wall time of a concurrent order book batch",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// Stream messages by kind: data, response, dropped.
	StreamMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_messages_total",
			Help:      "WebSocket messages received by kind",
		},
		[]string{"kind"},
	)
	StreamConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_connected",
			Help:      "1 while the WebSocket connection is up",
		},
	)
)

// Register adds all collectors plus the Go and process collectors to reg.
func Register(reg prometheus.Registerer) error {
	all := []prometheus.Collector{
		TokenRenewals,
		APIRequestsTotal,
		APIRequestDuration,
		OrderbookFetches,
		OrderbookBatchDuration,
		StreamMessages,
		StreamConnected,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	}
	for _, c := range all {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
