package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the API
	Registry = prometheus.NewRegistry()

	// HTTPRequests counts requests by method, route pattern and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// PassagesIngested counts stored passages by vehicle type and ingestion route
	PassagesIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "toll_passages_ingested_total", Help: "Passages stored, by vehicle type and source."},
		[]string{"vehicle_type", "source"},
	)
	CalculationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "toll_calculation_duration_seconds", Help: "Charge calculation duration in seconds.", Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1}},
	)
	CalculationBatchSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "toll_calculation_batch_size", Help: "Passages per charge calculation.", Buckets: prometheus.ExponentialBuckets(1, 4, 8)},
	)
	// CacheLookups counts group cache lookups by result (hit|miss)
	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "toll_group_cache_lookups_total", Help: "Vehicle-day group cache lookups by result."},
		[]string{"result"},
	)

	// WebhookDeliveries counts webhook delivery outcomes by event type and status
	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_deliveries_total", Help: "Webhook deliveries by event type and status."},
		[]string{"event_type", "status"},
	)
	// WebhookLatency tracks webhook delivery latencies in milliseconds
	WebhookLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "webhook_delivery_latency_ms", Help: "Webhook delivery latency in ms.", Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000}},
		[]string{"event_type", "status"},
	)
)

var regOnce sync.Once

// RegisterDefault registers all collectors on Registry. Safe to call more than once.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(
			HTTPRequests,
			HTTPDuration,
			PassagesIngested,
			CalculationDuration,
			CalculationBatchSize,
			CacheLookups,
			WebhookDeliveries,
			WebhookLatency,
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	})
}
