package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Ingestion
	RecordsConsumed *prometheus.CounterVec
	RecordsInvalid  *prometheus.CounterVec
	RecordsDeduped  *prometheus.CounterVec
	OrdersRemoved   prometheus.Counter

	// Classification
	ClassifyOK       *prometheus.CounterVec
	ClassifySkipped  *prometheus.CounterVec
	ClassifyErrors   *prometheus.CounterVec
	ClassifyDuration *prometheus.HistogramVec

	// State
	TrackedPools  prometheus.Gauge
	TrackedOrders prometheus.Gauge

	// Channel backpressure
	ChannelSize        *prometheus.GaugeVec
	ChannelCapacity    *prometheus.GaugeVec
	ChannelUtilization *prometheus.GaugeVec

	// Backend
	BackendQueryDuration *prometheus.HistogramVec
	BackendQueryErrors   *prometheus.CounterVec

	// History persistence
	PersistRows     *prometheus.CounterVec
	PersistErrors   *prometheus.CounterVec
	PersistBatchDur prometheus.Histogram

	// Query API
	QuoteRequests *prometheus.CounterVec
	QuoteErrors   *prometheus.CounterVec
	HTTPRequests  *prometheus.CounterVec
	HTTPDuration  *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	classifyBuckets := []float64{
		0.00001, 0.000025, 0.00005, 0.0001, 0.00025,
		0.0005, 0.001, 0.002, 0.005, 0.01,
	}

	queryBuckets := []float64{
		0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0,
	}

	return &Metrics{
		RecordsConsumed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dex_records_consumed_total",
			Help: "Raw UTXO records received from the stream",
		}, []string{"subject"}),

		RecordsInvalid: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dex_records_invalid_total",
			Help: "Records rejected before classification (bad JSON, bad hex)",
		}, []string{"subject"}),

		RecordsDeduped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dex_records_deduped_total",
			Help: "Redelivered records dropped by the seen-UTxO cache",
		}, []string{"kind"}),

		OrdersRemoved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dex_orders_removed_total",
			Help: "Open orders dropped after their UTXO was spent",
		}),

		ClassifyOK: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dex_classify_ok_total",
			Help: "Records classified into a pool or order state",
		}, []string{"protocol", "kind"}),

		ClassifySkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dex_classify_skipped_total",
			Help: "Records skipped on a recoverable classification error",
		}, []string{"protocol", "reason"}),

		ClassifyErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dex_classify_errors_total",
			Help: "Records failing classification with a non-recoverable error",
		}, []string{"protocol"}),

		ClassifyDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dex_classify_duration_seconds",
			Help:    "Time to classify one record",
			Buckets: classifyBuckets,
		}, []string{"protocol"}),

		TrackedPools: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "dex_tracked_pools",
			Help: "Pools currently held in the state store",
		}),

		TrackedOrders: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "dex_tracked_orders",
			Help: "Open orders currently held in the state store",
		}),

		ChannelSize: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dex_channel_size",
			Help: "Current items in channel",
		}, []string{"name"}),

		ChannelCapacity: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dex_channel_capacity",
			Help: "Channel capacity (constant)",
		}, []string{"name"}),

		ChannelUtilization: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dex_channel_utilization",
			Help: "Channel size / capacity (0.0-1.0)",
		}, []string{"name"}),

		BackendQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dex_backend_query_duration_seconds",
			Help:    "db-sync query latency",
			Buckets: queryBuckets,
		}, []string{"query"}),

		BackendQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dex_backend_query_errors_total",
			Help: "db-sync query failures",
		}, []string{"query"}),

		PersistRows: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dex_persist_rows_total",
			Help: "History rows written by table",
		}, []string{"table"}),

		PersistErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dex_persist_errors_total",
			Help: "History write failures by stage",
		}, []string{"stage"}),

		PersistBatchDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "dex_persist_batch_duration_seconds",
			Help:    "History batch write duration",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),

		QuoteRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dex_quote_requests_total",
			Help: "Quote computations served",
		}, []string{"protocol", "direction"}),

		QuoteErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dex_quote_errors_total",
			Help: "Quote computations that failed",
		}, []string{"protocol", "reason"}),

		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dex_http_requests_total",
			Help: "HTTP API requests by endpoint and status",
		}, []string{"endpoint", "status"}),

		HTTPDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dex_http_request_duration_seconds",
			Help:    "HTTP API request latency",
			Buckets: queryBuckets,
		}, []string{"endpoint"}),
	}
}

// SetChannelStats records size, capacity and utilization for one channel.
func (m *Metrics) SetChannelStats(name string, size, capacity int) {
	m.ChannelSize.WithLabelValues(name).Set(float64(size))
	m.ChannelCapacity.WithLabelValues(name).Set(float64(capacity))
	if capacity > 0 {
		m.ChannelUtilization.WithLabelValues(name).Set(float64(size) / float64(capacity))
	}
}
