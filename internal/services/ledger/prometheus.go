package ledger

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusCollector implements MetricsCollector on a prometheus
// registry.
type PrometheusCollector struct {
	operationDuration *prometheus.HistogramVec
	transactions      *prometheus.CounterVec
	transactionVolume *prometheus.CounterVec
	errors            *prometheus.CounterVec
	cacheHits         prometheus.Counter
	cacheMisses       prometheus.Counter
	inconsistencies   *prometheus.CounterVec
}

// NewPrometheusCollector registers ledger metrics with reg and returns
// the collector.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	factory := promauto.With(reg)
	return &PrometheusCollector{
		operationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledger_operation_duration_seconds",
			Help:    "Duration of ledger operations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		transactions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_transactions_total",
			Help: "Committed ledger transactions by type.",
		}, []string{"type"}),
		transactionVolume: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_transaction_credits_total",
			Help: "Credits moved by committed transactions, by type.",
		}, []string{"type"}),
		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_errors_total",
			Help: "Ledger operation errors by operation and kind.",
		}, []string{"operation", "kind"}),
		cacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "ledger_cache_hits_total",
			Help: "Wallet cache hits.",
		}),
		cacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "ledger_cache_misses_total",
			Help: "Wallet cache misses.",
		}),
		inconsistencies: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_inconsistencies_total",
			Help: "Escalated inconsistencies by severity.",
		}, []string{"severity"}),
	}
}

func (c *PrometheusCollector) RecordOperationDuration(operation string, d time.Duration) {
	c.operationDuration.WithLabelValues(operation).Observe(d.Seconds())
}

func (c *PrometheusCollector) RecordTransaction(txType string, amount int64) {
	c.transactions.WithLabelValues(txType).Inc()
	if amount < 0 {
		amount = -amount
	}
	c.transactionVolume.WithLabelValues(txType).Add(float64(amount))
}

func (c *PrometheusCollector) RecordError(operation, errType string) {
	c.errors.WithLabelValues(operation, errType).Inc()
}

func (c *PrometheusCollector) RecordCacheHit(string)  { c.cacheHits.Inc() }
func (c *PrometheusCollector) RecordCacheMiss(string) { c.cacheMisses.Inc() }

func (c *PrometheusCollector) RecordInconsistency(severity string) {
	c.inconsistencies.WithLabelValues(severity).Inc()
}
