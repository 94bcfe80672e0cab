package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PurchasesCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "purchases_completed_total",
		Help: "Total number of committed purchases",
	})

	PurchasesFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "purchases_failed_total",
		Help: "Total number of rejected or aborted purchases",
	}, []string{"reason"})

	PurchaseLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "purchase_latency_seconds",
		Help:    "Latency of the purchase transaction",
		Buckets: prometheus.DefBuckets,
	})

	SalesRevenueTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sales_revenue_total",
		Help: "Sum of total_price over committed sales",
	})

	UnitsSoldTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "units_sold_total",
		Help: "Total number of item units sold",
	})

	ReviewsSubmittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reviews_submitted_total",
		Help: "Total number of reviews submitted",
	})

	ReviewTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "review_transitions_total",
		Help: "Review state changes by trigger (edit, author_delete, approve, flag, delete)",
	}, []string{"trigger"})

	ReviewOperationsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "review_operations_failed_total",
		Help: "Failed review operations by operation and error kind",
	}, []string{"operation", "kind"})

	OutboxPublishedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outbox_events_published_total",
		Help: "Total number of outbox events relayed to Kafka",
	})

	OutboxPublishFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outbox_events_publish_failed_total",
		Help: "Total number of outbox relay failures",
	})

	CacheRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_requests_total",
		Help: "Read cache lookups by cache and result",
	}, []string{"cache", "result"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
