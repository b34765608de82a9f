package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Checkout outcome labels.
const (
	ResultSuccess       = "success"
	ResultValidation    = "validation_error"
	ResultStockConflict = "stock_conflict"
	ResultTotalMismatch = "total_mismatch"
	ResultPaymentFailed = "payment_failed"
	ResultPersistence   = "persistence_error"
	ResultIdempotentHit = "idempotent_replay"
)

var (
	// CheckoutsTotal counts finished checkout attempts by outcome.
	// total_mismatch is worth alerting on: it is the tampering signal.
	CheckoutsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cavelier_checkouts_total",
		Help: "Checkout submissions by outcome",
	}, []string{"result"})

	// CheckoutDuration observes the full order creation pipeline, payment
	// initiation included.
	CheckoutDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cavelier_checkout_duration_seconds",
		Help:    "Order creation latency",
		Buckets: prometheus.DefBuckets,
	})

	// VatPreviewsTotal counts advisory VAT calculations.
	VatPreviewsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cavelier_vat_previews_total",
		Help: "Advisory VAT preview calculations",
	})

	// HTTPRequestDuration observes per-route request latency.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cavelier_http_request_duration_seconds",
		Help:    "HTTP request latency by route and status",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	OrderCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cavelier_order_cache_hits_total",
		Help: "Order cache hits",
	})

	OrderCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cavelier_order_cache_misses_total",
		Help: "Order cache misses",
	})
)
