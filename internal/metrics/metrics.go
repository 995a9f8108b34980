package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	WebhookRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payledger_webhook_requests_total",
		Help: "Bank webhook deliveries by outcome",
	}, []string{"outcome"})

	WebhookMatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payledger_webhook_matches_total",
		Help: "Matched bank webhooks by matching strategy",
	}, []string{"strategy"})

	WebhookHandleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "payledger_webhook_handle_duration_seconds",
		Help:    "Latency of bank webhook handling",
		Buckets: prometheus.DefBuckets,
	})

	OrderStatusTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payledger_order_status_transitions_total",
		Help: "Order fulfillment status transitions",
	}, []string{"from", "to"})

	CommissionTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payledger_commission_transitions_total",
		Help: "Commission ledger transitions by action and result",
	}, []string{"action", "result"})

	WalletCreditsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payledger_wallet_credits_total",
		Help: "Wallet credits applied",
	})

	WalletCreditedAmount = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payledger_wallet_credited_amount_total",
		Help: "Sum of wallet credits in minor units",
	})

	CancelledAfterPayoutTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payledger_cancelled_after_payout_total",
		Help: "Orders cancelled while commission had already been approved or paid",
	})

	ReconcileRepairsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payledger_reconcile_repairs_total",
		Help: "Ledger inconsistencies repaired by reconciliation",
	}, []string{"kind"})

	EventPublishTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payledger_event_publish_total",
		Help: "Domain event publish attempts by result",
	}, []string{"event_type", "result"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payledger_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payledger_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)

// Handler /metrics 暴露端点
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

// GinMiddleware 采集 HTTP 指标
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		HTTPRequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
		HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
	}
}
