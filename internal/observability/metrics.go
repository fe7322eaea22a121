package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messaging_http_requests_total",
			Help: "Total number of HTTP requests processed by the messaging service.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "messaging_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	wsActiveConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "messaging_ws_active_connections",
			Help: "Number of active websocket connections.",
		},
		[]string{"kind"},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messaging_ws_events_total",
			Help: "Total number of websocket events.",
		},
		[]string{"kind", "event"},
	)
	pipelineSubmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messaging_pipeline_submissions_total",
			Help: "Delivery pipeline submissions by terminal outcome.",
		},
		[]string{"kind", "outcome"},
	)
	pipelineStageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "messaging_pipeline_duration_seconds",
			Help:    "End to end delivery pipeline latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)
	fanoutDeliveriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "messaging_fanout_deliveries_total",
			Help: "Total number of events enqueued to websocket sessions.",
		},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "messaging_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		wsActiveConnections,
		wsEventsTotal,
		pipelineSubmissionsTotal,
		pipelineStageDuration,
		fanoutDeliveriesTotal,
		amqpPublishErrorsTotal,
	)
}

func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func IncWSActive(kind string) {
	wsActiveConnections.WithLabelValues(kind).Inc()
}

func DecWSActive(kind string) {
	wsActiveConnections.WithLabelValues(kind).Dec()
}

func IncWSEvent(kind, event string) {
	wsEventsTotal.WithLabelValues(kind, event).Inc()
}

// ObservePipeline records one pipeline submission reaching a terminal state.
func ObservePipeline(kind, outcome string, elapsed time.Duration) {
	pipelineSubmissionsTotal.WithLabelValues(kind, outcome).Inc()
	pipelineStageDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// AddFanoutDeliveries counts sessions an event was enqueued to.
func AddFanoutDeliveries(n int) {
	fanoutDeliveriesTotal.Add(float64(n))
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
