package middleware

import (
	"strconv"
	"time"

	"cdi-tracker/pkg/apperr"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the HTTP and channel collectors of one server.
type Metrics struct {
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	calls           *prometheus.CounterVec
	callDuration    *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cdi",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cdi",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cdi",
			Name:      "channel_calls_total",
			Help:      "Channel invocations by outcome.",
		}, []string{"channel", "outcome"}),
		callDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cdi",
			Name:      "channel_call_duration_seconds",
			Help:      "Channel handler latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"channel"}),
	}
	reg.MustRegister(m.requests, m.requestDuration, m.calls, m.callDuration)
	return m
}

// Handler records every HTTP request against its route template.
func (m *Metrics) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.requestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// ObserveCall matches ipc.Observer and is registered on the bus.
func (m *Metrics) ObserveCall(channel string, kind apperr.Kind, elapsed time.Duration) {
	outcome := "success"
	if kind != "" {
		outcome = string(kind)
	}
	m.calls.WithLabelValues(channel, outcome).Inc()
	m.callDuration.WithLabelValues(channel).Observe(elapsed.Seconds())
}
