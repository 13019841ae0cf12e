package middleware

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
)

const metricsPath = "/metrics"

// uploadBuckets span single page scans up to large ZIP batches.
var uploadBuckets = prometheus.ExponentialBuckets(16<<10, 4, 8)

// PrometheusMiddleware records per-route HTTP metrics.
type PrometheusMiddleware struct {
	requestCount    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	uploadSize      *prometheus.HistogramVec
	inFlight        prometheus.Gauge
}

// NewPrometheusMiddleware builds the collectors and registers them on reg.
// Registering twice on the same registry fails.
func NewPrometheusMiddleware(reg prometheus.Registerer) (*PrometheusMiddleware, error) {
	m := &PrometheusMiddleware{
		requestCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "path", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		uploadSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_upload_bytes",
			Help:    "Request body size of uploads.",
			Buckets: uploadBuckets,
		}, []string{"path"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Requests currently being served.",
		}),
	}

	for _, c := range []prometheus.Collector{m.requestCount, m.requestDuration, m.uploadSize, m.inFlight} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Handler returns the fiber middleware. Scrapes of /metrics are not counted.
func (m *PrometheusMiddleware) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Path() == metricsPath {
			return c.Next()
		}

		m.inFlight.Inc()
		defer m.inFlight.Dec()

		began := time.Now()
		err := c.Next()
		elapsed := time.Since(began)

		method, route := c.Method(), routeLabel(c)
		m.requestCount.WithLabelValues(method, route, strconv.Itoa(responseStatus(c, err))).Inc()
		m.requestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
		if method == fiber.MethodPost && len(c.Body()) > 0 {
			m.uploadSize.WithLabelValues(route).Observe(float64(len(c.Body())))
		}
		return err
	}
}

// routeLabel prefers the matched pattern (/documents/:id) so ids do not
// explode label cardinality.
func routeLabel(c *fiber.Ctx) string {
	if r := c.Route(); r != nil && r.Path != "" {
		return r.Path
	}
	return c.Path()
}

// responseStatus predicts what ErrorHandler will write for err.
func responseStatus(c *fiber.Ctx, err error) int {
	if err == nil {
		return c.Response().StatusCode()
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return fiber.StatusInternalServerError
}
