package middleware

import (
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPromApp(t *testing.T) (*fiber.App, *PrometheusMiddleware) {
	t.Helper()
	// fresh registry per test to avoid duplicate registration
	m, err := NewPrometheusMiddleware(prometheus.NewRegistry())
	require.NoError(t, err)

	app := fiber.New()
	app.Use(m.Handler())
	app.Get("/documents/:id", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	app.Delete("/documents/:id", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })
	app.Post("/documents", func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusRequestEntityTooLarge, "too large")
	})
	app.Get("/metrics", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	return app, m
}

func TestPrometheusMiddleware(t *testing.T) {
	tests := []struct {
		name   string
		method string
		target string
		path   string
		status string
	}{
		{name: "route pattern label", method: "GET", target: "/documents/123", path: "/documents/:id", status: "200"},
		{name: "delete", method: "DELETE", target: "/documents/abc", path: "/documents/:id", status: "204"},
		{name: "fiber error status", method: "POST", target: "/documents", path: "/documents", status: "413"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, m := newPromApp(t)

			resp, err := app.Test(httptest.NewRequest(tt.method, tt.target, nil))
			require.NoError(t, err)
			assert.Equal(t, tt.status, strconv.Itoa(resp.StatusCode))

			assert.Equal(t, 1.0, testutil.ToFloat64(m.requestCount.WithLabelValues(tt.method, tt.path, tt.status)))
			assert.Equal(t, 1, testutil.CollectAndCount(m.requestDuration))
		})
	}
}

func TestPrometheusMiddleware_SkipsMetricsEndpoint(t *testing.T) {
	app, m := newPromApp(t)

	_, err := app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)

	assert.Zero(t, testutil.CollectAndCount(m.requestCount))
	assert.Zero(t, testutil.CollectAndCount(m.requestDuration))
}

func TestNewPrometheusMiddleware_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewPrometheusMiddleware(reg)
	require.NoError(t, err)
	_, err = NewPrometheusMiddleware(reg)
	assert.Error(t, err)
}

func TestPrometheusMiddleware_UploadSizeAndInFlight(t *testing.T) {
	app, m := newPromApp(t)

	_, err := app.Test(httptest.NewRequest("POST", "/documents", strings.NewReader("%PDF-1.4 body")))
	require.NoError(t, err)
	_, err = app.Test(httptest.NewRequest("GET", "/documents/1", nil))
	require.NoError(t, err)

	assert.Equal(t, 1, testutil.CollectAndCount(m.uploadSize))
	assert.Zero(t, testutil.ToFloat64(m.inFlight))
}
