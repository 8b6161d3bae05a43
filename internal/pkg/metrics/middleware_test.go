// File: internal/pkg/metrics/middleware_test.go
package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withServiceName(t *testing.T, name string) {
	original := GetServiceName()
	SetServiceName(name)
	t.Cleanup(func() {
		SetServiceName(original)
	})
}

// TestMiddleware_RouteTemplate 验证中间件使用路由模板而非原始路径
func TestMiddleware_RouteTemplate(t *testing.T) {
	withServiceName(t, "test-service")
	reg := prometheus.NewRegistry()
	m := NewHTTPMetricsWithRegistry("test", reg)

	e := echo.New()
	e.Use(Middleware(m))
	e.GET("/api/external", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/external?endpoint=team&gameId=abc", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, "/api/external", rec.Header().Get("X-Route-Pattern"))
	counter := m.RequestsTotal.WithLabelValues("test-service", "/api/external", http.MethodGet, "200")
	assert.Equal(t, 1.0, testutil.ToFloat64(counter))
}

// TestMiddleware_HealthCheckSkip 验证健康检查端点被跳过
func TestMiddleware_HealthCheckSkip(t *testing.T) {
	for _, path := range []string{"/metrics", "/health"} {
		t.Run(path, func(t *testing.T) {
			reg := prometheus.NewRegistry()
			m := NewHTTPMetricsWithRegistry("test", reg)

			e := echo.New()
			e.Use(Middleware(m))
			e.GET(path, func(c echo.Context) error {
				return c.String(http.StatusOK, "ok")
			})

			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

			assert.Equal(t, http.StatusOK, rec.Code)
			count, err := testutil.GatherAndCount(reg, "test_http_requests_total")
			assert.NoError(t, err)
			assert.Equal(t, 0, count, "健康检查端点不应该被记录到指标中")
		})
	}
}

// TestMiddleware_HTTPErrorStatus 验证 handler 返回 echo.HTTPError 时记录其状态码
func TestMiddleware_HTTPErrorStatus(t *testing.T) {
	withServiceName(t, "test-service")
	reg := prometheus.NewRegistry()
	m := NewHTTPMetricsWithRegistry("test", reg)

	e := echo.New()
	e.Use(Middleware(m))
	e.POST("/api/update-data", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusBadRequest, "bad")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/update-data", nil))

	counter := m.RequestsTotal.WithLabelValues("test-service", "/api/update-data", http.MethodPost, "400")
	assert.Equal(t, 1.0, testutil.ToFloat64(counter))
}

func TestEchoHandler_UsesCurrentRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	WithRegistry(reg, func() {
		bm := NewBridgeMetrics("test")
		bm.RecordEvent("dataUpdate")

		e := echo.New()
		e.GET("/metrics", EchoHandler())

		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, strings.Contains(rec.Body.String(), "test_emitter_events_published_total"))
	})
}
