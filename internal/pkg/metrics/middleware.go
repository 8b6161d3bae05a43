// File: internal/pkg/metrics/middleware.go
package metrics

import (
	"errors"
	"net/http"
	"time"

	"nuzlocke-bridge/internal/pkg/ctxkey"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Middleware Echo 中间件：把 HTTP 方法写入 context，并按路由模板记录请求指标
func Middleware(m *HTTPMetrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			ctx := ctxkey.WithValue(req.Context(), ctxkey.HTTPMethod, req.Method)
			c.SetRequest(req.WithContext(ctx))

			if m == nil || IsHealthCheckEndpoint(req.URL.Path) {
				return next(c)
			}

			route := c.Path()
			c.Response().Header().Set("X-Route-Pattern", route)

			m.IncInProgress("")
			defer m.DecInProgress("")

			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				var he *echo.HTTPError
				if errors.As(err, &he) {
					status = he.Code
				} else if !c.Response().Committed {
					status = http.StatusInternalServerError
				}
			}

			m.RecordRequest("", route, req.Method, status, time.Since(start))
			return err
		}
	}
}

// Handler 返回当前 Gatherer 的 Prometheus HTTP 处理器
func Handler() http.Handler {
	return promhttp.HandlerFor(GetGatherer(), promhttp.HandlerOpts{})
}

// EchoHandler 暴露 /metrics 端点
func EchoHandler() echo.HandlerFunc {
	h := Handler()
	return func(c echo.Context) error {
		h.ServeHTTP(c.Response().Writer, c.Request())
		return nil
	}
}
