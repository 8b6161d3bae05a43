// File: internal/pkg/metrics/error_metrics.go
package metrics

import (
	"strconv"
	"strings"

	"nuzlocke-bridge/internal/pkg/xerrors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ErrorMetrics 错误响应指标
type ErrorMetrics struct {
	// 按错误码统计
	ErrorsByCode *prometheus.CounterVec

	// 按错误分类统计
	ErrorsByCategory *prometheus.CounterVec

	// 按 HTTP 状态码统计错误响应
	HTTPResponses *prometheus.CounterVec
}

// NewErrorMetrics 创建错误指标收集器（注册到当前 Registerer）
func NewErrorMetrics(namespace string) *ErrorMetrics {
	return NewErrorMetricsWithRegistry(namespace, GetRegisterer())
}

// NewErrorMetricsWithRegistry 创建错误指标收集器（使用自定义注册表）
func NewErrorMetricsWithRegistry(namespace string, registerer prometheus.Registerer) *ErrorMetrics {
	factory := promauto.With(registerer)

	return &ErrorMetrics{
		ErrorsByCode: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of application errors by code",
			},
			[]string{"service", "method", "code", "category", "level"},
		),
		ErrorsByCategory: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_category_total",
				Help:      "Total number of application errors by category",
			},
			[]string{"service", "category"},
		),
		HTTPResponses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "error_responses_total",
				Help:      "Total number of error responses by status code",
			},
			[]string{"service", "status_code", "method"},
		),
	}
}

// RecordError 记录错误指标
func (m *ErrorMetrics) RecordError(appErr *xerrors.AppError, statusCode int, method string) {
	if m == nil || appErr == nil {
		return
	}

	service := GetServiceName()
	if method == "" {
		method = "UNKNOWN"
	} else {
		method = strings.ToUpper(method)
	}

	code := strconv.Itoa(appErr.Code.ToInt())
	m.ErrorsByCode.WithLabelValues(service, method, code, appErr.Category, appErr.Level.String()).Inc()

	if appErr.Category != "" {
		m.ErrorsByCategory.WithLabelValues(service, appErr.Category).Inc()
	}

	m.HTTPResponses.WithLabelValues(service, strconv.Itoa(statusCode), method).Inc()
}
