// File: internal/pkg/metrics/bridge_metrics.go
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BridgeMetrics 观察/推送流水线指标
type BridgeMetrics struct {
	// 观察次数（result: changed/unchanged/no_run/error）
	ObservationsTotal *prometheus.CounterVec

	// 事件发布次数（按事件类型）
	EventsPublishedTotal *prometheus.CounterVec

	// SyncClient 推送次数（result: success/failure/skipped）
	PushesSentTotal *prometheus.CounterVec

	// 服务端接收推送次数（result: refreshed/unchanged/invalid）
	PushesReceivedTotal *prometheus.CounterVec

	// 状态单元操作
	StateOperationsTotal   *prometheus.CounterVec
	StateOperationDuration *prometheus.HistogramVec

	// 当前 WebSocket 订阅者数
	StreamClients *prometheus.GaugeVec

	// 最近一次检测到变化的时间（unix 秒）
	LastChangeTimestamp *prometheus.GaugeVec
}

// StateBuckets 状态单元操作延迟（内存为微秒级，Redis 为毫秒级）
var StateBuckets = []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5}

// NewBridgeMetrics 创建新的 bridge 指标收集器（注册到当前 Registerer）
func NewBridgeMetrics(namespace string) *BridgeMetrics {
	return NewBridgeMetricsWithRegistry(namespace, GetRegisterer())
}

// NewBridgeMetricsWithRegistry 创建新的 bridge 指标收集器（使用自定义注册表）
func NewBridgeMetricsWithRegistry(namespace string, registerer prometheus.Registerer) *BridgeMetrics {
	factory := promauto.With(registerer)

	return &BridgeMetrics{
		ObservationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "emitter",
				Name:      "observations_total",
				Help:      "Total number of raw source observations by result",
			},
			[]string{"service", "result"},
		),
		EventsPublishedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "emitter",
				Name:      "events_published_total",
				Help:      "Total number of change events published by kind",
			},
			[]string{"service", "kind"},
		),
		PushesSentTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sync",
				Name:      "pushes_sent_total",
				Help:      "Total number of sync pushes by result",
			},
			[]string{"service", "result"},
		),
		PushesReceivedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "push",
				Name:      "received_total",
				Help:      "Total number of pushed payloads received by result",
			},
			[]string{"service", "result"},
		),
		StateOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "state",
				Name:      "operations_total",
				Help:      "Total number of state cell operations by backend, operation and result",
			},
			[]string{"service", "backend", "operation", "result"},
		),
		StateOperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "state",
				Name:      "operation_duration_seconds",
				Help:      "State cell operation latency by backend and operation",
				Buckets:   StateBuckets,
			},
			[]string{"service", "backend", "operation"},
		),
		StreamClients: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "stream",
				Name:      "clients",
				Help:      "Current number of connected change stream clients",
			},
			[]string{"service"},
		),
		LastChangeTimestamp: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "emitter",
				Name:      "last_change_timestamp_seconds",
				Help:      "Unix time of the most recent detected change",
			},
			[]string{"service"},
		),
	}
}

// RecordObservation 记录一次观察结果
func (m *BridgeMetrics) RecordObservation(result string) {
	if m == nil {
		return
	}
	service := GetServiceName()
	m.ObservationsTotal.WithLabelValues(service, result).Inc()
	if result == "changed" {
		m.LastChangeTimestamp.WithLabelValues(service).Set(float64(time.Now().Unix()))
	}
}

// RecordEvent 记录事件发布
func (m *BridgeMetrics) RecordEvent(kind string) {
	if m == nil {
		return
	}
	m.EventsPublishedTotal.WithLabelValues(GetServiceName(), kind).Inc()
}

// RecordPushSent 记录 SyncClient 推送结果
func (m *BridgeMetrics) RecordPushSent(result string) {
	if m == nil {
		return
	}
	m.PushesSentTotal.WithLabelValues(GetServiceName(), result).Inc()
}

// RecordPushReceived 记录服务端接收推送结果
func (m *BridgeMetrics) RecordPushReceived(result string) {
	if m == nil {
		return
	}
	m.PushesReceivedTotal.WithLabelValues(GetServiceName(), result).Inc()
}

// RecordStateOperation 记录状态单元操作
func (m *BridgeMetrics) RecordStateOperation(backend, operation string, success bool, duration time.Duration) {
	if m == nil {
		return
	}
	service := GetServiceName()
	result := "success"
	if !success {
		result = "error"
	}
	m.StateOperationsTotal.WithLabelValues(service, backend, operation, result).Inc()
	m.StateOperationDuration.WithLabelValues(service, backend, operation).Observe(duration.Seconds())
}

// StreamClientConnected / StreamClientDisconnected 维护订阅者数
func (m *BridgeMetrics) StreamClientConnected() {
	if m == nil {
		return
	}
	m.StreamClients.WithLabelValues(GetServiceName()).Inc()
}

func (m *BridgeMetrics) StreamClientDisconnected() {
	if m == nil {
		return
	}
	m.StreamClients.WithLabelValues(GetServiceName()).Dec()
}
