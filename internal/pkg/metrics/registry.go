package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	defaultRegistryManager = &RegistryManager{
		registerer: prometheus.DefaultRegisterer,
		gatherer:   prometheus.DefaultGatherer,
	}
)

// RegistryManager 管理默认的 Prometheus Registerer/Gatherer, 支持在测试中注入独立注册表。
type RegistryManager struct {
	mu         sync.RWMutex
	registerer prometheus.Registerer
	gatherer   prometheus.Gatherer
}

// SetRegistry 同时设置 Registerer 与 Gatherer（/metrics 输出来自 Gatherer）。
func SetRegistry(reg *prometheus.Registry) {
	if reg == nil {
		defaultRegistryManager.set(prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
		return
	}
	defaultRegistryManager.set(reg, reg)
}

// GetRegisterer 返回当前的 Registerer。
func GetRegisterer() prometheus.Registerer {
	defaultRegistryManager.mu.RLock()
	defer defaultRegistryManager.mu.RUnlock()

	if defaultRegistryManager.registerer == nil {
		return prometheus.DefaultRegisterer
	}
	return defaultRegistryManager.registerer
}

// GetGatherer 返回当前的 Gatherer。
func GetGatherer() prometheus.Gatherer {
	defaultRegistryManager.mu.RLock()
	defer defaultRegistryManager.mu.RUnlock()

	if defaultRegistryManager.gatherer == nil {
		return prometheus.DefaultGatherer
	}
	return defaultRegistryManager.gatherer
}

// WithRegistry 在指定注册表下执行 fn, 执行完成后恢复之前的注册表。
func WithRegistry(reg *prometheus.Registry, fn func()) {
	m := defaultRegistryManager

	m.mu.Lock()
	prevR, prevG := m.registerer, m.gatherer
	m.mu.Unlock()

	SetRegistry(reg)
	defer m.set(prevR, prevG)

	if fn != nil {
		fn()
	}
}

func (m *RegistryManager) set(r prometheus.Registerer, g prometheus.Gatherer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registerer = r
	m.gatherer = g
}
