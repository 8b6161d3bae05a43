package state

import (
	"context"
	"sync"
)

// MemoryStore 进程内状态单元
type MemoryStore struct {
	mu    sync.RWMutex
	data  RealtimeData
	saved bool
}

// NewMemoryStore 创建内存状态单元
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// NewMemoryStoreWith 以初始值创建（测试用）
func NewMemoryStoreWith(initial RealtimeData) *MemoryStore {
	return &MemoryStore{data: initial, saved: true}
}

// Load 实现 Store
func (m *MemoryStore) Load(_ context.Context) (RealtimeData, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data, m.saved, nil
}

// Save 实现 Store
func (m *MemoryStore) Save(_ context.Context, data RealtimeData) error {
	m.mu.Lock()
	m.data = data
	m.saved = true
	m.mu.Unlock()
	return nil
}
