package source

import (
	"context"
	"sync"
)

// MemoryKV 并发安全的内存键值存储，测试与 CLI 的 stdin 模式使用
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemoryKV 创建内存存储，initial 会被复制
func NewMemoryKV(initial map[string]string) *MemoryKV {
	data := make(map[string]string, len(initial))
	for k, v := range initial {
		data[k] = v
	}
	return &MemoryKV{data: data}
}

// Get 实现 KeyValue
func (m *MemoryKV) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

// Set 写入键
func (m *MemoryKV) Set(key, value string) {
	m.mu.Lock()
	m.data[key] = value
	m.mu.Unlock()
}

// Delete 删除键
func (m *MemoryKV) Delete(key string) {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
}

// SetRun 一次写入活动 id、存档索引和游戏状态
func (m *MemoryKV) SetRun(id, savesData, gameData string) {
	m.mu.Lock()
	m.data[KeyActiveGame] = id
	m.data[KeySaves] = savesData
	m.data[GameKey(id)] = gameData
	m.mu.Unlock()
}
