// Package source 读取追踪器持久化的原始存档数据。
//
// 追踪器把数据写在浏览器 localStorage 的三个固定键下：
//
//	nuzlocke         当前活动 run 的 id
//	nuzlocke.saves   存档索引字符串
//	nuzlocke.<id>    该 run 的游戏状态 JSON
//
// Source 只负责取回这三个字符串，解析交给 nuzlocke 包。
package source

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	// KeyActiveGame 活动 run id 所在的键
	KeyActiveGame = "nuzlocke"
	// KeySaves 存档索引所在的键
	KeySaves = "nuzlocke.saves"
	// GameKeyPrefix 游戏状态键前缀
	GameKeyPrefix = "nuzlocke."
)

// ErrNoActiveRun 三个值中任意一个缺失或为空
var ErrNoActiveRun = errors.New("source: no active run")

// GameKey 返回 run 对应的游戏状态键
func GameKey(id string) string {
	return GameKeyPrefix + id
}

// Raw 一次读取得到的原始数据
type Raw struct {
	ActiveGameID string
	SavesData    string
	GameData     string
}

// Source 原始数据来源
type Source interface {
	Read(ctx context.Context) (Raw, error)
}

// SourceFunc 函数适配器
type SourceFunc func(ctx context.Context) (Raw, error)

// Read 实现 Source
func (f SourceFunc) Read(ctx context.Context) (Raw, error) {
	return f(ctx)
}

// KeyValue 类 localStorage 的只读键值存储
type KeyValue interface {
	// Get 键不存在时 ok 为 false，err 只用于存储本身的故障
	Get(ctx context.Context, key string) (value string, ok bool, err error)
}

// StorageSource 按固定键名从 KeyValue 中读取
type StorageSource struct {
	kv KeyValue
}

// NewStorageSource 创建 StorageSource
func NewStorageSource(kv KeyValue) *StorageSource {
	return &StorageSource{kv: kv}
}

// Read 实现 Source
func (s *StorageSource) Read(ctx context.Context) (Raw, error) {
	active, err := s.required(ctx, KeyActiveGame)
	if err != nil {
		return Raw{}, err
	}
	saves, err := s.required(ctx, KeySaves)
	if err != nil {
		return Raw{}, err
	}
	game, err := s.required(ctx, GameKey(active))
	if err != nil {
		return Raw{}, err
	}
	return Raw{ActiveGameID: active, SavesData: saves, GameData: game}, nil
}

func (s *StorageSource) required(ctx context.Context, key string) (string, error) {
	v, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("read %q: %w", key, err)
	}
	if !ok || strings.TrimSpace(v) == "" {
		return "", ErrNoActiveRun
	}
	return v, nil
}
