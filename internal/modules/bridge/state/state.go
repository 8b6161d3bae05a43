// Package state 保存最近一次推送的原始数据（单写者状态单元）。
package state

import (
	"context"
	"strings"
	"time"

	"nuzlocke-bridge/internal/nuzlocke"
	"nuzlocke-bridge/internal/source"
)

// TimestampLayout lastUpdate 的格式（RFC 3339，毫秒精度，UTC）
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// RealtimeData 状态单元中的一份快照
type RealtimeData struct {
	GameData    string
	SavesData   string
	LastUpdate  time.Time
	Fingerprint nuzlocke.Fingerprint
}

// Empty 是否没有可用数据
func (d RealtimeData) Empty() bool {
	return strings.TrimSpace(d.GameData) == "" || strings.TrimSpace(d.SavesData) == ""
}

// LastUpdateString RFC 3339 UTC 时间，未更新过时返回空串
func (d RealtimeData) LastUpdateString() string {
	if d.LastUpdate.IsZero() {
		return ""
	}
	return d.LastUpdate.UTC().Format(TimestampLayout)
}

// Store 状态单元。只有 push service 写入。
type Store interface {
	// Load ok 为 false 表示从未写入
	Load(ctx context.Context) (RealtimeData, bool, error)
	Save(ctx context.Context, data RealtimeData) error
}

// AsSource 把状态单元当作原始数据源，供服务端的 emitter 使用。
// 推送内容不携带活动 run id，ActiveGameID 留空，由调用方取索引中的第一个 run。
func AsSource(store Store) source.Source {
	return source.SourceFunc(func(ctx context.Context) (source.Raw, error) {
		data, ok, err := store.Load(ctx)
		if err != nil {
			return source.Raw{}, err
		}
		if !ok || data.Empty() {
			return source.Raw{}, source.ErrNoActiveRun
		}
		return source.Raw{SavesData: data.SavesData, GameData: data.GameData}, nil
	})
}
