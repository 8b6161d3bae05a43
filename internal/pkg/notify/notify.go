package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

var (
	ncMu sync.RWMutex
	nc   *nats.Conn
)

// SetNatsConn 设置全局 NATS 连接（由 main 提供，nil 表示关闭通知）
func SetNatsConn(conn *nats.Conn) {
	ncMu.Lock()
	defer ncMu.Unlock()
	nc = conn
}

// Enabled 是否已配置 NATS 连接
func Enabled() bool {
	ncMu.RLock()
	defer ncMu.RUnlock()
	return nc != nil
}

// Subjects
const (
	// SubjectDataRefreshed 服务端接收到新的推送数据
	SubjectDataRefreshed = "nuzlocke.data.refreshed"
	// SubjectEventPrefix 轮询事件，后缀为事件类型（dataUpdate / teamUpdate / ...）
	SubjectEventPrefix = "nuzlocke.events."
)

// RefreshedEvent 推送刷新通知；只携带指纹和时间，订阅方按需回查 /api/external
type RefreshedEvent struct {
	Fingerprint string `json:"fingerprint"`
	LastUpdate  string `json:"lastUpdate"`
	ReceivedAt  int64  `json:"receivedAt"`
}

// PublishRefreshed 发布推送刷新事件
func PublishRefreshed(ctx context.Context, fingerprint, lastUpdate string) error {
	return Publish(ctx, SubjectDataRefreshed, RefreshedEvent{
		Fingerprint: fingerprint,
		LastUpdate:  lastUpdate,
		ReceivedAt:  time.Now().UnixMilli(),
	})
}

// PublishEvent 发布轮询事件
func PublishEvent(ctx context.Context, kind string, payload interface{}) error {
	return Publish(ctx, SubjectEventPrefix+kind, payload)
}

// Publish 序列化为 JSON 后发布到 subject
func Publish(ctx context.Context, subject string, payload interface{}) error {
	ncMu.RLock()
	conn := nc
	ncMu.RUnlock()
	if conn == nil {
		return nil // 没有连接时静默降级
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s event failed: %w", subject, err)
	}
	return conn.Publish(subject, data)
}
