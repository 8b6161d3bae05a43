package state

import (
	"context"
	"fmt"
	"time"

	"nuzlocke-bridge/internal/nuzlocke"
	"nuzlocke-bridge/internal/pkg/redis"
)

// DefaultRedisKey 状态单元所在的 hash
const DefaultRedisKey = "nuzlocke-bridge:realtime"

const (
	fieldGameData    = "gameData"
	fieldSavesData   = "savesData"
	fieldLastUpdate  = "lastUpdate"
	fieldFingerprint = "fingerprint"
)

// RedisStore 存放在 Redis hash 中的状态单元，多个 bridge 副本共享
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore 创建 Redis 状态单元，key 为空时使用 DefaultRedisKey
func NewRedisStore(client *redis.Client, key string) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{client: client, key: key}
}

// Load 实现 Store
func (r *RedisStore) Load(ctx context.Context) (RealtimeData, bool, error) {
	fields, err := r.client.HGetAllMap(ctx, r.key)
	if err != nil {
		return RealtimeData{}, false, fmt.Errorf("load realtime data: %w", err)
	}
	if len(fields) == 0 {
		return RealtimeData{}, false, nil
	}

	data := RealtimeData{
		GameData:    fields[fieldGameData],
		SavesData:   fields[fieldSavesData],
		Fingerprint: nuzlocke.Fingerprint(fields[fieldFingerprint]),
	}
	if ts := fields[fieldLastUpdate]; ts != "" {
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return RealtimeData{}, false, fmt.Errorf("parse lastUpdate %q: %w", ts, err)
		}
		data.LastUpdate = t
	}
	return data, true, nil
}

// Save 实现 Store
func (r *RedisStore) Save(ctx context.Context, data RealtimeData) error {
	err := r.client.HSetAll(ctx, r.key, map[string]interface{}{
		fieldGameData:    data.GameData,
		fieldSavesData:   data.SavesData,
		fieldLastUpdate:  data.LastUpdateString(),
		fieldFingerprint: string(data.Fingerprint),
	})
	if err != nil {
		return fmt.Errorf("save realtime data: %w", err)
	}
	return nil
}
