package state

import (
	"context"
	"os"
	"testing"
	"time"

	"nuzlocke-bridge/internal/nuzlocke"
	"nuzlocke-bridge/internal/pkg/metrics"
	"nuzlocke-bridge/internal/pkg/redis"
	"nuzlocke-bridge/internal/source"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() RealtimeData {
	return RealtimeData{
		GameData:    nuzlocke.DemoGameData,
		SavesData:   nuzlocke.DemoSavesData,
		LastUpdate:  time.Date(2024, 5, 1, 12, 30, 0, 250_000_000, time.UTC),
		Fingerprint: nuzlocke.ComputeFingerprint(nuzlocke.DemoSavesData, nuzlocke.DemoGameData),
	}
}

func TestRealtimeData_LastUpdateString(t *testing.T) {
	assert.Equal(t, "", RealtimeData{}.LastUpdateString())

	local := time.Date(2024, 5, 1, 14, 30, 0, 250_000_000, time.FixedZone("CEST", 2*3600))
	assert.Equal(t, "2024-05-01T12:30:00.250Z", RealtimeData{LastUpdate: local}.LastUpdateString())
}

func TestMemoryStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, ok, err := store.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Save(ctx, sample()))
	got, ok, err := store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, sample(), got)
}

func TestAsSource(t *testing.T) {
	ctx := context.Background()

	_, err := AsSource(NewMemoryStore()).Read(ctx)
	assert.ErrorIs(t, err, source.ErrNoActiveRun)

	_, err = AsSource(NewMemoryStoreWith(RealtimeData{SavesData: "a|1|A|g|s|1"})).Read(ctx)
	assert.ErrorIs(t, err, source.ErrNoActiveRun, "missing game data")

	raw, err := AsSource(NewMemoryStoreWith(sample())).Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "", raw.ActiveGameID)
	assert.Equal(t, nuzlocke.DemoSavesData, raw.SavesData)
	assert.Equal(t, nuzlocke.DemoGameData, raw.GameData)
}

func newRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	host := "localhost"
	if h := os.Getenv("REDIS_TEST_HOST"); h != "" {
		host = h
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	m := metrics.NewBridgeMetricsWithRegistry("test", prometheus.NewRegistry())
	c, err := redis.NewClient(ctx, redis.Config{Host: host, Port: "6379", DB: 15}, m)
	if err != nil {
		t.Skipf("redis not available: %v", err)
	}
	key := "bridge:test:state:" + uuid.NewString()
	t.Cleanup(func() {
		_ = c.DeleteKey(context.Background(), key)
		_ = c.Close()
	})
	return NewRedisStore(c, key)
}

func TestRedisStore_RoundTrip(t *testing.T) {
	store := newRedisStore(t)
	ctx := context.Background()

	_, ok, err := store.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Save(ctx, sample()))
	got, ok, err := store.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sample().GameData, got.GameData)
	assert.Equal(t, sample().SavesData, got.SavesData)
	assert.Equal(t, sample().Fingerprint, got.Fingerprint)
	assert.True(t, sample().LastUpdate.Equal(got.LastUpdate))
}

func TestNewRedisStore_DefaultKey(t *testing.T) {
	assert.Equal(t, DefaultRedisKey, NewRedisStore(nil, "").key)
}
