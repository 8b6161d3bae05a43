package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"nuzlocke-bridge/internal/pkg/metrics"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient 连接 REDIS_TEST_HOST:6379（默认 localhost），不可用时跳过
func newTestClient(t *testing.T) (*Client, *metrics.BridgeMetrics) {
	t.Helper()
	host, port := "localhost", "6379"
	if addr := os.Getenv("REDIS_TEST_HOST"); addr != "" {
		host = addr
	}

	m := metrics.NewBridgeMetricsWithRegistry("test", prometheus.NewRegistry())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	c, err := NewClient(ctx, Config{Host: host, Port: port, DB: 15}, m)
	if err != nil {
		t.Skipf("redis not available: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c, m
}

func TestConfig_Addr(t *testing.T) {
	assert.Equal(t, "redis:6380", Config{Host: "redis", Port: "6380"}.Addr())
}

func TestClient_HSetAllRoundTrip(t *testing.T) {
	c, m := newTestClient(t)
	ctx := context.Background()
	key := "bridge:test:" + uuid.NewString()
	t.Cleanup(func() { _ = c.DeleteKey(ctx, key) })

	require.NoError(t, c.HSetAll(ctx, key, map[string]interface{}{"a": "1", "b": "2"}))
	require.NoError(t, c.HSetAll(ctx, key, map[string]interface{}{"a": "3"}))

	got, err := c.HGetAllMap(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "3"}, got, "HSetAll replaces the whole hash")

	assert.Equal(t, 2.0, testutil.ToFloat64(
		m.StateOperationsTotal.WithLabelValues(metrics.GetServiceName(), "redis", "HSET", "success")))
}

func TestClient_GetStringMissing(t *testing.T) {
	c, _ := newTestClient(t)

	_, ok, err := c.GetString(context.Background(), "bridge:test:missing:"+uuid.NewString())
	require.NoError(t, err)
	assert.False(t, ok)
}
