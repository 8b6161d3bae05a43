package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"nuzlocke-bridge/internal/pkg/metrics"

	"github.com/redis/go-redis/v9"
)

// Config Redis 配置
type Config struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// Addr 返回 host:port
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// Client Redis 客户端封装，所有操作都记录到 state 指标
type Client struct {
	*redis.Client
	metrics *metrics.BridgeMetrics
}

// NewClient 创建 Redis 客户端并测试连接
func NewClient(ctx context.Context, cfg Config, m *metrics.BridgeMetrics) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis connect %s: %w", cfg.Addr(), err)
	}

	return &Client{Client: rdb, metrics: m}, nil
}

// Wrap 包装已有的 go-redis 客户端（测试用）
func Wrap(rdb *redis.Client, m *metrics.BridgeMetrics) *Client {
	return &Client{Client: rdb, metrics: m}
}

// HSetAll 在一个 MULTI/EXEC 中覆盖整个 hash，读方不会看到一半的数据
func (c *Client) HSetAll(ctx context.Context, key string, fields map[string]interface{}) error {
	start := time.Now()
	_, err := c.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, fields)
		return nil
	})
	c.record("HSET", err, start)
	return err
}

// HGetAllMap 读取整个 hash；key 不存在时返回空 map 和 nil
func (c *Client) HGetAllMap(ctx context.Context, key string) (map[string]string, error) {
	start := time.Now()
	result, err := c.HGetAll(ctx, key).Result()
	c.record("HGETALL", err, start)
	return result, err
}

// GetString 获取字符串值，key 不存在时 ok 为 false
func (c *Client) GetString(ctx context.Context, key string) (value string, ok bool, err error) {
	start := time.Now()
	value, err = c.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		c.record("GET", nil, start)
		return "", false, nil
	}
	c.record("GET", err, start)
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// DeleteKey 删除键
func (c *Client) DeleteKey(ctx context.Context, keys ...string) error {
	start := time.Now()
	err := c.Del(ctx, keys...).Err()
	c.record("DEL", err, start)
	return err
}

func (c *Client) record(operation string, err error, start time.Time) {
	c.metrics.RecordStateOperation("redis", operation, err == nil, time.Since(start))
}

// Status 返回 /health 中展示的连接状态
func (c *Client) Status(ctx context.Context) string {
	pingCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := c.Ping(pingCtx).Err(); err != nil {
		return "disconnected"
	}
	return "connected"
}
