package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config bridge 服务端与 CLI 共用的运行配置
type Config struct {
	Environment string
	LogLevel    string

	HTTPPort     string
	SyncURL      string
	PollInterval time.Duration
	SyncInterval time.Duration
	DemoFallback bool

	// 为空时使用内存状态单元
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// 为空时不发送 NATS 通知
	NATSAddress string
}

// Load 读取 .env（若存在）后按 "环境变量 > 默认值" 组装配置
func Load(envFiles ...string) *Config {
	LoadDotEnv(envFiles...)

	return &Config{
		Environment:   GetEnvOrDefault("ENVIRONMENT", "development"),
		LogLevel:      GetEnvOrDefault("LOG_LEVEL", "info"),
		HTTPPort:      GetEnvOrDefault("BRIDGE_HTTP_PORT", "5174"),
		SyncURL:       strings.TrimRight(GetEnvOrDefault("BRIDGE_SYNC_URL", "http://localhost:5174"), "/"),
		PollInterval:  GetMillisOrDefault("BRIDGE_POLL_INTERVAL_MS", 1000),
		SyncInterval:  GetMillisOrDefault("BRIDGE_SYNC_INTERVAL_MS", 2000),
		DemoFallback:  GetBoolOrDefault("BRIDGE_DEMO_FALLBACK", true),
		RedisHost:     os.Getenv("REDIS_HOST"),
		RedisPort:     GetEnvOrDefault("REDIS_PORT", "6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       GetIntOrDefault("REDIS_DB", 0),
		NATSAddress:   os.Getenv("NATS_ADDRESS"),
	}
}

// LoadDotEnv 加载 .env 文件，文件不存在时静默跳过，已存在的环境变量不会被覆盖
func LoadDotEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		_ = godotenv.Load(f)
	}
}

// RedisEnabled 是否配置了 Redis
func (c *Config) RedisEnabled() bool {
	return c.RedisHost != ""
}

// NATSEnabled 是否配置了 NATS
func (c *Config) NATSEnabled() bool {
	return c.NATSAddress != ""
}

// IsProduction 是否为生产环境
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// LogFields 返回可安全输出到日志的配置项
func (c *Config) LogFields() map[string]any {
	return SanitizeConfigForLog(map[string]any{
		"environment":    c.Environment,
		"http_port":      c.HTTPPort,
		"sync_url":       c.SyncURL,
		"poll_interval":  c.PollInterval.String(),
		"sync_interval":  c.SyncInterval.String(),
		"demo_fallback":  c.DemoFallback,
		"redis_host":     c.RedisHost,
		"redis_password": c.RedisPassword,
		"nats_address":   c.NATSAddress,
	})
}

// GetEnvOrDefault 获取环境变量，如果不存在则返回默认值
// 这是配置加载的核心函数：环境变量 > 默认值
func GetEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// GetIntOrDefault 获取整数环境变量，无法解析时返回默认值
func GetIntOrDefault(key string, defaultValue int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

// GetBoolOrDefault 获取布尔环境变量
func GetBoolOrDefault(key string, defaultValue bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

// GetMillisOrDefault 读取毫秒数，非正数或无法解析时返回默认值
func GetMillisOrDefault(key string, defaultMillis int) time.Duration {
	ms := GetIntOrDefault(key, defaultMillis)
	if ms <= 0 {
		ms = defaultMillis
	}
	return time.Duration(ms) * time.Millisecond
}

// SanitizeConfigForLog 清理配置中的敏感信息，用于日志输出
func SanitizeConfigForLog(config map[string]any) map[string]any {
	sanitized := make(map[string]any)
	for k, v := range config {
		if isSensitiveKey(k) {
			sanitized[k] = "***REDACTED***"
		} else {
			sanitized[k] = v
		}
	}
	return sanitized
}

// isSensitiveKey 判断是否是敏感配置项
func isSensitiveKey(key string) bool {
	lowerKey := strings.ToLower(key)
	sensitiveKeywords := []string{
		"password", "secret", "token", "credential", "private", "api_key",
	}

	for _, keyword := range sensitiveKeywords {
		if strings.Contains(lowerKey, keyword) {
			return true
		}
	}
	return false
}
