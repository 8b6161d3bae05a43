package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"nuzlocke-bridge/internal/modules/bridge/state"
	"nuzlocke-bridge/internal/pkg/response"
)

// StatusFunc 返回某个依赖的连接状态（connected / disconnected）
type StatusFunc func(ctx context.Context) string

// StatusDisabled 依赖未配置
const StatusDisabled = "disabled"

// HealthHandler 健康检查
type HealthHandler struct {
	respWriter response.Writer
	checks     map[string]StatusFunc
	now        func() time.Time
}

// NewHealthHandler 创建健康检查 Handler
func NewHealthHandler(respWriter response.Writer) *HealthHandler {
	return &HealthHandler{
		respWriter: respWriter,
		checks:     make(map[string]StatusFunc),
		now:        time.Now,
	}
}

// Register 注册依赖检查；fn 为 nil 时显示为 disabled
func (h *HealthHandler) Register(name string, fn StatusFunc) {
	h.checks[name] = fn
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

// Health GET /health
// 依赖断开不影响 HTTP 状态码，bridge 在没有 Redis/NATS 时也能工作
func (h *HealthHandler) Health(c echo.Context) error {
	services := make(map[string]string, len(h.checks))
	for name, fn := range h.checks {
		if fn == nil {
			services[name] = StatusDisabled
			continue
		}
		services[name] = fn(c.Request().Context())
	}

	return response.EchoJSON(c, h.respWriter, HealthResponse{
		Status:    "ok",
		Timestamp: h.now().UTC().Format(state.TimestampLayout),
		Services:  services,
	}, http.StatusOK)
}
