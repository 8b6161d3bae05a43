package handler

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"

	"nuzlocke-bridge/internal/modules/bridge/service"
	"nuzlocke-bridge/internal/pkg/response"
	"nuzlocke-bridge/internal/pkg/xerrors"
)

// PushHandler 接收浏览器端推送的 localStorage 数据
type PushHandler struct {
	pushService *service.PushService
	respWriter  response.Writer
}

// NewPushHandler 创建推送 Handler
func NewPushHandler(pushService *service.PushService, respWriter response.Writer) *PushHandler {
	return &PushHandler{
		pushService: pushService,
		respWriter:  respWriter,
	}
}

// PushResponse 推送成功的响应
type PushResponse struct {
	Success   bool    `json:"success"`
	Timestamp *string `json:"timestamp"`
}

// Push POST /api/update-data
func (h *PushHandler) Push(c echo.Context) error {
	// 1. 解析请求体（不要求 Content-Type，浏览器端可能以 text/plain 发送）
	var req service.PushRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		return response.EchoError(c, h.respWriter, xerrors.NewInvalidPayloadError(err))
	}

	// 2. 校验字段
	if err := c.Validate(&req); err != nil {
		payloadErr := xerrors.NewInvalidPayloadError(err)
		if appErr, ok := xerrors.As(err); ok {
			if field, ok := appErr.MetadataValue("field"); ok {
				payloadErr.WithMetadata("field", field)
			}
		}
		return response.EchoError(c, h.respWriter, payloadErr)
	}

	// 3. 写入状态单元
	result, err := h.pushService.Accept(c.Request().Context(), req)
	if err != nil {
		return response.EchoError(c, h.respWriter, err)
	}

	resp := PushResponse{Success: true}
	if result.Timestamp != "" {
		resp.Timestamp = &result.Timestamp
	}
	return response.EchoJSON(c, h.respWriter, resp, http.StatusOK)
}
