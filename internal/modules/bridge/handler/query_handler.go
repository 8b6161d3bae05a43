package handler

import (
	"github.com/labstack/echo/v4"

	"nuzlocke-bridge/internal/modules/bridge/service"
	"nuzlocke-bridge/internal/pkg/ctxkey"
	"nuzlocke-bridge/internal/pkg/response"
	"nuzlocke-bridge/internal/pkg/security"
)

// QueryHandler overlay 查询接口
type QueryHandler struct {
	queryService *service.QueryService
	respWriter   response.Writer
}

// NewQueryHandler 创建查询 Handler
func NewQueryHandler(queryService *service.QueryService, respWriter response.Writer) *QueryHandler {
	return &QueryHandler{
		queryService: queryService,
		respWriter:   respWriter,
	}
}

// ==================== HTTP Request Models ====================

// QueryParams GET /api/external 的查询参数
type QueryParams struct {
	Endpoint string `query:"endpoint"`
	GameID   string `query:"gameId" validate:"run_id"`
}

// ==================== HTTP Handlers ====================

// Query GET /api/external?endpoint=&gameId=
// 原始数据通过 x-game-data / x-saves-data 请求头传入，缺省时使用最近一次推送的数据
func (h *QueryHandler) Query(c echo.Context) error {
	// 1. 绑定并校验参数
	var params QueryParams
	if err := c.Bind(&params); err != nil {
		return response.EchoBadRequest(c, h.respWriter, "query", err.Error())
	}
	if err := c.Validate(&params); err != nil {
		return response.EchoError(c, h.respWriter, err)
	}

	// 2. 查询
	req := c.Request()
	out, err := h.queryService.Query(req.Context(), service.QueryRequest{
		Endpoint:  params.Endpoint,
		GameID:    params.GameID,
		GameData:  req.Header.Get(security.HeaderGameData),
		SavesData: req.Header.Get(security.HeaderSavesData),
	})
	if err != nil {
		return response.EchoError(c, h.respWriter, err)
	}

	// 3. 记录数据来源，供日志中间件输出
	if meta, ok := metaOf(out); ok {
		c.SetRequest(req.WithContext(ctxkey.WithValue(req.Context(), ctxkey.DataSource, meta.DataSource)))
	}
	return response.EchoOK(c, h.respWriter, out)
}

func metaOf(v any) (service.Meta, bool) {
	switch r := v.(type) {
	case service.StatusResponse:
		return r.Meta, true
	case service.TeamResponse:
		return r.Meta, true
	case service.BoxResponse:
		return r.Meta, true
	case service.DeadResponse:
		return r.Meta, true
	case service.BossesResponse:
		return r.Meta, true
	case service.FullResponse:
		return r.Meta, true
	}
	return service.Meta{}, false
}
