package handler

import (
	"bytes"
	"context"
	"html/template"
	"net/http"

	"github.com/labstack/echo/v4"

	"nuzlocke-bridge/internal/modules/bridge/service"
	"nuzlocke-bridge/internal/modules/bridge/state"
	"nuzlocke-bridge/internal/pkg/response"
)

var statusPage = template.Must(template.New("status").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<title>Nuzlocke Bridge</title>
</head>
<body>
<h1>Nuzlocke Bridge</h1>
<h2>Server Status</h2>
<p><strong>Port:</strong> {{.Port}}</p>
<p><strong>Data Status:</strong> {{if eq .DataSource "real"}}Real data connected{{else}}Using mock data{{end}}</p>
<p><strong>Last Update:</strong> {{if .LastUpdate}}{{.LastUpdate}}{{else}}Never{{end}}</p>
<h2>API Endpoints</h2>
<ul>
{{range .Endpoints}}<li><a href="/api/external?endpoint={{.}}">{{.}}</a></li>
{{end}}<li><a href="/api/stream">stream</a></li>
<li><a href="/health">health</a></li>
</ul>
</body>
</html>
`))

// StatusPage 状态页内容
type StatusPage struct {
	Port       string
	DataSource string
	LastUpdate string
	Endpoints  []string
}

// StatusPageHandler GET / 的状态页：数据来源、最近更新时间、接口链接
type StatusPageHandler struct {
	store      state.Store
	respWriter response.Writer
	port       string
}

// NewStatusPageHandler 创建状态页 Handler
func NewStatusPageHandler(store state.Store, respWriter response.Writer, port string) *StatusPageHandler {
	return &StatusPageHandler{store: store, respWriter: respWriter, port: port}
}

// Page 读取状态单元生成页面数据
func (h *StatusPageHandler) Page(ctx context.Context) (StatusPage, error) {
	page := StatusPage{
		Port:       h.port,
		DataSource: service.DataSourceMock,
		Endpoints:  service.AvailableEndpoints(),
	}
	data, ok, err := h.store.Load(ctx)
	if err != nil {
		return page, err
	}
	if ok && !data.Empty() {
		page.DataSource = service.DataSourceReal
		page.LastUpdate = data.LastUpdateString()
	}
	return page, nil
}

// Status GET /
func (h *StatusPageHandler) Status(c echo.Context) error {
	page, err := h.Page(c.Request().Context())
	if err != nil {
		return response.EchoError(c, h.respWriter, err)
	}

	var buf bytes.Buffer
	if err := statusPage.Execute(&buf, page); err != nil {
		return err
	}
	return c.HTMLBlob(http.StatusOK, buf.Bytes())
}
