package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"nuzlocke-bridge/internal/pkg/xerrors"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"
)

func TestParseAcceptLanguage(t *testing.T) {
	tests := []struct {
		header string
		want   language.Tag
	}{
		{"", language.English},
		{"zh-CN,zh;q=0.9,en;q=0.8", language.Chinese},
		{"en-US,en;q=0.9", language.English},
		{"fr-FR", language.English},
		{";;;invalid", language.English},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseAcceptLanguage(tt.header))
		})
	}
}

func TestGetErrorMessage(t *testing.T) {
	assert.Equal(t, "Game not found", GetErrorMessage(xerrors.CodeRunNotFound, language.English))
	assert.Equal(t, "找不到该游戏存档", GetErrorMessage(xerrors.CodeRunNotFound, language.Chinese))
	assert.Equal(t, "Invalid endpoint", GetErrorMessage(xerrors.CodeInvalidEndpoint, DefaultLanguage))
}

func TestLocalizeError_KeepsCustomMessage(t *testing.T) {
	ctx := WithLanguage(context.Background(), language.Chinese)

	assert.Equal(t, "无效的 JSON 数据", LocalizeError(ctx, xerrors.FromCode(xerrors.CodeInvalidPayload)))
	assert.Equal(t, "boom", LocalizeError(ctx, xerrors.New(xerrors.CodeInternalError, "boom")))
}

func TestMiddleware_QueryParamWins(t *testing.T) {
	e := echo.New()
	e.Use(Middleware())

	var got language.Tag
	e.GET("/", func(c echo.Context) error {
		got = GetLanguage(c.Request().Context())
		return c.NoContent(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/?lang=zh", nil)
	req.Header.Set("Accept-Language", "en-US")
	e.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, language.Chinese, got)
}
