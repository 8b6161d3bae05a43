package security

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// SecurityHeadersConfig 安全头配置
type SecurityHeadersConfig struct {
	ContentTypeNosniff string
	ReferrerPolicy     string
}

// DefaultSecurityHeadersConfig 返回默认的安全头配置
// 不设置 X-Frame-Options / CSP：overlay 页面会被嵌入 iframe
func DefaultSecurityHeadersConfig() SecurityHeadersConfig {
	return SecurityHeadersConfig{
		ContentTypeNosniff: "nosniff",
		ReferrerPolicy:     "no-referrer",
	}
}

// SecurityHeadersMiddleware 安全头中间件
func SecurityHeadersMiddleware() echo.MiddlewareFunc {
	return SecurityHeadersMiddlewareWithConfig(DefaultSecurityHeadersConfig())
}

// SecurityHeadersMiddlewareWithConfig 使用自定义配置的安全头中间件
func SecurityHeadersMiddlewareWithConfig(config SecurityHeadersConfig) echo.MiddlewareFunc {
	return middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:      "",
		ContentTypeNosniff: config.ContentTypeNosniff,
		XFrameOptions:      "",
		ReferrerPolicy:     config.ReferrerPolicy,
	})
}
