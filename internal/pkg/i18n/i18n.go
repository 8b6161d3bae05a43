// File: internal/pkg/i18n/i18n.go
package i18n

import (
	"context"
	"strings"

	"nuzlocke-bridge/internal/pkg/ctxkey"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// 支持的语言
var (
	// 默认语言为英文（overlay 客户端按英文消息匹配）
	DefaultLanguage = language.English
	// 支持的语言列表，第一个为匹配失败时的回退
	SupportedLanguages = []language.Tag{
		language.English, // en
		language.Chinese, // zh
	}
	matcher = language.NewMatcher(SupportedLanguages)
)

// WithLanguage 在 context 中设置语言偏好
func WithLanguage(ctx context.Context, lang language.Tag) context.Context {
	return ctxkey.WithValue(ctx, ctxkey.Language, lang)
}

// GetLanguage 从 context 中获取语言偏好
func GetLanguage(ctx context.Context) language.Tag {
	if lang, ok := ctx.Value(ctxkey.Language).(language.Tag); ok {
		return lang
	}
	return DefaultLanguage
}

// ParseAcceptLanguage 解析 Accept-Language 头部
// 例如: "zh-CN,zh;q=0.9,en;q=0.8"
func ParseAcceptLanguage(acceptLanguage string) language.Tag {
	if acceptLanguage == "" {
		return DefaultLanguage
	}

	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return DefaultLanguage
	}

	return normalize(tags...)
}

// ParseLanguageCode 从语言代码解析 Tag
// 支持: "zh", "zh-CN", "en", "en-US" 等
func ParseLanguageCode(code string) language.Tag {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return DefaultLanguage
	}

	tag, err := language.Parse(code)
	if err != nil {
		return DefaultLanguage
	}
	return normalize(tag)
}

// normalize 把匹配结果收敛到 SupportedLanguages 中的基础标签（去掉 -u-rg 等扩展）
func normalize(tags ...language.Tag) language.Tag {
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return DefaultLanguage
	}
	return SupportedLanguages[idx]
}

// Printer 返回指定语言的打印器（使用错误消息目录）
func Printer(lang language.Tag) *message.Printer {
	return message.NewPrinter(lang, message.Catalog(catalogue))
}

// T 翻译函数 - 从 context 中获取语言并翻译
func T(ctx context.Context, key string, args ...interface{}) string {
	return Printer(GetLanguage(ctx)).Sprintf(key, args...)
}

// GetLanguageCode 获取语言代码 (zh, en)
func GetLanguageCode(lang language.Tag) string {
	base, _ := lang.Base()
	return base.String()
}
