// File: internal/pkg/i18n/error_messages.go
package i18n

import (
	"context"
	"fmt"

	"nuzlocke-bridge/internal/pkg/xerrors"

	"golang.org/x/text/language"
	"golang.org/x/text/message/catalog"
)

// chineseMessages 错误码的中文消息；英文直接使用 xerrors 中的默认消息
var chineseMessages = map[xerrors.ErrorCode]string{
	xerrors.CodeSuccess:           "操作成功",
	xerrors.CodeInternalError:     "内部服务错误",
	xerrors.CodeInvalidParams:     "参数错误",
	xerrors.CodeInvalidRequest:    "请求格式错误",
	xerrors.CodeResourceNotFound:  "资源不存在",
	xerrors.CodeRateLimitExceeded: "请求频率限制",

	xerrors.CodeInvalidEndpoint: "无效的 endpoint",
	xerrors.CodeMissingGameData: "缺少游戏数据，请提供 x-game-data 和 x-saves-data 请求头。",
	xerrors.CodeRunNotFound:     "找不到该游戏存档",
	xerrors.CodeNoActiveRun:     "没有正在进行的游戏",

	xerrors.CodeMalformedSaveIndex: "存档索引格式错误",
	xerrors.CodeMalformedGameState: "游戏状态格式错误",
	xerrors.CodeInvalidPayload:     "无效的 JSON 数据",

	xerrors.CodeExternalServiceError: "外部服务错误",
	xerrors.CodeStorageError:         "存储读取失败",
	xerrors.CodeCacheError:           "缓存服务错误",
	xerrors.CodeMessageQueueError:    "消息队列错误",
	xerrors.CodeSyncRejected:         "同步目标拒绝了本次推送",
}

var catalogue = buildCatalog()

func buildCatalog() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(DefaultLanguage))
	for code, zh := range chineseMessages {
		key := messageKey(code)
		_ = b.SetString(language.English, key, code.Message())
		_ = b.SetString(language.Chinese, key, zh)
	}
	return b
}

func messageKey(code xerrors.ErrorCode) string {
	return fmt.Sprintf("error.%d", code.ToInt())
}

// GetErrorMessage 获取错误码对应语言的消息
func GetErrorMessage(code xerrors.ErrorCode, lang language.Tag) string {
	if _, ok := chineseMessages[code]; !ok {
		return code.Message()
	}
	return Printer(lang).Sprintf(messageKey(code))
}

// LocalizeError 返回 appErr 在 ctx 语言下的消息
// 自定义消息（与错误码默认消息不同）保持原样
func LocalizeError(ctx context.Context, appErr *xerrors.AppError) string {
	if appErr.Message != appErr.Code.Message() {
		return appErr.Message
	}
	return GetErrorMessage(appErr.Code, GetLanguage(ctx))
}
