// File: internal/pkg/xerrors/codes.go
package xerrors

import "fmt"

// ErrorCode 错误码类型（类型安全）
type ErrorCode int

// IsValid 检查错误码是否在预定义列表中
func (c ErrorCode) IsValid() bool {
	_, exists := codeMessages[c]
	return exists
}

// String 返回错误码的字符串表示
func (c ErrorCode) String() string {
	if msg, ok := codeMessages[c]; ok {
		return fmt.Sprintf("%d (%s)", c, msg)
	}
	return fmt.Sprintf("%d (undefined)", c)
}

// Message 返回错误码对应的默认（英文）消息，其它语言由 i18n 包翻译
func (c ErrorCode) Message() string {
	if msg, ok := codeMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// ToInt 转换为 int（用于 JSON 序列化等场景）
func (c ErrorCode) ToInt() int {
	return int(c)
}

// -----------------------------------------------------------------------------
// 错误码统一定义
// 按领域分段，便于管理。
// -----------------------------------------------------------------------------
const (
	// 1xxxxx: 通用错误码
	CodeSuccess           ErrorCode = 100000 // 操作成功
	CodeInternalError     ErrorCode = 100001 // 内部服务错误
	CodeInvalidParams     ErrorCode = 100002 // 参数错误
	CodeInvalidRequest    ErrorCode = 100003 // 请求格式错误
	CodeResourceNotFound  ErrorCode = 100404 // 资源不存在
	CodeRateLimitExceeded ErrorCode = 100429 // 请求频率限制

	// 2xxxxx: 查询路由错误码
	CodeInvalidEndpoint ErrorCode = 200001 // 未知的 endpoint
	CodeMissingGameData ErrorCode = 200002 // 没有可用的游戏数据
	CodeRunNotFound     ErrorCode = 200404 // run 不存在
	CodeNoActiveRun     ErrorCode = 200405 // 没有活动的 run

	// 3xxxxx: 存档数据错误码
	CodeMalformedSaveIndex ErrorCode = 300001 // 存档索引格式错误
	CodeMalformedGameState ErrorCode = 300002 // 游戏状态 JSON 格式错误
	CodeInvalidPayload     ErrorCode = 300003 // 推送数据格式错误

	// 7xxxxx: 外部服务错误码
	CodeExternalServiceError ErrorCode = 700001 // 外部服务错误
	CodeStorageError         ErrorCode = 700003 // 存储读取错误
	CodeCacheError           ErrorCode = 700004 // 缓存服务错误
	CodeMessageQueueError    ErrorCode = 700005 // 消息队列错误
	CodeSyncRejected         ErrorCode = 700006 // 同步目标拒绝了推送
)

// -----------------------------------------------------------------------------
// HTTP 状态码常量定义
// -----------------------------------------------------------------------------
const (
	HTTPStatusOK = 200 // 请求成功

	HTTPStatusBadRequest      = 400 // 错误请求
	HTTPStatusNotFound        = 404 // 资源未找到
	HTTPStatusTooManyRequests = 429 // 请求过多

	HTTPStatusInternalServerError = 500 // 内部服务器错误
	HTTPStatusBadGateway          = 502 // 错误网关
	HTTPStatusServiceUnavailable  = 503 // 服务不可用
)

// -----------------------------------------------------------------------------
// 错误消息映射
// -----------------------------------------------------------------------------
var codeMessages = map[ErrorCode]string{
	CodeSuccess:           "OK",
	CodeInternalError:     "Internal server error",
	CodeInvalidParams:     "Invalid parameters",
	CodeInvalidRequest:    "Invalid request",
	CodeResourceNotFound:  "Resource not found",
	CodeRateLimitExceeded: "Too many requests",

	CodeInvalidEndpoint: "Invalid endpoint",
	CodeMissingGameData: "Missing game data. Please provide x-game-data and x-saves-data headers.",
	CodeRunNotFound:     "Game not found",
	CodeNoActiveRun:     "No active game",

	CodeMalformedSaveIndex: "Malformed save index",
	CodeMalformedGameState: "Malformed game state",
	CodeInvalidPayload:     "Invalid JSON data",

	CodeExternalServiceError: "External service error",
	CodeStorageError:         "Storage read failed",
	CodeCacheError:           "Cache service error",
	CodeMessageQueueError:    "Message queue error",
	CodeSyncRejected:         "Sync target rejected the update",
}

// GetHTTPStatus 根据错误码获取HTTP状态码
func GetHTTPStatus(code ErrorCode) int {
	switch {
	case code == CodeSuccess:
		return HTTPStatusOK
	case code == CodeResourceNotFound || code == CodeRunNotFound || code == CodeNoActiveRun:
		return HTTPStatusNotFound
	case code == CodeInvalidParams || code == CodeInvalidRequest:
		return HTTPStatusBadRequest
	case code == CodeRateLimitExceeded:
		return HTTPStatusTooManyRequests
	case code >= 200000 && code < 400000:
		return HTTPStatusBadRequest
	case code == CodeSyncRejected:
		return HTTPStatusBadGateway
	case code >= 700000:
		return HTTPStatusServiceUnavailable
	default:
		return HTTPStatusInternalServerError
	}
}

// 辅助函数
// getCategoryByCode 根据错误码获取分类
func getCategoryByCode(code ErrorCode) string {
	switch {
	case code >= 100000 && code < 200000:
		return "system"
	case code >= 200000 && code < 300000:
		return "query"
	case code >= 300000 && code < 400000:
		return "savedata"
	case code >= 700000 && code < 800000:
		return "external"
	default:
		return "unknown"
	}
}

// getLevelByCode 根据错误码获取级别
func getLevelByCode(code ErrorCode) ErrorLevel {
	switch {
	case code == CodeSuccess:
		return LevelInfo
	case code >= 100002 && code <= 100003: // 参数错误等
		return LevelWarn
	case code >= 200000 && code < 400000: // 客户端数据问题
		return LevelWarn
	case code >= 700001: // 外部服务错误
		return LevelCritical
	default:
		return LevelError
	}
}

// isRetryableByCode 根据错误码判断是否可重试
func isRetryableByCode(code ErrorCode) bool {
	switch code {
	case CodeInternalError,
		CodeExternalServiceError,
		CodeStorageError,
		CodeCacheError,
		CodeMessageQueueError,
		CodeSyncRejected,
		CodeRateLimitExceeded:
		return true
	}
	return false
}
