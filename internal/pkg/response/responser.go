package response

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"nuzlocke-bridge/internal/pkg/i18n"
	"nuzlocke-bridge/internal/pkg/log"
	"nuzlocke-bridge/internal/pkg/xerrors"
)

// Writer 统一的 HTTP 响应输出
// overlay 消费的是裸 JSON（不包装 code/data），错误体为 {error, ...metadata}
type Writer interface {
	WriteSuccess(ctx context.Context, w http.ResponseWriter, data any) error
	WriteError(ctx context.Context, w http.ResponseWriter, err error) error
	WriteJSON(ctx context.Context, w http.ResponseWriter, data any, statusCode int) error
}

// JSONWriter Writer 的默认实现
type JSONWriter struct {
	logger log.Logger
	indent bool
}

// NewResponseHandler 创建响应输出器；indent 为 true 时输出两空格缩进
func NewResponseHandler(logger log.Logger, indent bool) *JSONWriter {
	if logger == nil {
		logger = log.GetLogger()
	}
	return &JSONWriter{logger: logger, indent: indent}
}

// WriteSuccess 200 + data
func (h *JSONWriter) WriteSuccess(ctx context.Context, w http.ResponseWriter, data any) error {
	return h.WriteJSON(ctx, w, data, http.StatusOK)
}

// WriteJSON 以指定状态码输出 data
func (h *JSONWriter) WriteJSON(ctx context.Context, w http.ResponseWriter, data any, statusCode int) error {
	body, err := h.marshal(data)
	if err != nil {
		h.logger.ErrorContext(ctx, "encode response failed", log.Err(err))
		return h.writeRaw(ctx, w, http.StatusInternalServerError, []byte(`{"error":"Internal server error"}`))
	}
	return h.writeRaw(ctx, w, statusCode, body)
}

// WriteError 把 err 转为 AppError 后按错误码输出
// 非 AppError 统一视为 500，原始错误消息放在 message 字段
func (h *JSONWriter) WriteError(ctx context.Context, w http.ResponseWriter, err error) error {
	appErr, ok := xerrors.As(err)
	if !ok {
		appErr = xerrors.FromCode(xerrors.CodeInternalError)
		if err != nil {
			appErr.WithMetadata("message", err.Error())
		}
	}

	body, mErr := ErrorBody(ctx, appErr)
	if mErr != nil {
		h.logger.ErrorContext(ctx, "encode error response failed", log.Err(mErr))
		body = []byte(`{"error":"Internal server error"}`)
	}
	if h.indent {
		var buf bytes.Buffer
		if json.Indent(&buf, body, "", "  ") == nil {
			body = buf.Bytes()
		}
	}
	return h.writeRaw(ctx, w, xerrors.GetHTTPStatus(appErr.Code), body)
}

// ErrorBody 生成 {error, ...metadata}，metadata 按写入顺序输出
func ErrorBody(ctx context.Context, appErr *xerrors.AppError) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	msg, err := json.Marshal(i18n.LocalizeError(ctx, appErr))
	if err != nil {
		return nil, err
	}
	buf.WriteString(`"error":`)
	buf.Write(msg)

	for _, key := range appErr.MetadataKeys() {
		if key == "error" {
			continue
		}
		value, _ := appErr.MetadataValue(key)
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		buf.WriteByte(',')
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (h *JSONWriter) marshal(data any) ([]byte, error) {
	if h.indent {
		return json.MarshalIndent(data, "", "  ")
	}
	return json.Marshal(data)
}

func (h *JSONWriter) writeRaw(ctx context.Context, w http.ResponseWriter, statusCode int, body []byte) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	if _, err := w.Write(body); err != nil {
		h.logger.WarnContext(ctx, "write response failed", log.Err(err))
		return err
	}
	return nil
}
