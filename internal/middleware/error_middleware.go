package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"nuzlocke-bridge/internal/pkg/log"
	"nuzlocke-bridge/internal/pkg/metrics"
	"nuzlocke-bridge/internal/pkg/response"
	"nuzlocke-bridge/internal/pkg/xerrors"

	"github.com/labstack/echo/v4"
)

// ErrorMiddleware 统一错误处理中间件
// errMetrics 可以为 nil
func ErrorMiddleware(respWriter response.Writer, logger log.Logger, errMetrics *metrics.ErrorMetrics) echo.MiddlewareFunc {
	handle := HTTPErrorHandler(respWriter, logger, errMetrics)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := next(c); err != nil {
				handle(err, c)
			}
			return nil
		}
	}
}

// HTTPErrorHandler 作为 echo.HTTPErrorHandler 使用。
// 中间件内部通过 c.Error 上报的错误（例如限流）不经过 ErrorMiddleware，需要由它渲染。
func HTTPErrorHandler(respWriter response.Writer, logger log.Logger, errMetrics *metrics.ErrorMetrics) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		ctx := c.Request().Context()
		if c.Response().Committed {
			// 响应已经写出（例如 websocket 升级之后），只能记录
			logger.WarnContext(ctx, "error after response committed", log.Err(err))
			return
		}

		appErr, known := toAppError(err)
		if !known {
			logger.ErrorContext(ctx, "unhandled error",
				log.Any("original_error", err),
				log.String("error_type", fmt.Sprintf("%T", err)),
			)
		}

		errMetrics.RecordError(appErr, xerrors.GetHTTPStatus(appErr.Code), c.Request().Method)
		if writeErr := respWriter.WriteError(ctx, c.Response().Writer, appErr); writeErr != nil {
			logger.WarnContext(ctx, "write error response failed", log.Err(writeErr))
		}
	}
}

// toAppError known 为 false 表示既不是业务错误也不是 echo 错误
func toAppError(err error) (appErr *xerrors.AppError, known bool) {
	if errors.As(err, &appErr) {
		return appErr, true
	}
	var echoErr *echo.HTTPError
	if errors.As(err, &echoErr) {
		return convertEchoError(echoErr), true
	}
	return xerrors.NewWithError(
		xerrors.CodeInternalError,
		xerrors.CodeInternalError.Message(),
		err,
	).WithService("echo-middleware", "error_handler"), false
}

// convertEchoError 将 Echo 错误转换为业务错误
func convertEchoError(echoErr *echo.HTTPError) *xerrors.AppError {
	message := fmt.Sprintf("%v", echoErr.Message)
	switch echoErr.Code {
	case http.StatusBadRequest:
		return xerrors.FromCode(xerrors.CodeInvalidRequest).
			WithMetadata("echo_message", message)
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		return xerrors.FromCode(xerrors.CodeResourceNotFound).
			WithMetadata("echo_message", message)
	case http.StatusTooManyRequests:
		return xerrors.FromCode(xerrors.CodeRateLimitExceeded).
			WithMetadata("echo_message", message)
	default:
		return xerrors.FromCode(xerrors.CodeInternalError).
			WithMetadata("echo_code", fmt.Sprintf("%d", echoErr.Code)).
			WithMetadata("echo_message", message)
	}
}
