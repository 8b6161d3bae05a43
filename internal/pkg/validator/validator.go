package validator

import (
	"reflect"
	"strings"

	"nuzlocke-bridge/internal/pkg/xerrors"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// CustomValidator wraps go-playground validator for Echo
type CustomValidator struct {
	validator *validator.Validate
}

// Validate implements echo.Validator interface
// 返回 *xerrors.AppError，由错误中间件统一渲染为 400
func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		details := TranslateValidationErrors(err)
		appErr := xerrors.FromCode(xerrors.CodeInvalidParams)
		if len(details) > 0 {
			appErr.WithMetadata("field", details[0].Field).
				WithMetadata("validation_message", details[0].Message)
		}
		appErr.Err = err
		return appErr
	}
	return nil
}

// New creates a new custom validator instance
func New() echo.Validator {
	return &CustomValidator{validator: NewValidate()}
}

// NewValidate 返回注册了 bridge 规则、以 json/query 标签作为字段名的 validator
func NewValidate() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(fieldName)
	registerBridgeRules(v)
	return v
}

func fieldName(fld reflect.StructField) string {
	for _, tag := range []string{"json", "query"} {
		name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return fld.Name
}
