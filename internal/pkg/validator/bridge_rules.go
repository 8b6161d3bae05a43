package validator

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

// registerBridgeRules 注册存档相关的自定义规则
func registerBridgeRules(v *validator.Validate) {
	_ = v.RegisterValidation("run_id", validateRunID)
	_ = v.RegisterValidation("json_object", validateJSONObject)
}

// validateRunID run id 不能包含索引分隔符
func validateRunID(fl validator.FieldLevel) bool {
	id := fl.Field().String()
	if id == "" {
		return true // 可选参数
	}
	return !strings.ContainsAny(id, "|,>")
}

// validateJSONObject 粗略检查字符串是否为 JSON 对象（完整解析交给 GameStateReader）
func validateJSONObject(fl validator.FieldLevel) bool {
	s := strings.TrimSpace(fl.Field().String())
	return strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}")
}
