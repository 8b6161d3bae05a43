package pubsub

import (
	"fmt"
	"strings"
)

// Kinds 所有事件类型
func Kinds() []string {
	return []string{KindDataUpdate, KindTeamUpdate, KindStatsUpdate, KindError}
}

// IsKnownKind 是否为已知事件类型
func IsKnownKind(kind string) bool {
	switch kind {
	case KindDataUpdate, KindTeamUpdate, KindStatsUpdate, KindError:
		return true
	}
	return false
}

// UnknownKindError 过滤参数中出现了未知事件类型
type UnknownKindError struct {
	Kind string
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("unknown event type %q", e.Kind)
}

// ParseKinds 解析逗号分隔的事件类型列表（如 "teamUpdate,statsUpdate"）；空串返回 nil 表示全部
func ParseKinds(raw string) ([]string, error) {
	var kinds []string
	for _, part := range strings.Split(raw, ",") {
		kind := strings.TrimSpace(part)
		if kind == "" {
			continue
		}
		if !IsKnownKind(kind) {
			return nil, &UnknownKindError{Kind: kind}
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}
