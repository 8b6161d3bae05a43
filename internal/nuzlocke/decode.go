package nuzlocke

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// tracker 写入的字段类型并不稳定（数字有时是字符串），这里的取值函数都是宽松的。

func object(raw json.RawMessage) (map[string]json.RawMessage, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, false
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, false
	}
	return m, true
}

// stringValue 字符串原样返回；数字按字面量转为字符串
func stringValue(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", false
	}
	switch raw[0] {
	case '"':
		var s string
		if json.Unmarshal(raw, &s) != nil {
			return "", false
		}
		return s, true
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		return string(raw), true
	}
	return "", false
}

// intValue 接受整数、整数值的浮点数、以及内容为数字的字符串
func intValue(raw json.RawMessage) (int, bool) {
	s, ok := stringValue(raw)
	if !ok {
		return 0, false
	}
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f > math.MaxInt32 || f < math.MinInt32 {
		return 0, false
	}
	return int(f), true
}

func stringList(raw json.RawMessage) []string {
	var items []json.RawMessage
	if json.Unmarshal(raw, &items) != nil {
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := stringValue(item); ok {
			out = append(out, s)
		}
	}
	return out
}

func statMap(raw json.RawMessage) map[string]int {
	out := map[string]int{}
	fields, ok := object(raw)
	if !ok {
		return out
	}
	for k, v := range fields {
		if n, ok := intValue(v); ok {
			out[k] = n
		}
	}
	return out
}
