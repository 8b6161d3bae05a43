// Package nuzlocke 解析 tracker 的存档索引与 run 状态，并派生 overlay 使用的视图。
package nuzlocke

import (
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	entrySep  = ","
	fieldSep  = "|"
	updateSep = ">"

	minFields = 5 // attempts 可省略
	maxFields = 6
)

// RunRecord 一条存档（一次 run）的元数据
type RunRecord struct {
	ID       string `json:"id"`
	Created  string `json:"created"`
	Updated  string `json:"updated,omitempty"`
	Name     string `json:"name"`
	Game     string `json:"game"`
	Settings string `json:"settings"`
	Attempts int    `json:"attempts"`
}

// Diagnostic 被跳过（或被覆盖）的索引条目
type Diagnostic struct {
	Segment string `json:"segment"`
	Index   int    `json:"index"`
	Reason  string `json:"reason"`
}

// SaveIndex 解析后的存档索引，Order 保持首次出现的顺序
type SaveIndex struct {
	Runs    map[string]RunRecord
	Order   []string
	Skipped []Diagnostic
}

// Len run 数量
func (s SaveIndex) Len() int {
	return len(s.Order)
}

// Get 按 id 查找
func (s SaveIndex) Get(id string) (RunRecord, bool) {
	r, ok := s.Runs[id]
	return r, ok
}

// First 索引中的第一个 run（未指定 gameId 时的默认值）
func (s SaveIndex) First() (RunRecord, bool) {
	if len(s.Order) == 0 {
		return RunRecord{}, false
	}
	return s.Runs[s.Order[0]], true
}

// Resolve 按 id 查找；id 为空时返回第一个 run
func (s SaveIndex) Resolve(id string) (RunRecord, bool) {
	if id == "" {
		return s.First()
	}
	return s.Get(id)
}

// IDs 按索引顺序返回所有 run id
func (s SaveIndex) IDs() []string {
	return append([]string{}, s.Order...)
}

// ParseSaveIndex 解析 `id|created[>updated]|name|game|settings|attempts,...`
//
// 每个条目独立解析；格式错误的条目记录到 Skipped，不影响其它条目。
// 空字符串返回空索引。
func ParseSaveIndex(raw string) SaveIndex {
	idx := SaveIndex{Runs: make(map[string]RunRecord)}
	if raw == "" {
		return idx
	}

	for i, segment := range strings.Split(raw, entrySep) {
		if segment == "" {
			continue
		}

		run, reason := parseEntry(segment)
		if reason != "" {
			idx.Skipped = append(idx.Skipped, Diagnostic{Segment: segment, Index: i, Reason: reason})
			continue
		}

		if _, dup := idx.Runs[run.ID]; dup {
			idx.Skipped = append(idx.Skipped, Diagnostic{Segment: segment, Index: i, Reason: "duplicate id, earlier entry replaced"})
		} else {
			idx.Order = append(idx.Order, run.ID)
		}
		idx.Runs[run.ID] = run
	}

	return idx
}

func parseEntry(segment string) (RunRecord, string) {
	fields := strings.Split(segment, fieldSep)
	if len(fields) < minFields || len(fields) > maxFields {
		return RunRecord{}, "expected " + strconv.Itoa(maxFields) + " fields, got " + strconv.Itoa(len(fields))
	}
	if fields[0] == "" {
		return RunRecord{}, "empty id"
	}

	name, err := url.PathUnescape(fields[2])
	if err != nil {
		return RunRecord{}, "malformed name encoding: " + err.Error()
	}
	if !utf8.ValidString(name) {
		return RunRecord{}, "name is not valid UTF-8"
	}

	created, updated, _ := strings.Cut(fields[1], updateSep)

	attempts := 1
	if len(fields) == maxFields {
		attempts = parseAttempts(fields[5])
	}

	return RunRecord{
		ID:       fields[0],
		Created:  created,
		Updated:  updated,
		Name:     name,
		Game:     fields[3],
		Settings: fields[4],
		Attempts: attempts,
	}, ""
}

func parseAttempts(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return 1
	}
	return n
}
