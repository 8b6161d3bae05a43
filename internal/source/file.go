package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"
)

// FileKV 读取 localStorage 导出文件（顶层为 JSON 对象，键值均为字符串）。
// 文件在修改时间或大小变化时重新加载，追踪器导出的新文件无需重启即可生效。
type FileKV struct {
	path string

	mu      sync.Mutex
	modTime time.Time
	size    int64
	data    map[string]string
}

// NewFileKV 创建文件存储，文件此时可以还不存在
func NewFileKV(path string) *FileKV {
	return &FileKV{path: path}
}

// Path 返回文件路径
func (f *FileKV) Path() string {
	return f.path
}

// Get 实现 KeyValue。文件不存在视为空存储。
func (f *FileKV) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.reload(); err != nil {
		return "", false, err
	}
	v, ok := f.data[key]
	return v, ok, nil
}

func (f *FileKV) reload() error {
	info, err := os.Stat(f.path)
	if os.IsNotExist(err) {
		f.data = nil
		f.modTime = time.Time{}
		f.size = 0
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", f.path, err)
	}
	if f.data != nil && info.ModTime().Equal(f.modTime) && info.Size() == f.size {
		return nil
	}

	raw, err := os.ReadFile(f.path)
	if err != nil {
		return fmt.Errorf("read %s: %w", f.path, err)
	}
	data, err := decodeExport(raw)
	if err != nil {
		return fmt.Errorf("decode %s: %w", f.path, err)
	}

	f.data = data
	f.modTime = info.ModTime()
	f.size = info.Size()
	return nil
}

// decodeExport 解析导出对象。localStorage 只存字符串，
// 但手工编辑的导出里常见数字或嵌套对象，这些值按 JSON 原文保存。
func decodeExport(raw []byte) (map[string]string, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}

	data := make(map[string]string, len(fields))
	for k, v := range fields {
		if string(v) == "null" {
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			data[k] = s
			continue
		}
		data[k] = string(v)
	}
	return data, nil
}

// WriteExport 把三个键写成导出文件（CLI seed 子命令使用）
func WriteExport(path string, raw Raw) error {
	obj := map[string]string{
		KeyActiveGame: raw.ActiveGameID,
		KeySaves:      raw.SavesData,
	}
	obj[GameKey(raw.ActiveGameID)] = raw.GameData
	b, err := json.MarshalIndent(obj, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp-" + strconv.FormatInt(time.Now().UnixNano(), 36)
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
