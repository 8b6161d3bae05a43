package source

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	_ "modernc.org/sqlite"
)

// ErrUnsupportedValue 值既不是 UTF-8 也不是 UTF-16 文本（例如压缩过的 blob）
var ErrUnsupportedValue = errors.New("sqlite value is not UTF-8 or UTF-16 text")

// SQLiteOptions 键值表的位置。默认 data(key, value)；也可指向任意两列的键值表。
// 值按 UTF-8 或 UTF-16 文本读取，不支持压缩格式。
type SQLiteOptions struct {
	Table       string
	KeyColumn   string
	ValueColumn string
	// ReadOnly 以只读方式打开，不创建表
	ReadOnly bool
}

// DefaultSQLiteOptions 默认选项
func DefaultSQLiteOptions() SQLiteOptions {
	return SQLiteOptions{Table: "data", KeyColumn: "key", ValueColumn: "value"}
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLiteKV 从 SQLite 键值表读取
type SQLiteKV struct {
	db    *sql.DB
	query string
	opts  SQLiteOptions
}

// OpenSQLite 打开数据库文件
func OpenSQLite(path string, opts SQLiteOptions) (*SQLiteKV, error) {
	def := DefaultSQLiteOptions()
	if opts.Table == "" {
		opts.Table = def.Table
	}
	if opts.KeyColumn == "" {
		opts.KeyColumn = def.KeyColumn
	}
	if opts.ValueColumn == "" {
		opts.ValueColumn = def.ValueColumn
	}
	for _, ident := range []string{opts.Table, opts.KeyColumn, opts.ValueColumn} {
		if !identPattern.MatchString(ident) {
			return nil, fmt.Errorf("invalid sqlite identifier %q", ident)
		}
	}

	dsn := path
	if opts.ReadOnly {
		dsn = "file:" + path + "?mode=ro"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ? LIMIT 1",
		opts.ValueColumn, opts.Table, opts.KeyColumn)
	kv := &SQLiteKV{db: db, query: query, opts: opts}
	if !opts.ReadOnly {
		if err := kv.migrate(); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return kv, nil
}

func (s *SQLiteKV) migrate() error {
	_, err := s.db.Exec(fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (%s TEXT PRIMARY KEY, %s TEXT NOT NULL)",
		s.opts.Table, s.opts.KeyColumn, s.opts.ValueColumn))
	return err
}

// Get 实现 KeyValue
func (s *SQLiteKV) Get(ctx context.Context, key string) (string, bool, error) {
	var v []byte
	err := s.db.QueryRowContext(ctx, s.query, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if v == nil {
		return "", false, nil
	}
	text, err := decodeValue(v)
	if err != nil {
		return "", false, fmt.Errorf("key %q: %w", key, err)
	}
	return text, true, nil
}

// decodeValue 没有 NUL 的合法 UTF-8 原样返回；否则按 UTF-16 解码（有 BOM 按 BOM，默认小端）
func decodeValue(v []byte) (string, error) {
	if utf8.Valid(v) && bytes.IndexByte(v, 0) < 0 {
		return string(v), nil
	}
	if len(v)%2 != 0 {
		return "", ErrUnsupportedValue
	}
	out, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder().Bytes(v)
	if err != nil || !utf8.Valid(out) {
		return "", ErrUnsupportedValue
	}
	return string(out), nil
}

// Set 写入或覆盖一个键
func (s *SQLiteKV) Set(ctx context.Context, key, value string) error {
	if s.opts.ReadOnly {
		return errors.New("sqlite source opened read-only")
	}
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (%s, %s) VALUES (?, ?) ON CONFLICT(%s) DO UPDATE SET %s = excluded.%s",
		s.opts.Table, s.opts.KeyColumn, s.opts.ValueColumn,
		s.opts.KeyColumn, s.opts.ValueColumn, s.opts.ValueColumn), key, value)
	return err
}

// Close 关闭数据库
func (s *SQLiteKV) Close() error {
	return s.db.Close()
}
