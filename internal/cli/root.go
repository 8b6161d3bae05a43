// Package cli bridge-cli 子命令：从本地 localStorage 导出文件或 SQLite 数据库读取 tracker 数据
package cli

import (
	"errors"
	"fmt"

	"nuzlocke-bridge/internal/pkg/config"
	"nuzlocke-bridge/internal/pkg/log"
	"nuzlocke-bridge/internal/source"

	"github.com/spf13/cobra"
)

// Version 由构建时 -ldflags 注入
var Version = "dev"

type options struct {
	file string

	sqlite         string
	sqliteTable    string
	sqliteKey      string
	sqliteValue    string
	sqliteReadOnly bool

	logLevel string
	cfg      *config.Config
}

// NewRootCommand 创建 bridge-cli 根命令
func NewRootCommand() *cobra.Command {
	opts := &options{}
	def := source.DefaultSQLiteOptions()

	cmd := &cobra.Command{
		Use:     "bridge-cli",
		Short:   "Nuzlocke tracker bridge - push, watch and query a run from local storage",
		Version: Version,
		Long: `bridge-cli reads the tracker's localStorage keys (nuzlocke, nuzlocke.saves,
nuzlocke.<id>) from a JSON export file or an SQLite key/value table and either
pushes them to a bridge server, watches them for changes, or answers overlay
queries locally.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			opts.cfg = config.Load()
			level := opts.logLevel
			if level == "" {
				level = opts.cfg.LogLevel
			}
			log.InitWithWriter(cmd.ErrOrStderr(), log.ParseLevel(level), opts.cfg.Environment)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.file, "file", "f", "", "localStorage JSON export file")
	flags.StringVar(&opts.sqlite, "sqlite", "", "SQLite database holding localStorage key/value rows")
	flags.StringVar(&opts.sqliteTable, "sqlite-table", def.Table, "SQLite table name")
	flags.StringVar(&opts.sqliteKey, "sqlite-key-column", def.KeyColumn, "SQLite key column")
	flags.StringVar(&opts.sqliteValue, "sqlite-value-column", def.ValueColumn, "SQLite value column")
	flags.BoolVar(&opts.sqliteReadOnly, "sqlite-readonly", true, "open the SQLite database read-only")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error); defaults to LOG_LEVEL")

	cmd.AddCommand(newPushCommand(opts))
	cmd.AddCommand(newSyncCommand(opts))
	cmd.AddCommand(newWatchCommand(opts))
	cmd.AddCommand(newQueryCommand(opts))
	cmd.AddCommand(newSeedCommand(opts))

	return cmd
}

var errNoSource = errors.New("one of --file or --sqlite is required")

// openKV 打开 --file 或 --sqlite 指定的键值存储；返回的 close 总是非 nil
func (o *options) openKV(writable bool) (source.KeyValue, func() error, error) {
	noop := func() error { return nil }
	switch {
	case o.file != "" && o.sqlite != "":
		return nil, noop, errors.New("--file and --sqlite are mutually exclusive")
	case o.file != "":
		return source.NewFileKV(o.file), noop, nil
	case o.sqlite != "":
		kv, err := source.OpenSQLite(o.sqlite, source.SQLiteOptions{
			Table:       o.sqliteTable,
			KeyColumn:   o.sqliteKey,
			ValueColumn: o.sqliteValue,
			ReadOnly:    o.sqliteReadOnly && !writable,
		})
		if err != nil {
			return nil, noop, fmt.Errorf("open %s: %w", o.sqlite, err)
		}
		return kv, kv.Close, nil
	default:
		return nil, noop, errNoSource
	}
}

func (o *options) openSource() (source.Source, func() error, error) {
	kv, closeFn, err := o.openKV(false)
	if err != nil {
		return nil, closeFn, err
	}
	return source.NewStorageSource(kv), closeFn, nil
}

func (o *options) serverURL(args []string) string {
	if len(args) > 0 && args[0] != "" {
		return args[0]
	}
	return o.cfg.SyncURL
}
