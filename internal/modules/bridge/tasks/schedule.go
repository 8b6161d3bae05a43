package tasks

import (
	"time"

	"github.com/robfig/cron/v3"

	"nuzlocke-bridge/internal/pkg/log"
)

// IntervalSchedule 固定间隔调度。cron.Every 会把间隔向上取整到秒，轮询需要毫秒级。
type IntervalSchedule struct {
	Interval time.Duration
}

// Every 创建间隔调度，非正数按 1 秒处理
func Every(d time.Duration) IntervalSchedule {
	if d <= 0 {
		d = time.Second
	}
	return IntervalSchedule{Interval: d}
}

// Next 实现 cron.Schedule
func (s IntervalSchedule) Next(t time.Time) time.Time {
	return t.Add(s.Interval)
}

// NewIntervalCron 创建带 panic 恢复、并跳过重叠执行的调度器
func NewIntervalCron(logger log.Logger) *cron.Cron {
	cl := cronLogger{logger: logger}
	return cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))
}

// cronLogger 把 cron 的日志接到项目 logger；cron 的 Info 很频繁，降为 Debug
type cronLogger struct {
	logger log.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.logger.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.logger.Error("cron: "+msg, err, keysAndValues...)
}
