package tasks

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"nuzlocke-bridge/internal/nuzlocke"
	"nuzlocke-bridge/internal/pkg/log"
	"nuzlocke-bridge/internal/pkg/metrics"
	"nuzlocke-bridge/internal/pkg/notify"
	"nuzlocke-bridge/internal/pkg/pubsub"
	"nuzlocke-bridge/internal/pkg/trace"
	"nuzlocke-bridge/internal/pkg/xerrors"
	"nuzlocke-bridge/internal/source"
)

// DefaultPollInterval 默认轮询间隔
const DefaultPollInterval = 1000 * time.Millisecond

// ErrorPayload error 事件的内容
type ErrorPayload struct {
	Message string `json:"message"`
	Code    int    `json:"code,omitempty"`
}

// PollingEmitter 定时读取原始数据，内容变化时发布 dataUpdate / teamUpdate / statsUpdate
type PollingEmitter struct {
	src      source.Source
	broker   *pubsub.Broker
	detector *nuzlocke.Detector
	interval time.Duration
	metrics  *metrics.BridgeMetrics
	logger   log.Logger

	mu     sync.Mutex
	cron   *cron.Cron
	cancel context.CancelFunc
	// 观察进行中的数量；订阅者回调里调用 Stop 时不能等待自身所在的任务
	observing atomic.Int32

	latestMu sync.RWMutex
	latest   *nuzlocke.FullView
}

// NewPollingEmitter 创建 emitter；broker 为 nil 时新建一个
func NewPollingEmitter(src source.Source, broker *pubsub.Broker, interval time.Duration, m *metrics.BridgeMetrics, logger log.Logger) *PollingEmitter {
	if broker == nil {
		broker = pubsub.NewBroker()
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = log.GetLogger()
	}
	return &PollingEmitter{
		src:      src,
		broker:   broker,
		detector: nuzlocke.NewDetector(),
		interval: interval,
		metrics:  m,
		logger:   logger.With("component", "polling_emitter"),
	}
}

// Broker 事件订阅入口
func (e *PollingEmitter) Broker() *pubsub.Broker {
	return e.broker
}

// Running 是否正在轮询
func (e *PollingEmitter) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cron != nil
}

// Start 立即观察一次，然后按间隔轮询。已在运行时直接返回。
// 首次观察在锁外执行，订阅者可以在回调中调用 Stop / Running。
func (e *PollingEmitter) Start(ctx context.Context) {
	e.mu.Lock()
	if e.cron != nil {
		e.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	c := NewIntervalCron(e.logger)
	e.cron, e.cancel = c, cancel
	e.mu.Unlock()

	e.observe(runCtx)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cron != c {
		// 首次观察期间已被 Stop
		return
	}
	c.Schedule(Every(e.interval), cron.FuncJob(func() {
		if runCtx.Err() != nil {
			return
		}
		e.observe(runCtx)
	}))
	c.Start()
	e.logger.Info("polling emitter started", "interval", e.interval.String())
}

// Stop 停止轮询并等待正在执行的观察结束；可重复调用。
// 在订阅者回调中调用时不等待，取消后本次观察不再发布后续事件。
func (e *PollingEmitter) Stop() {
	e.mu.Lock()
	c, cancel := e.cron, e.cancel
	e.cron, e.cancel = nil, nil
	e.mu.Unlock()

	if c == nil {
		return
	}
	cancel()
	done := c.Stop().Done()
	if e.observing.Load() == 0 {
		<-done
	}
	e.logger.Info("polling emitter stopped")
}

// Latest 最近一次发布的完整视图
func (e *PollingEmitter) Latest() (nuzlocke.FullView, bool) {
	e.latestMu.RLock()
	defer e.latestMu.RUnlock()
	if e.latest == nil {
		return nuzlocke.FullView{}, false
	}
	return *e.latest, true
}

// Reset 忘记上一次的指纹，下一次观察必然发布
func (e *PollingEmitter) Reset() {
	e.detector.Reset()
}

func (e *PollingEmitter) observe(parent context.Context) {
	e.observing.Add(1)
	defer e.observing.Add(-1)

	ctx := trace.NewContext(parent)

	raw, err := e.src.Read(ctx)
	if errors.Is(err, source.ErrNoActiveRun) {
		e.metrics.RecordObservation("no_data")
		return
	}
	if err != nil {
		e.metrics.RecordObservation("error")
		e.logger.ErrorContext(ctx, "read raw source failed", log.Err(err))
		e.emit(ctx, pubsub.KindError, ErrorPayload{Message: err.Error()})
		return
	}

	fp, changed := e.detector.Observe(raw.SavesData, raw.GameData)
	if !changed {
		e.metrics.RecordObservation("unchanged")
		return
	}

	idx := nuzlocke.ParseSaveIndex(raw.SavesData)
	run, ok := idx.Resolve(raw.ActiveGameID)
	if !ok && raw.ActiveGameID != "" {
		run, ok = idx.First()
	}
	if !ok {
		e.metrics.RecordObservation("error")
		appErr := xerrors.NewRunNotFoundError(raw.ActiveGameID, idx.IDs())
		log.LogAppError(ctx, e.logger, "active run missing from save index", appErr)
		e.emit(ctx, pubsub.KindError, ErrorPayload{Message: appErr.Message, Code: appErr.Code.ToInt()})
		return
	}

	view := nuzlocke.Full(run, nuzlocke.ReadGameState(raw.GameData))
	e.latestMu.Lock()
	e.latest = &view
	e.latestMu.Unlock()

	e.metrics.RecordObservation("changed")
	e.logger.DebugContext(ctx, "game data changed", "fingerprint", string(fp), "game_id", run.ID)

	e.emit(ctx, pubsub.KindDataUpdate, view)
	e.emit(ctx, pubsub.KindTeamUpdate, view.Team)
	e.emit(ctx, pubsub.KindStatsUpdate, view.Stats)
}

func (e *PollingEmitter) emit(ctx context.Context, kind string, payload any) {
	if ctx.Err() != nil {
		return
	}
	e.broker.Publish(kind, payload)
	e.metrics.RecordEvent(kind)
	if err := notify.PublishEvent(ctx, kind, payload); err != nil {
		e.logger.WarnContext(ctx, "publish nats event failed", "kind", kind, log.Err(err))
	}
}
