package service

import (
	"context"
	"sync"
	"time"

	"nuzlocke-bridge/internal/modules/bridge/state"
	"nuzlocke-bridge/internal/nuzlocke"
	"nuzlocke-bridge/internal/pkg/log"
	"nuzlocke-bridge/internal/pkg/metrics"
	"nuzlocke-bridge/internal/pkg/notify"
	"nuzlocke-bridge/internal/pkg/xerrors"
)

// PushRequest 推送请求体
type PushRequest struct {
	GameData  string `json:"gameData" validate:"required,json_object"`
	SavesData string `json:"savesData" validate:"required"`
}

// PushResult 推送结果；Changed 为 false 时 Timestamp 是上一次刷新的时间
type PushResult struct {
	Changed     bool
	Timestamp   string
	Fingerprint nuzlocke.Fingerprint
}

// PushService 状态单元唯一的写入方
type PushService struct {
	mu      sync.Mutex
	store   state.Store
	metrics *metrics.BridgeMetrics
	logger  log.Logger
	now     func() time.Time
}

// NewPushService 创建推送服务
func NewPushService(store state.Store, m *metrics.BridgeMetrics, logger log.Logger) *PushService {
	if logger == nil {
		logger = log.GetLogger()
	}
	return &PushService{
		store:   store,
		metrics: m,
		logger:  logger.With("component", "push_service"),
		now:     time.Now,
	}
}

// Accept 接收一次推送。内容指纹与上次相同则不写入，仍返回成功。
func (s *PushService) Accept(ctx context.Context, req PushRequest) (*PushResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fp := nuzlocke.ComputeFingerprint(req.SavesData, req.GameData)

	current, ok, err := s.store.Load(ctx)
	if err != nil {
		s.metrics.RecordPushReceived("error")
		return nil, xerrors.NewWithError(xerrors.CodeStorageError, xerrors.CodeStorageError.Message(), err)
	}
	if ok && !nuzlocke.HasChanged(current.Fingerprint, fp) {
		s.metrics.RecordPushReceived("unchanged")
		s.logger.DebugContext(ctx, "data fetched, no changes detected", "fingerprint", string(fp))
		return &PushResult{Changed: false, Timestamp: current.LastUpdateString(), Fingerprint: fp}, nil
	}

	next := state.RealtimeData{
		GameData:    req.GameData,
		SavesData:   req.SavesData,
		LastUpdate:  s.now().UTC(),
		Fingerprint: fp,
	}
	if err := s.store.Save(ctx, next); err != nil {
		s.metrics.RecordPushReceived("error")
		return nil, xerrors.NewWithError(xerrors.CodeStorageError, xerrors.CodeStorageError.Message(), err)
	}

	ts := next.LastUpdateString()
	s.metrics.RecordPushReceived("refreshed")
	s.logger.InfoContext(ctx, "data refreshed", "fingerprint", string(fp), "last_update", ts)

	if err := notify.PublishRefreshed(ctx, string(fp), ts); err != nil {
		s.logger.WarnContext(ctx, "publish refresh notification failed", log.Err(err))
	}

	return &PushResult{Changed: true, Timestamp: ts, Fingerprint: fp}, nil
}
