package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"nuzlocke-bridge/internal/modules/bridge/tasks"
	"nuzlocke-bridge/internal/nuzlocke"
	"nuzlocke-bridge/internal/pkg/log"
	"nuzlocke-bridge/internal/pkg/metrics"
	"nuzlocke-bridge/internal/pkg/trace"
	"nuzlocke-bridge/internal/pkg/xerrors"
	"nuzlocke-bridge/internal/source"
)

const (
	// UpdatePath 推送目标路径
	UpdatePath = "/api/update-data"
	// DefaultSyncInterval 自动同步默认间隔
	DefaultSyncInterval = 2000 * time.Millisecond

	defaultTimeout = 10 * time.Second
	maxAckBytes    = 64 << 10
)

type pushBody struct {
	GameData  string `json:"gameData"`
	SavesData string `json:"savesData"`
}

type ack struct {
	Success   bool   `json:"success"`
	Timestamp string `json:"timestamp"`
}

// SyncClient 把原始数据推送到 bridge 服务端
type SyncClient struct {
	src     source.Source
	http    *http.Client
	metrics *metrics.BridgeMetrics
	logger  log.Logger

	// 只在成功后更新；推送中的指纹单独记录
	fpMu       sync.Mutex
	lastPushed nuzlocke.Fingerprint
	inFlight   map[nuzlocke.Fingerprint]struct{}

	mu     sync.Mutex
	cron   *cron.Cron
	cancel context.CancelFunc
	wg     sync.WaitGroup
	// tick 进行中的数量；数据源在读取时调用 Stop 不能等待自身所在的任务
	ticking atomic.Int32
}

// Option SyncClient 选项
type Option func(*SyncClient)

// WithHTTPClient 替换默认的 http.Client
func WithHTTPClient(c *http.Client) Option {
	return func(s *SyncClient) { s.http = c }
}

// WithMetrics 记录推送指标
func WithMetrics(m *metrics.BridgeMetrics) Option {
	return func(s *SyncClient) { s.metrics = m }
}

// WithLogger 指定 logger
func WithLogger(l log.Logger) Option {
	return func(s *SyncClient) { s.logger = l }
}

// NewSyncClient 创建同步客户端
func NewSyncClient(src source.Source, opts ...Option) *SyncClient {
	s := &SyncClient{
		src:      src,
		http:     &http.Client{Timeout: defaultTimeout},
		inFlight: make(map[nuzlocke.Fingerprint]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.GetLogger()
	}
	s.logger = s.logger.With("component", "sync_client")
	return s
}

// Push 读取一次原始数据并推送。没有数据时不发请求；任何失败都只记录日志并返回 false。
func (s *SyncClient) Push(ctx context.Context, serverURL string) bool {
	ctx = trace.NewContext(ctx)
	raw, err := s.src.Read(ctx)
	if err != nil {
		if !errors.Is(err, source.ErrNoActiveRun) {
			s.logger.ErrorContext(ctx, "read raw source failed", log.Err(err))
		} else {
			s.logger.DebugContext(ctx, "no game data to sync")
		}
		s.metrics.RecordPushSent("no_data")
		return false
	}

	ok := s.send(ctx, serverURL, raw)
	if ok {
		s.commit(nuzlocke.ComputeFingerprint(raw.SavesData, raw.GameData))
	}
	return ok
}

// LastPushed 最近一次成功推送的指纹
func (s *SyncClient) LastPushed() nuzlocke.Fingerprint {
	s.fpMu.Lock()
	defer s.fpMu.Unlock()
	return s.lastPushed
}

func (s *SyncClient) send(ctx context.Context, serverURL string, raw source.Raw) bool {
	endpoint := strings.TrimRight(serverURL, "/") + UpdatePath
	if err := s.post(ctx, endpoint, raw); err != nil {
		s.metrics.RecordPushSent("failure")
		if appErr, ok := xerrors.As(err); ok {
			log.LogAppError(ctx, s.logger, "sync push failed", appErr)
		} else {
			s.logger.WarnContext(ctx, "sync push failed", "url", endpoint, log.Err(err))
		}
		return false
	}
	s.metrics.RecordPushSent("success")
	s.logger.DebugContext(ctx, "data synced", "url", endpoint)
	return true
}

func (s *SyncClient) post(ctx context.Context, endpoint string, raw source.Raw) error {
	body, err := json.Marshal(pushBody{GameData: raw.GameData, SavesData: raw.SavesData})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if traceID := trace.GetTraceID(ctx); traceID != "" {
		req.Header.Set(trace.HeaderTraceID, traceID)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return xerrors.NewExternalServiceError(endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAckBytes))
	if err != nil {
		return xerrors.NewExternalServiceError(endpoint, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return xerrors.FromCode(xerrors.CodeSyncRejected).
			WithMetadata("status", resp.StatusCode).
			WithMetadata("url", endpoint)
	}

	var a ack
	if err := json.Unmarshal(data, &a); err != nil {
		return xerrors.NewWithError(xerrors.CodeSyncRejected, "malformed acknowledgement", err).
			WithMetadata("url", endpoint)
	}
	if !a.Success {
		return xerrors.New(xerrors.CodeSyncRejected, "acknowledgement without success").
			WithMetadata("url", endpoint)
	}
	return nil
}

func (s *SyncClient) commit(fp nuzlocke.Fingerprint) {
	s.fpMu.Lock()
	s.lastPushed = fp
	s.fpMu.Unlock()
}

// StartAutoSync 立即推送一次，之后按间隔检查；内容未变化或相同内容正在推送时不发请求。
// 已在运行时直接返回。
func (s *SyncClient) StartAutoSync(serverURL string, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSyncInterval
	}

	s.mu.Lock()
	if s.cron != nil {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := tasks.NewIntervalCron(s.logger)
	s.cron, s.cancel = c, cancel
	s.mu.Unlock()

	s.tick(ctx, serverURL)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != c {
		return
	}
	c.Schedule(tasks.Every(interval), cron.FuncJob(func() {
		if ctx.Err() != nil {
			return
		}
		s.tick(ctx, serverURL)
	}))
	c.Start()
	s.logger.Info("auto sync started", "url", serverURL, "interval", interval.String())
}

// Stop 停止自动同步并等待推送中的请求完成；可重复调用
func (s *SyncClient) Stop() {
	s.mu.Lock()
	c, cancel := s.cron, s.cancel
	s.cron, s.cancel = nil, nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	done := c.Stop().Done()
	if s.ticking.Load() == 0 {
		<-done
	}
	s.wg.Wait()
	cancel()
	s.logger.Info("auto sync stopped")
}

// tick 在调度 goroutine 中只做读取和比较，网络请求放到后台，不阻塞下一次调度
func (s *SyncClient) tick(ctx context.Context, serverURL string) {
	s.ticking.Add(1)
	defer s.ticking.Add(-1)

	raw, err := s.src.Read(ctx)
	if err != nil {
		if !errors.Is(err, source.ErrNoActiveRun) {
			s.logger.ErrorContext(ctx, "read raw source failed", log.Err(err))
		}
		return
	}
	if ctx.Err() != nil {
		return
	}

	fp := nuzlocke.ComputeFingerprint(raw.SavesData, raw.GameData)
	s.fpMu.Lock()
	_, pending := s.inFlight[fp]
	if pending || fp == s.lastPushed {
		s.fpMu.Unlock()
		s.metrics.RecordPushSent("skipped")
		return
	}
	s.inFlight[fp] = struct{}{}
	s.fpMu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ok := s.send(trace.NewContext(ctx), serverURL, raw)

		s.fpMu.Lock()
		delete(s.inFlight, fp)
		if ok {
			s.lastPushed = fp
		}
		s.fpMu.Unlock()
	}()
}
