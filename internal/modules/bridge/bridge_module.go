package bridge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	custommiddleware "nuzlocke-bridge/internal/middleware"
	"nuzlocke-bridge/internal/modules/bridge/handler"
	"nuzlocke-bridge/internal/modules/bridge/service"
	"nuzlocke-bridge/internal/modules/bridge/state"
	"nuzlocke-bridge/internal/modules/bridge/tasks"
	"nuzlocke-bridge/internal/pkg/config"
	"nuzlocke-bridge/internal/pkg/i18n"
	"nuzlocke-bridge/internal/pkg/log"
	"nuzlocke-bridge/internal/pkg/metrics"
	natsclient "nuzlocke-bridge/internal/pkg/nats"
	"nuzlocke-bridge/internal/pkg/notify"
	redisClient "nuzlocke-bridge/internal/pkg/redis"
	"nuzlocke-bridge/internal/pkg/response"
	"nuzlocke-bridge/internal/pkg/security"
	"nuzlocke-bridge/internal/pkg/trace"
	"nuzlocke-bridge/internal/pkg/validator"

	"github.com/labstack/echo/v4"
	"github.com/nats-io/nats.go"
)

const (
	// ServiceName 指标与日志中的服务名
	ServiceName = "bridge"
	// MetricsNamespace Prometheus 命名空间
	MetricsNamespace = "nuzlocke_bridge"

	shutdownTimeout = 10 * time.Second
)

// BridgeModule bridge 服务端：状态单元 + 查询/推送/订阅接口 + 轮询 emitter
type BridgeModule struct {
	cfg    *config.Config
	logger log.Logger

	redis      *redisClient.Client
	natsConn   *nats.Conn
	natsHealth *natsclient.HealthChecker
	store      state.Store

	bridgeMetrics *metrics.BridgeMetrics
	httpMetrics   *metrics.HTTPMetrics
	errorMetrics  *metrics.ErrorMetrics
	respWriter    response.Writer
	httpServer    *echo.Echo

	queryService *service.QueryService
	pushService  *service.PushService

	queryHandler  *handler.QueryHandler
	pushHandler   *handler.PushHandler
	streamHandler *handler.StreamHandler
	healthHandler *handler.HealthHandler
	statusHandler *handler.StatusPageHandler

	emitter *tasks.PollingEmitter

	mu       sync.Mutex
	cancel   context.CancelFunc
	bgWG     sync.WaitGroup
	shutdown bool
}

// New 创建模块；cfg 为 nil 时读取环境变量
func New(cfg *config.Config, logger log.Logger) *BridgeModule {
	if cfg == nil {
		cfg = config.Load()
	}
	if logger == nil {
		logger = log.GetLogger()
	}
	return &BridgeModule{
		cfg:    cfg,
		logger: logger.With("module", ServiceName),
	}
}

// Init 按依赖顺序初始化。Redis 与 NATS 都是可选的：未配置时分别使用内存状态单元、不发送通知。
func (m *BridgeModule) Init(ctx context.Context) error {
	// 1. Metrics
	metrics.SetServiceName(ServiceName)
	m.initMetrics()

	// 2. State cell (Redis optional)
	if err := m.initStateStore(ctx); err != nil {
		return err
	}

	// 3. NATS (optional)
	if err := m.initNATS(); err != nil {
		return err
	}

	// 4. Response writer
	m.initResponseWriter()

	// 5. Services, handlers and emitter
	m.initServicesAndHandlers()

	// 6. HTTP server + routes
	m.initHTTPServer()
	m.setupRoutes()

	m.logger.Info("bridge module initialized", "config", m.cfg.LogFields())
	return nil
}

func (m *BridgeModule) initMetrics() {
	m.bridgeMetrics = metrics.NewBridgeMetrics(MetricsNamespace)
	m.httpMetrics = metrics.NewHTTPMetrics(MetricsNamespace)
	m.errorMetrics = metrics.NewErrorMetrics(MetricsNamespace)
}

func (m *BridgeModule) initStateStore(ctx context.Context) error {
	if !m.cfg.RedisEnabled() {
		m.store = state.NewMemoryStore()
		m.logger.Info("state cell: in-memory")
		return nil
	}

	client, err := redisClient.NewClient(ctx, redisClient.Config{
		Host:     m.cfg.RedisHost,
		Port:     m.cfg.RedisPort,
		Password: m.cfg.RedisPassword,
		DB:       m.cfg.RedisDB,
	}, m.bridgeMetrics)
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	m.redis = client
	m.store = state.NewRedisStore(client, state.DefaultRedisKey)
	m.logger.Info("state cell: redis", "addr", fmt.Sprintf("%s:%s", m.cfg.RedisHost, m.cfg.RedisPort), "db", m.cfg.RedisDB)
	return nil
}

func (m *BridgeModule) initNATS() error {
	if !m.cfg.NATSEnabled() {
		return nil
	}

	conn, err := natsclient.Connect(m.cfg.NATSAddress, "nuzlocke-bridge")
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	m.natsConn = conn
	m.natsHealth = natsclient.NewHealthChecker(conn, 10*time.Second)
	notify.SetNatsConn(conn)
	m.logger.Info("nats connected", "addr", m.cfg.NATSAddress)
	return nil
}

func (m *BridgeModule) initResponseWriter() {
	m.respWriter = response.NewResponseHandler(m.logger, !m.cfg.IsProduction())
}

func (m *BridgeModule) initServicesAndHandlers() {
	m.queryService = service.NewQueryService(m.store, m.cfg.DemoFallback, m.logger)
	m.pushService = service.NewPushService(m.store, m.bridgeMetrics, m.logger)

	// emitter 观察状态单元，推送刷新后订阅者收到事件
	m.emitter = tasks.NewPollingEmitter(state.AsSource(m.store), nil, m.cfg.PollInterval, m.bridgeMetrics, m.logger)

	m.queryHandler = handler.NewQueryHandler(m.queryService, m.respWriter)
	m.pushHandler = handler.NewPushHandler(m.pushService, m.respWriter)
	m.streamHandler = handler.NewStreamHandler(m.emitter, m.respWriter, m.bridgeMetrics, m.logger)

	m.statusHandler = handler.NewStatusPageHandler(m.store, m.respWriter, m.cfg.HTTPPort)
	m.healthHandler = handler.NewHealthHandler(m.respWriter)
	if m.redis != nil {
		m.healthHandler.Register("redis", m.redis.Status)
	} else {
		m.healthHandler.Register("redis", nil)
	}
	if m.natsHealth != nil {
		m.healthHandler.Register("nats", func(context.Context) string { return m.natsHealth.Status() })
	} else {
		m.healthHandler.Register("nats", nil)
	}
}

func (m *BridgeModule) initHTTPServer() {
	m.httpServer = echo.New()
	m.httpServer.HideBanner = true
	m.httpServer.HidePort = true
	m.httpServer.Validator = validator.New()
	m.httpServer.HTTPErrorHandler = custommiddleware.HTTPErrorHandler(m.respWriter, m.logger, m.errorMetrics)

	// ========== 中间件配置（顺序很重要！） ==========

	// 1. TraceID
	m.httpServer.Use(trace.Middleware())

	// 2. Metrics
	m.httpServer.Use(metrics.Middleware(m.httpMetrics))

	// 3. i18n
	m.httpServer.Use(i18n.Middleware())

	// 4. Logging（依赖 TraceID）
	loggingConfig := custommiddleware.DefaultLoggingConfig()
	if !m.cfg.IsProduction() {
		loggingConfig.DetailedLog = true
	}
	m.httpServer.Use(custommiddleware.LoggingMiddlewareWithConfig(m.logger, loggingConfig))

	// 5. Recovery
	m.httpServer.Use(custommiddleware.RecoveryMiddleware(m.respWriter, m.logger))

	// 6. Error
	m.httpServer.Use(custommiddleware.ErrorMiddleware(m.respWriter, m.logger, m.errorMetrics))

	// 7. CORS + security headers
	m.httpServer.Use(security.CORSMiddleware())
	m.httpServer.Use(security.SecurityHeadersMiddleware())
}

func (m *BridgeModule) setupRoutes() {
	api := m.httpServer.Group("/api")
	api.GET("/external", m.queryHandler.Query)
	api.POST("/update-data", m.pushHandler.Push, custommiddleware.RateLimitMiddleware(custommiddleware.DefaultPushRateLimit))
	api.GET("/stream", m.streamHandler.Stream)

	m.httpServer.GET("/", m.statusHandler.Status)
	m.httpServer.GET("/health", m.healthHandler.Health)
	m.httpServer.GET("/metrics", metrics.EchoHandler())
}

// Echo 返回 HTTP server（测试用）
func (m *BridgeModule) Echo() *echo.Echo {
	return m.httpServer
}

// Store 返回状态单元
func (m *BridgeModule) Store() state.Store {
	return m.store
}

// Emitter 返回轮询 emitter
func (m *BridgeModule) Emitter() *tasks.PollingEmitter {
	return m.emitter
}

// StartBackground 启动 emitter 与 NATS 健康检查，不启动 HTTP 监听
func (m *BridgeModule) StartBackground(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return
	}
	ctx, m.cancel = context.WithCancel(ctx)

	m.emitter.Start(ctx)
	if m.natsHealth != nil {
		m.bgWG.Add(1)
		go func() {
			defer m.bgWG.Done()
			m.natsHealth.Start(ctx)
		}()
	}
}

// Run 启动后台任务并阻塞监听 HTTP，直到 Shutdown
func (m *BridgeModule) Run(ctx context.Context) error {
	m.StartBackground(ctx)

	addr := ":" + m.cfg.HTTPPort
	m.logger.Info("http server starting", "addr", addr)
	if err := m.httpServer.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown 依次停止 emitter、HTTP server，关闭 NATS / Redis；可重复调用
func (m *BridgeModule) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		return nil
	}
	m.shutdown = true
	cancel := m.cancel
	m.mu.Unlock()

	if _, ok := ctx.Deadline(); !ok {
		var timeoutCancel context.CancelFunc
		ctx, timeoutCancel = context.WithTimeout(ctx, shutdownTimeout)
		defer timeoutCancel()
	}

	var errs []error

	if m.emitter != nil {
		m.emitter.Stop()
	}
	if m.natsHealth != nil {
		m.natsHealth.Stop()
	}
	if cancel != nil {
		cancel()
	}
	m.bgWG.Wait()

	if m.httpServer != nil {
		if err := m.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http server: %w", err))
		}
	}

	if m.natsConn != nil {
		notify.SetNatsConn(nil)
		if err := m.natsConn.Drain(); err != nil {
			errs = append(errs, fmt.Errorf("nats drain: %w", err))
		}
	}

	if m.redis != nil {
		if err := m.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}

	m.logger.Info("bridge module stopped")
	return errors.Join(errs...)
}
