package handler

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"nuzlocke-bridge/internal/nuzlocke"
	"nuzlocke-bridge/internal/pkg/log"
	"nuzlocke-bridge/internal/pkg/metrics"
	"nuzlocke-bridge/internal/pkg/pubsub"
	"nuzlocke-bridge/internal/pkg/response"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
	sendBuffer   = 16
)

// EventFeed 变更事件来源（PollingEmitter）
type EventFeed interface {
	Broker() *pubsub.Broker
	Latest() (nuzlocke.FullView, bool)
}

// StreamHandler /api/stream：连接时发送最新视图，之后转发 emitter 事件
type StreamHandler struct {
	feed       EventFeed
	respWriter response.Writer
	metrics    *metrics.BridgeMetrics
	logger     log.Logger
	upgrader   websocket.Upgrader
	dropped    atomic.Int64
}

// NewStreamHandler 创建 Handler
func NewStreamHandler(feed EventFeed, respWriter response.Writer, m *metrics.BridgeMetrics, logger log.Logger) *StreamHandler {
	if logger == nil {
		logger = log.GetLogger()
	}
	return &StreamHandler{
		feed:       feed,
		respWriter: respWriter,
		metrics:    m,
		logger:     logger.With("component", "stream_handler"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// overlay 跨域连接，与 CORS 策略一致
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Dropped 因客户端过慢而丢弃的事件数
func (h *StreamHandler) Dropped() int64 {
	return h.dropped.Load()
}

func wants(kinds []string, kind string) bool {
	if len(kinds) == 0 {
		return true
	}
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// initialEvents 由最新视图构造连接时下发的快照
func initialEvents(view nuzlocke.FullView, kinds []string, now time.Time) []pubsub.Event {
	var out []pubsub.Event
	if wants(kinds, pubsub.KindDataUpdate) {
		out = append(out, pubsub.Event{Kind: pubsub.KindDataUpdate, Payload: view, At: now})
	}
	if wants(kinds, pubsub.KindTeamUpdate) {
		out = append(out, pubsub.Event{Kind: pubsub.KindTeamUpdate, Payload: view.Team, At: now})
	}
	if wants(kinds, pubsub.KindStatsUpdate) {
		out = append(out, pubsub.Event{Kind: pubsub.KindStatsUpdate, Payload: view.Stats, At: now})
	}
	return out
}

// Stream GET /api/stream?events=
func (h *StreamHandler) Stream(c echo.Context) error {
	// 1. 校验事件过滤参数（升级前返回 400）
	kinds, err := pubsub.ParseKinds(c.QueryParam("events"))
	if err != nil {
		return response.EchoBadRequest(c, h.respWriter, "events", err.Error())
	}

	// 2. 升级连接
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.WarnContext(c.Request().Context(), "websocket upgrade failed", log.Err(err))
		return nil
	}
	defer conn.Close()

	h.metrics.StreamClientConnected()
	defer h.metrics.StreamClientDisconnected()

	// 3. 订阅；broker 同步回调，这里只做非阻塞投递
	send := make(chan pubsub.Event, sendBuffer)
	unsubscribe := h.feed.Broker().Subscribe(func(ev pubsub.Event) {
		select {
		case send <- ev:
		default:
			h.dropped.Add(1)
		}
	}, kinds...)
	defer unsubscribe()

	// 4. 发送最新快照
	if view, ok := h.feed.Latest(); ok {
		for _, ev := range initialEvents(view, kinds, time.Now()) {
			if err := writeEvent(conn, ev); err != nil {
				return nil
			}
		}
	}

	// 5. 读循环只处理 pong 和关闭
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return nil
		case ev := <-send:
			if err := writeEvent(conn, ev); err != nil {
				return nil
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		}
	}
}

func writeEvent(conn *websocket.Conn, ev pubsub.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}
