package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nuzlocke-bridge/internal/modules/bridge/service"
	"nuzlocke-bridge/internal/modules/bridge/state"
	"nuzlocke-bridge/internal/nuzlocke"
	"nuzlocke-bridge/internal/pkg/ctxkey"
	"nuzlocke-bridge/internal/pkg/log"
	"nuzlocke-bridge/internal/pkg/metrics"
	"nuzlocke-bridge/internal/pkg/pubsub"
	"nuzlocke-bridge/internal/pkg/response"
	"nuzlocke-bridge/internal/pkg/security"
	"nuzlocke-bridge/internal/pkg/validator"
)

func newEcho() *echo.Echo {
	e := echo.New()
	e.Validator = validator.New()
	return e
}

func newWriter() response.Writer {
	return response.NewResponseHandler(log.Discard(), false)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

// ==================== Query ====================

func serveQuery(t *testing.T, h *QueryHandler, target string, headers map[string]string) (*httptest.ResponseRecorder, echo.Context) {
	t.Helper()
	e := newEcho()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	require.NoError(t, h.Query(c))
	return rec, c
}

func TestQuery_HeadersTakePrecedence(t *testing.T) {
	store := state.NewMemoryStore()
	h := NewQueryHandler(service.NewQueryService(store, true, log.Discard()), newWriter())

	rec, c := serveQuery(t, h, "/api/external?endpoint=team", map[string]string{
		security.HeaderGameData:  nuzlocke.DemoGameData,
		security.HeaderSavesData: nuzlocke.DemoSavesData,
	})

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "abc123", body["gameId"])
	assert.Len(t, body["team"], 2)

	meta := body["_meta"].(map[string]any)
	assert.Equal(t, "real", meta["dataSource"])
	assert.Nil(t, meta["lastUpdate"])
	assert.Equal(t, "real", ctxkey.GetString(c.Request().Context(), ctxkey.DataSource))
}

func TestQuery_DemoFallback(t *testing.T) {
	h := NewQueryHandler(service.NewQueryService(state.NewMemoryStore(), true, log.Discard()), newWriter())

	rec, _ := serveQuery(t, h, "/api/external", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "My Emerald Nuzlocke", body["gameName"])
	assert.Equal(t, "fire", body["starter"])
	assert.Equal(t, "mock", body["_meta"].(map[string]any)["dataSource"])
}

func TestQuery_Errors(t *testing.T) {
	demo := map[string]string{
		security.HeaderGameData:  nuzlocke.DemoGameData,
		security.HeaderSavesData: nuzlocke.DemoSavesData,
	}

	tests := []struct {
		name     string
		target   string
		headers  map[string]string
		demo     bool
		status   int
		errorMsg string
	}{
		{"missing data", "/api/external", nil, false, http.StatusBadRequest, "Missing game data. Please provide x-game-data and x-saves-data headers."},
		{"unknown run", "/api/external?gameId=zzz", demo, false, http.StatusNotFound, "Game not found"},
		{"unknown endpoint", "/api/external?endpoint=party", demo, false, http.StatusBadRequest, "Invalid endpoint"},
		{"unknown run wins over endpoint", "/api/external?endpoint=party&gameId=zzz", demo, false, http.StatusNotFound, "Game not found"},
		{"bad game id", "/api/external?gameId=a%7Cb", demo, false, http.StatusBadRequest, "Invalid parameters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewQueryHandler(service.NewQueryService(state.NewMemoryStore(), tt.demo, log.Discard()), newWriter())
			rec, _ := serveQuery(t, h, tt.target, tt.headers)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.errorMsg, decodeBody(t, rec)["error"])
		})
	}
}

func TestQuery_InvalidEndpointListsAvailable(t *testing.T) {
	h := NewQueryHandler(service.NewQueryService(nil, true, log.Discard()), newWriter())
	rec, _ := serveQuery(t, h, "/api/external?endpoint=party", nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, []any{"status", "team", "box", "dead", "bosses", "full"}, body["availableEndpoints"])
}

// ==================== Push ====================

func servePush(t *testing.T, h *PushHandler, body, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	e := newEcho()
	req := httptest.NewRequest(http.MethodPost, "/api/update-data", strings.NewReader(body))
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	rec := httptest.NewRecorder()
	require.NoError(t, h.Push(e.NewContext(req, rec)))
	return rec
}

func pushBodyJSON(t *testing.T, game, saves string) string {
	t.Helper()
	data, err := json.Marshal(map[string]string{"gameData": game, "savesData": saves})
	require.NoError(t, err)
	return string(data)
}

func TestPush_AcceptsAnyContentType(t *testing.T) {
	store := state.NewMemoryStore()
	h := NewPushHandler(service.NewPushService(store, nil, log.Discard()), newWriter())

	rec := servePush(t, h, pushBodyJSON(t, nuzlocke.DemoGameData, nuzlocke.DemoSavesData), "text/plain")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.NotEmpty(t, body["timestamp"])

	data, ok, err := store.Load(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, nuzlocke.DemoSavesData, data.SavesData)
}

func TestPush_UnchangedKeepsTimestamp(t *testing.T) {
	h := NewPushHandler(service.NewPushService(state.NewMemoryStore(), nil, log.Discard()), newWriter())
	body := pushBodyJSON(t, nuzlocke.DemoGameData, nuzlocke.DemoSavesData)

	first := decodeBody(t, servePush(t, h, body, echo.MIMEApplicationJSON))
	time.Sleep(5 * time.Millisecond)
	second := decodeBody(t, servePush(t, h, body, echo.MIMEApplicationJSON))

	assert.Equal(t, first["timestamp"], second["timestamp"])
}

func TestPush_InvalidBodies(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"not json", `gameData=1`, ""},
		{"missing saves", `{"gameData":"{}"}`, "savesData"},
		{"game data not an object", `{"gameData":"[1,2]","savesData":"abc|1"}`, "gameData"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := state.NewMemoryStore()
			h := NewPushHandler(service.NewPushService(store, nil, log.Discard()), newWriter())

			rec := servePush(t, h, tt.body, echo.MIMEApplicationJSON)
			require.Equal(t, http.StatusBadRequest, rec.Code)

			body := decodeBody(t, rec)
			assert.Equal(t, "Invalid JSON data", body["error"])
			if tt.field != "" {
				assert.Equal(t, tt.field, body["field"])
			}

			_, ok, err := store.Load(context.Background())
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

// ==================== Health ====================

func TestHealth(t *testing.T) {
	h := NewHealthHandler(newWriter())
	h.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 6_000_000, time.UTC) }
	h.Register("nats", nil)
	h.Register("redis", func(context.Context) string { return "connected" })

	e := newEcho()
	rec := httptest.NewRecorder()
	require.NoError(t, h.Health(e.NewContext(httptest.NewRequest(http.MethodGet, "/health", nil), rec)))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "2024-01-02T03:04:05.006Z", resp.Timestamp)
	assert.Equal(t, map[string]string{"nats": StatusDisabled, "redis": "connected"}, resp.Services)
}

// ==================== Status page ====================

func TestStatusPage(t *testing.T) {
	pushed := state.RealtimeData{
		GameData:   nuzlocke.DemoGameData,
		SavesData:  nuzlocke.DemoSavesData,
		LastUpdate: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	tests := []struct {
		name       string
		store      state.Store
		wantSource string
		contains   []string
	}{
		{"no data yet", state.NewMemoryStore(), service.DataSourceMock, []string{"Using mock data", "Never"}},
		{"pushed data", state.NewMemoryStoreWith(pushed), service.DataSourceReal, []string{"Real data connected", "2024-01-02T03:04:05.000Z"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewStatusPageHandler(tt.store, newWriter(), "5174")

			page, err := h.Page(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.wantSource, page.DataSource)
			assert.Equal(t, service.AvailableEndpoints(), page.Endpoints)

			e := newEcho()
			rec := httptest.NewRecorder()
			require.NoError(t, h.Status(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)))

			require.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, rec.Header().Get(echo.HeaderContentType), "text/html")
			body := rec.Body.String()
			assert.Contains(t, body, "5174")
			assert.Contains(t, body, `href="/api/external?endpoint=full"`)
			for _, want := range tt.contains {
				assert.Contains(t, body, want)
			}
		})
	}
}

// ==================== Stream ====================

type fakeFeed struct {
	broker *pubsub.Broker
	view   nuzlocke.FullView
	ok     bool
}

func (f *fakeFeed) Broker() *pubsub.Broker            { return f.broker }
func (f *fakeFeed) Latest() (nuzlocke.FullView, bool) { return f.view, f.ok }

func demoView() nuzlocke.FullView {
	idx := nuzlocke.ParseSaveIndex(nuzlocke.DemoSavesData)
	run, _ := idx.First()
	return nuzlocke.Full(run, nuzlocke.ReadGameState(nuzlocke.DemoGameData))
}

type wireEvent struct {
	Kind string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func startStream(t *testing.T, feed *fakeFeed) (*StreamHandler, *metrics.BridgeMetrics, string) {
	t.Helper()
	m := metrics.NewBridgeMetricsWithRegistry("test", prometheus.NewRegistry())
	h := NewStreamHandler(feed, newWriter(), m, log.Discard())

	e := newEcho()
	e.GET("/api/stream", h.Stream)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return h, m, "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/stream"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) wireEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev wireEvent
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestStream_SendsLatestThenForwards(t *testing.T) {
	feed := &fakeFeed{broker: pubsub.NewBroker(), view: demoView(), ok: true}
	_, m, url := startStream(t, feed)
	conn := dial(t, url)

	assert.Equal(t, pubsub.KindDataUpdate, readEvent(t, conn).Kind)
	team := readEvent(t, conn)
	assert.Equal(t, pubsub.KindTeamUpdate, team.Kind)
	var records []nuzlocke.CreatureRecord
	require.NoError(t, json.Unmarshal(team.Data, &records))
	assert.Len(t, records, 2)
	assert.Equal(t, pubsub.KindStatsUpdate, readEvent(t, conn).Kind)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.StreamClients.WithLabelValues(metrics.GetServiceName())))

	feed.broker.Publish(pubsub.KindError, map[string]string{"message": "boom"})
	ev := readEvent(t, conn)
	assert.Equal(t, pubsub.KindError, ev.Kind)
	assert.JSONEq(t, `{"message":"boom"}`, string(ev.Data))
}

func TestStream_EventFilter(t *testing.T) {
	feed := &fakeFeed{broker: pubsub.NewBroker(), view: demoView(), ok: true}
	_, _, url := startStream(t, feed)
	conn := dial(t, url+"?events=statsUpdate")

	first := readEvent(t, conn)
	assert.Equal(t, pubsub.KindStatsUpdate, first.Kind)

	feed.broker.Publish(pubsub.KindTeamUpdate, []string{})
	feed.broker.Publish(pubsub.KindStatsUpdate, nuzlocke.Stats{TeamCount: 3})

	ev := readEvent(t, conn)
	assert.Equal(t, pubsub.KindStatsUpdate, ev.Kind)
	assert.JSONEq(t, `{"teamCount":3,"boxCount":0,"deadCount":0,"totalCaught":0}`, string(ev.Data))
}

func TestStream_NoLatestView(t *testing.T) {
	feed := &fakeFeed{broker: pubsub.NewBroker()}
	_, _, url := startStream(t, feed)
	conn := dial(t, url)

	require.Eventually(t, func() bool { return feed.broker.Len() == 1 }, time.Second, 5*time.Millisecond)
	feed.broker.Publish(pubsub.KindDataUpdate, demoView())
	assert.Equal(t, pubsub.KindDataUpdate, readEvent(t, conn).Kind)
}

func TestStream_UnsubscribesOnClose(t *testing.T) {
	feed := &fakeFeed{broker: pubsub.NewBroker()}
	_, m, url := startStream(t, feed)
	conn := dial(t, url)

	require.Eventually(t, func() bool { return feed.broker.Len() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool { return feed.broker.Len() == 0 }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(m.StreamClients.WithLabelValues(metrics.GetServiceName())) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestStream_UnknownEventKind(t *testing.T) {
	feed := &fakeFeed{broker: pubsub.NewBroker()}
	h := NewStreamHandler(feed, newWriter(), nil, log.Discard())

	e := newEcho()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/stream?events=teamUpdate,party", nil)
	require.NoError(t, h.Stream(e.NewContext(req, rec)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "events", decodeBody(t, rec)["field"])
	assert.Equal(t, 0, feed.broker.Len())
}
