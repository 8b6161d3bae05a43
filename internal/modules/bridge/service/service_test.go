package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"nuzlocke-bridge/internal/modules/bridge/state"
	"nuzlocke-bridge/internal/nuzlocke"
	"nuzlocke-bridge/internal/pkg/log"
	"nuzlocke-bridge/internal/pkg/metrics"
	"nuzlocke-bridge/internal/pkg/xerrors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	twoRuns   = "a|1000>2000|Run%20A|emerald|cfg|3,b|3000|Run%20B|ruby|cfg|x"
	stateTwo  = `{"__team":["r1","r2"],"__starter":"water","r1":{"pokemon":"mudkip","status":1},"r2":{"pokemon":"zigzagoon","status":5,"death":{"trainer":"Brawly"}}}`
	customRun = "zz|1|Custom|gold|cfg|1"
)

func toMap(t *testing.T, v any) map[string]any {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	return m
}

func TestParseEndpoint(t *testing.T) {
	ep, ok := ParseEndpoint("")
	assert.True(t, ok)
	assert.Equal(t, EndpointStatus, ep)

	for _, name := range AvailableEndpoints() {
		ep, ok := ParseEndpoint(name)
		assert.True(t, ok, name)
		assert.Equal(t, Endpoint(name), ep)
	}

	_, ok = ParseEndpoint("STATUS")
	assert.False(t, ok)
}

func TestRoute_InvalidEndpoint(t *testing.T) {
	idx := nuzlocke.ParseSaveIndex(twoRuns)
	_, err := Route("bogus", "", idx, nuzlocke.ReadGameState(stateTwo), Meta{})

	appErr, ok := xerrors.As(err)
	require.True(t, ok)
	assert.Equal(t, xerrors.CodeInvalidEndpoint, appErr.Code)
	v, _ := appErr.MetadataValue("availableEndpoints")
	assert.Equal(t, []string{"status", "team", "box", "dead", "bosses", "full"}, v)
	assert.Equal(t, 400, xerrors.GetHTTPStatus(appErr.Code))
}

func TestRoute_RunNotFound(t *testing.T) {
	idx := nuzlocke.ParseSaveIndex(twoRuns)
	_, err := Route("status", "missing", idx, nuzlocke.EmptySnapshot(), Meta{})

	appErr, ok := xerrors.As(err)
	require.True(t, ok)
	assert.Equal(t, xerrors.CodeRunNotFound, appErr.Code)
	v, _ := appErr.MetadataValue("availableGames")
	assert.Equal(t, []string{"a", "b"}, v)
	assert.Equal(t, 404, xerrors.GetHTTPStatus(appErr.Code))
}

func TestRoute_StatusHasNoSequences(t *testing.T) {
	idx := nuzlocke.ParseSaveIndex(twoRuns)
	out, err := Route("", "", idx, nuzlocke.ReadGameState(stateTwo), Meta{DataSource: DataSourceReal})
	require.NoError(t, err)

	m := toMap(t, out)
	assert.Equal(t, "a", m["gameId"])
	assert.Equal(t, "Run A", m["gameName"])
	assert.Equal(t, "2000", m["updated"])
	assert.Equal(t, 3.0, m["attempts"])
	assert.Equal(t, "water", m["starter"])
	assert.Equal(t, 2.0, m["teamCount"])
	assert.Equal(t, 1.0, m["boxCount"])
	assert.Equal(t, 1.0, m["deadCount"])
	assert.NotContains(t, m, "team")
	assert.NotContains(t, m, "box")
	assert.Equal(t, map[string]any{"dataSource": "real", "lastUpdate": nil}, m["_meta"])
}

func TestRoute_ExplicitGameID(t *testing.T) {
	idx := nuzlocke.ParseSaveIndex(twoRuns)
	out, err := Route("status", "b", idx, nuzlocke.EmptySnapshot(), Meta{})
	require.NoError(t, err)

	status := out.(StatusResponse)
	assert.Equal(t, "b", status.GameID)
	assert.Equal(t, 1, status.Attempts)
	assert.Equal(t, nuzlocke.UnknownStarter, status.Starter)
}

func TestRoute_Views(t *testing.T) {
	idx := nuzlocke.ParseSaveIndex(twoRuns)
	snap := nuzlocke.ReadGameState(stateTwo)

	out, err := Route("team", "", idx, snap, Meta{})
	require.NoError(t, err)
	team := out.(TeamResponse)
	require.Len(t, team.Team, 1)
	assert.Equal(t, "r1", team.Team[0].LocationID)

	out, err = Route("dead", "", idx, snap, Meta{})
	require.NoError(t, err)
	dead := out.(DeadResponse)
	require.Len(t, dead.Dead, 1)
	assert.JSONEq(t, `{"trainer":"Brawly"}`, string(dead.Dead[0].Death))

	out, err = Route("bosses", "", idx, snap, Meta{})
	require.NoError(t, err)
	assert.NotNil(t, out.(BossesResponse).Bosses)

	out, err = Route("full", "", idx, snap, Meta{})
	require.NoError(t, err)
	m := toMap(t, out)
	for _, key := range []string{"team", "box", "dead", "bosses", "stats", "_meta", "starter"} {
		assert.Contains(t, m, key)
	}
}

func newQueryService(store state.Store, demo bool) *QueryService {
	return NewQueryService(store, demo, log.Discard())
}

func TestQueryService_HeadersWin(t *testing.T) {
	store := state.NewMemoryStoreWith(state.RealtimeData{GameData: stateTwo, SavesData: twoRuns, LastUpdate: time.Now()})
	svc := newQueryService(store, true)

	out, err := svc.Query(context.Background(), QueryRequest{GameData: "{}", SavesData: customRun})
	require.NoError(t, err)
	status := out.(StatusResponse)
	assert.Equal(t, "zz", status.GameID)
	assert.Equal(t, DataSourceReal, status.Meta.DataSource)
	assert.Nil(t, status.Meta.LastUpdate)
}

func TestQueryService_StateCellThenDemo(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	store := state.NewMemoryStoreWith(state.RealtimeData{GameData: stateTwo, SavesData: twoRuns, LastUpdate: ts})

	out, err := newQueryService(store, true).Query(context.Background(), QueryRequest{Endpoint: "team"})
	require.NoError(t, err)
	team := out.(TeamResponse)
	assert.Equal(t, "a", team.GameID)
	require.NotNil(t, team.Meta.LastUpdate)
	assert.Equal(t, "2024-01-02T03:04:05.000Z", *team.Meta.LastUpdate)

	out, err = newQueryService(state.NewMemoryStore(), true).Query(context.Background(), QueryRequest{Endpoint: "full"})
	require.NoError(t, err)
	full := out.(FullResponse)
	assert.Equal(t, DataSourceMock, full.Meta.DataSource)
	assert.Equal(t, "abc123", full.GameID)
	assert.Len(t, full.Team, 2)
}

func TestQueryService_MissingGameData(t *testing.T) {
	_, err := newQueryService(state.NewMemoryStore(), false).Query(context.Background(), QueryRequest{GameData: "{}"})
	assert.True(t, xerrors.IsCode(err, xerrors.CodeMissingGameData))

	_, err = newQueryService(nil, false).Query(context.Background(), QueryRequest{})
	assert.True(t, xerrors.IsCode(err, xerrors.CodeMissingGameData))
}

type brokenStore struct{}

func (brokenStore) Load(context.Context) (state.RealtimeData, bool, error) {
	return state.RealtimeData{}, false, errors.New("connection refused")
}

func (brokenStore) Save(context.Context, state.RealtimeData) error {
	return errors.New("connection refused")
}

func TestQueryService_StoreFailure(t *testing.T) {
	_, err := newQueryService(brokenStore{}, true).Query(context.Background(), QueryRequest{})
	assert.True(t, xerrors.IsCode(err, xerrors.CodeStorageError))
}

func newPushService(t *testing.T, store state.Store) (*PushService, *metrics.BridgeMetrics) {
	t.Helper()
	m := metrics.NewBridgeMetricsWithRegistry("test", prometheus.NewRegistry())
	svc := NewPushService(store, m, log.Discard())
	clock := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return svc, m
}

func TestPushService_Idempotent(t *testing.T) {
	store := state.NewMemoryStore()
	svc, m := newPushService(t, store)
	ctx := context.Background()
	req := PushRequest{GameData: stateTwo, SavesData: twoRuns}

	first, err := svc.Accept(ctx, req)
	require.NoError(t, err)
	assert.True(t, first.Changed)
	assert.Equal(t, "2024-03-01T10:00:01.000Z", first.Timestamp)

	second, err := svc.Accept(ctx, req)
	require.NoError(t, err)
	assert.False(t, second.Changed)
	assert.Equal(t, first.Timestamp, second.Timestamp)

	service := metrics.GetServiceName()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PushesReceivedTotal.WithLabelValues(service, "refreshed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PushesReceivedTotal.WithLabelValues(service, "unchanged")))
}

func TestPushService_ChangeReplacesCell(t *testing.T) {
	store := state.NewMemoryStore()
	svc, _ := newPushService(t, store)
	ctx := context.Background()

	_, err := svc.Accept(ctx, PushRequest{GameData: stateTwo, SavesData: twoRuns})
	require.NoError(t, err)
	res, err := svc.Accept(ctx, PushRequest{GameData: "{}", SavesData: customRun})
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, "2024-03-01T10:00:02.000Z", res.Timestamp)

	data, ok, err := store.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, customRun, data.SavesData)
	assert.Equal(t, nuzlocke.ComputeFingerprint(customRun, "{}"), data.Fingerprint)
}

func TestPushService_StoreFailure(t *testing.T) {
	svc, _ := newPushService(t, brokenStore{})
	_, err := svc.Accept(context.Background(), PushRequest{GameData: "{}", SavesData: customRun})
	assert.True(t, xerrors.IsCode(err, xerrors.CodeStorageError))
}
