package service

import (
	"context"
	"strings"

	"nuzlocke-bridge/internal/modules/bridge/state"
	"nuzlocke-bridge/internal/nuzlocke"
	"nuzlocke-bridge/internal/pkg/log"
	"nuzlocke-bridge/internal/pkg/xerrors"
)

// Endpoint 查询端点标签
type Endpoint string

const (
	EndpointStatus Endpoint = "status"
	EndpointTeam   Endpoint = "team"
	EndpointBox    Endpoint = "box"
	EndpointDead   Endpoint = "dead"
	EndpointBosses Endpoint = "bosses"
	EndpointFull   Endpoint = "full"
)

// DefaultEndpoint 未指定 endpoint 时使用
const DefaultEndpoint = EndpointStatus

// AvailableEndpoints 合法标签，顺序固定
func AvailableEndpoints() []string {
	return []string{"status", "team", "box", "dead", "bosses", "full"}
}

// ParseEndpoint 空串返回默认端点
func ParseEndpoint(s string) (Endpoint, bool) {
	if s == "" {
		return DefaultEndpoint, true
	}
	switch e := Endpoint(s); e {
	case EndpointStatus, EndpointTeam, EndpointBox, EndpointDead, EndpointBosses, EndpointFull:
		return e, true
	}
	return "", false
}

// 数据来源
const (
	DataSourceReal = "real"
	DataSourceMock = "mock"
)

// Meta 每个查询结果附带的来源信息；lastUpdate 未推送过时为 null
type Meta struct {
	DataSource string  `json:"dataSource"`
	LastUpdate *string `json:"lastUpdate"`
}

// StatusResponse status 端点
type StatusResponse struct {
	nuzlocke.Summary
	Meta Meta `json:"_meta"`
}

// TeamResponse team 端点
type TeamResponse struct {
	GameID string                    `json:"gameId"`
	Team   []nuzlocke.CreatureRecord `json:"team"`
	Meta   Meta                      `json:"_meta"`
}

// BoxResponse box 端点
type BoxResponse struct {
	GameID string                    `json:"gameId"`
	Box    []nuzlocke.CreatureRecord `json:"box"`
	Meta   Meta                      `json:"_meta"`
}

// DeadResponse dead 端点
type DeadResponse struct {
	GameID string                `json:"gameId"`
	Dead   []nuzlocke.DeadRecord `json:"dead"`
	Meta   Meta                  `json:"_meta"`
}

// BossesResponse bosses 端点
type BossesResponse struct {
	GameID string                   `json:"gameId"`
	Bosses []nuzlocke.BossEncounter `json:"bosses"`
	Meta   Meta                     `json:"_meta"`
}

// FullResponse full 端点
type FullResponse struct {
	nuzlocke.FullView
	Meta Meta `json:"_meta"`
}

// Route 把端点标签映射到对应视图。run 不存在返回 RunNotFound，标签未知返回 InvalidEndpoint。
func Route(endpoint, gameID string, idx nuzlocke.SaveIndex, snap *nuzlocke.Snapshot, meta Meta) (any, error) {
	run, ok := idx.Resolve(gameID)
	if !ok {
		return nil, xerrors.NewRunNotFoundError(gameID, idx.IDs())
	}

	ep, ok := ParseEndpoint(endpoint)
	if !ok {
		return nil, xerrors.NewInvalidEndpointError(endpoint, AvailableEndpoints())
	}

	switch ep {
	case EndpointTeam:
		return TeamResponse{GameID: run.ID, Team: nuzlocke.Team(snap), Meta: meta}, nil
	case EndpointBox:
		return BoxResponse{GameID: run.ID, Box: nuzlocke.Box(snap), Meta: meta}, nil
	case EndpointDead:
		return DeadResponse{GameID: run.ID, Dead: nuzlocke.Graveyard(snap), Meta: meta}, nil
	case EndpointBosses:
		return BossesResponse{GameID: run.ID, Bosses: nuzlocke.BossEncounters(snap), Meta: meta}, nil
	case EndpointFull:
		return FullResponse{FullView: nuzlocke.Full(run, snap), Meta: meta}, nil
	default:
		return StatusResponse{Summary: nuzlocke.Summarize(run, snap), Meta: meta}, nil
	}
}

// QueryRequest 一次查询
type QueryRequest struct {
	Endpoint string
	GameID   string

	// 请求头携带的原始数据，两者都非空时优先使用
	GameData  string
	SavesData string
}

func (r QueryRequest) hasPayload() bool {
	return strings.TrimSpace(r.GameData) != "" && strings.TrimSpace(r.SavesData) != ""
}

// QueryService 查询服务：请求头 > 状态单元 > 演示数据
type QueryService struct {
	store        state.Store
	demoFallback bool
	logger       log.Logger
}

// NewQueryService 创建查询服务
func NewQueryService(store state.Store, demoFallback bool, logger log.Logger) *QueryService {
	if logger == nil {
		logger = log.GetLogger()
	}
	return &QueryService{
		store:        store,
		demoFallback: demoFallback,
		logger:       logger.With("component", "query_service"),
	}
}

// Query 解析数据来源并路由到视图
func (s *QueryService) Query(ctx context.Context, req QueryRequest) (any, error) {
	gameData, savesData, meta, err := s.resolvePayload(ctx, req)
	if err != nil {
		return nil, err
	}

	idx := nuzlocke.ParseSaveIndex(savesData)
	if len(idx.Skipped) > 0 {
		s.logger.DebugContext(ctx, "save index entries skipped", "skipped", len(idx.Skipped))
	}
	return Route(req.Endpoint, req.GameID, idx, nuzlocke.ReadGameState(gameData), meta)
}

func (s *QueryService) resolvePayload(ctx context.Context, req QueryRequest) (string, string, Meta, error) {
	if req.hasPayload() {
		return req.GameData, req.SavesData, Meta{DataSource: DataSourceReal}, nil
	}

	if s.store != nil {
		data, ok, err := s.store.Load(ctx)
		if err != nil {
			return "", "", Meta{}, xerrors.NewWithError(xerrors.CodeStorageError, xerrors.CodeStorageError.Message(), err)
		}
		if ok && !data.Empty() {
			return data.GameData, data.SavesData, Meta{DataSource: DataSourceReal, LastUpdate: lastUpdatePtr(data)}, nil
		}
	}

	if s.demoFallback {
		return nuzlocke.DemoGameData, nuzlocke.DemoSavesData, Meta{DataSource: DataSourceMock}, nil
	}
	return "", "", Meta{}, xerrors.NewMissingGameDataError()
}

func lastUpdatePtr(d state.RealtimeData) *string {
	s := d.LastUpdateString()
	if s == "" {
		return nil
	}
	return &s
}
