package nuzlocke

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"nuzlocke-bridge/internal/pkg/log"
)

// run 状态中的保留键
const (
	keyTeam    = "__team"
	keyTeams   = "__teams"
	keyStarter = "__starter"

	reservedPrefix = "__"

	// UnknownStarter 没有 __starter 时的默认值
	UnknownStarter = "unknown"
)

// ErrNotObject run 状态的顶层不是 JSON 对象
var ErrNotObject = errors.New("game state is not a JSON object")

// Creature 某个地点上记录的宝可梦（原始字段，尚未套用默认值）
type Creature struct {
	LocationID string
	Species    string
	Name       string
	Level      int
	Status     Status
	Nature     string
	Ability    string
	Nickname   string
	Moves      []string
	Types      []string
	Stats      map[string]int
	Death      json.RawMessage
}

// HasSpecies 记录了宝可梦（地点可能只有占位数据）
func (c Creature) HasSpecies() bool {
	return c.Species != ""
}

// BossEncounter 道馆/四天王等对战记录；对手队伍原样保留
type BossEncounter struct {
	ID    string            `json:"id"`
	Name  string            `json:"name"`
	Type  string            `json:"type"`
	Group string            `json:"group"`
	Team  []json.RawMessage `json:"team"`
}

// Snapshot 一次读取得到的 run 状态，构造后不再修改
type Snapshot struct {
	locations []Creature
	byID      map[string]int
	teamOrder []string
	bosses    []BossEncounter
	starter   string
}

// EmptySnapshot 没有任何数据的快照
func EmptySnapshot() *Snapshot {
	return &Snapshot{byID: map[string]int{}, starter: UnknownStarter}
}

// Locations 按 JSON 中首次出现的顺序返回所有地点
func (s *Snapshot) Locations() []Creature {
	return append([]Creature(nil), s.locations...)
}

// Location 按地点 id 查找
func (s *Snapshot) Location(id string) (Creature, bool) {
	i, ok := s.byID[id]
	if !ok {
		return Creature{}, false
	}
	return s.locations[i], true
}

// TeamOrder __team 中的地点 id（可能包含已阵亡或不存在的地点）
func (s *Snapshot) TeamOrder() []string {
	return append([]string(nil), s.teamOrder...)
}

// BossEncounters __teams 中的对战记录
func (s *Snapshot) BossEncounters() []BossEncounter {
	return append([]BossEncounter(nil), s.bosses...)
}

// Starter 初始宝可梦属性，默认 "unknown"
func (s *Snapshot) Starter() string {
	return s.starter
}

// Empty 快照中没有任何数据
func (s *Snapshot) Empty() bool {
	return len(s.locations) == 0 && len(s.teamOrder) == 0 && len(s.bosses) == 0
}

// ReadGameState 解析 run 状态；无法解析时返回空快照并记录 warn 日志
func ReadGameState(raw string) *Snapshot {
	snap, err := DecodeGameState(raw)
	if err != nil {
		log.Warn("game state decode failed, using empty snapshot", log.Err(err), log.Int("bytes", len(raw)))
		return EmptySnapshot()
	}
	return snap
}

// DecodeGameState 严格解析 run 状态，保留键的顺序
// 空字符串视为没有数据，返回空快照
func DecodeGameState(raw string) (*Snapshot, error) {
	if strings.TrimSpace(raw) == "" {
		return EmptySnapshot(), nil
	}

	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("decode game state: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, ErrNotObject
	}

	snap := EmptySnapshot()
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("decode game state key: %w", err)
		}
		key, _ := keyTok.(string)

		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("decode game state %q: %w", key, err)
		}
		snap.apply(key, value)
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("decode game state: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("decode game state: trailing data after object")
	}

	return snap, nil
}

func (s *Snapshot) apply(key string, value json.RawMessage) {
	switch key {
	case keyTeam:
		s.teamOrder = stringList(value)
		return
	case keyTeams:
		s.bosses = bossList(value)
		return
	case keyStarter:
		if v, ok := stringValue(value); ok && v != "" {
			s.starter = v
		} else {
			s.starter = UnknownStarter
		}
		return
	}
	if strings.HasPrefix(key, reservedPrefix) {
		return
	}

	fields, ok := object(value)
	if !ok {
		return
	}
	c := creature(key, fields)

	// 重复键：后出现的值生效，位置沿用第一次出现的位置
	if i, dup := s.byID[key]; dup {
		s.locations[i] = c
		return
	}
	s.byID[key] = len(s.locations)
	s.locations = append(s.locations, c)
}

func creature(locationID string, f map[string]json.RawMessage) Creature {
	c := Creature{LocationID: locationID}
	c.Species, _ = stringValue(f["pokemon"])
	c.Name, _ = stringValue(f["name"])
	c.Level, _ = intValue(f["level"])
	status, _ := intValue(f["status"])
	c.Status = Status(status)
	c.Nature, _ = stringValue(f["nature"])
	c.Ability, _ = stringValue(f["ability"])
	c.Nickname, _ = stringValue(f["nickname"])
	c.Moves = stringList(f["moves"])
	c.Types = stringList(f["types"])
	c.Stats = statMap(f["stats"])
	if d := bytes.TrimSpace(f["death"]); len(d) > 0 && !bytes.Equal(d, []byte("null")) {
		c.Death = append(json.RawMessage(nil), d...)
	}
	return c
}

func bossList(raw json.RawMessage) []BossEncounter {
	var items []json.RawMessage
	if json.Unmarshal(raw, &items) != nil {
		return nil
	}

	bosses := make([]BossEncounter, 0, len(items))
	for _, item := range items {
		f, ok := object(item)
		if !ok {
			continue
		}
		b := BossEncounter{Team: []json.RawMessage{}}
		b.ID, _ = stringValue(f["id"])
		b.Name, _ = stringValue(f["name"])
		b.Type, _ = stringValue(f["type"])
		b.Group, _ = stringValue(f["group"])
		var team []json.RawMessage
		if json.Unmarshal(f["team"], &team) == nil && team != nil {
			b.Team = team
		}
		bosses = append(bosses, b)
	}
	return bosses
}
