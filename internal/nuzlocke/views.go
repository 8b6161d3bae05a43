package nuzlocke

import "encoding/json"

// CreatureRecord 视图中的一只宝可梦（字段名与 overlay 约定一致）
type CreatureRecord struct {
	LocationID string         `json:"locationId"`
	Species    string         `json:"pokemon"`
	Name       string         `json:"name"`
	Level      int            `json:"level"`
	Status     Status         `json:"status"`
	Nature     string         `json:"nature,omitempty"`
	Ability    string         `json:"ability,omitempty"`
	Moves      []string       `json:"moves"`
	Types      []string       `json:"types"`
	Stats      map[string]int `json:"stats"`
	Nickname   string         `json:"nickname,omitempty"`
}

// DeadRecord 墓地中的宝可梦；death 原样输出，没有时为 null
type DeadRecord struct {
	CreatureRecord
	Death json.RawMessage `json:"death"`
}

// Stats 汇总计数
type Stats struct {
	TeamCount   int `json:"teamCount"`
	BoxCount    int `json:"boxCount"`
	DeadCount   int `json:"deadCount"`
	TotalCaught int `json:"totalCaught"`
}

// Summary run 元数据 + starter + 计数
type Summary struct {
	GameID      string `json:"gameId"`
	GameName    string `json:"gameName"`
	GameVersion string `json:"gameVersion"`
	Created     string `json:"created"`
	Updated     string `json:"updated,omitempty"`
	Attempts    int    `json:"attempts"`
	Starter     string `json:"starter"`
	Stats
}

// FullView 一次返回所有视图
type FullView struct {
	GameID      string           `json:"gameId"`
	GameName    string           `json:"gameName"`
	GameVersion string           `json:"gameVersion"`
	Created     string           `json:"created"`
	Updated     string           `json:"updated,omitempty"`
	Attempts    int              `json:"attempts"`
	Starter     string           `json:"starter"`
	Team        []CreatureRecord `json:"team"`
	Box         []CreatureRecord `json:"box"`
	Dead        []DeadRecord     `json:"dead"`
	Bosses      []BossEncounter  `json:"bosses"`
	Stats       Stats            `json:"stats"`
}

func record(c Creature, status Status) CreatureRecord {
	name := c.Name
	if name == "" {
		name = c.Species
	}
	level := c.Level
	if level < 1 {
		level = 1
	}
	moves, types, stats := c.Moves, c.Types, c.Stats
	if moves == nil {
		moves = []string{}
	}
	if types == nil {
		types = []string{}
	}
	if stats == nil {
		stats = map[string]int{}
	}
	return CreatureRecord{
		LocationID: c.LocationID,
		Species:    c.Species,
		Name:       name,
		Level:      level,
		Status:     status,
		Nature:     c.Nature,
		Ability:    c.Ability,
		Moves:      moves,
		Types:      types,
		Stats:      stats,
		Nickname:   c.Nickname,
	}
}

// Team 按 __team 顺序返回队伍；不存在、没有宝可梦、已阵亡的地点被跳过
// 缺少 status 的队伍成员视为已捕获
func Team(s *Snapshot) []CreatureRecord {
	team := make([]CreatureRecord, 0, len(s.teamOrder))
	for _, id := range s.teamOrder {
		c, ok := s.Location(id)
		if !ok || !c.HasSpecies() {
			continue
		}
		status := c.Status
		if status == 0 {
			status = StatusCaptured
		}
		if !status.TeamEligible() {
			continue
		}
		team = append(team, record(c, status))
	}
	return team
}

// Box 所有可用（1/2/3/6）的宝可梦，包含队伍成员
func Box(s *Snapshot) []CreatureRecord {
	box := make([]CreatureRecord, 0)
	for _, c := range s.locations {
		if c.HasSpecies() && c.Status.Available() {
			box = append(box, record(c, c.Status))
		}
	}
	return box
}

// Graveyard 所有阵亡的宝可梦
func Graveyard(s *Snapshot) []DeadRecord {
	dead := make([]DeadRecord, 0)
	for _, c := range s.locations {
		if c.HasSpecies() && c.Status.Dead() {
			dead = append(dead, DeadRecord{CreatureRecord: record(c, c.Status), Death: c.Death})
		}
	}
	return dead
}

// BossEncounters 对战记录，team 缺省为空列表
func BossEncounters(s *Snapshot) []BossEncounter {
	bosses := s.BossEncounters()
	if bosses == nil {
		return []BossEncounter{}
	}
	return bosses
}

// ComputeStats 计数；teamCount 取 __team 的长度（包含已阵亡的占位）
func ComputeStats(s *Snapshot) Stats {
	box := 0
	dead := 0
	for _, c := range s.locations {
		if !c.HasSpecies() {
			continue
		}
		switch {
		case c.Status.Available():
			box++
		case c.Status.Dead():
			dead++
		}
	}
	return Stats{
		TeamCount:   len(s.teamOrder),
		BoxCount:    box,
		DeadCount:   dead,
		TotalCaught: box,
	}
}

// Summarize 汇总 run 元数据与计数
func Summarize(run RunRecord, s *Snapshot) Summary {
	return Summary{
		GameID:      run.ID,
		GameName:    run.Name,
		GameVersion: run.Game,
		Created:     run.Created,
		Updated:     run.Updated,
		Attempts:    run.Attempts,
		Starter:     s.Starter(),
		Stats:       ComputeStats(s),
	}
}

// Full 所有视图
func Full(run RunRecord, s *Snapshot) FullView {
	sum := Summarize(run, s)
	return FullView{
		GameID:      sum.GameID,
		GameName:    sum.GameName,
		GameVersion: sum.GameVersion,
		Created:     sum.Created,
		Updated:     sum.Updated,
		Attempts:    sum.Attempts,
		Starter:     sum.Starter,
		Team:        Team(s),
		Box:         Box(s),
		Dead:        Graveyard(s),
		Bosses:      BossEncounters(s),
		Stats:       sum.Stats,
	}
}
