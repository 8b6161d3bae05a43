package nuzlocke

// Status creature 的当前状态码（tracker 写入的整数，取值固定）
type Status int

const (
	StatusCaptured Status = 1
	StatusReceived Status = 2
	StatusTraded   Status = 3
	StatusMissed   Status = 4
	StatusDead     Status = 5
	StatusShiny    Status = 6
	StatusTrash    Status = 7
)

// Available 可用（在 Box 中）：捕获、赠送、交换、闪光
func (s Status) Available() bool {
	switch s {
	case StatusCaptured, StatusReceived, StatusTraded, StatusShiny:
		return true
	}
	return false
}

// Dead 阵亡（在墓地中）
func (s Status) Dead() bool {
	return s == StatusDead
}

// TeamEligible 队伍成员由 __team 决定，这里只排除阵亡
func (s Status) TeamEligible() bool {
	return !s.Dead()
}

func (s Status) String() string {
	switch s {
	case StatusCaptured:
		return "captured"
	case StatusReceived:
		return "received"
	case StatusTraded:
		return "traded"
	case StatusMissed:
		return "missed"
	case StatusDead:
		return "dead"
	case StatusShiny:
		return "shiny"
	case StatusTrash:
		return "trash"
	default:
		return "unknown"
	}
}
