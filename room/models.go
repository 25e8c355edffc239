package room

// Difficulty is a member's chosen play mode. The numeric values are part of
// the wire contract.
type Difficulty int

const (
	DifficultyNormal Difficulty = 1
	DifficultyHard   Difficulty = 2
)

func (d Difficulty) Valid() bool {
	return d == DifficultyNormal || d == DifficultyHard
}

// Status is the room lifecycle state. Waiting is the initial state;
// LiveStart and Dissolved are terminal.
type Status int

const (
	StatusWaiting   Status = 1
	StatusLiveStart Status = 2
	StatusDissolved Status = 3
)

// JoinResult is the domain-level outcome of a join attempt, returned as a
// value rather than an error.
type JoinResult int

const (
	JoinOk         JoinResult = 1
	JoinRoomFull   JoinResult = 2
	JoinDisbanded  JoinResult = 3
	JoinOtherError JoinResult = 4
)

// JudgeCounts is the per-play judgement breakdown, in the order
// perfect, great, good, bad, miss.
type JudgeCounts [5]int64

type Summary struct {
	RoomID      int64 `json:"room_id"`
	LiveID      int64 `json:"live_id"`
	JoinedCount int   `json:"joined_user_count"`
	MaxMembers  int   `json:"max_user_count"`
}

type Member struct {
	UserID       int64      `json:"user_id"`
	Name         string     `json:"name"`
	LeaderCardID int64      `json:"leader_card_id"`
	Difficulty   Difficulty `json:"select_difficulty"`
	IsMe         bool       `json:"is_me"`
	IsHost       bool       `json:"is_host"`
}

type Result struct {
	UserID      int64       `json:"user_id"`
	JudgeCounts JudgeCounts `json:"judge_count_list"`
	Score       int64       `json:"score"`
}
