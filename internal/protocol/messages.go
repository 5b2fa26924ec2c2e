package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	PlayerName      string            `json:"player_name,omitempty"`
	Capabilities    HelloCapabilities `json:"capabilities,omitempty"`
}

type HelloCapabilities struct {
	MaxQueue int `json:"max_queue,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	SessionID       string         `json:"session_id"`
	GameParams      GameParams     `json:"game_params"`
	State           StateMsg       `json:"state"`
	Leaderboard     LeaderboardMsg `json:"leaderboard"`
}

type GameParams struct {
	GridSize   int `json:"grid_size"`
	TickMs     int `json:"tick_ms"`
	MaxEntries int `json:"max_entries"`
}

// INPUT (client -> server)
type InputMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Action          string `json:"action"`
}

// STATE (server -> client), sent after every tick that changed the game.
type StateMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	RunID           string   `json:"run_id"`
	Tick            uint64   `json:"tick"`
	Phase           string   `json:"phase"`
	Direction       string   `json:"direction"`
	Snake           [][2]int `json:"snake"`
	Food            [2]int   `json:"food"`
	Score           int      `json:"score"`
	Ate             bool     `json:"ate,omitempty"`
	Collision       string   `json:"collision,omitempty"`
}

// GAME_OVER (server -> client)
type GameOverMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	RunID           string `json:"run_id"`
	Score           int    `json:"score"`
	Collision       string `json:"collision"`
	// Rank is the leaderboard position the score would take, 0 if it would not place.
	Rank int `json:"rank"`
}

// SUBMIT_SCORE (client -> server)
type SubmitScoreMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	RunID           string `json:"run_id"`
	Name            string `json:"name"`
}

// LEADERBOARD (server -> client)
type LeaderboardMsg struct {
	Type            string             `json:"type"`
	ProtocolVersion string             `json:"protocol_version"`
	Entries         []LeaderboardEntry `json:"entries"`
}

type LeaderboardEntry struct {
	Rank  int    `json:"rank"`
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// ERROR (server -> client)
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message,omitempty"`
}

func NewError(code, msg string) ErrorMsg {
	return ErrorMsg{Type: TypeError, ProtocolVersion: Version, Code: code, Message: msg}
}
