package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeHello       = "HELLO"
	TypeWelcome     = "WELCOME"
	TypeInput       = "INPUT"
	TypeState       = "STATE"
	TypeGameOver    = "GAME_OVER"
	TypeSubmitScore = "SUBMIT_SCORE"
	TypeLeaderboard = "LEADERBOARD"
	TypeError       = "ERROR"
)

// Input actions.
const (
	ActionUp    = "UP"
	ActionDown  = "DOWN"
	ActionLeft  = "LEFT"
	ActionRight = "RIGHT"
	ActionPause = "PAUSE"
	ActionReset = "RESET"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
