package game

// Phase is the externally visible lifecycle of a State.
type Phase string

const (
	PhasePaused   Phase = "PAUSED"
	PhaseRunning  Phase = "RUNNING"
	PhaseGameOver Phase = "GAME_OVER"
)

// State is one complete game snapshot. Snake is head-first.
//
// Direction is the heading committed by the last step; Pending is the heading
// the next step will commit. Keypresses only ever touch Pending.
type State struct {
	Snake     []Position `json:"snake"`
	Food      Position   `json:"food"`
	Direction Direction  `json:"direction"`
	Pending   Direction  `json:"pending"`
	Score     int        `json:"score"`
	Paused    bool       `json:"paused"`
	GameOver  bool       `json:"game_over"`
	Tick      uint64     `json:"tick"`
}

func (s State) Phase() Phase {
	switch {
	case s.GameOver:
		return PhaseGameOver
	case s.Paused:
		return PhasePaused
	default:
		return PhaseRunning
	}
}

func (s State) Head() Position {
	if len(s.Snake) == 0 {
		return Position{}
	}
	return s.Snake[0]
}

// Occupies reports whether any snake segment sits on p.
func (s State) Occupies(p Position) bool {
	for _, seg := range s.Snake {
		if seg == p {
			return true
		}
	}
	return false
}

// Clone returns a copy that shares no memory with s.
func (s State) Clone() State {
	out := s
	if s.Snake != nil {
		out.Snake = append([]Position(nil), s.Snake...)
	}
	return out
}

// Equal compares two states structurally.
func (s State) Equal(o State) bool {
	if len(s.Snake) != len(o.Snake) {
		return false
	}
	for i := range s.Snake {
		if s.Snake[i] != o.Snake[i] {
			return false
		}
	}
	return s.Food == o.Food &&
		s.Direction == o.Direction &&
		s.Pending == o.Pending &&
		s.Score == o.Score &&
		s.Paused == o.Paused &&
		s.GameOver == o.GameOver &&
		s.Tick == o.Tick
}
