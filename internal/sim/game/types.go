package game

import (
	"fmt"
	"strings"
)

// Position is one grid cell. The origin is the top-left corner; y grows downward.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (p Position) Add(o Position) Position { return Position{X: p.X + o.X, Y: p.Y + o.Y} }

func (p Position) String() string { return fmt.Sprintf("(%d,%d)", p.X, p.Y) }

// InBounds reports whether p lies on an n x n grid.
func (p Position) InBounds(n int) bool {
	return p.X >= 0 && p.X < n && p.Y >= 0 && p.Y < n
}

type Direction uint8

const (
	DirNone Direction = iota
	Up
	Down
	Left
	Right
)

var dirNames = [...]string{
	DirNone: "",
	Up:      "UP",
	Down:    "DOWN",
	Left:    "LEFT",
	Right:   "RIGHT",
}

func (d Direction) Valid() bool { return d >= Up && d <= Right }

func (d Direction) String() string {
	if int(d) < len(dirNames) {
		return dirNames[d]
	}
	return fmt.Sprintf("Direction(%d)", uint8(d))
}

// Reverse returns the opposite heading. DirNone reverses to itself.
func (d Direction) Reverse() Direction {
	switch d {
	case Up:
		return Down
	case Down:
		return Up
	case Left:
		return Right
	case Right:
		return Left
	default:
		return DirNone
	}
}

// Offset is the unit step applied to the head for one tick.
func (d Direction) Offset() Position {
	switch d {
	case Up:
		return Position{Y: -1}
	case Down:
		return Position{Y: 1}
	case Left:
		return Position{X: -1}
	case Right:
		return Position{X: 1}
	default:
		return Position{}
	}
}

func ParseDirection(s string) (Direction, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "UP":
		return Up, nil
	case "DOWN":
		return Down, nil
	case "LEFT":
		return Left, nil
	case "RIGHT":
		return Right, nil
	}
	return DirNone, fmt.Errorf("unknown direction %q", s)
}

func (d Direction) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("invalid direction %d", uint8(d))
	}
	return []byte(d.String()), nil
}

func (d *Direction) UnmarshalText(b []byte) error {
	v, err := ParseDirection(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}
