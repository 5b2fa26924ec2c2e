package game

import "fmt"

const (
	DefaultGridSize = 20
)

var (
	DefaultOrigin    = Position{X: 10, Y: 10}
	DefaultDirection = Right
)

type Config struct {
	GridSize         int
	Origin           Position
	InitialDirection Direction
}

func (c Config) Validate() error {
	if c.GridSize <= 0 {
		return fmt.Errorf("grid size must be > 0, got %d", c.GridSize)
	}
	if !c.Origin.InBounds(c.GridSize) {
		return fmt.Errorf("origin %s outside %dx%d grid", c.Origin, c.GridSize, c.GridSize)
	}
	if !c.InitialDirection.Valid() {
		return fmt.Errorf("invalid initial direction %d", uint8(c.InitialDirection))
	}
	return nil
}

func DefaultConfig() Config {
	return Config{
		GridSize:         DefaultGridSize,
		Origin:           DefaultOrigin,
		InitialDirection: DefaultDirection,
	}
}

type Collision uint8

const (
	CollisionNone Collision = iota
	CollisionWall
	CollisionSelf
)

func (c Collision) String() string {
	switch c {
	case CollisionWall:
		return "WALL"
	case CollisionSelf:
		return "SELF"
	default:
		return "NONE"
	}
}

// StepResult describes what a single Step did.
type StepResult struct {
	Moved     bool
	Ate       bool
	Collision Collision
}

// Engine holds the grid rules. Its methods take a State and return the next
// one without mutating the input. An Engine is not safe for concurrent use
// because the food source is stateful; callers serialize access.
type Engine struct {
	cfg  Config
	food FoodSource
}

func New(cfg Config, food FoodSource) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if food == nil {
		return nil, fmt.Errorf("nil food source")
	}
	return &Engine{cfg: cfg, food: food}, nil
}

func (e *Engine) Config() Config { return e.cfg }

// Reset returns the initial state: one segment at the origin, paused.
func (e *Engine) Reset() State {
	return State{
		Snake:     []Position{e.cfg.Origin},
		Food:      e.food.Next(e.cfg.GridSize),
		Direction: e.cfg.InitialDirection,
		Pending:   e.cfg.InitialDirection,
		Paused:    true,
	}
}

// Step advances s by one tick. Paused or finished states come back unchanged.
func (e *Engine) Step(s State) (State, StepResult) {
	if s.Paused || s.GameOver || len(s.Snake) == 0 {
		return s, StepResult{}
	}

	next := s
	if s.Pending.Valid() {
		next.Direction = s.Pending
	}
	next.Pending = next.Direction
	next.Tick = s.Tick + 1

	head := s.Snake[0].Add(next.Direction.Offset())

	if c := e.collides(s, head); c != CollisionNone {
		// Nothing but the flag is committed; the body keeps its pre-step cells.
		next.Snake = append([]Position(nil), s.Snake...)
		next.GameOver = true
		return next, StepResult{Collision: c}
	}

	ate := head == s.Food
	keep := len(s.Snake) - 1
	if ate {
		keep = len(s.Snake)
	}
	body := make([]Position, 0, keep+1)
	body = append(body, head)
	body = append(body, s.Snake[:keep]...)
	next.Snake = body

	if ate {
		next.Score = s.Score + 1
		next.Food = e.food.Next(e.cfg.GridSize)
	}
	return next, StepResult{Moved: true, Ate: ate}
}

// collides checks walls first, then every current segment (the tail included,
// since the candidate head has not been appended yet).
func (e *Engine) collides(s State, head Position) Collision {
	if !head.InBounds(e.cfg.GridSize) {
		return CollisionWall
	}
	if s.Occupies(head) {
		return CollisionSelf
	}
	return CollisionNone
}

// SetDirection buffers a heading for the next step. A request that reverses
// the committed direction is ignored, which also rules out two presses in one
// tick adding up to a reversal.
func (e *Engine) SetDirection(s State, d Direction) State {
	if !d.Valid() || d == s.Direction.Reverse() {
		return s
	}
	s.Pending = d
	return s
}

// TogglePause flips the paused flag unless the game is over.
func (e *Engine) TogglePause(s State) State {
	if s.GameOver {
		return s
	}
	s.Paused = !s.Paused
	return s
}
