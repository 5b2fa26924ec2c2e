package session

import (
	"io"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"gridsnake.dev/internal/sim/game"
)

type CommandKind uint8

const (
	CmdDirection CommandKind = iota + 1
	CmdTogglePause
)

// Command is one input signal. Commands queue up between ticks and are applied
// in arrival order right before the next step.
type Command struct {
	Kind      CommandKind
	Direction game.Direction
}

func Turn(d game.Direction) Command { return Command{Kind: CmdDirection, Direction: d} }

func Pause() Command { return Command{Kind: CmdTogglePause} }

// Frame is what observers see after each tick that changed something.
type Frame struct {
	RunID  string
	State  game.State
	Result game.StepResult
}

type GameOver struct {
	RunID     string
	Score     int
	Length    int
	Tick      uint64
	Collision game.Collision
}

type TickLogEntry struct {
	RunID     string        `json:"run_id"`
	Tick      uint64        `json:"tick"`
	UnixMs    int64         `json:"ts_ms"`
	Inputs    int           `json:"inputs,omitempty"`
	Direction string        `json:"dir"`
	Head      game.Position `json:"head"`
	Length    int           `json:"len"`
	Food      game.Position `json:"food"`
	Score     int           `json:"score"`
	Ate       bool          `json:"ate,omitempty"`
	Collision string        `json:"collision,omitempty"`
	GameOver  bool          `json:"game_over,omitempty"`
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type Config struct {
	TickPeriod time.Duration
	Scheduler  Scheduler
	TickLogger TickLogger
	Logger     *log.Logger
}

type Metrics struct {
	RunID     string
	Phase     game.Phase
	Tick      uint64
	Score     int
	Length    int
	Runs      uint64
	Pending   int
	Observers int
	StepMS    float64
}

// Session owns one game and its tick source. All state changes happen under
// mu, so a step is never interleaved with input handling or a reset.
type Session struct {
	eng *game.Engine
	cfg Config
	log *log.Logger

	mu      sync.RWMutex
	state   game.State
	runID   string
	runs    uint64
	pending []Command
	gen     uint64
	stop    func()
	stepMS  float64

	subMu   sync.Mutex
	subs    map[int]chan Frame
	nextSub int

	hookMu sync.Mutex
	hooks  []func(GameOver)
}

func New(eng *game.Engine, cfg Config) *Session {
	if cfg.TickPeriod <= 0 {
		cfg.TickPeriod = 300 * time.Millisecond
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = TickerScheduler{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	s := &Session{
		eng:  eng,
		cfg:  cfg,
		log:  logger,
		subs: map[int]chan Frame{},
	}
	s.state = eng.Reset()
	s.runID = uuid.NewString()
	s.runs = 1
	return s
}

// Start begins ticking. It is a no-op if the tick source is already running.
func (s *Session) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startLocked()
}

func (s *Session) startLocked() {
	if s.stop != nil {
		return
	}
	s.gen++
	gen := s.gen
	s.stop = s.cfg.Scheduler.Start(s.cfg.TickPeriod, func() { s.tick(gen) })
}

// Stop halts the tick source and leaves the last state in place.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Session) stopLocked() {
	if s.stop == nil {
		return
	}
	s.stop()
	s.stop = nil
	// Ticks already in flight from the old source see a stale generation.
	s.gen++
}

// Reset starts a new run in the paused state. If the tick source was running
// it is restarted, so calling Reset repeatedly never stacks tick sources.
func (s *Session) Reset() Frame {
	s.mu.Lock()
	wasRunning := s.stop != nil
	s.stopLocked()
	s.state = s.eng.Reset()
	s.runID = uuid.NewString()
	s.runs++
	s.pending = s.pending[:0]
	if wasRunning {
		s.startLocked()
	}
	f := s.frameLocked(game.StepResult{})
	s.mu.Unlock()

	s.log.Printf("reset run=%s", f.RunID)
	s.publish(f)
	return f
}

// Input queues a command for the next tick.
func (s *Session) Input(cmd Command) {
	s.mu.Lock()
	s.pending = append(s.pending, cmd)
	s.mu.Unlock()
}

func (s *Session) tick(gen uint64) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	out := s.advanceLocked(nil)
	s.mu.Unlock()
	s.afterStep(out)
}

// StepOnce applies any queued commands plus cmds, then advances one tick.
// It bypasses the scheduler, which is what tests and replays want.
func (s *Session) StepOnce(cmds ...Command) Frame {
	s.mu.Lock()
	out := s.advanceLocked(cmds)
	s.mu.Unlock()
	s.afterStep(out)
	return out.frame
}

type stepOutcome struct {
	frame   Frame
	inputs  int
	changed bool
	ended   bool
}

// advanceLocked drains the input queue, then steps. The new state is stored
// only once it is complete.
func (s *Session) advanceLocked(extra []Command) stepOutcome {
	start := time.Now()
	cmds := append(s.pending, extra...)
	s.pending = nil

	prev := s.state
	next := prev
	for _, c := range cmds {
		switch c.Kind {
		case CmdDirection:
			next = s.eng.SetDirection(next, c.Direction)
		case CmdTogglePause:
			next = s.eng.TogglePause(next)
		}
	}
	next, res := s.eng.Step(next)
	s.state = next
	s.stepMS = float64(time.Since(start).Microseconds()) / 1000.0

	return stepOutcome{
		frame:   s.frameLocked(res),
		inputs:  len(cmds),
		changed: !prev.Equal(next),
		ended:   !prev.GameOver && next.GameOver,
	}
}

func (s *Session) afterStep(out stepOutcome) {
	f := out.frame
	if f.Result.Moved || out.ended {
		s.writeTick(f, out.inputs)
	}
	if out.changed {
		s.publish(f)
	}
	if !out.ended {
		return
	}
	ev := GameOver{
		RunID:     f.RunID,
		Score:     f.State.Score,
		Length:    len(f.State.Snake),
		Tick:      f.State.Tick,
		Collision: f.Result.Collision,
	}
	s.log.Printf("game over run=%s score=%d collision=%s", ev.RunID, ev.Score, ev.Collision)
	s.fireGameOver(ev)
}

func (s *Session) frameLocked(res game.StepResult) Frame {
	return Frame{RunID: s.runID, State: s.state.Clone(), Result: res}
}

// Snapshot returns the latest fully computed frame.
func (s *Session) Snapshot() Frame {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frameLocked(game.StepResult{})
}

func (s *Session) GridSize() int { return s.eng.Config().GridSize }

func (s *Session) TickPeriod() time.Duration { return s.cfg.TickPeriod }

// OnGameOver registers fn to run once per run, when the run ends.
func (s *Session) OnGameOver(fn func(GameOver)) {
	s.hookMu.Lock()
	s.hooks = append(s.hooks, fn)
	s.hookMu.Unlock()
}

func (s *Session) fireGameOver(ev GameOver) {
	s.hookMu.Lock()
	hooks := append([]func(GameOver) nil, s.hooks...)
	s.hookMu.Unlock()
	for _, fn := range hooks {
		fn(ev)
	}
}

// Subscribe returns a channel of frames and a func to detach it. Frames are
// dropped for subscribers that fall behind.
func (s *Session) Subscribe(buf int) (<-chan Frame, func()) {
	if buf <= 0 {
		buf = 8
	}
	ch := make(chan Frame, buf)
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
			close(ch)
		})
	}
}

func (s *Session) publish(f Frame) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- f:
		default:
		}
	}
}

func (s *Session) writeTick(f Frame, inputs int) {
	if s.cfg.TickLogger == nil {
		return
	}
	st := f.State
	e := TickLogEntry{
		RunID:     f.RunID,
		Tick:      st.Tick,
		UnixMs:    time.Now().UnixMilli(),
		Inputs:    inputs,
		Direction: st.Direction.String(),
		Head:      st.Head(),
		Length:    len(st.Snake),
		Food:      st.Food,
		Score:     st.Score,
		Ate:       f.Result.Ate,
		GameOver:  st.GameOver,
	}
	if f.Result.Collision != game.CollisionNone {
		e.Collision = f.Result.Collision.String()
	}
	if err := s.cfg.TickLogger.WriteTick(e); err != nil {
		s.log.Printf("tick log: %v", err)
	}
}

func (s *Session) Metrics() Metrics {
	s.mu.RLock()
	m := Metrics{
		RunID:   s.runID,
		Phase:   s.state.Phase(),
		Tick:    s.state.Tick,
		Score:   s.state.Score,
		Length:  len(s.state.Snake),
		Runs:    s.runs,
		Pending: len(s.pending),
		StepMS:  s.stepMS,
	}
	s.mu.RUnlock()
	s.subMu.Lock()
	m.Observers = len(s.subs)
	s.subMu.Unlock()
	return m
}
