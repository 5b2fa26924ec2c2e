package main

import (
	"fmt"
	"time"

	"gridsnake.dev/internal/sim/game"
	"gridsnake.dev/internal/sim/session"
)

// runSummary is what the audit knows about one run after reading its ticks.
type runSummary struct {
	RunID     string
	FirstTick uint64
	LastTick  uint64
	Entries   int
	Score     int
	Length    int
	Eaten     int
	Inputs    int
	Collision string
	Ended     bool
	Start     time.Time
	End       time.Time

	last session.TickLogEntry
}

// auditor checks tick log entries against the movement rules of the game:
// one cell per tick, growth only when eating, and nothing after game over.
type auditor struct {
	gridSize   int
	runs       map[string]*runSummary
	order      []string
	violations []string
}

func newAuditor(gridSize int) *auditor {
	return &auditor{gridSize: gridSize, runs: map[string]*runSummary{}}
}

func (a *auditor) failf(e session.TickLogEntry, format string, args ...any) {
	a.violations = append(a.violations, fmt.Sprintf("run=%s tick=%d: %s", e.RunID, e.Tick, fmt.Sprintf(format, args...)))
}

func (a *auditor) add(e session.TickLogEntry) error {
	r, ok := a.runs[e.RunID]
	if !ok {
		r = &runSummary{RunID: e.RunID, FirstTick: e.Tick, Start: time.UnixMilli(e.UnixMs)}
		a.runs[e.RunID] = r
		a.order = append(a.order, e.RunID)
	} else {
		a.check(r, e)
	}

	if !e.Head.InBounds(a.gridSize) {
		a.failf(e, "head %s off a %dx%d grid", e.Head, a.gridSize, a.gridSize)
	}
	if !e.Food.InBounds(a.gridSize) {
		a.failf(e, "food %s off a %dx%d grid", e.Food, a.gridSize, a.gridSize)
	}
	if e.Length != e.Score+1 {
		a.failf(e, "length %d does not match score %d", e.Length, e.Score)
	}

	r.Entries++
	r.LastTick = e.Tick
	r.Score = e.Score
	r.Length = e.Length
	r.Inputs += e.Inputs
	r.End = time.UnixMilli(e.UnixMs)
	if e.Ate {
		r.Eaten++
	}
	if e.GameOver {
		r.Ended = true
		r.Collision = e.Collision
	}
	r.last = e
	return nil
}

func (a *auditor) check(r *runSummary, e session.TickLogEntry) {
	prev := r.last
	if r.Ended {
		a.failf(e, "entry after game over at tick %d", prev.Tick)
		return
	}
	if e.Tick != prev.Tick+1 {
		a.failf(e, "tick gap: previous tick %d", prev.Tick)
		return
	}

	if e.Collision != "" {
		if !e.GameOver {
			a.failf(e, "collision %s without game over", e.Collision)
		}
		if e.Head != prev.Head || e.Length != prev.Length || e.Score != prev.Score {
			a.failf(e, "fatal step changed the snake")
		}
		return
	}

	dir, err := game.ParseDirection(e.Direction)
	if err != nil {
		a.failf(e, "bad direction %q", e.Direction)
		return
	}
	if want := prev.Head.Add(dir.Offset()); e.Head != want {
		a.failf(e, "head %s, expected %s moving %s", e.Head, want, dir)
	}
	if e.Ate {
		if e.Length != prev.Length+1 || e.Score != prev.Score+1 {
			a.failf(e, "ate but length %d->%d score %d->%d", prev.Length, e.Length, prev.Score, e.Score)
		}
		if e.Head != prev.Food {
			a.failf(e, "ate at %s but food was at %s", e.Head, prev.Food)
		}
		return
	}
	if e.Length != prev.Length || e.Score != prev.Score {
		a.failf(e, "grew without eating")
	}
	if e.Food != prev.Food {
		a.failf(e, "food moved from %s to %s without being eaten", prev.Food, e.Food)
	}
}

func (a *auditor) summaries() []*runSummary {
	out := make([]*runSummary, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, a.runs[id])
	}
	return out
}
