package main

import (
	"context"
	"log"
	"unicode"

	"github.com/gdamore/tcell/v2"

	"gridsnake.dev/internal/scores"
	"gridsnake.dev/internal/sim/game"
	"gridsnake.dev/internal/sim/session"
)

type mode int

const (
	modePlay mode = iota
	modeName
	modeBoard
)

const maxNameLen = 32

// app is the terminal client's state machine. It only touches the session
// and the score store; drawing lives in render.go.
type app struct {
	sess  *session.Session
	board *scores.Store
	log   *log.Logger

	mode  mode
	runID string
	frame session.Frame

	// filled in when a run ends
	finalScore int
	rank       int
	name       []rune
	entries    []scores.Entry

	quit bool
}

func newApp(sess *session.Session, board *scores.Store, logger *log.Logger) *app {
	f := sess.Snapshot()
	return &app{
		sess:    sess,
		board:   board,
		log:     logger,
		runID:   f.RunID,
		frame:   f,
		entries: board.List(context.Background()),
	}
}

// onFrame folds a published frame into the view. Frames from a run that was
// reset away are ignored.
func (a *app) onFrame(ctx context.Context, f session.Frame) {
	if f.RunID != a.runID {
		return
	}
	a.frame = f
	if f.State.GameOver && a.mode == modePlay {
		a.finish(ctx, f.State.Score)
	}
}

func (a *app) finish(ctx context.Context, score int) {
	a.finalScore = score
	a.entries = a.board.List(ctx)
	a.rank = scores.Rank(a.entries, score, a.board.MaxEntries())
	a.name = a.name[:0]
	if a.rank > 0 {
		a.mode = modeName
		return
	}
	a.mode = modeBoard
	a.log.Printf("run=%s over score=%d (did not place)", a.runID, score)
}

func (a *app) reset() {
	f := a.sess.Reset()
	a.runID = f.RunID
	a.frame = f
	a.mode = modePlay
	a.rank = 0
	a.name = a.name[:0]
}

func (a *app) handleKey(ctx context.Context, ev *tcell.EventKey) {
	if ev.Key() == tcell.KeyCtrlC {
		a.quit = true
		return
	}
	switch a.mode {
	case modePlay:
		a.playKey(ev)
	case modeName:
		a.nameKey(ctx, ev)
	case modeBoard:
		a.boardKey(ev)
	}
}

func (a *app) playKey(ev *tcell.EventKey) {
	switch ev.Key() {
	case tcell.KeyUp:
		a.sess.Input(session.Turn(game.Up))
	case tcell.KeyDown:
		a.sess.Input(session.Turn(game.Down))
	case tcell.KeyLeft:
		a.sess.Input(session.Turn(game.Left))
	case tcell.KeyRight:
		a.sess.Input(session.Turn(game.Right))
	case tcell.KeyEscape:
		a.quit = true
	case tcell.KeyRune:
		switch unicode.ToLower(ev.Rune()) {
		case ' ':
			a.sess.Input(session.Pause())
		case 'r':
			a.reset()
		case 'q':
			a.quit = true
		}
	}
}

func (a *app) nameKey(ctx context.Context, ev *tcell.EventKey) {
	switch ev.Key() {
	case tcell.KeyEnter:
		a.entries = a.board.Record(ctx, string(a.name), a.finalScore)
		a.log.Printf("run=%s over score=%d rank=%d name=%q", a.runID, a.finalScore, a.rank, string(a.name))
		a.mode = modeBoard
	case tcell.KeyEscape:
		a.rank = 0
		a.mode = modeBoard
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		if len(a.name) > 0 {
			a.name = a.name[:len(a.name)-1]
		}
	case tcell.KeyRune:
		if len(a.name) < maxNameLen && unicode.IsPrint(ev.Rune()) {
			a.name = append(a.name, ev.Rune())
		}
	}
}

func (a *app) boardKey(ev *tcell.EventKey) {
	switch ev.Key() {
	case tcell.KeyEnter:
		a.reset()
	case tcell.KeyEscape:
		a.quit = true
	case tcell.KeyRune:
		switch unicode.ToLower(ev.Rune()) {
		case 'r', ' ':
			a.reset()
		case 'q':
			a.quit = true
		}
	}
}
