package main

import (
	"fmt"

	"github.com/gdamore/tcell/v2"

	"gridsnake.dev/internal/sim/game"
)

const emptyBoardMsg = "No scores yet. Be the first to play!"

var (
	styleFrame = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleHead  = tcell.StyleDefault.Foreground(tcell.ColorLawnGreen).Bold(true)
	styleBody  = tcell.StyleDefault.Foreground(tcell.ColorGreen)
	styleFood  = tcell.StyleDefault.Foreground(tcell.ColorOrangeRed).Bold(true)
	styleText  = tcell.StyleDefault.Foreground(tcell.ColorWhite)
	styleAlert = tcell.StyleDefault.Foreground(tcell.ColorWhite).Background(tcell.ColorMaroon).Bold(true)
)

// Each grid cell is two terminal columns wide so the board looks square.
const cellW = 2

func (a *app) draw(s tcell.Screen) {
	s.Clear()
	n := a.sess.GridSize()
	st := a.frame.State

	// border
	right := 1 + n*cellW
	bottom := 1 + n
	for x := 0; x <= right; x++ {
		s.SetContent(x, 0, '─', nil, styleFrame)
		s.SetContent(x, bottom, '─', nil, styleFrame)
	}
	for y := 0; y <= bottom; y++ {
		s.SetContent(0, y, '│', nil, styleFrame)
		s.SetContent(right, y, '│', nil, styleFrame)
	}
	s.SetContent(0, 0, '┌', nil, styleFrame)
	s.SetContent(right, 0, '┐', nil, styleFrame)
	s.SetContent(0, bottom, '└', nil, styleFrame)
	s.SetContent(right, bottom, '┘', nil, styleFrame)

	putCell(s, st.Food, '●', styleFood)
	for i := len(st.Snake) - 1; i >= 0; i-- {
		if i == 0 {
			putCell(s, st.Snake[i], '█', styleHead)
			continue
		}
		putCell(s, st.Snake[i], '▓', styleBody)
	}

	panelX := right + 3
	for i, line := range a.sideLines() {
		style := styleText
		if i == 0 && a.mode != modePlay {
			style = styleAlert
		}
		drawText(s, panelX, 1+i, line, style)
	}
	drawText(s, 0, bottom+1, a.helpLine(), styleFrame)
	s.Show()
}

func putCell(s tcell.Screen, p game.Position, r rune, style tcell.Style) {
	x := 1 + p.X*cellW
	y := 1 + p.Y
	for i := 0; i < cellW; i++ {
		s.SetContent(x+i, y, r, nil, style)
	}
}

func drawText(s tcell.Screen, x, y int, text string, style tcell.Style) {
	i := 0
	for _, ch := range text {
		s.SetContent(x+i, y, ch, nil, style)
		i++
	}
}

// sideLines is the text shown to the right of the board.
func (a *app) sideLines() []string {
	st := a.frame.State
	switch a.mode {
	case modeName:
		return []string{
			fmt.Sprintf("Game Over! Score: %d", a.finalScore),
			"",
			fmt.Sprintf("New high score, rank #%d", a.rank),
			"Name: " + string(a.name) + "_",
			"",
			"enter: save  esc: skip",
		}
	case modeBoard:
		lines := []string{
			fmt.Sprintf("Game Over! Score: %d", a.finalScore),
			"",
		}
		return append(lines, leaderboardLines(a)...)
	}
	status := "RUNNING"
	switch st.Phase() {
	case game.PhasePaused:
		status = "PAUSED (space to play)"
	case game.PhaseGameOver:
		status = "GAME OVER"
	}
	lines := []string{
		fmt.Sprintf("Score: %d", st.Score),
		fmt.Sprintf("Length: %d", len(st.Snake)),
		status,
		"",
	}
	return append(lines, leaderboardLines(a)...)
}

func leaderboardLines(a *app) []string {
	lines := []string{"Leaderboard"}
	if len(a.entries) == 0 {
		return append(lines, emptyBoardMsg)
	}
	lines = append(lines, fmt.Sprintf("%-3s %-16s %5s", "#", "Name", "Score"))
	for i, e := range a.entries {
		name := []rune(e.Name)
		if len(name) > 16 {
			name = name[:16]
		}
		lines = append(lines, fmt.Sprintf("%-3d %-16s %5d", i+1, string(name), e.Score))
	}
	return lines
}

func (a *app) helpLine() string {
	switch a.mode {
	case modeName:
		return "type your name"
	case modeBoard:
		return "r: play again  q: quit"
	}
	return "arrows: steer  space: pause  r: reset  q: quit"
}
