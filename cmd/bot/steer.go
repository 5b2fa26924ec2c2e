package main

import (
	"gridsnake.dev/internal/protocol"
	"gridsnake.dev/internal/sim/game"
)

// steer picks the next direction for a greedy bot: among the moves that do
// not hit a wall or the body, take the one closest to the food, keeping the
// current heading on ties. It returns DirNone when the current heading is
// already the choice or no safe move exists.
func steer(st protocol.StateMsg, gridSize int) game.Direction {
	if len(st.Snake) == 0 {
		return game.DirNone
	}
	cur, err := game.ParseDirection(st.Direction)
	if err != nil {
		return game.DirNone
	}
	head := game.Position{X: st.Snake[0][0], Y: st.Snake[0][1]}
	food := game.Position{X: st.Food[0], Y: st.Food[1]}

	body := make(map[game.Position]bool, len(st.Snake))
	for _, c := range st.Snake {
		body[game.Position{X: c[0], Y: c[1]}] = true
	}

	best, bestDist := game.DirNone, -1
	for _, d := range []game.Direction{cur, game.Up, game.Down, game.Left, game.Right} {
		if d == cur.Reverse() {
			continue
		}
		next := head.Add(d.Offset())
		if !next.InBounds(gridSize) || body[next] {
			continue
		}
		dist := manhattan(next, food)
		if bestDist < 0 || dist < bestDist {
			best, bestDist = d, dist
		}
	}
	if best == cur {
		return game.DirNone
	}
	return best
}

func manhattan(a, b game.Position) int {
	dx, dy := a.X-b.X, a.Y-b.Y
	if dx < 0 {
		dx = -dx
	}
	if dy < 0 {
		dy = -dy
	}
	return dx + dy
}
