package game

import "math/rand/v2"

// FoodSource picks the next food cell on an n x n grid.
type FoodSource interface {
	Next(n int) Position
}

// RandomFood draws uniformly over the whole grid. It does not avoid the
// snake, so food may appear under the body.
type RandomFood struct {
	rng *rand.Rand
}

func NewRandomFood(seed uint64) *RandomFood {
	return &RandomFood{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (f *RandomFood) Next(n int) Position {
	return Position{X: f.rng.IntN(n), Y: f.rng.IntN(n)}
}

// FixedFood replays a list of cells, then repeats the last one. Used to make
// runs reproducible.
type FixedFood struct {
	cells []Position
	i     int
}

func NewFixedFood(cells ...Position) *FixedFood {
	return &FixedFood{cells: cells}
}

func (f *FixedFood) Next(n int) Position {
	if len(f.cells) == 0 {
		return Position{}
	}
	p := f.cells[f.i]
	if f.i < len(f.cells)-1 {
		f.i++
	}
	return p
}
