package grid

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

// BiomeID identifies a configured biome.
type BiomeID int32

// ErrWeightSum reports a cell whose biome weights do not sum to one.
var ErrWeightSum = errors.New("grid: biome weights do not sum to 1")

// BiomeGrid stores, per cell, the dominant biome and a weight grid for every
// biome present in the chunk.
type BiomeGrid struct {
	size    int
	ids     []BiomeID
	weights map[BiomeID][]float32
	dirty   bool
}

// NewBiomeGrid allocates an empty size x size grid.
func NewBiomeGrid(size int) *BiomeGrid {
	if size <= 0 {
		panic(fmt.Sprintf("grid: invalid biome grid size %d", size))
	}
	return &BiomeGrid{
		size:    size,
		ids:     make([]BiomeID, size*size),
		weights: make(map[BiomeID][]float32),
	}
}

// Size returns the side length.
func (g *BiomeGrid) Size() int { return g.size }

// ID returns the dominant biome at (x, z).
func (g *BiomeGrid) ID(x, z int) (BiomeID, error) {
	if x < 0 || x >= g.size || z < 0 || z >= g.size {
		return 0, outOfRange(g.size, x, z)
	}
	return g.ids[z*g.size+x], nil
}

// Weight returns the weight of biome id at (x, z). Absent biomes weigh 0.
func (g *BiomeGrid) Weight(id BiomeID, x, z int) (float32, error) {
	if x < 0 || x >= g.size || z < 0 || z >= g.size {
		return 0, outOfRange(g.size, x, z)
	}
	w, ok := g.weights[id]
	if !ok {
		return 0, nil
	}
	return w[z*g.size+x], nil
}

// Weights returns the row-major weight grid of biome id.
func (g *BiomeGrid) Weights(id BiomeID) ([]float32, bool) {
	w, ok := g.weights[id]
	return w, ok
}

// Biomes returns the present biome ids in ascending order.
func (g *BiomeGrid) Biomes() []BiomeID {
	out := make([]BiomeID, 0, len(g.weights))
	for id := range g.weights {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// SetWeights installs per-biome weight grids and recomputes the dominant
// biome of every cell. Ties go to the lower id.
func (g *BiomeGrid) SetWeights(weights map[BiomeID][]float32) error {
	n := g.size * g.size
	for id, w := range weights {
		if len(w) != n {
			return fmt.Errorf("%w: biome %d has %d weights for %dx%d grid", ErrOutOfRange, id, len(w), g.size, g.size)
		}
	}
	clear(g.weights)
	for id, w := range weights {
		g.weights[id] = w
	}

	order := g.Biomes()
	for i := range g.ids {
		best, bestW := BiomeID(0), float32(-1)
		for _, id := range order {
			if w := g.weights[id][i]; w > bestW {
				best, bestW = id, w
			}
		}
		g.ids[i] = best
	}
	g.dirty = true
	return nil
}

// CheckWeights verifies that every cell's weights sum to 1 within eps.
func (g *BiomeGrid) CheckWeights(eps float64) error {
	if len(g.weights) == 0 {
		return fmt.Errorf("%w: no biomes", ErrWeightSum)
	}
	for i := 0; i < g.size*g.size; i++ {
		var sum float64
		for _, w := range g.weights {
			sum += float64(w[i])
		}
		if math.Abs(sum-1) > eps {
			return fmt.Errorf("%w: cell (%d,%d) sums to %v", ErrWeightSum, i%g.size, i/g.size, sum)
		}
	}
	return nil
}

// Dirty reports whether the grid has changes not yet saved.
func (g *BiomeGrid) Dirty() bool { return g.dirty }

// MarkClean clears the unsaved-changes flag.
func (g *BiomeGrid) MarkClean() { g.dirty = false }

// Reset empties the grid for reuse.
func (g *BiomeGrid) Reset() {
	clear(g.ids)
	clear(g.weights)
	g.dirty = false
}
