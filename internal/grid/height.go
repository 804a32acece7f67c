// Package grid holds the square per-chunk grids: heights and biome weights.
//
// All accessors fail with ErrOutOfRange instead of clamping.
package grid

import (
	"errors"
	"fmt"
	"math"
)

// ErrOutOfRange reports an index or coordinate outside a grid.
var ErrOutOfRange = errors.New("grid: index out of range")

func outOfRange(size, x, z int) error {
	return fmt.Errorf("%w: (%d,%d) in %dx%d", ErrOutOfRange, x, z, size, size)
}

// HeightGrid is a square grid of heights addressed by (x, z) or by linear
// index z*size+x.
type HeightGrid struct {
	size   int
	values []float32
	min    float32
	max    float32
	dirty  bool
}

// NewHeightGrid allocates a size x size grid of zeros.
func NewHeightGrid(size int) *HeightGrid {
	if size <= 0 {
		panic(fmt.Sprintf("grid: invalid height grid size %d", size))
	}
	return &HeightGrid{
		size:   size,
		values: make([]float32, size*size),
	}
}

// Size returns the side length.
func (g *HeightGrid) Size() int { return g.size }

// Len returns size*size.
func (g *HeightGrid) Len() int { return len(g.values) }

// Index converts (x, z) into a linear index.
func (g *HeightGrid) Index(x, z int) (int, error) {
	if x < 0 || x >= g.size || z < 0 || z >= g.size {
		return 0, outOfRange(g.size, x, z)
	}
	return z*g.size + x, nil
}

// At returns the height at (x, z).
func (g *HeightGrid) At(x, z int) (float32, error) {
	i, err := g.Index(x, z)
	if err != nil {
		return 0, err
	}
	return g.values[i], nil
}

// AtIndex returns the height at linear index i.
func (g *HeightGrid) AtIndex(i int) (float32, error) {
	if i < 0 || i >= len(g.values) {
		return 0, fmt.Errorf("%w: index %d of %d", ErrOutOfRange, i, len(g.values))
	}
	return g.values[i], nil
}

// Set writes the height at (x, z) and marks the grid dirty.
func (g *HeightGrid) Set(x, z int, v float32) error {
	i, err := g.Index(x, z)
	if err != nil {
		return err
	}
	g.values[i] = v
	g.dirty = true
	return nil
}

// Values exposes the backing row-major slice for bulk readers. Writers must
// call MarkDirty and UpdateRange afterwards.
func (g *HeightGrid) Values() []float32 { return g.values }

// Load replaces the contents with values and the recorded range. The grid
// is left clean since it now mirrors its source.
func (g *HeightGrid) Load(values []float32, lo, hi float32) error {
	if len(values) != len(g.values) {
		return fmt.Errorf("%w: %d values for %dx%d grid", ErrOutOfRange, len(values), g.size, g.size)
	}
	copy(g.values, values)
	g.min, g.max = lo, hi
	g.dirty = false
	return nil
}

// Range returns the min and max recorded at generation time.
func (g *HeightGrid) Range() (lo, hi float32) { return g.min, g.max }

// UpdateRange recomputes min and max from the current values.
func (g *HeightGrid) UpdateRange() {
	lo, hi := float32(math.Inf(1)), float32(math.Inf(-1))
	for _, v := range g.values {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	g.min, g.max = lo, hi
}

// Dirty reports whether the grid has changes not yet saved.
func (g *HeightGrid) Dirty() bool { return g.dirty }

// MarkDirty flags unsaved changes.
func (g *HeightGrid) MarkDirty() { g.dirty = true }

// MarkClean clears the unsaved-changes flag after a successful save.
func (g *HeightGrid) MarkClean() { g.dirty = false }

// Reset zeroes the grid for reuse.
func (g *HeightGrid) Reset() {
	clear(g.values)
	g.min, g.max = 0, 0
	g.dirty = false
}

// EachCulled calls fn for every cell at least border cells away from each
// edge, in row-major order.
func (g *HeightGrid) EachCulled(border int, fn func(x, z int, v float32)) error {
	if border < 0 || 2*border > g.size {
		return fmt.Errorf("%w: border %d for size %d", ErrOutOfRange, border, g.size)
	}
	for z := border; z < g.size-border; z++ {
		row := g.values[z*g.size : (z+1)*g.size]
		for x := border; x < g.size-border; x++ {
			fn(x, z, row[x])
		}
	}
	return nil
}
