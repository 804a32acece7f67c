package world

import (
	"fmt"
	"image/color"

	"terrainstream/internal/grid"
)

// Paint blends the biome colors of every cell at least border cells from
// the edge, shaded by height, and returns them row-major with the width of
// one row.
func Paint(heights *grid.HeightGrid, biomes *grid.BiomeGrid, table *BiomeTable, border int) ([]color.RGBA, int, error) {
	if heights.Size() != biomes.Size() {
		return nil, 0, fmt.Errorf("%w: biome grid %d, height grid %d", grid.ErrOutOfRange, biomes.Size(), heights.Size())
	}
	size := heights.Size()
	width := size - 2*border
	if width < 0 {
		return nil, 0, fmt.Errorf("%w: border %d for size %d", grid.ErrOutOfRange, border, size)
	}

	type layer struct {
		w []float32
		c color.RGBA
	}
	var layers []layer
	for _, id := range biomes.Biomes() {
		b, ok := table.Biome(id)
		if !ok {
			continue
		}
		w, _ := biomes.Weights(id)
		layers = append(layers, layer{w: w, c: b.Color})
	}

	lo, hi := heights.Range()
	span := hi - lo
	out := make([]color.RGBA, 0, width*width)
	err := heights.EachCulled(border, func(x, z int, h float32) {
		var r, g, b float32
		cell := z*size + x
		for _, l := range layers {
			w := l.w[cell]
			r += w * float32(l.c.R)
			g += w * float32(l.c.G)
			b += w * float32(l.c.B)
		}
		shade := float32(0.75)
		if span > 0 {
			shade += 0.25 * (h - lo) / span
		}
		out = append(out, color.RGBA{R: channel(r * shade), G: channel(g * shade), B: channel(b * shade), A: 255})
	})
	if err != nil {
		return nil, 0, err
	}
	return out, width, nil
}

func channel(v float32) uint8 {
	return uint8(min(max(v+0.5, 0), 255))
}
