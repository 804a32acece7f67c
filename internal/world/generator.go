package world

import (
	"context"
	"fmt"

	"terrainstream/internal/blend"
	"terrainstream/internal/grid"
	"terrainstream/internal/noise"

	"github.com/go-gl/mathgl/mgl32"
)

// TerrainSource fills a chunk's grids for the chunk centred on center. It
// runs on a worker and must poll ctx between passes and rows.
type TerrainSource interface {
	Generate(ctx context.Context, center mgl32.Vec2, heights *grid.HeightGrid, biomes *grid.BiomeGrid) error
}

// Generator derives biome weights by blending classified scatter points
// and heights by mixing each biome's profile with those weights.
type Generator struct {
	seed    int64
	spacing float64
	table   *BiomeTable
	blender *blend.Blender
}

// NewGenerator creates a generator sampling cells spacing units apart.
func NewGenerator(seed int64, spacing float64, table *BiomeTable, blender *blend.Blender) *Generator {
	return &Generator{seed: seed, spacing: spacing, table: table, blender: blender}
}

// Generate implements TerrainSource.
func (g *Generator) Generate(ctx context.Context, center mgl32.Vec2, heights *grid.HeightGrid, biomes *grid.BiomeGrid) error {
	size := heights.Size()
	if biomes.Size() != size {
		return fmt.Errorf("%w: biome grid %d, height grid %d", grid.ErrOutOfRange, biomes.Size(), size)
	}
	cx, cz := float64(center[0]), float64(center[1])

	weights, err := g.blender.BlendChunk(ctx, size, g.seed, cx, cz, g.table.Classify)
	if err != nil {
		return err
	}
	if err := biomes.SetWeights(weights); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	ids := biomes.Biomes()
	values := make([]float32, size*size)
	for z := 0; z < size; z++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		wz := noise.Position(cz, z, size, g.spacing)
		for x := 0; x < size; x++ {
			wx := noise.Position(cx, x, size, g.spacing)
			cell := z*size + x
			var h float32
			for _, id := range ids {
				w := weights[id][cell]
				if w == 0 {
					continue
				}
				h += w * g.table.Height(id, wx, wz, g.seed)
			}
			values[cell] = h
		}
	}
	if err := heights.Load(values, 0, 0); err != nil {
		return err
	}
	heights.UpdateRange()
	heights.MarkDirty()
	return nil
}
