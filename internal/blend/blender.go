// Package blend assigns smoothly weighted biome membership to every cell of a
// chunk from scattered, classified sample points.
package blend

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"terrainstream/internal/grid"
	"terrainstream/internal/scatter"
)

// ErrNoContribution reports a cell no scatter point reaches.
var ErrNoContribution = errors.New("blend: cell has no contributing points")

// Classifier returns the biome at world position (x, z).
type Classifier func(x, z float64, seed int64) grid.BiomeID

// Blender produces per-biome weight grids for square chunks.
type Blender struct {
	frequency float64
	spacing   float64
	radius    float64
	radiusSq  float64

	mu        sync.Mutex
	gatherers map[int]*scatter.ChunkGatherer
}

// New creates a blender sampling points at frequency. padding (lattice
// units, > 0) widens the contribution radius past the largest possible gap
// between points so every cell is reached. spacing is the world distance
// between adjacent cells.
func New(frequency, padding, spacing float64) *Blender {
	radius := (scatter.MaxClosestPointDistance + padding) / frequency
	return &Blender{
		frequency: frequency,
		spacing:   spacing,
		radius:    radius,
		radiusSq:  radius * radius,
		gatherers: make(map[int]*scatter.ChunkGatherer),
	}
}

// Radius returns the contribution radius in world units.
func (b *Blender) Radius() float64 { return b.radius }

func (b *Blender) gatherer(size int) *scatter.ChunkGatherer {
	b.mu.Lock()
	defer b.mu.Unlock()
	g, ok := b.gatherers[size]
	if !ok {
		g = scatter.NewChunkGatherer(b.frequency, b.radius, float64(size-1)*b.spacing)
		b.gatherers[size] = g
	}
	return g
}

// Points returns the classified scatter points reaching the chunk centred
// on (cx, cz).
func (b *Blender) Points(ctx context.Context, size int, seed int64, cx, cz float64, classify Classifier) ([]scatter.Point, error) {
	pts := b.gatherer(size).PointsFromChunkCenter(seed, cx, cz)
	for i := range pts {
		if i%64 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		pts[i].Biome = classify(pts[i].X, pts[i].Z, seed)
	}
	return pts, nil
}

// BlendChunk returns, for each biome present around the chunk centred on
// (cx, cz), a size x size row-major weight grid. Weights of all biomes sum
// to 1 at every cell. ctx is polled once per row.
func (b *Blender) BlendChunk(ctx context.Context, size int, seed int64, cx, cz float64, classify Classifier) (map[grid.BiomeID][]float32, error) {
	pts, err := b.Points(ctx, size, seed, cx, cz, classify)
	if err != nil {
		return nil, err
	}
	if len(pts) == 0 {
		return nil, fmt.Errorf("%w: chunk at (%v,%v)", ErrNoContribution, cx, cz)
	}

	ids := distinct(pts)
	if len(ids) == 1 {
		w := make([]float32, size*size)
		for i := range w {
			w[i] = 1
		}
		return map[grid.BiomeID][]float32{ids[0]: w}, nil
	}
	return b.blend(ctx, size, cx, cz, pts, ids)
}

func distinct(pts []scatter.Point) []grid.BiomeID {
	var ids []grid.BiomeID
	for _, p := range pts {
		if !slices.Contains(ids, p.Biome) {
			ids = append(ids, p.Biome)
		}
	}
	slices.Sort(ids)
	return ids
}

// blend is the general path: each point within range of a cell adds
// (R^2 - d^2)^2 to its biome, then every cell is normalised by its total.
func (b *Blender) blend(ctx context.Context, size int, cx, cz float64, pts []scatter.Point, ids []grid.BiomeID) (map[grid.BiomeID][]float32, error) {
	slot := make([]int, len(pts))
	for i, p := range pts {
		slot[i], _ = slices.BinarySearch(ids, p.Biome)
	}

	acc := make([]float64, len(ids))
	out := make(map[grid.BiomeID][]float32, len(ids))
	weights := make([][]float32, len(ids))
	for i, id := range ids {
		weights[i] = make([]float32, size*size)
		out[id] = weights[i]
	}

	half := float64(size-1) / 2
	for z := 0; z < size; z++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		wz := cz + (float64(z)-half)*b.spacing
		for x := 0; x < size; x++ {
			wx := cx + (float64(x)-half)*b.spacing

			clear(acc)
			total := 0.0
			for i, p := range pts {
				dx, dz := p.X-wx, p.Z-wz
				d2 := dx*dx + dz*dz
				if d2 >= b.radiusSq {
					continue
				}
				w := b.radiusSq - d2
				w *= w
				acc[slot[i]] += w
				total += w
			}
			if total == 0 {
				return nil, fmt.Errorf("%w: cell (%d,%d) of chunk at (%v,%v)", ErrNoContribution, x, z, cx, cz)
			}

			cell := z*size + x
			for i, w := range acc {
				if w != 0 {
					weights[i][cell] = float32(w / total)
				}
			}
		}
	}
	return out, nil
}
