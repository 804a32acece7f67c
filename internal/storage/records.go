package storage

import (
	"slices"

	"terrainstream/internal/grid"

	"github.com/go-gl/mathgl/mgl32"
)

// Field names of a chunk's records.
const (
	FieldHeights = "heights"
	FieldBiomes  = "biomes"
	FieldMeta    = "meta"
)

// HeightRecord is a persisted height grid.
type HeightRecord struct {
	Size     int
	Values   []float32
	Min, Max float32
}

// NewHeightRecord captures g.
func NewHeightRecord(g *grid.HeightGrid) HeightRecord {
	lo, hi := g.Range()
	return HeightRecord{Size: g.Size(), Values: slices.Clone(g.Values()), Min: lo, Max: hi}
}

// Apply loads the record into g.
func (r HeightRecord) Apply(g *grid.HeightGrid) error {
	return g.Load(r.Values, r.Min, r.Max)
}

// BiomeRecord is a persisted biome grid.
type BiomeRecord struct {
	Size    int
	Weights map[grid.BiomeID][]float32
}

// NewBiomeRecord captures g.
func NewBiomeRecord(g *grid.BiomeGrid) BiomeRecord {
	r := BiomeRecord{Size: g.Size(), Weights: make(map[grid.BiomeID][]float32)}
	for _, id := range g.Biomes() {
		w, _ := g.Weights(id)
		r.Weights[id] = slices.Clone(w)
	}
	return r
}

// Apply loads the record into g.
func (r BiomeRecord) Apply(g *grid.BiomeGrid) error {
	return g.SetWeights(r.Weights)
}

// Bounds is an axis-aligned box.
type Bounds struct {
	Min, Max mgl32.Vec3
}

// MetaRecord describes the chunk the other records belong to.
type MetaRecord struct {
	Version int
	Seed    int64
	Center  mgl32.Vec2
	Bounds  Bounds
}

// MetaVersion is the layout version written with new records.
const MetaVersion = 1
