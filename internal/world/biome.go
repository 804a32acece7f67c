package world

import (
	"fmt"
	"image/color"
	"slices"

	"terrainstream/internal/config"
	"terrainstream/internal/grid"
	"terrainstream/internal/noise"

	"golang.org/x/image/colornames"
)

// Biome defines the height profile and paint of a terrain type.
type Biome struct {
	ID        grid.BiomeID
	Name      string
	Base      float32 // mean surface height
	Amplitude float32 // height variation around Base
	Frequency float64
	Octaves   int
	Color     color.RGBA
}

// climateSalt separates the climate field from the height fields.
const climateSalt = 0x2545F4914F6CDD1D

// BiomeTable classifies world positions into biomes and evaluates their
// height profiles. It is immutable and safe for concurrent use.
type BiomeTable struct {
	biomes      []Biome // ascending Base
	index       map[grid.BiomeID]int
	kernel      noise.Kernel
	climateFreq float64
}

// NewBiomeTable builds a table from configured biomes.
func NewBiomeTable(biomes []config.BiomeConfig, kernel noise.Kernel, climateFreq float64) (*BiomeTable, error) {
	if len(biomes) == 0 {
		return nil, fmt.Errorf("world: no biomes configured")
	}
	t := &BiomeTable{
		index:       make(map[grid.BiomeID]int, len(biomes)),
		kernel:      kernel,
		climateFreq: climateFreq,
	}
	for _, b := range biomes {
		c, ok := colornames.Map[b.Color]
		if !ok {
			return nil, fmt.Errorf("world: biome %q has unknown color %q", b.Name, b.Color)
		}
		t.biomes = append(t.biomes, Biome{
			ID:        grid.BiomeID(b.ID),
			Name:      b.Name,
			Base:      b.Base,
			Amplitude: b.Amplitude,
			Frequency: b.Frequency,
			Octaves:   max(b.Octaves, 1),
			Color:     c,
		})
	}
	// Low climate values map to low-lying biomes so neighbours stay plausible.
	slices.SortStableFunc(t.biomes, func(a, b Biome) int {
		switch {
		case a.Base < b.Base:
			return -1
		case a.Base > b.Base:
			return 1
		}
		return int(a.ID) - int(b.ID)
	})
	for i, b := range t.biomes {
		if _, dup := t.index[b.ID]; dup {
			return nil, fmt.Errorf("world: duplicate biome id %d", b.ID)
		}
		t.index[b.ID] = i
	}
	return t, nil
}

// Biomes returns the biomes ordered by base height.
func (t *BiomeTable) Biomes() []Biome { return t.biomes }

// Biome looks up a biome by id.
func (t *BiomeTable) Biome(id grid.BiomeID) (Biome, bool) {
	i, ok := t.index[id]
	if !ok {
		return Biome{}, false
	}
	return t.biomes[i], true
}

// Climate returns the climate field in [-1, 1] at (x, z).
func (t *BiomeTable) Climate(x, z float64, seed int64) float64 {
	return noise.Fractal(t.kernel, x*t.climateFreq, z*t.climateFreq, seed^climateSalt, 2, 0.5, 2)
}

// Classify returns the biome at world position (x, z) by slicing the
// climate range evenly between the biomes.
func (t *BiomeTable) Classify(x, z float64, seed int64) grid.BiomeID {
	c := (t.Climate(x, z, seed) + 1) / 2
	i := int(c * float64(len(t.biomes)))
	i = min(max(i, 0), len(t.biomes)-1)
	return t.biomes[i].ID
}

// Height evaluates biome id's height profile at (x, z).
func (t *BiomeTable) Height(id grid.BiomeID, x, z float64, seed int64) float32 {
	b, ok := t.Biome(id)
	if !ok {
		return 0
	}
	n := noise.Fractal(t.kernel, x*b.Frequency, z*b.Frequency, seed+int64(b.ID)*7919, b.Octaves, 0.5, 2)
	return b.Base + b.Amplitude*float32(n)
}
