package meshing

import (
	"errors"
	"fmt"
	"slices"
)

// ErrInvalidSettings reports an unusable mesh configuration.
var ErrInvalidSettings = errors.New("meshing: invalid settings")

// LODLevel is one detail tier: interior vertices are kept every SkipStep
// cells, and the tier applies up to MaxDistance from the viewer.
type LODLevel struct {
	SkipStep    int
	MaxDistance float32
}

// Settings describes the mesh layout shared by every chunk.
type Settings struct {
	// BaseSize is the number of cells along a chunk edge at full detail.
	BaseSize int
	// Scale is the world distance between adjacent grid cells.
	Scale       float32
	FlatShading bool
	// Levels is kept sorted by SkipStep.
	Levels []LODLevel
}

// NewSettings sorts levels by skip step and validates the result.
func NewSettings(baseSize int, scale float32, flat bool, levels []LODLevel) (Settings, error) {
	s := Settings{
		BaseSize:    baseSize,
		Scale:       scale,
		FlatShading: flat,
		Levels:      slices.Clone(levels),
	}
	SortLevels(s.Levels)
	return s, s.Validate()
}

// SortLevels orders levels by ascending skip step.
func SortLevels(levels []LODLevel) {
	slices.SortStableFunc(levels, func(a, b LODLevel) int { return a.SkipStep - b.SkipStep })
}

// Validate checks that the levels are sorted, their skip steps and
// distances unique, and that every skip step divides BaseSize.
func (s Settings) Validate() error {
	if s.BaseSize <= 0 {
		return fmt.Errorf("%w: base size %d", ErrInvalidSettings, s.BaseSize)
	}
	if s.Scale <= 0 {
		return fmt.Errorf("%w: scale %v", ErrInvalidSettings, s.Scale)
	}
	if len(s.Levels) == 0 {
		return fmt.Errorf("%w: no detail levels", ErrInvalidSettings)
	}
	for i, l := range s.Levels {
		if l.SkipStep <= 0 || s.BaseSize%l.SkipStep != 0 {
			return fmt.Errorf("%w: skip step %d does not divide base size %d", ErrInvalidSettings, l.SkipStep, s.BaseSize)
		}
		if i == 0 {
			continue
		}
		prev := s.Levels[i-1]
		if l.SkipStep <= prev.SkipStep {
			return fmt.Errorf("%w: skip steps must be unique and ascending, got %d after %d", ErrInvalidSettings, l.SkipStep, prev.SkipStep)
		}
		if l.MaxDistance <= prev.MaxDistance {
			return fmt.Errorf("%w: distances must be unique and ascending, got %v after %v", ErrInvalidSettings, l.MaxDistance, prev.MaxDistance)
		}
	}
	return nil
}

// VertsPerLine is the grid side length a height grid must have: the base
// size plus the out-of-mesh, mesh-edge and edge-connection rings.
func (s Settings) VertsPerLine() int { return s.BaseSize + 5 }

// WorldSize is the rendered width of one chunk mesh.
func (s Settings) WorldSize() float32 { return float32(s.VertsPerLine()-3) * s.Scale }

// MaxViewDistance is the distance of the coarsest level.
func (s Settings) MaxViewDistance() float32 { return s.Levels[len(s.Levels)-1].MaxDistance }

// SelectLOD returns the smallest level index whose squared distance
// threshold covers distSq, and false when distSq is beyond every level.
func (s Settings) SelectLOD(distSq float32) (int, bool) {
	for i, l := range s.Levels {
		if distSq <= l.MaxDistance*l.MaxDistance {
			return i, true
		}
	}
	return len(s.Levels) - 1, false
}
