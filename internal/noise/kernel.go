// Package noise provides the deterministic height and feature sampling
// kernels used by terrain generation. Every kernel returns values in [-1,1]
// and is safe for concurrent use.
package noise

import (
	"fmt"
	"math"
)

// Kernel samples a deterministic 2D noise field.
type Kernel interface {
	Sample(x, z float64, seed int64) float64
}

// New returns the kernel registered under name: "value", "simplex" or "perlin".
func New(name string) (Kernel, error) {
	switch name {
	case "", "simplex":
		return NewSimplex(), nil
	case "perlin":
		return NewPerlin(), nil
	case "value":
		return Value{}, nil
	default:
		return nil, fmt.Errorf("noise: unknown kernel %q", name)
	}
}

// Position maps grid index i of a size-wide grid centred on center with the
// given spacing into world space. Generate and per-point sampling share it
// so both forms agree point for point.
func Position(center float64, i, size int, spacing float64) float64 {
	return center + (float64(i)-float64(size-1)/2)*spacing
}

// Generate samples a size x size row-major grid around (centerX, centerZ).
func Generate(k Kernel, size int, seed int64, centerX, centerZ, spacing float64) []float32 {
	out := make([]float32, size*size)
	for z := 0; z < size; z++ {
		wz := Position(centerZ, z, size, spacing)
		for x := 0; x < size; x++ {
			out[z*size+x] = float32(k.Sample(Position(centerX, x, size, spacing), wz, seed))
		}
	}
	return out
}

// Fractal sums octaves of k and normalises the result back into [-1,1].
func Fractal(k Kernel, x, z float64, seed int64, octaves int, persistence, lacunarity float64) float64 {
	amplitude := 1.0
	frequency := 1.0
	sum := 0.0
	norm := 0.0
	for i := 0; i < octaves; i++ {
		sum += k.Sample(x*frequency, z*frequency, seed+int64(i*131)) * amplitude
		norm += amplitude
		amplitude *= persistence
		frequency *= lacunarity
	}
	if norm == 0 {
		return 0
	}
	return sum / norm
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(-1, math.Min(1, v))
}
