package noise

import (
	"math/rand"
	"testing"
)

// TestHash2Deterministic verifies Hash2 produces identical results for same inputs
func TestHash2Deterministic(t *testing.T) {
	first := Hash2(10, 20, 42)
	for i := 0; i < 100; i++ {
		if h := Hash2(10, 20, 42); h != first {
			t.Fatalf("Hash2 not deterministic: %d != %d", h, first)
		}
	}
}

// TestHash2DifferentInputs verifies Hash2 separates axes and seeds
func TestHash2DifferentInputs(t *testing.T) {
	if Hash2(1, 0, 42) == Hash2(2, 0, 42) {
		t.Errorf("Hash2 should differ for different X")
	}
	if Hash2(0, 1, 42) == Hash2(0, 2, 42) {
		t.Errorf("Hash2 should differ for different Z")
	}
	if Hash2(1, 1, 100) == Hash2(1, 1, 200) {
		t.Errorf("Hash2 should differ for different seed")
	}
	if Hash2(1, 3, 42) == Hash2(3, 1, 42) {
		t.Errorf("Hash2 should differ for axis swap")
	}
}

func TestHash2NoDiagonalCollisions(t *testing.T) {
	for z := int64(-16); z < 16; z++ {
		for x := int64(-16); x < 16; x++ {
			if Hash2(x, z, 42) == Hash2(x+2, z-1, 42) {
				t.Fatalf("Hash2(%d,%d) collides with Hash2(%d,%d)", x, z, x+2, z-1)
			}
		}
	}
}

func kernels() map[string]Kernel {
	return map[string]Kernel{
		"value":   Value{},
		"simplex": NewSimplex(),
		"perlin":  NewPerlin(),
	}
}

// TestKernelRange verifies every kernel stays inside [-1,1]
func TestKernelRange(t *testing.T) {
	rng := rand.New(rand.NewSource(12345))
	for name, k := range kernels() {
		for i := 0; i < 2000; i++ {
			x := rng.Float64()*400 - 200
			z := rng.Float64()*400 - 200
			if v := k.Sample(x, z, 7); v < -1 || v > 1 {
				t.Fatalf("%s.Sample(%f,%f) = %f, want [-1,1]", name, x, z, v)
			}
		}
	}
}

// TestGenerateMatchesSample verifies the grid form agrees with per-point sampling
func TestGenerateMatchesSample(t *testing.T) {
	const size = 9
	for name, k := range kernels() {
		g := Generate(k, size, 99, 128, -64, 0.5)
		for z := 0; z < size; z++ {
			for x := 0; x < size; x++ {
				want := float32(k.Sample(Position(128, x, size, 0.5), Position(-64, z, size, 0.5), 99))
				if g[z*size+x] != want {
					t.Fatalf("%s: grid (%d,%d) = %v, sample = %v", name, x, z, g[z*size+x], want)
				}
			}
		}
	}
}

func TestKernelDeterministicAcrossInstances(t *testing.T) {
	a, b := NewSimplex(), NewSimplex()
	if a.Sample(3.25, -8.5, 5) != b.Sample(3.25, -8.5, 5) {
		t.Fatalf("simplex differs between instances")
	}
	p, q := NewPerlin(), NewPerlin()
	if p.Sample(3.25, -8.5, 5) != q.Sample(3.25, -8.5, 5) {
		t.Fatalf("perlin differs between instances")
	}
}

func TestPositionCentersGrid(t *testing.T) {
	if got := Position(10, 2, 5, 1); got != 10 {
		t.Fatalf("middle index at %v, want 10", got)
	}
	if got := Position(0, 0, 69, 1); got != -34 {
		t.Fatalf("first index at %v, want -34", got)
	}
}

func TestNewKernel(t *testing.T) {
	for _, name := range []string{"", "value", "simplex", "perlin"} {
		if _, err := New(name); err != nil {
			t.Errorf("New(%q): %v", name, err)
		}
	}
	if _, err := New("worley"); err == nil {
		t.Fatalf("New(worley) should fail")
	}
}

func TestFractalRange(t *testing.T) {
	for i := 0; i < 500; i++ {
		v := Fractal(Value{}, float64(i)*0.37, float64(i)*-0.11, 3, 4, 0.5, 2)
		if v < -1 || v > 1 {
			t.Fatalf("Fractal out of range: %v", v)
		}
	}
}
