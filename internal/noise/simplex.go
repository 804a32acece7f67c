package noise

import (
	"sync"

	"github.com/ojrac/opensimplex-go"
)

// Simplex wraps OpenSimplex noise. Generators are built once per seed.
type Simplex struct {
	mu     sync.RWMutex
	bySeed map[int64]opensimplex.Noise
}

// NewSimplex creates an empty simplex kernel.
func NewSimplex() *Simplex {
	return &Simplex{bySeed: make(map[int64]opensimplex.Noise)}
}

// Sample implements Kernel.
func (s *Simplex) Sample(x, z float64, seed int64) float64 {
	return clamp(s.noise(seed).Eval2(x, z))
}

func (s *Simplex) noise(seed int64) opensimplex.Noise {
	s.mu.RLock()
	n, ok := s.bySeed[seed]
	s.mu.RUnlock()
	if ok {
		return n
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.bySeed[seed]; ok {
		return n
	}
	n = opensimplex.New(seed)
	s.bySeed[seed] = n
	return n
}
