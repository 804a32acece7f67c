package noise

import (
	"sync"

	"github.com/aquilax/go-perlin"
)

const (
	perlinAlpha = 2.0
	perlinBeta  = 2.0
	perlinN     = 3
)

// Perlin wraps classic Perlin noise with alpha=2, beta=2, n=3.
type Perlin struct {
	mu     sync.RWMutex
	bySeed map[int64]*perlin.Perlin
}

// NewPerlin creates an empty perlin kernel.
func NewPerlin() *Perlin {
	return &Perlin{bySeed: make(map[int64]*perlin.Perlin)}
}

// Sample implements Kernel.
func (p *Perlin) Sample(x, z float64, seed int64) float64 {
	return clamp(p.noise(seed).Noise2D(x, z))
}

func (p *Perlin) noise(seed int64) *perlin.Perlin {
	p.mu.RLock()
	n, ok := p.bySeed[seed]
	p.mu.RUnlock()
	if ok {
		return n
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if n, ok := p.bySeed[seed]; ok {
		return n
	}
	n = perlin.NewPerlin(perlinAlpha, perlinBeta, perlinN, seed)
	p.bySeed[seed] = n
	return n
}
