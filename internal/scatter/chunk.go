package scatter

import "math"

// ChunkGatherer restricts gathered points to those within a contribution
// radius of an axis-aligned square chunk.
type ChunkGatherer struct {
	inner     *Gatherer
	halfWidth float64
	radius    float64
	radiusSq  float64
}

// NewChunkGatherer builds a gatherer for square chunks chunkWidth world units
// across whose points contribute up to radius world units away.
func NewChunkGatherer(frequency, radius, chunkWidth float64) *ChunkGatherer {
	half := chunkWidth / 2
	return &ChunkGatherer{
		// The chunk corners are half*sqrt(2) from its center.
		inner:     NewGatherer(frequency, radius+half*math.Sqrt2),
		halfWidth: half,
		radius:    radius,
		radiusSq:  radius * radius,
	}
}

// Radius returns the contribution radius.
func (c *ChunkGatherer) Radius() float64 { return c.radius }

// PointsFromChunkCenter returns the points that can reach any location of
// the chunk centred on (cx, cz).
func (c *ChunkGatherer) PointsFromChunkCenter(seed int64, cx, cz float64) []Point {
	pts := c.inner.Points(seed, cx, cz)
	keep := pts[:0]
	for _, p := range pts {
		if c.InRange(cx, cz, p.X, p.Z) {
			keep = append(keep, p)
		}
	}
	return keep
}

// InRange reports whether (x, z) lies within the contribution radius of the
// chunk centred on (cx, cz).
func (c *ChunkGatherer) InRange(cx, cz, x, z float64) bool {
	dx := math.Abs(x-cx) - c.halfWidth
	dz := math.Abs(z-cz) - c.halfWidth
	if dx > c.radius || dz > c.radius {
		return false
	}
	// Only the corner regions need the exact distance.
	if dx > 0 && dz > 0 {
		return dx*dx+dz*dz <= c.radiusSq
	}
	return true
}
