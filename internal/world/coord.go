package world

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// ChunkCoord identifies a chunk on the horizontal grid.
type ChunkCoord struct {
	X, Z int
}

func (c ChunkCoord) String() string { return fmt.Sprintf("(%d,%d)", c.X, c.Z) }

// Add offsets c by (dx, dz) chunks.
func (c ChunkCoord) Add(dx, dz int) ChunkCoord { return ChunkCoord{X: c.X + dx, Z: c.Z + dz} }

// Center returns the world-space center of the chunk for chunks worldSize
// units across.
func (c ChunkCoord) Center(worldSize float32) mgl32.Vec2 {
	return mgl32.Vec2{float32(c.X) * worldSize, float32(c.Z) * worldSize}
}

// CoordAt returns the chunk whose square contains the horizontal position of
// pos. Chunks are centred on multiples of worldSize.
func CoordAt(pos mgl32.Vec3, worldSize float32) ChunkCoord {
	return ChunkCoord{
		X: int(math.Floor(float64(pos[0]/worldSize) + 0.5)),
		Z: int(math.Floor(float64(pos[2]/worldSize) + 0.5)),
	}
}

// Range is the square of chunks within Radius of Center on both axes.
type Range struct {
	Center ChunkCoord
	Radius int
}

// Contains reports whether id lies inside the range.
func (r Range) Contains(id ChunkCoord) bool {
	dx, dz := id.X-r.Center.X, id.Z-r.Center.Z
	return dx >= -r.Radius && dx <= r.Radius && dz >= -r.Radius && dz <= r.Radius
}

// Each calls fn for every coordinate in the range, row by row.
func (r Range) Each(fn func(ChunkCoord)) {
	for dz := -r.Radius; dz <= r.Radius; dz++ {
		for dx := -r.Radius; dx <= r.Radius; dx++ {
			fn(r.Center.Add(dx, dz))
		}
	}
}

// boundsDistanceSq returns the squared horizontal distance from p to the
// square of half-width half centred on c. Points inside are at distance 0.
func boundsDistanceSq(p mgl32.Vec3, c mgl32.Vec2, half float32) float32 {
	dx := max(abs32(p[0]-c[0])-half, 0)
	dz := max(abs32(p[2]-c[1])-half, 0)
	return dx*dx + dz*dz
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

// EachRing calls fn for every coordinate in the range, nearest ring first.
// Each ring is walked clockwise from its top-left corner.
func (r Range) EachRing(fn func(ChunkCoord)) {
	c := r.Center
	fn(c)
	for k := 1; k <= r.Radius; k++ {
		x0, x1 := c.X-k, c.X+k
		z0, z1 := c.Z-k, c.Z+k
		for x := x0; x <= x1; x++ {
			fn(ChunkCoord{X: x, Z: z0})
		}
		for z := z0 + 1; z <= z1-1; z++ {
			fn(ChunkCoord{X: x1, Z: z})
		}
		for x := x1; x >= x0; x-- {
			fn(ChunkCoord{X: x, Z: z1})
		}
		for z := z1 - 1; z >= z0+1; z-- {
			fn(ChunkCoord{X: x0, Z: z})
		}
	}
}
