// Package scatter generates deterministic, jittered sample points on a
// triangular lattice. Points depend only on the seed and their lattice cell,
// so independent queries over overlapping regions agree bit for bit.
package scatter

import (
	"math"

	"terrainstream/internal/grid"
)

// Lattice geometry, in lattice units (world units times frequency).
const (
	// skew is (sqrt(3)-1)/2 and unskew is (3-sqrt(3))/6.
	skew   = 0.36602540378443865
	unskew = 0.21132486540518713

	triangleEdge         = 0.816496580927726
	triangleHeight       = 0.7071067811865476
	triangleCircumradius = 0.47140452079103173
	jitterAmount         = triangleHeight * 0.5

	// MaxClosestPointDistance bounds, in lattice units, the distance from
	// any location to its nearest jittered point.
	MaxClosestPointDistance = triangleCircumradius + jitterAmount
)

const (
	primeX   = 0x5205402B9270C86F
	primeZ   = 0x598CD327003817B5
	hashMult = 0x53A3F72DEEC546F5

	jitterVectors = 24
)

var jitterX, jitterZ [jitterVectors]float64

func init() {
	for i := 0; i < jitterVectors; i++ {
		angle := (float64(i) + 0.5) * 2 * math.Pi / jitterVectors
		s, c := math.Sincos(angle)
		jitterX[i] = c * jitterAmount
		jitterZ[i] = s * jitterAmount
	}
}

// Point is one scattered sample location.
type Point struct {
	X, Z float64
	// Hash holds the hash bits not consumed by jitter selection.
	Hash uint64
	// Biome is left zero by the gatherer and filled in by classifiers.
	Biome grid.BiomeID
}

type latticeOffset struct {
	di, dj int
}

// Gatherer returns every lattice point that can land within a fixed radius
// of a query location.
type Gatherer struct {
	frequency float64
	offsets   []latticeOffset
}

// NewGatherer precomputes the lattice search pattern for points that can
// contribute within maxRadius world units of a query.
func NewGatherer(frequency, maxRadius float64) *Gatherer {
	maxContributing := maxRadius*frequency + jitterAmount
	// The query can sit anywhere inside its rhombus cell, at most one edge
	// length from the cell origin.
	reach := maxContributing + triangleEdge
	reachSq := reach * reach
	// Skewing stretches distances by at most sqrt(3).
	bound := int(math.Ceil(reach*math.Sqrt(3))) + 1

	var offsets []latticeOffset
	for dj := -bound; dj <= bound; dj++ {
		for di := -bound; di <= bound; di++ {
			t := float64(di+dj) * unskew
			x := float64(di) - t
			z := float64(dj) - t
			if x*x+z*z <= reachSq {
				offsets = append(offsets, latticeOffset{di: di, dj: dj})
			}
		}
	}
	return &Gatherer{frequency: frequency, offsets: offsets}
}

// Frequency returns the lattice frequency.
func (g *Gatherer) Frequency() float64 { return g.frequency }

// Points returns the candidate points around (x, z) in world units. The
// result is a superset: callers filter by their exact radius.
func (g *Gatherer) Points(seed int64, x, z float64) []Point {
	return g.appendPoints(nil, seed, x, z)
}

func (g *Gatherer) appendPoints(dst []Point, seed int64, x, z float64) []Point {
	qx, qz := x*g.frequency, z*g.frequency
	s := (qx + qz) * skew
	xsb := int64(math.Floor(qx + s))
	zsb := int64(math.Floor(qz + s))

	for _, o := range g.offsets {
		i, j := xsb+int64(o.di), zsb+int64(o.dj)
		h := latticeHash(seed, i, j)
		v := jitterIndex(h)

		t := float64(i+j) * unskew
		lx := float64(i) - t + jitterX[v]
		lz := float64(j) - t + jitterZ[v]

		dst = append(dst, Point{
			X:    lx / g.frequency,
			Z:    lz / g.frequency,
			Hash: h >> 32,
		})
	}
	return dst
}

func latticeHash(seed, i, j int64) uint64 {
	h := uint64(seed) ^ uint64(i)*primeX ^ uint64(j)*primeZ
	h *= hashMult
	return h ^ (h >> 32)
}

// jitterIndex maps the low hash bits onto [0, jitterVectors) with a
// multiply-shift, which stays near uniform without a division.
func jitterIndex(h uint64) int {
	return int(((h & 0xFFFFFFFF) * jitterVectors) >> 32)
}
