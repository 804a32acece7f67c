package meshing

import (
	"context"
	"fmt"

	"terrainstream/internal/grid"

	"github.com/go-gl/mathgl/mgl32"
)

type vertexKind uint8

const (
	kindSkipped vertexKind = iota
	kindOutOfMesh
	kindMeshEdge
	kindEdgeConnection
	kindMain
)

// classify places cell (x, y) of an n x n grid into its ring. The outer
// ring only feeds normals, the next one is always meshed at full detail,
// and the third ring stitches that border to the coarser interior.
func classify(x, y, n, skip int) vertexKind {
	switch {
	case x == 0 || y == 0 || x == n-1 || y == n-1:
		return kindOutOfMesh
	case x == 1 || y == 1 || x == n-2 || y == n-2:
		return kindMeshEdge
	case (x-2)%skip == 0 && (y-2)%skip == 0:
		return kindMain
	case x == 2 || y == 2 || x == n-3 || y == n-3:
		return kindEdgeConnection
	}
	return kindSkipped
}

// lerp keeps both products rounded to float32 so the result does not
// depend on whether the target fuses multiply-add.
func lerp(a, b, t float32) float32 {
	return float32(a*(1-t)) + float32(b*t)
}

func lerpVec3(a, b mgl32.Vec3, t float32) mgl32.Vec3 {
	return mgl32.Vec3{lerp(a[0], b[0], t), lerp(a[1], b[1], t), lerp(a[2], b[2], t)}
}

// Generate builds the mesh of detail level lod from a height grid whose
// side is s.VertsPerLine(). The mesh is centred on the origin in x and z
// with heights on the y axis. ctx is polled once per grid row.
func Generate(ctx context.Context, heights *grid.HeightGrid, s Settings, lod int) (*ChunkMesh, error) {
	if lod < 0 || lod >= len(s.Levels) {
		return nil, fmt.Errorf("%w: detail level %d of %d", ErrInvalidSettings, lod, len(s.Levels))
	}
	n := s.VertsPerLine()
	if heights.Size() != n {
		return nil, fmt.Errorf("%w: height grid side %d, want %d", ErrInvalidSettings, heights.Size(), n)
	}
	skip := s.Levels[lod].SkipStep
	hv := heights.Values()

	index := make([]int32, n*n)
	var meshCount, outCount int32
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			switch classify(x, y, n, skip) {
			case kindSkipped:
			case kindOutOfMesh:
				outCount++
				index[y*n+x] = -outCount
			default:
				index[y*n+x] = meshCount
				meshCount++
			}
		}
	}

	m := &ChunkMesh{
		LOD:               lod,
		Vertices:          make([]mgl32.Vec3, meshCount),
		UV0:               make([]mgl32.Vec2, meshCount),
		UV1:               make([]mgl32.Vec2, meshCount),
		OutOfMeshVertices: make([]mgl32.Vec3, outCount),
	}

	worldSize := s.WorldSize()
	topLeft := -worldSize / 2
	denom := float32(n - 3)

	emit := func(a, b, c int32) {
		if a < 0 || b < 0 || c < 0 {
			m.OutOfMeshTriangles = append(m.OutOfMeshTriangles, a, b, c)
			return
		}
		m.Triangles = append(m.Triangles, uint32(a), uint32(b), uint32(c))
	}

	for y := 0; y < n; y++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for x := 0; x < n; x++ {
			kind := classify(x, y, n, skip)
			if kind == kindSkipped {
				continue
			}
			vi := index[y*n+x]
			pct := mgl32.Vec2{float32(x-1) / denom, float32(y-1) / denom}
			h := hv[y*n+x]

			if kind == kindEdgeConnection {
				vertical := x == 2 || x == n-3
				var dstA int
				if vertical {
					dstA = (y - 2) % skip
				} else {
					dstA = (x - 2) % skip
				}
				dstB := skip - dstA
				frac := float32(dstA) / float32(skip)

				ax, ay, bx, by := x-dstA, y, x+dstB, y
				if vertical {
					ax, ay, bx, by = x, y-dstA, x, y+dstB
				}
				h = lerp(hv[ay*n+ax], hv[by*n+bx], frac)
				m.EdgeConnections = append(m.EdgeConnections, EdgeConnection{
					Vertex:       int(vi),
					MainA:        int(index[ay*n+ax]),
					MainB:        int(index[by*n+bx]),
					FractionAtoB: frac,
				})
			}

			pos := mgl32.Vec3{topLeft + pct[0]*worldSize, h, topLeft + pct[1]*worldSize}
			if vi < 0 {
				m.OutOfMeshVertices[-vi-1] = pos
			} else {
				m.Vertices[vi] = pos
				m.UV0[vi] = pct
				m.UV1[vi] = mgl32.Vec2{float32(x - 1), float32(y - 1)}
			}

			if x >= n-1 || y >= n-1 || (kind == kindEdgeConnection && (x == 2 || y == 2)) {
				continue
			}
			inc := 1
			if kind == kindMain && x != n-3 && y != n-3 {
				inc = skip
			}
			a := index[y*n+x]
			b := index[y*n+x+inc]
			c := index[(y+inc)*n+x]
			d := index[(y+inc)*n+x+inc]
			emit(a, c, d)
			emit(d, b, a)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.FlatShading {
		m.flatShade()
	} else {
		m.bakeNormals()
	}
	return m, nil
}
