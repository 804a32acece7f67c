package meshing

import "github.com/go-gl/mathgl/mgl32"

// EdgeConnection records a seam vertex interpolated between two main
// vertices A and B of the same ring.
type EdgeConnection struct {
	Vertex       int
	MainA, MainB int
	FractionAtoB float32
}

// ChunkMesh holds the buffers for one chunk at one detail level. Indices
// into Vertices are non-negative; out-of-mesh vertices are addressed with
// negative indices -1, -2, ... and only contribute to normals.
type ChunkMesh struct {
	LOD int

	Vertices  []mgl32.Vec3
	Normals   []mgl32.Vec3
	UV0       []mgl32.Vec2
	UV1       []mgl32.Vec2
	Triangles []uint32

	OutOfMeshVertices  []mgl32.Vec3
	OutOfMeshTriangles []int32

	EdgeConnections []EdgeConnection
}

// VertexCount returns the number of renderable vertices.
func (m *ChunkMesh) VertexCount() int { return len(m.Vertices) }

// TriangleCount returns the number of renderable triangles.
func (m *ChunkMesh) TriangleCount() int { return len(m.Triangles) / 3 }

// Bounds returns the axis-aligned box of the renderable vertices.
func (m *ChunkMesh) Bounds() (lo, hi mgl32.Vec3) {
	if len(m.Vertices) == 0 {
		return
	}
	lo, hi = m.Vertices[0], m.Vertices[0]
	for _, v := range m.Vertices[1:] {
		for k := 0; k < 3; k++ {
			lo[k] = min(lo[k], v[k])
			hi[k] = max(hi[k], v[k])
		}
	}
	return lo, hi
}

// Interleaved packs position, normal and both uv channels into one buffer
// of VertexStride floats per vertex.
func (m *ChunkMesh) Interleaved() []float32 {
	out := make([]float32, 0, len(m.Vertices)*VertexStride)
	for i, v := range m.Vertices {
		n, a, b := m.Normals[i], m.UV0[i], m.UV1[i]
		out = append(out, v[0], v[1], v[2], n[0], n[1], n[2], a[0], a[1], b[0], b[1])
	}
	return out
}

// VertexStride is the number of float32 per interleaved vertex
// (pos.xyz + normal.xyz + uv0.xy + uv1.xy).
const VertexStride = 10

func (m *ChunkMesh) position(i int32) mgl32.Vec3 {
	if i < 0 {
		return m.OutOfMeshVertices[-i-1]
	}
	return m.Vertices[i]
}
