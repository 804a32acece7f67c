package meshing

import "github.com/go-gl/mathgl/mgl32"

func surfaceNormal(a, b, c mgl32.Vec3) mgl32.Vec3 {
	n := b.Sub(a).Cross(c.Sub(a))
	if l := n.Len(); l > 0 {
		return n.Mul(1 / l)
	}
	return mgl32.Vec3{}
}

// bakeNormals computes smooth vertex normals from both the rendered and the
// out-of-mesh triangles, so border vertices match their neighbours in the
// next chunk, then carries them across edge connections.
func (m *ChunkMesh) bakeNormals() {
	normals := make([]mgl32.Vec3, len(m.Vertices))
	for i := 0; i+2 < len(m.Triangles); i += 3 {
		a, b, c := m.Triangles[i], m.Triangles[i+1], m.Triangles[i+2]
		fn := surfaceNormal(m.Vertices[a], m.Vertices[b], m.Vertices[c])
		normals[a] = normals[a].Add(fn)
		normals[b] = normals[b].Add(fn)
		normals[c] = normals[c].Add(fn)
	}
	for i := 0; i+2 < len(m.OutOfMeshTriangles); i += 3 {
		tri := m.OutOfMeshTriangles[i : i+3]
		fn := surfaceNormal(m.position(tri[0]), m.position(tri[1]), m.position(tri[2]))
		for _, v := range tri {
			if v >= 0 {
				normals[v] = normals[v].Add(fn)
			}
		}
	}
	for i, n := range normals {
		if l := n.Len(); l > 0 {
			normals[i] = n.Mul(1 / l)
		} else {
			normals[i] = mgl32.Vec3{0, 1, 0}
		}
	}
	for _, e := range m.EdgeConnections {
		normals[e.Vertex] = lerpVec3(normals[e.MainA], normals[e.MainB], e.FractionAtoB)
	}
	m.Normals = normals
}

// flatShade gives every triangle its own three vertices carrying the face
// normal. Edge connections no longer address the new vertices and are
// dropped; their heights are already baked into the positions.
func (m *ChunkMesh) flatShade() {
	n := len(m.Triangles)
	verts := make([]mgl32.Vec3, n)
	uv0 := make([]mgl32.Vec2, n)
	uv1 := make([]mgl32.Vec2, n)
	normals := make([]mgl32.Vec3, n)
	tris := make([]uint32, n)
	for i := 0; i+2 < n; i += 3 {
		for k := 0; k < 3; k++ {
			src := m.Triangles[i+k]
			verts[i+k] = m.Vertices[src]
			uv0[i+k] = m.UV0[src]
			uv1[i+k] = m.UV1[src]
			tris[i+k] = uint32(i + k)
		}
		fn := surfaceNormal(verts[i], verts[i+1], verts[i+2])
		normals[i], normals[i+1], normals[i+2] = fn, fn, fn
	}
	m.Vertices, m.UV0, m.UV1, m.Normals, m.Triangles = verts, uv0, uv1, normals, tris
	m.EdgeConnections = nil
}
