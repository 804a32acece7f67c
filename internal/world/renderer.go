package world

import (
	"image/color"

	"terrainstream/internal/meshing"
)

// Renderer receives display state for chunks. Calls arrive on the
// controller's goroutine.
type Renderer interface {
	SetActive(id ChunkCoord, active bool)
	SetMesh(id ChunkCoord, m *meshing.ChunkMesh)
	SetCollider(id ChunkCoord, m *meshing.ChunkMesh)
	// Paint delivers a row-major color buffer width pixels across.
	Paint(id ChunkCoord, pixels []color.RGBA, width int)
}

// NopRenderer discards everything.
type NopRenderer struct{}

func (NopRenderer) SetActive(ChunkCoord, bool) {}
func (NopRenderer) SetMesh(ChunkCoord, *meshing.ChunkMesh) {}
func (NopRenderer) SetCollider(ChunkCoord, *meshing.ChunkMesh) {}
func (NopRenderer) Paint(ChunkCoord, []color.RGBA, int) {}
