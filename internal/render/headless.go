// Package render holds display backends for streamed chunks.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io"
	"os"
	"path/filepath"
	"sync"

	"terrainstream/internal/meshing"
	"terrainstream/internal/world"

	"golang.org/x/image/bmp"
)

// Stats summarises what a display would currently draw.
type Stats struct {
	Visible   int
	Meshes    int
	Colliders int
	Vertices  int
	Triangles int
	MeshSwaps int
	Paints    int
}

// Headless is a world.Renderer keeping display state in memory. It can
// compose the painted chunks into one map image.
type Headless struct {
	mu        sync.Mutex
	active    map[world.ChunkCoord]bool
	meshes    map[world.ChunkCoord]*meshing.ChunkMesh
	colliders map[world.ChunkCoord]*meshing.ChunkMesh
	tiles     map[world.ChunkCoord]*image.RGBA
	swaps     int
	paints    int
}

var _ world.Renderer = (*Headless)(nil)

func NewHeadless() *Headless {
	return &Headless{
		active:    make(map[world.ChunkCoord]bool),
		meshes:    make(map[world.ChunkCoord]*meshing.ChunkMesh),
		colliders: make(map[world.ChunkCoord]*meshing.ChunkMesh),
		tiles:     make(map[world.ChunkCoord]*image.RGBA),
	}
}

func (h *Headless) SetActive(id world.ChunkCoord, active bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !active {
		delete(h.active, id)
		return
	}
	h.active[id] = true
}

func (h *Headless) SetMesh(id world.ChunkCoord, m *meshing.ChunkMesh) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.meshes[id] = m
	h.swaps++
}

func (h *Headless) SetCollider(id world.ChunkCoord, m *meshing.ChunkMesh) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.colliders[id] = m
}

// Paint stores the chunk's color buffer as a tile. Rows run along +z.
func (h *Headless) Paint(id world.ChunkCoord, pixels []color.RGBA, width int) {
	if width <= 0 || len(pixels) != width*width {
		return
	}
	img := image.NewRGBA(image.Rect(0, 0, width, width))
	for i, c := range pixels {
		img.SetRGBA(i%width, i/width, c)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tiles[id] = img
	h.paints++
}

// Stats returns the current counters. Vertex and triangle totals cover
// meshes of visible chunks.
func (h *Headless) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := Stats{
		Visible:   len(h.active),
		Colliders: len(h.colliders),
		MeshSwaps: h.swaps,
		Paints:    h.paints,
	}
	for id, m := range h.meshes {
		if !h.active[id] || m == nil {
			continue
		}
		s.Meshes++
		s.Vertices += m.VertexCount()
		s.Triangles += m.TriangleCount()
	}
	return s
}

// Visible reports whether id is shown.
func (h *Headless) Visible(id world.ChunkCoord) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.active[id]
}

// Tile returns the last paint of id.
func (h *Headless) Tile(id world.ChunkCoord) (*image.RGBA, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.tiles[id]
	return t, ok
}

// Composite lays every visible painted tile out on one image, chunk x along
// the image x axis. It returns nil when nothing visible was painted.
func (h *Headless) Composite() *image.RGBA {
	h.mu.Lock()
	defer h.mu.Unlock()

	var minC, maxC world.ChunkCoord
	size, first := 0, true
	for id, t := range h.tiles {
		if !h.active[id] {
			continue
		}
		if first {
			minC, maxC, size, first = id, id, t.Rect.Dx(), false
			continue
		}
		minC = world.ChunkCoord{X: min(minC.X, id.X), Z: min(minC.Z, id.Z)}
		maxC = world.ChunkCoord{X: max(maxC.X, id.X), Z: max(maxC.Z, id.Z)}
	}
	if first {
		return nil
	}

	w := (maxC.X - minC.X + 1) * size
	ht := (maxC.Z - minC.Z + 1) * size
	dst := image.NewRGBA(image.Rect(0, 0, w, ht))
	for id, t := range h.tiles {
		if !h.active[id] || t.Rect.Dx() != size {
			continue
		}
		at := image.Pt((id.X-minC.X)*size, (id.Z-minC.Z)*size)
		draw.Draw(dst, image.Rectangle{Min: at, Max: at.Add(t.Rect.Size())}, t, image.Point{}, draw.Src)
	}
	return dst
}

// WriteBMP encodes the composite map to w.
func (h *Headless) WriteBMP(w io.Writer) error {
	img := h.Composite()
	if img == nil {
		return fmt.Errorf("render: no visible painted chunks")
	}
	return bmp.Encode(w, img)
}

// SaveBMP writes the composite map to path, creating its directory.
func (h *Headless) SaveBMP(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("render: create %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("render: create map: %w", err)
	}
	if err := h.WriteBMP(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
