package world

import (
	"context"
	"errors"
	"image/color"
	"io"
	"log/slog"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"terrainstream/internal/config"
	"terrainstream/internal/grid"
	"terrainstream/internal/meshing"
	"terrainstream/internal/profiling"
	"terrainstream/internal/storage"

	"github.com/go-gl/mathgl/mgl32"
)

var errTerrain = errors.New("terrain unavailable")

// testConfig streams 13-vertex chunks 10 units across with view distances
// of 12, 24 and 40.
func testConfig(t testing.TB) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Mesh.BaseSize = 8
	cfg.Mesh.LODs = []config.LODConfig{
		{SkipStep: 1, MaxDistance: 12},
		{SkipStep: 2, MaxDistance: 24},
		{SkipStep: 4, MaxDistance: 40},
	}
	cfg.Mesh.ColliderDistance = 6
	cfg.Streaming.ChunkRadius = 1
	cfg.Streaming.UpdateThreshold = 4
	cfg.Streaming.UnloadDistance = 48
	cfg.Streaming.Prewarm = 0
	cfg.Streaming.Workers = 2
	cfg.Streaming.QueueSize = 64
	cfg.Persistence.Prefix = "test"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	return cfg
}

type flatTerrain struct {
	calls atomic.Int64
	fail  func(center mgl32.Vec2) bool
}

func (f *flatTerrain) Generate(ctx context.Context, center mgl32.Vec2, heights *grid.HeightGrid, biomes *grid.BiomeGrid) error {
	f.calls.Add(1)
	if f.fail != nil && f.fail(center) {
		return errTerrain
	}
	n := heights.Size()
	values := make([]float32, n*n)
	weights := make([]float32, n*n)
	for i := range values {
		values[i] = center[0] * 0.1
		weights[i] = 1
	}
	if err := biomes.SetWeights(map[grid.BiomeID][]float32{1: weights}); err != nil {
		return err
	}
	if err := heights.Load(values, 0, 0); err != nil {
		return err
	}
	heights.UpdateRange()
	heights.MarkDirty()
	return nil
}

type recordingRenderer struct {
	active    map[ChunkCoord]bool
	meshes    map[ChunkCoord]*meshing.ChunkMesh
	colliders map[ChunkCoord]int
	paints    map[ChunkCoord]int
}

func newRecordingRenderer() *recordingRenderer {
	return &recordingRenderer{
		active:    make(map[ChunkCoord]bool),
		meshes:    make(map[ChunkCoord]*meshing.ChunkMesh),
		colliders: make(map[ChunkCoord]int),
		paints:    make(map[ChunkCoord]int),
	}
}

func (r *recordingRenderer) SetActive(id ChunkCoord, active bool) { r.active[id] = active }

func (r *recordingRenderer) SetMesh(id ChunkCoord, m *meshing.ChunkMesh) { r.meshes[id] = m }

func (r *recordingRenderer) SetCollider(id ChunkCoord, m *meshing.ChunkMesh) { r.colliders[id]++ }

func (r *recordingRenderer) Paint(id ChunkCoord, pixels []color.RGBA, width int) { r.paints[id]++ }

// countingPool records every Return a chunk makes.
type countingPool struct {
	ChunkPool
	returns map[ChunkCoord]int
}

func (p *countingPool) Return(c *Chunk) {
	p.returns[c.ID()]++
	p.ChunkPool.Return(c)
}

type harness struct {
	ctl     *Controller
	pos     mgl32.Vec3
	rend    *recordingRenderer
	returns map[ChunkCoord]int
}

func newHarness(t *testing.T, cfg *config.Config, opts Options) *harness {
	t.Helper()
	h := &harness{rend: newRecordingRenderer(), returns: make(map[ChunkCoord]int)}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	opts.Renderer = h.rend
	opts.Profiler = profiling.New()

	ctl, err := NewController(cfg, ViewerFunc(func() mgl32.Vec3 { return h.pos }), opts)
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	cp := &countingPool{ChunkPool: ctl.pool, returns: h.returns}
	ctl.pool = cp
	ctl.env.owner = cp
	h.ctl = ctl

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := ctl.Close(ctx); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return h
}

// pump ticks the controller until cond holds.
func (h *harness) pump(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		h.ctl.Tick()
		if cond() {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("condition not met before deadline: size %+v", h.ctl.Size())
		}
		time.Sleep(time.Millisecond)
	}
}

// settled reports whether every chunk finished loading, every visible
// chunk shows the detail level it wants, and no release is in flight.
func (h *harness) settled() bool {
	chunks := h.ctl.Chunks()
	if h.ctl.Size().CheckedOut != len(chunks) {
		return false
	}
	for _, c := range chunks {
		if !c.HasHeights() && !c.Failed() {
			return false
		}
		if c.Visible() && (c.LOD() < 0 || c.LOD() != c.wantLOD) {
			return false
		}
	}
	return true
}

func (h *harness) moveTo(x, z float32) { h.pos = mgl32.Vec3{x, 0, z} }

func TestInitialCycleChecksOutRange(t *testing.T) {
	h := newHarness(t, testConfig(t), Options{Terrain: &flatTerrain{}})

	h.ctl.Tick()
	if got := h.ctl.Cycles(); got != 1 {
		t.Fatalf("cycles %d after first tick, want 1", got)
	}
	if got := h.ctl.Size().CheckedOut; got != 9 {
		t.Fatalf("checked out %d, want 9", got)
	}
	for z := -1; z <= 1; z++ {
		for x := -1; x <= 1; x++ {
			id := ChunkCoord{X: x, Z: z}
			c, ok := h.ctl.Chunk(id)
			if !ok {
				t.Fatalf("chunk %v not checked out", id)
			}
			if c.State() != StateLoading {
				t.Fatalf("chunk %v state %v, want loading", id, c.State())
			}
		}
	}

	h.pump(t, h.settled)
	for _, c := range h.ctl.Chunks() {
		if !c.Visible() {
			t.Fatalf("chunk %v hidden at distance %v", c.ID(), c.DistanceSq())
		}
		if c.LOD() != 0 {
			t.Fatalf("chunk %v at lod %d, want 0", c.ID(), c.LOD())
		}
		if h.rend.paints[c.ID()] != 1 {
			t.Fatalf("chunk %v painted %d times", c.ID(), h.rend.paints[c.ID()])
		}
		if h.rend.meshes[c.ID()] == nil || !h.rend.active[c.ID()] {
			t.Fatalf("renderer missing state for %v", c.ID())
		}
	}
}

func TestUpdateThreshold(t *testing.T) {
	h := newHarness(t, testConfig(t), Options{Terrain: &flatTerrain{}})
	h.ctl.Tick()
	h.pump(t, h.settled)

	h.moveTo(3, 0)
	h.ctl.Tick()
	if got := h.ctl.Cycles(); got != 1 {
		t.Fatalf("cycles %d after moving 3 units, want 1", got)
	}
	if len(h.returns) != 0 || h.ctl.Size().Total() != 9 {
		t.Fatalf("small move touched the pool: returns %v, size %+v", h.returns, h.ctl.Size())
	}

	h.moveTo(4.5, 0)
	h.ctl.Tick()
	if got := h.ctl.Cycles(); got != 2 {
		t.Fatalf("cycles %d after moving 4.5 units, want 2", got)
	}
	if got := h.ctl.Size().CheckedOut; got != 9 {
		t.Fatalf("checked out %d within the same chunk, want 9", got)
	}
}

func TestFarChunksReleasedOnce(t *testing.T) {
	h := newHarness(t, testConfig(t), Options{Terrain: &flatTerrain{}})
	h.ctl.Tick()
	h.pump(t, h.settled)
	old := h.ctl.Chunks()

	h.moveTo(200, 0)
	h.ctl.Tick()
	for _, c := range old {
		if !c.Releasing() && c.State() != StatePooled {
			t.Fatalf("chunk %v not released", c.ID())
		}
		c.ValidateNonUpdated()
		c.ReleaseToPool()
		c.ValidateNonUpdated()
	}

	h.pump(t, func() bool { return h.settled() && h.ctl.Size().Available == 9 })
	for _, c := range old {
		if c.State() != StatePooled {
			t.Fatalf("old chunk in state %v", c.State())
		}
	}
	for z := -1; z <= 1; z++ {
		for x := -1; x <= 1; x++ {
			id := ChunkCoord{X: x, Z: z}
			if got := h.returns[id]; got != 1 {
				t.Fatalf("chunk %v returned %d times, want 1", id, got)
			}
			if h.rend.active[id] {
				t.Fatalf("chunk %v still shown", id)
			}
		}
	}
	if got := h.ctl.Size().CheckedOut; got != 9 {
		t.Fatalf("checked out %d around the new position, want 9", got)
	}

	// Returning to the origin reuses the pooled chunks.
	h.moveTo(0, 0)
	h.ctl.Tick()
	h.pump(t, func() bool { return h.settled() && h.ctl.Size().Available == 9 })
	if got := h.ctl.Size().Total(); got != 18 {
		t.Fatalf("pool built %d chunks, want 18", got)
	}
}

func TestLODNonDecreasingWithDistance(t *testing.T) {
	cfg := testConfig(t)
	cfg.Streaming.ChunkRadius = 3
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	h := newHarness(t, cfg, Options{Terrain: &flatTerrain{}})
	h.ctl.Tick()
	h.pump(t, h.settled)

	chunks := h.ctl.Chunks()
	slices.SortFunc(chunks, func(a, b *Chunk) int {
		switch da, db := a.DistanceSq(), b.DistanceSq(); {
		case da < db:
			return -1
		case da > db:
			return 1
		}
		return 0
	})
	maxSq := h.ctl.derived.MaxViewDistanceSq
	prev := 0
	seen := make(map[int]bool)
	for _, c := range chunks {
		d := c.DistanceSq()
		if c.Visible() != (d <= maxSq) {
			t.Fatalf("chunk %v visible=%v at distance^2 %v", c.ID(), c.Visible(), d)
		}
		if !c.Visible() {
			continue
		}
		if c.LOD() < prev {
			t.Fatalf("chunk %v lod %d after lod %d at greater distance", c.ID(), c.LOD(), prev)
		}
		prev = c.LOD()
		seen[c.LOD()] = true
	}
	if len(seen) != 3 {
		t.Fatalf("lods in use %v, want all three", seen)
	}
}

func TestColliderAssignedOnce(t *testing.T) {
	h := newHarness(t, testConfig(t), Options{Terrain: &flatTerrain{}})
	h.ctl.Tick()
	center := ChunkCoord{}
	h.pump(t, func() bool { return h.settled() && h.rend.colliders[center] == 1 })

	for i := 1; i <= 5; i++ {
		h.moveTo(float32(i)*0.1, 0)
		h.ctl.Tick()
	}
	h.pump(t, h.settled)
	if got := h.rend.colliders[center]; got != 1 {
		t.Fatalf("collider set %d times, want 1", got)
	}
	if got := h.rend.colliders[ChunkCoord{X: 1, Z: 1}]; got != 0 {
		t.Fatalf("corner chunk beyond collider distance got %d colliders", got)
	}
}

func TestFailedChunkStaysInactive(t *testing.T) {
	terrain := &flatTerrain{fail: func(c mgl32.Vec2) bool { return c == mgl32.Vec2{} }}
	h := newHarness(t, testConfig(t), Options{Terrain: terrain})
	h.ctl.Tick()
	h.pump(t, h.settled)

	c, ok := h.ctl.Chunk(ChunkCoord{})
	if !ok {
		t.Fatal("failed chunk not checked out")
	}
	if !c.Failed() || c.HasHeights() || c.Visible() {
		t.Fatalf("failed chunk: failed=%v heights=%v visible=%v", c.Failed(), c.HasHeights(), c.Visible())
	}
	if c.State() != StateLoading {
		t.Fatalf("failed chunk state %v, want loading", c.State())
	}

	h.moveTo(200, 0)
	h.pump(t, func() bool { return h.settled() && h.ctl.Size().Available == 9 })
	if c.State() != StatePooled {
		t.Fatalf("failed chunk in state %v after release", c.State())
	}
	if got := h.returns[ChunkCoord{}]; got != 1 {
		t.Fatalf("failed chunk returned %d times", got)
	}
}

func TestPersistedChunksReload(t *testing.T) {
	cfg := testConfig(t)
	store := storage.NewMemory()
	terrain := &flatTerrain{}
	h := newHarness(t, cfg, Options{Terrain: terrain, Store: store})

	var saved, fromStore atomic.Int64
	h.ctl.Events().ChunkSaved.Subscribe(func(ChunkSaved) { saved.Add(1) })
	h.ctl.Events().ChunkLoaded.Subscribe(func(e ChunkLoaded) {
		if e.FromStore {
			fromStore.Add(1)
		}
	})

	h.ctl.Tick()
	h.pump(t, h.settled)
	if got := terrain.calls.Load(); got != 9 {
		t.Fatalf("generated %d chunks, want 9", got)
	}

	h.moveTo(200, 0)
	h.pump(t, func() bool { return h.settled() && saved.Load() == 9 && h.ctl.Size().Available == 9 })
	if got := store.Len(); got != 27 {
		t.Fatalf("store holds %d records, want 27", got)
	}

	h.moveTo(0, 0)
	h.pump(t, func() bool { return h.settled() && fromStore.Load() == 9 })
	if got := terrain.calls.Load(); got != 18 {
		t.Fatalf("generated %d chunks after returning, want 18", got)
	}
	c, _ := h.ctl.Chunk(ChunkCoord{X: 1})
	if !c.FromStore() || c.Heights().Dirty() {
		t.Fatalf("reloaded chunk: from store %v, dirty %v", c.FromStore(), c.Heights().Dirty())
	}
	if v, _ := c.Heights().At(3, 3); v != 1 {
		t.Fatalf("reloaded height %v, want 1", v)
	}
}

func TestCloseReturnsEveryChunk(t *testing.T) {
	h := newHarness(t, testConfig(t), Options{Terrain: &flatTerrain{}})
	h.ctl.Tick()
	h.pump(t, h.settled)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.ctl.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := h.ctl.Size(); got.CheckedOut != 0 || got.Available != 9 {
		t.Fatalf("size after close %+v", got)
	}
	h.moveTo(300, 0)
	h.ctl.Tick()
	if got := h.ctl.Cycles(); got != 1 {
		t.Fatalf("tick after close ran a cycle")
	}
}

func TestEventsUnsubscribe(t *testing.T) {
	h := newHarness(t, testConfig(t), Options{Terrain: &flatTerrain{}})

	var cycles, moves int
	var last ViewerChangedChunk
	stop := h.ctl.Events().CycleCompleted.Subscribe(func(CycleCompleted) { cycles++ })
	h.ctl.Events().ViewerChangedChunk.Subscribe(func(e ViewerChangedChunk) {
		moves++
		last = e
	})

	h.moveTo(20, 0)
	h.ctl.Tick()
	if cycles != 1 || moves != 0 {
		t.Fatalf("cycles %d moves %d after first tick", cycles, moves)
	}
	stop()
	if n := h.ctl.Events().CycleCompleted.Len(); n != 0 {
		t.Fatalf("%d subscribers after unsubscribe", n)
	}

	h.moveTo(0, 0)
	h.ctl.Tick()
	if cycles != 1 {
		t.Fatalf("unsubscribed observer called")
	}
	if moves != 1 {
		t.Fatalf("moves %d after crossing into another chunk, want 1", moves)
	}
	if want := (ViewerChangedChunk{Old: ChunkCoord{X: 2}, New: ChunkCoord{}}); last != want {
		t.Fatalf("event %+v, want %+v", last, want)
	}
}

func TestGeneratedTerrainStreams(t *testing.T) {
	cfg := testConfig(t)
	h := newHarness(t, cfg, Options{})
	h.ctl.Tick()
	h.pump(t, h.settled)

	for _, c := range h.ctl.Chunks() {
		if !c.HasHeights() {
			t.Fatalf("chunk %v has no heights", c.ID())
		}
		if err := c.Biomes().CheckWeights(1e-4); err != nil {
			t.Fatalf("chunk %v: %v", c.ID(), err)
		}
	}
}

var errDisk = errors.New("disk unavailable")

// faultyStore fails Put or Get on demand.
type faultyStore struct {
	*storage.Memory
	failPut atomic.Bool
	failGet atomic.Bool
}

func (s *faultyStore) Put(ctx context.Context, key storage.Key, field string, data []byte) error {
	if s.failPut.Load() {
		return errDisk
	}
	return s.Memory.Put(ctx, key, field, data)
}

func (s *faultyStore) Get(ctx context.Context, key storage.Key, field string) ([]byte, error) {
	if s.failGet.Load() {
		return nil, errDisk
	}
	return s.Memory.Get(ctx, key, field)
}

// stallingTerrain blocks generation of chunks near the origin until the
// task is cancelled and generates everything else flat.
type stallingTerrain struct {
	flatTerrain
	started chan struct{}
}

func (s *stallingTerrain) Generate(ctx context.Context, center mgl32.Vec2, heights *grid.HeightGrid, biomes *grid.BiomeGrid) error {
	if center.Len() < 50 {
		select {
		case s.started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		return ctx.Err()
	}
	return s.flatTerrain.Generate(ctx, center, heights, biomes)
}

func TestSaveFailureStillPools(t *testing.T) {
	store := &faultyStore{Memory: storage.NewMemory()}
	store.failPut.Store(true)
	h := newHarness(t, testConfig(t), Options{Terrain: &flatTerrain{}, Store: store})

	var saved atomic.Int64
	h.ctl.Events().ChunkSaved.Subscribe(func(ChunkSaved) { saved.Add(1) })

	h.ctl.Tick()
	h.pump(t, h.settled)
	old := h.ctl.Chunks()

	h.moveTo(200, 0)
	h.pump(t, func() bool { return h.settled() && h.ctl.Size().Available == 9 })
	for _, c := range old {
		if c.State() != StatePooled || c.Releasing() {
			t.Fatalf("chunk %v state %v releasing %v after failed save", c.ID(), c.State(), c.Releasing())
		}
	}
	if saved.Load() != 0 || store.Len() != 0 {
		t.Fatalf("saved %d, stored %d after failing writes", saved.Load(), store.Len())
	}
}

func TestLoadFailureRegenerates(t *testing.T) {
	store := &faultyStore{Memory: storage.NewMemory()}
	terrain := &flatTerrain{}
	h := newHarness(t, testConfig(t), Options{Terrain: terrain, Store: store})

	h.ctl.Tick()
	h.pump(t, h.settled)
	h.moveTo(200, 0)
	h.pump(t, func() bool { return h.settled() && h.ctl.Size().Available == 9 })
	if got := store.Len(); got != 27 {
		t.Fatalf("store holds %d records, want 27", got)
	}

	store.failGet.Store(true)
	h.moveTo(0, 0)
	h.pump(t, func() bool {
		c, ok := h.ctl.Chunk(ChunkCoord{})
		return ok && c.HasHeights() && h.settled()
	})
	if got := terrain.calls.Load(); got != 27 {
		t.Fatalf("generated %d chunks, want 27", got)
	}
	for _, c := range h.ctl.Chunks() {
		if c.FromStore() || !c.HasHeights() || c.Failed() {
			t.Fatalf("chunk %v: from store %v, heights %v, failed %v", c.ID(), c.FromStore(), c.HasHeights(), c.Failed())
		}
	}
}

func TestReleaseWhileLoading(t *testing.T) {
	terrain := &stallingTerrain{started: make(chan struct{}, 1)}
	h := newHarness(t, testConfig(t), Options{Terrain: terrain})

	h.ctl.Tick()
	select {
	case <-terrain.started:
	case <-time.After(5 * time.Second):
		t.Fatal("load never started")
	}
	old := h.ctl.Chunks()
	for _, c := range old {
		if c.State() != StateLoading {
			t.Fatalf("chunk %v state %v, want loading", c.ID(), c.State())
		}
	}

	h.moveTo(200, 0)
	h.pump(t, func() bool { return h.settled() && h.ctl.Size().Available == 9 })
	for _, c := range old {
		if c.State() != StatePooled || c.HasHeights() {
			t.Fatalf("chunk %v state %v heights %v", c.ID(), c.State(), c.HasHeights())
		}
		if got := h.returns[c.ID()]; got != 1 {
			t.Fatalf("chunk %v returned %d times", c.ID(), got)
		}
	}
}

func TestEagerMeshesBuiltWithLoad(t *testing.T) {
	cfg := testConfig(t)
	cfg.Mesh.EagerMeshes = true
	h := newHarness(t, cfg, Options{Terrain: &flatTerrain{}})

	h.ctl.Tick()
	h.pump(t, h.settled)
	for _, c := range h.ctl.Chunks() {
		for lod := range c.meshes {
			if _, ok := c.Mesh(lod); !ok {
				t.Fatalf("chunk %v missing eager mesh %d", c.ID(), lod)
			}
			if runs := c.meshes[lod].future.Runs(); runs != 0 {
				t.Fatalf("chunk %v ran mesh task %d %d times", c.ID(), lod, runs)
			}
		}
		if h.rend.meshes[c.ID()] == nil {
			t.Fatalf("chunk %v mesh not sent to renderer", c.ID())
		}
	}
	if got := h.rend.colliders[ChunkCoord{}]; got != 1 {
		t.Fatalf("collider set %d times, want 1", got)
	}
}

func TestColliderReassignedAfterReuse(t *testing.T) {
	h := newHarness(t, testConfig(t), Options{Terrain: &flatTerrain{}})
	center := ChunkCoord{}

	h.ctl.Tick()
	h.pump(t, func() bool { return h.settled() && h.rend.colliders[center] == 1 })
	first, _ := h.ctl.Chunk(center)

	h.moveTo(200, 0)
	h.pump(t, func() bool { return h.settled() && h.ctl.Size().Available == 9 })
	if first.HasCollider() {
		t.Fatalf("pooled chunk kept its collider")
	}

	h.moveTo(0, 0)
	h.pump(t, func() bool { return h.settled() && h.rend.colliders[center] == 2 })
	if got := h.ctl.Size().Total(); got != 18 {
		t.Fatalf("pool built %d chunks, want 18", got)
	}
	c, _ := h.ctl.Chunk(center)
	if !c.HasCollider() {
		t.Fatalf("reused chunk at %v has no collider", center)
	}
}
