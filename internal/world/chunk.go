package world

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"terrainstream/internal/config"
	"terrainstream/internal/grid"
	"terrainstream/internal/meshing"
	"terrainstream/internal/storage"
	"terrainstream/internal/task"

	"github.com/go-gl/mathgl/mgl32"
)

var (
	// ErrGeneration wraps failures inside a chunk's generation tasks.
	ErrGeneration = errors.New("world: generation failed")
	// ErrPersistence wraps failures reading or writing chunk records.
	ErrPersistence = errors.New("world: persistence failed")
)

// ChunkState is the lifecycle position of a chunk.
type ChunkState int32

const (
	StatePooled ChunkState = iota
	StateLoading
	StateActive
	StateReleasing
	StateSaving
)

func (s ChunkState) String() string {
	switch s {
	case StatePooled:
		return "pooled"
	case StateLoading:
		return "loading"
	case StateActive:
		return "active"
	case StateReleasing:
		return "releasing"
	case StateSaving:
		return "saving"
	default:
		return fmt.Sprintf("chunkstate(%d)", int32(s))
	}
}

type chunkOwner interface {
	Return(c *Chunk)
}

// chunkEnv is shared by every chunk of one controller.
type chunkEnv struct {
	runner   task.Runner
	exec     *task.Executor
	mesh     meshing.Settings
	derived  config.Derived
	eager    bool
	collider int
	seed     int64
	terrain  TerrainSource
	table    *BiomeTable
	store    storage.Store
	prefix   string
	renderer Renderer
	events   *Events
	log      *slog.Logger
	owner    chunkOwner

	// Written by the controller at the start of each tick.
	viewer mgl32.Vec3
	tick   uint64
	active Range
}

type lodMesh struct {
	future       *task.ReusableFuture[int, *meshing.ChunkMesh]
	mesh         *meshing.ChunkMesh
	hasRequested bool
	hasMesh      bool
}

type loadResult struct {
	id        ChunkCoord
	fromStore bool
	meshes    []*meshing.ChunkMesh
}

// Chunk is one recyclable unit of streamed terrain. Its methods run on the
// controller goroutine; its grids are written only by its own load task.
type Chunk struct {
	env *chunkEnv

	id      ChunkCoord
	state   ChunkState
	heights *grid.HeightGrid
	biomes  *grid.BiomeGrid
	meshes  []*lodMesh
	load    *task.ReusableFuture[ChunkCoord, loadResult]

	hasHeights     bool
	failed         bool
	fromStore      bool
	visible        bool
	lod            int // assigned detail level, -1 when none
	wantLOD        int
	touched        bool
	releasing      bool
	hasSetCollider bool
	wantCollider   bool

	distSq   float32
	distTick uint64
	hasDist  bool

	canceled int
	done     func()
}

func newChunk(env *chunkEnv) *Chunk {
	n := env.derived.VertsPerLine
	c := &Chunk{
		env:     env,
		heights: grid.NewHeightGrid(n),
		biomes:  grid.NewBiomeGrid(n),
		lod:     -1,
		wantLOD: -1,
	}
	c.load = task.NewReusableFuture[ChunkCoord, loadResult](env.runner, env.exec, c.loadWork).
		OnSuccess(c.onLoaded).
		OnError(c.onLoadFailed).
		OnCancel(c.onTaskCanceled)

	c.meshes = make([]*lodMesh, len(env.mesh.Levels))
	for i := range c.meshes {
		lod := i
		c.meshes[i] = &lodMesh{
			future: task.NewReusableFuture[int, *meshing.ChunkMesh](env.runner, env.exec, c.meshWork).
				OnSuccess(func(m *meshing.ChunkMesh) { c.onMesh(lod, m) }).
				OnError(func(err error) { c.onMeshFailed(lod, err) }).
				OnCancel(c.onTaskCanceled),
		}
	}
	return c
}

// ID returns the coordinate of the last Setup.
func (c *Chunk) ID() ChunkCoord { return c.id }

// State returns the lifecycle state.
func (c *Chunk) State() ChunkState { return c.state }

// Visible reports whether the chunk is shown.
func (c *Chunk) Visible() bool { return c.visible }

// LOD returns the assigned detail level, or -1.
func (c *Chunk) LOD() int { return c.lod }

// HasHeights reports whether the load task delivered grids.
func (c *Chunk) HasHeights() bool { return c.hasHeights }

// Failed reports whether the last load ended in an error.
func (c *Chunk) Failed() bool { return c.failed }

// FromStore reports whether the grids were read from persistence.
func (c *Chunk) FromStore() bool { return c.fromStore }

// Releasing reports whether a release is in progress.
func (c *Chunk) Releasing() bool { return c.releasing }

// HasCollider reports whether the collider mesh was assigned.
func (c *Chunk) HasCollider() bool { return c.hasSetCollider }

// Heights returns the height grid. Read it only once HasHeights is true.
func (c *Chunk) Heights() *grid.HeightGrid { return c.heights }

// Biomes returns the biome grid. Read it only once HasHeights is true.
func (c *Chunk) Biomes() *grid.BiomeGrid { return c.biomes }

// Mesh returns the built mesh of detail level lod.
func (c *Chunk) Mesh(lod int) (*meshing.ChunkMesh, bool) {
	if lod < 0 || lod >= len(c.meshes) || !c.meshes[lod].hasMesh {
		return nil, false
	}
	return c.meshes[lod].mesh, true
}

func (c *Chunk) center() mgl32.Vec2 { return c.id.Center(c.env.derived.MeshWorldSize) }

func (c *Chunk) key(id ChunkCoord) storage.Key {
	return storage.Key{Prefix: c.env.prefix, X: id.X, Z: id.Z}
}

// DistanceSq returns the squared horizontal distance from the viewer to the
// chunk's square. The value is cached for the current tick.
func (c *Chunk) DistanceSq() float32 {
	if c.hasDist && c.distTick == c.env.tick {
		return c.distSq
	}
	c.distSq = boundsDistanceSq(c.env.viewer, c.center(), c.env.derived.MeshWorldSize/2)
	c.distTick, c.hasDist = c.env.tick, true
	return c.distSq
}

// Setup starts loading the chunk for id.
func (c *Chunk) Setup(id ChunkCoord) {
	c.id = id
	c.state = StateLoading
	c.releasing = false
	c.touched = false
	c.failed = false
	c.hasDist = false
	c.env.log.Debug("chunk setup", "chunk", id)
	c.load.Process(id)
}

func (c *Chunk) loadWork(ctx context.Context, id ChunkCoord) (loadResult, error) {
	res := loadResult{id: id}
	if c.env.store != nil {
		ok, err := c.loadStored(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			c.env.log.Warn("chunk load failed, regenerating", "chunk", id, "error", err)
		}
		res.fromStore = ok
	}

	if !res.fromStore {
		c.heights.Reset()
		c.biomes.Reset()
		if err := c.env.terrain.Generate(ctx, id.Center(c.env.derived.MeshWorldSize), c.heights, c.biomes); err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			return res, fmt.Errorf("%w: chunk %v: %w", ErrGeneration, id, err)
		}
	}

	if c.env.eager {
		res.meshes = make([]*meshing.ChunkMesh, len(c.meshes))
		for i := range res.meshes {
			m, err := meshing.Generate(ctx, c.heights, c.env.mesh, i)
			if err != nil {
				if ctx.Err() != nil {
					return res, ctx.Err()
				}
				return res, fmt.Errorf("%w: chunk %v mesh %d: %w", ErrGeneration, id, i, err)
			}
			res.meshes[i] = m
		}
	}
	return res, nil
}

// loadStored reads the chunk's records. It reports false without an error
// when nothing usable is stored.
func (c *Chunk) loadStored(ctx context.Context, id ChunkCoord) (bool, error) {
	store, key := c.env.store, c.key(id)

	meta, err := storage.Load[storage.MetaRecord](ctx, store, key, storage.FieldMeta)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	if meta.Version != storage.MetaVersion || meta.Seed != c.env.seed {
		c.env.log.Debug("stored chunk is stale", "chunk", id, "version", meta.Version, "seed", meta.Seed)
		return false, nil
	}

	hr, err := storage.Load[storage.HeightRecord](ctx, store, key, storage.FieldHeights)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	br, err := storage.Load[storage.BiomeRecord](ctx, store, key, storage.FieldBiomes)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	if hr.Size != c.heights.Size() || br.Size != c.biomes.Size() {
		return false, fmt.Errorf("%w: chunk %v stored with size %d, want %d", ErrPersistence, id, hr.Size, c.heights.Size())
	}
	if err := hr.Apply(c.heights); err != nil {
		return false, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	if err := br.Apply(c.biomes); err != nil {
		return false, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	c.biomes.MarkClean()
	return true, nil
}

func (c *Chunk) onLoaded(res loadResult) {
	if c.state != StateLoading || res.id != c.id {
		return
	}
	c.state = StateActive
	c.hasHeights = true
	c.fromStore = res.fromStore
	for i, m := range res.meshes {
		c.meshes[i].mesh = m
		c.meshes[i].hasMesh = true
		c.meshes[i].hasRequested = true
	}

	if c.env.table != nil {
		pixels, width, err := Paint(c.heights, c.biomes, c.env.table, 1)
		if err != nil {
			c.env.log.Error("chunk paint failed", "chunk", c.id, "error", err)
		} else {
			c.env.renderer.Paint(c.id, pixels, width)
		}
	}

	c.env.log.Debug("chunk loaded", "chunk", c.id, "from_store", res.fromStore)
	c.env.events.ChunkLoaded.emit(ChunkLoaded{ID: c.id, FromStore: res.fromStore})
	c.refresh()
	c.UpdateCollider()
}

func (c *Chunk) onLoadFailed(err error) {
	if c.state != StateLoading {
		return
	}
	c.failed = true
	c.env.log.Error("chunk generation failed", "chunk", c.id, "error", err)
}

// BeginCycle clears the touched mark ahead of a full range update.
func (c *Chunk) BeginCycle() { c.touched = false }

// Touched reports whether the current cycle updated the chunk.
func (c *Chunk) Touched() bool { return c.touched }

// UpdateChunk evaluates visibility and detail for the current viewer. A
// chunk outside r is forced invisible and left untouched.
func (c *Chunk) UpdateChunk(r Range) {
	if c.releasing || c.state == StatePooled {
		return
	}
	if !r.Contains(c.id) {
		c.setVisible(false)
		return
	}
	c.touched = true
	c.evaluate()
}

// refresh re-evaluates the chunk outside a full update.
func (c *Chunk) refresh() {
	if !c.env.active.Contains(c.id) {
		c.setVisible(false)
		return
	}
	c.evaluate()
}

func (c *Chunk) evaluate() {
	if !c.hasHeights || c.releasing {
		return
	}
	d := c.DistanceSq()
	visible := d <= c.env.derived.MaxViewDistanceSq
	if visible {
		lod, _ := c.env.mesh.SelectLOD(d)
		c.requestLOD(lod)
	}
	c.setVisible(visible)
}

func (c *Chunk) requestLOD(lod int) {
	c.wantLOD = lod
	m := c.meshes[lod]
	if m.hasMesh {
		c.assignLOD(lod)
		return
	}
	if !m.hasRequested {
		m.hasRequested = true
		m.future.Process(lod)
	}
}

func (c *Chunk) assignLOD(lod int) {
	if lod == c.lod {
		return
	}
	old := c.lod
	c.lod = lod
	c.env.renderer.SetMesh(c.id, c.meshes[lod].mesh)
	c.env.events.LODChanged.emit(LODChanged{ID: c.id, Old: old, New: lod})
}

func (c *Chunk) setVisible(v bool) {
	if v == c.visible {
		return
	}
	c.visible = v
	c.env.renderer.SetActive(c.id, v)
	c.env.events.VisibilityChanged.emit(VisibilityChanged{ID: c.id, Visible: v})
}

func (c *Chunk) meshWork(ctx context.Context, lod int) (*meshing.ChunkMesh, error) {
	m, err := meshing.Generate(ctx, c.heights, c.env.mesh, lod)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: chunk %v mesh %d: %w", ErrGeneration, c.id, lod, err)
	}
	return m, nil
}

func (c *Chunk) onMesh(lod int, mesh *meshing.ChunkMesh) {
	if c.releasing || !c.hasHeights {
		return
	}
	m := c.meshes[lod]
	m.mesh, m.hasMesh = mesh, true
	if c.visible && c.wantLOD == lod {
		c.assignLOD(lod)
	}
	if c.wantCollider && lod == c.env.collider {
		c.assignCollider()
	}
}

func (c *Chunk) onMeshFailed(lod int, err error) {
	c.env.log.Error("chunk mesh failed", "chunk", c.id, "lod", lod, "error", err)
}

// UpdateCollider requests the collider mesh once the viewer is within the
// collider distance and assigns it once per active period.
func (c *Chunk) UpdateCollider() {
	if !c.hasHeights || c.releasing || c.hasSetCollider {
		return
	}
	if c.DistanceSq() > c.env.derived.ColliderDistSq {
		return
	}
	c.wantCollider = true
	m := c.meshes[c.env.collider]
	if m.hasMesh {
		c.assignCollider()
		return
	}
	if !m.hasRequested {
		m.hasRequested = true
		m.future.Process(c.env.collider)
	}
}

func (c *Chunk) assignCollider() {
	c.hasSetCollider = true
	c.wantCollider = false
	c.env.renderer.SetCollider(c.id, c.meshes[c.env.collider].mesh)
	c.env.log.Debug("chunk collider set", "chunk", c.id)
}

// ValidateNonUpdated releases the chunk when this cycle did not touch it
// and it lies beyond the unload distance. It reports whether a release
// started.
func (c *Chunk) ValidateNonUpdated() bool {
	if c.touched || c.releasing || c.state == StatePooled {
		return false
	}
	if c.DistanceSq() <= c.env.derived.UnloadDistanceSq {
		return false
	}
	c.ReleaseToPool()
	return true
}

// ReleaseToPool hands the chunk back to its pool. Calls while a release is
// in progress do nothing.
func (c *Chunk) ReleaseToPool() {
	if c.releasing || c.state == StatePooled {
		return
	}
	c.releasing = true
	c.env.log.Debug("chunk release", "chunk", c.id, "state", c.state)
	c.env.owner.Return(c)
}

// Teardown cancels the load task and every mesh task. done runs once all
// of them have reported cancellation and any pending save has finished.
func (c *Chunk) Teardown(done func()) {
	c.releasing = true
	c.state = StateReleasing
	c.done = done
	c.canceled = 0
	c.wantCollider = false
	c.setVisible(false)

	c.load.Cancel()
	for _, m := range c.meshes {
		m.future.Cancel()
	}
}

func (c *Chunk) onTaskCanceled() {
	if c.state != StateReleasing {
		return
	}
	c.canceled++
	if c.canceled < 1+len(c.meshes) {
		return
	}

	if c.env.store != nil && c.hasHeights && (c.heights.Dirty() || c.biomes.Dirty()) {
		c.save()
		return
	}
	c.finishRelease()
}

func (c *Chunk) save() {
	c.state = StateSaving
	id, key := c.id, c.key(c.id)
	center := c.center()
	half := c.env.derived.MeshWorldSize / 2
	lo, hi := c.heights.Range()
	heights := storage.NewHeightRecord(c.heights)
	biomes := storage.NewBiomeRecord(c.biomes)
	meta := storage.MetaRecord{
		Version: storage.MetaVersion,
		Seed:    c.env.seed,
		Center:  center,
		Bounds: storage.Bounds{
			Min: mgl32.Vec3{center[0] - half, lo, center[1] - half},
			Max: mgl32.Vec3{center[0] + half, hi, center[1] + half},
		},
	}

	f := task.NewFuture[struct{}](c.env.runner, c.env.exec).
		OnSuccess(func(struct{}) {
			c.heights.MarkClean()
			c.biomes.MarkClean()
			c.env.log.Debug("chunk saved", "chunk", id)
			c.env.events.ChunkSaved.emit(ChunkSaved{ID: id})
			c.finishRelease()
		}).
		OnError(func(err error) {
			c.env.log.Warn("chunk save failed", "chunk", id, "error", err)
			c.finishRelease()
		}).
		OnCancel(c.finishRelease)

	err := f.Process(func(ctx context.Context) (struct{}, error) {
		store := c.env.store
		if err := storage.Save(ctx, store, key, storage.FieldHeights, heights); err != nil {
			return struct{}{}, fmt.Errorf("%w: %w", ErrPersistence, err)
		}
		if err := storage.Save(ctx, store, key, storage.FieldBiomes, biomes); err != nil {
			return struct{}{}, fmt.Errorf("%w: %w", ErrPersistence, err)
		}
		// meta goes last so a partial write is never mistaken for a chunk.
		if err := storage.Save(ctx, store, key, storage.FieldMeta, meta); err != nil {
			return struct{}{}, fmt.Errorf("%w: %w", ErrPersistence, err)
		}
		return struct{}{}, nil
	})
	if err != nil {
		c.env.log.Error("chunk save not started", "chunk", id, "error", err)
		c.finishRelease()
	}
}

func (c *Chunk) finishRelease() {
	for _, m := range c.meshes {
		m.mesh = nil
		m.hasMesh = false
		m.hasRequested = false
	}
	c.heights.Reset()
	c.biomes.Reset()
	c.hasHeights = false
	c.failed = false
	c.fromStore = false
	c.visible = false
	c.touched = false
	c.hasSetCollider = false
	c.wantCollider = false
	c.lod, c.wantLOD = -1, -1
	c.hasDist = false
	c.state = StatePooled
	c.releasing = false

	done := c.done
	c.done = nil
	c.env.log.Debug("chunk pooled", "chunk", c.id)
	if done != nil {
		done()
	}
}
