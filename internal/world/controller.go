package world

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"terrainstream/internal/blend"
	"terrainstream/internal/config"
	"terrainstream/internal/noise"
	"terrainstream/internal/pool"
	"terrainstream/internal/profiling"
	"terrainstream/internal/storage"
	"terrainstream/internal/task"

	"github.com/go-gl/mathgl/mgl32"
)

// Viewer reports the position chunks are streamed around.
type Viewer interface {
	Position() mgl32.Vec3
}

// ViewerFunc adapts a function to Viewer.
type ViewerFunc func() mgl32.Vec3

func (f ViewerFunc) Position() mgl32.Vec3 { return f() }

// ChunkPool recycles chunks keyed by coordinate.
type ChunkPool interface {
	CheckOut(id ChunkCoord) (*Chunk, bool)
	Get(id ChunkCoord) (*Chunk, bool)
	Return(c *Chunk)
	Active() []*Chunk
	Size() pool.Size
	Prewarm(n int)
}

// Options supplies the collaborators of a Controller. Zero fields get
// defaults: slog.Default, a NopRenderer, no persistence, the configured
// terrain generator and a worker pool sized from the configuration.
type Options struct {
	Logger   *slog.Logger
	Renderer Renderer
	Store    storage.Store
	Terrain  TerrainSource
	Runner   task.Runner
	Profiler *profiling.Profiler
}

// Controller streams chunks around a viewer. Tick must be called from a
// single goroutine, which is also where every chunk callback runs.
type Controller struct {
	cfg     *config.Config
	derived config.Derived
	log     *slog.Logger
	exec    *task.Executor
	workers *task.WorkerPool // nil when Options.Runner was supplied
	pool    ChunkPool
	env     *chunkEnv
	events  *Events
	viewer  Viewer
	prof    *profiling.Profiler

	hasUpdate  bool
	lastUpdate mgl32.Vec3
	hasChunk   bool
	lastChunk  ChunkCoord
	hasRaw     bool
	lastRaw    mgl32.Vec3

	cycles int
	closed bool
}

// NewController wires a controller for cfg. cfg is validated if it has not
// been yet.
func NewController(cfg *config.Config, viewer Viewer, opts Options) (*Controller, error) {
	if cfg.Derived().VertsPerLine == 0 {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	d := cfg.Derived()

	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "world")
	renderer := opts.Renderer
	if renderer == nil {
		renderer = NopRenderer{}
	}
	prof := opts.Profiler
	if prof == nil {
		prof = profiling.Default()
	}

	kernel, err := noise.New(cfg.Noise.Kernel)
	if err != nil {
		return nil, err
	}
	table, err := NewBiomeTable(cfg.Biomes, kernel, cfg.Noise.ClimateFrequency)
	if err != nil {
		return nil, err
	}
	terrain := opts.Terrain
	if terrain == nil {
		spacing := float64(cfg.Mesh.Scale)
		blender := blend.New(cfg.Blend.Frequency, cfg.Blend.Padding, spacing)
		terrain = NewGenerator(cfg.Seed, spacing, table, blender)
	}

	c := &Controller{
		cfg:     cfg,
		derived: d,
		log:     log,
		exec:    task.NewExecutor(),
		events:  &Events{},
		viewer:  viewer,
		prof:    prof,
	}

	runner := opts.Runner
	if runner == nil {
		c.workers = task.NewWorkerPool(cfg.Streaming.Workers, cfg.Streaming.QueueSize)
		runner = c.workers
	}

	var prefix string
	if opts.Store != nil {
		prefix = cfg.Persistence.Prefix
	}
	c.env = &chunkEnv{
		runner:   runner,
		exec:     c.exec,
		mesh:     d.Mesh,
		derived:  d,
		eager:    cfg.Mesh.EagerMeshes,
		collider: cfg.Mesh.ColliderLOD,
		seed:     cfg.Seed,
		terrain:  terrain,
		table:    table,
		store:    opts.Store,
		prefix:   prefix,
		renderer: renderer,
		events:   c.events,
		log:      log,
	}

	p := pool.New[ChunkCoord](func() *Chunk { return newChunk(c.env) })
	c.env.owner = p
	c.pool = p
	p.Prewarm(cfg.Streaming.Prewarm)

	log.Info("controller ready",
		"chunk_radius", d.ChunkRadius,
		"mesh_world_size", d.MeshWorldSize,
		"view_distance", d.MaxViewDistance,
		"lods", len(d.Mesh.Levels),
		"prewarm", cfg.Streaming.Prewarm,
		"persistence", opts.Store != nil)
	return c, nil
}

// Events returns the controller's notification lists.
func (c *Controller) Events() *Events { return c.events }

// Size returns the pool counts.
func (c *Controller) Size() pool.Size { return c.pool.Size() }

// Chunk returns the checked-out chunk for id.
func (c *Controller) Chunk(id ChunkCoord) (*Chunk, bool) { return c.pool.Get(id) }

// Chunks returns every checked-out chunk not being released.
func (c *Controller) Chunks() []*Chunk { return c.pool.Active() }

// Cycles returns the number of full updates run.
func (c *Controller) Cycles() int { return c.cycles }

// Pending returns the number of callbacks waiting for the next tick.
func (c *Controller) Pending() int { return c.exec.Pending() }

// Queued returns the number of jobs waiting for a worker. It is zero when
// Options.Runner was supplied.
func (c *Controller) Queued() int {
	if c.workers == nil {
		return 0
	}
	return c.workers.QueueLength()
}

// Tick runs delivered callbacks, then updates the streamed range when the
// viewer has moved past the update threshold and colliders whenever it
// moved at all.
func (c *Controller) Tick() {
	c.prof.ResetCycle()
	c.exec.Drain()
	if c.closed {
		return
	}

	pos := c.viewer.Position()
	c.env.tick++
	c.env.viewer = pos

	cur := CoordAt(pos, c.derived.MeshWorldSize)
	if !c.hasChunk {
		c.lastChunk, c.hasChunk = cur, true
	} else if cur != c.lastChunk {
		old := c.lastChunk
		c.lastChunk = cur
		c.events.ViewerChangedChunk.emit(ViewerChangedChunk{Old: old, New: cur})
	}

	moved := pos.Sub(c.lastUpdate)
	if !c.hasUpdate || moved.Dot(moved) > c.derived.UpdateThresholdSq {
		c.lastUpdate, c.hasUpdate = pos, true
		c.fullUpdate(cur)
	}

	if !c.hasRaw || pos != c.lastRaw {
		c.lastRaw, c.hasRaw = pos, true
		c.updateColliders()
	}
}

func (c *Controller) fullUpdate(center ChunkCoord) {
	defer c.prof.Track("world.FullUpdate")()
	start := time.Now()

	r := Range{Center: center, Radius: c.derived.ChunkRadius}
	c.env.active = r

	created := 0
	r.EachRing(func(id ChunkCoord) {
		if _, fresh := c.pool.CheckOut(id); fresh {
			created++
		}
	})

	chunks := c.pool.Active()
	for _, ch := range chunks {
		ch.BeginCycle()
	}
	for _, ch := range chunks {
		ch.UpdateChunk(r)
	}
	released := 0
	for _, ch := range chunks {
		if ch.ValidateNonUpdated() {
			released++
		}
	}

	c.cycles++
	size := c.pool.Size()
	elapsed := time.Since(start)
	c.log.Info("streaming cycle",
		"center", center,
		"checked_out", size.CheckedOut,
		"available", size.Available,
		"created", created,
		"released", released,
		"elapsed", elapsed)
	c.events.CycleCompleted.emit(CycleCompleted{Size: size, Elapsed: elapsed})
}

func (c *Controller) updateColliders() {
	defer c.prof.Track("world.UpdateColliders")()
	for _, ch := range c.pool.Active() {
		ch.UpdateCollider()
	}
}

// Close releases every chunk, waits for their teardown and pending saves,
// and stops the worker pool it created. The store is left open.
func (c *Controller) Close(ctx context.Context) error {
	if c.closed {
		return nil
	}
	c.closed = true
	for _, ch := range c.pool.Active() {
		ch.ReleaseToPool()
	}

	var err error
	for c.pool.Size().CheckedOut > 0 {
		if err = ctx.Err(); err != nil {
			break
		}
		if c.exec.Drain() == 0 {
			time.Sleep(time.Millisecond)
		}
	}
	c.exec.Drain()
	if c.workers != nil {
		c.workers.Shutdown()
	}
	if err != nil {
		return fmt.Errorf("world: close with %d chunks outstanding: %w", c.pool.Size().CheckedOut, err)
	}
	c.log.Info("controller closed", "cycles", c.cycles, "pooled", c.pool.Size().Available)
	return nil
}
