package main

import (
	"context"
	"log/slog"
	"time"

	"terrainstream/internal/profiling"
	"terrainstream/internal/render"
	"terrainstream/internal/world"
)

const statsEvery = 60

func run(ctx context.Context, log *slog.Logger, ctl *world.Controller, rend *render.Headless, viewer *scriptedViewer, ticks int, rate time.Duration) {
	var tick <-chan time.Time
	if rate > 0 {
		t := time.NewTicker(rate)
		defer t.Stop()
		tick = t.C
	}

	start := time.Now()
	for i := 0; i < ticks; i++ {
		if ctx.Err() != nil {
			log.Info("interrupted", "tick", i)
			return
		}
		func() { defer profiling.Track("loop.Tick")(); ctl.Tick() }()

		if i%statsEvery == 0 {
			s := rend.Stats()
			size := ctl.Size()
			log.Info("stats",
				"tick", i,
				"viewer", viewer.Position(),
				"visible", s.Visible,
				"vertices", s.Vertices,
				"triangles", s.Triangles,
				"colliders", s.Colliders,
				"checked_out", size.CheckedOut,
				"available", size.Available,
				"pending", ctl.Pending(),
				"queued", ctl.Queued())
		}
		viewer.Advance()

		if tick != nil {
			select {
			case <-ctx.Done():
				log.Info("interrupted", "tick", i)
				return
			case <-tick:
			}
		}
	}
	log.Info("run finished", "ticks", ticks, "cycles", ctl.Cycles(), "elapsed", time.Since(start))
}
