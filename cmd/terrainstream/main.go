// Command terrainstream moves a scripted viewer through streamed terrain
// and reports what a display would have shown.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"terrainstream/internal/config"
	"terrainstream/internal/render"
	"terrainstream/internal/world"

	"github.com/xlab/closer"
)

func main() {
	var (
		configPath = flag.String("config", "", "YAML configuration file, defaults when empty")
		ticks      = flag.Int("ticks", 600, "number of ticks to run")
		tickRate   = flag.Duration("tick", 16*time.Millisecond, "wall time per tick, 0 runs flat out")
		pathName   = flag.String("path", "spiral", "viewer path: line, circle or spiral")
		speed      = flag.Float64("speed", 2, "viewer speed in world units per tick")
		mapOut     = flag.String("map", "", "write a BMP of the visible terrain here on exit")
		logLevel   = flag.String("log-level", "", "override logging.level")
		top        = flag.Int("profile-top", 5, "profiled sections in the exit summary")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "terrainstream:", err)
		os.Exit(2)
	}
	log, err := newLogger(cfg.Logging, *logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "terrainstream:", err)
		os.Exit(2)
	}
	viewer, err := newScriptedViewer(*pathName, float32(*speed))
	if err != nil {
		fmt.Fprintln(os.Stderr, "terrainstream:", err)
		os.Exit(2)
	}

	store, err := openStore(cfg.Persistence, log)
	if err != nil {
		log.Error("open store", "error", err)
		os.Exit(1)
	}

	rend := render.NewHeadless()
	ctl, err := world.NewController(cfg, viewer, world.Options{
		Logger:   log,
		Renderer: rend,
		Store:    store,
	})
	if err != nil {
		log.Error("create controller", "error", err)
		if store != nil {
			store.Close()
		}
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	closer.Bind(func() {
		cancel()
		<-done
		shutdown(log, ctl, store, rend, *mapOut, *top)
	})

	go func() {
		run(ctx, log, ctl, rend, viewer, *ticks, *tickRate)
		close(done)
		closer.Close()
	}()
	closer.Hold()
}
