package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"terrainstream/internal/config"
	"terrainstream/internal/profiling"
	"terrainstream/internal/render"
	"terrainstream/internal/storage"
	"terrainstream/internal/world"
)

func newLogger(cfg config.LoggingConfig, override string) (*slog.Logger, error) {
	name := cfg.Level
	if override != "" {
		name = override
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return nil, fmt.Errorf("log level %q: %w", name, err)
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	switch cfg.Format {
	case "json":
		h = slog.NewJSONHandler(os.Stdout, opts)
	default:
		h = slog.NewTextHandler(os.Stdout, opts)
	}
	log := slog.New(h)
	slog.SetDefault(log)
	return log, nil
}

// openStore returns nil when persistence is disabled.
func openStore(cfg config.PersistenceConfig, log *slog.Logger) (storage.Store, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	switch cfg.Backend {
	case "sqlite":
		s, err := storage.OpenSQLite(cfg.Path)
		if err != nil {
			return nil, err
		}
		n, err := s.Count(context.Background(), cfg.Prefix)
		if err != nil {
			s.Close()
			return nil, err
		}
		log.Info("store opened", "backend", cfg.Backend, "path", cfg.Path, "prefix", cfg.Prefix, "records", n)
		return s, nil
	default:
		log.Info("store opened", "backend", "memory", "prefix", cfg.Prefix)
		return storage.NewMemory(), nil
	}
}

func shutdown(log *slog.Logger, ctl *world.Controller, store storage.Store, rend *render.Headless, mapOut string, top int) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := ctl.Close(ctx); err != nil {
		log.Error("close controller", "error", err)
	}

	if mapOut != "" {
		if err := rend.SaveBMP(mapOut); err != nil {
			log.Error("write map", "error", err)
		} else {
			log.Info("map written", "path", mapOut)
		}
	}
	if store != nil {
		if err := store.Close(); err != nil {
			log.Error("close store", "error", err)
		}
	}
	log.Info("profile", "top", profiling.TopN(top))
}
