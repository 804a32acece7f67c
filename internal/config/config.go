// Package config loads the immutable terrain streaming configuration.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"slices"

	"terrainstream/internal/meshing"

	"golang.org/x/image/colornames"
	"gopkg.in/yaml.v3"
)

// ErrInvalid reports a configuration that fails validation.
var ErrInvalid = errors.New("config: invalid")

// Config is the full configuration tree. Treat it as read-only after Load.
type Config struct {
	Seed        int64             `yaml:"seed" json:"seed"`
	Noise       NoiseConfig       `yaml:"noise" json:"noise"`
	Mesh        MeshConfig        `yaml:"mesh" json:"mesh"`
	Blend       BlendConfig       `yaml:"blend" json:"blend"`
	Streaming   StreamingConfig   `yaml:"streaming" json:"streaming"`
	Persistence PersistenceConfig `yaml:"persistence" json:"persistence"`
	Biomes      []BiomeConfig     `yaml:"biomes" json:"biomes"`
	Logging     LoggingConfig     `yaml:"logging" json:"logging"`

	derived Derived
}

type NoiseConfig struct {
	// Kernel is one of value, simplex or perlin.
	Kernel           string  `yaml:"kernel" json:"kernel"`
	ClimateFrequency float64 `yaml:"climate_frequency" json:"climate_frequency"`
}

type LODConfig struct {
	SkipStep    int     `yaml:"skip_step" json:"skip_step"`
	MaxDistance float32 `yaml:"max_distance" json:"max_distance"`
}

type MeshConfig struct {
	BaseSize         int         `yaml:"base_size" json:"base_size"`
	Scale            float32     `yaml:"scale" json:"scale"`
	FlatShading      bool        `yaml:"flat_shading" json:"flat_shading"`
	LODs             []LODConfig `yaml:"lods" json:"lods"`
	ColliderLOD      int         `yaml:"collider_lod" json:"collider_lod"`
	ColliderDistance float32     `yaml:"collider_distance" json:"collider_distance"`
	// EagerMeshes builds every detail level inside the load task.
	EagerMeshes bool `yaml:"eager_meshes" json:"eager_meshes"`
}

type BlendConfig struct {
	Frequency float64 `yaml:"frequency" json:"frequency"`
	Padding   float64 `yaml:"padding" json:"padding"`
}

type StreamingConfig struct {
	// ChunkRadius of 0 derives the radius from the coarsest view distance.
	ChunkRadius     int     `yaml:"chunk_radius" json:"chunk_radius"`
	UpdateThreshold float32 `yaml:"update_threshold" json:"update_threshold"`
	UnloadDistance  float32 `yaml:"unload_distance" json:"unload_distance"`
	Prewarm         int     `yaml:"prewarm" json:"prewarm"`
	Workers         int     `yaml:"workers" json:"workers"`
	QueueSize       int     `yaml:"queue_size" json:"queue_size"`
}

type PersistenceConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// Backend is sqlite or memory.
	Backend string `yaml:"backend" json:"backend"`
	Path    string `yaml:"path" json:"path"`
	Prefix  string `yaml:"prefix" json:"prefix"`
}

type BiomeConfig struct {
	ID        int32   `yaml:"id" json:"id"`
	Name      string  `yaml:"name" json:"name"`
	Base      float32 `yaml:"base" json:"base"`
	Amplitude float32 `yaml:"amplitude" json:"amplitude"`
	Frequency float64 `yaml:"frequency" json:"frequency"`
	Octaves   int     `yaml:"octaves" json:"octaves"`
	// Color is an SVG color name.
	Color string `yaml:"color" json:"color"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// Derived holds values computed once from the configuration.
type Derived struct {
	Mesh              meshing.Settings
	VertsPerLine      int
	MeshWorldSize     float32
	ChunkRadius       int
	MaxViewDistance   float32
	MaxViewDistanceSq float32
	UnloadDistanceSq  float32
	UpdateThresholdSq float32
	ColliderDistSq    float32
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Seed: 1337,
		Noise: NoiseConfig{
			Kernel:           "simplex",
			ClimateFrequency: 0.0015,
		},
		Mesh: MeshConfig{
			BaseSize: 64,
			Scale:    1,
			LODs: []LODConfig{
				{SkipStep: 1, MaxDistance: 120},
				{SkipStep: 2, MaxDistance: 240},
				{SkipStep: 4, MaxDistance: 400},
			},
			ColliderLOD:      0,
			ColliderDistance: 60,
		},
		Blend: BlendConfig{
			Frequency: 0.01,
			Padding:   0.5,
		},
		Streaming: StreamingConfig{
			UpdateThreshold: 16,
			UnloadDistance:  480,
			Prewarm:         32,
			QueueSize:       256,
		},
		Persistence: PersistenceConfig{
			Backend: "memory",
			Path:    "data/chunks.db",
			Prefix:  "default",
		},
		Biomes: []BiomeConfig{
			{ID: 0, Name: "ocean", Base: -12, Amplitude: 4, Frequency: 0.01, Octaves: 2, Color: "steelblue"},
			{ID: 1, Name: "plains", Base: 2, Amplitude: 3, Frequency: 0.008, Octaves: 3, Color: "yellowgreen"},
			{ID: 2, Name: "forest", Base: 6, Amplitude: 8, Frequency: 0.012, Octaves: 4, Color: "forestgreen"},
			{ID: 3, Name: "mountains", Base: 24, Amplitude: 40, Frequency: 0.006, Octaves: 5, Color: "slategray"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the YAML file at path over the defaults and validates the
// result. An empty path returns the validated defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse is Load for an in-memory document.
func Parse(raw []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration against its schema and the semantic
// rules, then computes the derived values.
func (c *Config) Validate() error {
	if err := validateSchema(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	levels := make([]meshing.LODLevel, len(c.Mesh.LODs))
	for i, l := range c.Mesh.LODs {
		levels[i] = meshing.LODLevel{SkipStep: l.SkipStep, MaxDistance: l.MaxDistance}
	}
	ms, err := meshing.NewSettings(c.Mesh.BaseSize, c.Mesh.Scale, c.Mesh.FlatShading, levels)
	if err != nil {
		return fmt.Errorf("%w: mesh: %v", ErrInvalid, err)
	}
	if c.Mesh.ColliderLOD < 0 || c.Mesh.ColliderLOD >= len(ms.Levels) {
		return fmt.Errorf("%w: mesh.collider_lod %d not in %d levels", ErrInvalid, c.Mesh.ColliderLOD, len(ms.Levels))
	}

	maxView := ms.MaxViewDistance()
	if c.Streaming.UnloadDistance < maxView {
		return fmt.Errorf("%w: streaming.unload_distance %v below view distance %v", ErrInvalid, c.Streaming.UnloadDistance, maxView)
	}
	if c.Blend.Padding <= 0 {
		return fmt.Errorf("%w: blend.padding must be positive", ErrInvalid)
	}

	seen := make([]int32, 0, len(c.Biomes))
	for i, b := range c.Biomes {
		if slices.Contains(seen, b.ID) {
			return fmt.Errorf("%w: biomes[%d] duplicate id %d", ErrInvalid, i, b.ID)
		}
		seen = append(seen, b.ID)
		if _, ok := colornames.Map[b.Color]; !ok {
			return fmt.Errorf("%w: biomes[%d] unknown color %q", ErrInvalid, i, b.Color)
		}
	}

	worldSize := ms.WorldSize()
	radius := c.Streaming.ChunkRadius
	if radius == 0 {
		radius = int(math.Ceil(float64(maxView / worldSize)))
	}
	c.derived = Derived{
		Mesh:              ms,
		VertsPerLine:      ms.VertsPerLine(),
		MeshWorldSize:     worldSize,
		ChunkRadius:       radius,
		MaxViewDistance:   maxView,
		MaxViewDistanceSq: maxView * maxView,
		UnloadDistanceSq:  c.Streaming.UnloadDistance * c.Streaming.UnloadDistance,
		UpdateThresholdSq: c.Streaming.UpdateThreshold * c.Streaming.UpdateThreshold,
		ColliderDistSq:    c.Mesh.ColliderDistance * c.Mesh.ColliderDistance,
	}
	return nil
}

// Derived returns the values computed by the last successful Validate.
func (c *Config) Derived() Derived { return c.derived }
