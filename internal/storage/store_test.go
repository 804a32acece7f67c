package storage

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"testing"

	"terrainstream/internal/grid"

	"github.com/go-gl/mathgl/mgl32"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "chunks.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	mem, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open sqlite memory: %v", err)
	}
	stores := map[string]Store{
		"sqlite":        db,
		"sqlite-memory": mem,
		"memory":        NewMemory(),
	}
	t.Cleanup(func() {
		for _, s := range stores {
			_ = s.Close()
		}
	})
	return stores
}

func TestRoundTripRecords(t *testing.T) {
	ctx := context.Background()
	heights := grid.NewHeightGrid(5)
	for i := 0; i < heights.Len(); i++ {
		x, z := i%5, i/5
		_ = heights.Set(x, z, float32(i)*0.1+1e-7)
	}
	heights.UpdateRange()

	biomes := grid.NewBiomeGrid(5)
	a := make([]float32, 25)
	b := make([]float32, 25)
	for i := range a {
		a[i] = float32(i) / 25
		b[i] = 1 - a[i]
	}
	if err := biomes.SetWeights(map[grid.BiomeID][]float32{2: a, 9: b}); err != nil {
		t.Fatal(err)
	}

	meta := MetaRecord{
		Version: MetaVersion,
		Seed:    -42,
		Center:  mgl32.Vec2{130.5, -66.25},
		Bounds:  Bounds{Min: mgl32.Vec3{-33, -4.5, -33}, Max: mgl32.Vec3{33, 17.125, 33}},
	}

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			key := Key{Prefix: "w1", X: 3, Z: -7}
			if err := Save(ctx, s, key, FieldHeights, NewHeightRecord(heights)); err != nil {
				t.Fatal(err)
			}
			if err := Save(ctx, s, key, FieldBiomes, NewBiomeRecord(biomes)); err != nil {
				t.Fatal(err)
			}
			if err := Save(ctx, s, key, FieldMeta, meta); err != nil {
				t.Fatal(err)
			}

			hr, err := Load[HeightRecord](ctx, s, key, FieldHeights)
			if err != nil {
				t.Fatal(err)
			}
			got := grid.NewHeightGrid(5)
			if err := hr.Apply(got); err != nil {
				t.Fatal(err)
			}
			if !slices.Equal(got.Values(), heights.Values()) {
				t.Fatalf("heights changed in round trip")
			}
			if lo, hi := got.Range(); lo != 1e-7 || hi != heights.Values()[24] {
				t.Fatalf("range %v..%v", lo, hi)
			}

			br, err := Load[BiomeRecord](ctx, s, key, FieldBiomes)
			if err != nil {
				t.Fatal(err)
			}
			gb := grid.NewBiomeGrid(5)
			if err := br.Apply(gb); err != nil {
				t.Fatal(err)
			}
			if w, _ := gb.Weights(9); !slices.Equal(w, b) {
				t.Fatalf("biome weights changed in round trip")
			}

			mr, err := Load[MetaRecord](ctx, s, key, FieldMeta)
			if err != nil {
				t.Fatal(err)
			}
			if mr != meta {
				t.Fatalf("meta %+v, want %+v", mr, meta)
			}

			fields, err := s.Fields(ctx, key)
			if err != nil {
				t.Fatal(err)
			}
			if !slices.Equal(fields, []string{FieldBiomes, FieldHeights, FieldMeta}) {
				t.Fatalf("fields %v", fields)
			}
		})
	}
}

func TestNotFoundAndPrefixScoping(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.Get(ctx, Key{X: 1}, FieldMeta); !errors.Is(err, ErrNotFound) {
				t.Fatalf("missing key: %v", err)
			}
			if err := s.Put(ctx, Key{Prefix: "a", X: 1}, FieldMeta, []byte("one")); err != nil {
				t.Fatal(err)
			}
			if _, err := s.Get(ctx, Key{Prefix: "b", X: 1}, FieldMeta); !errors.Is(err, ErrNotFound) {
				t.Fatalf("other prefix visible: %v", err)
			}
			if err := s.Put(ctx, Key{Prefix: "a", X: 1}, FieldMeta, []byte("two")); err != nil {
				t.Fatal(err)
			}
			data, err := s.Get(ctx, Key{Prefix: "a", X: 1}, FieldMeta)
			if err != nil || string(data) != "two" {
				t.Fatalf("overwrite: %q %v", data, err)
			}
			if err := s.Delete(ctx, Key{Prefix: "a", X: 1}); err != nil {
				t.Fatal(err)
			}
			if _, err := Load[MetaRecord](ctx, s, Key{Prefix: "a", X: 1}, FieldMeta); !errors.Is(err, ErrNotFound) {
				t.Fatalf("after delete: %v", err)
			}
		})
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	var m MetaRecord
	if err := Decode([]byte("not zstd"), &m); err == nil {
		t.Fatalf("garbage decoded")
	}
}
