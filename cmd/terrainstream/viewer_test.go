package main

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestScriptedViewer(t *testing.T) {
	if _, err := newScriptedViewer("zigzag", 1); err == nil {
		t.Fatal("unknown path accepted")
	}
	for _, path := range []string{"line", "circle", "spiral"} {
		v, err := newScriptedViewer(path, 2)
		if err != nil {
			t.Fatal(err)
		}
		prev := v.Position()
		for i := 0; i < 100; i++ {
			v.Advance()
			p := v.Position()
			if p[1] != 0 {
				t.Fatalf("%s: viewer left the ground plane: %v", path, p)
			}
			// The spiral starts steep at its centre.
			if d := p.Sub(prev).Len(); i >= 10 && d > 4 {
				t.Fatalf("%s: step %d jumped %v units", path, i, d)
			}
			prev = p
		}
		if path == "line" && prev != (mgl32.Vec3{200, 0, 0}) {
			t.Fatalf("line viewer ended at %v", prev)
		}
	}
}
