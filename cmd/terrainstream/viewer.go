package main

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

const circleRadius = 300

// scriptedViewer follows a fixed path, one step per tick.
type scriptedViewer struct {
	path  string
	speed float32
	step  int
	pos   mgl32.Vec3
}

func newScriptedViewer(path string, speed float32) (*scriptedViewer, error) {
	switch path {
	case "line", "circle", "spiral":
	default:
		return nil, fmt.Errorf("unknown viewer path %q", path)
	}
	v := &scriptedViewer{path: path, speed: speed}
	v.pos = v.at(0)
	return v, nil
}

func (v *scriptedViewer) Position() mgl32.Vec3 { return v.pos }

// Advance moves the viewer one step along its path.
func (v *scriptedViewer) Advance() {
	v.step++
	v.pos = v.at(v.step)
}

func (v *scriptedViewer) at(step int) mgl32.Vec3 {
	d := float64(step) * float64(v.speed)
	switch v.path {
	case "line":
		return mgl32.Vec3{float32(d), 0, 0}
	case "circle":
		a := d / circleRadius
		return mgl32.Vec3{float32(circleRadius * math.Cos(a)), 0, float32(circleRadius * math.Sin(a))}
	default:
		// Archimedean spiral with arc length close to d.
		r := math.Sqrt(2 * d * 40)
		a := r / 40
		return mgl32.Vec3{float32(r * math.Cos(a)), 0, float32(r * math.Sin(a))}
	}
}
