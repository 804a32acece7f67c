package profiling

import (
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Lightweight per-cycle CPU profiler for streaming-loop insights.

// Stat is the accumulated time of one named section.
type Stat struct {
	Name  string
	Total time.Duration
	Calls int
}

// Profiler accumulates section timings for the current cycle and since
// creation.
type Profiler struct {
	mu       sync.Mutex
	cycle    map[string]Stat
	lifetime map[string]Stat
	cycles   int
}

// New returns an empty profiler.
func New() *Profiler {
	return &Profiler{
		cycle:    make(map[string]Stat),
		lifetime: make(map[string]Stat),
	}
}

var std = New()

// Default returns the process-wide profiler used by the package functions.
func Default() *Profiler { return std }

// Track returns a stop function that records the elapsed time under name.
// Usage: defer p.Track("world.FullUpdate")()
func (p *Profiler) Track(name string) func() {
	start := time.Now()
	return func() {
		d := time.Since(start)
		p.mu.Lock()
		add(p.cycle, name, d)
		add(p.lifetime, name, d)
		p.mu.Unlock()
	}
}

func add(m map[string]Stat, name string, d time.Duration) {
	s := m[name]
	s.Name = name
	s.Total += d
	s.Calls++
	m[name] = s
}

// ResetCycle clears the current cycle totals. Call once per control tick.
func (p *Profiler) ResetCycle() {
	p.mu.Lock()
	clear(p.cycle)
	p.cycles++
	p.mu.Unlock()
}

// Cycles returns how many times ResetCycle ran.
func (p *Profiler) Cycles() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cycles
}

// Snapshot returns the current cycle totals, largest first.
func (p *Profiler) Snapshot() []Stat { return p.sorted(false) }

// Lifetime returns the totals since creation, largest first.
func (p *Profiler) Lifetime() []Stat { return p.sorted(true) }

func (p *Profiler) sorted(lifetime bool) []Stat {
	p.mu.Lock()
	src := p.cycle
	if lifetime {
		src = p.lifetime
	}
	out := make([]Stat, 0, len(src))
	for _, s := range src {
		out = append(out, s)
	}
	p.mu.Unlock()
	slices.SortFunc(out, func(a, b Stat) int {
		if a.Total != b.Total {
			if a.Total > b.Total {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Name, b.Name)
	})
	return out
}

// TopN formats the n largest lifetime sections.
// Example: "world.FullUpdate:4.2ms/12, world.Collision:0.7ms/40"
func (p *Profiler) TopN(n int) string {
	list := p.Lifetime()
	n = min(n, len(list))
	parts := make([]string, 0, n)
	for _, s := range list[:n] {
		parts = append(parts, s.Name+":"+formatMs(s.Total)+"/"+strconv.Itoa(s.Calls))
	}
	return strings.Join(parts, ", ")
}

func formatMs(d time.Duration) string {
	ms := float64(d.Microseconds()) / 1000.0
	return strconv.FormatFloat(ms, 'f', 1, 64) + "ms"
}

// Track records into the default profiler.
func Track(name string) func() { return std.Track(name) }

// TopN formats the default profiler's largest sections.
func TopN(n int) string { return std.TopN(n) }
