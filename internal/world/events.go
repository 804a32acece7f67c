package world

import (
	"sync"
	"time"

	"terrainstream/internal/pool"
)

// ChunkLoaded fires once a chunk's grids are ready.
type ChunkLoaded struct {
	ID        ChunkCoord
	FromStore bool
}

// ChunkSaved fires after a chunk's records were written.
type ChunkSaved struct {
	ID ChunkCoord
}

// VisibilityChanged fires when a chunk is shown or hidden.
type VisibilityChanged struct {
	ID      ChunkCoord
	Visible bool
}

// LODChanged fires when a chunk switches to another detail level. Old is -1
// for the first assignment.
type LODChanged struct {
	ID       ChunkCoord
	Old, New int
}

// CycleCompleted fires at the end of every full range update.
type CycleCompleted struct {
	Size    pool.Size
	Elapsed time.Duration
}

// ViewerChangedChunk fires when the viewer crosses into another chunk. The
// first tick records the starting chunk without firing.
type ViewerChangedChunk struct {
	Old, New ChunkCoord
}

// Observers is a list of callbacks for one event type.
type Observers[E any] struct {
	mu   sync.Mutex
	next int
	subs []subscriber[E]
}

type subscriber[E any] struct {
	id int
	fn func(E)
}

// Subscribe registers fn and returns a function removing it.
func (o *Observers[E]) Subscribe(fn func(E)) (unsubscribe func()) {
	o.mu.Lock()
	id := o.next
	o.next++
	o.subs = append(o.subs, subscriber[E]{id: id, fn: fn})
	o.mu.Unlock()

	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		for i, s := range o.subs {
			if s.id == id {
				o.subs = append(o.subs[:i:i], o.subs[i+1:]...)
				return
			}
		}
	}
}

// Len returns the number of subscribers.
func (o *Observers[E]) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.subs)
}

func (o *Observers[E]) emit(e E) {
	o.mu.Lock()
	subs := o.subs
	o.mu.Unlock()
	for _, s := range subs {
		s.fn(e)
	}
}

// Events holds the notification lists of one controller.
type Events struct {
	ChunkLoaded        Observers[ChunkLoaded]
	ChunkSaved         Observers[ChunkSaved]
	VisibilityChanged  Observers[VisibilityChanged]
	LODChanged         Observers[LODChanged]
	CycleCompleted     Observers[CycleCompleted]
	ViewerChangedChunk Observers[ViewerChangedChunk]
}
