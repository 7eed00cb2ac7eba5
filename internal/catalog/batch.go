package catalog

import (
	"context"
	"sync"
)

const maxTrackedViews = 1024

type viewBatch struct {
	generation uint64
	cancel     context.CancelFunc
}

// generationTracker hands out one generation per batch started for a view.
// Starting a batch cancels the one it replaces; only the latest generation
// of a view may publish.
type generationTracker struct {
	mu      sync.Mutex
	counter uint64
	active  map[string]viewBatch
	latest  map[string]uint64
}

func newGenerationTracker() *generationTracker {
	return &generationTracker{
		active: make(map[string]viewBatch),
		latest: make(map[string]uint64),
	}
}

// begin registers a new batch for view and returns its generation, a context
// cancelled when a newer batch starts, and a release func.
func (t *generationTracker) begin(ctx context.Context, view string) (uint64, context.Context, func()) {
	runCtx, cancel := context.WithCancel(ctx)

	t.mu.Lock()
	t.counter++
	generation := t.counter
	if previous, ok := t.active[view]; ok {
		previous.cancel()
	}
	t.active[view] = viewBatch{generation: generation, cancel: cancel}
	t.latest[view] = generation
	t.pruneLocked()
	t.mu.Unlock()

	release := func() {
		t.mu.Lock()
		if current, ok := t.active[view]; ok && current.generation == generation {
			delete(t.active, view)
		}
		t.mu.Unlock()
		cancel()
	}
	return generation, runCtx, release
}

func (t *generationTracker) isCurrent(view string, generation uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.latest[view] == generation
}

func (t *generationTracker) pruneLocked() {
	if len(t.latest) <= maxTrackedViews {
		return
	}
	for view := range t.latest {
		if _, running := t.active[view]; running {
			continue
		}
		delete(t.latest, view)
		if len(t.latest) <= maxTrackedViews/2 {
			return
		}
	}
}
