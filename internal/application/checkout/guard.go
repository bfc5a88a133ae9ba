package checkout

import (
	"context"
	"sync"
)

// ProcessGuard makes sure the return flow runs at most once per mount.
// The latch is a compare-and-set under a mutex; later callers wait for and
// share the outcome of the first run.
type ProcessGuard struct {
	mu      sync.Mutex
	latched bool
	done    chan struct{}
	outcome Outcome
}

func NewProcessGuard() *ProcessGuard {
	return &ProcessGuard{done: make(chan struct{})}
}

// TryEnter latches the guard. It returns true for exactly one caller.
func (g *ProcessGuard) TryEnter() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.latched {
		return false
	}
	g.latched = true
	return true
}

// Latched reports whether a run has started.
func (g *ProcessGuard) Latched() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.latched
}

// Finish publishes the outcome of the run that entered the guard.
func (g *ProcessGuard) Finish(o Outcome) {
	g.mu.Lock()
	g.outcome = o
	g.mu.Unlock()
	close(g.done)
}

// Wait blocks until the entered run finishes or ctx is done.
func (g *ProcessGuard) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-g.done:
		g.mu.Lock()
		defer g.mu.Unlock()
		return g.outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}
