package media

import (
	"context"
	"sync"
)

// initGate runs an initialization function at most once successfully.
// Callers arriving while an attempt is running wait for its outcome;
// after a failed attempt the next caller starts a new one.
type initGate struct {
	mu      sync.Mutex
	ready   bool
	current *initAttempt
}

type initAttempt struct {
	done chan struct{}
	err  error
}

// Do runs fn unless a previous call already succeeded.
func (g *initGate) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	g.mu.Lock()
	if g.ready {
		g.mu.Unlock()
		return nil
	}
	if a := g.current; a != nil {
		g.mu.Unlock()
		select {
		case <-a.done:
			return a.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	a := &initAttempt{done: make(chan struct{})}
	g.current = a
	g.mu.Unlock()

	a.err = fn(ctx)

	g.mu.Lock()
	if a.err == nil {
		g.ready = true
	}
	g.current = nil
	g.mu.Unlock()
	close(a.done)

	return a.err
}
