package flyover

import (
	"context"
	"sync"
	"time"
)

// gate freezes the control loop while a tour is paused.
type gate struct {
	mu     sync.Mutex
	paused bool
	open   chan struct{} // closed while running
	halt   chan struct{} // closed while paused
}

func newGate() *gate {
	g := &gate{open: make(chan struct{}), halt: make(chan struct{})}
	close(g.open)
	return g
}

func (g *gate) pause() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.paused {
		return
	}
	g.paused = true
	g.open = make(chan struct{})
	close(g.halt)
}

func (g *gate) resume() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.paused {
		return
	}
	g.paused = false
	g.halt = make(chan struct{})
	close(g.open)
}

func (g *gate) isPaused() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.paused
}

func (g *gate) channels() (open, halt <-chan struct{}) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.open, g.halt
}

// wait blocks while paused.
func (g *gate) wait(ctx context.Context) error {
	open, _ := g.channels()
	select {
	case <-open:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// sleep waits d of unpaused time. tick, when set, is called with the
// elapsed fraction as time passes.
func (g *gate) sleep(ctx context.Context, d time.Duration, tick func(float64)) error {
	const tickEvery = 250 * time.Millisecond

	remaining := d
	for remaining > 0 {
		if err := g.wait(ctx); err != nil {
			return err
		}
		_, halt := g.channels()

		start := time.Now()
		timer := time.NewTimer(remaining)
		ticker := time.NewTicker(tickEvery)

		select {
		case <-timer.C:
			remaining = 0
		case <-halt:
			remaining -= time.Since(start)
		case <-ctx.Done():
			timer.Stop()
			ticker.Stop()
			return ctx.Err()
		case <-ticker.C:
			remaining -= time.Since(start)
		}
		timer.Stop()
		ticker.Stop()

		if tick != nil && d > 0 {
			tick(float64(d-max(remaining, 0)) / float64(d))
		}
	}
	return nil
}
