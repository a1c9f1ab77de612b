package audio

import (
	"context"
	"sync"
)

// Kind tags how a foreground playback ended.
type Kind int

const (
	// KindCompleted means the source played to its end.
	KindCompleted Kind = iota
	// KindFailed means the source could not be loaded or broke while playing.
	KindFailed
	// KindSuperseded means a newer foreground playback took the slot.
	KindSuperseded
	// KindStopped means the owner stopped it explicitly.
	KindStopped
)

func (k Kind) String() string {
	switch k {
	case KindCompleted:
		return "completed"
	case KindFailed:
		return "failed"
	case KindSuperseded:
		return "superseded"
	case KindStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Outcome is the resolved result of a foreground playback.
type Outcome struct {
	Kind   Kind
	Reason string // set for KindFailed
}

func (o Outcome) String() string {
	if o.Reason != "" {
		return o.Kind.String() + ": " + o.Reason
	}
	return o.Kind.String()
}

// Playback is the handle for one foreground playback. Its outcome resolves exactly once.
type Playback struct {
	arb *Arbiter
	gen uint64

	once    sync.Once
	done    chan struct{}
	outcome Outcome
}

func newPlayback(a *Arbiter, gen uint64) *Playback {
	return &Playback{arb: a, gen: gen, done: make(chan struct{})}
}

func (p *Playback) resolve(o Outcome) {
	p.once.Do(func() {
		p.outcome = o
		close(p.done)
	})
}

// Done is closed once the outcome is known.
func (p *Playback) Done() <-chan struct{} {
	return p.done
}

// Outcome returns the resolved outcome. Only meaningful after Done is closed.
func (p *Playback) Outcome() Outcome {
	<-p.done
	return p.outcome
}

// Wait blocks until the playback resolves or ctx ends.
func (p *Playback) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-p.done:
		return p.outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// Generation is the arbiter stamp this playback was issued under.
func (p *Playback) Generation() uint64 {
	return p.gen
}

// Stop ends this playback if it still owns the foreground slot.
func (p *Playback) Stop() {
	p.arb.stopGeneration(p.gen)
}

// Pause freezes this playback if it still owns the foreground slot.
func (p *Playback) Pause() {
	p.arb.pauseGeneration(p.gen, true)
}

// Resume continues this playback if it still owns the foreground slot.
func (p *Playback) Resume() {
	p.arb.pauseGeneration(p.gen, false)
}
