// Package flyover runs compiled tours: it drives the camera, narration and
// music for each stop and exposes the control surface used by the UI.
package flyover

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"flyover/pkg/audio"
	"flyover/pkg/camera"
	"flyover/pkg/model"
	"flyover/pkg/narration"
	"flyover/pkg/tour"
)

// Options tune the preparing phase.
type Options struct {
	Voice          string
	IntroText      string
	IntroFile      string
	PrepareTimeout time.Duration
	Rewrite        bool // let the writer rewrite narratives before synthesis
}

// Deps are the collaborators a controller drives. Speaker, Writer and Music may be nil.
type Deps struct {
	Camera   *camera.Choreographer
	Pipeline *narration.Pipeline
	Arbiter  *audio.Arbiter
	Speaker  *narration.Speaker
	Writer   *narration.Writer
	Music    *audio.Music
}

// Controller owns the live tour snapshot and the single task running it.
type Controller struct {
	deps Deps
	opts Options
	gate *gate

	ctl sync.Mutex // serializes control entry points

	mu       sync.Mutex
	progress *tour.Progress
	theme    string
	run      *run
	subs     map[int]chan *tour.Progress
	nextSub  int
	intro    *model.Audio
}

type run struct {
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a controller with an empty tour loaded.
func New(deps Deps, opts Options) *Controller {
	if opts.PrepareTimeout <= 0 {
		opts.PrepareTimeout = 20 * time.Second
	}
	return &Controller{
		deps:     deps,
		opts:     opts,
		gate:     newGate(),
		progress: tour.New(nil),
		subs:     make(map[int]chan *tour.Progress),
	}
}

// Snapshot returns the current progress. Snapshots are immutable.
func (c *Controller) Snapshot() *tour.Progress {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.progress
}

// Subscribe delivers every new snapshot. Slow readers only see the latest.
func (c *Controller) Subscribe() (<-chan *tour.Progress, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSub
	c.nextSub++
	ch := make(chan *tour.Progress, 1)
	ch <- c.progress
	c.subs[id] = ch

	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}

// setLocked replaces the snapshot and notifies subscribers. c.mu must be held.
func (c *Controller) setLocked(p *tour.Progress) {
	if p == c.progress {
		return
	}
	c.progress = p
	for _, ch := range c.subs {
		select {
		case ch <- p:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- p:
			default:
			}
		}
	}
}

// update applies fn on behalf of r. It is a no-op once r has been replaced.
func (c *Controller) update(r *run, fn func(*tour.Progress) *tour.Progress) (*tour.Progress, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.run != r {
		return c.progress, false
	}
	c.setLocked(fn(c.progress))
	return c.progress, true
}

// Load replaces the tour. Any running tour is torn down first.
func (c *Controller) Load(wps []model.Waypoint, theme string) *tour.Progress {
	c.ctl.Lock()
	defer c.ctl.Unlock()

	c.teardown()
	c.deps.Pipeline.CancelAll()
	c.gate.resume()
	if c.deps.Music != nil {
		c.deps.Music.Stop()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.theme = theme
	c.setLocked(tour.New(wps))
	slog.Info("Flyover: tour loaded", "stops", len(wps), "theme", theme)
	return c.progress
}

// Start begins the loaded tour. Starting an empty or running tour changes nothing.
// The tour keeps running after ctx ends; use Stop to end it.
func (c *Controller) Start(ctx context.Context) *tour.Progress {
	c.ctl.Lock()
	defer c.ctl.Unlock()

	p := c.Snapshot()
	n := tour.Start(p)
	if n == p {
		return p
	}

	c.teardown()
	c.gate.resume()
	if c.deps.Music != nil {
		if err := c.deps.Music.Play(audio.ModeFlyover, -1); err != nil {
			slog.Warn("Flyover: background music unavailable", "error", err)
		}
	}

	c.launch(context.WithoutCancel(ctx), n)
	slog.Info("Flyover: tour started", "stops", n.Len())
	return n
}

// launch installs p and a fresh run task for it.
func (c *Controller) launch(parent context.Context, p *tour.Progress) {
	ctx, cancel := context.WithCancel(parent)
	r := &run{ctx: ctx, cancel: cancel, done: make(chan struct{})}

	c.mu.Lock()
	c.run = r
	c.setLocked(p)
	c.mu.Unlock()

	go c.loop(r)
}

// teardown cancels pending synthesis, silences narration and stops the run
// task. It returns once the task has exited.
func (c *Controller) teardown() {
	c.mu.Lock()
	r := c.run
	c.run = nil
	c.mu.Unlock()

	if c.deps.Pipeline.Pregenerating() {
		c.deps.Pipeline.CancelAll()
	}
	if r != nil {
		r.cancel()
	}
	c.deps.Camera.Interrupt()
	if r != nil {
		<-r.done
	}
	// After the join, so nothing the run started survives it.
	c.deps.Arbiter.StopForeground()
}

// TogglePause pauses or resumes the tour, freezing timers and narration.
func (c *Controller) TogglePause() *tour.Progress {
	c.ctl.Lock()
	defer c.ctl.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.progress
	n := tour.TogglePause(p)
	if n == p {
		return p
	}

	if n.State == tour.StatePaused {
		c.gate.pause()
		c.deps.Arbiter.PauseForeground()
	} else {
		c.gate.resume()
		c.deps.Arbiter.ResumeForeground()
	}
	c.setLocked(n)
	return n
}

// Stop ends the tour and resets it to idle. Narration, pending synthesis and
// music are released before the state changes.
func (c *Controller) Stop() *tour.Progress {
	c.ctl.Lock()
	defer c.ctl.Unlock()

	c.teardown()
	if c.deps.Music != nil {
		c.deps.Music.Stop()
	}
	c.gate.resume()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(tour.Stop(c.progress))
	slog.Info("Flyover: tour stopped")
	return c.progress
}

// Skip abandons the current stop and flies to the next one. A paused tour
// stays paused.
func (c *Controller) Skip() *tour.Progress {
	c.ctl.Lock()
	defer c.ctl.Unlock()

	p := c.Snapshot()
	if !p.State.Active() {
		return p
	}
	c.teardown()

	n := tour.Advance(c.Snapshot())
	c.launch(context.Background(), n)
	slog.Debug("Flyover: skipped", "index", n.Index, "state", n.State)
	return n
}

// JumpTo abandons the current stop and flies to stop i. Out-of-range
// indices and inactive tours are ignored.
func (c *Controller) JumpTo(i int) *tour.Progress {
	c.ctl.Lock()
	defer c.ctl.Unlock()

	p := c.Snapshot()
	if !p.State.Active() && p.State != tour.StateComplete {
		return p
	}
	if i < 0 || i >= p.Len() {
		return p
	}
	c.teardown()
	c.gate.resume()

	if c.deps.Music != nil {
		if err := c.deps.Music.Play(audio.ModeFlyover, -1); err != nil {
			slog.Debug("Flyover: background music unavailable", "error", err)
		}
	}
	n := tour.Seek(c.Snapshot(), i)
	c.launch(context.Background(), n)
	slog.Debug("Flyover: jumped", "index", i)
	return n
}

// Close stops the tour and waits for the run task to exit.
func (c *Controller) Close() {
	c.Stop()
}
