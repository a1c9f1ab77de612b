package flyover

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"flyover/pkg/audio"
	"flyover/pkg/model"
	"flyover/pkg/tour"
)

// introPause stands in for the intro when there is nothing to play.
const introPause = 500 * time.Millisecond

var errPrepareTimeout = errors.New("preparation timed out")

// loop runs the tour from the snapshot installed with r until it completes
// or r is cancelled.
func (c *Controller) loop(r *run) {
	defer close(r.done)
	ctx := r.ctx

	p := c.Snapshot()
	if p.State == tour.StatePreparing || p.Resume() == tour.StatePreparing {
		c.prepare(r)
		if ctx.Err() != nil {
			return
		}
		if _, ok := c.update(r, tour.BeginFlight); !ok {
			return
		}
	}

	for {
		p = c.Snapshot()
		if p.State == tour.StateComplete {
			c.finish(r)
			return
		}
		if err := c.visit(r, p.Index); err != nil {
			return
		}
		if _, ok := c.update(r, tour.Advance); !ok {
			return
		}
	}
}

// visit flies to stop i, narrates it and lingers there.
func (c *Controller) visit(r *run, i int) error {
	ctx := r.ctx
	if err := c.gate.wait(ctx); err != nil {
		return err
	}

	wp := c.Snapshot().Current()
	if wp == nil {
		return fmt.Errorf("no waypoint at %d", i)
	}
	select {
	case <-c.deps.Camera.MoveTo(ctx, wp.Camera):
	case <-ctx.Done():
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err := c.gate.wait(ctx); err != nil {
		return err
	}

	// Audio may have been attached during the flight.
	p, ok := c.update(r, tour.Arrive)
	if !ok {
		return context.Canceled
	}
	wp = p.Current()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if wp.HasAudio() {
		pb := c.deps.Arbiter.PlayForeground(audio.FromAudio(wp.Audio, fmt.Sprintf("stop %d", i+1)))
		if c.gate.isPaused() {
			pb.Pause()
		}
		slog.Debug("Flyover: narrating", "index", i, "generation", pb.Generation())
	} else {
		slog.Debug("Flyover: no audio for stop, lingering silently", "index", i)
	}

	return c.gate.sleep(ctx, wp.Linger, func(f float64) {
		c.update(r, func(p *tour.Progress) *tour.Progress { return tour.SetWaypointProgress(p, f) })
	})
}

// prepare plays the intro and flies the opening shot while stop audio is
// synthesized, for at most PrepareTimeout of unpaused time. Synthesis keeps
// running past the timeout and attaches late audio as it arrives.
func (c *Controller) prepare(r *run) {
	ctx := r.ctx
	pctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	go func() {
		if c.gate.sleep(pctx, c.opts.PrepareTimeout, nil) == nil {
			cancel(errPrepareTimeout)
		}
	}()

	c.mu.Lock()
	theme := c.theme
	c.mu.Unlock()
	wps := c.Snapshot().Waypoints

	introDone := make(chan struct{})
	go func() {
		defer close(introDone)
		c.playIntro(pctx, r, len(wps), theme)
	}()
	// The intro never outlives the run.
	defer func() { <-introDone }()

	flight := c.deps.Camera.Intro(pctx, tour.Center(wps))

	synthDone := make(chan struct{})
	go func() {
		defer close(synthDone)
		if c.opts.Rewrite && c.deps.Writer != nil {
			if updates := c.deps.Writer.Rewrite(pctx, wps, theme); len(updates) > 0 {
				c.update(r, func(p *tour.Progress) *tour.Progress { return tour.AttachAudio(p, updates) })
			}
		}
		c.pregenerate(r)
	}()

	for _, ch := range []<-chan struct{}{introDone, flight, synthDone} {
		select {
		case <-ch:
		case <-pctx.Done():
			if errors.Is(context.Cause(pctx), errPrepareTimeout) {
				slog.Warn("Flyover: preparation timed out, starting without all audio", "timeout", c.opts.PrepareTimeout)
			}
			return
		}
	}
}

// pregenerate synthesizes every stop that has no audio yet.
func (c *Controller) pregenerate(r *run) {
	wps := c.Snapshot().Waypoints

	var (
		idx   []int
		texts []string
	)
	for i := range wps {
		if !wps[i].HasAudio() {
			idx = append(idx, i)
			texts = append(texts, wps[i].Narrative)
		}
	}
	if len(texts) == 0 {
		return
	}

	results := c.deps.Pipeline.GenerateAll(r.ctx, texts, c.opts.Voice)

	updates := make([]tour.AudioUpdate, 0, len(results))
	for j, a := range results {
		if a != nil {
			updates = append(updates, tour.AudioUpdate{Index: idx[j], Audio: a})
		}
	}
	if len(updates) > 0 {
		c.update(r, func(p *tour.Progress) *tour.Progress { return tour.AttachAudio(p, updates) })
	}
}

// playIntro plays the welcome and waits for it to end. Nothing starts once
// r is cancelled.
func (c *Controller) playIntro(ctx context.Context, r *run, stops int, theme string) {
	src, ok := c.introSource(ctx, stops, theme)
	if !ok {
		select {
		case <-time.After(introPause):
		case <-ctx.Done():
		}
		return
	}
	if r.ctx.Err() != nil {
		return
	}
	pb := c.deps.Arbiter.PlayForeground(src)
	if c.gate.isPaused() {
		pb.Pause()
	}
	if out, err := pb.Wait(ctx); err == nil && out.Kind == audio.KindFailed {
		slog.Warn("Flyover: intro failed to play", "reason", out.Reason)
	}
}

// introSource prefers the recorded intro, then a cached or fresh synthesis.
func (c *Controller) introSource(ctx context.Context, stops int, theme string) (audio.Source, bool) {
	if c.opts.IntroFile != "" {
		return audio.FromFile(c.opts.IntroFile), true
	}

	c.mu.Lock()
	cached := c.intro
	c.mu.Unlock()
	if cached != nil {
		return audio.FromAudio(cached, "intro"), true
	}

	text := c.opts.IntroText
	if c.opts.Rewrite && c.deps.Writer != nil {
		if t := c.deps.Writer.Intro(ctx, stops, theme); t != "" {
			text = t
		}
	}
	if text == "" {
		return audio.Source{}, false
	}

	var a *model.Audio
	if c.deps.Speaker != nil {
		var err error
		if a, err = c.deps.Speaker.Synthesize(ctx, text); err != nil {
			slog.Warn("Flyover: intro synthesis failed", "error", err)
		}
	} else {
		a = c.deps.Pipeline.Generate(ctx, text, c.opts.Voice)
	}
	if a.Empty() {
		return audio.Source{}, false
	}
	if text == c.opts.IntroText {
		c.mu.Lock()
		c.intro = a
		c.mu.Unlock()
	}
	return audio.FromAudio(a, "intro"), true
}

// finish pulls the camera back and fades the music out.
func (c *Controller) finish(r *run) {
	slog.Info("Flyover: tour complete")
	select {
	case <-c.deps.Camera.Outro(r.ctx, tour.Center(c.Snapshot().Waypoints)):
	case <-r.ctx.Done():
		return
	}
	if c.deps.Music != nil {
		select {
		case <-c.deps.Music.Stop():
		case <-r.ctx.Done():
		}
	}
}
