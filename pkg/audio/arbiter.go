package audio

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Arbiter grants the foreground slot to one playback at a time and runs an
// independent background track with linear fades.
type Arbiter struct {
	loader Loader

	mu       sync.Mutex
	gen      uint64
	fg       *foreground
	fgVolume float64

	bgGen uint64
	bg    *background
}

type foreground struct {
	pb    *Playback
	sound Sound
	label string
}

type background struct {
	sound  Sound
	label  string
	volume float64 // last applied
	cancel context.CancelFunc
}

// NewArbiter creates an arbiter playing through loader.
func NewArbiter(loader Loader) *Arbiter {
	return &Arbiter{loader: loader, fgVolume: 1.0}
}

// PlayForeground tears down the current foreground (resolving it as
// superseded) and starts src. Load failures resolve the returned playback as
// failed; they are never returned as errors.
func (a *Arbiter) PlayForeground(src Source) *Playback {
	a.mu.Lock()
	a.gen++
	gen := a.gen
	prev := a.fg
	a.fg = nil
	vol := a.fgVolume
	a.mu.Unlock()

	if prev != nil {
		prev.sound.Stop()
		prev.pb.resolve(Outcome{Kind: KindSuperseded})
		slog.Debug("Audio: foreground superseded", "source", prev.label, "generation", prev.pb.gen)
	}

	pb := newPlayback(a, gen)

	sound, err := a.loader.Load(src)
	if err != nil {
		slog.Warn("Audio: failed to load foreground", "source", src.String(), "error", err)
		pb.resolve(Outcome{Kind: KindFailed, Reason: err.Error()})
		return pb
	}

	a.mu.Lock()
	if a.gen != gen {
		// Another playback claimed the slot while this one was loading.
		a.mu.Unlock()
		sound.Stop()
		pb.resolve(Outcome{Kind: KindSuperseded})
		return pb
	}
	a.fg = &foreground{pb: pb, sound: sound, label: src.String()}
	a.mu.Unlock()

	sound.SetVolume(vol)
	sound.Start(func(err error) { a.finish(gen, err) })
	slog.Debug("Audio: foreground started", "source", src.String(), "generation", gen)
	return pb
}

// finish handles natural end or failure. Stale generations are ignored.
func (a *Arbiter) finish(gen uint64, err error) {
	a.mu.Lock()
	if a.fg == nil || a.fg.pb.gen != gen {
		a.mu.Unlock()
		return
	}
	fg := a.fg
	a.fg = nil
	a.mu.Unlock()

	fg.sound.Stop()
	if err != nil {
		slog.Warn("Audio: foreground failed", "source", fg.label, "error", err)
		fg.pb.resolve(Outcome{Kind: KindFailed, Reason: err.Error()})
		return
	}
	fg.pb.resolve(Outcome{Kind: KindCompleted})
}

// StopForeground stops whatever holds the foreground slot.
func (a *Arbiter) StopForeground() {
	a.mu.Lock()
	a.gen++
	fg := a.fg
	a.fg = nil
	a.mu.Unlock()

	if fg != nil {
		fg.sound.Stop()
		fg.pb.resolve(Outcome{Kind: KindStopped})
	}
}

func (a *Arbiter) stopGeneration(gen uint64) {
	a.mu.Lock()
	if a.fg == nil || a.fg.pb.gen != gen {
		a.mu.Unlock()
		return
	}
	a.gen++
	fg := a.fg
	a.fg = nil
	a.mu.Unlock()

	fg.sound.Stop()
	fg.pb.resolve(Outcome{Kind: KindStopped})
}

func (a *Arbiter) pauseGeneration(gen uint64, paused bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fg != nil && a.fg.pb.gen == gen {
		a.fg.sound.SetPaused(paused)
	}
}

// PauseForeground freezes the current foreground playback, if any.
func (a *Arbiter) PauseForeground() {
	a.setForegroundPaused(true)
}

// ResumeForeground continues the current foreground playback, if any.
func (a *Arbiter) ResumeForeground() {
	a.setForegroundPaused(false)
}

func (a *Arbiter) setForegroundPaused(paused bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fg != nil {
		a.fg.sound.SetPaused(paused)
	}
}

// ForegroundBusy reports whether a playback holds the foreground slot.
func (a *Arbiter) ForegroundBusy() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.fg != nil
}

// Generation returns the current foreground stamp.
func (a *Arbiter) Generation() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.gen
}

// SetForegroundVolume sets the narration volume (0..1) for current and future playbacks.
func (a *Arbiter) SetForegroundVolume(v float64) {
	v = clamp01(v)
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fgVolume = v
	if a.fg != nil {
		a.fg.sound.SetVolume(v)
	}
}

// SetBackground replaces the background track with src (looped) and fades
// it in from silence to volume over fadeDur.
func (a *Arbiter) SetBackground(src Source, volume float64, fadeDur time.Duration) error {
	src.Loop = true
	volume = clamp01(volume)

	a.mu.Lock()
	a.bgGen++
	gen := a.bgGen
	prev := a.bg
	a.bg = nil
	a.mu.Unlock()

	if prev != nil {
		prev.cancel()
		prev.sound.Stop()
	}

	sound, err := a.loader.Load(src)
	if err != nil {
		return err
	}
	sound.SetVolume(0)

	ctx, cancel := context.WithCancel(context.Background())
	bg := &background{sound: sound, label: src.String(), cancel: cancel}

	a.mu.Lock()
	if a.bgGen != gen {
		a.mu.Unlock()
		cancel()
		sound.Stop()
		return nil
	}
	a.bg = bg
	a.mu.Unlock()

	sound.Start(func(err error) { a.backgroundEnded(gen, err) })
	slog.Info("Audio: background started", "source", bg.label, "volume", volume)

	apply := func(v float64) { a.applyBackground(bg, v) }
	if fadeDur <= 0 {
		apply(volume)
		return nil
	}
	go fade(ctx, 0, volume, fadeDur, apply)
	return nil
}

func (a *Arbiter) applyBackground(bg *background, v float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.bg != bg {
		return
	}
	bg.volume = v
	bg.sound.SetVolume(v)
}

func (a *Arbiter) backgroundEnded(gen uint64, err error) {
	a.mu.Lock()
	if a.bgGen != gen || a.bg == nil {
		a.mu.Unlock()
		return
	}
	bg := a.bg
	a.bg = nil
	a.mu.Unlock()

	bg.cancel()
	bg.sound.Stop()
	if err != nil {
		slog.Warn("Audio: background failed", "source", bg.label, "error", err)
	}
}

// StopBackground fades the background out from its current volume and stops
// it. The returned channel is closed once the track has been released.
func (a *Arbiter) StopBackground(fadeDur time.Duration) <-chan struct{} {
	done := make(chan struct{})

	a.mu.Lock()
	a.bgGen++
	bg := a.bg
	a.bg = nil
	a.mu.Unlock()

	if bg == nil {
		close(done)
		return done
	}
	bg.cancel()

	release := func() {
		defer close(done)
		fade(context.Background(), bg.volume, 0, fadeDur, bg.sound.SetVolume)
		bg.sound.Stop()
		slog.Debug("Audio: background stopped", "source", bg.label)
	}
	if fadeDur <= 0 {
		release()
		return done
	}
	go release()
	return done
}

// SetBackgroundVolume changes the background volume immediately, cancelling any fade-in.
func (a *Arbiter) SetBackgroundVolume(v float64) {
	v = clamp01(v)
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.bg == nil {
		return
	}
	a.bg.cancel()
	a.bg.volume = v
	a.bg.sound.SetVolume(v)
}

// BackgroundVolume reports the volume currently applied to the background.
// It is 0 when nothing plays, including while a stopped track fades out.
func (a *Arbiter) BackgroundVolume() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.bg == nil {
		return 0
	}
	return a.bg.volume
}

// Background returns the label of the playing background track, or "".
func (a *Arbiter) Background() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.bg == nil {
		return ""
	}
	return a.bg.label
}

// Close stops both slots immediately.
func (a *Arbiter) Close() {
	a.StopForeground()
	<-a.StopBackground(0)
}
