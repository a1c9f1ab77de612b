package audio

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Music modes.
const (
	ModeFlyover  = "flyover"
	ModeShowcase = "showcase"
)

// Track is a looping background track with its default volume.
type Track struct {
	Path   string
	Volume float64
}

// DefaultVolumes keeps music under the narration.
var DefaultVolumes = map[string]float64{
	ModeFlyover:  0.15,
	ModeShowcase: 0.3,
}

// Music picks background tracks by mode on top of the arbiter's background slot.
type Music struct {
	arb    *Arbiter
	fade   time.Duration
	tracks map[string]Track

	mu   sync.Mutex
	mode string
}

// NewMusic creates a music controller. Modes without a track path are silent.
func NewMusic(arb *Arbiter, tracks map[string]Track, fade time.Duration) *Music {
	return &Music{arb: arb, tracks: tracks, fade: fade}
}

// Play starts the track for mode. A negative volume selects the mode default.
// Asking for the mode that is already playing does nothing.
func (m *Music) Play(mode string, volume float64) error {
	tr, ok := m.tracks[mode]
	if !ok {
		return fmt.Errorf("unknown music mode %q", mode)
	}
	if tr.Path == "" {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mode == mode && m.arb.Background() != "" {
		return nil
	}

	if volume < 0 {
		volume = tr.Volume
	}
	src := FromFile(tr.Path)
	src.Label = mode
	if err := m.arb.SetBackground(src, volume, m.fade); err != nil {
		m.mode = ""
		return fmt.Errorf("failed to start %s music: %w", mode, err)
	}
	m.mode = mode
	slog.Debug("Music: playing", "mode", mode, "volume", volume)
	return nil
}

// Stop fades the music out. The channel closes once it is silent.
func (m *Music) Stop() <-chan struct{} {
	m.mu.Lock()
	m.mode = ""
	m.mu.Unlock()
	return m.arb.StopBackground(m.fade)
}

// Mode returns the playing mode, or "".
func (m *Music) Mode() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.arb.Background() == "" {
		return ""
	}
	return m.mode
}

// SetVolume changes the music volume immediately.
func (m *Music) SetVolume(v float64) {
	m.arb.SetBackgroundVolume(v)
}

// Volume reports the music volume, 0 when silent.
func (m *Music) Volume() float64 {
	return m.arb.BackgroundVolume()
}
