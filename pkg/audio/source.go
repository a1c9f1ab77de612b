// Package audio owns the single audio output: one exclusive foreground slot
// for narration and an independent, fade-controlled background slot for music.
package audio

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/wav"

	"flyover/pkg/model"
)

// Source is something playable: an in-memory clip or a file on disk.
type Source struct {
	Audio *model.Audio
	Path  string
	Label string // shown in logs, e.g. "stop 3" or "flyover"
	Loop  bool
}

// FromAudio wraps a synthesized clip.
func FromAudio(a *model.Audio, label string) Source {
	return Source{Audio: a, Label: label}
}

// FromFile wraps a file on disk.
func FromFile(path string) Source {
	return Source{Path: path, Label: filepath.Base(path)}
}

func (s Source) String() string {
	if s.Label != "" {
		return s.Label
	}
	if s.Path != "" {
		return s.Path
	}
	return "clip"
}

// Sound is one loaded source bound to the output device.
// Stop releases its resources and may be called before Start or more than once.
type Sound interface {
	// Start begins playback. onDone fires once when the source ends on its own
	// (err nil) or fails while playing. It never fires after Stop.
	Start(onDone func(err error))
	SetVolume(v float64)
	SetPaused(paused bool)
	Stop()
}

// Loader turns sources into sounds.
type Loader interface {
	Load(src Source) (Sound, error)
}

// Decode opens src as a beep stream. mp3 and wav are supported.
func Decode(src Source) (beep.StreamSeekCloser, beep.Format, error) {
	var (
		data   []byte
		format string
	)
	switch {
	case !src.Audio.Empty():
		data = src.Audio.Data
		format = src.Audio.Format
	case src.Path != "":
		b, err := os.ReadFile(src.Path)
		if err != nil {
			return nil, beep.Format{}, fmt.Errorf("failed to open audio file: %w", err)
		}
		data = b
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(src.Path)), ".")
	default:
		return nil, beep.Format{}, fmt.Errorf("empty audio source")
	}

	switch format {
	case "wav":
		return wav.Decode(bytes.NewReader(data))
	case "mp3":
		return mp3.Decode(io.NopCloser(bytes.NewReader(data)))
	}

	// Unknown extension: try mp3 first, then wav.
	if s, f, err := mp3.Decode(io.NopCloser(bytes.NewReader(data))); err == nil {
		return s, f, nil
	}
	s, f, err := wav.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("failed to decode audio %s: %w", src, err)
	}
	return s, f, nil
}

// Length returns the playing time of src.
func Length(src Source) (time.Duration, error) {
	streamer, format, err := Decode(src)
	if err != nil {
		return 0, err
	}
	defer streamer.Close()
	return format.SampleRate.D(streamer.Len()), nil
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
