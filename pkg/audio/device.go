package audio

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/speaker"
)

const deviceSampleRate = beep.SampleRate(48000)

// SpeakerLoader plays sources on the system output via gopxl/beep.
// The speaker is initialized lazily at 48kHz and every source is resampled to it.
type SpeakerLoader struct {
	mu          sync.Mutex
	initialized bool
}

// NewSpeakerLoader creates a loader for the default output device.
func NewSpeakerLoader() *SpeakerLoader {
	return &SpeakerLoader{}
}

func (l *SpeakerLoader) ensureSpeaker() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.initialized {
		return nil
	}
	if err := speaker.Init(deviceSampleRate, deviceSampleRate.N(time.Second/10)); err != nil {
		slog.Error("Failed to initialize speaker", "error", err)
		return err
	}
	l.initialized = true
	return nil
}

// Load implements Loader.
func (l *SpeakerLoader) Load(src Source) (Sound, error) {
	streamer, format, err := Decode(src)
	if err != nil {
		return nil, err
	}
	if err := l.ensureSpeaker(); err != nil {
		streamer.Close()
		return nil, err
	}

	var s beep.Streamer = streamer
	if src.Loop {
		s = beep.Loop(-1, streamer)
	}
	resampled := beep.Resample(3, format.SampleRate, deviceSampleRate, s)

	vol := &effects.Volume{Streamer: resampled, Base: 2, Volume: 0}
	return &speakerSound{
		label:  src.String(),
		stream: streamer,
		vol:    vol,
		ctrl:   &beep.Ctrl{Streamer: vol},
	}, nil
}

type speakerSound struct {
	label  string
	stream beep.StreamSeekCloser
	vol    *effects.Volume
	ctrl   *beep.Ctrl

	mu      sync.Mutex
	stopped bool
}

func (s *speakerSound) Start(onDone func(err error)) {
	speaker.Play(beep.Seq(s.ctrl, beep.Callback(func() {
		// Runs on the speaker goroutine, which holds the speaker lock.
		go s.finish(onDone)
	})))
}

func (s *speakerSound) finish(onDone func(err error)) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	err := s.stream.Err()
	s.stream.Close()
	s.mu.Unlock()

	if onDone != nil {
		onDone(err)
	}
}

func (s *speakerSound) SetVolume(v float64) {
	speaker.Lock()
	s.vol.Volume = volumeToPower(v)
	s.vol.Silent = v <= silenceFloor
	speaker.Unlock()
}

func (s *speakerSound) SetPaused(paused bool) {
	speaker.Lock()
	s.ctrl.Paused = paused
	speaker.Unlock()
}

func (s *speakerSound) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true

	// A Ctrl without a streamer reports drained, so the Seq moves on and is dropped by the mixer.
	speaker.Lock()
	s.ctrl.Streamer = nil
	speaker.Unlock()
	s.stream.Close()
	slog.Debug("Audio: sound stopped", "source", s.label)
}
