package audio

import (
	"errors"
	"sync"
	"time"

	"flyover/pkg/audio/audiotest"
	"flyover/pkg/model"
)

// testWAV renders d of silence as 8kHz mono 16-bit PCM.
func testWAV(d time.Duration) []byte {
	return audiotest.WAV(d)
}

func clip(label string) Source {
	return FromAudio(&model.Audio{Data: []byte("RIFF"), Format: "wav"}, label)
}

type fakeSound struct {
	mu      sync.Mutex
	label   string
	started bool
	stopped int
	paused  bool
	volumes []float64
	onDone  func(error)
}

func (s *fakeSound) Start(onDone func(err error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = true
	s.onDone = onDone
}

func (s *fakeSound) SetVolume(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volumes = append(s.volumes, v)
}

func (s *fakeSound) SetPaused(p bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = p
}

func (s *fakeSound) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped++
}

// end simulates the device reporting that playback finished.
func (s *fakeSound) end(err error) {
	s.mu.Lock()
	cb := s.onDone
	s.mu.Unlock()
	if cb != nil {
		cb(err)
	}
}

func (s *fakeSound) lastVolume() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.volumes) == 0 {
		return -1
	}
	return s.volumes[len(s.volumes)-1]
}

func (s *fakeSound) stopCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

func (s *fakeSound) isPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

type fakeLoader struct {
	mu     sync.Mutex
	sounds []*fakeSound
	fail   map[string]bool
}

func newFakeLoader() *fakeLoader {
	return &fakeLoader{fail: map[string]bool{}}
}

func (l *fakeLoader) Load(src Source) (Sound, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fail[src.Label] {
		return nil, errors.New("decode failed")
	}
	s := &fakeSound{label: src.Label}
	l.sounds = append(l.sounds, s)
	return s, nil
}

func (l *fakeLoader) sound(i int) *fakeSound {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sounds[i]
}
