package audio

import (
	"sync"
	"time"
)

// SilentLoader plays nothing but keeps real time: each sound ends after the
// decoded length of its source. Used on machines without an output device.
type SilentLoader struct{}

// Load implements Loader.
func (SilentLoader) Load(src Source) (Sound, error) {
	length, err := Length(src)
	if err != nil {
		return nil, err
	}
	return &silentSound{remaining: length, loop: src.Loop}, nil
}

type silentSound struct {
	mu        sync.Mutex
	remaining time.Duration
	loop      bool
	startedAt time.Time
	timer     *time.Timer
	onDone    func(error)
	started   bool
	paused    bool
	done      bool
}

func (s *silentSound) Start(onDone func(err error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done || s.started {
		return
	}
	s.started = true
	s.onDone = onDone
	if !s.paused {
		s.armLocked()
	}
}

func (s *silentSound) armLocked() {
	if s.loop {
		return
	}
	s.startedAt = time.Now()
	s.timer = time.AfterFunc(s.remaining, s.fire)
}

func (s *silentSound) fire() {
	s.mu.Lock()
	if s.done || s.paused {
		s.mu.Unlock()
		return
	}
	s.done = true
	cb := s.onDone
	s.mu.Unlock()
	if cb != nil {
		cb(nil)
	}
}

func (s *silentSound) SetVolume(float64) {}

func (s *silentSound) SetPaused(paused bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done || s.paused == paused {
		return
	}
	s.paused = paused
	if !s.started {
		return
	}
	if paused {
		if s.timer != nil && s.timer.Stop() {
			s.remaining -= time.Since(s.startedAt)
			if s.remaining < 0 {
				s.remaining = 0
			}
		}
		return
	}
	s.armLocked()
}

func (s *silentSound) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done = true
	if s.timer != nil {
		s.timer.Stop()
	}
}
