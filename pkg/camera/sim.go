package camera

import (
	"context"
	"sync"
	"time"
)

// SimEngine is a headless engine that reports each move as ended after its
// duration scaled by Speed.
type SimEngine struct {
	Speed float64 // 1 = real time, 0 = instant

	mu      sync.Mutex
	closed  bool
	last    Move
	moves   int
	pending map[string]chan struct{}
}

// NewSimEngine creates a headless engine running at speed.
func NewSimEngine(speed float64) *SimEngine {
	return &SimEngine{Speed: speed, pending: make(map[string]chan struct{})}
}

// FlyTo implements Engine.
func (s *SimEngine) FlyTo(ctx context.Context, m Move) (<-chan struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrNotReady
	}
	s.last = m
	s.moves++

	done := make(chan struct{})
	s.pending[m.ID] = done
	d := time.Duration(float64(m.Duration) * s.Speed)
	time.AfterFunc(d, func() { s.end(m.ID) })
	return done, nil
}

func (s *SimEngine) end(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.pending[id]; ok {
		delete(s.pending, id)
		close(ch)
	}
}

// Stop ends every pending move immediately.
func (s *SimEngine) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ch := range s.pending {
		delete(s.pending, id)
		close(ch)
	}
}

// Close tears the engine down. Later moves fail with ErrNotReady.
func (s *SimEngine) Close() {
	s.Stop()
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// Last returns the most recent move and how many were issued.
func (s *SimEngine) Last() (Move, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.moves
}
