package narration

import (
	"context"
	"errors"
	"sync"

	"flyover/pkg/model"
	"flyover/pkg/tts"
)

var wavHeader = []byte("RIFF\x24\x00\x00\x00WAVEfmt ")

func clip(voice string) *model.Audio {
	return &model.Audio{Data: append([]byte(nil), wavHeader...), Format: "wav", Voice: voice}
}

// gated blocks every call until release is closed or the call is aborted.
type gated struct {
	mu     sync.Mutex
	calls  int
	active int
	peak   int
	texts  []string

	started chan string
	release chan struct{}
	result  func(text string) (*model.Audio, error)
}

func newGated() *gated {
	return &gated{
		started: make(chan string, 64),
		release: make(chan struct{}),
	}
}

func (g *gated) Synthesize(ctx context.Context, text, voice string) (*model.Audio, error) {
	g.mu.Lock()
	g.calls++
	g.active++
	g.peak = max(g.peak, g.active)
	g.texts = append(g.texts, text)
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		g.active--
		g.mu.Unlock()
	}()

	g.started <- text
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if g.result != nil {
		return g.result(text)
	}
	return clip(voice), nil
}

func (g *gated) Voices(ctx context.Context) ([]tts.Voice, error) { return nil, nil }

func (g *gated) stats() (calls, peak int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls, g.peak
}

// static answers immediately.
type static struct {
	name  string
	audio *model.Audio
	err   error
	calls int
	mu    sync.Mutex
}

func (s *static) Name() string { return s.name }

func (s *static) Synthesize(ctx context.Context, text, voice string) (*model.Audio, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.audio, s.err
}

func (s *static) Voices(ctx context.Context) ([]tts.Voice, error) { return nil, nil }

var errBoom = errors.New("boom")
