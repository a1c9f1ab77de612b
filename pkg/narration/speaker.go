package narration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"flyover/pkg/audio"
	"flyover/pkg/model"
	"flyover/pkg/tracker"
	"flyover/pkg/tts"
)

// Speaker plays one-off speech through the foreground slot. It prefers the
// cloud provider and drops to the slower on-device synthesizer when the
// cloud is unconfigured or failing.
type Speaker struct {
	primary  tts.Provider
	fallback tts.Provider
	arbiter  *audio.Arbiter
	tracker  *tracker.Tracker
	voice    string
}

// NewSpeaker creates a speaker. fallback may be nil.
func NewSpeaker(primary, fallback tts.Provider, arb *audio.Arbiter, voice string, t *tracker.Tracker) *Speaker {
	return &Speaker{primary: primary, fallback: fallback, arbiter: arb, voice: voice, tracker: t}
}

// Synthesize renders text, falling back to the on-device synthesizer.
func (s *Speaker) Synthesize(ctx context.Context, text string) (*model.Audio, error) {
	a, err := s.primary.Synthesize(ctx, text, s.voice)
	if err == nil && !a.Empty() {
		return a, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err == nil {
		err = errors.New("empty audio")
	}
	if s.fallback == nil {
		return nil, fmt.Errorf("speech synthesis failed: %w", err)
	}

	if errors.Is(err, tts.ErrNoCredentials) {
		slog.Debug("Speaker: no cloud credentials, using on-device voice", "fallback", tts.NameOf(s.fallback))
	} else {
		slog.Warn("Speaker: cloud synthesis failed, using on-device voice",
			"provider", tts.NameOf(s.primary), "fallback", tts.NameOf(s.fallback), "status", tts.StatusOf(err), "error", err)
	}

	fa, ferr := s.fallback.Synthesize(ctx, text, "")
	if ferr != nil {
		return nil, fmt.Errorf("fallback synthesis failed: %w", errors.Join(err, ferr))
	}
	if fa.Empty() {
		return nil, fmt.Errorf("fallback synthesis returned no audio: %w", err)
	}
	s.tracker.Track(tts.NameOf(s.fallback), tracker.Fallback)
	return fa, nil
}

// Speak synthesizes text and plays it in the foreground, superseding
// whatever was playing there.
func (s *Speaker) Speak(ctx context.Context, text, label string) (*audio.Playback, error) {
	a, err := s.Synthesize(ctx, text)
	if err != nil {
		return nil, err
	}
	return s.arbiter.PlayForeground(audio.FromAudio(a, label)), nil
}
