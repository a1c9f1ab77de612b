package cached

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"

	"flyover/pkg/cache"
	"flyover/pkg/model"
	"flyover/pkg/tracker"
	"flyover/pkg/tts"
)

// Provider serves repeated narrations from the audio cache and only reaches
// the wrapped provider on a miss.
type Provider struct {
	inner   tts.Provider
	store   cache.Store
	tracker *tracker.Tracker
}

// Wrap decorates inner with store.
func Wrap(inner tts.Provider, store cache.Store, t *tracker.Tracker) *Provider {
	return &Provider{inner: inner, store: store, tracker: t}
}

// Name reports the wrapped provider's name.
func (p *Provider) Name() string { return tts.NameOf(p.inner) }

// Key derives the cache key for a synthesis request.
func Key(provider, voice, text string) string {
	h := sha256.Sum256([]byte(provider + "\x00" + voice + "\x00" + tts.Clean(text)))
	return "tts:" + provider + ":" + hex.EncodeToString(h[:16])
}

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, text, voice string) (*model.Audio, error) {
	name := p.Name()
	key := Key(name, voice, text)

	if a, ok := p.store.Get(ctx, key); ok && tts.SniffFormat(a.Data) == a.Format {
		p.tracker.Track(name, tracker.CacheHit)
		return a, nil
	}
	p.tracker.Track(name, tracker.CacheMiss)

	audio, err := p.inner.Synthesize(ctx, text, voice)
	if err != nil {
		return nil, err
	}
	if !audio.Empty() {
		if err := p.store.Put(ctx, key, audio); err != nil {
			slog.Warn("Failed to cache narration audio", "provider", name, "error", err)
		}
	}
	return audio, nil
}

// Voices implements tts.Provider.
func (p *Provider) Voices(ctx context.Context) ([]tts.Voice, error) {
	return p.inner.Voices(ctx)
}
