package main

import (
	"context"
	"testing"

	"flyover/internal/api"
	"flyover/pkg/audio"
	"flyover/pkg/camera"
	"flyover/pkg/config"
	"flyover/pkg/model"
	"flyover/pkg/tts"
	"flyover/pkg/tts/cached"
)

func TestInitSynthesis(t *testing.T) {
	tests := []struct {
		name         string
		engine       string
		fallback     string
		wantPrimary  string
		wantFallback string
	}{
		{"CartesiaWithEdge", "cartesia", "edge-tts", "cartesia", "edge-tts"},
		{"EdgeOnly", "edge-tts", "edge-tts", "edge-tts", ""},
		{"UnknownEngine", "espeak", "", "edge-tts", ""},
		{"SapiFallback", "cartesia", "sapi", "cartesia", "windows-sapi"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.TTS.Engine = tt.engine
			cfg.TTS.Fallback = tt.fallback

			primary, fallback := initSynthesis(cfg, nil, nil)
			if got := tts.NameOf(primary); got != tt.wantPrimary {
				t.Errorf("primary = %q, want %q", got, tt.wantPrimary)
			}
			got := ""
			if fallback != nil {
				got = tts.NameOf(fallback)
			}
			if got != tt.wantFallback {
				t.Errorf("fallback = %q, want %q", got, tt.wantFallback)
			}
		})
	}
}

func TestInitSynthesis_Cached(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.TTS.Engine = "edge-tts"
	primary, _ := initSynthesis(cfg, fakeCache{}, nil)
	if _, ok := primary.(*cached.Provider); !ok {
		t.Errorf("primary = %T, want cached wrapper", primary)
	}
}

func TestVoiceFor(t *testing.T) {
	cfg := config.DefaultConfig()
	if got := voiceFor(cfg); got != cfg.TTS.Cartesia.VoiceID {
		t.Errorf("cartesia voice = %q", got)
	}
	cfg.TTS.Engine = "edge-tts"
	if got := voiceFor(cfg); got != cfg.TTS.EdgeTTS.VoiceID {
		t.Errorf("edge voice = %q", got)
	}
	cfg.TTS.Engine = "sapi"
	if got := voiceFor(cfg); got != "" {
		t.Errorf("sapi voice = %q, want provider default", got)
	}
}

func TestInitCamera(t *testing.T) {
	cfg := config.DefaultConfig()
	hub := api.NewHub()
	if e := initCamera(cfg, hub); e != camera.Engine(hub) {
		t.Errorf("browser camera = %T, want hub", e)
	}
	cfg.Tour.Camera = "sim"
	if _, ok := initCamera(cfg, hub).(*camera.SimEngine); !ok {
		t.Error("sim camera not selected")
	}
}

func TestMusicTracks(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Audio.FlyoverTrack = "music/flyover.mp3"
	tracks := musicTracks(cfg)
	if tracks[audio.ModeFlyover].Path != "music/flyover.mp3" || tracks[audio.ModeFlyover].Volume != 0.15 {
		t.Errorf("flyover track = %+v", tracks[audio.ModeFlyover])
	}
	if tracks[audio.ModeShowcase].Volume != 0.3 {
		t.Errorf("showcase volume = %v", tracks[audio.ModeShowcase].Volume)
	}
}

type fakeCache struct{}

func (fakeCache) Get(ctx context.Context, key string) (*model.Audio, bool) { return nil, false }

func (fakeCache) Put(ctx context.Context, key string, a *model.Audio) error { return nil }
