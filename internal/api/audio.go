package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"flyover/pkg/audio"
)

// MusicController plays the background bed.
type MusicController interface {
	Play(mode string, volume float64) error
	Stop() <-chan struct{}
	Mode() string
	Volume() float64
}

// Speaker synthesizes and plays one-off speech.
type Speaker interface {
	Speak(ctx context.Context, text, label string) (*audio.Playback, error)
}

// AudioHandler handles background music and direct speech.
type AudioHandler struct {
	music   MusicController
	speaker Speaker
}

// NewAudioHandler creates a new AudioHandler. Either collaborator may be nil.
func NewAudioHandler(music MusicController, speaker Speaker) *AudioHandler {
	return &AudioHandler{music: music, speaker: speaker}
}

// BackgroundRequest switches the background bed.
type BackgroundRequest struct {
	Mode   string   `json:"mode"` // "flyover", "showcase", "off"
	Volume *float64 `json:"volume,omitempty"`
}

// SpeakRequest asks for direct speech.
type SpeakRequest struct {
	Text string `json:"text"`
}

// HandleBackground handles POST /api/audio/background
func (h *AudioHandler) HandleBackground(w http.ResponseWriter, r *http.Request) {
	if h.music == nil {
		http.Error(w, "music disabled", http.StatusServiceUnavailable)
		return
	}
	var req BackgroundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.Mode == "off" || req.Mode == "" {
		h.music.Stop()
	} else {
		vol := -1.0
		if req.Volume != nil {
			vol = *req.Volume
		}
		if err := h.music.Play(req.Mode, vol); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	slog.Debug("Background music", "mode", req.Mode)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"mode":   h.music.Mode(),
		"volume": h.music.Volume(),
	})
}

// HandleSpeak handles POST /api/speak
func (h *AudioHandler) HandleSpeak(w http.ResponseWriter, r *http.Request) {
	if h.speaker == nil {
		http.Error(w, "speech disabled", http.StatusServiceUnavailable)
		return
	}
	var req SpeakRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		http.Error(w, "text is required", http.StatusBadRequest)
		return
	}

	pb, err := h.speaker.Speak(r.Context(), text, "speak")
	if err != nil {
		slog.Warn("API: speech failed", "error", err)
		http.Error(w, "speech unavailable", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "playing",
		"generation": pb.Generation(),
	})
}
