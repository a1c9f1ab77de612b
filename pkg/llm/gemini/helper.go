package gemini

import (
	"math/rand"

	"google.golang.org/genai"
)

// maxNarrationTokens keeps stop narratives to a couple of sentences.
const maxNarrationTokens = 100

// generation returns the request settings for an intent. Narration is short
// and slightly randomized; everything else uses the model defaults.
func (s *settings) generation(intent string) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if intent != "narrate" && intent != "intro" {
		return cfg
	}
	cfg.MaxOutputTokens = maxNarrationTokens
	if s.temperature > 0 {
		t := sampleTemperature(s.temperature, s.jitter)
		cfg.Temperature = &t
	}
	return cfg
}

// sampleTemperature draws from a normal distribution around base with
// σ = jitter/2, clamped to base±jitter and never below 0.1.
func sampleTemperature(base, jitter float32) float32 {
	if jitter <= 0 {
		return base
	}
	t := float64(base) + rand.NormFloat64()*float64(jitter)/2
	t = min(max(t, float64(base-jitter)), float64(base+jitter))
	return float32(max(t, 0.1))
}
