package cartesia

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"flyover/pkg/config"
	"flyover/pkg/model"
	"flyover/pkg/tracker"
	"flyover/pkg/tts"
)

const (
	defaultURL = "https://api.cartesia.ai/tts/bytes"
	name       = "cartesia"

	// wavHeaderSize is the smallest body that can hold a playable RIFF clip.
	wavHeaderSize = 44
)

// Provider implements tts.Provider for the Cartesia bytes endpoint.
type Provider struct {
	cfg     config.CartesiaConfig
	url     string
	client  *http.Client
	tracker *tracker.Tracker
	breaker *gobreaker.CircuitBreaker[*model.Audio]
	backoff time.Duration
}

// NewProvider creates a new Cartesia provider guarded by a circuit breaker.
func NewProvider(cfg config.CartesiaConfig, bcfg config.BreakerConfig, t *tracker.Tracker) *Provider {
	p := &Provider{
		cfg:     cfg,
		url:     defaultURL,
		client:  &http.Client{Timeout: cfg.Timeout.Std()},
		tracker: t,
		backoff: 500 * time.Millisecond,
	}

	maxFailures := bcfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = 3
	}
	p.breaker = gobreaker.NewCircuitBreaker[*model.Audio](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     bcfg.OpenFor.Std(),
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			// Cancellation is the caller's decision, not a provider fault.
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, tts.ErrNoCredentials)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Cartesia circuit changed state", "from", from.String(), "to", to.String())
		},
	})
	return p
}

// WithURL points the provider at a different endpoint.
func (p *Provider) WithURL(url string) *Provider {
	p.url = url
	return p
}

// Name implements tts.Named.
func (p *Provider) Name() string { return name }

// State reports the circuit breaker state ("closed", "half-open", "open").
func (p *Provider) State() string {
	return p.breaker.State().String()
}

type voiceSpec struct {
	Mode string `json:"mode"`
	ID   string `json:"id"`
}

type outputFormat struct {
	Container  string `json:"container"`
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
}

type controls struct {
	Speed string `json:"speed,omitempty"`
}

type requestBody struct {
	ModelID      string       `json:"model_id"`
	Transcript   string       `json:"transcript"`
	Voice        voiceSpec    `json:"voice"`
	OutputFormat outputFormat `json:"output_format"`
	Language     string       `json:"language"`
	Controls     *controls    `json:"__experimental_controls,omitempty"`
}

// Synthesize renders text to 16-bit PCM WAV.
func (p *Provider) Synthesize(ctx context.Context, text, voice string) (*model.Audio, error) {
	if p.cfg.Key == "" {
		return nil, tts.ErrNoCredentials
	}

	vid := p.cfg.VoiceID
	if voice != "" {
		vid = voice
	}
	if vid == "" {
		return nil, fmt.Errorf("no voice ID configured for Cartesia")
	}

	reqData := requestBody{
		ModelID:    p.cfg.Model,
		Transcript: tts.Clean(text),
		Voice:      voiceSpec{Mode: "id", ID: vid},
		OutputFormat: outputFormat{
			Container:  "wav",
			Encoding:   "pcm_s16le",
			SampleRate: p.cfg.SampleRate,
		},
		Language: "en",
	}
	if p.cfg.Speed != "" {
		reqData.Controls = &controls{Speed: p.cfg.Speed}
	}

	jsonData, err := json.Marshal(reqData)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	audio, err := p.breaker.Execute(func() (*model.Audio, error) {
		return p.executeWithRetry(ctx, jsonData, reqData.Transcript)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, tts.NewFatalError(http.StatusServiceUnavailable, "cartesia circuit open")
		}
		return nil, err
	}
	audio.Voice = vid
	return audio, nil
}

func (p *Provider) executeWithRetry(ctx context.Context, jsonData []byte, text string) (*model.Audio, error) {
	maxRetries := 2 // Total 3 attempts
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(p.backoff):
				tts.Log("CARTESIA", fmt.Sprintf("Retrying request (attempt %d/%d)...", attempt+1, maxRetries+1), 0, lastErr)
			}
		}

		audio, retry, err := p.executeAttempt(ctx, jsonData, text)
		if err == nil {
			p.tracker.Track(name, tracker.Success)
			return audio, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !retry {
			p.tracker.Track(name, tracker.Failure)
			return nil, err
		}
		lastErr = err
	}

	p.tracker.Track(name, tracker.Failure)
	return nil, tts.NewFatalError(http.StatusBadGateway, fmt.Sprintf("Cartesia failed after %d attempts: %v", maxRetries+1, lastErr))
}

func (p *Provider) executeAttempt(ctx context.Context, jsonData []byte, text string) (audio *model.Audio, retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-API-Key", p.cfg.Key)
	req.Header.Set("Cartesia-Version", p.cfg.Version)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		tts.Log("CARTESIA", text, 0, err)
		return nil, true, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		tts.Log("CARTESIA", text, resp.StatusCode, err)
		return nil, true, fmt.Errorf("failed to read audio: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		tts.Log("CARTESIA", text, resp.StatusCode, nil)
		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return nil, false, tts.NewFatalError(resp.StatusCode, fmt.Sprintf("Cartesia auth failed: %s", string(body)))
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return nil, true, fmt.Errorf("cartesia api error (status %d): %s", resp.StatusCode, string(body))
		default:
			return nil, false, fmt.Errorf("cartesia rejected request (status %d): %s", resp.StatusCode, string(body))
		}
	}

	if len(body) < wavHeaderSize || tts.SniffFormat(body) != "wav" {
		tts.Log("CARTESIA", fmt.Sprintf("Malformed audio (%d bytes)", len(body)), resp.StatusCode, nil)
		return nil, false, fmt.Errorf("cartesia returned malformed audio (%d bytes)", len(body))
	}

	tts.Log("CARTESIA", text, resp.StatusCode, nil)
	return &model.Audio{Data: body, Format: "wav", Provider: name}, false, nil
}

// Voices returns the configured voice. Cartesia hosts a large shared library,
// so listing it all is left to their dashboard.
func (p *Provider) Voices(ctx context.Context) ([]tts.Voice, error) {
	return []tts.Voice{
		{ID: p.cfg.VoiceID, Name: "Configured Cartesia Voice", Language: "en", IsNeural: true},
	}, nil
}
