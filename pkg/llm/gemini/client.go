// Package gemini writes narration with Google Gemini through the genai SDK.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"google.golang.org/api/iterator"
	"google.golang.org/genai"

	"flyover/pkg/config"
	"flyover/pkg/tracker"
)

const (
	providerName = "gemini"
	defaultModel = "gemini-2.5-flash-lite"
)

// ErrNotConfigured is returned when no API key is set.
var ErrNotConfigured = errors.New("gemini client not configured")

// settings is an immutable view of the configuration, swapped whole on Configure.
type settings struct {
	api         *genai.Client // nil without a key
	model       string
	transcript  string
	temperature float32
	jitter      float32
}

// Client implements llm.Provider for Google Gemini.
type Client struct {
	cur     atomic.Pointer[settings]
	tracker *tracker.Tracker
	logMu   sync.Mutex
}

// NewClient creates a new Gemini client. A missing key yields a client whose
// calls fail with ErrNotConfigured.
func NewClient(cfg config.LLMConfig, t *tracker.Tracker) (*Client, error) {
	c := &Client{tracker: t}
	if err := c.Configure(cfg); err != nil {
		return nil, err
	}
	return c, nil
}

// Configure applies cfg. Calls already in flight finish on the old settings.
func (c *Client) Configure(cfg config.LLMConfig) error {
	s := &settings{
		model:       cfg.Model,
		transcript:  cfg.History,
		temperature: cfg.Temperature,
		jitter:      cfg.TemperatureJitter,
	}
	if s.model == "" {
		s.model = defaultModel
	}
	if cfg.Key != "" {
		api, err := genai.NewClient(context.Background(), &genai.ClientConfig{
			APIKey:  cfg.Key,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return fmt.Errorf("failed to create genai client: %w", err)
		}
		s.api = api
	}
	c.cur.Store(s)
	return nil
}

// GenerateText sends a prompt and returns the text response. name selects the
// generation settings and labels the transcript entry.
func (c *Client) GenerateText(ctx context.Context, name, prompt string) (string, error) {
	s := c.cur.Load()
	if s.api == nil {
		return "", ErrNotConfigured
	}

	start := time.Now()
	resp, err := s.api.Models.GenerateContent(ctx, s.model, genai.Text(prompt), s.generation(name))
	if err != nil {
		err = fmt.Errorf("generate text: %w", err)
	}
	var text string
	if err == nil {
		text, err = responseText(resp)
	}
	c.record(s, exchange{
		Time:     start,
		Intent:   name,
		Model:    s.model,
		Prompt:   prompt,
		Response: text,
		Error:    errString(err),
		Millis:   time.Since(start).Milliseconds(),
	})

	if err != nil {
		c.tracker.Track(providerName, tracker.Failure)
		return "", err
	}
	c.tracker.Track(providerName, tracker.Success)
	return text, nil
}

// HealthCheck verifies the key and model by looking the model up. When the
// model is missing the gemini models the key can use are logged.
func (c *Client) HealthCheck(ctx context.Context) error {
	s := c.cur.Load()
	if s.api == nil {
		return ErrNotConfigured
	}

	name := s.model
	if !strings.HasPrefix(name, "models/") {
		name = "models/" + name
	}
	_, err := s.api.Models.Get(ctx, name, nil)
	if err == nil {
		slog.Debug("Gemini model validation success", "model", s.model)
		return nil
	}

	slog.Warn("Gemini: configured model not found", "configured", s.model, "available", strings.Join(geminiModels(ctx, s.api), ", "))
	return fmt.Errorf("model %s unavailable: %w", s.model, err)
}

func geminiModels(ctx context.Context, api *genai.Client) []string {
	var names []string
	page, err := api.Models.List(ctx, nil)
	for err == nil {
		for _, m := range page.Items {
			if strings.Contains(strings.ToLower(m.Name), "gemini") {
				names = append(names, m.Name)
			}
		}
		page, err = page.Next(ctx)
	}
	if err != iterator.Done {
		slog.Debug("Gemini: failed to list models", "error", err)
	}
	return names
}

// exchange is one line of the JSON transcript.
type exchange struct {
	Time     time.Time `json:"time"`
	Intent   string    `json:"intent"`
	Model    string    `json:"model"`
	Prompt   string    `json:"prompt"`
	Response string    `json:"response,omitempty"`
	Error    string    `json:"error,omitempty"`
	Millis   int64     `json:"ms"`
}

func (c *Client) record(s *settings, e exchange) {
	if s.transcript == "" {
		return
	}
	line, err := json.Marshal(e)
	if err != nil {
		return
	}

	c.logMu.Lock()
	defer c.logMu.Unlock()
	if err := os.MkdirAll(filepath.Dir(s.transcript), 0o755); err != nil {
		return
	}
	f, err := os.OpenFile(s.transcript, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = f.Write(append(line, '\n'))
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", errors.New("no candidates returned")
	}
	cand := resp.Candidates[0]
	if cand.Content == nil {
		return "", fmt.Errorf("empty candidate (finish reason %s)", cand.FinishReason)
	}

	var sb strings.Builder
	for _, part := range cand.Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}
	if sb.Len() == 0 {
		return "", errors.New("no text in response")
	}
	return sb.String(), nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
