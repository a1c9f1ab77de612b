package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	TTS       TTSConfig       `yaml:"tts"`
	Narration NarrationConfig `yaml:"narration"`
	Tour      TourConfig      `yaml:"tour"`
	Audio     AudioConfig     `yaml:"audio"`
	LLM       LLMConfig       `yaml:"llm"`
	Cache     CacheConfig     `yaml:"cache"`
	Registry  RegistryConfig  `yaml:"registry"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
}

// CartesiaConfig holds settings for the Cartesia cloud synthesizer.
type CartesiaConfig struct {
	Key        string   `yaml:"key"`
	VoiceID    string   `yaml:"voice"`
	Model      string   `yaml:"model"`
	Version    string   `yaml:"version"`
	SampleRate int      `yaml:"sample_rate"`
	Speed      string   `yaml:"speed"`
	Timeout    Duration `yaml:"timeout"`
}

// EdgeTTSConfig holds settings for Edge TTS.
type EdgeTTSConfig struct {
	VoiceID string `yaml:"voice"` // e.g. "en-US-AvaMultilingualNeural"
}

// BreakerConfig holds circuit breaker settings for the cloud synthesizer.
type BreakerConfig struct {
	MaxFailures uint32   `yaml:"max_failures"`
	OpenFor     Duration `yaml:"open_for"`
}

// TTSConfig holds Text-To-Speech settings.
type TTSConfig struct {
	Engine   string         `yaml:"engine"`
	Fallback string         `yaml:"fallback"` // on-device synthesizer used by direct speech
	Cartesia CartesiaConfig `yaml:"cartesia"`
	EdgeTTS  EdgeTTSConfig  `yaml:"edge_tts"`
	Breaker  BreakerConfig  `yaml:"breaker"`
	History  string         `yaml:"history"` // log of every synthesis request, empty to disable
}

// NarrationConfig holds settings for the synthesis pipeline.
type NarrationConfig struct {
	Concurrency    int      `yaml:"concurrency"`
	IntroText      string   `yaml:"intro_text"`
	IntroFile      string   `yaml:"intro_file"` // pre-recorded intro, preferred over IntroText
	PrepareTimeout Duration `yaml:"prepare_timeout"`
	Rewrite        bool     `yaml:"rewrite"` // let the LLM rewrite stop narratives before start
}

// TourConfig holds the cinematic constants used when compiling tours.
type TourConfig struct {
	Zoom          float64  `yaml:"zoom"`
	Pitch         float64  `yaml:"pitch"`
	FlightTime    Duration `yaml:"flight_time"`
	Linger        Duration `yaml:"linger"`
	MoveTolerance Duration `yaml:"move_tolerance"`
	Camera        string   `yaml:"camera"` // "browser", "sim"
}

// AudioConfig holds playback settings.
type AudioConfig struct {
	ForegroundVolume float64  `yaml:"foreground_volume"`
	FlyoverTrack     string   `yaml:"flyover_track"`
	ShowcaseTrack    string   `yaml:"showcase_track"`
	BackgroundVolume float64  `yaml:"background_volume"`
	Fade             Duration `yaml:"fade"`
	Device           bool     `yaml:"device"` // false plays into the void (headless)
}

// LLMConfig holds settings for the Large Language Model provider.
type LLMConfig struct {
	Provider          string  `yaml:"provider"` // "gemini", "none"
	Model             string  `yaml:"model"`
	Key               string  `yaml:"key"`
	History           string  `yaml:"history"`
	Temperature       float32 `yaml:"temperature"`
	TemperatureJitter float32 `yaml:"temperature_jitter"`
}

// CacheConfig holds settings for the synthesized audio cache.
type CacheConfig struct {
	Enabled bool     `yaml:"enabled"`
	Path    string   `yaml:"path"`
	TTL     Duration `yaml:"ttl"`
}

// RegistryConfig holds the location source.
type RegistryConfig struct {
	Path  string   `yaml:"path"`
	Watch Duration `yaml:"watch"` // reload interval when the file changes, 0 to disable
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address string `yaml:"address"`
	Static  string `yaml:"static"` // built map UI, served with index.html fallback
}

// LogConfig holds logging settings.
type LogConfig struct {
	Server   LogSettings `yaml:"server"`
	Requests LogSettings `yaml:"requests"`
	Trace    bool        `yaml:"trace"`
}

// LogSettings holds settings for a specific logger.
type LogSettings struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

// DefaultIntro is spoken while the tour prepares when no intro file is configured.
const DefaultIntro = "Absolutely! I'd love to take you on a tour. Get ready for a cinematic flyover of some " +
	"incredible spots around Orlando. We'll swoop through the city and I'll share the highlights at each location. Here we go!"

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		TTS: TTSConfig{
			Engine:   "cartesia",
			Fallback: "edge-tts",
			Cartesia: CartesiaConfig{
				VoiceID:    "b7d50908-b17c-442d-ad8d-810c63997ed9",
				Model:      "sonic-2",
				Version:    "2024-11-13",
				SampleRate: 24000,
				Speed:      "fast",
				Timeout:    Duration(30 * time.Second),
			},
			EdgeTTS: EdgeTTSConfig{
				VoiceID: "en-US-AvaMultilingualNeural",
			},
			Breaker: BreakerConfig{
				MaxFailures: 3,
				OpenFor:     Duration(30 * time.Second),
			},
			History: "./logs/tts.log",
		},
		Narration: NarrationConfig{
			Concurrency:    2,
			IntroText:      DefaultIntro,
			PrepareTimeout: Duration(20 * time.Second),
			Rewrite:        false,
		},
		Tour: TourConfig{
			Zoom:          17.5,
			Pitch:         60,
			FlightTime:    Duration(5 * time.Second),
			Linger:        Duration(8 * time.Second),
			MoveTolerance: Duration(200 * time.Millisecond),
			Camera:        "browser",
		},
		Audio: AudioConfig{
			ForegroundVolume: 1.0,
			BackgroundVolume: 0.15,
			Fade:             Duration(1500 * time.Millisecond),
			Device:           true,
		},
		LLM: LLMConfig{
			Provider:          "gemini",
			Model:             "gemini-2.5-flash-lite",
			History:           "./logs/gemini.log",
			Temperature:       0.7,
			TemperatureJitter: 0.2,
		},
		Cache: CacheConfig{
			Enabled: true,
			Path:    "./data/flyover.db",
			TTL:     Duration(30 * Day),
		},
		Registry: RegistryConfig{
			Path:  "./data/locations.geojson",
			Watch: Duration(5 * time.Second),
		},
		Server: ServerConfig{
			Address: "localhost:1920",
			Static:  "./web/dist",
		},
		Log: LogConfig{
			Server: LogSettings{
				Path:  "./logs/server.log",
				Level: "INFO",
			},
			Requests: LogSettings{
				Path:  "./logs/requests.log",
				Level: "INFO",
			},
		},
	}
}

// Load loads the configuration from the given path.
// If the file does not exist, it creates it with default values.
// Existing files are merged over the defaults and never written back.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if err := Save(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to save config file: %w", err)
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv fills empty secrets from the environment. Values found there are not saved.
func applyEnv(cfg *Config) {
	if cfg.LLM.Key == "" {
		cfg.LLM.Key = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.TTS.Cartesia.Key == "" {
		cfg.TTS.Cartesia.Key = os.Getenv("CARTESIA_API_KEY")
	}
	if v := os.Getenv("CARTESIA_VOICE_ID"); v != "" && cfg.TTS.Cartesia.VoiceID == "" {
		cfg.TTS.Cartesia.VoiceID = v
	}
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.Narration.Concurrency < 1 {
		return fmt.Errorf("narration.concurrency must be at least 1, got %d", c.Narration.Concurrency)
	}
	if c.Audio.BackgroundVolume < 0 || c.Audio.BackgroundVolume > 1 {
		return fmt.Errorf("audio.background_volume must be within [0,1], got %.2f", c.Audio.BackgroundVolume)
	}
	if c.Tour.Linger < 0 || c.Tour.FlightTime < 0 {
		return fmt.Errorf("tour durations must not be negative")
	}
	return nil
}

// Save writes the configuration to the path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# Flyover Configuration
# ---------------------
# Supported Units:
#   Duration: ns, us (or µs), ms, s, m, h, d (day), w (week)
# Secrets may be left empty and supplied via CARTESIA_API_KEY / GEMINI_API_KEY.

`)
	data = append(header, data...)

	reEngine := regexp.MustCompile(`(?m)^(\s+)engine:`)
	data = reEngine.ReplaceAll(data, []byte("${1}# Options: cartesia, edge-tts, windows-sapi\n${1}engine:"))

	reFallback := regexp.MustCompile(`(?m)^(\s+)fallback:`)
	data = reFallback.ReplaceAll(data, []byte("${1}# On-device synthesizer for direct speech: edge-tts, windows-sapi, none\n${1}fallback:"))

	reCamera := regexp.MustCompile(`(?m)^(\s+)camera:`)
	data = reCamera.ReplaceAll(data, []byte("${1}# Options: browser (websocket map), sim (headless timer)\n${1}camera:"))

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateDefault creates a default config file at the given path.
// Returns nil if the file already exists.
func GenerateDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return Save(path, DefaultConfig())
}
