package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name          string
		content       string
		env           map[string]string
		validate      func(*testing.T, *Config)
		checkFile     func(*testing.T, string)
		expectedError bool
	}{
		{
			name: "NewFile_Defaults",
			validate: func(t *testing.T, cfg *Config) {
				if cfg.TTS.Engine != "cartesia" {
					t.Errorf("expected default TTS engine 'cartesia', got '%s'", cfg.TTS.Engine)
				}
				if cfg.Narration.Concurrency != 2 {
					t.Errorf("expected concurrency 2, got %d", cfg.Narration.Concurrency)
				}
				if cfg.Tour.Linger.Std() != 8*time.Second {
					t.Errorf("expected linger 8s, got %v", cfg.Tour.Linger.Std())
				}
			},
			checkFile: func(t *testing.T, path string) {
				content, err := os.ReadFile(path)
				if err != nil {
					t.Fatalf("failed to read config file: %v", err)
				}
				if !strings.Contains(string(content), "engine: cartesia") {
					t.Error("config file missing default values")
				}
				if !strings.Contains(string(content), "# Options: cartesia") {
					t.Error("config file missing engine comment")
				}
			},
		},
		{
			name:    "ExistingFile_Override",
			content: "tts:\n  engine: edge-tts\ntour:\n  linger: 3s\n",
			validate: func(t *testing.T, cfg *Config) {
				if cfg.TTS.Engine != "edge-tts" {
					t.Errorf("expected TTS engine 'edge-tts', got '%s'", cfg.TTS.Engine)
				}
				if cfg.Tour.Linger.Std() != 3*time.Second {
					t.Errorf("expected linger 3s, got %v", cfg.Tour.Linger.Std())
				}
				if cfg.Tour.Zoom != 17.5 {
					t.Errorf("expected default zoom to survive merge, got %v", cfg.Tour.Zoom)
				}
			},
			checkFile: func(t *testing.T, path string) {
				content, _ := os.ReadFile(path)
				if strings.Contains(string(content), "Flyover Configuration") {
					t.Error("existing file must not be rewritten")
				}
			},
		},
		{
			name:    "EnvFallback",
			content: "tts:\n  cartesia:\n    key: \"\"\n",
			env:     map[string]string{"CARTESIA_API_KEY": "ck-env", "GEMINI_API_KEY": "gk-env"},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.TTS.Cartesia.Key != "ck-env" {
					t.Errorf("expected cartesia key from env, got %q", cfg.TTS.Cartesia.Key)
				}
				if cfg.LLM.Key != "gk-env" {
					t.Errorf("expected gemini key from env, got %q", cfg.LLM.Key)
				}
			},
		},
		{
			name:          "InvalidConcurrency",
			content:       "narration:\n  concurrency: 0\n",
			expectedError: true,
		},
		{
			name:          "InvalidVolume",
			content:       "audio:\n  background_volume: 1.5\n",
			expectedError: true,
		},
		{
			name:          "Malformed",
			content:       "tour: [",
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CARTESIA_API_KEY", "")
			t.Setenv("GEMINI_API_KEY", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			path := filepath.Join(t.TempDir(), "flyover.yaml")
			if tt.content != "" {
				if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
					t.Fatalf("failed to setup test file: %v", err)
				}
			}

			cfg, err := Load(path)
			if (err != nil) != tt.expectedError {
				t.Fatalf("Load() error = %v, expectedError %v", err, tt.expectedError)
			}
			if tt.expectedError {
				return
			}
			if tt.validate != nil {
				tt.validate(t, cfg)
			}
			if tt.checkFile != nil {
				tt.checkFile(t, path)
			}
		})
	}
}

func TestGenerateDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "flyover.yaml")

	if err := GenerateDefault(path); err != nil {
		t.Fatalf("GenerateDefault failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config not written: %v", err)
	}

	if err := os.WriteFile(path, []byte("custom: true\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := GenerateDefault(path); err != nil {
		t.Fatalf("GenerateDefault on existing file failed: %v", err)
	}
	content, _ := os.ReadFile(path)
	if string(content) != "custom: true\n" {
		t.Error("GenerateDefault overwrote an existing file")
	}
}
