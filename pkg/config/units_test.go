package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"8s", 8 * time.Second, false},
		{"1500ms", 1500 * time.Millisecond, false},
		{"1.5h", 90 * time.Minute, false},
		{"30d", 30 * Day, false},
		{"1w", Week, false},
		{"2d6h", 54 * time.Hour, false},
		{" 45 ", 45 * time.Second, false},
		{"0.5", 500 * time.Millisecond, false},
		{"", 0, false},
		{"soon", 0, true},
		{"3dx", 0, true},
		{"h", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDuration(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDurationYAML(t *testing.T) {
	type settings struct {
		Linger  Duration `yaml:"linger"`
		TTL     Duration `yaml:"ttl"`
		Timeout Duration `yaml:"timeout"`
	}

	var s settings
	require.NoError(t, yaml.Unmarshal([]byte("linger: 8s\nttl: 2d\ntimeout: 20\n"), &s))
	assert.Equal(t, 8*time.Second, s.Linger.Std())
	assert.Equal(t, 2*Day, s.TTL.Std())
	assert.Equal(t, 20*time.Second, s.Timeout.Std())

	out, err := yaml.Marshal(s)
	require.NoError(t, err)
	assert.Equal(t, "linger: 8s\nttl: 2d\ntimeout: 20s\n", string(out))
}

func TestDurationYAML_ReportsLine(t *testing.T) {
	var s struct {
		TTL Duration `yaml:"ttl"`
	}
	err := yaml.Unmarshal([]byte("# cache\nttl: forever\n"), &s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}
