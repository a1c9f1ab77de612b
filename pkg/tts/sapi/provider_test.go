package sapi

import (
	"context"
	"os"
	"runtime"
	"testing"

	"github.com/go-ole/go-ole"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVariantInt(t *testing.T) {
	tests := []struct {
		name string
		v    ole.VARIANT
		want int
	}{
		{"I4", ole.NewVariant(ole.VT_I4, 32), 32},
		{"Zero", ole.NewVariant(ole.VT_I4, 0), 0},
		{"I2", ole.NewVariant(ole.VT_I2, 7), 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, variantInt(&tt.v))
		})
	}
}

func TestUnsupportedPlatform(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("SAPI is available here")
	}
	p := NewProvider(t.TempDir())

	_, err := p.Synthesize(context.Background(), "hello", "")
	assert.ErrorIs(t, err, ErrUnsupported)
	_, err = p.Voices(context.Background())
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestLocal_SAPI(t *testing.T) {
	if runtime.GOOS != "windows" {
		t.Skip("SAPI only works on Windows")
	}
	if os.Getenv("TEST_TTS") == "" {
		t.Skip("Set TEST_TTS=1 to run SAPI integration test")
	}

	p := NewProvider(t.TempDir())
	voices, err := p.Voices(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, voices)

	audio, err := p.Synthesize(context.Background(), "Next up, Lake Eola.", voices[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "wav", audio.Format)
	assert.NotEmpty(t, audio.Data)
}
