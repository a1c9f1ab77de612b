package cartesia

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flyover/pkg/config"
	"flyover/pkg/tracker"
	"flyover/pkg/tts"
)

func fakeWAV(samples int) []byte {
	data := make([]byte, 44+samples*2)
	copy(data[0:4], "RIFF")
	binary.LittleEndian.PutUint32(data[4:8], uint32(36+samples*2))
	copy(data[8:12], "WAVE")
	copy(data[12:16], "fmt ")
	binary.LittleEndian.PutUint32(data[16:20], 16)
	binary.LittleEndian.PutUint16(data[20:22], 1)
	binary.LittleEndian.PutUint16(data[22:24], 1)
	binary.LittleEndian.PutUint32(data[24:28], 24000)
	binary.LittleEndian.PutUint32(data[28:32], 48000)
	binary.LittleEndian.PutUint16(data[32:34], 2)
	binary.LittleEndian.PutUint16(data[34:36], 16)
	copy(data[36:40], "data")
	binary.LittleEndian.PutUint32(data[40:44], uint32(samples*2))
	return data
}

func testProvider(url string, key string, breaker config.BreakerConfig) *Provider {
	cfg := config.DefaultConfig().TTS.Cartesia
	cfg.Key = key
	p := NewProvider(cfg, breaker, tracker.New()).WithURL(url)
	p.backoff = time.Millisecond
	return p
}

func TestSynthesize_Request(t *testing.T) {
	tts.SetLogPath("")

	var got requestBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "ck-test", r.Header.Get("X-API-Key"))
		assert.Equal(t, "2024-11-13", r.Header.Get("Cartesia-Version"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write(fakeWAV(100))
	}))
	defer srv.Close()

	p := testProvider(srv.URL, "ck-test", config.BreakerConfig{MaxFailures: 3, OpenFor: config.Duration(time.Second)})
	audio, err := p.Synthesize(context.Background(), "Guide: Lake  Eola at dusk.", "")
	require.NoError(t, err)

	assert.Equal(t, "wav", audio.Format)
	assert.Equal(t, "cartesia", audio.Provider)
	assert.Equal(t, "b7d50908-b17c-442d-ad8d-810c63997ed9", audio.Voice)
	assert.Len(t, audio.Data, 244)

	assert.Equal(t, "sonic-2", got.ModelID)
	assert.Equal(t, "Lake Eola at dusk.", got.Transcript)
	assert.Equal(t, voiceSpec{Mode: "id", ID: "b7d50908-b17c-442d-ad8d-810c63997ed9"}, got.Voice)
	assert.Equal(t, outputFormat{Container: "wav", Encoding: "pcm_s16le", SampleRate: 24000}, got.OutputFormat)
	assert.Equal(t, "en", got.Language)
	require.NotNil(t, got.Controls)
	assert.Equal(t, "fast", got.Controls.Speed)
}

func TestSynthesize_NoKey(t *testing.T) {
	p := testProvider("http://127.0.0.1:0", "", config.BreakerConfig{})
	_, err := p.Synthesize(context.Background(), "hello", "")
	assert.ErrorIs(t, err, tts.ErrNoCredentials)
}

func TestSynthesize_Errors(t *testing.T) {
	tts.SetLogPath("")

	tests := []struct {
		name       string
		status     int
		body       []byte
		wantCalls  int32
		wantStatus int
	}{
		{"AuthFailsFast", http.StatusUnauthorized, []byte(`{"error":"bad key"}`), 1, http.StatusUnauthorized},
		{"BadRequestNoRetry", http.StatusBadRequest, []byte(`{"error":"bad voice"}`), 1, 0},
		{"ServerErrorRetries", http.StatusInternalServerError, []byte("oops"), 3, http.StatusBadGateway},
		{"RateLimitRetries", http.StatusTooManyRequests, []byte("slow down"), 3, http.StatusBadGateway},
		{"MalformedBody", http.StatusOK, []byte("not audio"), 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.WriteHeader(tt.status)
				_, _ = w.Write(tt.body)
			}))
			defer srv.Close()

			p := testProvider(srv.URL, "ck", config.BreakerConfig{MaxFailures: 10, OpenFor: config.Duration(time.Second)})
			audio, err := p.Synthesize(context.Background(), "hello", "")
			assert.Nil(t, audio)
			require.Error(t, err)
			assert.Equal(t, tt.wantStatus, tts.StatusOf(err), "fatal classification: %v", err)
			assert.Equal(t, tt.wantCalls, atomic.LoadInt32(&calls))
		})
	}
}

func TestSynthesize_CircuitOpens(t *testing.T) {
	tts.SetLogPath("")

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	p := testProvider(srv.URL, "ck", config.BreakerConfig{MaxFailures: 2, OpenFor: config.Duration(time.Minute)})
	for i := 0; i < 2; i++ {
		_, err := p.Synthesize(context.Background(), "hello", "")
		require.Error(t, err)
	}
	assert.Equal(t, "open", p.State())

	_, err := p.Synthesize(context.Background(), "hello", "")
	var fe *tts.FatalError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, http.StatusServiceUnavailable, fe.StatusCode)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls), "open circuit must not reach the server")
}

func TestSynthesize_CancelDoesNotTrip(t *testing.T) {
	tts.SetLogPath("")

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	p := testProvider(srv.URL, "ck", config.BreakerConfig{MaxFailures: 1, OpenFor: config.Duration(time.Minute)})
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := p.Synthesize(ctx, "hello", "")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "closed", p.State())
}
