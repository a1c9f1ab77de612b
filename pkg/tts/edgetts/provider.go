// Package edgetts speaks through the Microsoft Edge read-aloud service. It is
// the free on-device-grade fallback for direct speech.
package edgetts

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"flyover/pkg/model"
	"flyover/pkg/tracker"
	"flyover/pkg/tts"
)

const (
	name         = "edge-tts"
	outputFormat = "audio-24khz-48kbitrate-mono-mp3"
	dialAttempts = 3
	dialBackoff  = 500 * time.Millisecond
)

// Provider implements tts.Provider for Microsoft Edge TTS.
type Provider struct {
	voice   string
	tracker *tracker.Tracker
}

// NewProvider creates a provider speaking with voice unless a request names another.
func NewProvider(voice string, t *tracker.Tracker) *Provider {
	return &Provider{voice: voice, tracker: t}
}

// Name implements tts.Named.
func (p *Provider) Name() string { return name }

// endpoint is the service address and the browser identity it expects.
// Every field comes from an EDGE_TTS_* variable.
type endpoint struct {
	baseURL    string
	origin     string
	userAgent  string
	token      string
	gecVersion string
}

func endpointFromEnv() (endpoint, error) {
	var missing []error
	get := func(key string) string {
		v := os.Getenv(key)
		if v == "" {
			missing = append(missing, fmt.Errorf("%s is not set", key))
		}
		return v
	}
	ep := endpoint{
		baseURL:    get("EDGE_TTS_BASE_URL"),
		origin:     get("EDGE_TTS_ORIGIN"),
		userAgent:  get("EDGE_TTS_USER_AGENT"),
		token:      get("EDGE_TTS_TRUSTED_CLIENT_TOKEN"),
		gecVersion: get("EDGE_TTS_SEC_MS_GEC_VERSION"),
	}
	if len(missing) > 0 {
		return endpoint{}, fmt.Errorf("edge tts not configured: %w", errors.Join(missing...))
	}
	return ep, nil
}

func (e endpoint) url(now time.Time) string {
	return fmt.Sprintf("%s?TrustedClientToken=%s&Sec-MS-GEC=%s&Sec-MS-GEC-Version=%s",
		e.baseURL, e.token, secMSGec(now, e.token), e.gecVersion)
}

func (e endpoint) header() http.Header {
	h := http.Header{}
	h.Set("Origin", e.origin)
	h.Set("User-Agent", e.userAgent)
	h.Set("Pragma", "no-cache")
	h.Set("Cache-Control", "no-cache")
	h.Set("Accept-Encoding", "gzip, deflate, br, zstd")
	h.Set("Accept-Language", "en-US,en;q=0.9")
	h.Set("Cookie", "muid="+requestID())
	return h
}

// secMSGec derives the rolling access token: Windows file-time ticks rounded
// down to five minutes, hashed together with the client token.
func secMSGec(now time.Time, token string) string {
	secs := now.Unix() + 11644473600
	secs -= secs % 300
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d%s", secs*10_000_000, token)))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

func requestID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Synthesize streams an mp3 clip into memory.
func (p *Provider) Synthesize(ctx context.Context, text, voice string) (*model.Audio, error) {
	if voice == "" {
		voice = p.voice
	}
	if voice == "" {
		return nil, errors.New("edge tts: voice is required")
	}
	ep, err := endpointFromEnv()
	if err != nil {
		return nil, err
	}

	conn, err := dial(ctx, ep)
	if err != nil {
		p.tracker.Track(name, tracker.Failure)
		return nil, err
	}
	defer conn.Close()

	// Reads block; closing the socket is the only way to interrupt them.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	var buf bytes.Buffer
	if err := converse(conn, voice, tts.Clean(text), &buf); err != nil {
		p.tracker.Track(name, tracker.Failure)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	if buf.Len() == 0 {
		p.tracker.Track(name, tracker.Empty)
		return nil, errors.New("edge tts returned no audio")
	}

	p.tracker.Track(name, tracker.Success)
	return &model.Audio{Data: buf.Bytes(), Format: "mp3", Voice: voice, Provider: name}, nil
}

func dial(ctx context.Context, ep endpoint) (*websocket.Conn, error) {
	var lastErr error
	for attempt := 1; attempt <= dialAttempts; attempt++ {
		conn, resp, err := websocket.DefaultDialer.DialContext(ctx, ep.url(time.Now()), ep.header())
		if err == nil {
			return conn, nil
		}
		lastErr = err
		if resp != nil {
			slog.Warn("EdgeTTS: handshake refused", "status", resp.StatusCode, "attempt", attempt)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(dialBackoff):
		}
	}
	return nil, fmt.Errorf("edge tts dial failed after %d attempts: %w", dialAttempts, lastErr)
}

// converse sends the speech config and the SSML request, then copies audio
// frames to w until the service reports the end of the turn.
func converse(conn *websocket.Conn, voice, text string, w io.Writer) error {
	config := `{"context":{"synthesis":{"audio":{"metadataoptions":{"sentenceBoundaryEnabled":"false","wordBoundaryEnabled":"false"},"outputFormat":"` + outputFormat + `"}}}}`
	if err := send(conn, "speech.config", "application/json; charset=utf-8", "", config); err != nil {
		return err
	}

	ssml := buildSSML(voice, text)
	tts.Log("EDGETTS", ssml, 0, nil)
	if err := send(conn, "ssml", "application/ssml+xml", requestID(), ssml); err != nil {
		return err
	}

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("edge tts read failed: %w", err)
		}
		switch kind {
		case websocket.TextMessage:
			if bytes.Contains(data, []byte("Path:turn.end")) {
				return nil
			}
		case websocket.BinaryMessage:
			if chunk := audioPayload(data); len(chunk) > 0 {
				if _, err := w.Write(chunk); err != nil {
					return fmt.Errorf("edge tts buffer write failed: %w", err)
				}
			}
		}
	}
}

func send(conn *websocket.Conn, path, contentType, id, body string) error {
	var msg strings.Builder
	if id != "" {
		msg.WriteString("X-RequestId:" + id + "\r\n")
	}
	msg.WriteString("Content-Type:" + contentType + "\r\n")
	msg.WriteString("Path:" + path + "\r\n\r\n")
	msg.WriteString(body)
	if err := conn.WriteMessage(websocket.TextMessage, []byte(msg.String())); err != nil {
		return fmt.Errorf("edge tts %s send failed: %w", path, err)
	}
	return nil
}

var ssmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

func buildSSML(voice, text string) string {
	return "<speak version='1.0' xmlns='http://www.w3.org/2001/10/synthesis' xml:lang='en-US'>" +
		"<voice name='" + voice + "'>" + ssmlEscaper.Replace(text) + "</voice></speak>"
}

// audioPayload strips the big-endian length-prefixed header from a binary
// frame. Malformed frames yield nil.
func audioPayload(frame []byte) []byte {
	if len(frame) < 2 {
		return nil
	}
	n := int(binary.BigEndian.Uint16(frame))
	if len(frame) < 2+n {
		return nil
	}
	return frame[2+n:]
}

// Voices lists the English narration voices known to work well for tours.
func (p *Provider) Voices(ctx context.Context) ([]tts.Voice, error) {
	return []tts.Voice{
		{ID: "en-US-AvaMultilingualNeural", Name: "Ava (Multilingual)", Language: "en-US", IsNeural: true},
		{ID: "en-US-AndrewMultilingualNeural", Name: "Andrew (Multilingual)", Language: "en-US", IsNeural: true},
		{ID: "en-US-EmmaMultilingualNeural", Name: "Emma (Multilingual)", Language: "en-US", IsNeural: true},
		{ID: "en-GB-SoniaNeural", Name: "Sonia (UK)", Language: "en-GB", IsNeural: true},
	}, nil
}
