package tts

import (
	"bytes"
	"regexp"
	"strings"
)

// speakerLabel matches a leading "Guide:" or "Ava (female):" that writers
// sometimes prefix to a line.
var speakerLabel = regexp.MustCompile(`(?m)^\s*\p{L}+(\s*\([^)]+\))?:\s*`)

// Clean prepares a narrative for synthesis: speaker labels removed and
// whitespace collapsed to single spaces.
func Clean(script string) string {
	return strings.Join(strings.Fields(speakerLabel.ReplaceAllString(script, "")), " ")
}

var (
	riffMagic = []byte("RIFF")
	waveMagic = []byte("WAVE")
	id3Magic  = []byte("ID3")
)

// SniffFormat names the container of an encoded clip from its magic bytes:
// "wav", "mp3", or "" when neither matches.
func SniffFormat(data []byte) string {
	switch {
	case len(data) >= 12 && bytes.HasPrefix(data, riffMagic) && bytes.Equal(data[8:12], waveMagic):
		return "wav"
	case bytes.HasPrefix(data, id3Magic):
		return "mp3"
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0: // MPEG frame sync
		return "mp3"
	}
	return ""
}
