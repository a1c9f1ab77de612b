// Package audiotest provides playable clips for tests.
package audiotest

import (
	"encoding/binary"
	"time"

	"flyover/pkg/model"
)

// WAV renders d of silence as 8kHz mono 16-bit PCM.
func WAV(d time.Duration) []byte {
	samples := int(d.Seconds() * 8000)
	data := make([]byte, 44+samples*2)
	copy(data[0:4], "RIFF")
	binary.LittleEndian.PutUint32(data[4:8], uint32(36+samples*2))
	copy(data[8:12], "WAVE")
	copy(data[12:16], "fmt ")
	binary.LittleEndian.PutUint32(data[16:20], 16)
	binary.LittleEndian.PutUint16(data[20:22], 1)
	binary.LittleEndian.PutUint16(data[22:24], 1)
	binary.LittleEndian.PutUint32(data[24:28], 8000)
	binary.LittleEndian.PutUint32(data[28:32], 16000)
	binary.LittleEndian.PutUint16(data[32:34], 2)
	binary.LittleEndian.PutUint16(data[34:36], 16)
	copy(data[36:40], "data")
	binary.LittleEndian.PutUint32(data[40:44], uint32(samples*2))
	return data
}

// Clip wraps WAV(d) as synthesized audio.
func Clip(d time.Duration) *model.Audio {
	return &model.Audio{Data: WAV(d), Format: "wav", Provider: "test"}
}
