// Package sapi speaks through the Windows SAPI5 voices installed on the
// machine. It needs no network or credentials.
package sapi

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/go-ole/go-ole"
	"github.com/go-ole/go-ole/oleutil"

	"flyover/pkg/model"
	"flyover/pkg/tts"
)

const name = "windows-sapi"

// ssfmCreateForWrite is SpeechStreamFileMode.SSFMCreateForWrite.
const ssfmCreateForWrite = 3

// ErrUnsupported is returned on platforms without SAPI.
var ErrUnsupported = errors.New("sapi: only available on windows")

// Provider implements tts.Provider on SAPI5 through OLE automation.
type Provider struct {
	mu     sync.Mutex // SAPI objects are not shared across calls; one call at a time
	tmpDir string
}

// NewProvider creates a provider. Clips are rendered into tmpDir (os.TempDir
// when empty) because SpFileStream can only target files.
func NewProvider(tmpDir string) *Provider {
	return &Provider{tmpDir: tmpDir}
}

// Name implements tts.Named.
func (p *Provider) Name() string { return name }

// Synthesize renders a wav clip. An empty voiceID keeps the system voice.
func (p *Provider) Synthesize(ctx context.Context, text, voiceID string) (*model.Audio, error) {
	if runtime.GOOS != "windows" {
		return nil, ErrUnsupported
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.CreateTemp(p.tmpDir, "sapi_*.wav")
	if err != nil {
		return nil, fmt.Errorf("sapi: temp file: %w", err)
	}
	path := f.Name()
	f.Close()
	defer os.Remove(path)

	text = tts.Clean(text)
	err = p.session(func() error { return render(text, voiceID, path) })
	tts.Log("SAPI", text, statusOf(err), err)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("sapi: read output: %w", err)
	}
	if tts.SniffFormat(data) != "wav" {
		return nil, errors.New("sapi: produced no audio")
	}
	return &model.Audio{Data: data, Format: "wav", Voice: voiceID, Provider: name}, nil
}

// Voices lists the installed voices.
func (p *Provider) Voices(ctx context.Context) ([]tts.Voice, error) {
	if runtime.GOOS != "windows" {
		return nil, ErrUnsupported
	}
	var voices []tts.Voice
	err := p.session(func() error {
		speaker, err := create("SAPI.SpVoice")
		if err != nil {
			return err
		}
		defer speaker.Release()

		return eachToken(speaker, func(token *ole.IDispatch) bool {
			if v, ok := voiceOf(token); ok {
				voices = append(voices, v)
			}
			return true
		})
	})
	return voices, err
}

// session runs fn with COM initialized on a locked OS thread.
func (p *Provider) session(fn func() error) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := ole.CoInitialize(0); err == nil {
		defer ole.CoUninitialize()
	}
	return fn()
}

func render(text, voiceID, path string) error {
	speaker, err := create("SAPI.SpVoice")
	if err != nil {
		return err
	}
	defer speaker.Release()

	if voiceID != "" {
		if err := selectVoice(speaker, voiceID); err != nil {
			return err
		}
	}

	stream, err := create("SAPI.SpFileStream")
	if err != nil {
		return err
	}
	defer stream.Release()

	if _, err := oleutil.CallMethod(stream, "Open", path, ssfmCreateForWrite, false); err != nil {
		return fmt.Errorf("sapi: open stream: %w", err)
	}
	defer oleutil.CallMethod(stream, "Close") //nolint:errcheck

	if _, err := oleutil.PutPropertyRef(speaker, "AudioOutputStream", stream); err != nil {
		return fmt.Errorf("sapi: attach stream: %w", err)
	}
	if _, err := oleutil.CallMethod(speaker, "Speak", text, 0); err != nil {
		return fmt.Errorf("sapi: speak: %w", err)
	}
	return nil
}

func create(progID string) (*ole.IDispatch, error) {
	unknown, err := oleutil.CreateObject(progID)
	if err != nil {
		return nil, fmt.Errorf("sapi: create %s: %w", progID, err)
	}
	defer unknown.Release()

	disp, err := unknown.QueryInterface(ole.IID_IDispatch)
	if err != nil {
		return nil, fmt.Errorf("sapi: %s dispatch: %w", progID, err)
	}
	return disp, nil
}

// selectVoice switches speaker to the installed voice with the given token id.
func selectVoice(speaker *ole.IDispatch, voiceID string) error {
	found := false
	err := eachToken(speaker, func(token *ole.IDispatch) bool {
		if v, ok := voiceOf(token); ok && v.ID == voiceID {
			_, err := oleutil.PutPropertyRef(speaker, "Voice", token)
			found = err == nil
			return false
		}
		return true
	})
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("sapi: voice %q not installed", voiceID)
	}
	return nil
}

// eachToken calls fn for every voice token until fn returns false.
func eachToken(speaker *ole.IDispatch, fn func(token *ole.IDispatch) bool) error {
	res, err := oleutil.CallMethod(speaker, "GetVoices")
	if err != nil {
		return fmt.Errorf("sapi: list voices: %w", err)
	}
	tokens := res.ToIDispatch()
	if tokens == nil {
		return errors.New("sapi: empty voice collection")
	}
	defer tokens.Release()

	countVar, err := oleutil.GetProperty(tokens, "Count")
	if err != nil {
		return fmt.Errorf("sapi: count voices: %w", err)
	}
	for i := 0; i < variantInt(countVar); i++ {
		itemVar, err := oleutil.CallMethod(tokens, "Item", i)
		if err != nil {
			continue
		}
		token := itemVar.ToIDispatch()
		if token == nil {
			continue
		}
		more := fn(token)
		token.Release()
		if !more {
			break
		}
	}
	return nil
}

func voiceOf(token *ole.IDispatch) (tts.Voice, bool) {
	id, err := oleutil.CallMethod(token, "GetId")
	if err != nil || id == nil {
		return tts.Voice{}, false
	}
	desc, err := oleutil.CallMethod(token, "GetDescription", int32(0))
	if err != nil || desc == nil {
		return tts.Voice{}, false
	}
	return tts.Voice{ID: id.ToString(), Name: desc.ToString()}, true
}

// variantInt reads an integer VARIANT regardless of its exact width.
func variantInt(v *ole.VARIANT) int {
	switch n := v.Value().(type) {
	case int32:
		return int(n)
	case int64:
		return int(n)
	case int:
		return n
	case uint32:
		return int(n)
	case int16:
		return int(n)
	default:
		return int(v.Val)
	}
}

func statusOf(err error) int {
	if err != nil {
		return 0
	}
	return 200
}
