package tts

import (
	"context"
	"errors"

	"flyover/pkg/model"
)

// ErrNoCredentials is returned by cloud providers that have no API key configured.
var ErrNoCredentials = errors.New("tts: no credentials configured")

// Provider defines the interface for Text-To-Speech engines.
type Provider interface {
	// Synthesize renders text into a playable clip held in memory.
	// An empty voice selects the provider default.
	Synthesize(ctx context.Context, text, voice string) (*model.Audio, error)

	// Voices returns a list of available voices for the provider.
	Voices(ctx context.Context) ([]Voice, error)
}

// Named is implemented by providers that report a stable name for logs and stats.
type Named interface {
	Name() string
}

// NameOf returns the provider name, or "unknown".
func NameOf(p Provider) string {
	if n, ok := p.(Named); ok {
		return n.Name()
	}
	return "unknown"
}

// Voice is one voice a provider offers.
type Voice struct {
	ID       string
	Name     string
	Language string
	IsNeural bool
}

// FatalError is a provider failure that retrying will not fix: the service
// refused the request or stayed down through every attempt.
type FatalError struct {
	StatusCode int
	Message    string
}

func (e *FatalError) Error() string {
	return e.Message
}

// NewFatalError creates a FatalError carrying the HTTP status seen.
func NewFatalError(statusCode int, message string) *FatalError {
	return &FatalError{StatusCode: statusCode, Message: message}
}

// StatusOf returns the status code of the FatalError in err's chain, or 0.
func StatusOf(err error) int {
	var fe *FatalError
	if errors.As(err, &fe) {
		return fe.StatusCode
	}
	return 0
}
