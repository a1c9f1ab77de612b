package tts

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"flyover/pkg/model"
)

func TestStatusOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"Fatal", NewFatalError(http.StatusTooManyRequests, "slow down"), http.StatusTooManyRequests},
		{"Wrapped", fmt.Errorf("narration: %w", NewFatalError(http.StatusUnauthorized, "bad key")), http.StatusUnauthorized},
		{"Joined", errors.Join(errors.New("first"), NewFatalError(http.StatusBadGateway, "down")), http.StatusBadGateway},
		{"Plain", errors.New("socket closed"), 0},
		{"NoCredentials", ErrNoCredentials, 0},
		{"Nil", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusOf(tt.err))
		})
	}
}

type named struct{ name string }

func (named) Synthesize(ctx context.Context, text, voice string) (*model.Audio, error) {
	return nil, nil
}
func (named) Voices(ctx context.Context) ([]Voice, error) { return nil, nil }
func (n named) Name() string                              { return n.name }

type anonymous struct{}

func (anonymous) Synthesize(ctx context.Context, text, voice string) (*model.Audio, error) {
	return nil, nil
}
func (anonymous) Voices(ctx context.Context) ([]Voice, error) { return nil, nil }

func TestNameOf(t *testing.T) {
	assert.Equal(t, "cartesia", NameOf(named{name: "cartesia"}))
	assert.Equal(t, "unknown", NameOf(anonymous{}))
}
