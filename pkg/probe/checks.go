package probe

import (
	"context"
	"errors"
	"fmt"

	"flyover/pkg/llm"
	"flyover/pkg/registry"
	"flyover/pkg/tts"
)

// Synthesis checks that a synthesis provider answers its voice listing.
// Providers without credentials fail with tts.ErrNoCredentials.
func Synthesis(name string, p tts.Provider, critical bool) Probe {
	return Probe{
		Name:     name,
		Critical: critical,
		Check: func(ctx context.Context) error {
			if p == nil {
				return errors.New("not configured")
			}
			voices, err := p.Voices(ctx)
			if err != nil {
				return err
			}
			if len(voices) == 0 {
				return errors.New("no voices available")
			}
			return nil
		},
	}
}

// Writer checks the narrative writer's language model.
func Writer(p llm.Provider) Probe {
	return Probe{
		Name: "Narrative Writer",
		Check: func(ctx context.Context) error {
			if p == nil {
				return errors.New("not configured")
			}
			return p.HealthCheck(ctx)
		},
	}
}

// Locations checks that the registry holds something to tour.
func Locations(r *registry.Registry) Probe {
	return Probe{
		Name:     "Location Registry",
		Critical: true,
		Check: func(ctx context.Context) error {
			if r == nil || r.Len() == 0 {
				return fmt.Errorf("no locations loaded")
			}
			return nil
		},
	}
}
