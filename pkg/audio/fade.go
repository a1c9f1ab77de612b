package audio

import (
	"context"
	"time"

	"flyover/pkg/logging"
)

// FadeSteps is the number of volume steps in every background fade.
const FadeSteps = 30

// fade moves volume linearly from -> to over d in FadeSteps ticks, calling set
// on every step. It returns the last volume applied, which is `to` unless ctx
// was cancelled first.
func fade(ctx context.Context, from, to float64, d time.Duration, set func(v float64)) float64 {
	if d <= 0 {
		set(to)
		return to
	}

	ticker := time.NewTicker(d / FadeSteps)
	defer ticker.Stop()

	current := from
	for i := 1; i <= FadeSteps; i++ {
		select {
		case <-ctx.Done():
			return current
		case <-ticker.C:
		}
		current = from + (to-from)*(float64(i)/FadeSteps)
		if i == FadeSteps {
			current = to
		}
		set(current)
		logging.Trace("Audio: fade step", "step", i, "volume", current)
	}
	return to
}
