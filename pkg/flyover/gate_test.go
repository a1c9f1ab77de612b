package flyover

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGate_WaitBlocksWhilePaused(t *testing.T) {
	g := newGate()
	require.NoError(t, g.wait(context.Background()))

	g.pause()
	g.pause()
	assert.True(t, g.isPaused())

	done := make(chan error, 1)
	go func() { done <- g.wait(context.Background()) }()

	select {
	case <-done:
		t.Fatal("wait returned while paused")
	case <-time.After(30 * time.Millisecond):
	}

	g.resume()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("wait did not return after resume")
	}
}

func TestGate_WaitCancelled(t *testing.T) {
	g := newGate()
	g.pause()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, g.wait(ctx), context.Canceled)
}

func TestGate_SleepExcludesPausedTime(t *testing.T) {
	g := newGate()
	var last float64
	start := time.Now()

	go func() {
		time.Sleep(40 * time.Millisecond)
		g.pause()
		time.Sleep(150 * time.Millisecond)
		g.resume()
	}()

	require.NoError(t, g.sleep(context.Background(), 100*time.Millisecond, func(f float64) { last = f }))
	assert.GreaterOrEqual(t, time.Since(start), 240*time.Millisecond)
	assert.InDelta(t, 1.0, last, 1e-9)
}

func TestGate_SleepCancelled(t *testing.T) {
	g := newGate()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, g.sleep(ctx, time.Minute, nil), context.DeadlineExceeded)
}
