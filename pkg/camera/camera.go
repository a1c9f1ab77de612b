package camera

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"

	"flyover/pkg/model"
)

// ErrNotReady is returned by engines that are not attached or were torn down.
var ErrNotReady = errors.New("camera engine not ready")

// DefaultTolerance is added to a move's duration before the fallback timer fires.
const DefaultTolerance = 200 * time.Millisecond

// Move is one camera command.
type Move struct {
	ID string `json:"id"`
	model.CameraTarget
	Curve float64 `json:"curve,omitempty"`
}

// Engine renders camera moves. The returned channel is closed once, when
// the engine reports the movement ended. ctx is done once the choreographer
// stops waiting for the move, whatever the reason.
type Engine interface {
	FlyTo(ctx context.Context, m Move) (<-chan struct{}, error)
	Stop()
}

// Choreographer issues moves and hands back one completion signal per move.
// Missing or torn-down engines turn every operation into a no-op.
type Choreographer struct {
	tolerance time.Duration

	mu     sync.RWMutex
	engine Engine
}

// NewChoreographer creates a choreographer. engine may be nil until attached.
func NewChoreographer(engine Engine, tolerance time.Duration) *Choreographer {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Choreographer{engine: engine, tolerance: tolerance}
}

// Attach swaps the rendering engine. Passing nil detaches it.
func (c *Choreographer) Attach(e Engine) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.engine = e
}

func (c *Choreographer) current() Engine {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.engine
}

// MoveTo flies to target. The returned channel closes when the engine
// reports the end of the move, when duration+tolerance elapses without a
// report, when ctx is cancelled, or at once if no engine is ready.
func (c *Choreographer) MoveTo(ctx context.Context, target model.CameraTarget) <-chan struct{} {
	return c.fly(ctx, Move{ID: uuid.NewString(), CameraTarget: target, Curve: 1.42})
}

func (c *Choreographer) fly(ctx context.Context, m Move) <-chan struct{} {
	out := make(chan struct{})

	e := c.current()
	if e == nil {
		close(out)
		return out
	}
	mctx, cancel := context.WithCancel(ctx)
	ended, err := e.FlyTo(mctx, m)
	if err != nil {
		cancel()
		if !errors.Is(err, ErrNotReady) {
			slog.Warn("Camera: move failed", "move", m.ID, "error", err)
		}
		close(out)
		return out
	}

	go func() {
		defer close(out)
		defer cancel()
		timer := time.NewTimer(m.Duration + c.tolerance)
		defer timer.Stop()
		select {
		case <-ended:
		case <-timer.C:
			slog.Debug("Camera: no moveend, falling back to timer", "move", m.ID)
		case <-ctx.Done():
		}
	}()
	return out
}

// Intro swoops to a wide, tilted view of center before the first stop.
func (c *Choreographer) Intro(ctx context.Context, center orb.Point) <-chan struct{} {
	return c.fly(ctx, Move{
		ID: uuid.NewString(),
		CameraTarget: model.CameraTarget{
			Center:   center,
			Zoom:     13,
			Pitch:    50,
			Bearing:  -30,
			Duration: 2500 * time.Millisecond,
		},
		Curve: 1.3,
	})
}

// Outro pulls back to an overhead view of center after the last stop.
func (c *Choreographer) Outro(ctx context.Context, center orb.Point) <-chan struct{} {
	return c.fly(ctx, Move{
		ID: uuid.NewString(),
		CameraTarget: model.CameraTarget{
			Center:   center,
			Zoom:     10,
			Duration: 2500 * time.Millisecond,
		},
	})
}

// Interrupt stops the running move so its completion fires.
func (c *Choreographer) Interrupt() {
	if e := c.current(); e != nil {
		e.Stop()
	}
}
