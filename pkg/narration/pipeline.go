package narration

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"flyover/pkg/model"
	"flyover/pkg/tts"
)

// DefaultConcurrency is the number of simultaneous outbound synthesis calls.
const DefaultConcurrency = 2

// Request is one queued or running synthesis.
type Request struct {
	ID    uuid.UUID
	Text  string
	Voice string
	Epoch uint64 // live epoch when the request was queued
}

type epoch struct {
	n      uint64
	ctx    context.Context
	cancel context.CancelFunc
}

func newEpoch(n uint64) *epoch {
	ctx, cancel := context.WithCancel(context.Background())
	return &epoch{n: n, ctx: ctx, cancel: cancel}
}

// Pipeline synthesizes narration with a bounded number of outbound calls.
// Failures and cancellations yield nil audio, never errors.
type Pipeline struct {
	provider tts.Provider
	ceiling  int
	sem      *semaphore.Weighted

	mu sync.Mutex
	ep *epoch

	passes   atomic.Int32
	inflight atomic.Int32
}

// NewPipeline creates a pipeline calling provider at most concurrency times at once.
func NewPipeline(provider tts.Provider, concurrency int) *Pipeline {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	return &Pipeline{
		provider: provider,
		ceiling:  concurrency,
		sem:      semaphore.NewWeighted(int64(concurrency)),
		ep:       newEpoch(0),
	}
}

func (p *Pipeline) live() *epoch {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ep
}

// Epoch returns the live cancellation epoch.
func (p *Pipeline) Epoch() uint64 {
	return p.live().n
}

// CancelAll invalidates every queued and running request. Running provider
// calls are aborted; queued ones wake up and return nil without calling out.
func (p *Pipeline) CancelAll() {
	p.mu.Lock()
	old := p.ep
	p.ep = newEpoch(old.n + 1)
	p.mu.Unlock()

	old.cancel()
	slog.Debug("Narration: cancelled pending synthesis", "epoch", old.n)
}

// Generate synthesizes text, waiting for a free slot in FIFO order.
// It returns nil when the provider fails, the response is unusable, ctx is
// done, or CancelAll runs before the audio is ready.
func (p *Pipeline) Generate(ctx context.Context, text, voice string) *model.Audio {
	ep := p.live()
	return p.run(ctx, p.request(text, voice, ep), ep)
}

func (p *Pipeline) request(text, voice string, ep *epoch) Request {
	return Request{ID: uuid.New(), Text: text, Voice: voice, Epoch: ep.n}
}

func (p *Pipeline) current(req Request) bool {
	return p.live().n == req.Epoch
}

func (p *Pipeline) run(ctx context.Context, req Request, ep *epoch) *model.Audio {
	if req.Text == "" {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(ep.ctx, cancel)
	defer func() {
		stop()
		cancel()
	}()

	if err := p.sem.Acquire(ctx, 1); err != nil {
		slog.Debug("Narration: request dropped while queued", "request", req.ID, "epoch", req.Epoch)
		return nil
	}
	defer p.sem.Release(1)

	if !p.current(req) || ctx.Err() != nil {
		slog.Debug("Narration: stale request skipped", "request", req.ID, "epoch", req.Epoch)
		return nil
	}

	p.inflight.Add(1)
	a, err := p.provider.Synthesize(ctx, req.Text, req.Voice)
	p.inflight.Add(-1)

	switch {
	case err != nil && (errors.Is(err, context.Canceled) || ctx.Err() != nil):
		slog.Debug("Narration: synthesis aborted", "request", req.ID)
		return nil
	case err != nil:
		slog.Warn("Narration: synthesis failed", "request", req.ID, "provider", tts.NameOf(p.provider), "error", err)
		return nil
	case a.Empty() || tts.SniffFormat(a.Data) == "":
		slog.Warn("Narration: provider returned unplayable audio", "request", req.ID, "provider", tts.NameOf(p.provider))
		return nil
	case !p.current(req):
		slog.Debug("Narration: result discarded after cancel", "request", req.ID)
		return nil
	}
	return a
}

// GenerateAll synthesizes every text, all stamped with the epoch live at
// the time of the call. Results are matched to texts by index; entries are
// nil where synthesis produced nothing.
func (p *Pipeline) GenerateAll(ctx context.Context, texts []string, voice string) []*model.Audio {
	p.passes.Add(1)
	defer p.passes.Add(-1)

	ep := p.live()
	reqs := make([]Request, len(texts))
	for i, t := range texts {
		reqs[i] = p.request(t, voice, ep)
	}

	out := make([]*model.Audio, len(texts))
	var g errgroup.Group
	g.SetLimit(p.ceiling)
	for i := range reqs {
		if !p.current(reqs[i]) || ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			out[i] = p.run(ctx, reqs[i], ep)
			return nil
		})
	}
	_ = g.Wait()

	ready := 0
	for _, a := range out {
		if a != nil {
			ready++
		}
	}
	slog.Info("Narration: pregeneration finished", "ready", ready, "total", len(texts), "epoch", ep.n)
	return out
}

// Pregenerating reports whether a GenerateAll pass is running.
func (p *Pipeline) Pregenerating() bool {
	return p.passes.Load() > 0
}

// InFlight returns the number of provider calls currently running.
func (p *Pipeline) InFlight() int {
	return int(p.inflight.Load())
}
