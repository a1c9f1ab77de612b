// Package probe runs the startup checks that decide whether the engine can
// narrate, write and render before the server starts accepting tours.
package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultTimeout bounds each check when Run is given no timeout.
const DefaultTimeout = 5 * time.Second

// Probe is a single startup check. Check returns nil when it passes.
type Probe struct {
	Name     string
	Check    func(ctx context.Context) error
	Critical bool // a failure blocks startup
}

// Result is the outcome of a single probe.
type Result struct {
	Probe    Probe
	Error    error
	Duration time.Duration
}

// Status is "PASS", "WARN" for a failed optional probe, or "FAIL".
func (r Result) Status() string {
	switch {
	case r.Error == nil:
		return "PASS"
	case r.Probe.Critical:
		return "FAIL"
	default:
		return "WARN"
	}
}

// Report holds probe results in the order the probes were given.
type Report []Result

// Run executes probes concurrently, each bounded by timeout. A check that
// returns nil after its deadline still fails.
func Run(ctx context.Context, timeout time.Duration, probes []Probe) Report {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	report := make(Report, len(probes))

	var g errgroup.Group
	for i, p := range probes {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			start := time.Now()
			err := p.Check(cctx)
			if err == nil {
				err = cctx.Err()
			}
			report[i] = Result{Probe: p, Error: err, Duration: time.Since(start)}
			return nil
		})
	}
	_ = g.Wait()
	return report
}

// Log writes one summary line per probe.
func (rep Report) Log() {
	slog.Info("Startup Checks Summary", "probes", len(rep))
	for _, r := range rep {
		msg := fmt.Sprintf("[%s] %-20s (%v)", r.Status(), r.Probe.Name, r.Duration.Round(time.Millisecond))
		switch r.Status() {
		case "PASS":
			slog.Info(msg)
		case "WARN":
			slog.Warn(msg, "error", r.Error)
		default:
			slog.Error(msg, "error", r.Error)
		}
	}
}

// Err joins the failures of critical probes, or returns nil.
func (rep Report) Err() error {
	var errs []error
	for _, r := range rep {
		if r.Status() == "FAIL" {
			errs = append(errs, fmt.Errorf("%s: %w", r.Probe.Name, r.Error))
		}
	}
	return errors.Join(errs...)
}
