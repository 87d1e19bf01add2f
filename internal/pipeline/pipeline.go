// Package pipeline runs the ordered provisioning steps.
//
// The step list is fixed at startup; invocation flags may mark individual
// steps skipped but never reorder them. Non-interactive steps run in the
// background while a spinner animates in the foreground. The spinner is
// purely cosmetic: it only polls for step completion and never influences
// the step's outcome.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/survon/provision/internal/monitoring"
)

// Step is one unit of provisioning work. Steps are constructed once from
// the registry and the parsed flags, and are never mutated afterwards.
type Step struct {
	// Name is the step identity. The skip flag is derived from it
	// (--skip-<name>).
	Name string

	// Label is the human-readable progress label.
	Label string

	// Skip marks the step to be announced and passed over with no side
	// effects.
	Skip bool

	// Interactive steps prompt the operator directly, so they run in the
	// foreground with no spinner racing their output.
	Interactive bool

	// Fatal steps abort the whole run on failure. Non-fatal steps log the
	// failure and let the pipeline continue in a degraded state.
	Fatal bool

	// Remedy is a manual recovery hint printed when the step fails.
	Remedy string

	// Action performs the work.
	Action func(ctx context.Context) error
}

// Engine executes steps in ordinal order.
type Engine struct {
	// Out receives operator-facing progress output. Defaults to os.Stdout.
	Out io.Writer

	// Tick is the spinner animation interval. Defaults to 100ms.
	Tick time.Duration
}

func (e *Engine) out() io.Writer {
	if e.Out == nil {
		return os.Stdout
	}
	return e.Out
}

func (e *Engine) tick() time.Duration {
	if e.Tick <= 0 {
		return 100 * time.Millisecond
	}
	return e.Tick
}

// Run executes every step in order. It returns an error only when a fatal
// step fails; best-effort step failures are reported and the run
// continues.
func (e *Engine) Run(ctx context.Context, steps []Step) error {
	runID := uuid.New()
	monitoring.Debugf("pipeline run %s: %d steps", runID, len(steps))

	for i, step := range steps {
		if step.Skip {
			fmt.Fprintf(e.out(), "Skipping %s (--skip-%s)\n", step.Label, step.Name)
			continue
		}

		fmt.Fprintf(e.out(), "Step %d/%d: %s\n", i+1, len(steps), step.Label)

		var err error
		if step.Interactive {
			err = step.Action(ctx)
		} else {
			err = e.runBackground(ctx, step)
		}

		if err != nil {
			if step.Fatal {
				return errors.Wrapf(err, "step %q failed", step.Name)
			}
			fmt.Fprintf(e.out(), "  ⚠ %s failed (continuing without it): %v\n", step.Label, err)
			if step.Remedy != "" {
				fmt.Fprintf(e.out(), "    To retry by hand: %s\n", step.Remedy)
			}
			monitoring.Logf("pipeline run %s: step %s failed: %v", runID, step.Name, err)
			continue
		}

		fmt.Fprintf(e.out(), "  ✓ %s\n", step.Label)
	}

	return nil
}

// runBackground launches the step action concurrently and animates a
// spinner until the action finishes. The spinner loop only observes
// liveness; the action's error is the sole outcome.
func (e *Engine) runBackground(ctx context.Context, step Step) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return step.Action(gctx)
	})

	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	spin := NewSpinner(step.Label)
	ticker := time.NewTicker(e.tick())
	defer ticker.Stop()

	for {
		select {
		case err := <-done:
			fmt.Fprint(e.out(), "\r\033[K")
			return err
		case <-ticker.C:
			fmt.Fprint(e.out(), spin.Next())
		}
	}
}
