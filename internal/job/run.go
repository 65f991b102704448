// Package job drives step-function jobs. A job exposes Step and Done over
// an explicit progress value; Run owns the loop and decides its pacing.
package job

import (
	"context"
	"time"
)

// Stepper advances a job by one unit of work.
type Stepper[P any] interface {
	Step(p P) (P, error)
	Done(p P) bool
}

// Options controls Run.
type Options[P any] struct {
	// Interval pauses between steps; zero runs steps back to back.
	Interval time.Duration
	// Observe is called after every successful step.
	Observe func(p P)
}

// Run steps s from p until it is done, the context is cancelled or a step
// fails. It returns the last progress reached.
func Run[P any](ctx context.Context, s Stepper[P], p P, opts Options[P]) (P, error) {
	var tick <-chan time.Time
	if opts.Interval > 0 {
		t := time.NewTicker(opts.Interval)
		defer t.Stop()
		tick = t.C
	}

	for !s.Done(p) {
		if tick != nil {
			select {
			case <-ctx.Done():
				return p, ctx.Err()
			case <-tick:
			}
		} else if err := ctx.Err(); err != nil {
			return p, err
		}

		next, err := s.Step(p)
		if err != nil {
			return p, err
		}
		p = next
		if opts.Observe != nil {
			opts.Observe(p)
		}
	}
	return p, nil
}
