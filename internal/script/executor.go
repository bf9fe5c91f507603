// path: fairy_chess/internal/script/executor.go
package script

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"fairy_chess/internal/shared"
)

const (
	DefaultTimeout  = time.Second
	DefaultMaxSteps = 1_000_000
)

// Executor runs move programs under a wall-clock deadline and a step budget.
type Executor struct {
	timeout  time.Duration
	maxSteps int
}

// NewExecutor returns an executor; zero values select the defaults.
func NewExecutor(timeout time.Duration, maxSteps int) *Executor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	return &Executor{timeout: timeout, maxSteps: maxSteps}
}

// Run executes prog against host on a worker goroutine. When the deadline
// passes first the worker is told to stop and Run returns ErrTimeout at once;
// the host may still be written by the worker until it observes the stop, so
// callers must discard the host's board on any error. A run that completes
// without a single teleport or take fails with ErrNoAction.
func (x *Executor) Run(ctx context.Context, prog *Program, host Host) error {
	if prog == nil {
		return ErrNoProgram
	}

	runCtx, cancel := context.WithTimeout(ctx, x.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- errors.Errorf("move program panicked: %v", r)
			}
		}()
		done <- prog.run(runCtx.Done(), host, x.maxSteps)
	}()

	select {
	case err := <-done:
		if errors.Is(err, errCancelled) {
			return x.stopped(ctx)
		}
		if err != nil {
			return err
		}
	case <-runCtx.Done():
		return x.stopped(ctx)
	}

	if !host.DidAction() {
		return ErrNoAction
	}
	return nil
}

func (x *Executor) stopped(parent context.Context) error {
	if err := parent.Err(); err != nil {
		return shared.Abort(err, "move program aborted")
	}
	return errors.WithMessagef(ErrTimeout, "after %s", x.timeout)
}

func (p *Program) run(done <-chan struct{}, host Host, maxSteps int) error {
	m := &machine{
		done:     done,
		host:     host,
		vars:     make([]Value, len(p.slots)),
		bound:    make([]bool, len(p.slots)),
		maxSteps: maxSteps,
	}
	return p.body.exec(m)
}
