// Package tasks runs recurring maintenance jobs on independent timers. Each
// task gets a fixed interval plus an optional startup jitter so that several
// server instances pointing at the same database do not fire in lockstep.
package tasks

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Task is a named job invoked repeatedly until the runner's context is
// cancelled. Run errors are logged, not propagated; a task that fails keeps
// its schedule.
type Task struct {
	Name     string
	Interval time.Duration
	Jitter   time.Duration
	Run      func(ctx context.Context) error
}

type Runner struct {
	log   zerolog.Logger
	tasks []Task
	wg    sync.WaitGroup
}

func NewRunner(log zerolog.Logger) *Runner {
	return &Runner{log: log}
}

func (r *Runner) Add(t Task) {
	r.tasks = append(r.tasks, t)
}

// Start launches every task in its own goroutine and returns immediately.
// Cancel ctx to stop; Wait blocks until all tasks have exited.
func (r *Runner) Start(ctx context.Context) {
	for _, t := range r.tasks {
		r.wg.Add(1)
		go func(t Task) {
			defer r.wg.Done()
			r.loop(ctx, t)
		}(t)
	}
}

func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) loop(ctx context.Context, t Task) {
	if t.Jitter > 0 {
		delay := time.Duration(rand.Int63n(int64(t.Jitter)))
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
	}

	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()

	for {
		r.runOnce(ctx, t)
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

func (r *Runner) runOnce(ctx context.Context, t Task) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error().
				Str("task", t.Name).
				Str("panic", fmt.Sprintf("%v", rec)).
				Msg("task panicked")
		}
	}()

	start := time.Now()
	if err := t.Run(ctx); err != nil {
		r.log.Error().Err(err).Str("task", t.Name).Msg("task failed")
		return
	}
	r.log.Info().Str("task", t.Name).Dur("took", time.Since(start)).Msg("task completed")
}
