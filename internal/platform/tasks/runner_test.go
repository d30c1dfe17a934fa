package tasks

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestRunner_RunsUntilCancelled(t *testing.T) {
	var runs int64
	r := NewRunner(zerolog.New(os.Stderr))
	r.Add(Task{
		Name:     "counter",
		Interval: 5 * time.Millisecond,
		Run: func(context.Context) error {
			atomic.AddInt64(&runs, 1)
			return nil
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	r.Start(ctx)
	time.Sleep(40 * time.Millisecond)
	cancel()
	r.Wait()

	if n := atomic.LoadInt64(&runs); n < 2 {
		t.Errorf("expected at least 2 runs, got %d", n)
	}
}

func TestRunner_SurvivesErrorsAndPanics(t *testing.T) {
	var runs int64
	r := NewRunner(zerolog.New(os.Stderr))
	r.Add(Task{
		Name:     "flaky",
		Interval: 5 * time.Millisecond,
		Run: func(context.Context) error {
			n := atomic.AddInt64(&runs, 1)
			if n == 1 {
				panic("first run blows up")
			}
			return errors.New("still unhappy")
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	r.Start(ctx)
	time.Sleep(40 * time.Millisecond)
	cancel()
	r.Wait()

	if n := atomic.LoadInt64(&runs); n < 2 {
		t.Errorf("expected the task to keep running after a panic, got %d runs", n)
	}
}

func TestRunner_StopsDuringJitter(t *testing.T) {
	var runs int64
	r := NewRunner(zerolog.New(os.Stderr))
	r.Add(Task{
		Name:     "jittered",
		Interval: time.Hour,
		Jitter:   time.Hour,
		Run: func(context.Context) error {
			atomic.AddInt64(&runs, 1)
			return nil
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	r.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() { r.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("runner did not stop during jitter sleep")
	}
}
