package cpu

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"
)

func TestRunReturnsResult(t *testing.T) {
	p := NewPool(2)
	v, err := Run(context.Background(), p, func() (int, error) { return 42, nil })
	if err != nil || v != 42 {
		t.Fatalf("expected 42, got %d err=%v", v, err)
	}

	boom := errors.New("boom")
	if _, err := Run(context.Background(), p, func() (string, error) { return "", boom }); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestRunBoundsParallelism(t *testing.T) {
	p := NewPool(2)
	var running, peak atomic.Int32

	var g errgroup.Group
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			_, err := Run(context.Background(), p, func() (struct{}, error) {
				n := running.Add(1)
				for {
					old := peak.Load()
					if n <= old || peak.CompareAndSwap(old, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				running.Add(-1)
				return struct{}{}, nil
			})
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if peak.Load() > 2 {
		t.Fatalf("expected at most 2 concurrent jobs, saw %d", peak.Load())
	}
}

func TestRunCallerTimeoutLetsWorkFinish(t *testing.T) {
	p := NewPool(1)
	finished := make(chan struct{})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := Run(ctx, p, func() (int, error) {
		time.Sleep(50 * time.Millisecond)
		close(finished)
		return 1, nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("abandoned work did not run to completion")
	}

	// The slot is released once the abandoned job ends.
	v, err := Run(context.Background(), p, func() (int, error) { return 7, nil })
	if err != nil || v != 7 {
		t.Fatalf("expected pool to be reusable, got %d err=%v", v, err)
	}
}
