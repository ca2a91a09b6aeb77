package keylock

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"
)

func TestLockSerializesSameKey(t *testing.T) {
	var l Locker
	counter := 0

	var g errgroup.Group
	for i := 0; i < 50; i++ {
		g.Go(func() error {
			unlock, err := l.Lock(context.Background(), "user:1")
			if err != nil {
				return err
			}
			defer unlock()
			v := counter
			time.Sleep(time.Microsecond)
			counter = v + 1
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("Lock failed: %v", err)
	}
	if counter != 50 {
		t.Fatalf("expected 50 serialized increments, got %d", counter)
	}
	if l.Len() != 0 {
		t.Fatalf("expected lock table to drain, got %d entries", l.Len())
	}
}

func TestLockDifferentKeysIndependent(t *testing.T) {
	var l Locker
	unlockA, err := l.Lock(context.Background(), "a")
	if err != nil {
		t.Fatalf("Lock(a) failed: %v", err)
	}
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlockB, err := l.Lock(ctx, "b")
	if err != nil {
		t.Fatalf("Lock(b) blocked behind a: %v", err)
	}
	unlockB()
}

func TestLockHonorsContext(t *testing.T) {
	var l Locker
	unlock, err := l.Lock(context.Background(), "k")
	if err != nil {
		t.Fatalf("Lock failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(ctx, "k"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	unlock()
	unlock() // second call is a no-op
	if l.Len() != 0 {
		t.Fatalf("expected empty table, got %d", l.Len())
	}
}
