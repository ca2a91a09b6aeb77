// Package cpu runs CPU-bound work (argon2id hashing and key derivation) off
// the caller's goroutine with bounded parallelism.
//
// A caller whose context ends stops waiting, but work that already started
// runs to completion and its result is discarded. Memory-hard functions
// cannot be interrupted midway.
package cpu

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Pool bounds how many CPU-bound jobs run at once.
type Pool struct {
	sem *semaphore.Weighted
}

// NewPool returns a pool running at most n jobs concurrently. n < 1 means 1.
func NewPool(n int) *Pool {
	if n < 1 {
		n = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(n))}
}

type result[T any] struct {
	value T
	err   error
}

// Run executes fn on the pool and waits for its result or for ctx to end.
func Run[T any](ctx context.Context, p *Pool, fn func() (T, error)) (T, error) {
	var zero T
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return zero, err
	}

	done := make(chan result[T], 1)
	go func() {
		defer p.sem.Release(1)
		v, err := fn()
		done <- result[T]{value: v, err: err}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
