package execute

import (
	"context"
	"fmt"

	"testforge/internal/generate"
	"testforge/internal/track"
)

// Pool bounds concurrent access to an executor. Browser sessions and
// local interpreters are exclusive resources; size fixes how many
// scripts may run at once. Recording outcomes stays outside the
// serialized section.
type Pool struct {
	inner Executor
	sem   chan struct{}
}

// NewPool wraps inner with a token semaphore of the given size.
func NewPool(inner Executor, size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{inner: inner, sem: make(chan struct{}, size)}
}

// Execute blocks until a token is free, then delegates. A context
// canceled while waiting becomes an ERROR outcome, consistent with the
// rest of the executor surface.
func (p *Pool) Execute(ctx context.Context, script generate.Script) track.Outcome {
	if err := acquireToken(ctx, p.sem); err != nil {
		return errorOutcome(script, nil, fmt.Errorf("waiting for executor: %w", err))
	}
	defer func() { <-p.sem }()
	return p.inner.Execute(ctx, script)
}

// acquireToken takes a semaphore slot, respecting context cancellation.
func acquireToken(ctx context.Context, sem chan struct{}) error {
	select {
	case sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
