// Package worker runs per-conversation job loops behind one shared
// concurrency semaphore, so a busy conversation cannot starve the rest.
package worker

import "context"

type Pool struct {
	ctx context.Context
	sem chan struct{}
}

// NewPool bounds all spawned loops by maxConcurrency and by ctx.
func NewPool(ctx context.Context, maxConcurrency int) *Pool {
	if ctx == nil {
		ctx = context.Background()
	}
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}
	return &Pool{ctx: ctx, sem: make(chan struct{}, maxConcurrency)}
}

// Spawn starts one loop draining jobs. Each job acquires a semaphore
// slot before handle runs; the loop exits when the pool context is done
// or the channel closes.
func Spawn[J any](p *Pool, jobs <-chan J, handle func(context.Context, J)) {
	go func() {
		for {
			select {
			case <-p.ctx.Done():
				return
			case job, ok := <-jobs:
				if !ok {
					return
				}
				select {
				case p.sem <- struct{}{}:
				case <-p.ctx.Done():
					return
				}
				func() {
					defer func() { <-p.sem }()
					handle(p.ctx, job)
				}()
			}
		}
	}()
}

// Enqueue offers a job without blocking past either context.
func Enqueue[J any](ctx context.Context, p *Pool, jobs chan<- J, job J) error {
	if ctx == nil {
		ctx = p.ctx
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ctx.Done():
		return p.ctx.Err()
	case jobs <- job:
		return nil
	}
}
