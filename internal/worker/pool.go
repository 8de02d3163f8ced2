// Package worker runs tasks on a bounded set of goroutines with optional pacing.
package worker

import (
	"context"
	"sync"
	"time"
)

type Task func(ctx context.Context) error

type Result struct {
	Err error
}

type Pool struct {
	workers int
	tasks   chan Task
	wg      sync.WaitGroup
	mu      sync.RWMutex
	rate    <-chan time.Time
	ticker  *time.Ticker
	every   time.Duration
	started bool
}

func NewPool(workers, buffer int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if buffer < 0 {
		buffer = 0
	}
	return &Pool{
		workers: workers,
		tasks:   make(chan Task, buffer),
	}
}

// SetInterval spaces task starts at least d apart across all workers. The
// first task starts immediately. d <= 0 removes pacing.
func (p *Pool) SetInterval(d time.Duration) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopTickerLocked()
	if d <= 0 {
		return
	}
	p.every = d
	p.ticker = time.NewTicker(d)
	p.rate = p.ticker.C
}

func (p *Pool) stopTickerLocked() {
	if p.ticker != nil {
		p.ticker.Stop()
		p.ticker = nil
		p.rate = nil
	}
}

func (p *Pool) Submit(t Task) {
	if p == nil || t == nil {
		return
	}
	p.tasks <- t
}

// Close stops accepting tasks; queued tasks still run.
func (p *Pool) Close() {
	if p == nil {
		return
	}
	close(p.tasks)
}

// Run starts the workers. The returned channel closes once every worker has
// exited, either because Close drained the queue or ctx was cancelled.
func (p *Pool) Run(ctx context.Context) <-chan Result {
	if p == nil {
		out := make(chan Result)
		close(out)
		return out
	}
	out := make(chan Result, cap(p.tasks)+p.workers)

	p.wg.Add(p.workers)
	for i := 0; i < p.workers; i++ {
		go func() {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case t, ok := <-p.tasks:
					if !ok {
						return
					}
					if !p.wait(ctx) {
						return
					}
					err := t(ctx)
					select {
					case <-ctx.Done():
						return
					case out <- Result{Err: err}:
					}
				}
			}
		}()
	}

	go func() {
		p.wg.Wait()
		p.mu.Lock()
		p.stopTickerLocked()
		p.mu.Unlock()
		close(out)
	}()

	return out
}

func (p *Pool) wait(ctx context.Context) bool {
	p.mu.Lock()
	rate := p.rate
	first := !p.started
	p.started = true
	if first && p.ticker != nil {
		p.ticker.Reset(p.every)
	}
	p.mu.Unlock()
	if rate == nil || first {
		return true
	}
	select {
	case <-ctx.Done():
		return false
	case <-rate:
		return true
	}
}

// Drain waits for every result and returns the first error.
func Drain(results <-chan Result) error {
	var first error
	for r := range results {
		if r.Err != nil && first == nil {
			first = r.Err
		}
	}
	return first
}
