// Package bgfetch runs background page refreshes. Scrape providers that
// find an uncached, script-rendered page return immediately and hand the
// slow browser fetch to this pool, so callers never block on Chrome.
package bgfetch

import (
	"context"
	"log/slog"
	"sync"

	"github.com/sourcegraph/conc/pool"
)

// Task fetches and stores one page. It must respect ctx cancellation.
type Task = func(ctx context.Context)

// Pool is a bounded background worker pool with shared cancellation.
// All tasks observe one context; Shutdown cancels it and joins every
// worker before returning.
type Pool struct {
	ctx    context.Context
	cancel context.CancelFunc
	pool   *pool.Pool

	// gate orders submissions against shutdown: Submit holds it shared
	// around pool.Go, Shutdown takes it exclusively before waiting, so a
	// worker is never spawned concurrently with the final join.
	gate   sync.RWMutex
	closed bool

	mu       sync.Mutex
	inflight map[string]bool
}

// New creates a pool running at most workers tasks concurrently.
func New(workers int) *Pool {
	if workers <= 0 {
		workers = 2
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		ctx:      ctx,
		cancel:   cancel,
		pool:     pool.New().WithMaxGoroutines(workers),
		inflight: make(map[string]bool),
	}
}

// Submit schedules a task under the given key. A key already scheduled and
// not yet finished is skipped, so repeated lookups of the same page do not
// pile up duplicate fetches. Returns false when the task was not accepted.
func (p *Pool) Submit(key string, task Task) bool {
	p.gate.RLock()
	defer p.gate.RUnlock()
	if p.closed {
		return false
	}

	p.mu.Lock()
	if p.inflight[key] {
		p.mu.Unlock()
		return false
	}
	p.inflight[key] = true
	p.mu.Unlock()

	p.pool.Go(func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Background fetch panicked", "key", key, "panic", r)
			}
			p.mu.Lock()
			delete(p.inflight, key)
			p.mu.Unlock()
		}()

		if p.ctx.Err() != nil {
			return
		}
		task(p.ctx)
	})
	return true
}

// Pending reports how many tasks are scheduled or running.
func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.inflight)
}

// Shutdown cancels the shared context, rejects further submissions, and
// waits for all running tasks to return.
func (p *Pool) Shutdown() {
	p.gate.Lock()
	if p.closed {
		p.gate.Unlock()
		return
	}
	p.closed = true
	p.gate.Unlock()

	p.cancel()
	p.pool.Wait()
}
