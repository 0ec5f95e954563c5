package bgfetch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitRunsTask(t *testing.T) {
	p := New(2)
	done := make(chan struct{})

	ok := p.Submit("page-1", func(ctx context.Context) { close(done) })
	require.True(t, ok)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task never ran")
	}
	p.Shutdown()
}

func TestSubmitDeduplicatesInflightKeys(t *testing.T) {
	p := New(1)
	release := make(chan struct{})
	var runs atomic.Int32

	started := make(chan struct{})
	require.True(t, p.Submit("same", func(ctx context.Context) {
		runs.Add(1)
		close(started)
		<-release
	}))
	<-started

	assert.False(t, p.Submit("same", func(ctx context.Context) { runs.Add(1) }))
	close(release)
	p.Shutdown()

	assert.Equal(t, int32(1), runs.Load())
}

func TestConcurrencyBound(t *testing.T) {
	p := New(2)
	var mu sync.Mutex
	running, peak := 0, 0
	release := make(chan struct{})

	// Submit from separate goroutines: with every worker busy, Submit
	// blocks until a slot frees.
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		key := string(rune('a' + i))
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Submit(key, func(ctx context.Context) {
				mu.Lock()
				running++
				if running > peak {
					peak = running
				}
				mu.Unlock()
				<-release
				mu.Lock()
				running--
				mu.Unlock()
			})
		}()
	}

	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()
	p.Shutdown()

	assert.LessOrEqual(t, peak, 2)
}

func TestShutdownCancelsAndJoins(t *testing.T) {
	p := New(2)
	started := make(chan struct{})
	var sawCancel atomic.Bool

	p.Submit("long", func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		sawCancel.Store(true)
	})
	<-started

	p.Shutdown()

	assert.True(t, sawCancel.Load(), "Shutdown must not return before tasks observe cancellation")
	assert.False(t, p.Submit("late", func(ctx context.Context) {}), "no submissions after shutdown")
	assert.Equal(t, 0, p.Pending())
}

func TestShutdownConcurrentWithSubmit(t *testing.T) {
	// Submissions racing Shutdown must either run before the final join or
	// be rejected; spawning a worker concurrently with the join is a crash.
	for i := 0; i < 50; i++ {
		p := New(2)
		stop := make(chan struct{})
		var wg sync.WaitGroup
		for g := 0; g < 4; g++ {
			wg.Add(1)
			go func(g int) {
				defer wg.Done()
				for j := 0; ; j++ {
					select {
					case <-stop:
						return
					default:
					}
					p.Submit(fmt.Sprintf("%d-%d", g, j), func(ctx context.Context) {})
				}
			}(g)
		}

		p.Shutdown()
		close(stop)
		wg.Wait()
		assert.False(t, p.Submit("late", func(ctx context.Context) {}))
	}
}

func TestTaskPanicDoesNotKillPool(t *testing.T) {
	p := New(1)

	p.Submit("boom", func(ctx context.Context) { panic("scrape exploded") })

	done := make(chan struct{})
	for !p.Submit("next", func(ctx context.Context) { close(done) }) {
		time.Sleep(5 * time.Millisecond)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pool stopped accepting work after panic")
	}
	p.Shutdown()
}
