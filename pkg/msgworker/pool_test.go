package msgworker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_DispatchDoesNotBlockCaller(t *testing.T) {
	pool := NewMessageWorkerPool(2, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)
	defer pool.Stop()

	start := time.Now()
	ok := pool.TryDispatch(MessageJob{
		ChannelKey: "ch-1",
		ChatKey:    "5511999990000",
		Handler: func(ctx context.Context) error {
			time.Sleep(100 * time.Millisecond)
			return nil
		},
	})

	assert.True(t, ok)
	assert.Less(t, time.Since(start), 20*time.Millisecond)
}

func TestPool_SameChatKeepsOrder(t *testing.T) {
	pool := NewMessageWorkerPool(4, 100)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)
	defer pool.Stop()

	var (
		mu      sync.Mutex
		results []int
		wg      sync.WaitGroup
	)
	for i := 1; i <= 5; i++ {
		val := i
		wg.Add(1)
		pool.Dispatch(MessageJob{
			ChannelKey: "ch-1",
			ChatKey:    "chat-1",
			Handler: func(ctx context.Context) error {
				defer wg.Done()
				time.Sleep(5 * time.Millisecond)
				mu.Lock()
				results = append(results, val)
				mu.Unlock()
				return nil
			},
		})
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []int{1, 2, 3, 4, 5}, results)
}

func TestPool_RespectsMaxWorkers(t *testing.T) {
	maxWorkers := 3
	pool := NewMessageWorkerPool(maxWorkers, 100)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)
	defer pool.Stop()

	var active, peak int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		pool.Dispatch(MessageJob{
			ChannelKey: "ch-1",
			ChatKey:    string(rune('A' + i)),
			Handler: func(ctx context.Context) error {
				defer wg.Done()
				cur := atomic.AddInt32(&active, 1)
				for {
					p := atomic.LoadInt32(&peak)
					if cur <= p || atomic.CompareAndSwapInt32(&peak, p, cur) {
						break
					}
				}
				time.Sleep(20 * time.Millisecond)
				atomic.AddInt32(&active, -1)
				return nil
			},
		})
	}
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(maxWorkers))
}

func TestPool_StopCompletesAcceptedJobs(t *testing.T) {
	pool := NewMessageWorkerPool(2, 10)
	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)

	var completed int32
	for i := 0; i < 2; i++ {
		pool.Dispatch(MessageJob{
			ChannelKey: "ch-1",
			ChatKey:    string(rune('A' + i)),
			Handler: func(ctx context.Context) error {
				time.Sleep(30 * time.Millisecond)
				atomic.AddInt32(&completed, 1)
				return nil
			},
		})
	}
	time.Sleep(5 * time.Millisecond)

	cancel()
	pool.Stop()

	assert.Equal(t, int32(2), atomic.LoadInt32(&completed))
}

func TestPool_ConsistentSharding(t *testing.T) {
	pool := NewMessageWorkerPool(4, 100)
	job := MessageJob{ChannelKey: "ch-1", ChatKey: "chat-123"}

	first := pool.shardFor(job)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, pool.shardFor(job))
	}
	assert.GreaterOrEqual(t, first, 0)
	assert.Less(t, first, 4)
}

func TestPool_DropsWhenQueueFull(t *testing.T) {
	pool := NewMessageWorkerPool(1, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)
	defer pool.Stop()

	release := make(chan struct{})
	started := make(chan struct{})
	block := MessageJob{ChannelKey: "ch", ChatKey: "x", Handler: func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}}
	require.True(t, pool.TryDispatch(block))
	<-started

	noop := MessageJob{ChannelKey: "ch", ChatKey: "x", Handler: func(ctx context.Context) error { return nil }}
	require.True(t, pool.TryDispatch(noop))
	assert.False(t, pool.TryDispatch(noop))
	close(release)

	assert.Equal(t, int64(1), pool.GetStats().TotalDropped)
}

func TestPool_RecoversFromPanicAndCountsErrors(t *testing.T) {
	pool := NewMessageWorkerPool(1, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)

	pool.Dispatch(MessageJob{ChannelKey: "ch", ChatKey: "a", Handler: func(ctx context.Context) error {
		panic("boom")
	}})
	pool.Dispatch(MessageJob{ChannelKey: "ch", ChatKey: "a", Handler: func(ctx context.Context) error {
		return errors.New("failed")
	}})
	done := make(chan struct{})
	pool.Dispatch(MessageJob{ChannelKey: "ch", ChatKey: "a", Handler: func(ctx context.Context) error {
		close(done)
		return nil
	}})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not survive panic")
	}
	pool.Stop()

	stats := pool.GetStats()
	assert.Equal(t, int64(2), stats.TotalErrors)
	assert.Equal(t, int64(3), stats.TotalProcessed)
}

func TestPool_RejectsAfterStop(t *testing.T) {
	pool := NewMessageWorkerPool(1, 1)
	pool.Start(context.Background())
	pool.Stop()

	assert.False(t, pool.TryDispatch(MessageJob{ChannelKey: "ch", ChatKey: "a", Handler: func(ctx context.Context) error { return nil }}))
}
