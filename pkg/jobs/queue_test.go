package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueProcessesJobs(t *testing.T) {
	var handled int32
	q := NewQueue("test", func(_ context.Context, _ Job) error {
		atomic.AddInt32(&handled, 1)
		return nil
	}, QueueConfig{Workers: 2, BufferSize: 8})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)
	defer q.Stop()

	for i := 0; i < 3; i++ {
		require.NoError(t, q.Enqueue(Job{ID: fmt.Sprintf("j-%d", i), Type: "t"}))
	}

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&handled) == 3
	}, time.Second, 10*time.Millisecond)
}

func TestQueueEnqueueRejectsWhenFull(t *testing.T) {
	block := make(chan struct{})
	q := NewQueue("test", func(_ context.Context, _ Job) error {
		<-block
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 1})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)
	defer q.Stop()
	defer close(block)

	// The worker parks on the first job; the buffer holds one more.
	// A bounded number of enqueues must hit the full buffer without
	// ever waiting on a worker.
	var full error
	for i := 0; i < 5; i++ {
		if err := q.Enqueue(Job{ID: fmt.Sprintf("j-%d", i), Type: "t"}); err != nil {
			full = err
			break
		}
	}
	require.Error(t, full)
	assert.True(t, errors.Is(full, ErrQueueFull))
}

func TestQueueEnqueueBeforeStart(t *testing.T) {
	q := NewQueue("test", func(_ context.Context, _ Job) error { return nil }, QueueConfig{})

	err := q.Enqueue(Job{ID: "j-1", Type: "t"})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrQueueFull))
}

func TestQueueRetriesFailedJobs(t *testing.T) {
	var attempts int32
	q := NewQueue("test", func(_ context.Context, _ Job) error {
		if atomic.AddInt32(&attempts, 1) == 1 {
			return errors.New("transient")
		}
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 4, RetryDelay: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "j-1", Type: "t"}))

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&attempts) == 2
	}, time.Second, 10*time.Millisecond)
}
