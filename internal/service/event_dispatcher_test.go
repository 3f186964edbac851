package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajaykrishnavemula/Campus-Pass-sub001/internal/models"
	"github.com/ajaykrishnavemula/Campus-Pass-sub001/pkg/jobs"
)

func TestEventDispatcherDeliversToHandler(t *testing.T) {
	var mu sync.Mutex
	var received []models.TransitionKind

	dispatcher := NewEventDispatcher(func(_ context.Context, event models.TransitionEvent) error {
		mu.Lock()
		received = append(received, event.Kind)
		mu.Unlock()
		return nil
	}, jobs.QueueConfig{Workers: 2, BufferSize: 8})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	dispatcher.Publish(models.TransitionEvent{Kind: models.TransitionCreated, Outpass: models.Outpass{ID: "op-1"}})
	dispatcher.Publish(models.TransitionEvent{Kind: models.TransitionApproved, Outpass: models.Outpass{ID: "op-1"}})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 2
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []models.TransitionKind{models.TransitionCreated, models.TransitionApproved}, received)
}

func TestEventDispatcherPublishNeverBlocksOnFullQueue(t *testing.T) {
	block := make(chan struct{})
	dispatcher := NewEventDispatcher(func(_ context.Context, _ models.TransitionEvent) error {
		<-block
		return nil
	}, jobs.QueueConfig{Workers: 1, BufferSize: 1})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	dispatcher.Start(ctx)
	defer dispatcher.Stop()
	defer close(block)

	// With the single worker parked and the buffer full, every further
	// Publish must drop the event and return immediately.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			dispatcher.Publish(models.TransitionEvent{Kind: models.TransitionCreated, Outpass: models.Outpass{ID: "op-1"}})
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full queue")
	}
}

func TestEventDispatcherPublishBeforeStartIsSwallowed(t *testing.T) {
	dispatcher := NewEventDispatcher(func(_ context.Context, _ models.TransitionEvent) error {
		t.Fatal("handler should not run")
		return nil
	}, jobs.QueueConfig{})

	// Enqueue fails because the queue has not started; the transition
	// response path must not observe that failure.
	dispatcher.Publish(models.TransitionEvent{Kind: models.TransitionCreated, Outpass: models.Outpass{ID: "op-1"}})
}
