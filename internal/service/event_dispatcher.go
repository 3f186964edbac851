package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ajaykrishnavemula/Campus-Pass-sub001/internal/models"
	"github.com/ajaykrishnavemula/Campus-Pass-sub001/pkg/jobs"
)

const transitionJobType = "outpass_transition"

// TransitionHandler consumes a committed transition event.
type TransitionHandler func(ctx context.Context, event models.TransitionEvent) error

// EventDispatcher decouples the transition response path from the
// notification fan-out: Publish enqueues onto an in-process worker pool
// and returns immediately. A full queue drops the event rather than
// stalling the caller.
type EventDispatcher struct {
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewEventDispatcher builds the dispatcher around a worker queue that
// feeds handle.
func NewEventDispatcher(handle TransitionHandler, cfg jobs.QueueConfig) *EventDispatcher {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	queue := jobs.NewQueue("transitions", func(ctx context.Context, job jobs.Job) error {
		event, ok := job.Payload.(models.TransitionEvent)
		if !ok {
			logger.Error("transition job carries unexpected payload", zap.String("job_id", job.ID))
			return nil
		}
		return handle(ctx, event)
	}, cfg)
	return &EventDispatcher{queue: queue, logger: logger}
}

// Start launches the worker pool.
func (d *EventDispatcher) Start(ctx context.Context) {
	d.queue.Start(ctx)
}

// Stop drains the worker pool.
func (d *EventDispatcher) Stop() {
	d.queue.Stop()
}

// Publish enqueues a committed transition. The enqueue is non-blocking;
// a full queue drops the event with a warning because the transition
// itself has already succeeded and the caller must not wait.
func (d *EventDispatcher) Publish(event models.TransitionEvent) {
	err := d.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    transitionJobType,
		Payload: event,
	})
	if err != nil {
		d.logger.Warn("dropping transition event",
			zap.String("kind", string(event.Kind)),
			zap.String("outpass_id", event.Outpass.ID),
			zap.Error(err))
	}
}
