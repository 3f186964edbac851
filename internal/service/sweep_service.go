package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ajaykrishnavemula/Campus-Pass-sub001/internal/models"
)

type overdueCandidateSource interface {
	ListOverdueCandidates(ctx context.Context, now time.Time, limit int) ([]models.Outpass, error)
}

type overdueMarker interface {
	MarkOverdue(ctx context.Context, id string) (bool, error)
}

// SweepService periodically flags checked-out passes whose return time
// has lapsed. It is advisory: a check-in that lands mid-sweep wins and
// the sweep moves on.
type SweepService struct {
	candidates overdueCandidateSource
	marker     overdueMarker
	logger     *zap.Logger

	interval  time.Duration
	batchSize int
	now       func() time.Time

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped chan struct{}
}

// SweepOption configures the sweep.
type SweepOption func(*SweepService)

// WithSweepClock overrides the time source.
func WithSweepClock(now func() time.Time) SweepOption {
	return func(s *SweepService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSweepService constructs the sweep.
func NewSweepService(candidates overdueCandidateSource, marker overdueMarker, interval time.Duration, batchSize int, logger *zap.Logger, opts ...SweepOption) *SweepService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	svc := &SweepService{
		candidates: candidates,
		marker:     marker,
		logger:     logger,
		interval:   interval,
		batchSize:  batchSize,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Start launches the ticker loop. Safe to call once.
func (s *SweepService) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.stopped = make(chan struct{})

	go func() {
		defer close(s.stopped)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		s.logger.Info("overdue sweep started",
			zap.Duration("interval", s.interval),
			zap.Int("batch_size", s.batchSize))
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.RunOnce(ctx)
			}
		}
	}()
}

// Stop halts the loop and waits for the in-flight pass to finish.
func (s *SweepService) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	stopped := s.stopped
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-stopped
	s.logger.Info("overdue sweep stopped")
}

// RunOnce performs a single sweep pass and returns how many passes were
// newly flagged.
func (s *SweepService) RunOnce(ctx context.Context) int {
	now := s.now()
	candidates, err := s.candidates.ListOverdueCandidates(ctx, now, s.batchSize)
	if err != nil {
		s.logger.Error("failed to list overdue candidates", zap.Error(err))
		return 0
	}

	flagged := 0
	for _, outpass := range candidates {
		marked, err := s.marker.MarkOverdue(ctx, outpass.ID)
		if err != nil {
			s.logger.Error("failed to mark outpass overdue",
				zap.String("outpass_id", outpass.ID), zap.Error(err))
			continue
		}
		if marked {
			flagged++
		}
	}
	if flagged > 0 {
		s.logger.Info("overdue sweep flagged passes", zap.Int("flagged", flagged))
	}
	return flagged
}
