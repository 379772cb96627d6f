package services

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/semaphore"

	"github.com/skaldhq/skald/internal/core/domain"
)

// PipelineRequest is one queued pipeline run.
type PipelineRequest struct {
	JobID      domain.JobID
	UserID     string
	YoutubeURL string
}

// SchedulerConfig defines concurrency limits.
type SchedulerConfig struct {
	MaxConcurrentJobs int64
}

// JobScheduler decouples report requests from pipeline execution: requests
// queue through a buffered channel and run on background goroutines bounded
// by a weighted semaphore. HTTP handlers never block on a pipeline.
type JobScheduler struct {
	logger       *slog.Logger
	pendingQueue chan PipelineRequest
	semaphore    *semaphore.Weighted
}

func NewJobScheduler(logger *slog.Logger, cfg SchedulerConfig) *JobScheduler {
	limit := cfg.MaxConcurrentJobs
	if limit <= 0 {
		limit = 4
	}

	return &JobScheduler{
		logger:       logger,
		pendingQueue: make(chan PipelineRequest, 100),
		semaphore:    semaphore.NewWeighted(limit),
	}
}

// Submit adds a pipeline run to the scheduling queue.
func (s *JobScheduler) Submit(ctx context.Context, req PipelineRequest) error {
	select {
	case s.pendingQueue <- req:
		s.logger.Info("job submitted", "job_id", req.JobID)
		return nil
	default:
		return errors.New("scheduling queue full")
	}
}

// Start consumes queued requests and executes them with the handler. Each
// request runs on its own goroutine so the consumer loop never blocks.
func (s *JobScheduler) Start(ctx context.Context, handler func(context.Context, PipelineRequest)) {
	s.logger.Info("starting job scheduler")

	go func() {
		for {
			select {
			case <-ctx.Done():
				s.logger.Info("stopping scheduler")
				return
			case req := <-s.pendingQueue:
				if err := s.semaphore.Acquire(ctx, 1); err != nil {
					s.logger.Error("failed to acquire semaphore", "error", err)
					return
				}

				go func(r PipelineRequest) {
					defer s.semaphore.Release(1)
					handler(ctx, r)
				}(req)
			}
		}
	}()
}
