package jobs

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"staffbook/internal/platform/logger"
)

const (
	JobRecycleBinRetention = "recycle_bin_retention"
	JobSessionCleanup      = "session_cleanup"
)

// Recorder receives the outcome of every job run.
type Recorder interface {
	JobRun(jobType string, failed bool)
}

// Schedule runs fn every Interval. A zero interval disables the schedule.
type Schedule struct {
	Type     string
	Interval time.Duration
	Run      func(context.Context) (any, error)
}

type Service struct {
	schedules []Schedule
	recorder  Recorder
	queue     chan job
}

type job struct {
	Type string
	Run  func(context.Context) (any, error)
}

func New(recorder Recorder, schedules ...Schedule) *Service {
	return &Service{
		schedules: schedules,
		recorder:  recorder,
		queue:     make(chan job, 128),
	}
}

// Run processes queued jobs and fires the schedules until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.worker(ctx)
		return nil
	})
	for _, sched := range s.schedules {
		if sched.Interval <= 0 || sched.Run == nil {
			continue
		}
		g.Go(func() error {
			s.schedule(ctx, sched)
			return nil
		})
	}
	return g.Wait()
}

func (s *Service) Enqueue(jobType string, run func(context.Context) (any, error)) bool {
	select {
	case s.queue <- job{Type: jobType, Run: run}:
		return true
	default:
		logger.From(context.Background()).Warn().Str("jobType", jobType).Msg("job queue full")
		return false
	}
}

func (s *Service) RunNow(ctx context.Context, jobType string, run func(context.Context) (any, error)) (any, error) {
	return s.runJob(ctx, job{Type: jobType, Run: run})
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			if _, err := s.runJob(ctx, j); err != nil {
				logger.From(ctx).Warn().Err(err).Str("jobType", j.Type).Msg("job run failed")
			}
		}
	}
}

func (s *Service) runJob(ctx context.Context, j job) (any, error) {
	runID := uuid.NewString()
	ctx = logger.With(ctx, map[string]any{"jobType": j.Type, "runId": runID})
	start := time.Now()

	details, err := j.Run(ctx)
	if s.recorder != nil {
		s.recorder.JobRun(j.Type, err != nil)
	}
	event := logger.From(ctx).Info()
	if err != nil {
		event = logger.From(ctx).Warn().Err(err)
	}
	event.Interface("details", details).Dur("duration", time.Since(start)).Msg("job run completed")
	return details, err
}

func (s *Service) schedule(ctx context.Context, sched Schedule) {
	ticker := time.NewTicker(sched.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Enqueue(sched.Type, sched.Run)
		}
	}
}
