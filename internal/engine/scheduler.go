package engine

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Job is one periodic background task. Errors are logged, never propagated;
// a failing job must not disturb the decision loop or its sibling jobs.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
	// RunOnStart fires the job immediately as well as on the ticker.
	RunOnStart bool
}

// Scheduler runs independent periodic jobs on their own cadences.
type Scheduler struct {
	jobs   []Job
	logger *slog.Logger
}

// NewScheduler builds an empty Scheduler.
func NewScheduler(logger *slog.Logger) *Scheduler {
	return &Scheduler{logger: logger.With(slog.String("component", "scheduler"))}
}

// Add registers a job. Call before Run.
func (s *Scheduler) Add(job Job) {
	s.jobs = append(s.jobs, job)
}

// Run drives all jobs until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, job := range s.jobs {
		g.Go(func() error {
			s.runJob(ctx, job)
			return nil
		})
	}
	return g.Wait()
}

func (s *Scheduler) runJob(ctx context.Context, job Job) {
	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	s.logger.Info("job scheduled",
		slog.String("job", job.Name), slog.Duration("interval", job.Interval))

	if job.RunOnStart {
		s.invoke(ctx, job)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.invoke(ctx, job)
		}
	}
}

func (s *Scheduler) invoke(ctx context.Context, job Job) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("job panicked",
				slog.String("job", job.Name), slog.Any("panic", r))
		}
	}()
	if err := job.Run(ctx); err != nil {
		s.logger.Warn("job failed",
			slog.String("job", job.Name), slog.String("error", err.Error()))
	}
}
