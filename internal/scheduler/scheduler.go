package scheduler

import (
	"context"
	"log/slog"
)

// Job is the work fired on each trigger.
type Job interface {
	Run(ctx context.Context) Result
}

// Scheduler fires a Job at every instant yielded by its Trigger.  Runs are
// sequential; a run that overlaps the next firing delays it.
type Scheduler struct {
	job     Job
	trigger Trigger
	clock   Clock
	logger  *slog.Logger
}

// New builds a Scheduler.  clock and logger may be nil.
func New(job Job, trigger Trigger, clock Clock, logger *slog.Logger) *Scheduler {
	if clock == nil {
		clock = RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{job: job, trigger: trigger, clock: clock, logger: logger}
}

// Start blocks until ctx is cancelled or the trigger runs out of firings.
func (s *Scheduler) Start(ctx context.Context) {
	for {
		now := s.clock.Now()
		next := s.trigger.Next(now)
		if next.IsZero() {
			s.logger.Warn("release schedule has no further firings")
			return
		}
		s.logger.Info("next seat release scheduled", slog.Time("at", next))

		select {
		case <-ctx.Done():
			s.logger.Info("release scheduler stopped")
			return
		case <-s.clock.After(next.Sub(now)):
		}
		s.RunOnce(ctx)
	}
}

// RunOnce fires the job immediately.
func (s *Scheduler) RunOnce(ctx context.Context) Result {
	return s.job.Run(ctx)
}

// Loop starts the scheduler in a goroutine and returns a channel closed
// when it exits.
func (s *Scheduler) Loop(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Start(ctx)
	}()
	return done
}
