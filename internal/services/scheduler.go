package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/kelsos/weave-sweep/internal/logger"
)

// Scheduler repeats a job at a fixed interval. A run that outlasts the
// interval delays the next one instead of overlapping it.
type Scheduler struct {
	every time.Duration
	job   func(ctx context.Context)
}

func NewScheduler(every time.Duration, job func(ctx context.Context)) *Scheduler {
	return &Scheduler{every: every, job: job}
}

// Run starts the schedule immediately and blocks until ctx is done
func (s *Scheduler) Run(ctx context.Context) error {
	if s.every <= 0 {
		return fmt.Errorf("schedule interval must be positive, got %s", s.every)
	}

	scheduler := gocron.NewScheduler(time.UTC)
	job, err := scheduler.Every(s.every).Do(func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("Scheduled run panicked: %v", r)
			}
		}()
		if ctx.Err() != nil {
			return
		}
		s.job(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule run: %w", err)
	}
	job.SingletonMode()

	logger.Info("Running every %s", s.every)
	scheduler.StartAsync()

	<-ctx.Done()
	scheduler.Stop()
	logger.Info("Scheduler stopped")
	return nil
}
