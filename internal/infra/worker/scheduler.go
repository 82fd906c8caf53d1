// Package worker drives periodic jobs from a cron expression evaluated in a
// configured timezone.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// Job runs one scheduled pass and reports how many items it visited.
type Job func(ctx context.Context) (int, error)

// Scheduler runs a Job at every activation of its schedule. Runs never
// overlap: the next activation is computed after the previous run returns,
// so activations missed while a run is in progress are skipped.
type Scheduler struct {
	schedule cron.Schedule
	loc      *time.Location
	cfg      WorkerConfig
	job      Job
	metrics  *WorkerMetrics
	logger   *slog.Logger
	now      func() time.Time
}

func NewScheduler(cfg WorkerConfig, job Job, metrics *WorkerMetrics, logger *slog.Logger) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone: %w", err)
	}
	schedule, err := cron.ParseStandard(cfg.CronSchedule)
	if err != nil {
		return nil, fmt.Errorf("parse cron schedule: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		schedule: schedule,
		loc:      loc,
		cfg:      cfg,
		job:      job,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Next returns the first activation strictly after t.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.schedule.Next(t.In(s.loc))
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started",
		slog.String("schedule", s.cfg.CronSchedule),
		slog.String("timezone", s.cfg.Timezone),
		slog.Time("next_run", s.Next(s.now())))

	if s.cfg.RunOnStart {
		_ = s.RunOnce(ctx)
	}

	for {
		next := s.Next(s.now())
		timer := time.NewTimer(next.Sub(s.now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("scheduler stopped")
			return nil
		case <-timer.C:
		}
		_ = s.RunOnce(ctx)
	}
}

// RunOnce executes the job under RunTimeout and records the outcome.
func (s *Scheduler) RunOnce(ctx context.Context) (err error) {
	runID := uuid.NewString()
	logger := s.logger.With(slog.String("run_id", runID))

	ctx, cancel := context.WithTimeout(ctx, s.cfg.RunTimeout)
	defer cancel()

	start := time.Now()
	processed := 0
	logger.Info("scheduled run starting")

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scheduled job panicked: %v", r)
		}
		duration := time.Since(start)
		s.metrics.RecordRun(err == nil, duration.Seconds(), processed)
		if err != nil {
			logger.Error("scheduled run failed",
				slog.Duration("duration", duration),
				slog.Any("error", err))
			return
		}
		logger.Info("scheduled run completed",
			slog.Int("processed", processed),
			slog.Duration("duration", duration))
	}()

	processed, err = s.job(ctx)
	return err
}
