package infra

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/officeladder/ladder/internal/guard"
	"github.com/officeladder/ladder/internal/service"
)

// Scheduler runs periodic maintenance jobs.
type Scheduler struct {
	sched  gocron.Scheduler
	logger *slog.Logger
}

// NewScheduler creates a scheduler with no jobs.
func NewScheduler(logger *slog.Logger) (*Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	return &Scheduler{sched: sched, logger: logger}, nil
}

// AddReconcile registers a job that re-runs every prize check that failed
// after a report, whichever week the match belongs to.
func (s *Scheduler) AddReconcile(ctx context.Context, prizes *service.PrizeService, interval time.Duration) error {
	_, err := s.sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			res, err := prizes.ReconcilePending(ctx)
			if err != nil {
				s.logger.Error("scheduled prize reconcile failed", "error", err)
				return
			}
			s.logger.Debug("scheduled prize reconcile done", "evaluated", res.Evaluated, "awarded", res.Awarded)
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("register reconcile job: %w", err)
	}
	return nil
}

// AddPairing registers a job that pairs players left waiting in any office,
// for example after a pairing attempt failed.
func (s *Scheduler) AddPairing(ctx context.Context, queue *service.QueueService, interval time.Duration) error {
	_, err := s.sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			n, err := queue.PairWaiting(ctx)
			if err != nil {
				s.logger.Error("scheduled queue pairing failed", "paired", n, "error", err)
				return
			}
			if n > 0 {
				s.logger.Info("scheduled queue pairing done", "paired", n)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("register pairing job: %w", err)
	}
	return nil
}

// AddSweep registers a job that drops expired rate limiter keys.
func (s *Scheduler) AddSweep(limiter *guard.RateLimiter, interval time.Duration) error {
	_, err := s.sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(limiter.Sweep),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("register sweep job: %w", err)
	}
	return nil
}

// Start begins running jobs.
func (s *Scheduler) Start() {
	s.sched.Start()
	s.logger.Info("scheduler started", "jobs", len(s.sched.Jobs()))
}

// Shutdown stops the scheduler and waits for running jobs.
func (s *Scheduler) Shutdown() error {
	return s.sched.Shutdown()
}
