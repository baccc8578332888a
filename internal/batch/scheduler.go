package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/teampulse/teampulse-backend/internal/pkg/logger"
	"github.com/teampulse/teampulse-backend/internal/utils"
)

// Scheduler fires the runner on the configured cron expression, evaluated in
// the canonical timezone. One run at a time: a run still in flight when the
// next trigger arrives makes the new trigger a no-op.
type Scheduler struct {
	log    *logger.Logger
	cron   *cron.Cron
	runner *Runner

	running chan struct{}
}

func NewScheduler(cfg Config, runner *Runner, log *logger.Logger) (*Scheduler, error) {
	if runner == nil || log == nil {
		return nil, fmt.Errorf("scheduler: runner and logger required")
	}
	s := &Scheduler{
		log:     log.With("service", "BatchScheduler"),
		cron:    cron.New(cron.WithLocation(utils.CanonicalLocation())),
		runner:  runner,
		running: make(chan struct{}, 1),
	}
	if _, err := s.cron.AddFunc(cfg.Cron, s.fire); err != nil {
		return nil, fmt.Errorf("scheduler: bad cron %q: %w", cfg.Cron, err)
	}
	return s, nil
}

func (s *Scheduler) fire() {
	select {
	case s.running <- struct{}{}:
	default:
		s.log.Warn("previous run still in progress, skipping trigger")
		return
	}
	defer func() { <-s.running }()

	ctx, cancel := context.WithTimeout(context.Background(), 6*time.Hour)
	defer cancel()

	if err := s.runner.Run(ctx, time.Now()); err != nil {
		s.log.Error("scheduled run failed", "error", err)
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler started")
}

// Stop halts triggering and waits for a running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.running <- struct{}{}
	<-s.running
	s.log.Info("scheduler stopped")
}
