package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/steinsgo/personal-site/internal/tasks"
)

type Enqueuer interface {
	Enqueue(ctx context.Context, task tasks.Task) error
}

// Scheduler enqueues periodic housekeeping tasks for the worker.
type Scheduler struct {
	cron          *cron.Cron
	queue         Enqueuer
	sweepSchedule string
	log           zerolog.Logger
}

// NewScheduler takes a six-field cron spec (with seconds).
func NewScheduler(queue Enqueuer, sweepSchedule string, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:          cron.New(cron.WithSeconds()),
		queue:         queue,
		sweepSchedule: sweepSchedule,
		log:           log,
	}
}

func (s *Scheduler) Start() error {
	if s.queue == nil {
		return nil
	}

	if _, err := s.cron.AddFunc(s.sweepSchedule, s.enqueueSessionCleanup); err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

// Stop waits up to five seconds for a running job to finish.
func (s *Scheduler) Stop() {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-time.After(5 * time.Second):
		s.log.Warn().Msg("scheduler stop timed out")
	}
}

func (s *Scheduler) enqueueSessionCleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.queue.Enqueue(ctx, tasks.Task{Type: tasks.TypeSessionCleanup}); err != nil {
		s.log.Error().Err(err).Msg("enqueue session cleanup failed")
	}
}
