package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/sirupsen/logrus"

	"github.com/i474232898/hellas-grid-monitor/internal/cache"
	"github.com/i474232898/hellas-grid-monitor/internal/common"
)

// DefaultTaskTimeout bounds a single warm-up task.
const DefaultTaskTimeout = 60 * time.Second

// Task is one cache warm-up step.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Scheduler periodically runs the warm-up tasks so that dashboard requests
// are served from a fresh cache.
type Scheduler struct {
	scheduler *gocron.Scheduler
	tasks     []Task
	interval  time.Duration
	timeout   time.Duration
	logger    *logrus.Logger
}

// New creates a new Scheduler.
func New(tasks []Task, interval time.Duration, logger *logrus.Logger) *Scheduler {
	if logger == nil {
		logger = common.NopLogger()
	}
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler: s,
		tasks:     tasks,
		interval:  interval,
		timeout:   DefaultTaskTimeout,
		logger:    logger,
	}
}

// Start schedules the periodic job and starts the underlying scheduler. The
// first run happens immediately.
func (s *Scheduler) Start() error {
	if len(s.tasks) == 0 {
		s.logger.Info("scheduler: no tasks configured; nothing to schedule")
		return nil
	}

	interval := s.interval
	if interval <= 0 {
		interval = 15 * time.Minute
	}

	_, err := s.scheduler.Every(interval).SingletonMode().Do(s.RunOnce)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// RunOnce runs every task concurrently and waits for them to finish.
// Tasks run under cache.ForceRefresh, so entries still inside their window
// are refetched instead of left to expire between runs. Failures are
// logged; they never stop the other tasks.
func (s *Scheduler) RunOnce() {
	began := time.Now()
	s.logger.Debug("scheduler: running warm-up job")

	var wg sync.WaitGroup
	for _, task := range s.tasks {
		task := task
		wg.Add(1)
		go func() {
			defer wg.Done()

			ctx, cancel := context.WithTimeout(cache.ForceRefresh(context.Background()), s.timeout)
			defer cancel()

			if err := task.Run(ctx); err != nil {
				s.logger.WithError(err).WithField("task", task.Name).Warn("scheduler: warm-up task failed")
			}
		}()
	}
	wg.Wait()

	s.logger.WithField("elapsed", time.Since(began)).Info("scheduler: completed warm-up job")
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
