// Package sched wraps the shared cron scheduler used by serve mode. The
// fetch and compile pipelines register here instead of running their own
// timers.
package sched

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
)

// JobInfo describes a registered job for inspection.
type JobInfo struct {
	ID       string
	Name     string
	Schedule string
	LastRun  time.Time
	NextRun  time.Time
}

// Scheduler runs named cron jobs.
type Scheduler struct {
	mu        sync.Mutex
	scheduler gocron.Scheduler
	jobs      map[string]gocron.Job
	schedules map[string]string
	log       zerolog.Logger
}

// New creates an empty scheduler.
func New(log zerolog.Logger) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create cron scheduler: %w", err)
	}
	return &Scheduler{
		scheduler: s,
		jobs:      make(map[string]gocron.Job),
		schedules: make(map[string]string),
		log:       log,
	}, nil
}

// Add registers a named cron job. Names must be unique.
func (s *Scheduler) Add(name, cronExpr string, taskFn any, args ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job already registered: %s", name)
	}

	j, err := s.scheduler.NewJob(
		gocron.CronJob(cronExpr, false),
		gocron.NewTask(taskFn, args...),
		gocron.WithName(name),
	)
	if err != nil {
		return fmt.Errorf("create job %s: %w", name, err)
	}

	s.jobs[name] = j
	s.schedules[name] = cronExpr
	s.log.Info().Str("job", name).Str("cron", cronExpr).Msg("job registered")
	return nil
}

// Jobs returns info about every registered job.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]JobInfo, 0, len(s.jobs))
	for name, j := range s.jobs {
		info := JobInfo{
			ID:       j.ID().String(),
			Name:     name,
			Schedule: s.schedules[name],
		}
		if lr, err := j.LastRun(); err == nil {
			info.LastRun = lr
		}
		if nr, err := j.NextRun(); err == nil {
			info.NextRun = nr
		}
		infos = append(infos, info)
	}
	return infos
}

// Start begins executing registered jobs.
func (s *Scheduler) Start() {
	s.scheduler.Start()
	s.log.Info().Int("jobs", len(s.jobs)).Msg("scheduler started")
}

// Stop shuts the scheduler down and waits for running jobs.
func (s *Scheduler) Stop() error {
	return s.scheduler.Shutdown()
}
