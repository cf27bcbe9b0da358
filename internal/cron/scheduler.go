package cron

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// Scheduler runs registered jobs on their cron schedules. A per-job TryLock
// skips a tick when the previous run of the same job is still in flight, so
// a slow sweep never stacks up behind itself.
type Scheduler struct {
	mu      sync.Mutex
	runner  *cron.Cron
	entries []entry
	logger  *slog.Logger
	cancel  context.CancelFunc
	locks   map[string]*sync.Mutex
}

type entry struct {
	job Job
}

// NewScheduler creates an empty scheduler. Register jobs before Start; the
// job set is fixed once running.
func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
	}
}

// RegisterJob adds a job. Job names must be unique; the name keys the
// overlap lock and the log lines.
func (s *Scheduler) RegisterJob(j Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := j.Name()
	if _, dup := s.locks[name]; dup {
		return fmt.Errorf("cron: duplicate job name %q", name)
	}
	s.locks[name] = &sync.Mutex{}
	s.entries = append(s.entries, entry{job: j})
	return nil
}

// Start parses every job's schedule and begins ticking. An invalid
// expression fails the whole Start so misconfiguration surfaces at boot
// rather than as a silently missing job.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	s.runner = cron.New(cron.WithParser(parser))

	for _, e := range s.entries {
		job := e.job
		if _, err := s.runner.AddFunc(job.Schedule(), s.tick(ctx, job)); err != nil {
			cancel()
			return fmt.Errorf("cron: invalid schedule for job %q: %w", job.Name(), err)
		}
	}

	s.runner.Start()
	s.logger.Info("cron: scheduler started", "jobs", len(s.entries))
	return nil
}

// tick wraps one job run with the overlap guard and outcome logging.
func (s *Scheduler) tick(ctx context.Context, job Job) func() {
	lock := s.locks[job.Name()]
	return func() {
		if !lock.TryLock() {
			s.logger.Warn("cron: job still running, skipping tick", "job", job.Name())
			return
		}
		defer lock.Unlock()

		if err := job.Run(ctx); err != nil {
			s.logger.Error("cron: job failed", "job", job.Name(), "error", err)
			return
		}
		s.logger.Debug("cron: job completed", "job", job.Name())
	}
}

// Stop cancels the job context and waits for in-flight runs to finish.
func (s *Scheduler) Stop(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	if s.runner != nil {
		<-s.runner.Stop().Done()
		s.logger.Info("cron: scheduler stopped")
	}
	return nil
}
