// Package cron runs named housekeeping jobs on cron schedules.
package cron

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"axiombot/pkg/logger"
)

const jobTimeout = 5 * time.Minute

// Job is a named unit of scheduled work.
type Job struct {
	Name string
	Spec string // standard five-field expression or descriptor such as @every 1m
	Run  func(ctx context.Context) error
}

// Status is a snapshot of one scheduled job.
type Status struct {
	Name        string    `json:"name"`
	Spec        string    `json:"spec"`
	LastRun     time.Time `json:"last_run"`
	NextRun     time.Time `json:"next_run"`
	RunCount    int       `json:"run_count"`
	LastError   string    `json:"last_error"`
	LastSuccess bool      `json:"last_success"`
}

type entry struct {
	job      Job
	id       cron.EntryID
	schedule cron.Schedule
	status   Status
}

// Scheduler manages jobs.
type Scheduler struct {
	log       *logger.Logger
	scheduler *cron.Cron
	entries   map[string]*entry
	mu        sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Scheduler. Jobs may be added before or after Start.
func New(log *logger.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		log:       log.Named("cron"),
		scheduler: cron.New(),
		entries:   make(map[string]*entry),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start starts the underlying scheduler.
func (s *Scheduler) Start() {
	s.log.Info("Starting scheduler", zap.Int("jobs", s.Len()))
	s.scheduler.Start()
}

// Stop stops scheduling and waits for running jobs.
func (s *Scheduler) Stop() {
	s.log.Info("Stopping scheduler")
	s.cancel()
	<-s.scheduler.Stop().Done()
}

// Add schedules job, replacing any job with the same name.
func (s *Scheduler) Add(job Job) error {
	if job.Name == "" || job.Run == nil {
		return fmt.Errorf("cron: job needs a name and a run func")
	}
	schedule, err := cron.ParseStandard(job.Spec)
	if err != nil {
		return fmt.Errorf("invalid cron schedule %q for %s: %w", job.Spec, job.Name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.entries[job.Name]; ok {
		s.scheduler.Remove(old.id)
	}
	name := job.Name
	id := s.scheduler.Schedule(schedule, cron.FuncJob(func() { s.execute(name) }))
	s.entries[name] = &entry{
		job:      job,
		id:       id,
		schedule: schedule,
		status:   Status{Name: name, Spec: job.Spec},
	}

	s.log.Debug("Added job", zap.String("name", name), zap.String("spec", job.Spec))
	return nil
}

// Remove unschedules the named job. It reports whether it existed.
func (s *Scheduler) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[name]
	if !ok {
		return false
	}
	s.scheduler.Remove(e.id)
	delete(s.entries, name)
	return true
}

// Jobs returns the status of every job sorted by name.
func (s *Scheduler) Jobs() []Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	out := make([]Status, 0, len(s.entries))
	for _, e := range s.entries {
		status := e.status
		status.NextRun = s.scheduler.Entry(e.id).Next
		// The scheduler fills Next only once it is running.
		if status.NextRun.IsZero() {
			status.NextRun = e.schedule.Next(now)
		}
		out = append(out, status)
	}
	slices.SortFunc(out, func(a, b Status) int {
		if a.Name < b.Name {
			return -1
		}
		if a.Name > b.Name {
			return 1
		}
		return 0
	})
	return out
}

// Len returns the number of scheduled jobs.
func (s *Scheduler) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// RunNow executes the named job synchronously.
func (s *Scheduler) RunNow(name string) error {
	s.mu.RLock()
	_, ok := s.entries[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("job not found: %s", name)
	}
	return s.execute(name)
}

func (s *Scheduler) execute(name string) (err error) {
	s.mu.RLock()
	e, ok := s.entries[name]
	if !ok {
		s.mu.RUnlock()
		return nil
	}
	run := e.job.Run
	s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(s.ctx, jobTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
		s.finish(name, err)
	}()
	return run(ctx)
}

func (s *Scheduler) finish(name string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[name]
	if !ok {
		return
	}
	e.status.LastRun = time.Now()
	e.status.RunCount++
	if err != nil {
		e.status.LastSuccess = false
		e.status.LastError = err.Error()
		s.log.Error("Job failed", zap.String("name", name), zap.Error(err))
		return
	}
	e.status.LastSuccess = true
	e.status.LastError = ""
}
