// Package sched runs the recurring agent jobs and one-shot delayed tasks.
package sched

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is one recurring entry in the schedule table.
type Job struct {
	Name string
	Spec string // cron spec, or "@every 5m" style
	Run  func()
}

// JobInfo is the read-only view of a scheduled job.
type JobInfo struct {
	Name    string    `json:"name"`
	Spec    string    `json:"spec"`
	Next    time.Time `json:"next"`
	Prev    time.Time `json:"prev,omitempty"`
	Running bool      `json:"running"`
}

// Scheduler owns the cron table and the one-shot timer table. Each job is
// exclusive: a tick that fires while the previous run is still going is
// dropped, not queued.
type Scheduler struct {
	cron   *cron.Cron
	logger zerolog.Logger

	mu      sync.Mutex
	entries map[string]cron.EntryID
	specs   map[string]string
	running map[string]bool
	timers  map[string]*time.Timer
}

// New creates a stopped Scheduler. Call Start after all jobs are registered.
func New(logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		logger:  logger.With().Str("component", "scheduler").Logger(),
		entries: make(map[string]cron.EntryID),
		specs:   make(map[string]string),
		running: make(map[string]bool),
		timers:  make(map[string]*time.Timer),
	}
}

// Schedule registers a recurring job. Re-registering a name replaces the
// previous schedule.
func (s *Scheduler) Schedule(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.entries[job.Name]; ok {
		s.cron.Remove(old)
	}

	name := job.Name
	id, err := s.cron.AddFunc(job.Spec, func() {
		s.runExclusive(name, job.Run)
	})
	if err != nil {
		return fmt.Errorf("scheduling %q with spec %q: %w", job.Name, job.Spec, err)
	}
	s.entries[job.Name] = id
	s.specs[job.Name] = job.Spec

	s.logger.Info().Str("job", job.Name).Str("spec", job.Spec).Msg("job scheduled")
	return nil
}

// Cancel removes a recurring job. Unknown names are a no-op.
func (s *Scheduler) Cancel(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.entries[name]; ok {
		s.cron.Remove(id)
		delete(s.entries, name)
		delete(s.specs, name)
		s.logger.Info().Str("job", name).Msg("job cancelled")
	}
}

// Jobs lists the current schedule table.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]JobInfo, 0, len(s.entries))
	for name, id := range s.entries {
		entry := s.cron.Entry(id)
		infos = append(infos, JobInfo{
			Name:    name,
			Spec:    s.specs[name],
			Next:    entry.Next,
			Prev:    entry.Prev,
			Running: s.running[name],
		})
	}
	return infos
}

// After schedules a one-shot task. A pending task with the same id is
// replaced, so the latest schedule wins.
func (s *Scheduler) After(id string, delay time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.timers[id]; ok {
		old.Stop()
	}
	s.timers[id] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, id)
		s.mu.Unlock()
		fn()
	})
	s.logger.Debug().Str("task", id).Dur("delay", delay).Msg("one-shot task scheduled")
}

// Start begins firing scheduled jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info().Int("jobs", len(s.entries)).Msg("scheduler started")
}

// Stop halts the cron table and cancels pending one-shot tasks. Jobs already
// running finish; Stop waits for them.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()

	s.mu.Lock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()

	<-ctx.Done()
	s.logger.Info().Msg("scheduler stopped")
}

// runExclusive runs fn unless a run with the same name is still in flight.
func (s *Scheduler) runExclusive(name string, fn func()) {
	s.mu.Lock()
	if s.running[name] {
		s.mu.Unlock()
		s.logger.Warn().Str("job", name).Msg("previous run still in flight, tick dropped")
		return
	}
	s.running[name] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running[name] = false
		s.mu.Unlock()
	}()
	fn()
}
