package scheduler

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/marketbrief/internal/common"
	"github.com/ternarybob/marketbrief/internal/interfaces"
)

// ErrJobRunning is returned when a trigger arrives while the job is still executing
var ErrJobRunning = errors.New("job is already running")

// jobEntry represents a registered job with metadata
type jobEntry struct {
	name        string
	schedule    string
	description string
	handler     func() error
	cronID      cron.EntryID
	lastRun     *time.Time
	isRunning   bool
	lastError   string
	runs        int
	skipped     int
}

// Service implements SchedulerService on top of robfig/cron.
// A job never overlaps itself: a tick that fires while the previous run is
// still in progress is skipped and counted.
type Service struct {
	cron     *cron.Cron
	logger   arbor.ILogger
	location *time.Location
	jobMu    sync.Mutex // Protects jobs, running, stopping
	jobs     map[string]*jobEntry
	running  bool
	stopping bool
	inflight sync.WaitGroup
}

// NewService creates a scheduler that evaluates cron expressions in location (nil = local time)
func NewService(logger arbor.ILogger, location *time.Location) *Service {
	if location == nil {
		location = time.Local
	}
	return &Service{
		cron:     cron.New(cron.WithLocation(location)),
		logger:   logger,
		location: location,
		jobs:     make(map[string]*jobEntry),
	}
}

var _ interfaces.SchedulerService = (*Service)(nil)

// Start begins firing registered jobs
func (s *Service) Start() error {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}
	if s.stopping {
		return fmt.Errorf("scheduler has been stopped")
	}

	s.cron.Start()
	s.running = true

	s.logger.Info().
		Int("jobs", len(s.jobs)).
		Str("timezone", s.location.String()).
		Msg("Scheduler started")
	return nil
}

// Stop halts the scheduler and waits for any in-progress job to finish.
// No new runs start once Stop has been called.
func (s *Service) Stop() error {
	s.jobMu.Lock()
	if s.stopping {
		s.jobMu.Unlock()
		return nil
	}
	s.stopping = true
	wasRunning := s.running
	s.running = false
	s.jobMu.Unlock()

	if wasRunning {
		<-s.cron.Stop().Done()
	}
	s.inflight.Wait()

	s.logger.Info().Msg("Scheduler stopped")
	return nil
}

// IsRunning returns true if scheduler is active
func (s *Service) IsRunning() bool {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()
	return s.running
}

// RegisterJob registers a new job with the scheduler
func (s *Service) RegisterJob(name string, schedule string, description string, handler func() error) error {
	if handler == nil {
		return fmt.Errorf("job %s has no handler", name)
	}
	if err := common.ValidateSchedule(schedule); err != nil {
		return fmt.Errorf("invalid schedule: %w", err)
	}

	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %s already registered", name)
	}

	entry := &jobEntry{
		name:        name,
		schedule:    schedule,
		description: description,
		handler:     handler,
	}

	cronID, err := s.cron.AddFunc(schedule, func() {
		s.executeJob(name)
	})
	if err != nil {
		return fmt.Errorf("failed to add job to cron: %w", err)
	}

	entry.cronID = cronID
	s.jobs[name] = entry

	s.logger.Info().
		Str("job_name", name).
		Str("schedule", schedule).
		Msg("Job registered")

	return nil
}

// TriggerJob runs a registered job immediately in the background.
// Returns ErrJobRunning if the job is already executing.
func (s *Service) TriggerJob(name string) error {
	if !s.begin(name) {
		s.jobMu.Lock()
		_, exists := s.jobs[name]
		stopping := s.stopping
		s.jobMu.Unlock()
		switch {
		case !exists:
			return fmt.Errorf("job %s not found", name)
		case stopping:
			return fmt.Errorf("scheduler has been stopped")
		default:
			return fmt.Errorf("%s: %w", name, ErrJobRunning)
		}
	}

	s.logger.Info().
		Str("job_name", name).
		Msg("Manually triggering job execution")

	common.SafeGo(s.logger, "job-"+name, func() {
		s.run(name)
	})
	return nil
}

// GetJobStatus returns the status of a specific job
func (s *Service) GetJobStatus(name string) (*interfaces.JobStatus, error) {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	entry, exists := s.jobs[name]
	if !exists {
		return nil, fmt.Errorf("job %s not found", name)
	}

	var nextRun *time.Time
	if s.running {
		next := s.cron.Entry(entry.cronID).Next
		if !next.IsZero() {
			nextRun = &next
		}
	}

	var lastRun *time.Time
	if entry.lastRun != nil {
		t := *entry.lastRun
		lastRun = &t
	}

	return &interfaces.JobStatus{
		Name:        entry.name,
		Enabled:     true,
		Schedule:    entry.schedule,
		Description: entry.description,
		LastRun:     lastRun,
		NextRun:     nextRun,
		IsRunning:   entry.isRunning,
		LastError:   entry.lastError,
		Runs:        entry.runs,
		Skipped:     entry.skipped,
	}, nil
}

// executeJob is the cron callback
func (s *Service) executeJob(name string) {
	if !s.begin(name) {
		return
	}
	s.run(name)
}

// begin marks the job running. It returns false when the job is unknown,
// the scheduler is stopping, or a previous run is still in progress.
func (s *Service) begin(name string) bool {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	entry, exists := s.jobs[name]
	if !exists || s.stopping {
		return false
	}
	if entry.isRunning {
		entry.skipped++
		s.logger.Warn().
			Str("job_name", name).
			Int("skipped", entry.skipped).
			Msg("Previous run still in progress, skipping")
		return false
	}

	entry.isRunning = true
	s.inflight.Add(1)
	return true
}

// run executes the handler with panic recovery and status tracking. begin must have returned true.
func (s *Service) run(name string) {
	defer s.inflight.Done()

	s.jobMu.Lock()
	entry := s.jobs[name]
	handler := entry.handler
	s.jobMu.Unlock()

	s.logger.Info().
		Str("job_name", name).
		Msg("Job execution started")

	start := time.Now()
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error().
					Str("job_name", name).
					Str("panic", fmt.Sprintf("%v", r)).
					Msg("PANIC RECOVERED in job execution")
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return handler()
	}()

	completionTime := time.Now()
	s.jobMu.Lock()
	entry.isRunning = false
	entry.lastRun = &completionTime
	entry.runs++
	if err != nil {
		entry.lastError = err.Error()
	} else {
		entry.lastError = ""
	}
	s.jobMu.Unlock()

	if err != nil {
		s.logger.Error().
			Err(err).
			Str("job_name", name).
			Int64("elapsed_ms", completionTime.Sub(start).Milliseconds()).
			Msg("Job execution failed")
		return
	}

	s.logger.Info().
		Str("job_name", name).
		Int64("elapsed_ms", completionTime.Sub(start).Milliseconds()).
		Msg("Job execution completed")
}
