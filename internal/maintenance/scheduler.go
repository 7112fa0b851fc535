package maintenance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// DefaultTimeout bounds a single maintenance run.
const DefaultTimeout = 10 * time.Minute

// Optimizer is the store maintenance the scheduler drives.
type Optimizer interface {
	Optimize(ctx context.Context) error
}

// Status is a snapshot of the scheduler.
type Status struct {
	Running   bool      `json:"running"`
	Schedule  string    `json:"schedule"`
	NextRun   time.Time `json:"next_run,omitzero"`
	LastRun   time.Time `json:"last_run,omitzero"`
	LastError string    `json:"last_error,omitempty"`
}

// Scheduler runs store maintenance on a cron schedule.
type Scheduler struct {
	target  Optimizer
	timeout time.Duration

	mu       sync.RWMutex
	cron     *cron.Cron
	entryID  cron.EntryID
	schedule string
	running  bool
	ctx      context.Context
	cancel   context.CancelFunc
	lastRun  time.Time
	lastErr  error
	runMu    sync.Mutex
}

func NewScheduler(target Optimizer, schedule string) *Scheduler {
	return &Scheduler{
		target:   target,
		timeout:  DefaultTimeout,
		cron:     cron.New(),
		schedule: schedule,
	}
}

// Start starts the cron loop. An empty schedule starts nothing.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	if s.schedule != "" {
		if err := s.setSchedule(s.schedule); err != nil {
			return err
		}
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.cron.Start()
	s.running = true

	log.Info().Str("schedule", s.schedule).Msg("Maintenance scheduler started")
	return nil
}

// Stop halts the cron loop and waits for a running job to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}

	if s.cancel != nil {
		s.cancel()
	}
	ctx := s.cron.Stop()
	s.running = false
	s.mu.Unlock()

	// A job in flight takes mu itself, so wait without holding it.
	<-ctx.Done()
	log.Info().Msg("Maintenance scheduler stopped")
}

// UpdateSchedule replaces the schedule. An empty schedule disables maintenance.
func (s *Scheduler) UpdateSchedule(schedule string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if schedule == s.schedule {
		return nil
	}

	if schedule == "" {
		s.removeSchedule()
		s.schedule = ""
		log.Info().Msg("Maintenance schedule disabled")
		return nil
	}

	if err := s.setSchedule(schedule); err != nil {
		return err
	}
	s.schedule = schedule
	log.Info().Str("schedule", schedule).Msg("Maintenance schedule updated")
	return nil
}

// setSchedule must be called with mu held.
func (s *Scheduler) setSchedule(schedule string) error {
	id, err := s.cron.AddFunc(schedule, s.scheduledRun)
	if err != nil {
		return fmt.Errorf("invalid maintenance schedule %q: %w", schedule, err)
	}
	s.removeSchedule()
	s.entryID = id
	return nil
}

func (s *Scheduler) removeSchedule() {
	if s.entryID != 0 {
		s.cron.Remove(s.entryID)
		s.entryID = 0
	}
}

func (s *Scheduler) scheduledRun() {
	s.mu.RLock()
	ctx := s.ctx
	s.mu.RUnlock()
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.RunNow(ctx); err != nil {
		log.Error().Err(err).Msg("Scheduled maintenance failed")
	}
}

// RunNow runs maintenance immediately. Overlapping runs are serialized.
func (s *Scheduler) RunNow(ctx context.Context) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	err := s.target.Optimize(ctx)

	s.mu.Lock()
	s.lastRun = start
	s.lastErr = err
	s.mu.Unlock()

	if err != nil {
		return fmt.Errorf("failed to optimize database: %w", err)
	}

	log.Info().Dur("duration", time.Since(start)).Msg("Database maintenance completed")
	return nil
}

func (s *Scheduler) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := Status{
		Running:  s.running,
		Schedule: s.schedule,
		LastRun:  s.lastRun,
	}
	if s.lastErr != nil {
		status.LastError = s.lastErr.Error()
	}
	if s.entryID != 0 {
		status.NextRun = s.cron.Entry(s.entryID).Next
	}
	return status
}
