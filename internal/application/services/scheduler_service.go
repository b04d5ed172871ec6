package services

import (
	"context"
	"log"
	"os"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/stagedoor/backend/internal/infrastructure/persistence"
	"github.com/stagedoor/backend/pkg/constants"
)

// SchedulerService runs the date-based unlock sweep. DATE_BASED steps cross
// their unlock instant without any user action, so a cron job finds the
// events whose steps came due since the last run and recomputes their
// applications.
type SchedulerService struct {
	steps    *persistence.WorkflowStepRepository
	workflow *WorkflowService
	cron     *cron.Cron

	mu      sync.Mutex
	lastRun time.Time
	running bool
}

// NewSchedulerService creates a new scheduler service
func NewSchedulerService(steps *persistence.WorkflowStepRepository, workflow *WorkflowService) *SchedulerService {
	return &SchedulerService{
		steps:    steps,
		workflow: workflow,
		cron:     cron.New(),
		lastRun:  time.Now(),
	}
}

// Start schedules the sweep and begins the cron loop.
func (s *SchedulerService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	spec := os.Getenv("UNLOCK_SWEEP_CRON")
	if spec == "" {
		spec = constants.DefaultUnlockSweepCron
	}
	if _, err := s.cron.AddFunc(spec, s.sweep); err != nil {
		return err
	}
	s.cron.Start()
	s.running = true
	log.Println("⏰ Unlock sweep scheduler started")
	return nil
}

// Stop halts the cron loop and waits for a running sweep to finish.
func (s *SchedulerService) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("⏰ Unlock sweep scheduler stopped")
}

// sweep recomputes every application of every event with a DATE_BASED step
// whose unlock time fell inside (lastRun, now].
func (s *SchedulerService) sweep() {
	s.mu.Lock()
	since := s.lastRun
	now := time.Now()
	s.lastRun = now
	s.mu.Unlock()

	ctx := context.Background()
	eventIDs, err := s.steps.ListEventsWithDueUnlocks(ctx, since, now)
	if err != nil {
		log.Printf("⚠️ Unlock sweep query failed: %v", err)
		return
	}
	if len(eventIDs) == 0 {
		return
	}

	log.Printf("⏰ Unlock sweep: %d events with due steps", len(eventIDs))
	for _, eventID := range eventIDs {
		if err := s.workflow.RecomputeEvent(ctx, eventID); err != nil {
			log.Printf("⚠️ Unlock sweep failed for event %s: %v", eventID, err)
		}
	}
}
