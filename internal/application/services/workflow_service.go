package services

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/stagedoor/backend/internal/domain"
	"github.com/stagedoor/backend/internal/domain/models"
	"github.com/stagedoor/backend/internal/domain/ports"
	"github.com/stagedoor/backend/pkg/errors"
)

// WorkflowService owns step configuration and the per-application step state
// lifecycle: initialization, the unlock recompute pass, downstream locking
// and manual overrides.
type WorkflowService struct {
	steps   ports.WorkflowStepStore
	states  ports.StepStateStore
	apps    ports.ApplicationStore
	machine *domain.StepStateMachine
	tx      ports.TxRunner
	now     func() time.Time
}

// NewWorkflowService creates a new WorkflowService
func NewWorkflowService(
	steps ports.WorkflowStepStore,
	states ports.StepStateStore,
	apps ports.ApplicationStore,
	tx ports.TxRunner,
) *WorkflowService {
	return &WorkflowService{
		steps:   steps,
		states:  states,
		apps:    apps,
		machine: domain.NewStepStateMachine(),
		tx:      tx,
		now:     time.Now,
	}
}

var validUnlockPolicies = map[models.UnlockPolicy]bool{
	models.UnlockAutoAfterPrevSubmitted: true,
	models.UnlockAfterPrevApproved:      true,
	models.UnlockDateBased:              true,
	models.UnlockAfterDecisionAccepted:  true,
	models.UnlockAdminManual:            true,
}

// CreateStep validates and stores a new workflow step.
func (s *WorkflowService) CreateStep(ctx context.Context, step *models.WorkflowStep) (*models.WorkflowStep, error) {
	if step.Title == "" {
		return nil, errors.NewValidationError("title", "title is required")
	}
	if !validUnlockPolicies[step.UnlockPolicy] {
		return nil, errors.NewValidationError("unlock_policy",
			fmt.Sprintf("unknown unlock policy %q", step.UnlockPolicy))
	}
	if step.UnlockPolicy == models.UnlockDateBased && step.UnlockAt == nil {
		return nil, errors.NewValidationError("unlock_at", "DATE_BASED steps need an unlock time")
	}
	if step.RejectBehavior == "" {
		step.RejectBehavior = models.RejectFinal
	}
	if step.Category == "" {
		step.Category = models.StepCategoryForm
	}

	if err := s.steps.Insert(ctx, nil, step); err != nil {
		return nil, fmt.Errorf("failed to insert workflow step: %w", err)
	}
	log.Printf("🧩 Created workflow step %s (event=%s index=%d policy=%s)",
		step.ID, step.EventID, step.StepIndex, step.UnlockPolicy)
	return step, nil
}

// ListSteps returns an event's steps in index order.
func (s *WorkflowService) ListSteps(ctx context.Context, eventID string) ([]*models.WorkflowStep, error) {
	return s.steps.ListByEvent(ctx, nil, eventID)
}

// InitializeStepStates creates the state rows for a fresh application. Only
// the first step is eligible to start unlocked.
func (s *WorkflowService) InitializeStepStates(ctx context.Context, tx *sql.Tx, app *models.Application) error {
	steps, err := s.steps.ListByEvent(ctx, tx, app.EventID)
	if err != nil {
		return fmt.Errorf("failed to list steps for event %s: %w", app.EventID, err)
	}

	now := s.now()
	states := make([]*models.ApplicationStepState, 0, len(steps))
	for _, step := range steps {
		status := domain.InitialStatus(step, app, now)
		st := &models.ApplicationStepState{
			ApplicationID:  app.ID,
			StepID:         step.ID,
			Status:         status,
			LastActivityAt: now,
		}
		if status == models.StepStatusUnlocked {
			st.UnlockedAt = &now
		}
		states = append(states, st)
	}
	return s.states.InsertBatch(ctx, tx, states)
}

// EnsureStepStates backfills state rows for steps added to the workflow after
// the application was created. New rows start LOCKED; the recompute pass
// decides whether they open.
func (s *WorkflowService) EnsureStepStates(ctx context.Context, tx *sql.Tx, app *models.Application) error {
	steps, err := s.steps.ListByEvent(ctx, tx, app.EventID)
	if err != nil {
		return err
	}
	existing, err := s.states.ListByApplication(ctx, tx, app.ID)
	if err != nil {
		return err
	}

	have := make(map[string]bool, len(existing))
	for _, st := range existing {
		have[st.StepID] = true
	}

	now := s.now()
	var missing []*models.ApplicationStepState
	for _, step := range steps {
		if have[step.ID] {
			continue
		}
		missing = append(missing, &models.ApplicationStepState{
			ApplicationID:  app.ID,
			StepID:         step.ID,
			Status:         models.StepStatusLocked,
			LastActivityAt: now,
		})
	}
	if len(missing) == 0 {
		return nil
	}
	log.Printf("🧩 Backfilled %d step states for application %s", len(missing), app.ID)
	return s.states.InsertBatch(ctx, tx, missing)
}

// RecomputeStepStates runs the unlock cascade for one application in a single
// ascending pass. Each step's decision sees the in-memory outcome for the
// previous step, so one submission can open an entire chain of
// AUTO_AFTER_PREV_SUBMITTED steps in one call. Settled and terminal steps are
// never touched; when nothing qualifies, nothing is written. Returns the ids
// of the steps that unlocked.
func (s *WorkflowService) RecomputeStepStates(ctx context.Context, tx *sql.Tx, app *models.Application) ([]string, error) {
	steps, err := s.steps.ListByEvent(ctx, tx, app.EventID)
	if err != nil {
		return nil, err
	}
	states, err := s.states.ListByApplication(ctx, tx, app.ID)
	if err != nil {
		return nil, err
	}

	byStep := make(map[string]*models.ApplicationStepState, len(states))
	for _, st := range states {
		byStep[st.StepID] = st
	}

	now := s.now()
	var unlocked []string
	var prev *models.ApplicationStepState
	for _, step := range steps {
		st, ok := byStep[step.ID]
		if !ok {
			// Row missing (step added after creation, EnsureStepStates not
			// run yet); treat as locked for downstream gating.
			prev = &models.ApplicationStepState{StepID: step.ID, Status: models.StepStatusLocked}
			continue
		}

		if st.Status == models.StepStatusLocked && domain.ShouldUnlock(step, prev, app, now) {
			st.Status = models.StepStatusUnlocked
			st.UnlockedAt = &now
			st.LastActivityAt = now
			unlocked = append(unlocked, step.ID)
		}
		prev = st
	}

	if len(unlocked) > 0 {
		if err := s.states.BatchUnlock(ctx, tx, app.ID, unlocked, now); err != nil {
			return nil, err
		}
		log.Printf("🔓 Unlocked %d steps for application %s", len(unlocked), app.ID)
	}
	return unlocked, nil
}

// RecomputeApplication wraps the recompute pass in its own transaction.
func (s *WorkflowService) RecomputeApplication(ctx context.Context, applicationID string) error {
	app, err := s.apps.FindByID(ctx, nil, applicationID)
	if err != nil {
		return err
	}
	if app == nil {
		return errors.NewNotFoundError("application", applicationID)
	}
	return s.tx.WithRetry(func(tx *sql.Tx) error {
		_, err := s.RecomputeStepStates(ctx, tx, app)
		return err
	}, 3)
}

// RecomputeEvent recomputes every application of an event. The date-based
// unlock sweep and decision publication call this after the gate inputs
// change.
func (s *WorkflowService) RecomputeEvent(ctx context.Context, eventID string) error {
	ids, err := s.apps.ListIDsByEvent(ctx, eventID)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := s.RecomputeApplication(ctx, id); err != nil {
			log.Printf("⚠️ Recompute failed for application %s: %v", id, err)
		}
	}
	return nil
}

// RelockDownstream closes downstream steps after a step at fromIndex fell
// back to NEEDS_REVISION. Only UNLOCKED steps whose opening depended on
// upstream progress are affected: strict-gated steps and prev-dependent
// policies. Manual unlocks and settled steps stay as they are.
func (s *WorkflowService) RelockDownstream(ctx context.Context, tx *sql.Tx, app *models.Application, fromIndex int) error {
	toLock, err := s.collectDownstream(ctx, tx, app, fromIndex, func(step *models.WorkflowStep, st *models.ApplicationStepState) bool {
		if st.Status != models.StepStatusUnlocked {
			return false
		}
		if step.UnlockPolicy == models.UnlockAdminManual {
			return false
		}
		return step.StrictGating || domain.PolicyDependsOnPrev(step.UnlockPolicy)
	})
	if err != nil {
		return err
	}
	return s.states.BatchLock(ctx, tx, app.ID, toLock, s.now())
}

// LockDownstream closes every downstream step that has not settled with
// applicant data. Used when a final rejection ends the application's forward
// progress.
func (s *WorkflowService) LockDownstream(ctx context.Context, tx *sql.Tx, app *models.Application, fromIndex int) error {
	toLock, err := s.collectDownstream(ctx, tx, app, fromIndex, func(step *models.WorkflowStep, st *models.ApplicationStepState) bool {
		return st.Status == models.StepStatusUnlocked || st.Status == models.StepStatusNeedsRevision
	})
	if err != nil {
		return err
	}
	return s.states.BatchLock(ctx, tx, app.ID, toLock, s.now())
}

func (s *WorkflowService) collectDownstream(
	ctx context.Context,
	tx *sql.Tx,
	app *models.Application,
	fromIndex int,
	match func(*models.WorkflowStep, *models.ApplicationStepState) bool,
) ([]string, error) {
	steps, err := s.steps.ListByEvent(ctx, tx, app.EventID)
	if err != nil {
		return nil, err
	}
	states, err := s.states.ListByApplication(ctx, tx, app.ID)
	if err != nil {
		return nil, err
	}

	byStep := make(map[string]*models.ApplicationStepState, len(states))
	for _, st := range states {
		byStep[st.StepID] = st
	}

	var toLock []string
	for _, step := range steps {
		if step.StepIndex <= fromIndex {
			continue
		}
		st, ok := byStep[step.ID]
		if !ok {
			continue
		}
		if match(step, st) {
			toLock = append(toLock, step.ID)
		}
	}
	return toLock, nil
}

// ManualUnlock opens a locked step regardless of its policy. Staff only; the
// handler enforces that.
func (s *WorkflowService) ManualUnlock(ctx context.Context, applicationID, stepID string) error {
	return s.tx.WithTransaction(func(tx *sql.Tx) error {
		st, err := s.states.Find(ctx, tx, applicationID, stepID)
		if err != nil {
			return err
		}
		if st == nil {
			return errors.NewNotFoundError("step state", stepID)
		}

		next, err := s.machine.Transition(st.Status, domain.TransitionUnlock)
		if err != nil {
			return errors.NewConflictError("step state", err.Error(), "")
		}

		now := s.now()
		st.Status = next
		st.UnlockedAt = &now
		st.LastActivityAt = now
		if err := s.states.Update(ctx, tx, st); err != nil {
			return err
		}
		log.Printf("🔓 Manually unlocked step %s for application %s", stepID, applicationID)
		return nil
	})
}

// ManualLock closes an unlocked step again.
func (s *WorkflowService) ManualLock(ctx context.Context, applicationID, stepID string) error {
	return s.tx.WithTransaction(func(tx *sql.Tx) error {
		st, err := s.states.Find(ctx, tx, applicationID, stepID)
		if err != nil {
			return err
		}
		if st == nil {
			return errors.NewNotFoundError("step state", stepID)
		}

		next, err := s.machine.Transition(st.Status, domain.TransitionRelock)
		if err != nil {
			return errors.NewConflictError("step state", err.Error(), "")
		}

		now := s.now()
		st.Status = next
		st.UnlockedAt = nil
		st.LastActivityAt = now
		if err := s.states.Update(ctx, tx, st); err != nil {
			return err
		}
		log.Printf("🔒 Manually locked step %s for application %s", stepID, applicationID)
		return nil
	})
}

// BulkLock closes many unlocked steps of one application at once, skipping
// the ones that are not currently UNLOCKED.
func (s *WorkflowService) BulkLock(ctx context.Context, applicationID string, stepIDs []string) error {
	return s.tx.WithTransaction(func(tx *sql.Tx) error {
		states, err := s.states.ListByApplication(ctx, tx, applicationID)
		if err != nil {
			return err
		}
		requested := make(map[string]bool, len(stepIDs))
		for _, id := range stepIDs {
			requested[id] = true
		}

		var toLock []string
		for _, st := range states {
			if requested[st.StepID] && st.Status == models.StepStatusUnlocked {
				toLock = append(toLock, st.StepID)
			}
		}
		return s.states.BatchLock(ctx, tx, applicationID, toLock, s.now())
	})
}
