package services

import (
	"context"
	"database/sql"
	"log"
	"time"

	"github.com/stagedoor/backend/internal/domain/models"
	"github.com/stagedoor/backend/internal/domain/ports"
	"github.com/stagedoor/backend/pkg/errors"
	"github.com/stagedoor/backend/pkg/utils"
)

// ApplicationService manages the application aggregate: creation and the
// combined progress view applicants and reviewers read.
type ApplicationService struct {
	apps     ports.ApplicationStore
	states   ports.StepStateStore
	steps    ports.WorkflowStepStore
	workflow *WorkflowService
	tx       ports.TxRunner
	now      func() time.Time
}

// NewApplicationService creates a new ApplicationService
func NewApplicationService(
	apps ports.ApplicationStore,
	states ports.StepStateStore,
	steps ports.WorkflowStepStore,
	workflow *WorkflowService,
	tx ports.TxRunner,
) *ApplicationService {
	return &ApplicationService{
		apps:     apps,
		states:   states,
		steps:    steps,
		workflow: workflow,
		tx:       tx,
		now:      time.Now,
	}
}

// Create opens a new application for the user on an event and initializes
// its step states. One application per applicant per event.
func (s *ApplicationService) Create(ctx context.Context, eventID string, user *models.UserSession) (*models.Application, error) {
	existing, err := s.apps.FindByEventAndApplicant(ctx, nil, eventID, user.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, errors.NewConflictError("application", "an application for this event already exists", "")
	}

	app := &models.Application{
		ID:             utils.GenerateID(),
		EventID:        eventID,
		ApplicantID:    user.ID,
		DecisionStatus: models.DecisionNone,
	}

	err = s.tx.WithTransaction(func(tx *sql.Tx) error {
		if err := s.apps.Insert(ctx, tx, app); err != nil {
			return err
		}
		return s.workflow.InitializeStepStates(ctx, tx, app)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("📮 Created application %s (event=%s applicant=%s)", app.ID, eventID, user.ID)
	return app, nil
}

// ApplicationProgress is the combined view of an application: its decision
// fields plus each step's configuration and current state in index order.
type ApplicationProgress struct {
	Application *models.Application      `json:"application"`
	Steps       []ApplicationStepView    `json:"steps"`
}

// ApplicationStepView pairs a workflow step with the applicant's state on it.
type ApplicationStepView struct {
	Step  *models.WorkflowStep         `json:"step"`
	State *models.ApplicationStepState `json:"state"`
}

// Get loads an application with its per-step progress. Applicants see only
// their own; staff see all. A draft (unpublished) decision is blanked for
// the applicant.
func (s *ApplicationService) Get(ctx context.Context, applicationID string, user *models.UserSession) (*ApplicationProgress, error) {
	app, err := s.requireAccess(ctx, applicationID, user)
	if err != nil {
		return nil, err
	}

	// Backfill rows for steps added after creation, then refresh unlocks so
	// the view never shows a stale gate.
	err = s.tx.WithTransaction(func(tx *sql.Tx) error {
		if err := s.workflow.EnsureStepStates(ctx, tx, app); err != nil {
			return err
		}
		_, err := s.workflow.RecomputeStepStates(ctx, tx, app)
		return err
	})
	if err != nil {
		return nil, err
	}

	steps, err := s.steps.ListByEvent(ctx, nil, app.EventID)
	if err != nil {
		return nil, err
	}
	states, err := s.states.ListByApplication(ctx, nil, app.ID)
	if err != nil {
		return nil, err
	}

	byStep := make(map[string]*models.ApplicationStepState, len(states))
	for _, st := range states {
		byStep[st.StepID] = st
	}

	progress := &ApplicationProgress{Application: app}
	for _, step := range steps {
		progress.Steps = append(progress.Steps, ApplicationStepView{
			Step:  step,
			State: byStep[step.ID],
		})
	}

	if !user.IsStaff && app.DecisionPublishedAt == nil {
		// Draft decisions are staff-only.
		redacted := *app
		redacted.DecisionStatus = models.DecisionNone
		progress.Application = &redacted
	}
	return progress, nil
}

// requireAccess loads the application and enforces ownership: the applicant
// or any staff account.
func (s *ApplicationService) requireAccess(ctx context.Context, applicationID string, user *models.UserSession) (*models.Application, error) {
	app, err := s.apps.FindByID(ctx, nil, applicationID)
	if err != nil {
		return nil, err
	}
	if app == nil {
		return nil, errors.NewNotFoundError("application", applicationID)
	}
	if !user.IsStaff && app.ApplicantID != user.ID {
		return nil, errors.NewForbiddenError("view application", "not your application")
	}
	return app, nil
}
