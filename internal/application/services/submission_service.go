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
	"github.com/stagedoor/backend/pkg/utils"
)

// SubmissionService handles the applicant-side write path: drafts, step
// submission with versioning, and the effective-answer composite read.
type SubmissionService struct {
	apps        ports.ApplicationStore
	steps       ports.WorkflowStepStore
	states      ports.StepStateStore
	submissions ports.SubmissionStore
	patches     ports.PatchStore
	requests    ports.InfoRequestStore
	drafts      ports.DraftStore
	forms       *FormService
	workflow    *WorkflowService
	machine     *domain.StepStateMachine
	tx          ports.TxRunner
	now         func() time.Time
}

// NewSubmissionService creates a new SubmissionService
func NewSubmissionService(
	apps ports.ApplicationStore,
	steps ports.WorkflowStepStore,
	states ports.StepStateStore,
	submissions ports.SubmissionStore,
	patches ports.PatchStore,
	requests ports.InfoRequestStore,
	drafts ports.DraftStore,
	forms *FormService,
	workflow *WorkflowService,
	tx ports.TxRunner,
) *SubmissionService {
	return &SubmissionService{
		apps:        apps,
		steps:       steps,
		states:      states,
		submissions: submissions,
		patches:     patches,
		requests:    requests,
		drafts:      drafts,
		forms:       forms,
		workflow:    workflow,
		machine:     domain.NewStepStateMachine(),
		tx:          tx,
		now:         time.Now,
	}
}

// SaveDraft stores work-in-progress answers. Drafts never create versions
// and are only accepted while the step is editable.
func (s *SubmissionService) SaveDraft(ctx context.Context, applicationID, stepID string, answers models.AnswerMap, user *models.UserSession) error {
	if _, err := s.requireOwnership(ctx, applicationID, user); err != nil {
		return err
	}

	st, err := s.states.Find(ctx, nil, applicationID, stepID)
	if err != nil {
		return err
	}
	if st == nil {
		return errors.NewNotFoundError("step state", stepID)
	}
	if st.Status != models.StepStatusUnlocked && st.Status != models.StepStatusNeedsRevision {
		return errors.NewForbiddenError("save draft",
			fmt.Sprintf("step is %s", st.Status))
	}

	return s.drafts.Upsert(ctx, nil, applicationID, stepID, domain.NormalizeAnswers(answers))
}

// GetDraft returns the current draft, nil when none exists.
func (s *SubmissionService) GetDraft(ctx context.Context, applicationID, stepID string, user *models.UserSession) (*models.StepDraft, error) {
	if _, err := s.requireOwnership(ctx, applicationID, user); err != nil {
		return nil, err
	}
	return s.drafts.Find(ctx, nil, applicationID, stepID)
}

// SubmitStep turns the submitted answers into a new immutable version and
// moves the step to SUBMITTED. The version number, the state transition and
// the downstream unlock cascade commit in one transaction; concurrent
// submitters serialize on the latest-version row lock, so version numbers
// stay contiguous.
func (s *SubmissionService) SubmitStep(ctx context.Context, applicationID, stepID string, answers models.AnswerMap, user *models.UserSession) (*models.StepSubmissionVersion, error) {
	app, err := s.requireOwnership(ctx, applicationID, user)
	if err != nil {
		return nil, err
	}

	step, err := s.steps.FindByID(ctx, nil, stepID)
	if err != nil {
		return nil, err
	}
	if step == nil {
		return nil, errors.NewNotFoundError("workflow step", stepID)
	}

	var version *models.StepSubmissionVersion
	err = s.tx.WithRetry(func(tx *sql.Tx) error {
		version = nil

		st, err := s.states.Find(ctx, tx, applicationID, stepID)
		if err != nil {
			return err
		}
		if st == nil {
			return errors.NewNotFoundError("step state", stepID)
		}

		if err := s.checkSubmittable(step, st); err != nil {
			return err
		}

		normalized := domain.NormalizeAnswers(answers)

		merged, err := s.applyRevisionGuard(ctx, tx, step, st, normalized)
		if err != nil {
			return err
		}

		if step.HasForm() {
			form, graph, err := s.forms.Get(ctx, *step.FormVersionID)
			if err != nil {
				return err
			}
			if err := s.forms.ValidateAnswers(form, graph, merged); err != nil {
				return err
			}
		} else if len(merged) > 0 {
			return errors.NewValidationError("answers", "this step does not accept answers")
		}

		// Row lock on the latest version serializes the number assignment.
		latest, err := s.submissions.FindLatest(ctx, tx, applicationID, stepID)
		if err != nil {
			return err
		}
		number := 1
		if latest != nil {
			number = latest.VersionNumber + 1
		}

		now := s.now()
		version = &models.StepSubmissionVersion{
			ID:            utils.GenerateID(),
			ApplicationID: applicationID,
			StepID:        stepID,
			FormVersionID: step.FormVersionID,
			VersionNumber: number,
			Answers:       merged,
			SubmittedBy:   user.ID,
			SubmittedAt:   now,
		}
		if err := s.submissions.Insert(ctx, tx, version); err != nil {
			return err
		}

		// A qualifying resubmission settles the open requests.
		if st.Status == models.StepStatusNeedsRevision {
			if err := s.requests.CloseOpenByStep(ctx, tx, applicationID, stepID, models.InfoRequestResolved, now); err != nil {
				return err
			}
		}
		if err := s.drafts.Delete(ctx, tx, applicationID, stepID); err != nil {
			return err
		}

		next, err := s.machine.Transition(st.Status, domain.TransitionSubmit)
		if err != nil {
			return errors.NewConflictError("step state", err.Error(), "")
		}
		st.Status = next
		if !step.ReviewRequired {
			// No review queue for this step: settle it immediately so
			// approval-gated successors can open in the same pass.
			st.Status, err = s.machine.Transition(st.Status, domain.TransitionApprove)
			if err != nil {
				return err
			}
		}
		st.LatestSubmissionVersionID = &version.ID
		st.CurrentDraftID = nil
		st.LastActivityAt = now
		if err := s.states.Update(ctx, tx, st); err != nil {
			return err
		}

		_, err = s.workflow.RecomputeStepStates(ctx, tx, app)
		return err
	}, 3)
	if err != nil {
		return nil, err
	}

	log.Printf("📨 Submitted step %s v%d for application %s", stepID, version.VersionNumber, applicationID)
	return version, nil
}

// checkSubmittable maps the non-editable states to their API errors: a
// closed deadline and a locked or terminal step are forbidden, a step that
// is already sitting in review is a conflict carrying the latest version id.
func (s *SubmissionService) checkSubmittable(step *models.WorkflowStep, st *models.ApplicationStepState) error {
	if step.DeadlineAt != nil && s.now().After(*step.DeadlineAt) {
		return errors.NewForbiddenError("submit step", "the submission deadline has passed")
	}
	if s.machine.CanTransition(st.Status, domain.TransitionSubmit) {
		return nil
	}

	switch st.Status {
	case models.StepStatusSubmitted, models.StepStatusApproved:
		latest := ""
		if st.LatestSubmissionVersionID != nil {
			latest = *st.LatestSubmissionVersionID
		}
		return errors.NewConflictError("submission",
			fmt.Sprintf("step is already %s", st.Status), latest)
	default:
		return errors.NewForbiddenError("submit step", fmt.Sprintf("step is %s", st.Status))
	}
}

// applyRevisionGuard enforces field-targeted revision: when open targeted
// requests exist, only the expanded allowed set may change, and the stored
// snapshot keeps the prior values for everything else.
func (s *SubmissionService) applyRevisionGuard(ctx context.Context, tx *sql.Tx, step *models.WorkflowStep, st *models.ApplicationStepState, submitted models.AnswerMap) (models.AnswerMap, error) {
	if st.Status != models.StepStatusNeedsRevision || !step.HasForm() {
		return submitted, nil
	}

	requests, err := s.requests.ListOpenByStep(ctx, tx, st.ApplicationID, st.StepID)
	if err != nil {
		return nil, err
	}

	_, graph, err := s.forms.Get(ctx, *step.FormVersionID)
	if err != nil {
		return nil, err
	}
	guard := domain.NewRevisionGuard(requests, graph)
	if guard == nil {
		return submitted, nil
	}

	prior := models.AnswerMap{}
	if st.LatestSubmissionVersionID != nil {
		latest, err := s.submissions.FindByID(ctx, tx, *st.LatestSubmissionVersionID)
		if err != nil {
			return nil, err
		}
		if latest != nil {
			prior = domain.NormalizeAnswers(latest.Answers)
		}
	}

	if err := guard.Check(prior, submitted); err != nil {
		return nil, err
	}
	return guard.Merge(prior, submitted), nil
}

// ListVersions returns a step's submission history, oldest first.
func (s *SubmissionService) ListVersions(ctx context.Context, applicationID, stepID string, user *models.UserSession) ([]*models.StepSubmissionVersion, error) {
	if _, err := s.requireOwnership(ctx, applicationID, user); err != nil {
		return nil, err
	}
	return s.submissions.ListByStep(ctx, applicationID, stepID)
}

// EffectiveAnswers is the composite read: one submission version overlaid
// with its active admin patches.
type EffectiveAnswers struct {
	Version *models.StepSubmissionVersion `json:"version"`
	Answers models.AnswerMap              `json:"answers"`
	Patched bool                          `json:"patched"`
}

// GetEffectiveAnswers composites a version with its active patches. With an
// empty versionID the latest version is used.
func (s *SubmissionService) GetEffectiveAnswers(ctx context.Context, applicationID, stepID, versionID string, user *models.UserSession) (*EffectiveAnswers, error) {
	if _, err := s.requireOwnership(ctx, applicationID, user); err != nil {
		return nil, err
	}

	var version *models.StepSubmissionVersion
	var err error
	if versionID == "" {
		version, err = s.submissions.FindLatest(ctx, nil, applicationID, stepID)
	} else {
		version, err = s.submissions.FindByID(ctx, nil, versionID)
	}
	if err != nil {
		return nil, err
	}
	if version == nil || version.ApplicationID != applicationID || version.StepID != stepID {
		return nil, errors.NewNotFoundError("submission version", versionID)
	}

	patches, err := s.patches.ListActiveByVersion(ctx, nil, version.ID)
	if err != nil {
		return nil, err
	}

	return &EffectiveAnswers{
		Version: version,
		Answers: domain.ComputeEffectiveAnswers(version.Answers, patches),
		Patched: len(patches) > 0,
	}, nil
}

// CreatePatch overlays staff corrections on a submission version without
// touching the immutable snapshot. Only "replace" ops are accepted.
func (s *SubmissionService) CreatePatch(ctx context.Context, applicationID, stepID, versionID string, ops []models.PatchOp) (*models.AdminChangePatch, error) {
	if len(ops) == 0 {
		return nil, errors.NewValidationError("ops", "at least one operation is required")
	}
	for _, op := range ops {
		if op.Op != "replace" {
			return nil, errors.NewValidationError("ops", fmt.Sprintf("unsupported op %q", op.Op))
		}
		if op.Path == "" {
			return nil, errors.NewValidationError("ops", "op path is required")
		}
	}

	version, err := s.submissions.FindByID(ctx, nil, versionID)
	if err != nil {
		return nil, err
	}
	if version == nil || version.ApplicationID != applicationID || version.StepID != stepID {
		return nil, errors.NewNotFoundError("submission version", versionID)
	}

	patch := &models.AdminChangePatch{
		ID:                  utils.GenerateID(),
		ApplicationID:       applicationID,
		StepID:              stepID,
		SubmissionVersionID: versionID,
		Ops:                 ops,
		IsActive:            true,
	}
	if err := s.patches.Insert(ctx, nil, patch); err != nil {
		return nil, err
	}
	log.Printf("🩹 Created patch %s on version %s (%d ops)", patch.ID, versionID, len(ops))
	return patch, nil
}

// DeactivatePatch turns a patch off; the underlying version is untouched and
// the composite recomputes without it.
func (s *SubmissionService) DeactivatePatch(ctx context.Context, patchID string) error {
	patch, err := s.patches.FindByID(ctx, nil, patchID)
	if err != nil {
		return err
	}
	if patch == nil {
		return errors.NewNotFoundError("patch", patchID)
	}
	return s.patches.Deactivate(ctx, nil, patchID)
}

func (s *SubmissionService) requireOwnership(ctx context.Context, applicationID string, user *models.UserSession) (*models.Application, error) {
	app, err := s.apps.FindByID(ctx, nil, applicationID)
	if err != nil {
		return nil, err
	}
	if app == nil {
		return nil, errors.NewNotFoundError("application", applicationID)
	}
	if !user.IsStaff && app.ApplicantID != user.ID {
		return nil, errors.NewForbiddenError("access application", "not your application")
	}
	return app, nil
}
